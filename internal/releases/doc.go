// Package releases resolves release filters (release.stage, release.version,
// release.package, release.build) into bounded, deterministically ordered
// lists of concrete release version strings.
//
// The Resolver talks to a release Store through a narrow read interface so
// the compiler can be exercised against an in-memory fake. Every lookup is
// bounded by Options.MaxSearchReleases.
//
// # Negation optimization
//
// When a semver lookup returns exactly MaxSearchReleases rows, the resolver
// runs the complementary constraint. If that result is non-empty and
// strictly smaller, the filter becomes NOT IN over the complementary set.
// This is an approximation: at the bound the two sets are not guaranteed
// to partition the releases exactly (rows beyond the limit on either side
// are invisible), so the flipped filter may match a slightly different set
// than an unbounded IN would have.
package releases
