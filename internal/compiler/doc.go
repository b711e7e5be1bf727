// Package compiler translates a parsed search query into condition trees
// for the columnar event store.
//
// A query is a flat sequence of search items (terms, aggregate terms and
// parenthesized groups) joined by AND/OR connectives. Compile produces:
//
//   - Where: the row-filter tree, built from ordinary terms
//   - Having: the aggregate-filter tree, built from aggregate terms
//   - ProjectIDs and GroupIDs: explicit restrictions pulled out of
//     project and issue.id terms for the caller to apply
//
// # Precedence
//
// AND binds tighter than OR. The builder splits a sequence on its first
// top-level OR and recurses on both sides; a sequence without OR becomes a
// right-leaning AND chain. So [A AND B OR C AND D] compiles to
// Or(And(A, B), And(C, D)). An OR may not join a where branch with a
// having branch.
//
// # Field rules
//
// Each term is converted by the first matching rule:
//
//  1. Fields with a dedicated rule (environment, message, release filters, ...)
//  2. Array fields with a wildcard, list or has-style value
//  3. The generic rule: alias expansion, tag null-coalescing, null checks
//     for has-style and inequality comparisons, and regex matching for
//     wildcards
//
// Release filters (release.version, release.stage, release.package,
// release.build and release:latest) are expanded into concrete version
// lists through a releases.Resolver.
//
// A Compiler keeps no per-call state and is safe for concurrent use.
package compiler
