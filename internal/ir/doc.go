// Package ir provides the constrained value model shared by every layer of
// the event filter compiler.
//
// Literal operands in condition trees, canonical JSON used for golden
// snapshots, and content fingerprints of compiled queries are all expressed
// in terms of IRValue. This package imports nothing internal so it remains
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - IRValue is sealed; only the types declared here implement it
//   - Object keys are always serialized in RFC 8785 order
//   - Canonical encoding rejects NaN and infinities
package ir
