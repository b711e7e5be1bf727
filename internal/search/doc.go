// Package search defines the already-parsed search query consumed by the
// compiler: a flat sequence of terms, aggregate terms and parenthesized
// groups, with AND/OR connectives between them.
//
// Item is a sealed interface using the marker method pattern, so the
// compiler can switch exhaustively over Term, AggregateTerm, Group and
// Connective. Every type here is immutable once constructed.
//
// Tokenizing raw query text is the job of an external parser. DecodeYAML
// and DecodeItems accept a structured rendition of the parser's output so
// term sequences can be written by hand in tests and CLI input files.
package search
