// Package domain contains the core domain types for wikibatch.
//
// This package represents the innermost layer of the module. It has no
// dependencies on infrastructure concerns (HTTP, logging, configuration) and
// contains only the identifier grammar and its invariants.
//
// # Identifier grammar
//
// An identifier is a one-letter kind prefix (Q, P, L, M, E) followed by a
// non-negative base-10 numeral with no leading zeros that fits a signed
// 32-bit integer. Lexeme identifiers may carry a "-F<digits>" or "-S<digits>"
// suffix denoting a form or sense; the suffix numeral follows the same rules.
//
// # Canonical identifiers
//
// Queue membership and remote lookup use canonical identifiers: forms and
// senses collapse to their parent lexeme ("L7-F1" -> "L7"). Group membership
// keeps the verbatim string as supplied by the caller.
package domain
