// Package variables implements the engine's typed variable store (C1): a
// named-value table with lazy template expansion, a read-only builtin
// provider, and a stable binary serialization used to hand state across the
// BA↔engine process boundary.
//
// Open-question decisions (§9):
//
//   - Truncation vs. MoreData: GetFormatted never truncates. Callers always
//     receive the fully expanded string; there is no short-buffer signal to
//     thread through a Go API, so this side-steps the ambiguity uniformly.
//   - Case sensitivity: user variable names are looked up case-sensitively.
//     Only the builtin table (Lookup) and the condition lexer's AND/OR/NOT
//     keywords are case-insensitive.
package variables
