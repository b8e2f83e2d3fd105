// Package condition implements the engine's condition evaluator (C2): a
// tokenizer and recursive-descent evaluator for the boolean expression
// grammar used throughout the manifest (package conditions, search
// conditions, rollback-boundary conditions).
//
// Grammar (§4.2):
//
//	expr   := term { "OR" term }
//	term   := factor { "AND" factor }
//	factor := [ "NOT" ] atom
//	atom   := value | value cmp value | "(" expr ")"
//	value  := variable | integer | literal | version
//
// Case sensitivity: the AND/OR/NOT keywords and the comparator ~-prefix are
// matched case-insensitively; variable identifiers are resolved through
// variables.Store, which is case-sensitive for user variables and
// case-insensitive for builtins (see pkg/variables/doc.go).
package condition
