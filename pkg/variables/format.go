package variables

import "strings"

// expandOnce expands a Formatted template against a lookup function,
// implementing the grammar in §4.1: literal characters pass through,
// "[\[]" and "[\]]" escape to literal "[" and "]", and "[name]" substitutes
// the named variable's formatted-string form (empty string if unknown).
//
// Expansion is single-pass: references produced by substitution are not
// themselves re-scanned, which is how "a=[a]" terminates and renders "[a]"
// literally rather than looping (§8 boundary case).
func expandOnce(tmpl string, lookup func(name string) (string, bool)) string {
	var out strings.Builder
	runes := []rune(tmpl)
	i := 0
	for i < len(runes) {
		if runes[i] != '[' {
			out.WriteRune(runes[i])
			i++
			continue
		}
		// Look for the closing ']' of this reference/escape.
		j := i + 1
		for j < len(runes) && runes[j] != ']' {
			j++
		}
		if j >= len(runes) {
			// Unterminated "[" — treat as a literal character.
			out.WriteRune(runes[i])
			i++
			continue
		}
		inner := string(runes[i+1 : j])
		switch inner {
		case `\[`:
			out.WriteRune('[')
		case `\]`:
			out.WriteRune(']')
		default:
			if val, ok := lookup(inner); ok {
				out.WriteString(val)
			}
			// Unknown references expand to the empty string.
		}
		i = j + 1
	}
	return out.String()
}

// Escape rewrites a literal string so a later formatting pass reproduces it
// verbatim: every "[" becomes the escape pair "[\[]" and every "]" becomes
// "[\]]". A single scan, since the pairs themselves contain brackets.
func Escape(s string) string {
	var out strings.Builder
	for _, r := range s {
		switch r {
		case '[':
			out.WriteString(`[\[]`)
		case ']':
			out.WriteString(`[\]]`)
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
