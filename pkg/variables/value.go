package variables

import (
	"fmt"
	"strconv"
	"strings"
)

// Type discriminates the tagged union a Value carries.
type Type int

const (
	TypeNone Type = iota
	TypeNumeric
	TypeString
	TypeFormatted
	TypeVersion
)

func (t Type) String() string {
	switch t {
	case TypeNumeric:
		return "numeric"
	case TypeString:
		return "string"
	case TypeFormatted:
		return "formatted"
	case TypeVersion:
		return "version"
	default:
		return "none"
	}
}

// Value is the tagged sum described in §3: None | Numeric(i64) |
// String(text) | Formatted(template) | Version(structured). Exactly one of
// the typed fields is meaningful, selected by Type.
type Value struct {
	Type    Type
	Numeric int64
	Text    string // String or Formatted payload
	Version Version
}

// None is the zero Value.
var None = Value{Type: TypeNone}

func Numeric(n int64) Value     { return Value{Type: TypeNumeric, Numeric: n} }
func String(s string) Value     { return Value{Type: TypeString, Text: s} }
func Formatted(tmpl string) Value { return Value{Type: TypeFormatted, Text: tmpl} }
func VersionValue(v Version) Value { return Value{Type: TypeVersion, Version: v} }

// Truthy implements the atom truthiness rule used by the condition
// evaluator when no comparator is present (§4.2).
func (v Value) Truthy() bool {
	switch v.Type {
	case TypeNumeric:
		return v.Numeric != 0
	case TypeString, TypeFormatted:
		return len(v.Text) > 0
	case TypeVersion:
		return v.Version.Text() != ""
	default:
		return false
	}
}

// Version is a structured dotted version: numeric fields followed by an
// optional textual tail, ordered lexicographically by numeric field then by
// tail (§3, §8 "truncated versions must compare equal").
type Version struct {
	Fields  []int64
	Tail    string
	Invalid bool
	raw     string
}

// ParseVersion parses a "v"-prefixed or bare dotted version string. Segments
// are "."-separated; a segment that fails to parse as an integer becomes the
// textual tail (and everything after it is appended verbatim), and the
// version is flagged Invalid but still returned so comparisons keep working.
func ParseVersion(s string) Version {
	raw := s
	s = strings.TrimPrefix(s, "v")
	parts := strings.Split(s, ".")
	v := Version{raw: raw}
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			v.Tail = strings.Join(parts[i:], ".")
			v.Invalid = true
			break
		}
		v.Fields = append(v.Fields, n)
	}
	return v
}

// Text renders the normalised version string: numeric fields dot-joined,
// then the tail if present. Trailing-zero truncation is handled by Compare,
// not by Text, so "v1.1" and "v1.1.0.0" keep distinct textual forms but
// compare equal.
func (v Version) Text() string {
	if len(v.Fields) == 0 && v.Tail == "" {
		return ""
	}
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, strconv.FormatInt(f, 10))
	}
	text := strings.Join(parts, ".")
	if v.Tail != "" {
		if text != "" {
			text += "."
		}
		text += v.Tail
	}
	return text
}

// Compare orders two versions: numeric fields first (missing trailing
// fields treated as zero, so v1.1 == v1.1.0.0), then the textual tail.
func (a Version) Compare(b Version) int {
	n := len(a.Fields)
	if len(b.Fields) > n {
		n = len(b.Fields)
	}
	for i := 0; i < n; i++ {
		var x, y int64
		if i < len(a.Fields) {
			x = a.Fields[i]
		}
		if i < len(b.Fields) {
			y = b.Fields[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a.Tail, b.Tail)
}

// Equal reports a.Compare(b) == 0.
func (a Version) Equal(b Version) bool { return a.Compare(b) == 0 }

// AsNumeric coerces the value to an i64 per get_numeric's rules: Numeric is
// direct; String/Formatted are parsed strictly as decimal, or hex with a
// "0x" prefix, with no partial-prefix leniency; Version is a type mismatch.
func (v Value) AsNumeric() (int64, error) {
	switch v.Type {
	case TypeNumeric:
		return v.Numeric, nil
	case TypeString, TypeFormatted:
		text := v.Text
		if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
			n, err := strconv.ParseInt(text[2:], 16, 64)
			if err != nil {
				return 0, fmt.Errorf("not a valid hex integer: %q", text)
			}
			return n, nil
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not a valid integer: %q", text)
		}
		return n, nil
	case TypeVersion:
		return 0, fmt.Errorf("version values are not numeric")
	default:
		return 0, fmt.Errorf("none value has no numeric form")
	}
}

// AsVersion coerces the value to a Version per get_version's rules: strings
// are parsed; numeric values are rejected. The integer-encoded-version
// carve-out some installers use is not exercised here, since this engine
// always keeps a structured Version at rest.
func (v Value) AsVersion() (Version, error) {
	switch v.Type {
	case TypeVersion:
		return v.Version, nil
	case TypeString, TypeFormatted:
		return ParseVersion(v.Text), nil
	default:
		return Version{}, fmt.Errorf("%s value has no version form", v.Type)
	}
}

// AsString renders the value the way get_string does: String is direct,
// Formatted returns the unexpanded template, Numeric renders as decimal, and
// Version renders its normalised text.
func (v Value) AsString() string {
	switch v.Type {
	case TypeString, TypeFormatted:
		return v.Text
	case TypeNumeric:
		return strconv.FormatInt(v.Numeric, 10)
	case TypeVersion:
		return v.Version.Text()
	default:
		return ""
	}
}
