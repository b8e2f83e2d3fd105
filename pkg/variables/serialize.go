package variables

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Serialize produces a stable binary snapshot of the store's user variables
// (builtins are never serialized — they are recomputed on the far end).
// When includeHidden is false, Hidden variables are elided entirely rather
// than written with an obfuscated value, matching §4.1.
func (s *Store) Serialize(includeHidden bool) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	count := uint32(0)
	for _, v := range s.vars {
		if v.Hidden && !includeHidden {
			continue
		}
		count++
	}
	_ = binary.Write(&buf, binary.LittleEndian, count)

	for _, v := range s.vars {
		if v.Hidden && !includeHidden {
			continue
		}
		if err := writeVariable(&buf, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeVariable(buf *bytes.Buffer, v *Variable) error {
	writeString(buf, v.Name)
	flags := byte(0)
	if v.Hidden {
		flags |= 1
	}
	if v.Persisted {
		flags |= 2
	}
	buf.WriteByte(flags)
	buf.WriteByte(byte(v.Value.Type))
	switch v.Value.Type {
	case TypeNumeric:
		_ = binary.Write(buf, binary.LittleEndian, v.Value.Numeric)
	case TypeString, TypeFormatted:
		writeString(buf, v.Value.Text)
	case TypeVersion:
		writeString(buf, v.Value.Version.Text())
	case TypeNone:
		// nothing to write
	default:
		return fmt.Errorf("unknown value type %d", v.Value.Type)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	b := []byte(s)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(b)))
	buf.Write(b)
}

// Deserialize replaces the store's user variables with the snapshot
// produced by Serialize. Builtins and the active-latch state are untouched.
func (s *Store) Deserialize(data []byte) error {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("reading variable count: %w", err)
	}

	vars := make(map[string]*Variable, count)
	for i := uint32(0); i < count; i++ {
		v, err := readVariable(r)
		if err != nil {
			return fmt.Errorf("reading variable %d: %w", i, err)
		}
		vars[v.Name] = v
	}

	s.mu.Lock()
	s.vars = vars
	s.mu.Unlock()
	return nil
}

func readVariable(r *bytes.Reader) (*Variable, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	typByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	v := &Variable{Name: name, Hidden: flags&1 != 0, Persisted: flags&2 != 0}
	switch Type(typByte) {
	case TypeNumeric:
		var n int64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		v.Value = Numeric(n)
	case TypeString:
		text, err := readString(r)
		if err != nil {
			return nil, err
		}
		v.Value = String(text)
	case TypeFormatted:
		text, err := readString(r)
		if err != nil {
			return nil, err
		}
		v.Value = Formatted(text)
	case TypeVersion:
		text, err := readString(r)
		if err != nil {
			return nil, err
		}
		v.Value = VersionValue(ParseVersion(text))
	case TypeNone:
		v.Value = None
	default:
		return nil, fmt.Errorf("unknown value type %d", typByte)
	}
	return v, nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return "", err
	}
	return string(b), nil
}
