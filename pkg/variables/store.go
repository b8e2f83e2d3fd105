package variables

import (
	"sync"

	"github.com/chainburn/chainburn/pkg/errs"
)

// Variable is one entry of the store: a named Value plus the flags from
// §3. ReadOnly entries are the builtin-provided ones. A Hidden entry's
// value is returned as stored by the getters; GetFormatted and Format report
// when a Hidden variable was referenced, and Serialize(false) omits it. The
// store does not obfuscate the value itself.
type Variable struct {
	Name       string
	Value      Value
	Hidden     bool
	Persisted  bool
	ReadOnly   bool
}

// BuiltinProvider lazily computes a read-only, OS-derived variable on
// demand. Lookup is case-insensitive over the builtin name table.
type BuiltinProvider interface {
	Lookup(name string) (Value, bool)
	Names() []string
}

// Store is the variable store (C1). User variable names are looked up
// case-sensitively; builtin names are matched case-insensitively (see
// doc.go for the rationale).
type Store struct {
	mu      sync.RWMutex
	vars    map[string]*Variable
	builtin BuiltinProvider
	active  bool // "engine active" latch: true while Detect/Plan/Apply run
}

// NewStore creates an empty store backed by the given builtin provider.
func NewStore(builtin BuiltinProvider) *Store {
	return &Store{vars: make(map[string]*Variable), builtin: builtin}
}

// SetActive raises or lowers the "engine active" latch. While active, BA-
// originated writes are refused with EngineActive so the engine's own
// Detect/Plan/Apply transitions see a consistent snapshot.
func (s *Store) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *Store) lookupRaw(name string) (*Variable, bool) {
	if v, ok := s.vars[name]; ok {
		return v, true
	}
	if s.builtin != nil {
		if bv, ok := s.builtin.Lookup(name); ok {
			return &Variable{Name: name, Value: bv, ReadOnly: true}, true
		}
	}
	return nil, false
}

// GetNumeric implements get_numeric (§4.1).
func (s *Store) GetNumeric(name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.lookupRaw(name)
	if !ok {
		return 0, errs.NewNotFound("variable not found: " + name).WithResource(name)
	}
	n, err := v.Value.AsNumeric()
	if err != nil {
		return 0, errs.NewTypeMismatch(err.Error()).WithResource(name)
	}
	return n, nil
}

// GetString implements get_string.
func (s *Store) GetString(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.lookupRaw(name)
	if !ok {
		return "", errs.NewNotFound("variable not found: " + name).WithResource(name)
	}
	return v.Value.AsString(), nil
}

// GetVersion implements get_version.
func (s *Store) GetVersion(name string) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.lookupRaw(name)
	if !ok {
		return Version{}, errs.NewNotFound("variable not found: " + name).WithResource(name)
	}
	ver, err := v.Value.AsVersion()
	if err != nil {
		return Version{}, errs.NewTypeMismatch(err.Error()).WithResource(name)
	}
	return ver, nil
}

// GetFormatted implements get_formatted: like GetString, but Formatted
// values are expanded against the store. hidden reports whether the
// resolved variable (or any variable it transitively referenced) is marked
// Hidden, so callers can obfuscate logged output.
func (s *Store) GetFormatted(name string) (text string, hidden bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.lookupRaw(name)
	if !ok {
		return "", false, errs.NewNotFound("variable not found: " + name).WithResource(name)
	}
	if v.Value.Type != TypeFormatted {
		return v.Value.AsString(), v.Hidden, nil
	}
	anyHidden := v.Hidden
	expanded := s.Format(v.Value.Text, &anyHidden)
	return expanded, anyHidden, nil
}

// Format expands an arbitrary template string against the store, the way
// get_formatted does, without requiring the template to be stored under a
// name first (used by the BA's FormatString RPC call). If hidden is
// non-nil, it is set to true when any referenced variable is Hidden.
func (s *Store) Format(tmpl string, hidden *bool) string {
	return expandOnce(tmpl, func(name string) (string, bool) {
		v, ok := s.lookupRaw(name)
		if !ok {
			return "", false
		}
		if v.Hidden && hidden != nil {
			*hidden = true
		}
		if v.Value.Type == TypeFormatted {
			// Single-pass: do not recursively expand nested templates.
			return v.Value.Text, true
		}
		return v.Value.AsString(), true
	})
}

// SetOptions controls SetNumeric/SetString/SetVersion/SetFormatted.
type SetOptions struct {
	Hidden    bool
	Persisted bool
	Overwrite bool // if false and the variable exists, the set is a no-op
	// Internal marks an engine-originated write (search results, per-
	// package action variables). Internal writes are exempt from the
	// engine-active latch, which only refuses BA-thread writes.
	Internal bool
}

func (s *Store) set(name string, val Value, opts SetOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active && !opts.Internal {
		return errs.New(errs.KindEngineActive, "store is active", nil).WithResource(name)
	}
	if s.builtin != nil {
		if _, ok := s.builtin.Lookup(name); ok {
			return errs.NewInvalidArg("cannot write to read-only builtin variable: " + name).WithResource(name)
		}
	}
	if existing, ok := s.vars[name]; ok {
		if existing.ReadOnly {
			return errs.NewInvalidArg("cannot write to read-only variable: " + name).WithResource(name)
		}
		if !opts.Overwrite {
			return nil
		}
	}
	s.vars[name] = &Variable{Name: name, Value: val, Hidden: opts.Hidden, Persisted: opts.Persisted}
	return nil
}

func (s *Store) SetNumeric(name string, n int64, opts SetOptions) error {
	return s.set(name, Numeric(n), opts)
}

func (s *Store) SetString(name, text string, opts SetOptions) error {
	return s.set(name, String(text), opts)
}

func (s *Store) SetFormatted(name, tmpl string, opts SetOptions) error {
	return s.set(name, Formatted(tmpl), opts)
}

func (s *Store) SetVersion(name string, v Version, opts SetOptions) error {
	return s.set(name, VersionValue(v), opts)
}

// Has reports whether name resolves to a user or builtin variable.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookupRaw(name)
	return ok
}

// Names returns every user-set variable name (not builtins).
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.vars))
	for n := range s.vars {
		names = append(names, n)
	}
	return names
}

// Lookup resolves name to a Value for consumers outside this package (the
// condition evaluator's VariableSource). User names are matched exactly;
// unmatched names fall through to the builtin provider, which is expected to
// match case-insensitively per §3.
func (s *Store) Lookup(name string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.lookupRaw(name)
	if !ok {
		return None, false
	}
	return v.Value, true
}
