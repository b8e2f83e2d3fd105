package search

import (
	"strings"
	"sync"

	"github.com/chainburn/chainburn/pkg/errs"
	"github.com/chainburn/chainburn/pkg/variables"
)

// MemRegistry is an in-memory stand-in for the Windows registry, used both
// in tests and as the real RegistryProbe on non-Windows hosts where bundles
// are exercised against a seeded shim rather than a live hive. Keys are
// "root\\key" strings; values are stored per key.
type MemRegistry struct {
	mu   sync.RWMutex
	keys map[string]map[string]variables.Value
}

// NewMemRegistry returns an empty shim.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{keys: make(map[string]map[string]variables.Value)}
}

// Seed installs a value for key\value under root, creating the key if
// needed. Intended for test setup and for pre-loading known-good state from
// a platform-specific probe at startup.
func (m *MemRegistry) Seed(root RegistryRoot, key, value string, v variables.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rootKey(root, key)
	if m.keys[k] == nil {
		m.keys[k] = make(map[string]variables.Value)
	}
	m.keys[k][value] = v
}

func (m *MemRegistry) Exists(root RegistryRoot, key string, win64 bool) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[rootKey(root, key)]
	return ok, nil
}

func (m *MemRegistry) Value(root RegistryRoot, key, value string, win64 bool) (variables.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vals, ok := m.keys[rootKey(root, key)]
	if !ok {
		return variables.None, errs.NewNotFound("registry key not found: " + key).WithResource(key)
	}
	v, ok := vals[value]
	if !ok {
		return variables.None, errs.NewNotFound("registry value not found: " + value).WithResource(key + "\\" + value)
	}
	return v, nil
}

func rootKey(root RegistryRoot, key string) string {
	var prefix string
	switch root {
	case RootClassesRoot:
		prefix = "HKCR"
	case RootCurrentUser:
		prefix = "HKCU"
	case RootLocalMachine:
		prefix = "HKLM"
	case RootUsers:
		prefix = "HKU"
	default:
		prefix = "HK?"
	}
	return prefix + "\\" + strings.TrimPrefix(key, "\\")
}
