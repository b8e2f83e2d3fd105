// Package wasmext implements an ExtensionSearch backend that sandboxes a
// compiled WASM module with wazero instead of running a script in-process
// (see pkg/search/starlarkext for the Starlark alternative). Manifest
// parsing, capability enforcement, and the host<->guest calling convention
// are narrowed from a general WASM provider RPC surface down to the three
// exports a search extension needs: malloc, free and search_execute.
package wasmext

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest describes one WASM search extension module.
type Manifest struct {
	Name                 string   `yaml:"name"`
	Version              string   `yaml:"version"`
	Author               string   `yaml:"author"`
	Entrypoint           string   `yaml:"entrypoint"`
	Checksum             string   `yaml:"checksum,omitempty"`
	RequiredCapabilities []string `yaml:"required_capabilities,omitempty"`

	Path     string `yaml:"-"`
	WasmPath string `yaml:"-"`
	Verified bool   `yaml:"-"`
}

// LoadManifest reads and validates a search extension manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	m.Path = path

	if filepath.IsAbs(m.Entrypoint) {
		m.WasmPath = m.Entrypoint
	} else {
		m.WasmPath = filepath.Join(filepath.Dir(path), m.Entrypoint)
	}
	if _, err := os.Stat(m.WasmPath); err != nil {
		return nil, fmt.Errorf("WASM module not found at %s: %w", m.WasmPath, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("extension name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("extension version is required")
	}
	if m.Entrypoint == "" {
		return fmt.Errorf("entrypoint is required")
	}
	return nil
}

// VerifyChecksum verifies wasmModule against the manifest's declared
// checksum, if one was set.
func (m *Manifest) VerifyChecksum(wasmModule []byte) error {
	if m.Checksum == "" {
		return nil
	}
	sum := sha256.Sum256(wasmModule)
	computed := hex.EncodeToString(sum[:])
	if computed != m.Checksum {
		return fmt.Errorf("WASM module checksum mismatch: expected %s, got %s", m.Checksum, computed)
	}
	m.Verified = true
	return nil
}
