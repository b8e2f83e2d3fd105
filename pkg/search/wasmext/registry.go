package wasmext

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// Registry loads and caches WASM search extensions by name. Each extension
// is loaded from an explicit manifest path (LoadFromManifest); the registry
// does not scan directories for manifests.
type Registry struct {
	mu         sync.Mutex
	extensions map[string]*Extension
	timeout    time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{extensions: make(map[string]*Extension), timeout: timeout}
}

// LoadFromManifest loads and caches the extension described by manifestPath.
func (r *Registry) LoadFromManifest(ctx context.Context, manifestPath string) (*Extension, error) {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	wasmModule, err := os.ReadFile(m.WasmPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read WASM module: %w", err)
	}
	if err := m.VerifyChecksum(wasmModule); err != nil {
		return nil, fmt.Errorf("checksum verification failed: %w", err)
	}

	ext, err := Load(ctx, m, wasmModule, r.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate extension %s: %w", m.Name, err)
	}

	r.mu.Lock()
	r.extensions[m.Name] = ext
	r.mu.Unlock()
	return ext, nil
}

// Get returns a previously loaded extension by name.
func (r *Registry) Get(name string) (*Extension, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ext, ok := r.extensions[name]
	return ext, ok
}

// Close closes every loaded extension.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, ext := range r.extensions {
		if err := ext.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close extension %s: %w", name, err)
		}
	}
	r.extensions = make(map[string]*Extension)
	return firstErr
}
