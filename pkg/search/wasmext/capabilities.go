package wasmext

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Capability names a sandboxed operation a WASM search extension may be
// granted. The set is deliberately narrower than a general-purpose plugin
// host's: a search extension only ever needs to read host state to decide a
// variable's value, never to mutate the system.
type Capability string

const (
	CapabilityFSRead  Capability = "fs:read"
	CapabilityEnvRead Capability = "env:read"
)

// CapabilityEnforcer gates the host functions exposed to a WASM extension's
// guest code to the capabilities its manifest declared.
type CapabilityEnforcer struct {
	granted map[string]bool
}

// NewCapabilityEnforcer builds an enforcer from a manifest's declared
// capability list.
func NewCapabilityEnforcer(capabilities []string) *CapabilityEnforcer {
	e := &CapabilityEnforcer{granted: make(map[string]bool, len(capabilities))}
	for _, c := range capabilities {
		e.granted[c] = true
	}
	return e
}

func (e *CapabilityEnforcer) Has(c Capability) bool { return e.granted[string(c)] }

// ReadFile reads a file if fs:read is granted, refusing paths inside the
// well-known sensitive locations an extension should never need.
func (e *CapabilityEnforcer) ReadFile(path string) ([]byte, error) {
	if !e.Has(CapabilityFSRead) {
		return nil, fmt.Errorf("capability fs:read not granted")
	}
	if isSensitivePath(path) {
		return nil, fmt.Errorf("access to sensitive path denied: %s", path)
	}
	return os.ReadFile(path)
}

// ReadEnv reads an environment variable if env:read is granted, refusing
// names that look like secrets.
func (e *CapabilityEnforcer) ReadEnv(key string) (string, error) {
	if !e.Has(CapabilityEnvRead) {
		return "", fmt.Errorf("capability env:read not granted")
	}
	if isSensitiveEnvVar(key) {
		return "", fmt.Errorf("access to sensitive environment variable denied: %s", key)
	}
	return os.Getenv(key), nil
}

func isSensitivePath(path string) bool {
	sensitive := []string{"/etc/shadow", "/etc/passwd", "/root/.ssh", "/.aws/credentials", "/.kube/config"}
	clean := filepath.Clean(path)
	for _, s := range sensitive {
		if strings.Contains(clean, s) {
			return true
		}
	}
	return false
}

func isSensitiveEnvVar(key string) bool {
	sensitive := []string{"SECRET", "TOKEN", "PASSWORD", "API_KEY", "AWS_SECRET_ACCESS_KEY"}
	upper := strings.ToUpper(key)
	for _, s := range sensitive {
		if strings.Contains(upper, s) {
			return true
		}
	}
	return false
}
