package elevated

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainburn/chainburn/pkg/rpc"
)

// RegistrationStore records and removes dependency relationships between a
// bundle and the shared packages it depends on (§ plan DependencyOpStep),
// the write a dependent-bundle uninstall consults before evicting a
// shared package. Backed on Windows by DependentsRegistryRoot; here it is
// a plain directory tree, one file per dependency ID, under the same
// privilege boundary the real registry key enforces.
type RegistrationStore interface {
	Register(dependencyID, bundleID string) error
	Unregister(dependencyID, bundleID string) error
	Dependents(dependencyID string) ([]string, error)
}

// FileRegistrationStore is the RegistrationStore used outside tests.
type FileRegistrationStore struct {
	Root string
}

func (f *FileRegistrationStore) dir(dependencyID string) string {
	return filepath.Join(f.Root, dependencyID)
}

// Register implements RegistrationStore.
func (f *FileRegistrationStore) Register(dependencyID, bundleID string) error {
	dir := f.dir(dependencyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("registration: create dir: %w", err)
	}
	marker := filepath.Join(dir, bundleID)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return fmt.Errorf("registration: write marker: %w", err)
	}
	return nil
}

// Unregister implements RegistrationStore.
func (f *FileRegistrationStore) Unregister(dependencyID, bundleID string) error {
	marker := filepath.Join(f.dir(dependencyID), bundleID)
	if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("registration: remove marker: %w", err)
	}
	return nil
}

// Dependents implements RegistrationStore.
func (f *FileRegistrationStore) Dependents(dependencyID string) ([]string, error) {
	entries, err := os.ReadDir(f.dir(dependencyID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registration: list dependents: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// handleDependencyRegister records that bundleID depends on dependencyID.
//
// Wire params: dependencyID, bundleID strings.
func (s *Server) handleDependencyRegister(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	dependencyID, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	bundleID, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	if err := s.reg.Register(dependencyID, bundleID); err != nil {
		return rpc.EFail, nil
	}
	return rpc.SOK, nil
}

// handleDependencyUnregister removes a previously recorded dependency.
//
// Wire params: dependencyID, bundleID strings.
func (s *Server) handleDependencyUnregister(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	dependencyID, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	bundleID, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	if err := s.reg.Unregister(dependencyID, bundleID); err != nil {
		return rpc.EFail, nil
	}
	return rpc.SOK, nil
}
