package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CleanRoomSpec describes an Untrusted-mode relaunch (§4.6): the engine
// copies its own executable into a location it controls, then relaunches
// from that copy so nothing after startup executes code from the unsecured
// original path.
type CleanRoomSpec struct {
	// OriginalPath is the executable the user actually launched.
	OriginalPath string
	// SecureRoot is the per-user or per-machine cache root the secured
	// copy is placed under.
	SecureRoot string
	// Args is the original argv[1:], passed through to the relaunch.
	Args []string
}

// PrepareCleanRoom copies the launched executable into a private directory
// under SecureRoot and returns the relaunch to perform: the secured
// executable path and its argument list, which is the original argv with
// -clean-room=<original-path> prepended so the relaunched process knows it
// is already secured and where it was launched from.
func PrepareCleanRoom(spec CleanRoomSpec) (securedPath string, args []string, err error) {
	if spec.OriginalPath == "" {
		return "", nil, fmt.Errorf("clean room: original executable path is empty")
	}

	dir := filepath.Join(spec.SecureRoot, "cleanroom")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("clean room: create secure directory: %w", err)
	}

	securedPath = filepath.Join(dir, filepath.Base(spec.OriginalPath))
	if err := copyExecutable(spec.OriginalPath, securedPath); err != nil {
		return "", nil, err
	}

	args = make([]string, 0, len(spec.Args)+1)
	args = append(args, "-clean-room="+spec.OriginalPath)
	for _, a := range spec.Args {
		if a == "-burn.clean.room" {
			continue // consumed: the relaunch is the clean room
		}
		args = append(args, a)
	}
	return securedPath, args, nil
}

// copyExecutable writes dst from src with owner-only permissions. The copy
// goes through a temp file renamed into place so a concurrent launch never
// observes a half-written executable.
func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("clean room: open original: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".cleanroom-*")
	if err != nil {
		return fmt.Errorf("clean room: create secured copy: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("clean room: copy executable: %w", err)
	}
	if err := tmp.Chmod(0o700); err != nil {
		tmp.Close()
		return fmt.Errorf("clean room: set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("clean room: close secured copy: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("clean room: place secured copy: %w", err)
	}
	return nil
}

// DefaultSecureRoot picks the secure cache root for clean-room copies:
// the per-user cache directory, or the system temp directory when no user
// cache is resolvable.
func DefaultSecureRoot() string {
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "chainburn")
	}
	return filepath.Join(os.TempDir(), "chainburn")
}
