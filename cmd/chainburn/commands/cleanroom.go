package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/chainburn/chainburn/pkg/executor"
)

// RunCleanRoom implements the Untrusted role (§4.6): cache the launched
// executable to a secure location, relaunch from that copy with
// -clean-room=<original-path>, wait for it, and propagate its exit code so
// the caller that started the unsecured binary sees the real outcome.
func RunCleanRoom(ctx context.Context) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("clean room: resolve self path: %w", err)
	}

	secured, args, err := executor.PrepareCleanRoom(executor.CleanRoomSpec{
		OriginalPath: self,
		SecureRoot:   executor.DefaultSecureRoot(),
		Args:         os.Args[1:],
	})
	if err != nil {
		return err
	}

	log.Info().Str("secured", secured).Msg("relaunching from clean room")

	cmd := exec.CommandContext(ctx, secured, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err = cmd.Run()

	var exit *exec.ExitError
	if errors.As(err, &exit) {
		os.Exit(exit.ExitCode())
	}
	return err
}
