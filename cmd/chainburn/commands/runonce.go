package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chainburn/chainburn/pkg/state"
)

// RunRunOnce implements the RunOnce role (§4.6): replay every persisted
// resume command line, oldest first, then exit with the first failing
// child's exit code. Each pending entry is cleared before its relaunch so
// a crashing resume cannot loop the machine through the same command line
// on every boot.
func RunRunOnce(ctx context.Context) error {
	store, err := state.NewSQLiteStore(state.Config{Path: runOnceStateDBPath(os.Args[1:])})
	if err != nil {
		return fmt.Errorf("runonce: open state store: %w", err)
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("runonce: init state store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("runonce: migrate state store: %w", err)
	}

	pending, err := store.ListPendingResumes(ctx)
	if err != nil {
		return fmt.Errorf("runonce: list pending resumes: %w", err)
	}
	if len(pending) == 0 {
		log.Info().Msg("no pending resume; nothing to do")
		return nil
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("runonce: resolve self path: %w", err)
	}

	for _, ps := range pending {
		if ps.ResumeCommandLine == "" {
			log.Warn().Str("bundle", ps.BundleID).Msg("pending resume has no command line, clearing")
			_ = store.ClearResume(ctx, ps.BundleID)
			continue
		}
		if err := store.ClearResume(ctx, ps.BundleID); err != nil {
			return fmt.Errorf("runonce: clear resume for %s: %w", ps.BundleID, err)
		}

		args := strings.Fields(ps.ResumeCommandLine)
		log.Info().Str("bundle", ps.BundleID).Strs("args", args).Msg("resuming persisted command line")

		cmd := exec.CommandContext(ctx, self, args...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		err := cmd.Run()

		var exit *exec.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		if err != nil {
			return fmt.Errorf("runonce: resume %s: %w", ps.BundleID, err)
		}
	}
	return nil
}

// runOnceStateDBPath picks the persisted-state database the RunOnce role
// reads. The role is launched with only -burn.runonce, so the path comes
// from an explicit -state-db override in argv when present, otherwise the
// same default the root command's --state-db flag declares.
func runOnceStateDBPath(args []string) string {
	for i, a := range args {
		switch {
		case strings.HasPrefix(a, "-state-db="):
			return strings.TrimPrefix(a, "-state-db=")
		case strings.HasPrefix(a, "--state-db="):
			return strings.TrimPrefix(a, "--state-db=")
		case a == "-state-db" || a == "--state-db":
			if i+1 < len(args) {
				return args[i+1]
			}
		}
	}
	return "chainburn-state.db"
}
