package executor

import (
	"context"
	"os/exec"
	"time"
)

// CancelMode selects what a cancel request does to a running child
// process: kill it immediately, or let it exit on its own and report the
// run cancelled afterward ("delayed cancel").
type CancelMode int

const (
	CancelKill CancelMode = iota
	CancelDelayed
)

// MonitorOptions tunes MonitorProcess. The zero value waits in 500 ms
// slices, never cancels, and posts no progress.
type MonitorOptions struct {
	// Poll is the wait slice length; cancellation is only observable
	// between slices. Zero means 500 ms.
	Poll time.Duration
	// Progress, when non-nil, is posted exactly once with 50 once the
	// child is confirmed running.
	Progress func(pct int)
	// ShouldCancel is sampled every slice; nil never cancels.
	ShouldCancel func() bool
	// CancelMode applies when ShouldCancel reports true.
	CancelMode CancelMode
	// FireAndForget starts the child and returns immediately with exit
	// code 0, leaving it to run unobserved.
	FireAndForget bool
}

// MonitorResult is the outcome of one monitored child process.
type MonitorResult struct {
	ExitCode  int
	Cancelled bool
}

// MonitorProcess starts cmd and waits for it in short slices so a cancel
// request never blocks behind a long-running child (§5 suspension points).
// A cancel in CancelKill mode terminates the child; in CancelDelayed mode
// the child runs to natural exit and the result is still marked cancelled.
func MonitorProcess(ctx context.Context, cmd *exec.Cmd, opts MonitorOptions) (MonitorResult, error) {
	if err := cmd.Start(); err != nil {
		return MonitorResult{ExitCode: -1}, err
	}
	if opts.FireAndForget {
		go func() { _ = cmd.Wait() }()
		return MonitorResult{}, nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if opts.Progress != nil {
		opts.Progress(50)
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	cancelled := false
	for {
		select {
		case err := <-done:
			return MonitorResult{ExitCode: exitCodeOf(cmd, err), Cancelled: cancelled}, waitError(err)
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			err := <-done
			return MonitorResult{ExitCode: exitCodeOf(cmd, err), Cancelled: true}, ctx.Err()
		case <-ticker.C:
			if cancelled || opts.ShouldCancel == nil || !opts.ShouldCancel() {
				continue
			}
			cancelled = true
			if opts.CancelMode == CancelKill {
				_ = cmd.Process.Kill()
			}
		}
	}
}

func exitCodeOf(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exit, ok := waitErr.(*exec.ExitError); ok {
		return exit.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

// waitError strips *exec.ExitError: a nonzero exit code is an outcome the
// caller maps through the package's exit-code table, not a launch failure.
func waitError(err error) error {
	if _, ok := err.(*exec.ExitError); ok {
		return nil
	}
	return err
}
