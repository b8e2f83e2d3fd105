package executor

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestMonitorProcessNaturalExit(t *testing.T) {
	var progress []int
	res, err := MonitorProcess(context.Background(), exec.Command("true"), MonitorOptions{
		Poll:     10 * time.Millisecond,
		Progress: func(pct int) { progress = append(progress, pct) },
	})
	if err != nil {
		t.Fatalf("MonitorProcess: %v", err)
	}
	if res.ExitCode != 0 || res.Cancelled {
		t.Fatalf("result = %+v", res)
	}
	if len(progress) != 1 || progress[0] != 50 {
		t.Fatalf("progress = %v, want one 50%% post", progress)
	}
}

func TestMonitorProcessNonzeroExitIsNotAnError(t *testing.T) {
	res, err := MonitorProcess(context.Background(), exec.Command("false"), MonitorOptions{
		Poll: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("MonitorProcess: %v", err)
	}
	if res.ExitCode == 0 {
		t.Fatal("expected a nonzero exit code")
	}
}

func TestMonitorProcessCancelKill(t *testing.T) {
	res, err := MonitorProcess(context.Background(), exec.Command("sleep", "30"), MonitorOptions{
		Poll:         10 * time.Millisecond,
		ShouldCancel: func() bool { return true },
		CancelMode:   CancelKill,
	})
	if err != nil {
		t.Fatalf("MonitorProcess: %v", err)
	}
	if !res.Cancelled {
		t.Fatal("expected a cancelled result")
	}
	if res.ExitCode == 0 {
		t.Fatal("killed child should not report exit code 0")
	}
}

func TestMonitorProcessDelayedCancelWaitsForExit(t *testing.T) {
	start := time.Now()
	res, err := MonitorProcess(context.Background(), exec.Command("sleep", "0.2"), MonitorOptions{
		Poll:         10 * time.Millisecond,
		ShouldCancel: func() bool { return true },
		CancelMode:   CancelDelayed,
	})
	if err != nil {
		t.Fatalf("MonitorProcess: %v", err)
	}
	if !res.Cancelled {
		t.Fatal("expected a cancelled result")
	}
	if res.ExitCode != 0 {
		t.Fatalf("delayed cancel should let the child exit cleanly, got %d", res.ExitCode)
	}
	if time.Since(start) < 150*time.Millisecond {
		t.Fatal("delayed cancel returned before the child's natural exit")
	}
}

func TestMonitorProcessFireAndForget(t *testing.T) {
	start := time.Now()
	res, err := MonitorProcess(context.Background(), exec.Command("sleep", "5"), MonitorOptions{
		FireAndForget: true,
	})
	if err != nil {
		t.Fatalf("MonitorProcess: %v", err)
	}
	if res.ExitCode != 0 || res.Cancelled {
		t.Fatalf("result = %+v", res)
	}
	if time.Since(start) > time.Second {
		t.Fatal("fire-and-forget waited on the child")
	}
}
