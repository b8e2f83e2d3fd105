package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chainburn/chainburn/internal/winconst"
	"github.com/chainburn/chainburn/pkg/errs"
)

type scriptedRestart struct {
	codes []int
	calls int
}

func (s *scriptedRestart) InitiateRestart(context.Context) (int, error) {
	code := s.codes[s.calls]
	if s.calls < len(s.codes)-1 {
		s.calls++
	}
	return code, nil
}

func TestInitiateRestartRetriesWhileMachineLocked(t *testing.T) {
	restartRetrySleep = time.Millisecond
	defer func() { restartRetrySleep = time.Second }()

	init := &scriptedRestart{codes: []int{winconst.ErrorMachineLocked, winconst.ErrorNotReady, 0}}
	if err := InitiateRestartWithRetry(context.Background(), init); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if init.calls != 2 {
		t.Fatalf("expected 2 retries before success, got %d", init.calls)
	}
}

func TestInitiateRestartGivesUpAfterTenAttempts(t *testing.T) {
	restartRetrySleep = time.Millisecond
	defer func() { restartRetrySleep = time.Second }()

	init := &scriptedRestart{codes: []int{winconst.ErrorMachineLocked}}
	err := InitiateRestartWithRetry(context.Background(), init)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	var e *errs.Error
	if !errors.As(err, &e) || e.Kind != errs.KindRebootRequired {
		t.Fatalf("expected RebootRequired, got %v", err)
	}
}

func TestInitiateRestartStopsOnOtherErrors(t *testing.T) {
	init := &scriptedRestart{codes: []int{winconst.ErrorAccessDenied}}
	err := InitiateRestartWithRetry(context.Background(), init)
	if err == nil {
		t.Fatal("expected failure")
	}
	if init.calls != 0 {
		t.Fatalf("a non-retryable code should not retry, got %d retries", init.calls)
	}
}
