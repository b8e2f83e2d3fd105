package executor

import (
	"context"
	"strconv"
	"time"

	"github.com/chainburn/chainburn/internal/winconst"
	"github.com/chainburn/chainburn/pkg/errs"
)

// RestartInitiator asks the OS to begin a restart. The returned code is the
// Win32 error the OS reported; 0 means the restart was accepted.
type RestartInitiator interface {
	InitiateRestart(ctx context.Context) (int, error)
}

const restartRetryCount = 10

// Shortened by tests; one second between attempts otherwise.
var restartRetrySleep = time.Second

// InitiateRestartWithRetry drives one restart request, retrying when the OS
// reports the machine locked or not ready — a logged-in user with the
// workstation locked clears within a few seconds or not at all, so a short
// bounded retry is all that's worth doing before giving up.
func InitiateRestartWithRetry(ctx context.Context, init RestartInitiator) error {
	var code int
	var err error
	for attempt := 0; attempt < restartRetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errs.NewCancelled("restart initiation cancelled")
			case <-time.After(restartRetrySleep):
			}
		}
		code, err = init.InitiateRestart(ctx)
		if err != nil {
			return err
		}
		if code == 0 {
			return nil
		}
		if code != winconst.ErrorMachineLocked && code != winconst.ErrorNotReady {
			break
		}
	}
	// The machine still needs the restart; it just could not be started.
	return errs.New(errs.KindRebootRequired, "restart could not be initiated", nil).
		WithCode(strconv.Itoa(code))
}
