package telemetry

import (
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chainburn/chainburn/pkg/errs"
)

// Shutdown waits for the log-redirect pump, per role: the elevated
// companion may still be flushing a long privileged operation's log tail,
// the unelevated engine has no such excuse.
const (
	ElevatedLogShutdownWait   = 5 * time.Minute
	UnelevatedLogShutdownWait = 15 * time.Second
)

// LogRedirector serialises log lines written by arbitrary goroutines onto
// one pipe writer. Writers never touch the pipe directly: each Write queues
// the line and a single pump goroutine drains the queue in order, so
// interleaved half-lines from concurrent workers cannot reach the pipe.
type LogRedirector struct {
	lines     chan []byte
	group     *errgroup.Group
	closeOnce sync.Once
}

// NewLogRedirector starts the pump goroutine writing to pipe.
func NewLogRedirector(pipe io.Writer) *LogRedirector {
	r := &LogRedirector{lines: make(chan []byte, 256)}
	r.group = new(errgroup.Group)
	r.group.Go(func() error {
		for line := range r.lines {
			if _, err := pipe.Write(line); err != nil {
				// Drain the queue so writers never block on a dead pipe.
				for range r.lines {
				}
				return errs.New(errs.KindPipeClosed, "log redirect pipe write failed", err)
			}
		}
		return nil
	})
	return r
}

// Write implements io.Writer. The line is copied and queued; when the queue
// is full the line is dropped rather than blocking the worker that logged
// it.
func (r *LogRedirector) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	select {
	case r.lines <- line:
	default:
	}
	return len(p), nil
}

// Close stops accepting lines and waits up to timeout for the pump to
// drain what was already queued. A pump that cannot finish in time is
// abandoned and Cancelled is returned.
func (r *LogRedirector) Close(timeout time.Duration) error {
	r.closeOnce.Do(func() { close(r.lines) })
	done := make(chan error, 1)
	go func() { done <- r.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return errs.NewCancelled("log redirect pump did not drain in time")
	}
}
