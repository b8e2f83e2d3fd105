package executor

import (
	"context"
	"time"

	"github.com/chainburn/chainburn/pkg/engine"
)

// EventType names a BA-facing execute event (§4.6 step 1, §5's BA event
// ordering Detect*->Plan*->Apply*->Cache*->Execute*).
type EventType string

const (
	EventExecuteBegin    EventType = "execute_begin"
	EventExecuteComplete EventType = "execute_complete"
	EventRollbackBegin   EventType = "rollback_begin"
	EventProgress        EventType = "progress"
	EventError           EventType = "error"
)

// Event is one BA-facing notification emitted while running a plan.
type Event struct {
	Type        EventType
	RunID       string
	PackageID   string
	Message     string
	HResult     int
	OverallPct  int
	PackagePct  int
	Timestamp   time.Time
}

// EventPublisher delivers Events to the bootstrapper application over the
// RPC transport (pkg/rpc). Kept as a narrow collaborator interface so the
// execute loop never depends on the wire format directly.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// CancelDecision is what the BA chooses in response to an ExecuteBegin or
// progress callback.
type CancelDecision int

const (
	CancelNo CancelDecision = iota
	CancelYes
)

// CancelPolicy asks the BA whether to cancel before/during an action.
type CancelPolicy interface {
	ShouldCancel(ctx context.Context, packageID string) CancelDecision
}

// DispatchResult is what a single package action dispatch returns: the
// HRESULT-shaped outcome code and restart requirement (§4.6 step 3).
type DispatchResult struct {
	HResult int
	Restart engine.RestartState
}

// Dispatcher performs one package action (install/uninstall/modify/repair/
// minor-upgrade) or MSP-target/related-bundle/dependency/cache-sync
// operation and reports the outcome. One Dispatcher implementation per
// action-carrying Step kind is expected; pkg/executor only orchestrates.
type Dispatcher interface {
	Dispatch(ctx context.Context, step engine.Step) (DispatchResult, error)
}

// Elevator forks and connects to the elevated companion process the first
// time a per-machine action needs it (§4.6 run modes: Elevated).
type Elevator interface {
	Connected() bool
	Connect(ctx context.Context) error
}
