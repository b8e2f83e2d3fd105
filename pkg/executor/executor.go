package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chainburn/chainburn/pkg/engine"
)

// Executor runs one assembled Plan through the §4.6 execute loop: emit
// ExecuteBegin, honor BA cancellation, elevate on demand, dispatch the
// action, and roll back to the dominating checkpoint on failure.
type Executor struct {
	Dispatcher Dispatcher
	Elevator   Elevator
	Publisher  EventPublisher
	Cancel     CancelPolicy

	// NeedsElevation reports whether a step requires the elevated companion.
	// Left nil, every step runs unelevated.
	NeedsElevation func(engine.Step) bool
}

// New builds an Executor from its collaborators.
func New(dispatcher Dispatcher, elevator Elevator, publisher EventPublisher, cancel CancelPolicy) *Executor {
	return &Executor{Dispatcher: dispatcher, Elevator: elevator, Publisher: publisher, Cancel: cancel}
}

// stepPackageID extracts the package/target ID an execute step refers to,
// for event correlation and logging.
func stepPackageID(step engine.Step) string {
	switch {
	case step.PackageOp != nil:
		return step.PackageOp.PackageID
	case step.MspTargetOp != nil:
		return step.MspTargetOp.TargetProductCode
	case step.RelatedBundleOp != nil:
		return step.RelatedBundleOp.ProductCode
	case step.DependencyOp != nil:
		return step.DependencyOp.PackageID
	case step.CacheSync != nil:
		return step.CacheSync.PackageID
	default:
		return ""
	}
}

// isDispatchable reports whether step carries an action a Dispatcher should
// run, as opposed to a pure bookkeeping marker (Checkpoint/RollbackBoundary).
func isDispatchable(step engine.Step) bool {
	return step.PackageOp != nil || step.MspTargetOp != nil || step.RelatedBundleOp != nil ||
		step.DependencyOp != nil || step.CacheSync != nil
}

// Run drives plan.Execute front-to-back. On a dispatch failure it rolls
// back plan.Rollback[:cutoff] in reverse order, where cutoff is the
// CheckpointRollbackLen recorded for the most recently passed checkpoint,
// and returns the original failure.
func (ex *Executor) Run(ctx context.Context, plan *engine.Plan) *engine.Run {
	run := &engine.Run{ID: uuid.NewString(), PlanID: plan.ID, Status: engine.RunRunning, FailedAt: -1}

	total := 0
	for _, step := range plan.Execute {
		if isDispatchable(step) {
			total++
		}
	}

	lastCheckpointCutoff := 0
	completed := 0

	for i, step := range plan.Execute {
		if step.Checkpoint != nil {
			if cutoff, ok := plan.CheckpointRollbackLen[step.Checkpoint.ID]; ok {
				lastCheckpointCutoff = cutoff
			}
			continue
		}
		if !isDispatchable(step) {
			continue
		}

		pkgID := stepPackageID(step)
		ex.publish(ctx, Event{Type: EventExecuteBegin, RunID: run.ID, PackageID: pkgID, Timestamp: now()})

		if ex.Cancel != nil && ex.Cancel.ShouldCancel(ctx, pkgID) == CancelYes {
			run.Status = engine.RunCancelled
			run.FailedAt = i
			ex.rollback(ctx, run, plan, lastCheckpointCutoff)
			return run
		}

		if ex.NeedsElevation != nil && ex.NeedsElevation(step) && ex.Elevator != nil && !ex.Elevator.Connected() {
			if err := ex.Elevator.Connect(ctx); err != nil {
				run.Status = engine.RunFailed
				run.FailedAt = i
				ex.publish(ctx, Event{Type: EventError, RunID: run.ID, PackageID: pkgID, Message: err.Error(), Timestamp: now()})
				ex.rollback(ctx, run, plan, lastCheckpointCutoff)
				return run
			}
		}

		result, err := ex.Dispatcher.Dispatch(ctx, step)
		if err != nil || result.HResult != 0 {
			run.Status = engine.RunFailed
			run.FailedAt = i
			run.FailureCode = result.HResult
			ex.publish(ctx, Event{Type: EventError, RunID: run.ID, PackageID: pkgID, HResult: result.HResult, Timestamp: now()})
			ex.rollback(ctx, run, plan, lastCheckpointCutoff)
			return run
		}

		if result.Restart > run.RestartState {
			run.RestartState = result.Restart
		}

		completed++
		ex.publish(ctx, Event{Type: EventExecuteComplete, RunID: run.ID, PackageID: pkgID, Timestamp: now()})
		ex.publish(ctx, Event{Type: EventProgress, RunID: run.ID, PackageID: pkgID, PackagePct: 100, OverallPct: completed * 100 / total, Timestamp: now()})
	}

	run.Status = engine.RunSucceeded
	return run
}

// rollback runs plan.Rollback[:cutoff] in reverse order (LIFO), ignoring
// Checkpoint/RollbackBoundary markers, best-effort: a rollback dispatch
// failure is reported but does not stop the remaining undo steps.
func (ex *Executor) rollback(ctx context.Context, run *engine.Run, plan *engine.Plan, cutoff int) {
	if cutoff > len(plan.Rollback) {
		cutoff = len(plan.Rollback)
	}
	ex.publish(ctx, Event{Type: EventRollbackBegin, RunID: run.ID, Timestamp: now()})

	for i := cutoff - 1; i >= 0; i-- {
		step := plan.Rollback[i]
		if !isDispatchable(step) {
			continue
		}
		pkgID := stepPackageID(step)
		if _, err := ex.Dispatcher.Dispatch(ctx, step); err != nil {
			ex.publish(ctx, Event{Type: EventError, RunID: run.ID, PackageID: pkgID, Message: err.Error(), Timestamp: now()})
		}
	}
}

func (ex *Executor) publish(ctx context.Context, event Event) {
	if ex.Publisher == nil {
		return
	}
	_ = ex.Publisher.Publish(ctx, event)
}

// now is a seam so tests can run without depending on wall-clock ordering.
var now = time.Now
