package executor

import (
	"context"
	"testing"

	"github.com/chainburn/chainburn/pkg/engine"
	"github.com/chainburn/chainburn/pkg/planner"
)

type fakeDispatcher struct {
	failPackageID string
	dispatched    []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, step engine.Step) (DispatchResult, error) {
	id := stepPackageID(step)
	f.dispatched = append(f.dispatched, id)
	if id == f.failPackageID {
		return DispatchResult{HResult: 1}, nil
	}
	return DispatchResult{}, nil
}

// TestExecutorRollbackOnSecondFailure is scenario 6: chain [I(A), I(B),
// I(C)], I(B) forced to fail; expect rollback of A only, C never executes.
func TestExecutorRollbackOnSecondFailure(t *testing.T) {
	a := &engine.Package{ID: "A", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{A}"}}
	b := &engine.Package{ID: "B", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{B}"}}
	c := &engine.Package{ID: "C", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{C}"}}

	plan := planner.New().Plan(planner.Input{BundleID: "bundle1", Chain: []*engine.Package{a, b, c}})

	dispatcher := &fakeDispatcher{failPackageID: "B"}
	ex := New(dispatcher, nil, nil, nil)

	run := ex.Run(context.Background(), plan)

	if run.Status != engine.RunFailed {
		t.Fatalf("expected RunFailed, got %v", run.Status)
	}

	want := []string{"A", "B", "A"} // execute(A), execute(B) fails, rollback(A)
	if len(dispatcher.dispatched) != len(want) {
		t.Fatalf("dispatched %v, want %v", dispatcher.dispatched, want)
	}
	for i := range want {
		if dispatcher.dispatched[i] != want[i] {
			t.Fatalf("dispatched %v, want %v", dispatcher.dispatched, want)
		}
	}
}

func TestExecutorSucceedsWithNoRollback(t *testing.T) {
	a := &engine.Package{ID: "A", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{A}"}}
	b := &engine.Package{ID: "B", Kind: engine.KindExe, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Permanent: true, Exe: &engine.ExeDetail{}}

	plan := planner.New().Plan(planner.Input{BundleID: "bundle1", Chain: []*engine.Package{a, b}})

	dispatcher := &fakeDispatcher{}
	ex := New(dispatcher, nil, nil, nil)

	run := ex.Run(context.Background(), plan)
	if run.Status != engine.RunSucceeded {
		t.Fatalf("expected RunSucceeded, got %v", run.Status)
	}
}

func TestExecutorCancellationTriggersRollback(t *testing.T) {
	a := &engine.Package{ID: "A", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{A}"}}
	b := &engine.Package{ID: "B", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{B}"}}

	plan := planner.New().Plan(planner.Input{BundleID: "bundle1", Chain: []*engine.Package{a, b}})

	dispatcher := &fakeDispatcher{}
	cancel := cancelAtPackage{target: "B"}
	ex := New(dispatcher, nil, nil, cancel)

	run := ex.Run(context.Background(), plan)
	if run.Status != engine.RunCancelled {
		t.Fatalf("expected RunCancelled, got %v", run.Status)
	}
	if len(dispatcher.dispatched) != 2 { // execute(A), rollback(A) — B never dispatched
		t.Fatalf("dispatched %v, expected only A's execute+rollback", dispatcher.dispatched)
	}
}

type recordingPublisher struct{ events []Event }

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.events = append(p.events, ev)
	return nil
}

func TestExecutorPublishesOverallProgress(t *testing.T) {
	a := &engine.Package{ID: "A", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{A}"}}
	b := &engine.Package{ID: "B", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{B}"}}

	plan := planner.New().Plan(planner.Input{BundleID: "bundle1", Chain: []*engine.Package{a, b}})

	pub := &recordingPublisher{}
	ex := New(&fakeDispatcher{}, nil, pub, nil)
	if run := ex.Run(context.Background(), plan); run.Status != engine.RunSucceeded {
		t.Fatalf("expected RunSucceeded, got %v", run.Status)
	}

	var overall []int
	for _, ev := range pub.events {
		if ev.Type == EventProgress {
			overall = append(overall, ev.OverallPct)
		}
	}
	if len(overall) == 0 {
		t.Fatal("no progress events published")
	}
	for i := 1; i < len(overall); i++ {
		if overall[i] < overall[i-1] {
			t.Fatalf("overall progress went backwards: %v", overall)
		}
	}
	if overall[len(overall)-1] != 100 {
		t.Fatalf("final overall progress = %d, want 100", overall[len(overall)-1])
	}
}

type cancelAtPackage struct{ target string }

func (c cancelAtPackage) ShouldCancel(ctx context.Context, packageID string) CancelDecision {
	if packageID == c.target {
		return CancelYes
	}
	return CancelNo
}
