package planner

import (
	"testing"

	"github.com/chainburn/chainburn/pkg/engine"
)

// TestPlanSimpleInstall is scenario 4: MSI A (Absent->Present) and a
// permanent Exe B (Absent->Present) both install; only A's install gets a
// rollback action since B is permanent.
func TestPlanSimpleInstall(t *testing.T) {
	a := &engine.Package{ID: "A", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{A}"}}
	b := &engine.Package{ID: "B", Kind: engine.KindExe, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Permanent: true, Exe: &engine.ExeDetail{}}

	p := New()
	plan := p.Plan(Input{BundleID: "bundle1", Chain: []*engine.Package{a, b}})

	if len(plan.Execute) != 4 {
		t.Fatalf("expected 4 execute steps, got %d: %+v", len(plan.Execute), plan.Execute)
	}
	if plan.Execute[0].Checkpoint == nil || plan.Execute[0].Checkpoint.ID != 1 {
		t.Fatalf("expected Checkpoint(1) first, got %+v", plan.Execute[0])
	}
	if plan.Execute[1].PackageOp == nil || plan.Execute[1].PackageOp.PackageID != "A" || plan.Execute[1].PackageOp.Action != engine.ActionInstall {
		t.Fatalf("expected Install(A) second, got %+v", plan.Execute[1])
	}
	if plan.Execute[2].Checkpoint == nil || plan.Execute[2].Checkpoint.ID != 2 {
		t.Fatalf("expected Checkpoint(2) third, got %+v", plan.Execute[2])
	}
	if plan.Execute[3].PackageOp == nil || plan.Execute[3].PackageOp.PackageID != "B" || plan.Execute[3].PackageOp.Action != engine.ActionInstall {
		t.Fatalf("expected Install(B) fourth, got %+v", plan.Execute[3])
	}

	if len(plan.Rollback) != 1 {
		t.Fatalf("expected 1 rollback step, got %d: %+v", len(plan.Rollback), plan.Rollback)
	}
	if plan.Rollback[0].PackageOp == nil || plan.Rollback[0].PackageOp.PackageID != "A" || plan.Rollback[0].PackageOp.Action != engine.ActionUninstall {
		t.Fatalf("expected Uninstall(A) as the only rollback step, got %+v", plan.Rollback[0])
	}
}

// TestPlanPatchCoalescing is scenario 5: MSP P1 targets X and Y, MSP P2
// targets X; both install. Execute should carry one MspTargetOp for X with
// both patches and one for Y with just P1.
func TestPlanPatchCoalescing(t *testing.T) {
	p1 := &engine.Package{
		ID: "P1", Kind: engine.KindMsp, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent,
		Execute: engine.ActionInstall, Rollback: engine.ActionUninstall,
		Msp: &engine.MspDetail{
			PatchCode: "{P1}",
			TargetProducts: []engine.MspTarget{
				{ProductCode: "X", Sequence: 1},
				{ProductCode: "Y", Sequence: 1},
			},
		},
	}
	p2 := &engine.Package{
		ID: "P2", Kind: engine.KindMsp, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent,
		Execute: engine.ActionInstall, Rollback: engine.ActionUninstall,
		Msp: &engine.MspDetail{
			PatchCode: "{P2}",
			TargetProducts: []engine.MspTarget{
				{ProductCode: "X", Sequence: 2},
			},
		},
	}

	plan := BuildPlan(Input{BundleID: "bundle1", Chain: []*engine.Package{p1, p2}})

	var xOp, yOp *engine.MspTargetOpStep
	for i := range plan.Execute {
		op := plan.Execute[i].MspTargetOp
		if op == nil {
			continue
		}
		switch op.TargetProductCode {
		case "X":
			xOp = op
		case "Y":
			yOp = op
		}
	}
	if xOp == nil || yOp == nil {
		t.Fatalf("expected MspTargetOps for both X and Y, execute=%+v", plan.Execute)
	}
	if len(xOp.Patches) != 2 || xOp.Patches[0].PackageID != "P1" || xOp.Patches[1].PackageID != "P2" {
		t.Fatalf("expected X target to carry [P1, P2] in sequence order, got %+v", xOp.Patches)
	}
	if len(yOp.Patches) != 1 || yOp.Patches[0].PackageID != "P1" {
		t.Fatalf("expected Y target to carry [P1] only, got %+v", yOp.Patches)
	}
}

// TestPlanRollbackOnSecondFailure is scenario 6: a chain [I(A), I(B), I(C)]
// assembles a rollback list whose entries mirror A and B's installs (C's
// own rollback is never reached at runtime since the executor stops at B,
// but the plan itself still carries one rollback entry per installing
// package — the executor, not the planner, decides how far back to run).
func TestPlanRollbackOnSecondFailure(t *testing.T) {
	a := &engine.Package{ID: "A", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{A}"}}
	b := &engine.Package{ID: "B", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{B}"}}
	c := &engine.Package{ID: "C", Kind: engine.KindMsi, CurrentState: engine.StateAbsent, Requested: engine.RequestPresent, Msi: &engine.MsiDetail{ProductCode: "{C}"}}

	p := New()
	plan := p.Plan(Input{BundleID: "bundle1", Chain: []*engine.Package{a, b, c}})

	if len(plan.Rollback) != 3 {
		t.Fatalf("expected 3 rollback steps, got %d: %+v", len(plan.Rollback), plan.Rollback)
	}
	for i, id := range []string{"A", "B", "C"} {
		op := plan.Rollback[i].PackageOp
		if op == nil || op.PackageID != id || op.Action != engine.ActionUninstall {
			t.Fatalf("rollback[%d]: expected Uninstall(%s), got %+v", i, id, plan.Rollback[i])
		}
	}
}

func TestRelatedBundleCommandLineOnlyForChainPackages(t *testing.T) {
	rb := RelatedBundlePlan{
		Bundle:         engine.RelatedBundle{Package: engine.Package{ID: "{RELATED}"}},
		Action:         engine.ActionUninstall,
		IsChainPackage: true,
	}
	cmd := relatedBundleCommandLine("bundle1", "", rb)
	want := []string{"-uninstall", "-chain", "-ignoredependencies=ALL", "-ancestors=bundle1", "-parent", "bundle1"}
	if len(cmd) != len(want) {
		t.Fatalf("got %v, want %v", cmd, want)
	}
	for i := range want {
		if cmd[i] != want[i] {
			t.Fatalf("got %v, want %v", cmd, want)
		}
	}

	rb.IsChainPackage = false
	if cmd := relatedBundleCommandLine("bundle1", "", rb); cmd != nil {
		t.Fatalf("expected no command line for a non-chain-package relation, got %v", cmd)
	}
}

func TestRelatedBundleCommandLineExtendsAncestorChain(t *testing.T) {
	rb := RelatedBundlePlan{
		Bundle:         engine.RelatedBundle{Package: engine.Package{ID: "{RELATED}"}},
		Action:         engine.ActionRepair,
		IsChainPackage: true,
	}
	cmd := relatedBundleCommandLine("bundle2", "bundle0;bundle1", rb)
	found := false
	for _, a := range cmd {
		if a == "-ancestors=bundle0;bundle1;bundle2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ancestor chain should gain this bundle, got %v", cmd)
	}
}
