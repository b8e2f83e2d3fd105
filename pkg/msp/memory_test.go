package msp

import (
	"testing"

	"github.com/chainburn/chainburn/pkg/engine"
)

// Runs the whole targeting pass against the seedable shims rather than the
// per-test fakes, the same way the CLI wires them.
func TestRunTargetingAgainstMemCollaborators(t *testing.T) {
	catalog := NewMemCatalog()
	catalog.SeedInstalled("{PRODUCT-X}")
	catalog.SeedInstalled("{PRODUCT-Y}")

	seq := NewMemSequencer()
	seq.SeedApplicable("{PATCH-1}", "{PRODUCT-X}", 2)
	seq.SeedApplicable("{PATCH-1}", "{PRODUCT-Y}", 1)

	states := NewMemPatchStates()
	states.Seed("{PATCH-1}", "{PRODUCT-X}", engine.StateAbsent)
	states.Seed("{PATCH-1}", "{PRODUCT-Y}", engine.StatePresent)

	mspPkg := &engine.Package{ID: "P1", Kind: engine.KindMsp,
		Msp: &engine.MspDetail{PatchCode: "{PATCH-1}"}}
	msiPkg := &engine.Package{ID: "X", Kind: engine.KindMsi,
		Msi: &engine.MsiDetail{ProductCode: "{PRODUCT-X}"}}
	chain := []*engine.Package{msiPkg, mspPkg}

	targeter := NewTargeter(catalog, seq, seq, states)
	if err := targeter.RunTargeting(mspPkg, chain); err != nil {
		t.Fatalf("RunTargeting: %v", err)
	}

	if len(mspPkg.Msp.TargetProducts) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(mspPkg.Msp.TargetProducts))
	}
	for _, target := range mspPkg.Msp.TargetProducts {
		switch target.ProductCode {
		case "{PRODUCT-X}":
			if !target.Slipstream {
				t.Error("product X matches a chain MSI, should be slipstream-compatible")
			}
			if target.State != engine.StateAbsent {
				t.Errorf("product X state = %v, want Absent", target.State)
			}
		case "{PRODUCT-Y}":
			if target.Slipstream {
				t.Error("product Y is not in the chain, should not be slipstream")
			}
		default:
			t.Errorf("unexpected target %q", target.ProductCode)
		}
	}
	if len(msiPkg.Msi.SlipstreamMsps) != 1 || msiPkg.Msi.SlipstreamMsps[0] != "P1" {
		t.Fatalf("chain MSI should index the patch, got %v", msiPkg.Msi.SlipstreamMsps)
	}
	// Package state is the minimum across targets; Absent is the lowest.
	if mspPkg.CurrentState != engine.StateAbsent {
		t.Fatalf("package state = %v, want Absent", mspPkg.CurrentState)
	}
}

func TestMemSequencerFastPathKeysOnLocalPackagePath(t *testing.T) {
	catalog := NewMemCatalog()
	catalog.SeedInstalled("{PRODUCT-X}")
	catalog.SeedLocalPackage("{PRODUCT-X}", `C:\cache\x.msi`)

	seq := NewMemSequencer()
	seq.SeedApplicable("{PATCH-1}", `C:\cache\x.msi`, 5)

	targeter := NewTargeter(catalog, seq, seq, NewMemPatchStates())
	targets, err := targeter.TestApplicability("{PATCH-1}", []string{"{PRODUCT-X}"})
	if err != nil {
		t.Fatalf("TestApplicability: %v", err)
	}
	if len(targets) != 1 || targets[0].Sequence != 5 {
		t.Fatalf("fast path should apply with sequence 5, got %+v", targets)
	}
}
