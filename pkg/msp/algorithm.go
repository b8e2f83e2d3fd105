package msp

import "github.com/chainburn/chainburn/pkg/engine"

// Targeter runs the five-step chained-patch targeting algorithm (§4.7)
// against the collaborators it is given.
type Targeter struct {
	Catalog  ProductCatalog
	Fast     FastSequencer
	Fallback SequenceFallback
	States   PatchStateReader
}

// NewTargeter builds a Targeter from its four collaborators.
func NewTargeter(catalog ProductCatalog, fast FastSequencer, fallback SequenceFallback, states PatchStateReader) *Targeter {
	return &Targeter{Catalog: catalog, Fast: fast, Fallback: fallback, States: states}
}

// EnumerateCandidates implements step 1. A manifest may hint at an MSP's
// expected targets by pre-populating TargetProducts; when every MSP in the
// chain carries such a hint, the candidate set is the union of those codes
// plus every product related to them by upgrade code. Otherwise the
// candidate set is every installed product on the machine.
func (t *Targeter) EnumerateCandidates(chain []*engine.Package) ([]string, error) {
	allDeclared := true
	var declared []string
	sawMsp := false
	for _, pkg := range chain {
		if pkg.Kind != engine.KindMsp {
			continue
		}
		sawMsp = true
		if pkg.Msp == nil || len(pkg.Msp.TargetProducts) == 0 {
			allDeclared = false
			continue
		}
		for _, tp := range pkg.Msp.TargetProducts {
			declared = append(declared, tp.ProductCode)
		}
	}

	if sawMsp && allDeclared && len(declared) > 0 {
		set := make(map[string]struct{}, len(declared))
		for _, code := range declared {
			set[code] = struct{}{}
			related, err := t.Catalog.RelatedProducts(code)
			if err != nil {
				continue
			}
			for _, r := range related {
				set[r] = struct{}{}
			}
		}
		return setToSlice(set), nil
	}

	all, err := t.Catalog.AllInstalledProducts()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(all))
	for _, p := range all {
		set[p] = struct{}{}
	}
	return setToSlice(set), nil
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// TestApplicability implements step 2: for each candidate, prefer the fast
// local-package-path lookup and fall back to DeterminePatchSequence against
// the live product. Candidates the patch does not apply to are dropped
// silently, matching the installer's own "no applicable patch" result.
func (t *Targeter) TestApplicability(patchCode string, candidates []string) ([]engine.MspTarget, error) {
	var targets []engine.MspTarget
	for _, candidate := range candidates {
		var status ApplicabilityStatus
		var sequence int
		var err error

		if path, ok := t.Catalog.LocalPackagePath(candidate); ok {
			status, sequence, err = t.Fast.EvaluateApplicability(patchCode, path)
		} else {
			status, sequence, err = t.Fallback.DeterminePatchSequence(patchCode, candidate)
		}
		if err != nil || status != StatusOK {
			continue
		}
		targets = append(targets, engine.MspTarget{ProductCode: candidate, Sequence: sequence})
	}
	return targets, nil
}

// LinkChainTargets implements step 3: marks every target product that
// matches an MSI package in this bundle's chain as slipstream-compatible,
// and indexes the patch into that MSI's SlipstreamMsps list.
func LinkChainTargets(mspPkg *engine.Package, chain []*engine.Package) {
	if mspPkg.Msp == nil {
		return
	}
	for i := range mspPkg.Msp.TargetProducts {
		target := &mspPkg.Msp.TargetProducts[i]
		for _, candidate := range chain {
			if candidate.Kind != engine.KindMsi || candidate.Msi == nil {
				continue
			}
			if candidate.Msi.ProductCode != target.ProductCode {
				continue
			}
			target.Slipstream = true
			if !containsString(candidate.Msi.SlipstreamMsps, mspPkg.ID) {
				candidate.Msi.SlipstreamMsps = append(candidate.Msi.SlipstreamMsps, mspPkg.ID)
			}
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// UpdateTargetStates implements step 4's state read: fills in State for
// every target product of an MSP package from the live installer.
func (t *Targeter) UpdateTargetStates(mspPkg *engine.Package) error {
	if mspPkg.Msp == nil {
		return nil
	}
	for i := range mspPkg.Msp.TargetProducts {
		state, err := t.States.TargetState(mspPkg.Msp.PatchCode, mspPkg.Msp.TargetProducts[i].ProductCode)
		if err != nil {
			return err
		}
		mspPkg.Msp.TargetProducts[i].State = state
	}
	return nil
}

// stateRank orders CurrentState for the MSP "minimum across targets" rule
// (§4.4), which is NOT the same ordering as CurrentState's own iota values:
// Superseded is explicitly the highest, so Absent is the lowest/minimum.
func stateRank(s engine.CurrentState) int {
	switch s {
	case engine.StateAbsent:
		return 0
	case engine.StateObsolete:
		return 1
	case engine.StatePresent:
		return 2
	case engine.StateSuperseded:
		return 3
	default:
		return -1
	}
}

// ReducePackageState implements the package-level half of step 4: an MSP's
// own current_state is the minimum across every target's state.
func ReducePackageState(mspPkg *engine.Package) {
	if mspPkg.Msp == nil || len(mspPkg.Msp.TargetProducts) == 0 {
		mspPkg.CurrentState = engine.StateAbsent
		return
	}
	min := mspPkg.Msp.TargetProducts[0].State
	for _, t := range mspPkg.Msp.TargetProducts[1:] {
		if stateRank(t.State) < stateRank(min) {
			min = t.State
		}
	}
	mspPkg.CurrentState = min
}

// RunTargeting drives all four detect-time steps for one MSP package against
// the rest of the chain: enumerate, test, link, update states, reduce.
func (t *Targeter) RunTargeting(mspPkg *engine.Package, chain []*engine.Package) error {
	candidates, err := t.EnumerateCandidates(chain)
	if err != nil {
		return err
	}
	targets, err := t.TestApplicability(mspPkg.Msp.PatchCode, candidates)
	if err != nil {
		return err
	}
	mspPkg.Msp.TargetProducts = targets
	LinkChainTargets(mspPkg, chain)
	if err := t.UpdateTargetStates(mspPkg); err != nil {
		return err
	}
	ReducePackageState(mspPkg)
	return nil
}
