package planner

import "github.com/chainburn/chainburn/pkg/engine"

// RollbackBoundaryDecl declares a named rollback boundary (§4.5 step 1) that
// is emitted immediately before the named package in chain order.
type RollbackBoundaryDecl struct {
	BeforePackageID string
	ID              string
}

// RelatedBundlePlan is one related bundle's own plan contribution (§4.5
// step 5): a chain-package related bundle gets the chain command-line
// switches, anything else (a plain detect/upgrade/addon/patch relation)
// gets none.
type RelatedBundlePlan struct {
	Bundle           engine.RelatedBundle
	Action           engine.Action
	IsChainPackage   bool
	IgnoreDependencies string // "ALL" or a comma-joined list; empty omits the switch
}

// Input is everything BuildPlan needs to assemble one engine.Plan.
type Input struct {
	BundleID           string
	Chain              []*engine.Package
	RollbackBoundaries []RollbackBoundaryDecl
	CacheDependent     map[string]bool
	RelatedBundles     []RelatedBundlePlan
	// Ancestors is the semicolon-joined list of ancestor bundle codes
	// (§6 "-ancestors=<semi-list>") carried down to every chain-package
	// related bundle's command line. Empty omits the switch.
	Ancestors string
}

// BuildPlan runs the §4.5 plan-assembly algorithm over a chain whose
// packages already carry Execute/Rollback from DecidePackage (or the MSP
// aggregate rule), producing one ordered engine.Plan.
func BuildPlan(input Input) *engine.Plan {
	plan := engine.NewPlan()
	boundaryByPackage := make(map[string]string, len(input.RollbackBoundaries))
	for _, b := range input.RollbackBoundaries {
		boundaryByPackage[b.BeforePackageID] = b.ID
	}

	checkpointID := 0
	for _, pkg := range input.Chain {
		if boundaryID, ok := boundaryByPackage[pkg.ID]; ok {
			plan.Execute = append(plan.Execute, engine.Step{RollbackBoundary: &engine.RollbackBoundaryStep{ID: boundaryID}})
			plan.Rollback = append(plan.Rollback, engine.Step{RollbackBoundary: &engine.RollbackBoundaryStep{ID: boundaryID}})
		}

		if pkg.Execute == engine.ActionNone {
			continue
		}

		if pkg.Execute == engine.ActionInstall && pkg.CanAffectRegistration {
			plan.Execute = append(plan.Execute, engine.Step{DependencyOp: &engine.DependencyOpStep{PackageID: pkg.ID, Direction: engine.DependencyRegister}})
		}

		checkpointID++
		cp := checkpointID
		plan.Execute = append(plan.Execute, engine.Step{Checkpoint: &engine.CheckpointStep{ID: cp}})
		plan.CheckpointRollbackLen[cp] = len(plan.Rollback)

		if input.CacheDependent[pkg.ID] {
			plan.Execute = append(plan.Execute, engine.Step{CacheSync: &engine.CacheSyncStep{PackageID: pkg.ID, Event: engine.CacheEventAcquired}})
		}

		emitPackageOp(plan, pkg, pkg.Execute, false)

		if pkg.Execute == engine.ActionUninstall && pkg.CanAffectRegistration {
			plan.Execute = append(plan.Execute, engine.Step{DependencyOp: &engine.DependencyOpStep{PackageID: pkg.ID, Direction: engine.DependencyUnregister}})
		}

		if pkg.Rollback != engine.ActionNone {
			emitPackageOp(plan, pkg, pkg.Rollback, true)
			if input.CacheDependent[pkg.ID] {
				plan.Rollback = append(plan.Rollback, engine.Step{CacheSync: &engine.CacheSyncStep{PackageID: pkg.ID, Event: engine.CacheEventRolledBack}})
			}
		}
	}

	for _, rb := range input.RelatedBundles {
		cmdLine := relatedBundleCommandLine(input.BundleID, input.Ancestors, rb)
		plan.Execute = append(plan.Execute, engine.Step{RelatedBundleOp: &engine.RelatedBundleOpStep{
			ProductCode: rb.Bundle.Package.ID,
			Action:      rb.Action,
			CommandLine: cmdLine,
		}})
	}

	return plan
}

// emitPackageOp appends pkg's operation for action to the execute list (or
// the rollback list when rollback is true), coalescing MSP targets into a
// shared MspTargetOp per the §4.7 step-5 rule.
func emitPackageOp(plan *engine.Plan, pkg *engine.Package, action engine.Action, rollback bool) {
	steps := &plan.Execute
	if rollback {
		steps = &plan.Rollback
	}

	if pkg.Kind != engine.KindMsp || pkg.Msp == nil || len(pkg.Msp.TargetProducts) == 0 {
		*steps = append(*steps, engine.Step{PackageOp: &engine.PackageOpStep{PackageID: pkg.ID, Action: action}})
		return
	}

	for _, target := range pkg.Msp.TargetProducts {
		op := engine.FindMspTargetOp(*steps, action, target.PerMachine, target.ProductCode)
		if op == nil {
			*steps = append(*steps, engine.Step{MspTargetOp: &engine.MspTargetOpStep{
				TargetProductCode: target.ProductCode,
				PerMachine:        target.PerMachine,
				Action:            action,
			}})
			op = (*steps)[len(*steps)-1].MspTargetOp
		}
		op.InsertSorted(engine.OrderedPatch{PackageID: pkg.ID, Sequence: target.Sequence})
	}
}

// relatedBundleCommandLine builds the chain-package command line (§4.5 step
// 5, §4.6): -uninstall|-repair, -chain, -ignoredependencies=ALL, the
// ancestor chain extended with this bundle, and -parent <id>. Non-chain-
// package related bundles carry no command line at all.
func relatedBundleCommandLine(bundleID, ancestors string, rb RelatedBundlePlan) []string {
	if !rb.IsChainPackage {
		return nil
	}
	var cmd []string
	switch rb.Action {
	case engine.ActionUninstall:
		cmd = append(cmd, "-uninstall")
	case engine.ActionRepair:
		cmd = append(cmd, "-repair")
	}
	cmd = append(cmd, "-chain")
	ignore := rb.IgnoreDependencies
	if ignore == "" {
		ignore = "ALL"
	}
	cmd = append(cmd, "-ignoredependencies="+ignore)
	chain := bundleID
	if ancestors != "" {
		chain = ancestors + ";" + bundleID
	}
	cmd = append(cmd, "-ancestors="+chain)
	cmd = append(cmd, "-parent", bundleID)
	return cmd
}
