// Package planner implements C5: turning each package's detected current
// state and requested state into execute/rollback actions (§4.5), then
// assembling those per-package decisions into one ordered engine.Plan.
package planner

import "github.com/chainburn/chainburn/pkg/engine"

// DecideAction implements the §4.5 action decision matrix for a single
// package. kind only matters for the ForceAbsent row, where Exe packages
// additionally require uninstallable.
func DecideAction(kind engine.Kind, current engine.CurrentState, requested engine.RequestedState, permanent, uninstallable, repairable bool) engine.Action {
	switch current {
	case engine.StatePresent, engine.StateSuperseded:
		switch requested {
		case engine.RequestPresent:
			return engine.ActionNone
		case engine.RequestRepair:
			if repairable {
				return engine.ActionRepair
			}
			return engine.ActionNone
		case engine.RequestAbsent, engine.RequestCache:
			if !permanent {
				return engine.ActionUninstall
			}
			return engine.ActionNone
		case engine.RequestForceAbsent:
			if kind == engine.KindExe && !uninstallable {
				return engine.ActionNone
			}
			return engine.ActionUninstall
		case engine.RequestForcePresent:
			return engine.ActionInstall
		default:
			return engine.ActionNone
		}
	case engine.StateObsolete, engine.StateAbsent:
		switch requested {
		case engine.RequestPresent, engine.RequestRepair, engine.RequestForcePresent:
			return engine.ActionInstall
		case engine.RequestForceAbsent:
			if uninstallable {
				return engine.ActionUninstall
			}
			return engine.ActionNone
		default:
			return engine.ActionNone
		}
	default:
		return engine.ActionNone
	}
}

// RollbackFor mirrors an execute action into the action that would restore
// the pre-execute state: Install undoes to Uninstall and vice versa; Repair
// and everything else has no rollback counterpart.
func RollbackFor(execute engine.Action) engine.Action {
	switch execute {
	case engine.ActionInstall:
		return engine.ActionUninstall
	case engine.ActionUninstall:
		return engine.ActionInstall
	default:
		return engine.ActionNone
	}
}

// AggregateMspPackageAction implements the MSP aggregate rule: the
// package-level execute action is the highest-priority action among its
// per-target actions (None < Install < Uninstall < Modify < Repair <
// MinorUpgrade), downgraded to None when the aggregate is Uninstall but at
// least one remaining installed target the patch applies to survives the
// uninstall — unregistering the patch entirely would break that target.
func AggregateMspPackageAction(perTarget []engine.Action, anyRemainingAppliesAfterUninstall bool) engine.Action {
	max := engine.ActionNone
	for _, a := range perTarget {
		if a > max {
			max = a
		}
	}
	if max == engine.ActionUninstall && anyRemainingAppliesAfterUninstall {
		return engine.ActionNone
	}
	return max
}

// DecidePackage sets Execute and Rollback on pkg from its current/requested
// state, per the matrix above.
func DecidePackage(pkg *engine.Package) {
	var uninstallable, repairable bool
	if pkg.Kind == engine.KindExe && pkg.Exe != nil {
		uninstallable = pkg.Exe.Uninstallable
		repairable = pkg.Exe.Repairable
	} else {
		uninstallable = true
		repairable = true
	}
	pkg.Execute = DecideAction(pkg.Kind, pkg.CurrentState, pkg.Requested, pkg.Permanent, uninstallable, repairable)
	pkg.Rollback = RollbackFor(pkg.Execute)
	if pkg.Permanent && pkg.Rollback == engine.ActionUninstall {
		// A permanent package is never uninstalled, not even to undo an
		// install that needs to roll back.
		pkg.Rollback = engine.ActionNone
	}
}

// DecideMspPackage sets Execute and Rollback on an MSP package from the
// per-target states the chained-patch targeting pass populated: each target
// runs through the same decision matrix against the package's requested
// state, and the package-level action is their aggregate. An MSP with no
// discovered targets has nothing to do.
func DecideMspPackage(pkg *engine.Package) {
	if pkg.Msp == nil || len(pkg.Msp.TargetProducts) == 0 {
		pkg.Execute = engine.ActionNone
		pkg.Rollback = engine.ActionNone
		return
	}
	perTarget := make([]engine.Action, 0, len(pkg.Msp.TargetProducts))
	remaining := false
	for _, t := range pkg.Msp.TargetProducts {
		a := DecideAction(engine.KindMsp, t.State, pkg.Requested, pkg.Permanent, true, true)
		perTarget = append(perTarget, a)
		// A target the patch stays applied to after the package-level
		// uninstall: it still holds the patch and nothing removes it.
		if a == engine.ActionNone && (t.State == engine.StatePresent || t.State == engine.StateSuperseded) {
			remaining = true
		}
	}
	pkg.Execute = AggregateMspPackageAction(perTarget, remaining)
	pkg.Rollback = RollbackFor(pkg.Execute)
	if pkg.Permanent && pkg.Rollback == engine.ActionUninstall {
		pkg.Rollback = engine.ActionNone
	}
}
