// Package approval provides Open Policy Agent (OPA) integration gating the
// bootstrapper application's LaunchApprovedExe request (§6) against the
// bundle manifest's declared allow-list of approved executables.
//
// # Architecture
//
// The approval system has three parts:
//
//  1. Engine - compiles and evaluates Rego policies against a LaunchRequest
//  2. Loader - loads policy bundles from files, directories, or a single
//     JSON PolicyBundle document
//  3. Built-in policies - the allow-list, path-integrity, elevation-match,
//     and argument-safety rules every bundle gets for free
//
// # Usage
//
//	eng, err := approval.NewEngine(logger)
//	decision, err := eng.Evaluate(ctx, approval.LaunchRequest{
//	    Key:          "repair-tool",
//	    ResolvedPath: cachedPath,
//	    Declared:     manifestApprovedExes,
//	})
//	if !decision.Allowed {
//	    // deny the launch, surface decision.Violations to the BA
//	}
//
// # Severity levels
//
//   - info: informational only
//   - warning: reported but never denies a launch
//   - error / critical: denies the launch
package approval
