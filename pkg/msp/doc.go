// Package msp implements the chained-patch (MSP) targeting algorithm (§4.7):
// discovering which installed products on the machine an MSP's applicability
// rules cover, linking those targets to MSI packages in the same chain, and
// reducing per-target state down to the package-level current_state the
// planner consumes.
//
// The five steps (candidate enumeration, per-candidate applicability,
// chain-MSI linking, per-target state, plan coalescing) map onto
// EnumerateCandidates, TestApplicability, LinkChainTargets, and
// ReducePackageState; plan coalescing itself lives in pkg/planner, which
// reads the TargetProducts this package populates.
package msp
