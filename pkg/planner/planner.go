package planner

import "github.com/chainburn/chainburn/pkg/engine"

// Planner decides per-package actions and assembles them into a Plan.
type Planner struct{}

// New returns a ready-to-use Planner. It carries no state of its own: every
// input is explicit, so a Planner is safe to share and reuse across runs.
func New() *Planner {
	return &Planner{}
}

// Plan decides Execute/Rollback for every package in input.Chain — MSP
// packages aggregate their per-target actions (an MSP's action depends on
// its target list, populated by the chained-patch targeting pass, not a
// single current/requested pair) — and assembles the result into one Plan.
func (p *Planner) Plan(input Input) *engine.Plan {
	for _, pkg := range input.Chain {
		if pkg.Kind == engine.KindMsp {
			DecideMspPackage(pkg)
			continue
		}
		DecidePackage(pkg)
	}
	return BuildPlan(input)
}
