// Package planner implements C5, the plan computation engine: given each
// package's detected current state and the user's requested state, it
// decides execute/rollback actions (§4.5's decision matrix and MSP
// aggregate rule) and assembles them, in chain order, into one
// engine.Plan — rollback-boundary markers, dependency register/unregister
// ops, checkpoint-bounded execute/rollback pairs, cache-sync gating, and
// coalesced MspTargetOps for chained patches.
package planner
