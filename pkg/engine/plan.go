package engine

import "github.com/google/uuid"

// DependencyDirection selects register vs. unregister for a DependencyOp.
type DependencyDirection int

const (
	DependencyRegister DependencyDirection = iota
	DependencyUnregister
)

// CacheEvent names the cache-pipeline signal a CacheSync step waits for.
type CacheEvent string

const (
	CacheEventAcquired   CacheEvent = "acquired"
	CacheEventVerified   CacheEvent = "verified"
	CacheEventRolledBack CacheEvent = "rolled_back"
)

// Step is one entry of a Plan's execute or rollback sequence. Exactly one
// concrete *Op type is non-nil per Step, one of a closed Action variant
// set: PackageOp, RelatedBundleOp, MspTargetOp, DependencyOp, CacheSync,
// Checkpoint, RollbackBoundary.
type Step struct {
	Checkpoint       *CheckpointStep
	RollbackBoundary *RollbackBoundaryStep
	PackageOp        *PackageOpStep
	RelatedBundleOp  *RelatedBundleOpStep
	MspTargetOp      *MspTargetOpStep
	DependencyOp     *DependencyOpStep
	CacheSync        *CacheSyncStep
}

type CheckpointStep struct{ ID int }

type RollbackBoundaryStep struct{ ID string }

type PackageOpStep struct {
	PackageID string
	Action    Action
}

type RelatedBundleOpStep struct {
	ProductCode string
	Action      Action
	CommandLine []string // e.g. -uninstall|-repair, -chain, -ignoredependencies=ALL, -parent <id>
}

// MspTargetOpStep coalesces every patch that targets the same product and
// scope into a single ordered-patches op (§4.5, §4.7 step 5).
type MspTargetOpStep struct {
	TargetProductCode string
	PerMachine        bool
	Action            Action
	Patches           []OrderedPatch
}

// OrderedPatch is one entry of an MspTargetOpStep's insertion-sorted list.
type OrderedPatch struct {
	PackageID string
	Sequence  int
}

// InsertSorted inserts patch into the op's Patches list, keeping it sorted
// ascending by Sequence and rejecting duplicate package IDs.
func (m *MspTargetOpStep) InsertSorted(patch OrderedPatch) {
	for _, p := range m.Patches {
		if p.PackageID == patch.PackageID {
			return
		}
	}
	i := 0
	for ; i < len(m.Patches); i++ {
		if m.Patches[i].Sequence > patch.Sequence {
			break
		}
	}
	m.Patches = append(m.Patches, OrderedPatch{})
	copy(m.Patches[i+1:], m.Patches[i:])
	m.Patches[i] = patch
}

type DependencyOpStep struct {
	PackageID string
	Direction DependencyDirection
}

type CacheSyncStep struct {
	PackageID string
	Event     CacheEvent
}

// Plan is the ordered result of §4.5 plan assembly: an execute sequence and
// the rollback sequence consumed in LIFO order on failure.
type Plan struct {
	ID              string
	Execute         []Step
	Rollback        []Step
	RequiresElevate bool
	LogPaths        map[string]string // package ID -> fully qualified log path

	// CheckpointRollbackLen maps a Checkpoint ID to how many leading entries
	// of Rollback were valid (i.e. belonged to an already-succeeded package)
	// at the moment that checkpoint was reached during assembly. On failure
	// at a given checkpoint, the executor rolls back exactly
	// Rollback[:CheckpointRollbackLen[id]], in reverse.
	CheckpointRollbackLen map[int]int
}

// NewPlan allocates an empty plan with a fresh ID.
func NewPlan() *Plan {
	return &Plan{ID: uuid.NewString(), LogPaths: make(map[string]string), CheckpointRollbackLen: make(map[int]int)}
}

// FindMspTargetOp scans the execute (or rollback) list for a compatible
// MspTargetOp — same action, per-machine scope, and target product — per the
// coalescing rule in §4.5 and §4.7 step 5.
func FindMspTargetOp(steps []Step, action Action, perMachine bool, target string) *MspTargetOpStep {
	for i := range steps {
		op := steps[i].MspTargetOp
		if op == nil {
			continue
		}
		if op.Action == action && op.PerMachine == perMachine && op.TargetProductCode == target {
			return op
		}
	}
	return nil
}

// RunStatus is the terminal or in-flight status of an Apply run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run records the outcome of executing a Plan.
type Run struct {
	ID          string
	PlanID      string
	Status      RunStatus
	FailedAt    int // index into Plan.Execute, -1 if none
	FailureCode int
	RestartState RestartState
}

// RestartState is one of None, Required, Initiated.
type RestartState int

const (
	RestartNone RestartState = iota
	RestartRequired
	RestartInitiated
)
