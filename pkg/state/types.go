package state

import (
	"context"
	"time"
)

// ResumeType mirrors the BURN_RESUME_TYPE states recorded under the
// bundle's uninstall registry key so a relaunch (after a reboot or a
// RunOnce invocation) knows what it is resuming.
type ResumeType string

const (
	// ResumeNone means no resume is pending; this is a fresh run.
	ResumeNone ResumeType = "none"
	// ResumeReboot means the engine scheduled a reboot and expects to be
	// relaunched afterward to finish the plan.
	ResumeReboot ResumeType = "reboot"
	// ResumeARP means the bundle was relaunched from Add/Remove Programs
	// (modify or uninstall) rather than from its original source.
	ResumeARP ResumeType = "arp"
	// ResumeInvokeNow means a RunOnce command line is pending and should
	// be invoked immediately on the next launch.
	ResumeInvokeNow ResumeType = "invoke-now"
)

// RegistrationType mirrors the bundle's ARP registration lifecycle state.
type RegistrationType string

const (
	RegistrationNone       RegistrationType = "none"
	RegistrationInProgress RegistrationType = "in-progress"
	RegistrationPresent    RegistrationType = "present"
)

// RelationType mirrors engine.RelationType for a cached related-bundle
// discovery record, kept independent of pkg/engine to avoid a persistence
// layer import cycle.
type RelationType string

const (
	RelationDetect         RelationType = "Detect"
	RelationUpgrade        RelationType = "Upgrade"
	RelationAddon          RelationType = "Addon"
	RelationPatch          RelationType = "Patch"
	RelationDependentAddon RelationType = "DependentAddon"
	RelationDependentPatch RelationType = "DependentPatch"
	RelationUpdate         RelationType = "Update"
	RelationChainPackage   RelationType = "ChainPackage"
)

// PersistedState is the engine resume state stored under the bundle's
// uninstall registry key. One row per bundle ID.
type PersistedState struct {
	BundleID          string           `json:"bundle_id"`
	Resume            ResumeType       `json:"resume"`
	ResumeCommandLine string           `json:"resume_command_line,omitempty"`
	RegistrationType  RegistrationType `json:"registration_type"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// LogPathEntry records one log file the engine opened for a bundle run, in
// the order it was opened. The registry key retains this history so a
// support bundle can locate every log a multi-run install produced.
type LogPathEntry struct {
	ID         int64     `json:"id"`
	BundleID   string    `json:"bundle_id"`
	Path       string    `json:"path"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RelatedBundleRecord is a cached related-bundle discovery result: the
// version, cache path, provider key, tag, and engine-protocol-version read
// from a candidate bundle's own registration key the last time detection
// ran.
type RelatedBundleRecord struct {
	BundleID      string       `json:"bundle_id"`
	ProviderKey   string       `json:"provider_key"`
	Tag           string       `json:"tag,omitempty"`
	Version       string       `json:"version"`
	CachePath     string       `json:"cache_path,omitempty"`
	EngineVersion string       `json:"engine_version,omitempty"`
	RelationType  RelationType `json:"relation_type"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Store is the persistence layer backing engine resume. It survives process
// restarts (reboot, elevation relaunch, RunOnce) so the engine can recover
// where it left off instead of restarting a plan from scratch.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	HealthCheck(ctx context.Context) error

	// GetPersistedState returns the resume state for bundleID, or a zero
	// PersistedState with Resume == ResumeNone if none has been recorded.
	GetPersistedState(ctx context.Context, bundleID string) (*PersistedState, error)
	// SavePersistedState upserts the resume state for a bundle.
	SavePersistedState(ctx context.Context, state *PersistedState) error
	// ClearResume resets a bundle's Resume/ResumeCommandLine to their
	// zero values once the pending resume has been consumed.
	ClearResume(ctx context.Context, bundleID string) error
	// ListPendingResumes returns every bundle whose Resume is not
	// ResumeNone, oldest update first, so a RunOnce launch can replay
	// pending command lines in the order they were recorded.
	ListPendingResumes(ctx context.Context) ([]PersistedState, error)

	// AppendLogPath records a newly opened log file for bundleID.
	AppendLogPath(ctx context.Context, bundleID, path string) error
	// ListLogPaths returns every recorded log path for bundleID, oldest
	// first.
	ListLogPaths(ctx context.Context, bundleID string) ([]LogPathEntry, error)

	// UpsertRelatedBundle caches a related-bundle discovery result.
	UpsertRelatedBundle(ctx context.Context, rec *RelatedBundleRecord) error
	// ListRelatedBundles returns every cached related-bundle record for
	// bundleID.
	ListRelatedBundles(ctx context.Context, bundleID string) ([]RelatedBundleRecord, error)
	// DeleteRelatedBundle drops a cached record no longer present on
	// re-detection.
	DeleteRelatedBundle(ctx context.Context, bundleID, providerKey string) error
}
