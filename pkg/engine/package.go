package engine

import "github.com/chainburn/chainburn/pkg/condition"

// Kind discriminates the five package types the engine understands. The set
// is closed; dispatch on Kind is a switch, never an interface registry.
type Kind string

const (
	KindExe    Kind = "exe"
	KindMsi    Kind = "msi"
	KindMsp    Kind = "msp"
	KindMsu    Kind = "msu"
	KindBundle Kind = "bundle"
)

// CurrentState is the detected state of a package before planning.
type CurrentState int

const (
	StateUnknown CurrentState = iota
	StateObsolete
	StateAbsent
	StateCached
	StatePresent
	StateSuperseded
)

func (s CurrentState) String() string {
	switch s {
	case StateObsolete:
		return "obsolete"
	case StateAbsent:
		return "absent"
	case StateCached:
		return "cached"
	case StatePresent:
		return "present"
	case StateSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// RequestedState is the user-facing request carried on the command line or
// default manifest action.
type RequestedState int

const (
	RequestNone RequestedState = iota
	RequestPresent
	RequestAbsent
	RequestCache
	RequestRepair
	RequestForcePresent
	RequestForceAbsent
)

// Action is the execute/rollback action a plan assigns to a package.
type Action int

const (
	ActionNone Action = iota
	ActionInstall
	ActionUninstall
	ActionModify
	ActionRepair
	ActionMinorUpgrade
)

func (a Action) String() string {
	switch a {
	case ActionInstall:
		return "install"
	case ActionUninstall:
		return "uninstall"
	case ActionModify:
		return "modify"
	case ActionRepair:
		return "repair"
	case ActionMinorUpgrade:
		return "minor_upgrade"
	default:
		return "none"
	}
}

// RegistrationState tracks the dependency-manager provider-key registration
// of packages that can affect registration (§4.4).
type RegistrationState int

const (
	RegistrationUnknown RegistrationState = iota
	RegistrationIgnored
	RegistrationAbsent
	RegistrationPresent
)

// DetectionType is the Exe-kind detection strategy.
type DetectionType string

const (
	DetectNone      DetectionType = "none"
	DetectCondition DetectionType = "condition"
	DetectArp       DetectionType = "arp"
)

// ProtocolType selects how the executor talks to a running Exe/Bundle child.
type ProtocolType string

const (
	ProtocolNone    ProtocolType = "none"
	ProtocolBurn    ProtocolType = "embedded"
	ProtocolNetFx4  ProtocolType = "netfx4"
)

// ExitCodeType classifies one entry of a package's exit-code table.
type ExitCodeType int

const (
	ExitSuccess ExitCodeType = iota
	ExitError
	ExitScheduleReboot
	ExitForceReboot
	ExitErrorScheduleReboot
	ExitErrorForceReboot
)

// ExitCodeEntry maps one process exit code (or the wildcard) to its meaning.
// The wildcard entry has Wildcard=true and Code ignored.
type ExitCodeEntry struct {
	Code     int
	Wildcard bool
	Type     ExitCodeType
}

// ExitCodeTable resolves a raw process exit code into an ExitCodeType,
// falling back to a wildcard entry and then to well-known OS reboot codes
// (original_source/src/burn/engine/exeengine.cpp DetermineExitCodeType).
type ExitCodeTable struct {
	Entries []ExitCodeEntry
}

// well-known Windows reboot-request exit codes carried over from Burn's
// default exit-code table when the manifest supplies none.
var defaultRebootCodes = map[int]ExitCodeType{
	3010: ExitScheduleReboot, // ERROR_SUCCESS_REBOOT_REQUIRED
	1641: ExitForceReboot,    // ERROR_SUCCESS_REBOOT_INITIATED
	3011: ExitErrorScheduleReboot,
	1642: ExitErrorForceReboot,
}

// Resolve determines the ExitCodeType for a raw process exit code.
func (t ExitCodeTable) Resolve(code int) ExitCodeType {
	var wildcard *ExitCodeEntry
	for i := range t.Entries {
		e := &t.Entries[i]
		if e.Wildcard {
			wildcard = e
			continue
		}
		if e.Code == code {
			return e.Type
		}
	}
	if typ, ok := defaultRebootCodes[code]; ok {
		return typ
	}
	if wildcard != nil {
		return wildcard.Type
	}
	if code == 0 {
		return ExitSuccess
	}
	return ExitError
}

// Payload is a single file or blob belonging to a package's cache container.
type Payload struct {
	ID       string
	FilePath string
	Hash     string
	Size     int64
	Embedded bool
}

// ExeDetail carries Exe-kind-specific manifest fields.
type ExeDetail struct {
	Detection          DetectionType
	DetectCondition    string
	ArpDisplayVersion  string
	PerMachineArp      bool
	InstallArguments   string
	RepairArguments    string
	UninstallArguments string
	ExitCodes          ExitCodeTable
	Protocol           ProtocolType
	Repairable         bool
	Uninstallable      bool
}

// MsiDetail carries Msi-kind-specific manifest fields.
type MsiDetail struct {
	ProductCode    string
	UpgradeCodes   []string
	Features       []string
	SlipstreamMsps []string // package IDs of MSPs installed atomically with this MSI
}

// MspDetail carries Msp-kind-specific manifest fields.
type MspDetail struct {
	PatchCode string
	// TargetProducts is populated during detect (§4.7) — one entry per
	// installed product this patch was found to apply to.
	TargetProducts []MspTarget
}

// MspTarget is one (product, applicability) pair discovered for an MSP.
type MspTarget struct {
	ProductCode string
	PerMachine  bool
	Sequence    int
	State       CurrentState
	Slipstream  bool // true if ProductCode matches an MSI package in this chain
}

// BundleDetail carries Bundle-kind-specific manifest fields, mirroring Exe.
type BundleDetail struct {
	Exe          ExeDetail
	DetectCodes  []string
	UpgradeCodes []string
	AddonCodes   []string
	PatchCodes   []string
}

// Dependency records one package-to-package require/cache relationship
// expressed in the manifest.
type Dependency struct {
	PackageID string
}

// Package is the polymorphic chain entity (§3). Kind-specific detail lives
// in exactly one of the *Detail fields, selected by Kind.
type Package struct {
	ID               string
	Kind             Kind
	Permanent        bool
	PerMachine       bool
	CacheID          string
	CacheType        string
	Condition        string
	Payloads         []Payload
	Dependencies     []Dependency
	CanAffectRegistration bool

	Exe    *ExeDetail
	Msi    *MsiDetail
	Msp    *MspDetail
	Bundle *BundleDetail

	// Mutable state, set by Detect and Plan.
	CurrentState         CurrentState
	Requested            RequestedState
	Execute              Action
	Rollback             Action
	InstallRegistration  RegistrationState
}

// EvaluateCondition reports whether the package's install condition (if any)
// is true against the given evaluator. A package with no condition is always
// considered eligible.
func (p *Package) EvaluateCondition(eval *condition.Evaluator, vars condition.VariableSource) (bool, error) {
	if p.Condition == "" {
		return true, nil
	}
	return eval.Evaluate(p.Condition, vars)
}

// RelationType classifies a discovered RelatedBundle.
type RelationType string

const (
	RelationDetect         RelationType = "detect"
	RelationUpgrade        RelationType = "upgrade"
	RelationAddon          RelationType = "addon"
	RelationPatch          RelationType = "patch"
	RelationDependentAddon RelationType = "dependent_addon"
	RelationDependentPatch RelationType = "dependent_patch"
	RelationUpdate         RelationType = "update"
	RelationChainPackage   RelationType = "chain_package"
)

// RelatedBundle is an installed bundle discovered during C4 detect that
// matches one of this bundle's detect/upgrade/addon/patch codes.
type RelatedBundle struct {
	Package          Package
	RelationType     RelationType
	PlanRelationType RelationType
	Version          string
	ProviderKey      string
	Tag              string
	EngineVersion    int
}
