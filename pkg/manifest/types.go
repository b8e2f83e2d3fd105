package manifest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/chainburn/chainburn/pkg/engine"
	"github.com/chainburn/chainburn/pkg/search"
	"github.com/chainburn/chainburn/pkg/variables"
)

// PackageDecl is one <Kind>Package element of a bundle manifest: the common
// header fields plus a kind-specific detail block, still as loosely-typed
// CUE output (detail is decoded into the right struct once Kind is known).
type PackageDecl struct {
	ID                    string          `json:"id" validate:"required"`
	Kind                  string          `json:"kind" validate:"required,oneof=exe msi msp msu bundle"`
	Permanent             bool            `json:"permanent,omitempty"`
	PerMachine            bool            `json:"per_machine,omitempty"`
	CacheID               string          `json:"cache_id,omitempty"`
	Condition             string          `json:"condition,omitempty"`
	CanAffectRegistration bool            `json:"can_affect_registration,omitempty"`
	RollbackBoundary      string          `json:"rollback_boundary,omitempty"`
	Dependencies          []string        `json:"dependencies,omitempty"`
	Payloads              []PayloadDecl   `json:"payloads" validate:"required,min=1"`
	Detail                json.RawMessage `json:"detail" validate:"required"`
}

// PayloadDecl is one file a package needs cached/downloaded.
type PayloadDecl struct {
	ID       string `json:"id" validate:"required"`
	FilePath string `json:"file_path" validate:"required"`
	Hash     string `json:"hash,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Embedded bool   `json:"embedded,omitempty"`
}

// ExeDetailDecl is the CUE-decoded detail block for an ExePackage.
type ExeDetailDecl struct {
	Detection         string             `json:"detection,omitempty" validate:"omitempty,oneof=none condition arp"`
	DetectCondition   string             `json:"detect_condition,omitempty"`
	ArpDisplayVersion string             `json:"arp_display_version,omitempty"`
	InstallArguments  string             `json:"install_arguments,omitempty"`
	RepairArguments   string             `json:"repair_arguments,omitempty"`
	UninstallArguments string            `json:"uninstall_arguments,omitempty"`
	ExitCodes         []ExitCodeDecl     `json:"exit_codes,omitempty"`
	Protocol          string             `json:"protocol,omitempty" validate:"omitempty,oneof=none burn netfx4"`
	Repairable        bool               `json:"repairable,omitempty"`
	Uninstallable     bool               `json:"uninstallable,omitempty"`
}

// ExitCodeDecl maps one declared exit code (or "*" wildcard) to a behavior.
type ExitCodeDecl struct {
	Code     string `json:"code" validate:"required"`
	Behavior string `json:"behavior" validate:"required,oneof=success error scheduleReboot forceReboot errorScheduleReboot errorForceReboot"`
}

// MsiDetailDecl is the CUE-decoded detail block for an MsiPackage.
type MsiDetailDecl struct {
	ProductCode    string   `json:"product_code" validate:"required"`
	UpgradeCodes   []string `json:"upgrade_codes,omitempty"`
	Features       []string `json:"features,omitempty"`
	SlipstreamMsps []string `json:"slipstream_msps,omitempty"`
}

// MspDetailDecl is the CUE-decoded detail block for an MspPackage.
type MspDetailDecl struct {
	PatchCode     string           `json:"patch_code" validate:"required"`
	TargetProducts []MspTargetDecl `json:"target_products" validate:"required,min=1"`
}

// MspTargetDecl is one target product of an MspPackage.
type MspTargetDecl struct {
	ProductCode string `json:"product_code" validate:"required"`
	PerMachine  bool   `json:"per_machine,omitempty"`
	Slipstream  bool   `json:"slipstream,omitempty"`
}

// BundleDetailDecl is the CUE-decoded detail block for a related BundlePackage.
type BundleDetailDecl struct {
	Exe          ExeDetailDecl `json:"exe"`
	DetectCodes  []string      `json:"detect_codes,omitempty"`
	UpgradeCodes []string      `json:"upgrade_codes,omitempty"`
	AddonCodes   []string      `json:"addon_codes,omitempty"`
	PatchCodes   []string      `json:"patch_codes,omitempty"`
}

// VariableDecl declares an initial bundle variable.
type VariableDecl struct {
	Name      string `json:"name" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=numeric string formatted version"`
	Value     string `json:"value,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	Persisted bool   `json:"persisted,omitempty"`
}

// ComputedDecl derives one variable at manifest-load time: its Starlark
// script runs with `metadata` and the literal `variables` in scope, and the
// script's `value` global becomes the variable's value (string, int, or
// bool). Computed variables land after the literal declarations, so a
// script may build on them (e.g. derive an install-arguments string).
type ComputedDecl struct {
	Name   string `json:"name" validate:"required"`
	Script string `json:"script" validate:"required"`
}

// SearchDecl mirrors search.Decl in the manifest's wire shape before it is
// converted to the engine's typed Kind/RegistryRoot enums.
type SearchDecl struct {
	ID          string `json:"id" validate:"required"`
	Kind        string `json:"kind" validate:"required"`
	Condition   string `json:"condition,omitempty"`
	Variable    string `json:"variable,omitempty"`
	Win64       bool   `json:"win64,omitempty"`
	Path        string `json:"path,omitempty"`
	MinVersion  string `json:"min_version,omitempty"`
	Root        string `json:"root,omitempty"`
	Key         string `json:"key,omitempty"`
	Value       string `json:"value,omitempty"`
	ComponentID string `json:"component_id,omitempty"`
	ProductCode string `json:"product_code,omitempty"`
	Attribute   string `json:"attribute,omitempty"`
	Extension   string `json:"extension,omitempty"`
	Arg         string `json:"arg,omitempty"`
}

// RelatedBundleDecl declares one related-bundle relationship.
type RelatedBundleDecl struct {
	Code     string `json:"code" validate:"required"`
	Relation string `json:"relation" validate:"required,oneof=detect upgrade addon patch dependentAddon dependentPatch update chainPackage"`
}

// Metadata carries bundle identity, the same fields the BUNDLE_* builtins
// expose at runtime.
type Metadata struct {
	Name           string `json:"name" validate:"required"`
	Version        string `json:"version" validate:"required"`
	UpgradeCode    string `json:"upgrade_code,omitempty"`
	Manufacturer   string `json:"manufacturer,omitempty"`
	ProviderKey    string `json:"provider_key,omitempty"`
	Tag            string `json:"tag,omitempty"`
	EngineVersion  string `json:"engine_version,omitempty"`
}

// BundleManifest is the fully-decoded shape of a bundle's manifest.cue.
type BundleManifest struct {
	Metadata       Metadata            `json:"metadata" validate:"required"`
	Variables      []VariableDecl      `json:"variables,omitempty"`
	Computed       []ComputedDecl      `json:"computed,omitempty"`
	Searches       []SearchDecl        `json:"searches,omitempty"`
	Packages       []PackageDecl       `json:"packages" validate:"required,min=1"`
	RelatedBundles []RelatedBundleDecl `json:"related_bundles,omitempty"`
}

// ParsedManifest wraps a decoded BundleManifest with provenance and any
// validation diagnostics collected while loading it.
type ParsedManifest struct {
	Bundle      BundleManifest    `json:"bundle"`
	SourceFiles []string          `json:"source_files"`
	ParsedAt    time.Time         `json:"parsed_at"`
	Errors      []ValidationError `json:"errors,omitempty"`
}

// ValidationError carries a CUE path and human message for one problem
// found while loading or validating a manifest.
type ValidationError struct {
	File     string `json:"file,omitempty"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

// ConfigSource names where CUE input comes from.
type ConfigSource struct {
	Type    string `json:"type" validate:"required,oneof=file directory inline"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
}

// EvaluateOptions controls CUE evaluation behavior.
type EvaluateOptions struct {
	Tags            []string      `json:"tags,omitempty"`
	Concrete        bool          `json:"concrete"`
	ValidateSchemas bool          `json:"validate_schemas"`
	AllowStarlark   bool          `json:"allow_starlark"`
	StarlarkTimeout time.Duration `json:"starlark_timeout,omitempty"`
}

// StarlarkContext/StarlarkResult support manifest-time computed fields (a
// `computed` block may invoke a Starlark expression to derive e.g. an
// install-arguments string from other declared fields).
type StarlarkContext struct {
	Input   map[string]interface{} `json:"input,omitempty"`
	Timeout time.Duration          `json:"timeout"`
}

type StarlarkResult struct {
	Output        map[string]interface{} `json:"output,omitempty"`
	ExecutionTime time.Duration          `json:"execution_time"`
	Error         string                 `json:"error,omitempty"`
}

// ToEnginePackages converts every decoded PackageDecl into an engine.Package,
// decoding each kind's detail block into its typed struct.
func (pm *ParsedManifest) ToEnginePackages() ([]*engine.Package, error) {
	pkgs := make([]*engine.Package, 0, len(pm.Bundle.Packages))
	for _, pd := range pm.Bundle.Packages {
		pkg, err := decodePackage(pd)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", pd.ID, err)
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

func decodePackage(pd PackageDecl) (*engine.Package, error) {
	pkg := &engine.Package{
		ID:                    pd.ID,
		Permanent:             pd.Permanent,
		PerMachine:            pd.PerMachine,
		CacheID:               pd.CacheID,
		Condition:             pd.Condition,
		CanAffectRegistration: pd.CanAffectRegistration,
	}
	for _, p := range pd.Payloads {
		pkg.Payloads = append(pkg.Payloads, engine.Payload{
			ID: p.ID, FilePath: p.FilePath, Hash: p.Hash, Size: p.Size, Embedded: p.Embedded,
		})
	}
	for _, dep := range pd.Dependencies {
		pkg.Dependencies = append(pkg.Dependencies, engine.Dependency{PackageID: dep})
	}

	switch pd.Kind {
	case "exe":
		pkg.Kind = engine.KindExe
		detail, err := decodeExeDetail(pd.Detail)
		if err != nil {
			return nil, err
		}
		pkg.Exe = detail
	case "msi":
		pkg.Kind = engine.KindMsi
		var d MsiDetailDecl
		if err := json.Unmarshal(pd.Detail, &d); err != nil {
			return nil, fmt.Errorf("decoding msi detail: %w", err)
		}
		pkg.Msi = &engine.MsiDetail{
			ProductCode: d.ProductCode, UpgradeCodes: d.UpgradeCodes,
			Features: d.Features, SlipstreamMsps: d.SlipstreamMsps,
		}
	case "msp":
		pkg.Kind = engine.KindMsp
		var d MspDetailDecl
		if err := json.Unmarshal(pd.Detail, &d); err != nil {
			return nil, fmt.Errorf("decoding msp detail: %w", err)
		}
		targets := make([]engine.MspTarget, 0, len(d.TargetProducts))
		for i, t := range d.TargetProducts {
			targets = append(targets, engine.MspTarget{
				ProductCode: t.ProductCode, PerMachine: t.PerMachine, Sequence: i, Slipstream: t.Slipstream,
			})
		}
		pkg.Msp = &engine.MspDetail{PatchCode: d.PatchCode, TargetProducts: targets}
	case "bundle":
		pkg.Kind = engine.KindBundle
		var d BundleDetailDecl
		if err := json.Unmarshal(pd.Detail, &d); err != nil {
			return nil, fmt.Errorf("decoding bundle detail: %w", err)
		}
		exeDetail, err := exeDetailFromDecl(d.Exe)
		if err != nil {
			return nil, err
		}
		pkg.Bundle = &engine.BundleDetail{
			Exe: *exeDetail, DetectCodes: d.DetectCodes, UpgradeCodes: d.UpgradeCodes,
			AddonCodes: d.AddonCodes, PatchCodes: d.PatchCodes,
		}
	default:
		return nil, fmt.Errorf("unknown package kind %q", pd.Kind)
	}
	return pkg, nil
}

func decodeExeDetail(raw json.RawMessage) (*engine.ExeDetail, error) {
	var d ExeDetailDecl
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decoding exe detail: %w", err)
	}
	return exeDetailFromDecl(d)
}

func exeDetailFromDecl(d ExeDetailDecl) (*engine.ExeDetail, error) {
	detail := &engine.ExeDetail{
		DetectCondition:    d.DetectCondition,
		ArpDisplayVersion:  d.ArpDisplayVersion,
		InstallArguments:   d.InstallArguments,
		RepairArguments:    d.RepairArguments,
		UninstallArguments: d.UninstallArguments,
		Repairable:         d.Repairable,
		Uninstallable:      d.Uninstallable,
	}
	switch d.Detection {
	case "", "none":
		detail.Detection = engine.DetectNone
	case "condition":
		detail.Detection = engine.DetectCondition
	case "arp":
		detail.Detection = engine.DetectArp
	default:
		return nil, fmt.Errorf("unknown detection mode %q", d.Detection)
	}
	switch d.Protocol {
	case "", "none":
		detail.Protocol = engine.ProtocolNone
	case "burn":
		detail.Protocol = engine.ProtocolBurn
	case "netfx4":
		detail.Protocol = engine.ProtocolNetFx4
	default:
		return nil, fmt.Errorf("unknown protocol %q", d.Protocol)
	}
	table := engine.ExitCodeTable{}
	for _, ec := range d.ExitCodes {
		behavior, err := parseExitBehavior(ec.Behavior)
		if err != nil {
			return nil, err
		}
		if ec.Code == "*" {
			table.Entries = append(table.Entries, engine.ExitCodeEntry{Wildcard: true, Type: behavior})
			continue
		}
		var code int
		if _, err := fmt.Sscanf(ec.Code, "%d", &code); err != nil {
			return nil, fmt.Errorf("invalid exit code %q: %w", ec.Code, err)
		}
		table.Entries = append(table.Entries, engine.ExitCodeEntry{Code: code, Type: behavior})
	}
	detail.ExitCodes = table
	return detail, nil
}

func parseExitBehavior(s string) (engine.ExitCodeType, error) {
	switch s {
	case "success":
		return engine.ExitSuccess, nil
	case "error":
		return engine.ExitError, nil
	case "scheduleReboot":
		return engine.ExitScheduleReboot, nil
	case "forceReboot":
		return engine.ExitForceReboot, nil
	case "errorScheduleReboot":
		return engine.ExitErrorScheduleReboot, nil
	case "errorForceReboot":
		return engine.ExitErrorForceReboot, nil
	default:
		return 0, fmt.Errorf("unknown exit code behavior %q", s)
	}
}

// ToSearchDecls converts the manifest's SearchDecl wire shape to
// search.Decl, resolving the string-typed Kind/Root fields to their enums.
// Decl.As is not set and stays at ValueAuto.
func (pm *ParsedManifest) ToSearchDecls() ([]search.Decl, error) {
	decls := make([]search.Decl, 0, len(pm.Bundle.Searches))
	for _, sd := range pm.Bundle.Searches {
		kind, err := parseSearchKind(sd.Kind)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", sd.ID, err)
		}
		d := search.Decl{
			ID: sd.ID, Kind: kind, Condition: sd.Condition, Variable: sd.Variable, Win64: sd.Win64,
			Path: sd.Path, MinVersion: sd.MinVersion, Key: sd.Key, Value: sd.Value,
			ComponentID: sd.ComponentID, ProductCode: sd.ProductCode, Attribute: sd.Attribute,
			Extension: sd.Extension, Arg: sd.Arg,
		}
		if sd.Root != "" {
			root, err := parseRegistryRoot(sd.Root)
			if err != nil {
				return nil, fmt.Errorf("search %s: %w", sd.ID, err)
			}
			d.Root = root
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func parseSearchKind(s string) (search.Kind, error) {
	switch s {
	case "directory_exists":
		return search.KindDirectoryExists, nil
	case "file_exists":
		return search.KindFileExists, nil
	case "file_version":
		return search.KindFileVersion, nil
	case "file_path":
		return search.KindFilePath, nil
	case "registry_exists":
		return search.KindRegistryExists, nil
	case "registry_value":
		return search.KindRegistryValue, nil
	case "msi_component":
		return search.KindMsiComponent, nil
	case "msi_product":
		return search.KindMsiProduct, nil
	case "extension":
		return search.KindExtension, nil
	default:
		return 0, fmt.Errorf("unknown search kind %q", s)
	}
}

func parseRegistryRoot(s string) (search.RegistryRoot, error) {
	switch s {
	case "HKCR":
		return search.RootClassesRoot, nil
	case "HKCU":
		return search.RootCurrentUser, nil
	case "HKLM":
		return search.RootLocalMachine, nil
	case "HKU":
		return search.RootUsers, nil
	default:
		return 0, fmt.Errorf("unknown registry root %q", s)
	}
}

// VariableValue is one manifest-declared variable resolved to its typed
// store value.
type VariableValue struct {
	Name      string
	Value     variables.Value
	Hidden    bool
	Persisted bool
}

// ToVariableValues converts the manifest's variable declarations to typed
// store values, in declaration order.
func (pm *ParsedManifest) ToVariableValues() ([]VariableValue, error) {
	out := make([]VariableValue, 0, len(pm.Bundle.Variables))
	for _, vd := range pm.Bundle.Variables {
		vv := VariableValue{Name: vd.Name, Hidden: vd.Hidden, Persisted: vd.Persisted}
		switch vd.Type {
		case "numeric":
			n, err := strconv.ParseInt(vd.Value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("variable %s: %q is not a valid numeric value: %w", vd.Name, vd.Value, err)
			}
			vv.Value = variables.Numeric(n)
		case "string":
			vv.Value = variables.String(vd.Value)
		case "formatted":
			vv.Value = variables.Formatted(vd.Value)
		case "version":
			vv.Value = variables.VersionValue(variables.ParseVersion(vd.Value))
		default:
			return nil, fmt.Errorf("variable %s: unknown type %q", vd.Name, vd.Type)
		}
		out = append(out, vv)
	}
	return out, nil
}
