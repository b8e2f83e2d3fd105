package commands

import (
	"fmt"

	"github.com/chainburn/chainburn/internal/winconst"
	"github.com/chainburn/chainburn/pkg/condition"
	"github.com/chainburn/chainburn/pkg/engine"
	"github.com/chainburn/chainburn/pkg/manifest"
	"github.com/chainburn/chainburn/pkg/msp"
	"github.com/chainburn/chainburn/pkg/planner"
	"github.com/chainburn/chainburn/pkg/search"
	"github.com/chainburn/chainburn/pkg/variables"
)

// detectState resolves one package's CurrentState (§4.4) from its
// kind-specific detection strategy: an Exe package's DetectCondition
// evaluated against the search-populated variable store, an ARP registry
// probe for Exe/Msu/Bundle packages that detect that way, or an MsiProbe
// product-code lookup for Msi packages. No pack example carries this
// bridge — it is new glue between the already-built condition evaluator,
// variable store and search probes, and the engine's package model.
func detectState(pkg *engine.Package, eval *condition.Evaluator, vars *variables.Store, reg search.RegistryProbe, msi search.MsiProbe) (engine.CurrentState, error) {
	switch pkg.Kind {
	case engine.KindMsi:
		return detectMsiState(pkg, msi)
	case engine.KindExe:
		return detectExeState(pkg, eval, vars, reg)
	case engine.KindMsu, engine.KindBundle:
		return detectArpState(pkg, reg, arpCodesFor(pkg))
	case engine.KindMsp:
		// MSP current state is derived from its per-target applicability
		// (pkg/msp.Targeter), not a single detection probe; the package is
		// left at StateUnknown here, and the planner decides MSP packages
		// from their per-target states (DecideMspPackage).
		return engine.StateUnknown, nil
	default:
		return engine.StateUnknown, nil
	}
}

func detectExeState(pkg *engine.Package, eval *condition.Evaluator, vars *variables.Store, reg search.RegistryProbe) (engine.CurrentState, error) {
	if pkg.Exe == nil {
		return engine.StateAbsent, nil
	}
	switch pkg.Exe.Detection {
	case engine.DetectCondition:
		if pkg.Exe.DetectCondition == "" {
			return engine.StateAbsent, nil
		}
		present, err := eval.Evaluate(pkg.Exe.DetectCondition, vars)
		if err != nil {
			return engine.StateUnknown, fmt.Errorf("detect %s: %w", pkg.ID, err)
		}
		if present {
			return engine.StatePresent, nil
		}
		return engine.StateAbsent, nil
	case engine.DetectArp:
		return detectArpState(pkg, reg, []string{pkg.ID})
	default:
		// DetectNone: the package can't report its own state, so it is
		// always treated as absent and reinstalled.
		return engine.StateAbsent, nil
	}
}

func detectMsiState(pkg *engine.Package, msi search.MsiProbe) (engine.CurrentState, error) {
	if pkg.Msi == nil || pkg.Msi.ProductCode == "" || msi == nil {
		return engine.StateAbsent, nil
	}
	if _, err := msi.ProductAttribute(pkg.Msi.ProductCode, "version"); err != nil {
		return engine.StateAbsent, nil
	}
	return engine.StatePresent, nil
}

// detectArpState reports StatePresent if any of codes has an Add/Remove
// Programs uninstall key registered, the same detection path Burn uses for
// bundles and MSU packages that don't carry an MSI product code.
func detectArpState(pkg *engine.Package, reg search.RegistryProbe, codes []string) (engine.CurrentState, error) {
	if reg == nil {
		return engine.StateAbsent, nil
	}
	for _, code := range codes {
		if code == "" {
			continue
		}
		key := winconst.UninstallRegistryRoot + `\` + code
		exists, err := reg.Exists(search.RootLocalMachine, key, pkg.PerMachine)
		if err != nil {
			continue
		}
		if exists {
			return engine.StatePresent, nil
		}
	}
	return engine.StateAbsent, nil
}

func arpCodesFor(pkg *engine.Package) []string {
	if pkg.Bundle != nil && len(pkg.Bundle.DetectCodes) > 0 {
		return pkg.Bundle.DetectCodes
	}
	return []string{pkg.CacheID, pkg.ID}
}

// relationFromDecl maps a manifest relation string onto the engine's
// RelationType enum. Unknown strings fall back to the plain detect relation.
func relationFromDecl(s string) engine.RelationType {
	switch s {
	case "upgrade":
		return engine.RelationUpgrade
	case "addon":
		return engine.RelationAddon
	case "patch":
		return engine.RelationPatch
	case "dependentAddon":
		return engine.RelationDependentAddon
	case "dependentPatch":
		return engine.RelationDependentPatch
	case "update":
		return engine.RelationUpdate
	case "chainPackage":
		return engine.RelationChainPackage
	default:
		return engine.RelationDetect
	}
}

// discoverRelatedBundles resolves the manifest's related-bundle declarations
// against the ARP registry: a declared code whose uninstall key is present
// on the machine becomes a discovered RelatedBundle, and relations that act
// get a planned operation. Upgrade relations remove the older bundle when
// this one installs; addon and patch relations (dependent or not) follow
// this bundle off the machine on uninstall; chain-package relations run the
// chain command line for whatever action was requested. Detect and update
// relations are informational and plan nothing.
func discoverRelatedBundles(decls []manifest.RelatedBundleDecl, reg search.RegistryProbe, requested engine.RequestedState, ignoreDeps string) []planner.RelatedBundlePlan {
	var plans []planner.RelatedBundlePlan
	for _, decl := range decls {
		if reg == nil || decl.Code == "" {
			continue
		}
		key := winconst.UninstallRegistryRoot + `\` + decl.Code
		exists, err := reg.Exists(search.RootLocalMachine, key, true)
		if err != nil || !exists {
			continue
		}

		rel := relationFromDecl(decl.Relation)
		rb := engine.RelatedBundle{
			Package:          engine.Package{ID: decl.Code, Kind: engine.KindBundle},
			RelationType:     rel,
			PlanRelationType: rel,
		}
		if v, err := reg.Value(search.RootLocalMachine, key, "DisplayVersion", true); err == nil {
			rb.Version = v.AsString()
		}

		plan := planner.RelatedBundlePlan{Bundle: rb, Action: engine.ActionNone}
		switch rel {
		case engine.RelationUpgrade:
			if requested != engine.RequestAbsent && requested != engine.RequestForceAbsent {
				plan.Action = engine.ActionUninstall
			}
		case engine.RelationAddon, engine.RelationPatch,
			engine.RelationDependentAddon, engine.RelationDependentPatch:
			if requested == engine.RequestAbsent || requested == engine.RequestForceAbsent {
				plan.Action = engine.ActionUninstall
			}
		case engine.RelationChainPackage:
			plan.IsChainPackage = true
			plan.IgnoreDependencies = ignoreDeps
			switch requested {
			case engine.RequestAbsent, engine.RequestForceAbsent:
				plan.Action = engine.ActionUninstall
			case engine.RequestRepair:
				plan.Action = engine.ActionRepair
			default:
				plan.Action = engine.ActionInstall
			}
		}
		if plan.Action == engine.ActionNone && !plan.IsChainPackage {
			continue
		}
		plans = append(plans, plan)
	}
	return plans
}

// newPatchTargeter builds the chained-patch targeting collaborators for one
// run. With no live installer service on this host, the catalog and
// sequencer are seeded from what the run already knows: chain MSI products
// that detected Present form the installed-product universe, and each MSP's
// manifest-declared targets seed its applicability, so the full enumerate/
// test/link/reduce pass runs against the same state detect saw.
func newPatchTargeter(chain []*engine.Package) *msp.Targeter {
	catalog := msp.NewMemCatalog()
	seq := msp.NewMemSequencer()
	states := msp.NewMemPatchStates()
	for _, pkg := range chain {
		if pkg.Kind == engine.KindMsi && pkg.Msi != nil && pkg.CurrentState == engine.StatePresent {
			catalog.SeedInstalled(pkg.Msi.ProductCode)
		}
	}
	for _, pkg := range chain {
		if pkg.Kind != engine.KindMsp || pkg.Msp == nil {
			continue
		}
		for _, tgt := range pkg.Msp.TargetProducts {
			seq.SeedApplicable(pkg.Msp.PatchCode, tgt.ProductCode, tgt.Sequence)
		}
	}
	return msp.NewTargeter(catalog, seq, seq, states)
}
