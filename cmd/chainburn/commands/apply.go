package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainburn/chainburn/internal/winconst"
	"github.com/chainburn/chainburn/pkg/condition"
	"github.com/chainburn/chainburn/pkg/engine"
	"github.com/chainburn/chainburn/pkg/executor"
	"github.com/chainburn/chainburn/pkg/manifest"
	"github.com/chainburn/chainburn/pkg/planner"
	"github.com/chainburn/chainburn/pkg/search"
	"github.com/chainburn/chainburn/pkg/state"
	"github.com/chainburn/chainburn/pkg/telemetry"
	"github.com/chainburn/chainburn/pkg/variables"
)

// runApply is the chainburn CLI's single command: parse the bundle manifest,
// detect package state, plan a chain of actions and execute it. It plays the
// role the real Burn engine's WixBundleManagerApplicationProc loop plays,
// minus the bootstrapper-application UI, which this CLI has none of.
func runApply(ctx context.Context, args []string) error {
	if opts.manifestPath == "" {
		return fmt.Errorf("apply: -manifest is required")
	}

	tel, err := newTelemetry()
	if err != nil {
		return fmt.Errorf("apply: init telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())
	if err := tel.StartMetricsServer(); err != nil {
		tel.Logger.WithError(err).Warn("metrics server did not start")
	}
	ctx = tel.WithContext(ctx)

	logger := tel.Logger.NewComponentLogger("apply").Zerolog()
	if opts.quiet {
		logger = logger.Level(zerolog.WarnLevel)
	}

	parser := manifest.NewCUEParser()
	parsed, err := parser.Parse(ctx, []string{opts.manifestPath})
	if err != nil {
		return fmt.Errorf("apply: parse manifest: %w", err)
	}

	packages, err := parsed.ToEnginePackages()
	if err != nil {
		return fmt.Errorf("apply: decode packages: %w", err)
	}
	decls, err := parsed.ToSearchDecls()
	if err != nil {
		return fmt.Errorf("apply: decode searches: %w", err)
	}

	bundleID := opts.bundleID
	if bundleID == "" {
		bundleID = parsed.Bundle.Metadata.Name
	}

	varStore := variables.NewStore(&variables.OSBuiltins{Overrides: bundleBuiltinOverrides(bundleID)})
	seedManifestVariables(parsed, varStore, logger)
	applyVariableOverrides(args, varStore, logger)
	registry := search.NewMemRegistry()
	msiCatalog := search.NewMemMsiCatalog()
	searchEngine := search.NewEngine(search.OSFileProbe{}, registry, msiCatalog)

	for _, res := range searchEngine.ExecuteAll(ctx, decls, varStore) {
		if res.Err != nil {
			logger.Warn().Str("search", res.ID).Err(res.Err).Msg("search failed, continuing")
		}
	}

	evaluator := condition.NewEvaluator()
	requested := requestedStateFromFlags()

	chain := make([]*engine.Package, 0, len(packages))
	for _, pkg := range packages {
		eligible, err := pkg.EvaluateCondition(evaluator, varStore)
		if err != nil {
			return fmt.Errorf("apply: evaluate condition for %s: %w", pkg.ID, err)
		}
		if !eligible {
			continue
		}

		cur, err := detectState(pkg, evaluator, varStore, registry, msiCatalog)
		if err != nil {
			return fmt.Errorf("apply: detect %s: %w", pkg.ID, err)
		}
		pkg.CurrentState = cur
		pkg.Requested = requested
		chain = append(chain, pkg)
	}

	targeter := newPatchTargeter(chain)
	for _, pkg := range chain {
		if pkg.Kind != engine.KindMsp || pkg.Msp == nil {
			continue
		}
		if err := targeter.RunTargeting(pkg, chain); err != nil {
			logger.Warn().Str("package", pkg.ID).Err(err).Msg("patch targeting failed, patch will not be applied")
			pkg.Msp.TargetProducts = nil
		}
	}

	plan := planner.New().Plan(planner.Input{
		BundleID:           bundleID,
		Chain:              chain,
		RollbackBoundaries: rollbackBoundaries(parsed),
		CacheDependent:     cacheDependentPackages(chain),
		RelatedBundles:     discoverRelatedBundles(parsed.Bundle.RelatedBundles, registry, requested, opts.ignoreDependencies),
		Ancestors:          opts.ancestors,
	})

	elevator := newCompanionElevator(logger)
	defer func() {
		if elevator.Connected() {
			_ = elevator.Close()
		}
	}()

	// An embedded launch reports to the parent bundle instead of a local
	// log-only sink, and honors the parent's Cancel replies.
	var publisher executor.EventPublisher = loggingPublisher{logger: logger}
	var cancelPolicy executor.CancelPolicy = neverCancel{}
	if embeddedParent != nil {
		publisher = embeddedParent
		cancelPolicy = embeddedParent
	}

	ex := &executor.Executor{
		Dispatcher: newLocalDispatcher(chain, elevator, logger),
		Elevator:   elevator,
		Publisher:  publisher,
		Cancel:     cancelPolicy,
	}

	runCtx := telemetry.WithRunContext(ctx, plan.ID, bundleID)
	run := ex.Run(runCtx, plan)
	telemetry.EndRunContext(runCtx, plan.ID, string(run.Status), runError(run))

	if err := persistRunState(ctx, bundleID, run); err != nil {
		logger.Warn().Err(err).Msg("failed to persist resume state")
	}

	if run.RestartState == engine.RestartInitiated && !opts.norestart {
		if err := executor.InitiateRestartWithRetry(ctx, loggingRestart{logger: logger}); err != nil {
			logger.Warn().Err(err).Msg("restart was not initiated")
		}
	}

	return exitForRun(run)
}

// newTelemetry builds the telemetry stack for one apply invocation, honoring
// -quiet the same way the raw zerolog logger used to.
func newTelemetry() (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	if opts.quiet {
		cfg.Logging.Level = "warn"
	}
	if opts.logPath != "" {
		// A leading "!" is the append form of -log; the sink always
		// appends, so only the path itself matters here.
		cfg.Logging.Output = strings.TrimPrefix(opts.logPath, "!")
	}
	return telemetry.NewTelemetry(cfg)
}

// runError reports the run's failure as an error for telemetry purposes, or
// nil on success, mirroring the same failure formatting exitForRun uses.
func runError(run *engine.Run) error {
	if run.Status == engine.RunSucceeded {
		return nil
	}
	return fmt.Errorf("run %s failed at step %d (hresult 0x%08x)", run.ID, run.FailedAt, uint32(run.FailureCode))
}

// bundleBuiltinOverrides populates the engine-managed read-only builtin
// names for this run, so manifest conditions and formatted values can
// reference the bundle identity, the requested action, and the layout
// target the way they reference OS-derived builtins.
func bundleBuiltinOverrides(bundleID string) map[string]variables.Value {
	action := "install"
	switch {
	case opts.uninstall:
		action = "uninstall"
	case opts.repair:
		action = "repair"
	case opts.modify:
		action = "modify"
	case opts.layout:
		action = "layout"
	}
	ov := map[string]variables.Value{
		"WixBundleName":              variables.String(bundleID),
		"BUNDLE_COMMAND_LINE_ACTION": variables.String(action),
		"BUNDLE_ORIGINAL_SOURCE":     variables.String(opts.manifestPath),
	}
	if opts.layoutDir != "" {
		ov["BUNDLE_LAYOUT_DIRECTORY"] = variables.String(opts.layoutDir)
	}
	return ov
}

// seedManifestVariables writes the manifest's declared variables into the
// store before searches run, so searches and conditions see them. Failures
// are warnings, not fatal: a bad declaration should not sink the run.
func seedManifestVariables(parsed *manifest.ParsedManifest, store *variables.Store, logger zerolog.Logger) {
	vals, err := parsed.ToVariableValues()
	if err != nil {
		logger.Warn().Err(err).Msg("skipping manifest variables")
		return
	}
	for _, vv := range vals {
		setOpts := variables.SetOptions{Hidden: vv.Hidden, Persisted: vv.Persisted, Overwrite: true}
		var err error
		switch vv.Value.Type {
		case variables.TypeNumeric:
			err = store.SetNumeric(vv.Name, vv.Value.Numeric, setOpts)
		case variables.TypeFormatted:
			err = store.SetFormatted(vv.Name, vv.Value.Text, setOpts)
		case variables.TypeVersion:
			err = store.SetVersion(vv.Name, vv.Value.Version, setOpts)
		default:
			err = store.SetString(vv.Name, vv.Value.Text, setOpts)
		}
		if err != nil {
			logger.Warn().Str("variable", vv.Name).Err(err).Msg("manifest variable not set")
		}
	}
}

// applyVariableOverrides applies free-form KEY=VALUE command-line tokens as
// string writes over the manifest's declared values. Best effort: a
// read-only or otherwise refused name logs a warning and the run continues.
func applyVariableOverrides(args []string, store *variables.Store, logger zerolog.Logger) {
	for _, a := range args {
		eq := strings.IndexByte(a, '=')
		if eq <= 0 {
			continue
		}
		name, value := a[:eq], a[eq+1:]
		if err := store.SetString(name, value, variables.SetOptions{Overwrite: true}); err != nil {
			logger.Warn().Str("variable", name).Err(err).Msg("command-line override not applied")
		}
	}
}

// rollbackBoundaries collects the manifest's declared rollback boundaries,
// each emitted immediately before its declaring package in chain order.
func rollbackBoundaries(parsed *manifest.ParsedManifest) []planner.RollbackBoundaryDecl {
	var decls []planner.RollbackBoundaryDecl
	for _, pd := range parsed.Bundle.Packages {
		if pd.RollbackBoundary == "" {
			continue
		}
		decls = append(decls, planner.RollbackBoundaryDecl{BeforePackageID: pd.ID, ID: pd.RollbackBoundary})
	}
	return decls
}

// cacheDependentPackages marks every package with a payload that is not
// embedded in the bundle image: its execute step must wait for the cache
// pipeline to signal the payload acquired.
func cacheDependentPackages(chain []*engine.Package) map[string]bool {
	dep := make(map[string]bool)
	for _, pkg := range chain {
		for _, p := range pkg.Payloads {
			if !p.Embedded {
				dep[pkg.ID] = true
				break
			}
		}
	}
	return dep
}

// requestedStateFromFlags maps the mutually-exclusive action flags to the
// single RequestedState applied to every package in the chain. chainburn's
// CLI has no per-feature selection, so one action covers the whole bundle.
func requestedStateFromFlags() engine.RequestedState {
	switch {
	case opts.uninstall:
		return engine.RequestAbsent
	case opts.repair:
		return engine.RequestRepair
	case opts.layout:
		return engine.RequestCache
	default:
		return engine.RequestPresent
	}
}

// loggingPublisher is the CLI's EventPublisher: with no bootstrapper
// application attached over RPC, execute events are just logged.
type loggingPublisher struct {
	logger zerolog.Logger
}

func (p loggingPublisher) Publish(_ context.Context, ev executor.Event) error {
	p.logger.Info().
		Str("event", string(ev.Type)).
		Str("package", ev.PackageID).
		Int("hresult", ev.HResult).
		Msg(ev.Message)
	return nil
}

// loggingRestart is the CLI's RestartInitiator: with no shutdown privilege
// to exercise on this host, the restart request is recorded and reported
// accepted, leaving the actual reboot to the operator.
type loggingRestart struct {
	logger zerolog.Logger
}

func (r loggingRestart) InitiateRestart(context.Context) (int, error) {
	r.logger.Info().Msg("restart requested by the plan; reboot the machine to complete installation")
	return 0, nil
}

// neverCancel never asks to abort a run; there is no interactive BA to ask.
type neverCancel struct{}

func (neverCancel) ShouldCancel(context.Context, string) executor.CancelDecision {
	return executor.CancelNo
}

func persistRunState(ctx context.Context, bundleID string, run *engine.Run) error {
	if opts.stateDBPath == "" {
		return nil
	}
	store, err := state.NewSQLiteStore(state.Config{Path: opts.stateDBPath})
	if err != nil {
		return err
	}
	defer store.Close()

	resume := state.ResumeNone
	switch run.RestartState {
	case engine.RestartRequired, engine.RestartInitiated:
		resume = state.ResumeReboot
	}
	if run.Status == engine.RunSucceeded && resume == state.ResumeNone {
		return store.ClearResume(ctx, bundleID)
	}
	return store.SavePersistedState(ctx, &state.PersistedState{
		BundleID:          bundleID,
		Resume:            resume,
		ResumeCommandLine: resumeCommandLine(os.Args[1:]),
		UpdatedAt:         time.Now(),
	})
}

// resumeCommandLine rebuilds the argv a post-reboot RunOnce relaunch
// replays: the original switches minus the role-selection ones, since the
// resumed process picks its own role fresh.
func resumeCommandLine(args []string) string {
	kept := make([]string, 0, len(args))
	for _, a := range args {
		if strings.HasPrefix(a, "-burn.") || strings.HasPrefix(a, "-clean-room=") {
			continue
		}
		kept = append(kept, a)
	}
	return strings.Join(kept, " ")
}

// exitForRun maps a finished Run onto a process exit code the way Burn
// maps its HRESULT/restart outcome onto setup.exe's own exit code.
func exitForRun(run *engine.Run) error {
	switch {
	case run.Status == engine.RunSucceeded && run.RestartState == engine.RestartInitiated:
		os.Exit(winconst.ExitSuccessRebootInitiated)
	case run.Status == engine.RunSucceeded && run.RestartState == engine.RestartRequired:
		os.Exit(winconst.ExitSuccessRebootRequired)
	case run.Status == engine.RunSucceeded:
		return nil
	}
	return fmt.Errorf("apply: %w", runError(run))
}
