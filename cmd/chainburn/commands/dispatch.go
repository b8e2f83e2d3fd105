package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chainburn/chainburn/pkg/engine"
	"github.com/chainburn/chainburn/pkg/executor"
	"github.com/chainburn/chainburn/pkg/executor/elevated"
	"github.com/chainburn/chainburn/pkg/rpc"
	"github.com/chainburn/chainburn/pkg/telemetry"
)

// localDispatcher runs user-mode (non-per-machine) package actions directly
// in the engine process, and routes per-machine actions to the elevated
// companion over an rpc.Conn once one is connected.
type localDispatcher struct {
	packages map[string]*engine.Package
	runner   elevated.CommandRunner
	elevator *companionElevator
	logger   zerolog.Logger
}

func newLocalDispatcher(packages []*engine.Package, elevator *companionElevator, logger zerolog.Logger) *localDispatcher {
	byID := make(map[string]*engine.Package, len(packages))
	for _, p := range packages {
		byID[p.ID] = p
	}
	return &localDispatcher{packages: byID, runner: elevated.ExecRunner{}, elevator: elevator, logger: logger}
}

// Dispatch implements executor.Dispatcher.
func (d *localDispatcher) Dispatch(ctx context.Context, step engine.Step) (executor.DispatchResult, error) {
	switch {
	case step.PackageOp != nil:
		return d.dispatchPackageOp(ctx, step.PackageOp)
	case step.RelatedBundleOp != nil:
		return d.dispatchRelatedBundleOp(ctx, step.RelatedBundleOp)
	case step.DependencyOp != nil:
		return d.dispatchDependencyOp(ctx, step.DependencyOp)
	case step.CacheSync != nil:
		return d.dispatchCacheSync(ctx, step.CacheSync)
	case step.MspTargetOp != nil:
		return d.dispatchMspTargetOp(ctx, step.MspTargetOp)
	default:
		return executor.DispatchResult{}, nil
	}
}

func (d *localDispatcher) dispatchPackageOp(ctx context.Context, op *engine.PackageOpStep) (executor.DispatchResult, error) {
	pkg, ok := d.packages[op.PackageID]
	if !ok {
		return executor.DispatchResult{}, fmt.Errorf("dispatch: unknown package %s", op.PackageID)
	}

	switch pkg.Kind {
	case engine.KindExe:
		return d.dispatchExe(ctx, pkg, op.Action)
	case engine.KindMsi:
		return d.dispatchElevated(ctx, rpc.ElevatedMsgExecuteMsiPackage, pkg.Msi.ProductCode, op.Action)
	case engine.KindMsu:
		return d.dispatchElevated(ctx, rpc.ElevatedMsgExecuteMsuPackage, "", op.Action)
	case engine.KindBundle:
		return d.dispatchBundle(ctx, pkg, op.Action)
	default:
		return executor.DispatchResult{HResult: int(rpc.ENotImpl)}, nil
	}
}

// dispatchBundle launches a chained child bundle with the full chain
// command line (§4.6). A child that speaks the embedded protocol gets a
// -burn.embedded switch and is served over its stdio pipes until it exits;
// any other child is just monitored for its exit code.
func (d *localDispatcher) dispatchBundle(ctx context.Context, pkg *engine.Package, action engine.Action) (executor.DispatchResult, error) {
	if len(pkg.Payloads) == 0 {
		return executor.DispatchResult{}, fmt.Errorf("dispatch: bundle package %s has no payload", pkg.ID)
	}
	path := pkg.Payloads[0].FilePath

	detail := pkg.Bundle
	var argLine string
	if detail != nil {
		switch action {
		case engine.ActionUninstall:
			argLine = detail.Exe.UninstallArguments
		case engine.ActionRepair:
			argLine = detail.Exe.RepairArguments
		default:
			argLine = detail.Exe.InstallArguments
		}
	}

	childOpts := executor.ChildCommandLineOptions{
		CachedExecutablePath: path,
		Action:               action,
		ParentBundleID:       d.bundleID(),
		Ancestors:            append(splitList(opts.ancestors), d.bundleID()),
		IgnoreDependencies:   opts.ignoreDependencies,
		Quiet:                opts.quiet,
		UserArguments:        argLine,
	}
	args := executor.ChildArgs(childOpts)

	if detail != nil && detail.Exe.Protocol == engine.ProtocolBurn {
		return d.runEmbeddedBundle(ctx, pkg, path, args)
	}

	var exitCode int
	err := telemetry.RecordDispatchOperation(ctx, "local", string(action), func() error {
		var runErr error
		exitCode, runErr = d.runner.Run(ctx, path, args)
		return runErr
	})
	if err != nil {
		return executor.DispatchResult{HResult: int(rpc.EFail)}, err
	}
	return resultFromExitCode(pkg, exitCode), nil
}

// runEmbeddedBundle spawns an embedded-protocol child over stdio pipes,
// services its Log/Error/Progress messages until the pipe closes, then
// maps its exit code through the bundle's exit-code table.
func (d *localDispatcher) runEmbeddedBundle(ctx context.Context, pkg *engine.Package, path string, args []string) (executor.DispatchResult, error) {
	args = append(args, fmt.Sprintf("-burn.embedded=chainburn.%s,%s,%d", pkg.ID, uuid.NewString(), os.Getpid()))

	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return executor.DispatchResult{}, fmt.Errorf("dispatch: embedded stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return executor.DispatchResult{}, fmt.Errorf("dispatch: embedded stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return executor.DispatchResult{}, fmt.Errorf("dispatch: start embedded child: %w", err)
	}

	conn := rpc.NewConn(stdioPipe{Reader: stdout, Writer: stdin})
	if err := executor.ServeEmbeddedChild(ctx, conn, nil, d.logger); err != nil {
		d.logger.Warn().Str("package", pkg.ID).Err(err).Msg("embedded child channel closed abnormally")
	}
	_ = stdin.Close()

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		var exit *exec.ExitError
		if !errors.As(err, &exit) {
			return executor.DispatchResult{HResult: int(rpc.EFail)}, err
		}
		exitCode = exit.ExitCode()
	}
	return resultFromExitCode(pkg, exitCode), nil
}

func (d *localDispatcher) dispatchExe(ctx context.Context, pkg *engine.Package, action engine.Action) (executor.DispatchResult, error) {
	if len(pkg.Payloads) == 0 {
		return executor.DispatchResult{}, fmt.Errorf("dispatch: exe package %s has no payload", pkg.ID)
	}
	path := pkg.Payloads[0].FilePath

	var argLine string
	if pkg.Exe != nil {
		switch action {
		case engine.ActionUninstall:
			argLine = pkg.Exe.UninstallArguments
		case engine.ActionRepair:
			argLine = pkg.Exe.RepairArguments
		default:
			argLine = pkg.Exe.InstallArguments
		}
	}

	if pkg.PerMachine {
		w := rpc.NewBufferWriter()
		w.WriteString(path)
		w.WriteString(argLine)
		return d.sendElevated(ctx, rpc.ElevatedMsgExecuteExePackage, w.Bytes(), pkg)
	}

	var exitCode int
	err := telemetry.RecordDispatchOperation(ctx, "local", string(action), func() error {
		var runErr error
		exitCode, runErr = d.runner.Run(ctx, path, splitArgs(argLine))
		return runErr
	})
	if err != nil {
		return executor.DispatchResult{HResult: int(rpc.EFail)}, err
	}
	return resultFromExitCode(pkg, exitCode), nil
}

func (d *localDispatcher) dispatchElevated(ctx context.Context, msgType rpc.ElevatedMessageType, productCode string, action engine.Action) (executor.DispatchResult, error) {
	w := rpc.NewBufferWriter()
	w.WriteString(productCode)
	w.WriteU32(uint32(action))
	w.WriteString("")
	w.WriteString("")
	return d.sendElevated(ctx, msgType, w.Bytes(), nil)
}

func (d *localDispatcher) dispatchRelatedBundleOp(ctx context.Context, op *engine.RelatedBundleOpStep) (executor.DispatchResult, error) {
	if len(op.CommandLine) == 0 {
		return executor.DispatchResult{}, nil
	}
	exitCode, err := d.runner.Run(ctx, op.CommandLine[0], op.CommandLine[1:])
	if err != nil {
		return executor.DispatchResult{HResult: int(rpc.EFail)}, err
	}
	if exitCode != 0 {
		return executor.DispatchResult{HResult: int(rpc.EFail)}, nil
	}
	return executor.DispatchResult{}, nil
}

func (d *localDispatcher) dispatchDependencyOp(ctx context.Context, op *engine.DependencyOpStep) (executor.DispatchResult, error) {
	msgType := rpc.ElevatedMsgDependencyRegister
	if op.Direction == engine.DependencyUnregister {
		msgType = rpc.ElevatedMsgDependencyUnregister
	}
	w := rpc.NewBufferWriter()
	w.WriteString(op.PackageID)
	w.WriteString(d.bundleID())
	return d.sendElevated(ctx, msgType, w.Bytes(), nil)
}

func (d *localDispatcher) dispatchCacheSync(ctx context.Context, op *engine.CacheSyncStep) (executor.DispatchResult, error) {
	pkg, ok := d.packages[op.PackageID]
	if !ok || len(pkg.Payloads) == 0 {
		return executor.DispatchResult{}, nil
	}
	payload := pkg.Payloads[0]

	w := rpc.NewBufferWriter()
	w.WriteString(payload.FilePath)
	w.WriteString(pkg.CacheID)
	w.WriteString(payload.ID)
	return d.sendElevated(ctx, rpc.ElevatedMsgCacheCopy, w.Bytes(), pkg)
}

func (d *localDispatcher) dispatchMspTargetOp(ctx context.Context, op *engine.MspTargetOpStep) (executor.DispatchResult, error) {
	w := rpc.NewBufferWriter()
	w.WriteString("") // patch path resolved by the companion from its own cache
	w.WriteString(op.TargetProductCode)
	w.WriteU32(uint32(engine.ActionInstall))
	w.WriteString("")
	return d.sendElevated(ctx, rpc.ElevatedMsgExecuteMspPackage, w.Bytes(), nil)
}

func (d *localDispatcher) bundleID() string {
	return opts.bundleID
}

// sendElevated connects to the companion on first use, sends msgType, and
// maps the response HRESULT (and, for exe-shaped responses, the exit code)
// into a DispatchResult.
func (d *localDispatcher) sendElevated(ctx context.Context, msgType rpc.ElevatedMessageType, params []byte, pkg *engine.Package) (executor.DispatchResult, error) {
	var (
		hresult rpc.HResult
		result  []byte
	)
	err := telemetry.RecordDispatchOperation(ctx, "elevated", msgType.String(), func() error {
		if !d.elevator.Connected() {
			if err := d.elevator.Connect(ctx); err != nil {
				return err
			}
		}
		if err := d.elevator.conn.SendElevated(msgType, params); err != nil {
			return err
		}
		var recvErr error
		_, hresult, result, recvErr = d.elevator.conn.RecvResponse()
		return recvErr
	})
	if err != nil {
		return executor.DispatchResult{}, err
	}
	if hresult.IsFailure() {
		return executor.DispatchResult{HResult: int(hresult)}, nil
	}
	if len(result) == 0 || pkg == nil {
		return executor.DispatchResult{}, nil
	}
	r := rpc.NewBufferReader(result)
	exitCode, err := r.ReadU32()
	if err != nil {
		return executor.DispatchResult{}, nil
	}
	return resultFromExitCode(pkg, int(int32(exitCode))), nil
}

// resultFromExitCode maps a child process's exit code through its
// package's exit-code table, including the error-and-reboot combinations
// exe packages and nested bundles report.
func resultFromExitCode(pkg *engine.Package, exitCode int) executor.DispatchResult {
	result := executor.DispatchResult{}
	switch executor.ResolveExitCode(pkg, exitCode) {
	case engine.ExitSuccess:
	case engine.ExitScheduleReboot:
		result.Restart = engine.RestartRequired
	case engine.ExitForceReboot:
		result.Restart = engine.RestartInitiated
	case engine.ExitErrorScheduleReboot:
		result.Restart = engine.RestartRequired
		result.HResult = int(rpc.EFail)
	case engine.ExitErrorForceReboot:
		result.Restart = engine.RestartInitiated
		result.HResult = int(rpc.EFail)
	default:
		result.HResult = int(rpc.EFail)
	}
	return result
}

// splitList breaks a semicolon-joined ancestor list into its entries.
func splitList(list string) []string {
	if list == "" {
		return nil
	}
	return strings.Split(list, ";")
}

// splitArgs breaks a Windows-style single command-line string into argv,
// the same naive whitespace split pkg/executor/elevated uses for its own
// command-line handling.
func splitArgs(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	return strings.Fields(line)
}
