package executor

import (
	"strings"

	"github.com/chainburn/chainburn/pkg/engine"
)

// ChildCommandLineOptions carries the context BuildChildCommandLine needs to
// assemble the switches an Exe/Bundle child is launched with (§4.6).
type ChildCommandLineOptions struct {
	CachedExecutablePath string
	Action               engine.Action // Install, Uninstall, Modify, Repair, MinorUpgrade
	RelationSwitch       string        // e.g. "-upgrade", "-addon", "-patch"; empty omits
	ParentBundleID       string        // empty omits -parent
	Ancestors            []string      // empty omits -ancestors
	IgnoreDependencies   string        // "ALL", a comma-joined list, or empty to omit
	WorkingDirSwitch     string        // engine-working-directory switch; empty omits
	FileHandle           string        // -burn.filehandle.self=<handle>; empty omits
	Quiet                bool
	DisableSystemRestore bool
	UserArguments        string // variable-formatted, already expanded by the caller
}

// BuildChildCommandLine assembles the full command line for an Exe/Bundle
// package's sub-process, in the fixed switch order the embedded protocol
// expects: quoted executable path, then protocol switches, then the
// package's own (already variable-formatted) user arguments.
func BuildChildCommandLine(opts ChildCommandLineOptions) string {
	parts := append([]string{quoteArg(opts.CachedExecutablePath)}, ChildArgs(opts)...)
	return strings.Join(parts, " ")
}

// ChildArgs is BuildChildCommandLine's argument vector: the same switches
// in the same order, without the executable path, ready to hand to a
// process launcher.
func ChildArgs(opts ChildCommandLineOptions) []string {
	var parts []string

	if opts.Quiet {
		parts = append(parts, "-quiet")
	}
	if opts.DisableSystemRestore {
		parts = append(parts, "-disablesystemrestore")
	}

	switch opts.Action {
	case engine.ActionUninstall:
		parts = append(parts, "-uninstall")
	case engine.ActionRepair:
		parts = append(parts, "-repair")
	case engine.ActionModify:
		parts = append(parts, "-modify")
	}

	if opts.RelationSwitch != "" {
		parts = append(parts, opts.RelationSwitch)
	}
	if opts.ParentBundleID != "" {
		parts = append(parts, "-parent", opts.ParentBundleID)
	}
	if len(opts.Ancestors) > 0 {
		parts = append(parts, "-ancestors="+strings.Join(opts.Ancestors, ";"))
	}
	if opts.IgnoreDependencies != "" {
		parts = append(parts, "-ignoredependencies="+opts.IgnoreDependencies)
	}
	if opts.WorkingDirSwitch != "" {
		parts = append(parts, opts.WorkingDirSwitch)
	}
	if opts.FileHandle != "" {
		parts = append(parts, "-burn.filehandle.self="+opts.FileHandle)
	}

	if opts.UserArguments != "" {
		parts = append(parts, strings.Fields(opts.UserArguments)...)
	}

	return parts
}

// quoteArg wraps a path in plain double quotes the way installer command
// lines expect; %q-style escaping would corrupt Windows path separators.
func quoteArg(s string) string {
	return `"` + s + `"`
}

// ResolveExitCode maps a child process's raw exit code through a package's
// exit-code table (§4.6 step 4). Exe and Bundle are the only kinds that
// carry one.
func ResolveExitCode(pkg *engine.Package, rawExitCode int) engine.ExitCodeType {
	switch pkg.Kind {
	case engine.KindExe:
		if pkg.Exe != nil {
			return pkg.Exe.ExitCodes.Resolve(rawExitCode)
		}
	case engine.KindBundle:
		if pkg.Bundle != nil {
			return pkg.Bundle.Exe.ExitCodes.Resolve(rawExitCode)
		}
	}
	if rawExitCode == 0 {
		return engine.ExitSuccess
	}
	return engine.ExitError
}
