// Package commands implements the chainburn CLI using a cobra-based command
// layout. Burn-style engines traditionally
// take single-dash long switches (-quiet, -norestart, -parent:<id>); cobra's
// pflag only recognizes single-dash for one-letter shorthand, so Execute
// normalizes argv before handing it to cobra, rather than reinventing flag
// parsing from scratch.
package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var opts runOptions

type runOptions struct {
	manifestPath       string
	bundleID           string
	stateDBPath        string
	quiet              bool
	passive            bool
	norestart          bool
	logPath            string
	parentBundleID     string
	parentNone         bool
	ancestors          string
	ignoreDependencies string
	uninstall          bool
	repair             bool
	modify             bool
	layout             bool
	layoutDir          string
}

// Execute builds and runs the root command against os.Args[1:], after
// rewriting Burn-style single-dash long switches to the double-dash form
// cobra's flag parser expects.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	return rootCmd.ExecuteContext(ctx)
}

// normalizeArgs rewrites every "-switch" longer than one letter (and not a
// recognized KEY=VALUE public-property token) into "--switch", and drops
// the "-clean-room=<path>" / "-burn.*" role-selection switches entirely —
// main.go already consumed those to pick the run mode before cobra ever
// sees argv.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		switch {
		case strings.Contains(a, "=") && !strings.HasPrefix(a, "-"):
			out = append(out, a) // public property KEY=VALUE, passed through
		case strings.HasPrefix(a, "-burn.") || strings.HasPrefix(a, "-clean-room="):
			continue // role-selection switch, already handled in main.go
		case a == "-parent:none" || a == "--parent:none":
			out = append(out, "--parent-none")
		case strings.HasPrefix(a, "-log!"):
			// -log!<path> is the append form of -log <path>.
			out = append(out, "--log="+"!"+strings.TrimPrefix(a, "-log!"))
		case strings.HasPrefix(a, "--"):
			out = append(out, a)
		case strings.HasPrefix(a, "-") && len(a) > 2:
			out = append(out, "-"+a)
		default:
			out = append(out, a)
		}
	}
	return out
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chainburn",
		Short: "chainburn bundle installer engine",
		Long: `chainburn is a bundle installer engine: it evaluates a bundle's
packages against machine state, plans an install/uninstall/modify/repair
sequence, and executes it with rollback on failure.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), args)
		},
	}

	rootCmd.Flags().StringVar(&opts.manifestPath, "manifest", "", "path to the bundle manifest.cue")
	rootCmd.Flags().StringVar(&opts.bundleID, "bundle-id", "", "override the bundle ID from the manifest metadata")
	rootCmd.Flags().StringVar(&opts.stateDBPath, "state-db", "chainburn-state.db", "path to the persisted resume-state SQLite database")

	rootCmd.Flags().BoolVar(&opts.quiet, "quiet", false, "suppress all UI")
	rootCmd.Flags().BoolVar(&opts.passive, "passive", false, "show progress UI only, no prompts")
	rootCmd.Flags().BoolVar(&opts.norestart, "norestart", false, "suppress any restart initiated by the engine")
	rootCmd.Flags().StringVar(&opts.logPath, "log", "", "log file path (append !)")

	rootCmd.Flags().StringVar(&opts.parentBundleID, "parent", "", "parent bundle ID, for a chained/related-bundle launch")
	rootCmd.Flags().BoolVar(&opts.parentNone, "parent-none", false, "explicitly disclaim a parent bundle")
	rootCmd.Flags().StringVar(&opts.ancestors, "ancestors", "", "semicolon-joined ancestor bundle IDs")
	rootCmd.Flags().StringVar(&opts.ignoreDependencies, "ignoredependencies", "", "\"ALL\" or a comma-joined list of dependencies to ignore on uninstall")

	rootCmd.Flags().BoolVar(&opts.uninstall, "uninstall", false, "uninstall the bundle")
	rootCmd.Flags().BoolVar(&opts.repair, "repair", false, "repair the bundle")
	rootCmd.Flags().BoolVar(&opts.modify, "modify", false, "modify the bundle's installed feature set")
	rootCmd.Flags().BoolVar(&opts.layout, "layout", false, "lay out the bundle's payloads without installing")
	rootCmd.Flags().StringVar(&opts.layoutDir, "layout-dir", "", "destination directory for -layout")

	return rootCmd
}
