package elevated

import (
	"context"
	"fmt"

	"github.com/chainburn/chainburn/pkg/engine"
	"github.com/chainburn/chainburn/pkg/rpc"
)

// msiexecArgs builds the msiexec.exe command line for action against the
// package at msiPath, appending propertyArgs (already-escaped "PROP=value"
// tokens, per §6 FormatString/EscapeString) and routing the verbose log to
// logPath when one is set.
func msiexecArgs(action engine.Action, msiPath, propertyArgs, logPath string) []string {
	var args []string
	switch action {
	case engine.ActionUninstall:
		args = []string{"/x", msiPath, "/qn"}
	case engine.ActionRepair:
		args = []string{"/fa", msiPath, "/qn"}
	default: // Install, Modify, MinorUpgrade
		args = []string{"/i", msiPath, "/qn"}
	}
	if propertyArgs != "" {
		args = append(args, splitCommandLine(propertyArgs)...)
	}
	if logPath != "" {
		args = append(args, "/log", logPath)
	}
	return args
}

// handleExecuteMsiPackage runs msiexec against an Msi package payload.
//
// Wire params: path string, action u32 (engine.Action), propertyArgs
// string, logPath string.
// Wire result: exit code (u32).
func (s *Server) handleExecuteMsiPackage(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	return s.runMsiexec(ctx, params)
}

// handleExecuteMsuPackage runs wusa.exe against an Msu (standalone Windows
// update) package payload. Msu packages carry no MSI properties, only an
// install/uninstall switch, so they share the msiexec reader's wire shape
// minus the propertyArgs field being meaningful.
//
// Wire params: path string, action u32 (engine.Action), _ string (unused),
// logPath string.
func (s *Server) handleExecuteMsuPackage(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	path, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	actionCode, err := r.ReadU32()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	if _, err := r.ReadString(); err != nil {
		return rpc.EInvalidArg, nil
	}
	logPath, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}

	var args []string
	if engine.Action(actionCode) == engine.ActionUninstall {
		args = []string{"/uninstall", path, "/quiet", "/norestart"}
	} else {
		args = []string{path, "/quiet", "/norestart"}
	}
	if logPath != "" {
		args = append(args, fmt.Sprintf("/log:%s", logPath))
	}

	exitCode, runErr := s.runner.Run(ctx, "wusa.exe", args)
	if runErr != nil {
		return rpc.EFail, nil
	}
	w := rpc.NewBufferWriter()
	w.WriteU32(uint32(int32(exitCode)))
	return rpc.SOK, w.Bytes()
}

func (s *Server) runMsiexec(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	path, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	actionCode, err := r.ReadU32()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	propertyArgs, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	logPath, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}

	args := msiexecArgs(engine.Action(actionCode), path, propertyArgs, logPath)
	exitCode, runErr := s.runner.Run(ctx, "msiexec.exe", args)
	if runErr != nil {
		return rpc.EFail, nil
	}
	w := rpc.NewBufferWriter()
	w.WriteU32(uint32(int32(exitCode)))
	return rpc.SOK, w.Bytes()
}
