package elevated

import (
	"context"
	"strings"

	"github.com/chainburn/chainburn/pkg/rpc"
)

// splitCommandLine breaks a Windows-style single command-line string into
// argv, a naive whitespace split suitable for a fallback "/bin/sh -c"
// invocation.
func splitCommandLine(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	return strings.Fields(line)
}

// handleExecuteExePackage runs an Exe package's install/uninstall/repair
// command line (§ package model ExeDetail.InstallArguments etc.) with the
// elevated companion's privilege, because the unelevated engine process
// cannot itself launch a process with escalated rights.
//
// Wire params: path string, arguments string.
// Wire result: exit code (u32).
func (s *Server) handleExecuteExePackage(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	path, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	argLine, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}

	exitCode, runErr := s.runner.Run(ctx, path, splitCommandLine(argLine))
	if runErr != nil {
		return rpc.EFail, nil
	}

	w := rpc.NewBufferWriter()
	w.WriteU32(uint32(int32(exitCode)))
	return rpc.SOK, w.Bytes()
}
