package elevated

import (
	"context"

	"github.com/chainburn/chainburn/pkg/engine"
	"github.com/chainburn/chainburn/pkg/rpc"
)

// handleExecuteMspPackage applies or removes a patch against one target
// product, per the plan's MspTargetOpStep (§ planner patch sequencing).
// A patch can only be removed on products that support patch uninstall;
// the caller (the unelevated engine) is responsible for having already
// checked the target's Uninstallable flag before issuing this request.
//
// Wire params: patchPath string, targetProductCode string, action u32
// (engine.Action), logPath string.
// Wire result: exit code (u32).
func (s *Server) handleExecuteMspPackage(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	patchPath, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	targetProductCode, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	actionCode, err := r.ReadU32()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	logPath, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}

	var args []string
	if engine.Action(actionCode) == engine.ActionUninstall {
		args = []string{"/package", targetProductCode, "/uninstallpatch", patchPath, "/qn"}
	} else {
		args = []string{"/update", patchPath, "/qn", "PATCH_TARGET=" + targetProductCode}
	}
	if logPath != "" {
		args = append(args, "/log", logPath)
	}

	exitCode, runErr := s.runner.Run(ctx, "msiexec.exe", args)
	if runErr != nil {
		return rpc.EFail, nil
	}
	w := rpc.NewBufferWriter()
	w.WriteU32(uint32(int32(exitCode)))
	return rpc.SOK, w.Bytes()
}
