package elevated

import (
	"context"

	"github.com/chainburn/chainburn/pkg/approval"
	"github.com/chainburn/chainburn/pkg/rpc"
)

// handleLaunchApprovedExe answers LaunchApprovedExe for the elevated
// (per-machine) case: an unelevated BA cannot itself spawn an elevated
// process, so the request crosses the privilege boundary here, where it
// is evaluated against the approval policy before anything runs. This
// handler is where the pkg/approval.Engine decision is made; the request
// is not evaluated elsewhere before it arrives.
//
// Wire params: key, resolvedPath string, argc u32 followed by argc
// argument strings.
// Wire result: exit code (u32).
func (s *Server) handleLaunchApprovedExe(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	key, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	resolvedPath, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	argc, err := r.ReadU32()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	args := make([]string, 0, argc)
	for i := uint32(0); i < argc; i++ {
		a, err := r.ReadString()
		if err != nil {
			return rpc.EInvalidArg, nil
		}
		args = append(args, a)
	}

	if s.approval == nil {
		s.logger.Warn().Str("key", key).Msg("no approval engine configured, denying launch")
		return rpc.EAccessDenied, nil
	}

	decision, err := s.approval.Evaluate(ctx, approval.LaunchRequest{
		Key:          key,
		ResolvedPath: resolvedPath,
		Arguments:    args,
		Elevated:     true,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("approval evaluation failed")
		return rpc.EFail, nil
	}
	if !decision.Allowed {
		s.logger.Warn().Str("key", key).Int("violations", len(decision.Violations)).Msg("approved-exe launch denied by policy")
		return rpc.EAccessDenied, nil
	}

	exitCode, runErr := s.runner.Run(ctx, resolvedPath, args)
	if runErr != nil {
		return rpc.EFail, nil
	}

	w := rpc.NewBufferWriter()
	w.WriteU32(uint32(int32(exitCode)))
	return rpc.SOK, w.Bytes()
}
