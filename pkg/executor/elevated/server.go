// Package elevated implements the handlers that run inside the elevated
// companion process (§4.6 run mode: Elevated). Each handler answers one
// rpc.ElevatedMessageType request the unelevated engine sends over the
// command pipe once a per-machine action requires privilege it doesn't
// have.
package elevated

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chainburn/chainburn/pkg/approval"
	"github.com/chainburn/chainburn/pkg/rpc"
)

// CommandRunner abstracts process execution so handlers are testable
// without actually spawning msiexec/wusa/the target exe.
type CommandRunner interface {
	Run(ctx context.Context, path string, args []string) (exitCode int, err error)
}

// Server answers elevated requests received over conn until the pipe
// closes or ctx is cancelled.
type Server struct {
	conn     *rpc.Conn
	runner   CommandRunner
	approval *approval.Engine
	cache    CacheStore
	reg      RegistrationStore
	logger   zerolog.Logger
}

// NewServer builds a Server. approval may be nil, in which case every
// LaunchApprovedExe request is denied with E_ACCESSDENIED.
func NewServer(conn *rpc.Conn, runner CommandRunner, cache CacheStore, reg RegistrationStore, approvalEngine *approval.Engine, logger zerolog.Logger) *Server {
	return &Server{
		conn:     conn,
		runner:   runner,
		approval: approvalEngine,
		cache:    cache,
		reg:      reg,
		logger:   logger.With().Str("component", "elevated-companion").Logger(),
	}
}

// Serve processes elevated requests until ctx is done or the connection
// returns an unrecoverable error (typically io.EOF when the parent closes
// the pipe to signal shutdown, per §5 "shutdown of the elevated companion
// process is initiated by closing its command pipe").
func (s *Server) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgType, params, err := s.conn.RecvElevated()
		if errors.Is(err, rpc.ErrUnsupportedAPIVersion) {
			if sendErr := s.conn.SendResponse(uint32(msgType), rpc.ENotImpl, nil); sendErr != nil {
				return fmt.Errorf("elevated: send response: %w", sendErr)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("elevated: recv request: %w", err)
		}

		hr, result := s.dispatch(ctx, msgType, params)
		if err := s.conn.SendResponse(uint32(msgType), hr, result); err != nil {
			return fmt.Errorf("elevated: send response: %w", err)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, msgType rpc.ElevatedMessageType, params []byte) (rpc.HResult, []byte) {
	switch msgType {
	case rpc.ElevatedMsgExecuteExePackage:
		return s.handleExecuteExePackage(ctx, params)
	case rpc.ElevatedMsgExecuteMsiPackage:
		return s.handleExecuteMsiPackage(ctx, params)
	case rpc.ElevatedMsgExecuteMspPackage:
		return s.handleExecuteMspPackage(ctx, params)
	case rpc.ElevatedMsgExecuteMsuPackage:
		return s.handleExecuteMsuPackage(ctx, params)
	case rpc.ElevatedMsgCacheCopy:
		return s.handleCacheCopy(ctx, params)
	case rpc.ElevatedMsgCacheVerify:
		return s.handleCacheVerify(ctx, params)
	case rpc.ElevatedMsgCleanup:
		return s.handleCleanup(ctx, params)
	case rpc.ElevatedMsgDependencyRegister:
		return s.handleDependencyRegister(ctx, params)
	case rpc.ElevatedMsgDependencyUnregister:
		return s.handleDependencyUnregister(ctx, params)
	case rpc.ElevatedMsgLaunchApprovedExe:
		return s.handleLaunchApprovedExe(ctx, params)
	case rpc.ElevatedMsgSessionBegin:
		return rpc.SOK, nil
	case rpc.ElevatedMsgSessionEnd:
		return rpc.SOK, nil
	default:
		s.logger.Warn().Stringer("type", msgType).Msg("unhandled elevated message type")
		return rpc.ENotImpl, nil
	}
}
