package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chainburn/chainburn/pkg/condition"
	"github.com/chainburn/chainburn/pkg/engine"
	"github.com/chainburn/chainburn/pkg/errs"
	"github.com/chainburn/chainburn/pkg/rpc"
	"github.com/chainburn/chainburn/pkg/variables"
)

// Operations carries the pump-serialised core operations the BA may
// request. Each runs to completion before the next BA request of its kind
// is serviced (§4.6 message pump).
type Operations struct {
	Detect            Handler
	Plan              Handler
	Apply             Handler
	Elevate           Handler
	LaunchApprovedExe Handler
	Quit              Handler
}

// RelatedVariableSource resolves a persisted variable of an installed
// related bundle, read from its registration rather than this engine's own
// store.
type RelatedVariableSource interface {
	RelatedVariable(bundleID, name string) (string, error)
}

// BAServer answers the bootstrapper application's engine API (the §6
// BA->engine message set) over a framed pipe: variable reads and writes,
// formatting, condition evaluation, logging, and the pump-posted core
// operations. One server instance services one BA connection.
type BAServer struct {
	conn    *rpc.Conn
	vars    *variables.Store
	eval    *condition.Evaluator
	chain   []*engine.Package
	pump    *Pump
	ops     Operations
	related RelatedVariableSource
	cancel  CancelPolicy
	logger  zerolog.Logger
}

// NewBAServer builds a BAServer over conn. related may be nil when no
// related bundles were discovered; ops handlers may individually be nil for
// operations the hosting role does not support (they answer E_NOTIMPL).
func NewBAServer(conn *rpc.Conn, vars *variables.Store, eval *condition.Evaluator, chain []*engine.Package, pump *Pump, ops Operations, related RelatedVariableSource, cancel CancelPolicy, logger zerolog.Logger) *BAServer {
	return &BAServer{
		conn:    conn,
		vars:    vars,
		eval:    eval,
		chain:   chain,
		pump:    pump,
		ops:     ops,
		related: related,
		cancel:  cancel,
		logger:  logger.With().Str("component", "ba-api").Logger(),
	}
}

// Serve answers BA requests until ctx is done, Quit is processed, or the
// pipe closes. Requests carrying an unsupported API version answer
// E_NOTIMPL and the loop continues, per the wire contract.
func (s *BAServer) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgType, params, err := s.conn.RecvBA()
		if errors.Is(err, rpc.ErrUnsupportedAPIVersion) {
			if sendErr := s.conn.SendResponse(uint32(msgType), rpc.ENotImpl, nil); sendErr != nil {
				return fmt.Errorf("ba-api: send response: %w", sendErr)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("ba-api: recv request: %w", err)
		}

		hr, result := s.dispatch(ctx, msgType, params)
		if err := s.conn.SendResponse(uint32(msgType), hr, result); err != nil {
			return fmt.Errorf("ba-api: send response: %w", err)
		}
		if msgType == rpc.MsgQuit {
			return nil
		}
	}
}

func (s *BAServer) dispatch(ctx context.Context, msgType rpc.MessageType, params []byte) (rpc.HResult, []byte) {
	switch msgType {
	case rpc.MsgGetPackageCount:
		w := rpc.NewBufferWriter()
		w.WriteU32(uint32(len(s.chain)))
		return rpc.SOK, w.Bytes()
	case rpc.MsgGetVariableNumeric:
		return s.handleGetNumeric(params)
	case rpc.MsgGetVariableString:
		return s.handleGetString(params)
	case rpc.MsgGetVariableVersion:
		return s.handleGetVersion(params)
	case rpc.MsgSetVariableNumeric:
		return s.handleSetNumeric(params)
	case rpc.MsgSetVariableString:
		return s.handleSetString(params)
	case rpc.MsgSetVariableVersion:
		return s.handleSetVersion(params)
	case rpc.MsgFormatString:
		return s.handleFormatString(params)
	case rpc.MsgEscapeString:
		return s.handleEscapeString(params)
	case rpc.MsgEvaluateCondition:
		return s.handleEvaluateCondition(params)
	case rpc.MsgLog:
		return s.handleLog(params)
	case rpc.MsgSendEmbeddedError:
		return s.handleEmbeddedError(ctx, params)
	case rpc.MsgSendEmbeddedProgress:
		return s.handleEmbeddedProgress(ctx, params)
	case rpc.MsgSetUpdate, rpc.MsgSetLocalSource, rpc.MsgSetDownloadSource, rpc.MsgSetUpdateSource:
		// Source/update routing belongs to the payload pipeline this core
		// delegates to; acknowledging keeps a BA built against the full
		// API working.
		return rpc.SOK, nil
	case rpc.MsgCloseSplashScreen:
		return rpc.SOK, nil
	case rpc.MsgDetect:
		return s.post(ctx, MessageDetect, s.ops.Detect)
	case rpc.MsgPlan:
		return s.post(ctx, MessagePlan, s.ops.Plan)
	case rpc.MsgElevate:
		return s.post(ctx, MessageElevate, s.ops.Elevate)
	case rpc.MsgApply:
		return s.post(ctx, MessageApply, s.ops.Apply)
	case rpc.MsgLaunchApprovedExe:
		return s.post(ctx, MessageLaunchApprovedExe, s.ops.LaunchApprovedExe)
	case rpc.MsgQuit:
		return s.post(ctx, MessageQuit, s.ops.Quit)
	case rpc.MsgCompareVersions:
		return s.handleCompareVersions(params)
	case rpc.MsgGetRelatedBundleVariable:
		return s.handleRelatedBundleVariable(params)
	default:
		s.logger.Warn().Stringer("type", msgType).Msg("unhandled BA message type")
		return rpc.ENotImpl, nil
	}
}

// post hands a core operation to the pump, which runs it to completion
// before post returns: S_OK when the handler succeeds, E_FAIL when it
// returns an error, and E_INVALIDSTATE once Quit has been posted.
func (s *BAServer) post(ctx context.Context, msgType MessageType, handler Handler) (rpc.HResult, []byte) {
	if handler == nil {
		return rpc.ENotImpl, nil
	}
	// The variable store refuses BA-thread writes for the duration of a
	// detect/plan/apply transition (§4.1 is_active latch).
	wrapped := func(ctx context.Context) error {
		s.vars.SetActive(true)
		defer s.vars.SetActive(false)
		return handler(ctx)
	}
	if err := s.pump.Post(ctx, msgType, wrapped); err != nil {
		if errors.Is(err, errClosedPump) {
			return rpc.EInvalidState, nil
		}
		return rpc.EFail, nil
	}
	return rpc.SOK, nil
}

func (s *BAServer) handleGetNumeric(params []byte) (rpc.HResult, []byte) {
	name, err := rpc.NewBufferReader(params).ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	n, err := s.vars.GetNumeric(name)
	if err != nil {
		return hresultForVariableError(err), nil
	}
	w := rpc.NewBufferWriter()
	w.WriteU64(uint64(n))
	return rpc.SOK, w.Bytes()
}

func (s *BAServer) handleGetString(params []byte) (rpc.HResult, []byte) {
	name, err := rpc.NewBufferReader(params).ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	text, err := s.vars.GetString(name)
	if err != nil {
		return hresultForVariableError(err), nil
	}
	w := rpc.NewBufferWriter()
	w.WriteString(text)
	return rpc.SOK, w.Bytes()
}

func (s *BAServer) handleGetVersion(params []byte) (rpc.HResult, []byte) {
	name, err := rpc.NewBufferReader(params).ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	v, err := s.vars.GetVersion(name)
	if err != nil {
		return hresultForVariableError(err), nil
	}
	w := rpc.NewBufferWriter()
	w.WriteString(v.Text())
	return rpc.SOK, w.Bytes()
}

func (s *BAServer) handleSetNumeric(params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	name, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	raw, err := r.ReadU64()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	if err := s.vars.SetNumeric(name, int64(raw), variables.SetOptions{Overwrite: true}); err != nil {
		return hresultForVariableError(err), nil
	}
	return rpc.SOK, nil
}

func (s *BAServer) handleSetString(params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	name, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	value, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	if err := s.vars.SetString(name, value, variables.SetOptions{Overwrite: true}); err != nil {
		return hresultForVariableError(err), nil
	}
	return rpc.SOK, nil
}

func (s *BAServer) handleSetVersion(params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	name, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	text, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	if err := s.vars.SetVersion(name, variables.ParseVersion(text), variables.SetOptions{Overwrite: true}); err != nil {
		return hresultForVariableError(err), nil
	}
	return rpc.SOK, nil
}

func (s *BAServer) handleFormatString(params []byte) (rpc.HResult, []byte) {
	tmpl, err := rpc.NewBufferReader(params).ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	var hidden bool
	text := s.vars.Format(tmpl, &hidden)
	w := rpc.NewBufferWriter()
	w.WriteString(text)
	w.WriteBool(hidden)
	return rpc.SOK, w.Bytes()
}

func (s *BAServer) handleEscapeString(params []byte) (rpc.HResult, []byte) {
	text, err := rpc.NewBufferReader(params).ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	w := rpc.NewBufferWriter()
	w.WriteString(variables.Escape(text))
	return rpc.SOK, w.Bytes()
}

func (s *BAServer) handleEvaluateCondition(params []byte) (rpc.HResult, []byte) {
	expr, err := rpc.NewBufferReader(params).ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	result, err := s.eval.Evaluate(expr, s.vars)
	if err != nil {
		return rpc.EInvalidData, nil
	}
	w := rpc.NewBufferWriter()
	w.WriteBool(result)
	return rpc.SOK, w.Bytes()
}

func (s *BAServer) handleLog(params []byte) (rpc.HResult, []byte) {
	text, err := rpc.NewBufferReader(params).ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	s.logger.Info().Str("origin", "ba").Msg(text)
	return rpc.SOK, nil
}

func (s *BAServer) handleEmbeddedError(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	code, err := r.ReadU32()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	text, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	uiHint, err := r.ReadU32()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	msg := ChildMessage{Type: ChildMessageError, Code: int(int32(code)), Text: text, UIHint: int(uiHint)}
	s.logger.Error().Int("code", msg.Code).Msg(text)
	result := DecideDialogResult(msg, s.shouldCancel(ctx))
	w := rpc.NewBufferWriter()
	w.WriteU32(uint32(result))
	return rpc.SOK, w.Bytes()
}

func (s *BAServer) handleEmbeddedProgress(ctx context.Context, params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	pkgPct, err := r.ReadU32()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	overallPct, err := r.ReadU32()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	msg := ChildMessage{Type: ChildMessageProgress, PackagePct: int(pkgPct), OverallPct: int(overallPct)}
	result := DecideDialogResult(msg, s.shouldCancel(ctx))
	w := rpc.NewBufferWriter()
	w.WriteU32(uint32(result))
	return rpc.SOK, w.Bytes()
}

func (s *BAServer) handleCompareVersions(params []byte) (rpc.HResult, []byte) {
	r := rpc.NewBufferReader(params)
	left, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	right, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	cmp := variables.ParseVersion(left).Compare(variables.ParseVersion(right))
	w := rpc.NewBufferWriter()
	w.WriteU32(uint32(int32(cmp)))
	return rpc.SOK, w.Bytes()
}

func (s *BAServer) handleRelatedBundleVariable(params []byte) (rpc.HResult, []byte) {
	if s.related == nil {
		return rpc.ENotFound, nil
	}
	r := rpc.NewBufferReader(params)
	bundleID, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	name, err := r.ReadString()
	if err != nil {
		return rpc.EInvalidArg, nil
	}
	value, err := s.related.RelatedVariable(bundleID, name)
	if err != nil {
		return rpc.ENotFound, nil
	}
	w := rpc.NewBufferWriter()
	w.WriteString(value)
	return rpc.SOK, w.Bytes()
}

func (s *BAServer) shouldCancel(ctx context.Context) bool {
	if s.cancel == nil {
		return false
	}
	return s.cancel.ShouldCancel(ctx, "") == CancelYes
}

// hresultForVariableError maps the store's classified errors onto the
// HRESULTs the BA API promises: missing names are distinct from type
// mismatches, read-only writes answer E_INVALIDARG, and writes refused by
// the engine-active latch answer E_INVALIDSTATE.
func hresultForVariableError(err error) rpc.HResult {
	var e *errs.Error
	if !errors.As(err, &e) {
		return rpc.EFail
	}
	switch e.Kind {
	case errs.KindNotFound:
		return rpc.ENotFound
	case errs.KindTypeMismatch:
		return rpc.ETypeMismatch
	case errs.KindInvalidArg:
		return rpc.EInvalidArg
	case errs.KindEngineActive:
		return rpc.EInvalidState
	default:
		return rpc.EFail
	}
}
