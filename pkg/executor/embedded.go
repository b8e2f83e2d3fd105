package executor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/chainburn/chainburn/pkg/rpc"
)

// ChildMessageType is one message a Burn-aware embedded child sends back to
// the engine over the embedded protocol's child->engine pipe (§4.6).
type ChildMessageType int

const (
	ChildMessageLog ChildMessageType = iota
	ChildMessageError
	ChildMessageProgress
)

// ChildMessage is one inbound message from an embedded child.
type ChildMessage struct {
	Type       ChildMessageType
	Text       string // Log message, or Error's text
	Code       int    // Error's HRESULT-shaped code
	UIHint     int    // Error's suggested UI treatment
	PackagePct int    // Progress
	OverallPct int    // Progress
}

// DialogResult is the engine's reply to a child's Error or Progress
// message: the child uses it to decide cancel/retry/ignore.
type DialogResult int

const (
	DialogResultOK DialogResult = iota
	DialogResultCancel
	DialogResultRetry
	DialogResultIgnore
	DialogResultAbort
)

// EmbeddedChannel is the two-pipe embedded protocol: engine->child commands
// flow out through the RPC transport (pkg/rpc), child->engine messages flow
// in through Messages, and the engine answers each Error/Progress with a
// DialogResult via Respond.
type EmbeddedChannel interface {
	Messages() <-chan ChildMessage
	Respond(msg ChildMessage, result DialogResult) error
}

// ServeEmbeddedChild answers an embedded child's messages over conn until
// the child exits and its pipe closes: Log lines flow to logger, Error and
// Progress are answered with a DialogResult derived from cancel, and
// anything else a Burn-aware child might send answers E_NOTIMPL. Returns
// nil on a clean pipe close.
func ServeEmbeddedChild(ctx context.Context, conn *rpc.Conn, cancel CancelPolicy, logger zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgType, params, err := conn.RecvBA()
		if errors.Is(err, rpc.ErrUnsupportedAPIVersion) {
			if sendErr := conn.SendResponse(uint32(msgType), rpc.ENotImpl, nil); sendErr != nil {
				return fmt.Errorf("embedded host: send response: %w", sendErr)
			}
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("embedded host: recv: %w", err)
		}

		hr, result := dispatchChildMessage(ctx, msgType, params, cancel, logger)
		if err := conn.SendResponse(uint32(msgType), hr, result); err != nil {
			return fmt.Errorf("embedded host: send response: %w", err)
		}
	}
}

func dispatchChildMessage(ctx context.Context, msgType rpc.MessageType, params []byte, cancel CancelPolicy, logger zerolog.Logger) (rpc.HResult, []byte) {
	cancelled := cancel != nil && cancel.ShouldCancel(ctx, "") == CancelYes

	switch msgType {
	case rpc.MsgLog:
		text, err := rpc.NewBufferReader(params).ReadString()
		if err != nil {
			return rpc.EInvalidArg, nil
		}
		logger.Info().Str("origin", "embedded-child").Msg(text)
		return rpc.SOK, nil

	case rpc.MsgSendEmbeddedError:
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
		logger.Error().Int("code", msg.Code).Str("origin", "embedded-child").Msg(text)
		return dialogResultResponse(DecideDialogResult(msg, cancelled))

	case rpc.MsgSendEmbeddedProgress:
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
		return dialogResultResponse(DecideDialogResult(msg, cancelled))

	default:
		return rpc.ENotImpl, nil
	}
}

func dialogResultResponse(result DialogResult) (rpc.HResult, []byte) {
	w := rpc.NewBufferWriter()
	w.WriteU32(uint32(result))
	return rpc.SOK, w.Bytes()
}

// DecideDialogResult is the default policy applied to an inbound child
// message absent any BA override: log messages get no reply, Error and
// Progress get OK (continue) unless the caller supplies a CancelPolicy that
// says otherwise.
func DecideDialogResult(msg ChildMessage, cancelled bool) DialogResult {
	if cancelled {
		return DialogResultCancel
	}
	return DialogResultOK
}
