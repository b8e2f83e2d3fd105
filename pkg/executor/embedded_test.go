package executor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainburn/chainburn/pkg/rpc"
)

type duplex struct {
	io.Reader
	io.Writer
}

func TestServeEmbeddedChildAnswersProgressAndError(t *testing.T) {
	parentIn, childOut := io.Pipe()
	childIn, parentOut := io.Pipe()
	parentConn := rpc.NewConn(duplex{Reader: parentIn, Writer: parentOut})
	childConn := rpc.NewConn(duplex{Reader: childIn, Writer: childOut})

	done := make(chan error, 1)
	go func() {
		done <- ServeEmbeddedChild(context.Background(), parentConn, nil, zerolog.Nop())
	}()

	w := rpc.NewBufferWriter()
	w.WriteU32(50)
	w.WriteU32(25)
	if err := childConn.SendBA(rpc.MsgSendEmbeddedProgress, w.Bytes()); err != nil {
		t.Fatalf("send progress: %v", err)
	}
	_, hr, result, err := childConn.RecvResponse()
	if err != nil || hr != rpc.SOK {
		t.Fatalf("progress response = (%v, %v)", hr, err)
	}
	dr, err := rpc.NewBufferReader(result).ReadU32()
	if err != nil || DialogResult(dr) != DialogResultOK {
		t.Fatalf("progress dialog result = (%d, %v), want OK", dr, err)
	}

	w = rpc.NewBufferWriter()
	w.WriteU32(0x80004005)
	w.WriteString("payload verification failed")
	w.WriteU32(0)
	if err := childConn.SendBA(rpc.MsgSendEmbeddedError, w.Bytes()); err != nil {
		t.Fatalf("send error: %v", err)
	}
	if _, hr, _, err = childConn.RecvResponse(); err != nil || hr != rpc.SOK {
		t.Fatalf("error response = (%v, %v)", hr, err)
	}

	// Messages outside the child vocabulary answer E_NOTIMPL.
	if err := childConn.SendBA(rpc.MsgDetect, nil); err != nil {
		t.Fatalf("send detect: %v", err)
	}
	if _, hr, _, err = childConn.RecvResponse(); err != nil || hr != rpc.ENotImpl {
		t.Fatalf("detect response = (%v, %v), want E_NOTIMPL", hr, err)
	}

	childOut.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v on pipe close, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("serve did not return after the child closed its pipe")
	}
}

type alwaysCancel struct{}

func (alwaysCancel) ShouldCancel(context.Context, string) CancelDecision { return CancelYes }

func TestServeEmbeddedChildCancelReply(t *testing.T) {
	parentIn, childOut := io.Pipe()
	childIn, parentOut := io.Pipe()
	parentConn := rpc.NewConn(duplex{Reader: parentIn, Writer: parentOut})
	childConn := rpc.NewConn(duplex{Reader: childIn, Writer: childOut})

	go func() {
		_ = ServeEmbeddedChild(context.Background(), parentConn, alwaysCancel{}, zerolog.Nop())
	}()
	defer childOut.Close()

	w := rpc.NewBufferWriter()
	w.WriteU32(10)
	w.WriteU32(5)
	if err := childConn.SendBA(rpc.MsgSendEmbeddedProgress, w.Bytes()); err != nil {
		t.Fatalf("send progress: %v", err)
	}
	_, hr, result, err := childConn.RecvResponse()
	if err != nil || hr != rpc.SOK {
		t.Fatalf("progress response = (%v, %v)", hr, err)
	}
	dr, err := rpc.NewBufferReader(result).ReadU32()
	if err != nil || DialogResult(dr) != DialogResultCancel {
		t.Fatalf("dialog result = (%d, %v), want Cancel", dr, err)
	}
}
