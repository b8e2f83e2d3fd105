package commands

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/chainburn/chainburn/pkg/executor"
	"github.com/chainburn/chainburn/pkg/rpc"
)

// embeddedParent is the child->parent message channel an Embedded launch
// reports through instead of a local bootstrapper application (§4.6). Set
// once by ConfigureEmbedded before cobra parses argv; runApply swaps its
// publisher and cancel policy for it when present.
var embeddedParent *embeddedChannel

// ConfigureEmbedded enters the Embedded role: validate the
// -burn.embedded=<pipename>,<secret>,<parent-pid> switch and wire the
// parent message channel over the pipes inherited on stdin/stdout.
func ConfigureEmbedded(arg string) error {
	if _, err := executor.ParsePipeSpec(arg); err != nil {
		return fmt.Errorf("embedded: %w", err)
	}
	embeddedParent = &embeddedChannel{
		conn: rpc.NewConn(stdioPipe{Reader: os.Stdin, Writer: os.Stdout}),
	}
	return nil
}

// embeddedChannel sends progress, errors, and log lines to the parent
// bundle's engine over the embedded protocol, and records the parent's
// DialogResult replies so a Cancel answer stops the run at the next
// checkpoint. It implements both executor.EventPublisher and
// executor.CancelPolicy.
type embeddedChannel struct {
	conn *rpc.Conn

	mu        sync.Mutex
	cancelled bool
}

func (c *embeddedChannel) Publish(_ context.Context, ev executor.Event) error {
	switch ev.Type {
	case executor.EventProgress:
		w := rpc.NewBufferWriter()
		w.WriteU32(uint32(ev.PackagePct))
		w.WriteU32(uint32(ev.OverallPct))
		return c.send(rpc.MsgSendEmbeddedProgress, w.Bytes())
	case executor.EventError:
		w := rpc.NewBufferWriter()
		w.WriteU32(uint32(ev.HResult))
		w.WriteString(ev.Message)
		w.WriteU32(0)
		return c.send(rpc.MsgSendEmbeddedError, w.Bytes())
	default:
		w := rpc.NewBufferWriter()
		w.WriteString(fmt.Sprintf("%s package=%s %s", ev.Type, ev.PackageID, ev.Message))
		return c.send(rpc.MsgLog, w.Bytes())
	}
}

// send delivers one framed message and consumes the parent's reply. Error
// and Progress replies carry a DialogResult; Cancel or Abort latches the
// cancelled flag ShouldCancel reports.
func (c *embeddedChannel) send(msgType rpc.MessageType, params []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SendBA(msgType, params); err != nil {
		return err
	}
	_, hr, result, err := c.conn.RecvResponse()
	if err != nil {
		return err
	}
	if hr != rpc.SOK {
		return fmt.Errorf("embedded: parent answered %s with 0x%08x", msgType, uint32(hr))
	}
	if len(result) >= 4 {
		dr, err := rpc.NewBufferReader(result).ReadU32()
		if err != nil {
			return err
		}
		switch executor.DialogResult(dr) {
		case executor.DialogResultCancel, executor.DialogResultAbort:
			c.cancelled = true
		}
	}
	return nil
}

// ShouldCancel implements executor.CancelPolicy: once the parent has
// answered Cancel or Abort, every subsequent action is declined.
func (c *embeddedChannel) ShouldCancel(context.Context, string) executor.CancelDecision {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return executor.CancelYes
	}
	return executor.CancelNo
}
