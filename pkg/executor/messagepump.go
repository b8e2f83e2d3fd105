package executor

import (
	"context"
	"sync"
)

// MessageType is one of the window-thread messages Normal mode posts and
// dispatches one at a time (§4.6).
type MessageType int

const (
	MessageDetect MessageType = iota
	MessagePlan
	MessageElevate
	MessageApply
	MessageLaunchApprovedExe
	MessageQuit
)

// Handler runs one posted message to completion.
type Handler func(ctx context.Context) error

// Pump serializes Normal mode's core operations: only one of
// Detect/Plan/Elevate/Apply/LaunchApprovedExe/Quit runs at a time, and the
// "is active" flag is raised for the duration of each.
type Pump struct {
	mu       sync.Mutex
	active   bool
	quitting bool
	queue    []queuedMessage
}

type queuedMessage struct {
	msgType MessageType
	handler Handler
}

// NewPump returns an idle, empty Pump.
func NewPump() *Pump {
	return &Pump{}
}

// IsActive reports whether a message is currently being serviced.
func (p *Pump) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Post enqueues a message for serialized dispatch. Once Quit has been
// posted, further non-Quit messages are rejected rather than queued, so a
// shutting-down engine drains only what was already in flight.
func (p *Pump) Post(ctx context.Context, msgType MessageType, handler Handler) error {
	p.mu.Lock()
	if p.quitting && msgType != MessageQuit {
		p.mu.Unlock()
		return errClosedPump
	}
	if msgType == MessageQuit {
		p.quitting = true
	}
	p.queue = append(p.queue, queuedMessage{msgType: msgType, handler: handler})
	p.mu.Unlock()

	return p.drain(ctx)
}

// drain runs every queued message to completion, one at a time, holding the
// active latch for each.
func (p *Pump) drain(ctx context.Context) error {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return nil
		}
		next := p.queue[0]
		p.queue = p.queue[1:]
		p.active = true
		p.mu.Unlock()

		err := next.handler(ctx)

		p.mu.Lock()
		p.active = false
		p.mu.Unlock()

		if err != nil {
			return err
		}
	}
}

type pumpError string

func (e pumpError) Error() string { return string(e) }

const errClosedPump = pumpError("message pump is quitting: message rejected")
