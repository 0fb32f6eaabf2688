package ui

import (
	"context"
)

// Call is a pending request waiting for the front end.
type Call struct {
	Request Request
	reply   chan Response
}

// Reply answers the call, it must be called exactly once.
func (c *Call) Reply(resp Response) {
	c.reply <- resp
}

// Bridge is a synchronous request/response channel between the shell and
// its front end.
type Bridge struct {
	calls chan *Call
}

var _ Requester = (*Bridge)(nil)

// NewBridge creates an unbuffered Bridge.
func NewBridge() *Bridge {
	return &Bridge{calls: make(chan *Call)}
}

// Do sends req and blocks until the front end replies or ctx is done.
func (b *Bridge) Do(ctx context.Context, req Request) Response {
	call := &Call{Request: req, reply: make(chan Response, 1)}

	select {
	case b.calls <- call:
	case <-ctx.Done():
		return Response{Err: ctx.Err()}
	}

	select {
	case resp := <-call.reply:
		return resp
	case <-ctx.Done():
		return Response{Err: ctx.Err()}
	}
}

// Calls is drained by front ends that multiplex requests with other events.
func (b *Bridge) Calls() <-chan *Call {
	return b.calls
}

// Serve answers requests with h until ctx is done.
func (b *Bridge) Serve(ctx context.Context, h Handler) error {
	for {
		select {
		case call := <-b.calls:
			call.Reply(h.HandleUI(ctx, call.Request))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
