// Package ui bridges built-ins that need the front end (clearing the
// screen, opening links, the clipboard) to whatever is displaying the
// terminal.
//
// Built-ins run synchronously on the shell's goroutine and block in Do until
// the front end answers on its own goroutine.
package ui

import (
	"context"

	"github.com/pkg/errors"
)

// ErrUnsupported is returned when the front end can't serve a request.
var ErrUnsupported = errors.New("not supported by this terminal")

// Request is a typed message sent to the front end.
type Request interface {
	// Kind is a short name used in logs.
	Kind() string
}

// Clear asks the front end to clear the screen.
type Clear struct{}

// NewTab asks the front end to open another terminal.
type NewTab struct{}

// CloseTab asks the front end to close the terminal with the exit code.
type CloseTab struct {
	Code int
}

// OpenURL asks the front end to open a link.
type OpenURL struct {
	URL string
}

// Share asks the front end to share files or text.
type Share struct {
	Items []string
}

// Edit asks the front end to edit a file, it blocks until editing is done.
type Edit struct {
	Path string
}

// SetClipboard replaces the clipboard contents.
type SetClipboard struct {
	Text string
}

// GetClipboard reads the clipboard contents into Response.Text.
type GetClipboard struct{}

func (Clear) Kind() string        { return "clear" }
func (NewTab) Kind() string       { return "new_tab" }
func (CloseTab) Kind() string     { return "close_tab" }
func (OpenURL) Kind() string      { return "open_url" }
func (Share) Kind() string        { return "share" }
func (Edit) Kind() string         { return "edit" }
func (SetClipboard) Kind() string { return "set_clipboard" }
func (GetClipboard) Kind() string { return "get_clipboard" }

// Response is the front end's answer to a Request.
type Response struct {
	Text string
	Err  error
}

// Requester sends requests to the front end.
type Requester interface {
	Do(ctx context.Context, req Request) Response
}

// Handler answers requests, it's run by the front end.
type Handler interface {
	HandleUI(ctx context.Context, req Request) Response
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, req Request) Response

// HandleUI implements Handler.
func (f HandlerFunc) HandleUI(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Unsupported is a Requester for shells without a front end.
type Unsupported struct{}

// Do implements Requester.
func (Unsupported) Do(context.Context, Request) Response {
	return Response{Err: ErrUnsupported}
}
