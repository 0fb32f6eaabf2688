// Package terminal is the interactive front end of a shell: it reads lines
// with readline, routes them to the shell or to the running command and
// answers the shell's UI requests.
package terminal

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/josephlewis42/libterm/core/shell"
	"github.com/josephlewis42/libterm/core/ui"
	"github.com/muesli/termenv"
)

// Default window size used when the size is unknown.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// Options configures a Terminal.
type Options struct {
	// Shell runs the lines, required.
	Shell *shell.Shell
	// Bridge carries the shell's UI requests, it must be the shell's
	// Requester. Required.
	Bridge *ui.Bridge

	Stdin  io.Reader
	Stdout io.Writer

	// IsTerminal reports whether the client is a terminal. Output newlines are
	// translated to CRLF and the line is edited in place when it is.
	IsTerminal bool
	// RawMode lets readline put the process's own terminal in raw mode. It
	// must be false when the client is remote.
	RawMode bool
	Width   int
	Height  int

	// NewTab opens another terminal, without it NewTab requests are refused.
	NewTab func(ctx context.Context) error
	// Startup lines run before the first prompt, they aren't recorded in the
	// history.
	Startup []string
	// Motd is printed before the startup lines.
	Motd string

	Log hclog.Logger
}

// Terminal drives one shell from an input stream.
type Terminal struct {
	shell  *shell.Shell
	bridge *ui.Bridge
	rl     *readline.Instance
	stdin  *trackingReader
	// cancelIn sits between stdin and the editor.
	cancelIn *readline.CancelableStdin
	out      io.Writer

	isTerminal bool
	width      int64
	height     int64
	onWidth    atomic.Value

	newTab  func(ctx context.Context) error
	startup []string
	motd    string
	log     hclog.Logger

	busy      int32
	clipboard string
	closeCode *int
}

// New creates a terminal, Close must be called to release it.
func New(opts Options) (*Terminal, error) {
	log := opts.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	t := &Terminal{
		shell:      opts.Shell,
		bridge:     opts.Bridge,
		stdin:      &trackingReader{r: opts.Stdin},
		isTerminal: opts.IsTerminal,
		width:      int64(width),
		height:     int64(height),
		newTab:     opts.NewTab,
		startup:    opts.Startup,
		motd:       opts.Motd,
		log:        log,
	}

	t.out = opts.Stdout
	if opts.IsTerminal {
		t.out = &crlfWriter{w: opts.Stdout}
	}

	t.cancelIn = readline.NewCancelableStdin(t.stdin)
	cfg := &readline.Config{
		Stdin:                  t.cancelIn,
		Stdout:                 t.out,
		Stderr:                 t.out,
		AutoComplete:           &completer{t: t},
		DisableAutoSaveHistory: true,
		HistoryLimit:           opts.Shell.Config.History.Limit,
		FuncGetWidth: func() int {
			return int(atomic.LoadInt64(&t.width))
		},
		FuncIsTerminal: func() bool {
			return opts.IsTerminal
		},
		FuncOnWidthChanged: func(f func()) {
			t.onWidth.Store(f)
		},
	}
	if !opts.RawMode {
		cfg.FuncMakeRaw = func() error { return nil }
		cfg.FuncExitRaw = func() error { return nil }
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	t.rl = rl

	if lines, err := opts.Shell.History.All(); err == nil {
		for _, line := range lines {
			rl.SaveHistory(line)
		}
	} else {
		log.Warn("loading history", "error", err)
	}

	return t, nil
}

// Close releases the line editor. A read blocked on the client's input is
// abandoned so the editor can shut down while the client stays connected.
func (t *Terminal) Close() error {
	t.cancelIn.Close()
	return t.rl.Close()
}

// Resize records a new window size.
func (t *Terminal) Resize(width, height int) {
	if width > 0 {
		atomic.StoreInt64(&t.width, int64(width))
	}
	if height > 0 {
		atomic.StoreInt64(&t.height, int64(height))
	}
	if f, ok := t.onWidth.Load().(func()); ok && f != nil {
		f()
	}
}

// Busy reports whether a command is running.
func (t *Terminal) Busy() bool {
	return atomic.LoadInt32(&t.busy) == 1
}

// syncSize publishes the window size to built-ins, it's only called while
// nothing runs.
func (t *Terminal) syncSize() {
	t.shell.Vars.Set(shell.VarColumns, strconv.FormatInt(atomic.LoadInt64(&t.width), 10))
	t.shell.Vars.Set(shell.VarLines, strconv.FormatInt(atomic.LoadInt64(&t.height), 10))
}

type input struct {
	line string
	err  error
}

// readLines reads a line each time a prompt is sent on next.
func (t *Terminal) readLines(ctx context.Context, next <-chan string, lines chan<- input) {
	for {
		select {
		case prompt := <-next:
			t.rl.SetPrompt(prompt)
			line, err := t.rl.Readline()
			select {
			case lines <- input{line, err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Run reads and runs lines until the input ends, the user exits or ctx is
// done. It returns the exit code requested by exit, 0 otherwise.
func (t *Terminal) Run(ctx context.Context) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		if err := t.shell.Session.Forward(t.rl.Stdout(), t.rl.Stderr()); err != nil {
			t.log.Debug("forwarding output", "error", err)
		}
	}()

	done := make(chan int, 1)
	start := func(run func(ctx context.Context) int) {
		t.syncSize()
		atomic.StoreInt32(&t.busy, 1)

		// The run begins here so input forwarded before the worker is
		// scheduled reaches the new command.
		runCtx, end := t.shell.Session.Begin(ctx)
		go func() {
			defer end()
			done <- run(runCtx)
		}()
	}

	defer func() {
		if t.Busy() {
			t.shell.Kill()
			<-done
		}
		t.Close()
		t.shell.Close()
		<-forwarded
	}()

	if t.motd != "" {
		io.WriteString(t.rl.Stdout(), t.motd+"\n")
	}

	pending := append([]string(nil), t.startup...)
	startPending := func() bool {
		if len(pending) == 0 {
			return false
		}
		line := pending[0]
		pending = pending[1:]
		start(func(ctx context.Context) int {
			return t.shell.RunScript(ctx, line, nil)
		})
		return true
	}
	startPending()

	next := make(chan string, 1)
	lines := make(chan input)
	go t.readLines(ctx, next, lines)
	next <- t.prompt()

	for {
		select {
		case in := <-lines:
			if code, exit := t.handleInput(in, start); exit {
				return code, nil
			}
			next <- t.prompt()

		case code := <-done:
			atomic.StoreInt32(&t.busy, 0)
			t.log.Debug("run finished", "code", code)
			if t.closeCode != nil {
				return *t.closeCode, nil
			}
			if !startPending() {
				t.rl.SetPrompt(t.prompt())
				t.rl.Refresh()
			}

		case call := <-t.bridge.Calls():
			call.Reply(t.HandleUI(ctx, call.Request))

		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// handleInput routes a line read from the user. It returns true if the
// terminal should exit.
func (t *Terminal) handleInput(in input, start func(func(ctx context.Context) int)) (int, bool) {
	switch {
	case in.err == readline.ErrInterrupt:
		if t.Busy() {
			t.shell.Kill()
		}

	case in.err == io.EOF:
		if t.stdin.Closed() {
			t.log.Debug("input closed")
			return 0, true
		}
		if !t.Busy() {
			return 0, true
		}
		t.shell.SendEOF()

	case in.err != nil:
		t.log.Warn("reading line", "error", in.err)
		return 1, true

	case t.Busy():
		if err := t.shell.Session.Send([]byte(in.line + "\n")); err != nil {
			t.log.Debug("dropped input", "error", err)
		}

	case strings.TrimSpace(in.line) == "":

	default:
		t.rl.SaveHistory(in.line)
		line := in.line
		start(func(ctx context.Context) int {
			return t.shell.Run(ctx, line)
		})
	}
	return 0, false
}

// prompt is empty while a command owns the input.
func (t *Terminal) prompt() string {
	if t.Busy() {
		return ""
	}
	return t.shell.Prompt()
}

// HandleUI answers a request from the shell. It's called from the Run loop.
func (t *Terminal) HandleUI(ctx context.Context, req ui.Request) ui.Response {
	switch req := req.(type) {
	case ui.Clear:
		termenv.NewOutput(t.rl.Stdout()).ClearScreen()

	case ui.NewTab:
		if t.newTab == nil {
			return ui.Response{Err: ui.ErrUnsupported}
		}
		if err := t.newTab(ctx); err != nil {
			return ui.Response{Err: err}
		}

	case ui.CloseTab:
		code := req.Code
		t.closeCode = &code

	case ui.OpenURL:
		t.notice("open", req.URL)

	case ui.Share:
		t.notice("share", req.Items...)

	case ui.SetClipboard:
		t.clipboard = req.Text

	case ui.GetClipboard:
		return ui.Response{Text: t.clipboard}

	default:
		return ui.Response{Err: ui.ErrUnsupported}
	}
	return ui.Response{}
}

func (t *Terminal) notice(action string, items ...string) {
	color.New(color.FgCyan).Fprintf(t.rl.Stdout(), "[%s] %s\n", action, strings.Join(items, " "))
}

// trackingReader remembers whether the underlying input ended so end of
// file from the user can be told apart from a closed connection.
type trackingReader struct {
	r      io.Reader
	closed int32
}

func (tr *trackingReader) Read(p []byte) (int, error) {
	n, err := tr.r.Read(p)
	if err != nil {
		atomic.StoreInt32(&tr.closed, 1)
	}
	return n, err
}

// Closed reports whether a read failed.
func (tr *trackingReader) Closed() bool {
	return atomic.LoadInt32(&tr.closed) == 1
}

// crlfWriter translates bare LF to CRLF for clients without a line
// discipline.
type crlfWriter struct {
	w      io.Writer
	lastCR bool
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	var buf []byte
	for _, b := range p {
		if b == '\n' && !c.lastCR {
			buf = append(buf, '\r')
		}
		buf = append(buf, b)
		c.lastCR = b == '\r'
	}
	if _, err := c.w.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
