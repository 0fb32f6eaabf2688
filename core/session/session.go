// Package session owns the standard streams of a terminal and the
// running/idle state of the command attached to them.
package session

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// State of the foreground command.
type State int

const (
	Idle State = iota
	Running
	Killing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Killing:
		return "killing"
	default:
		return "unknown"
	}
}

// ErrNoInput is returned by Send after the input was closed by SendEOF and
// before a fresh pipe was installed.
var ErrNoInput = errors.New("session: input is closed")

// DefaultEOFDelay is how long SendEOF waits before installing a new pipe.
const DefaultEOFDelay = 100 * time.Millisecond

// Option configures a Session.
type Option func(*Session)

// WithEOFDelay sets the delay between closing the input and replacing it.
func WithEOFDelay(d time.Duration) Option {
	return func(s *Session) {
		s.eofDelay = d
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithStateObserver registers fn to be called after every state change.
func WithStateObserver(fn func(State)) Option {
	return func(s *Session) {
		s.observers = append(s.observers, fn)
	}
}

// Session is the per-terminal bundle of stdin, stdout and stderr pipes.
//
// The output pipes live as long as the Session so the front end keeps a
// single reader. The input pipe is replaced at the start of every top-level
// run so input typed for one command never leaks into the next.
type Session struct {
	mu       sync.Mutex
	state    State
	depth    int
	builtin  bool
	cancel   context.CancelFunc
	inputGen int

	inR, inW *os.File
	// Readers replaced after an EOF, they're closed once the command that may
	// still be draining them finishes.
	stale []*os.File

	outR, outW *os.File
	errR, errW *os.File

	eofDelay  time.Duration
	log       hclog.Logger
	observers []func(State)
}

// New creates a Session with fresh pipes.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		eofDelay: DefaultEOFDelay,
		log:      hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.outR, s.outW, err = os.Pipe(); err != nil {
		return nil, errors.Wrap(err, "creating stdout pipe")
	}
	if s.errR, s.errW, err = os.Pipe(); err != nil {
		s.outR.Close()
		s.outW.Close()
		return nil, errors.Wrap(err, "creating stderr pipe")
	}
	if err := s.resetInputLocked(true); err != nil {
		s.outR.Close()
		s.outW.Close()
		s.errR.Close()
		s.errW.Close()
		return nil, err
	}

	return s, nil
}

// resetInputLocked installs a new input pipe. If closeOld is false the old
// reader stays open until the next top-level run so it can be drained.
func (s *Session) resetInputLocked(closeOld bool) error {
	if s.inW != nil {
		s.inW.Close()
	}
	if s.inR != nil {
		if closeOld {
			s.inR.Close()
		} else {
			s.stale = append(s.stale, s.inR)
		}
	}
	s.inR, s.inW = nil, nil
	s.inputGen++

	r, w, err := os.Pipe()
	if err != nil {
		return errors.Wrap(err, "creating stdin pipe")
	}
	s.inR, s.inW = r, w
	return nil
}

func (s *Session) closeStaleLocked() {
	for _, f := range s.stale {
		f.Close()
	}
	s.stale = nil
}

func (s *Session) notify(state State) {
	s.log.Debug("state change", "state", state)
	for _, fn := range s.observers {
		fn(state)
	}
}

// Stdin returns the reader of the current input pipe.
func (s *Session) Stdin() io.Reader {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inR == nil {
		return eofReader{}
	}
	return s.inR
}

// Stdout returns the writable end of the output pipe.
func (s *Session) Stdout() io.Writer {
	return s.outW
}

// Stderr returns the writable end of the error pipe.
func (s *Session) Stderr() io.Writer {
	return s.errW
}

// ResetInput discards anything buffered on the input and returns the reader
// of the new pipe.
func (s *Session) ResetInput() io.Reader {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resetInputLocked(true); err != nil {
		s.log.Error("resetting input", "error", err)
		return eofReader{}
	}
	return s.inR
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning returns true while a command is in the foreground.
func (s *Session) IsRunning() bool {
	return s.State() == Running
}

// IsBuiltinRunning returns true while a built-in has the foreground.
func (s *Session) IsBuiltinRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Running && s.builtin
}

// Begin marks the start of a run. The outermost call installs a fresh input
// pipe, moves to Running and returns a context that Kill cancels; nested
// calls share it. The returned func must be called when the run ends.
func (s *Session) Begin(ctx context.Context) (context.Context, func()) {
	s.mu.Lock()
	s.depth++
	if s.depth > 1 {
		s.mu.Unlock()
		return ctx, s.endFunc()
	}

	s.closeStaleLocked()
	if err := s.resetInputLocked(true); err != nil {
		s.log.Error("resetting input", "error", err)
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.state = Running
	s.builtin = false
	s.mu.Unlock()

	s.notify(Running)
	return ctx, s.endFunc()
}

func (s *Session) endFunc() func() {
	var once sync.Once
	return func() {
		once.Do(s.end)
	}
}

func (s *Session) end() {
	s.mu.Lock()
	s.depth--
	if s.depth > 0 {
		s.mu.Unlock()
		return
	}

	cancel := s.cancel
	s.cancel = nil
	changed := s.state != Idle
	s.state = Idle
	s.builtin = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if changed {
		s.notify(Idle)
	}
}

// SetBuiltin marks whether a built-in owns the foreground and returns a func
// restoring the previous value.
func (s *Session) SetBuiltin(running bool) (restore func()) {
	s.mu.Lock()
	prev := s.builtin
	s.builtin = running
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.builtin = prev
		s.mu.Unlock()
	}
}

// Kill interrupts the foreground command. It's a no-op returning false if
// nothing is running or a built-in has the foreground.
//
// A newline is written to the input to unblock readers, then terminate is
// called to stop the process and the run context is cancelled.
func (s *Session) Kill(terminate func()) bool {
	s.mu.Lock()
	if s.state != Running || s.builtin {
		s.mu.Unlock()
		return false
	}
	s.state = Killing
	w := s.inW
	cancel := s.cancel
	s.mu.Unlock()

	s.notify(Killing)

	if w != nil {
		if _, err := w.Write([]byte("\n")); err != nil {
			s.log.Debug("unblocking input", "error", err)
		}
	}
	if terminate != nil {
		terminate()
	}
	if cancel != nil {
		cancel()
	}

	s.mu.Lock()
	if err := s.resetInputLocked(true); err != nil {
		s.log.Error("resetting input", "error", err)
	}
	s.state = Idle
	s.mu.Unlock()

	s.notify(Idle)
	return true
}

// SendEOF closes the writable end of the input so a blocked reader sees end
// of file. A fresh pipe is installed after the EOF delay. It returns false if
// the input was already closed.
func (s *Session) SendEOF() bool {
	s.mu.Lock()
	w := s.inW
	if w == nil {
		s.mu.Unlock()
		return false
	}
	s.inW = nil
	gen := s.inputGen
	s.mu.Unlock()

	w.Close()

	time.AfterFunc(s.eofDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		// Something else already replaced the pipe.
		if s.inputGen != gen || s.inR == nil {
			return
		}
		if err := s.resetInputLocked(false); err != nil {
			s.log.Error("resetting input", "error", err)
		}
	})
	return true
}

// CloseInput closes the writable end of the input until the next run
// begins. Unlike SendEOF no fresh pipe replaces it.
func (s *Session) CloseInput() error {
	s.mu.Lock()
	w := s.inW
	s.inW = nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}

// Send writes data to the input of the running command.
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	w := s.inW
	s.mu.Unlock()

	if w == nil {
		return ErrNoInput
	}
	_, err := w.Write(data)
	return err
}

// Forward copies everything written to stdout and stderr to the given
// writers until Close is called. Writes to the destinations are serialized so
// both may be the same writer.
func (s *Session) Forward(stdout, stderr io.Writer) error {
	var mu sync.Mutex
	stdout = &lockedWriter{mu: &mu, w: stdout}
	stderr = &lockedWriter{mu: &mu, w: stderr}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	copyStream := func(i int, dst io.Writer, src *os.File) {
		defer wg.Done()
		defer src.Close()
		_, errs[i] = io.Copy(dst, src)
	}

	wg.Add(2)
	go copyStream(0, stdout, s.outR)
	go copyStream(1, stderr, s.errR)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Close releases the pipes, Forward returns once buffered output is copied.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inW != nil {
		s.inW.Close()
		s.inW = nil
	}
	if s.inR != nil {
		s.inR.Close()
		s.inR = nil
	}
	s.inputGen++
	s.closeStaleLocked()

	var err error
	if e := s.outW.Close(); e != nil {
		err = e
	}
	if e := s.errW.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (s *lockedWriter) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(b)
}
