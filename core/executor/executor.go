// Package executor is the external command-execution layer: everything the
// shell doesn't handle itself is handed to it as a line of text.
package executor

import (
	"context"
	"io"
	"os"
	"sync"

	"mvdan.cc/sh/v3/interp"
)

// Exit statuses produced by the executor itself.
const (
	StatusSyntaxError  = 2
	StatusNotFound     = 127
	StatusInterrupted  = 130
	StatusGeneralError = 1
)

// Executor runs command lines on behalf of an ActiveSession.
type Executor interface {
	// Switch selects the session whose output subsequent runs belong to.
	Switch(as *ActiveSession)
	// Current returns the session selected by the last Switch.
	Current() *ActiveSession
	// System runs line with the session's streams and returns the exit status.
	System(ctx context.Context, as *ActiveSession, line string) int
	// Kill terminates the command the session is running, if any.
	Kill(as *ActiveSession)
	// CurrentProgram returns the name of the program the session is running.
	CurrentProgram(as *ActiveSession) string
}

// ActiveSession is the executor-side handle of one terminal. It holds the
// stream binding, the interpreter state (working directory, exported
// variables) and the command in progress.
type ActiveSession struct {
	Name string

	mu      sync.Mutex
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	dir     string
	env     []string
	runner  *interp.Runner
	exited  bool
	cancel  context.CancelFunc
	program string
}

// NewActiveSession creates a handle starting in dir with the given
// environment. Streams default to /dev/null until Bind is called.
func NewActiveSession(name, dir string, env []string) *ActiveSession {
	return &ActiveSession{
		Name:   name,
		dir:    dir,
		env:    env,
		stdout: io.Discard,
		stderr: io.Discard,
	}
}

// Bind sets the streams used by the next run and returns a func restoring
// the previous binding.
func (as *ActiveSession) Bind(stdin io.Reader, stdout, stderr io.Writer) (restore func()) {
	as.mu.Lock()
	prevIn, prevOut, prevErr := as.stdin, as.stdout, as.stderr
	as.stdin, as.stdout, as.stderr = stdin, stdout, stderr
	as.mu.Unlock()

	return func() {
		as.mu.Lock()
		as.stdin, as.stdout, as.stderr = prevIn, prevOut, prevErr
		as.mu.Unlock()
	}
}

// Streams returns the current binding.
func (as *ActiveSession) Streams() (stdin io.Reader, stdout, stderr io.Writer) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.stdin, as.stdout, as.stderr
}

// Dir returns the working directory, it follows cd run through the executor.
func (as *ActiveSession) Dir() string {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.dir == "" {
		wd, _ := os.Getwd()
		return wd
	}
	return as.dir
}

// finishRun caches the interpreter state once a run is over, the runner
// itself is only touched by the goroutine running it.
func (as *ActiveSession) finishRun(runner *interp.Runner) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if runner.Dir != "" {
		as.dir = runner.Dir
	}
	as.exited = runner.Exited()
}

func (as *ActiveSession) setCancel(cancel context.CancelFunc) {
	as.mu.Lock()
	as.cancel = cancel
	as.mu.Unlock()
}

func (as *ActiveSession) setProgram(name string) {
	as.mu.Lock()
	as.program = name
	as.mu.Unlock()
}

// Program returns the name of the program currently executing.
func (as *ActiveSession) Program() string {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.program
}

func (as *ActiveSession) kill() {
	as.mu.Lock()
	cancel := as.cancel
	as.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
