// Package vostest runs in-process commands against an in-memory system.
package vostest

import (
	"bytes"
	"io"

	"github.com/josephlewis42/libterm/core/vos"
	"github.com/spf13/afero"
)

// Cmd is similar to exec.Cmd.
type Cmd struct {
	// Process function
	Process vos.ProcessFunc
	// Process arguments, the first argument should be the process name.
	Argv []string
	// Dir is the working directory, it defaults to "/".
	Dir string
	// Env gives the environment variables for the new process in the form
	// returned by Environ.
	Env []string
	// Fs is the filesystem, it defaults to an empty in-memory one.
	Fs afero.Fs

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	ExitStatus int
	// InvalidInvocations collects every error passed to LogInvalidInvocation.
	InvalidInvocations []error
}

// Command builds a Cmd running process with the given arguments.
func Command(process vos.ProcessFunc, name string, arg ...string) *Cmd {
	return &Cmd{
		Process: process,
		Argv:    append([]string{name}, arg...),
	}
}

// CombinedOutput runs the command and returns stdout and stderr interleaved.
func (c *Cmd) CombinedOutput() ([]byte, error) {
	buf := &bytes.Buffer{}
	c.Stdout = buf
	c.Stderr = buf

	if err := c.Run(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run starts the command and waits for it to complete.
func (c *Cmd) Run() error {
	if c.Fs == nil {
		c.Fs = afero.NewMemMapFs()
	}
	if c.Dir == "" {
		c.Dir = "/"
	}

	proc := vos.NewProcOS(c.Argv, &vos.ProcAttr{
		Dir:   c.Dir,
		Env:   c.Env,
		Files: vos.NewStdio(c.Stdin, c.Stdout, c.Stderr),
		Fs:    c.Fs,
		OnInvalidInvocation: func(_ []string, err error) {
			c.InvalidInvocations = append(c.InvalidInvocations, err)
		},
	})

	c.ExitStatus = proc.Run(c.Process)
	return nil
}
