package vos

import (
	"bytes"
	"io"
)

// Stdio is a VIO over plain readers and writers. The streams stay owned by
// the caller: a command closing its stdout doesn't close the terminal's.
type Stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

var _ VIO = (*Stdio)(nil)

// NewStdio wraps the streams. A nil stdin reads as empty and nil outputs are
// discarded.
func NewStdio(stdin io.Reader, stdout, stderr io.Writer) *Stdio {
	if stdin == nil {
		stdin = bytes.NewReader(nil)
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Stdio{in: stdin, out: stdout, err: stderr}
}

func (s *Stdio) Stdin() io.ReadCloser   { return io.NopCloser(s.in) }
func (s *Stdio) Stdout() io.WriteCloser { return keepOpen{s.out} }
func (s *Stdio) Stderr() io.WriteCloser { return keepOpen{s.err} }

type keepOpen struct {
	io.Writer
}

func (keepOpen) Close() error { return nil }
