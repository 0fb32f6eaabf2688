package vos

import (
	"io"

	"github.com/spf13/afero"
)

// VFS implements a virtual filesystem.
type VFS = afero.Fs

// VIO holds the standard streams of a process.
type VIO interface {
	Stdin() io.ReadCloser
	Stdout() io.WriteCloser
	Stderr() io.WriteCloser
}

// VOS is the view of the system given to in-process commands. Relative paths
// passed to the VFS methods resolve against Getwd.
type VOS interface {
	VEnv
	VIO
	VFS

	// Args holds the command line arguments, starting with the program name.
	Args() []string
	// Getwd returns the working directory of the process.
	Getwd() string
	// LogInvalidInvocation records that the command was called incorrectly.
	LogInvalidInvocation(err error)
}

// ProcessFunc is the entrypoint of an in-process command, it returns the exit
// status.
type ProcessFunc func(virtOS VOS) int
