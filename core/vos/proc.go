package vos

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/afero"
)

// ProcAttr holds the attributes that will be applied to a new process.
type ProcAttr struct {
	// If Dir is non-empty, relative paths resolve against it.
	Dir string
	// Env holds the environment variables in "key=value" form.
	Env []string
	// Files holds the standard streams, if nil /dev/null is used.
	Files VIO
	// Fs is the filesystem seen by the process, if nil the host's is used.
	Fs afero.Fs
	// OnInvalidInvocation is called when the process reports it was called
	// incorrectly.
	OnInvalidInvocation func(argv []string, err error)
}

// ProcOS is the VOS handed to a single in-process command.
type ProcOS struct {
	VEnv
	VIO
	VFS

	args      []string
	dir       string
	onInvalid func(argv []string, err error)
}

var _ VOS = (*ProcOS)(nil)

// NewProcOS creates the environment for running argv.
func NewProcOS(argv []string, attr *ProcAttr) *ProcOS {
	if attr == nil {
		attr = &ProcAttr{}
	}

	files := attr.Files
	if files == nil {
		files = NewStdio(nil, nil, nil)
	}

	base := attr.Fs
	if base == nil {
		base = afero.NewOsFs()
	}

	proc := &ProcOS{
		VEnv:      NewMapEnvFromEnvList(attr.Env),
		VIO:       files,
		args:      argv,
		dir:       attr.Dir,
		onInvalid: attr.OnInvalidInvocation,
	}
	proc.VFS = NewWorkdirFs(base, proc.Getwd)

	return proc
}

// Args implements VOS.Args.
func (p *ProcOS) Args() []string {
	return p.args
}

// Getwd implements VOS.Getwd.
func (p *ProcOS) Getwd() string {
	return p.dir
}

// LogInvalidInvocation implements VOS.LogInvalidInvocation.
func (p *ProcOS) LogInvalidInvocation(err error) {
	if p.onInvalid != nil {
		p.onInvalid(p.args, err)
	}
}

// Run executes the process, a panic is reported on stderr and becomes exit
// status 2.
func (p *ProcOS) Run(process ProcessFunc) (status int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(p.Stderr(), "%s: panic: %v\n", p.args[0], r)
			p.LogInvalidInvocation(fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
			status = 2
		}
	}()

	return process(p)
}
