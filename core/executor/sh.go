package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/josephlewis42/libterm/core/vos"
	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ShExecutor runs lines with a POSIX shell interpreter. Programs registered
// in Commands run in-process, anything else runs on the host if
// HostCommands is set.
type ShExecutor struct {
	// Commands holds the in-process programs by name.
	Commands map[string]vos.ProcessFunc
	// HostCommands allows falling back to host processes.
	HostCommands bool
	// Fs is the filesystem given to in-process programs.
	Fs afero.Fs
	// OnInvalidInvocation receives misuse reports from in-process programs.
	OnInvalidInvocation func(argv []string, err error)
	Log                 hclog.Logger

	mu      sync.Mutex
	current *ActiveSession
}

var _ Executor = (*ShExecutor)(nil)

func (e *ShExecutor) log() hclog.Logger {
	if e.Log == nil {
		return hclog.NewNullLogger()
	}
	return e.Log
}

// Switch implements Executor.Switch.
func (e *ShExecutor) Switch(as *ActiveSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = as
}

// Current implements Executor.Current.
func (e *ShExecutor) Current() *ActiveSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Kill implements Executor.Kill.
func (e *ShExecutor) Kill(as *ActiveSession) {
	e.log().Debug("kill", "session", as.Name, "program", as.Program())
	as.kill()
}

// CurrentProgram implements Executor.CurrentProgram.
func (e *ShExecutor) CurrentProgram(as *ActiveSession) string {
	return as.Program()
}

// System implements Executor.System.
func (e *ShExecutor) System(ctx context.Context, as *ActiveSession, line string) int {
	stdin, stdout, stderr := as.Streams()

	prog, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		fmt.Fprintf(stderr, "sh: %v\n", err)
		return StatusSyntaxError
	}

	runner, err := e.runnerFor(as)
	if err != nil {
		fmt.Fprintf(stderr, "sh: %v\n", err)
		return StatusGeneralError
	}
	if err := interp.StdIO(stdin, stdout, stderr)(runner); err != nil {
		fmt.Fprintf(stderr, "sh: %v\n", err)
		return StatusGeneralError
	}

	ctx, cancel := context.WithCancel(ctx)
	as.setCancel(cancel)
	defer func() {
		as.setCancel(nil)
		cancel()
	}()

	// Running the whole file would imply exit and drop the interpreter
	// state, so statements run one at a time.
	for _, stmt := range prog.Stmts {
		err = runner.Run(ctx, stmt)
		if runner.Exited() || ctx.Err() != nil {
			break
		}
	}
	as.finishRun(runner)

	switch {
	case ctx.Err() != nil:
		return StatusInterrupted
	case err == nil:
		return 0
	}

	if status, ok := interp.IsExitStatus(err); ok {
		return int(status)
	}
	fmt.Fprintf(stderr, "sh: %v\n", err)
	return StatusGeneralError
}

// runnerFor returns the session's interpreter, creating a new one if the
// previous one ran exit.
func (e *ShExecutor) runnerFor(as *ActiveSession) (*interp.Runner, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.runner != nil && !as.exited {
		return as.runner, nil
	}

	dir := as.dir

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(as.env...)),
		interp.ExecHandlers(e.execMiddleware(as)),
	}
	if dir != "" {
		opts = append(opts, interp.Dir(dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return nil, err
	}
	as.runner = runner
	return runner, nil
}

func (e *ShExecutor) execMiddleware(as *ActiveSession) func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			as.setProgram(args[0])
			defer as.setProgram("")

			if proc, ok := e.Commands[args[0]]; ok {
				e.log().Trace("in-process command", "name", args[0])
				return e.runInProcess(ctx, proc, args)
			}

			if !e.HostCommands {
				hc := interp.HandlerCtx(ctx)
				fmt.Fprintf(hc.Stderr, "%s: command not found\n", args[0])
				return interp.NewExitStatus(StatusNotFound)
			}

			e.log().Trace("host command", "name", args[0])
			return next(ctx, args)
		}
	}
}

func (e *ShExecutor) runInProcess(ctx context.Context, proc vos.ProcessFunc, args []string) error {
	hc := interp.HandlerCtx(ctx)

	var env []string
	hc.Env.Each(func(name string, vr expand.Variable) bool {
		if vr.Exported {
			env = append(env, name+"="+vr.String())
		}
		return true
	})

	procOS := vos.NewProcOS(args, &vos.ProcAttr{
		Dir:                 hc.Dir,
		Env:                 env,
		Files:               vos.NewStdio(hc.Stdin, hc.Stdout, hc.Stderr),
		Fs:                  e.Fs,
		OnInvalidInvocation: e.OnInvalidInvocation,
	})

	if status := procOS.Run(proc); status != 0 {
		return interp.NewExitStatus(uint8(status))
	}
	return nil
}
