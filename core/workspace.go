// Package core assembles shells from a configuration directory and serves
// them locally or over SSH.
package core

import (
	"context"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/josephlewis42/libterm/commands"
	"github.com/josephlewis42/libterm/core/config"
	"github.com/josephlewis42/libterm/core/executor"
	"github.com/josephlewis42/libterm/core/logger"
	"github.com/josephlewis42/libterm/core/session"
	"github.com/josephlewis42/libterm/core/settings"
	"github.com/josephlewis42/libterm/core/shell"
	"github.com/josephlewis42/libterm/core/ui"
	"github.com/josephlewis42/libterm/core/vos"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Workspace holds the resources shared by every terminal started from one
// configuration.
type Workspace struct {
	Config   *config.Configuration
	Settings *settings.Store
	Events   *logger.Logger
	Fs       afero.Fs
	Version  string
	Log      hclog.Logger

	toClose listCloser
}

// WorkspaceOptions configures OpenWorkspace.
type WorkspaceOptions struct {
	Version string
	Log     hclog.Logger
	// Fs is the filesystem shells see, it defaults to the host's.
	Fs afero.Fs
	// NoEventLog discards events instead of appending them to the event log.
	NoEventLog bool
}

// OpenWorkspace opens the settings database and event log of cfg.
func OpenWorkspace(cfg *config.Configuration, opts WorkspaceOptions) (*Workspace, error) {
	log := opts.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	ws := &Workspace{
		Config:  cfg,
		Fs:      fs,
		Version: opts.Version,
		Log:     log,
		Events:  logger.NewNopLogger(),
	}

	store, err := settings.Open(cfg.SettingsPath())
	if err != nil {
		// Settings are optional, history falls back to memory.
		log.Warn("settings unavailable", "path", cfg.SettingsPath(), "error", err)
	} else {
		ws.Settings = store
		ws.toClose = append(ws.toClose, store)
	}

	if !opts.NoEventLog {
		fd, err := cfg.OpenEventLog()
		if err != nil {
			ws.Close()
			return nil, errors.Wrap(err, "opening event log")
		}
		ws.toClose = append(ws.toClose, fd)
		ws.Events = logger.NewJSONLinesLogRecorder(fd)
	}

	return ws, nil
}

// Close releases the settings database and event log.
func (ws *Workspace) Close() error {
	return ws.toClose.Close()
}

// ShellOptions describes the terminal a shell is created for.
type ShellOptions struct {
	Name string
	// Dir defaults to the user's home directory.
	Dir string
	// Env is given to commands in addition to the configured variables.
	Env    []string
	UI     ui.Requester
	Events *logger.SessionLogger
}

// NewShell creates a shell with its own executor.
func (ws *Workspace) NewShell(opts ShellOptions) (*shell.Shell, error) {
	log := ws.Log.Named("shell").With("terminal", opts.Name)

	exec := &executor.ShExecutor{
		Commands:     commands.AllCommands,
		HostCommands: ws.Config.HostCommands,
		Fs:           ws.Fs,
		Log:          log.Named("executor"),
		OnInvalidInvocation: func(argv []string, err error) {
			log.Debug("invalid invocation", "argv", argv, "error", err)
		},
	}

	dir := opts.Dir
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = home
		}
	}

	env := append(append([]string(nil), ws.Config.Env...), opts.Env...)
	env = dedupeEnv(env)

	return shell.New(shell.Options{
		Name:     opts.Name,
		Config:   ws.Config,
		Executor: exec,
		UI:       opts.UI,
		Settings: ws.Settings,
		Fs:       ws.Fs,
		Dir:      dir,
		Env:      env,
		Commands: commands.Names(),
		Version:  ws.Version,
		Log:      log,
		Events:   opts.Events,
	})
}

// StartupLines are run by new terminals before the first prompt.
func (ws *Workspace) StartupLines() []string {
	if ws.Config.Embedded {
		return nil
	}
	return []string{"help --startup"}
}

// RunAttached runs fn with the shell's session wired to the given streams
// instead of a terminal. Input is forwarded until stdin ends, then the
// command sees end of file.
func RunAttached(ctx context.Context, sh *shell.Shell, stdin io.Reader, stdout, stderr io.Writer, fn func(ctx context.Context) int) int {
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		sh.Session.Forward(stdout, stderr)
	}()

	// Input sent before the run begins would be discarded.
	ctx, end := sh.Session.Begin(ctx)
	go func() {
		io.Copy(sessionWriter{sh.Session}, stdin)
		sh.Session.CloseInput()
	}()

	code := fn(ctx)
	end()
	sh.Close()
	<-forwarded
	return code
}

// sessionWriter forwards writes to the running command's input.
type sessionWriter struct {
	s *session.Session
}

func (w sessionWriter) Write(p []byte) (int, error) {
	if err := w.s.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// dedupeEnv keeps the last value of each variable, in first seen order.
func dedupeEnv(environ []string) []string {
	env := vos.NewMapEnvFromEnvList(environ)
	return env.Environ()
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var first error
	for i := len(lc) - 1; i >= 0; i-- {
		if err := lc[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
