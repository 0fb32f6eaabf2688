package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/josephlewis42/libterm/core/config"
	"github.com/josephlewis42/libterm/core/executor"
	"github.com/josephlewis42/libterm/core/logger"
	"github.com/josephlewis42/libterm/core/session"
	"github.com/josephlewis42/libterm/core/settings"
	"github.com/josephlewis42/libterm/core/ui"
	"github.com/josephlewis42/libterm/core/vos"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/syntax"
)

// Variables the front end keeps up to date with the terminal size.
const (
	VarLines   = "LINES"
	VarColumns = "COLUMNS"
)

// DefaultPageDelay is the pause between pages of long built-in output.
const DefaultPageDelay = 700 * time.Millisecond

// Decision names the path a dispatched line took.
type Decision string

const (
	DecisionEmpty          Decision = "empty"
	DecisionREPLSubstitute Decision = "repl-substitute"
	DecisionAssignment     Decision = "assignment"
	DecisionProgramScript  Decision = "program-script"
	DecisionBuiltin        Decision = "builtin"
	DecisionExternal       Decision = "external"
)

// Options configures a new Shell.
type Options struct {
	// Name identifies the terminal in logs.
	Name string
	// Config is required.
	Config *config.Configuration
	// Executor runs everything that isn't handled by the shell. Required.
	Executor executor.Executor
	// Session is created if nil.
	Session *session.Session
	// UI defaults to ui.Unsupported.
	UI ui.Requester
	// Settings is optional, without it history is kept in memory and the
	// last login isn't tracked.
	Settings *settings.Store
	// Fs is used for program lookup and scripts, it defaults to the host's.
	Fs afero.Fs
	// Dir is the starting directory, it defaults to the process's.
	Dir string
	// Env is the environment given to the executor.
	Env []string
	// Commands lists the executor's in-process commands for help.
	Commands []string
	Version  string
	Log      hclog.Logger
	Events   *logger.SessionLogger
}

// Shell interprets lines for one terminal. Each terminal owns its own Shell
// and Session, Run must not be called concurrently on the same Shell.
type Shell struct {
	Config   *config.Configuration
	Session  *session.Session
	Executor executor.Executor
	Handle   *executor.ActiveSession
	UI       ui.Requester
	Settings *settings.Store
	Fs       afero.Fs
	Vars     *Variables
	History  *History
	Builtins map[string]ShellBuiltin
	Commands []string
	Version  string

	// PageDelay is the pause between pages of paged output.
	PageDelay time.Duration
	// Now returns the current time.
	Now func() time.Time

	log    hclog.Logger
	events *logger.SessionLogger
}

type runOptions struct {
	recordHistory     bool
	skipProgramLookup bool
	skipSubstitution  bool
	// singleInstruction runs the line without splitting it on semicolons.
	singleInstruction bool
}

// New creates a Shell from opts.
func New(opts Options) (*Shell, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("shell: missing configuration")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("shell: missing executor")
	}

	log := opts.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}

	sess := opts.Session
	if sess == nil {
		var err error
		sess, err = session.New(
			session.WithEOFDelay(opts.Config.EOFDelay()),
			session.WithLogger(log.Named("session")),
		)
		if err != nil {
			return nil, err
		}
	}

	requester := opts.UI
	if requester == nil {
		requester = ui.Unsupported{}
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	dir := opts.Dir
	if dir == "" {
		dir, _ = os.Getwd()
	}

	events := opts.Events
	if events == nil {
		events = logger.NewNopLogger().Sessionless()
	}

	s := &Shell{
		Config:    opts.Config,
		Session:   sess,
		Executor:  opts.Executor,
		Handle:    executor.NewActiveSession(opts.Name, dir, opts.Env),
		UI:        requester,
		Settings:  opts.Settings,
		Fs:        fs,
		Vars:      NewVariables(opts.Config.Env),
		History:   NewHistory(historyStore(opts, log), opts.Config.History.Limit),
		Builtins:  builtinsFor(opts.Config),
		Commands:  opts.Commands,
		Version:   opts.Version,
		PageDelay: DefaultPageDelay,
		Now:       time.Now,
		log:       log,
		events:    events,
	}
	return s, nil
}

func historyStore(opts Options, log hclog.Logger) HistoryStore {
	if opts.Config.History.Backend == config.HistorySettings {
		if opts.Settings != nil {
			return &SettingsStore{Settings: opts.Settings}
		}
		log.Warn("no settings database, keeping history in memory")
	}
	return &MemoryStore{}
}

// Close releases the session pipes.
func (s *Shell) Close() error {
	return s.Session.Close()
}

// Stdin returns the input bound for the current run.
func (s *Shell) Stdin() io.Reader {
	stdin, _, _ := s.Handle.Streams()
	if stdin == nil {
		return s.Session.Stdin()
	}
	return stdin
}

// Stdout returns the output bound for the current run.
func (s *Shell) Stdout() io.Writer {
	_, stdout, _ := s.Handle.Streams()
	return stdout
}

// Stderr returns the error output bound for the current run.
func (s *Shell) Stderr() io.Writer {
	_, _, stderr := s.Handle.Streams()
	return stderr
}

// Dir returns the working directory.
func (s *Shell) Dir() string {
	return s.Handle.Dir()
}

// ResolvePath expands "~" and makes name absolute against the working
// directory.
func (s *Shell) ResolvePath(name string) (string, error) {
	expanded, err := homedir.Expand(name)
	if err != nil {
		return "", err
	}
	return vos.ResolvePath(s.Dir(), expanded), nil
}

// Run interprets line and returns its exit status. The line is recorded in
// the history once, each semicolon separated instruction runs in order and
// the status of the last one is returned.
func (s *Shell) Run(ctx context.Context, line string) int {
	return s.runLine(ctx, line, runOptions{recordHistory: true})
}

func (s *Shell) runLine(ctx context.Context, line string, opts runOptions) int {
	if opts.recordHistory {
		if err := s.History.Record(line); err != nil {
			s.log.Warn("recording history", "error", err)
		}
	}

	ctx, end := s.Session.Begin(ctx)
	defer end()
	s.Executor.Switch(s.Handle)

	instructions := []string{line}
	if !opts.singleInstruction {
		instructions = SplitInstructions(line)
	}

	code := 0
	for _, instruction := range instructions {
		if ctx.Err() != nil {
			break
		}
		code = s.dispatch(ctx, instruction, opts)
	}
	return code
}

func (s *Shell) dispatch(ctx context.Context, instruction string, opts runOptions) int {
	line := instruction
	if !opts.skipSubstitution {
		line = s.Vars.Substitute(line)
	}
	line = strings.TrimLeft(line, " ")

	args := Tokenize(line)
	if len(args) == 0 {
		return 0
	}

	restore := s.bindStreams(args[0])
	defer restore()

	decision, code := s.route(ctx, instruction, line, args, opts)

	s.log.Debug("dispatched", "line", line, "decision", decision, "code", code)
	if err := s.events.Record(logger.RunCommand(line, string(decision), code)); err != nil {
		s.log.Warn("recording event", "error", err)
	}
	return code
}

// route runs args through the first matching path.
func (s *Shell) route(ctx context.Context, raw, line string, args []string, opts runOptions) (Decision, int) {
	if len(args) == 1 && s.Config.IsInteractiveInterpreter(args[0]) {
		if substitute, ok := s.Config.REPLSubstitutes[args[0]]; ok {
			return DecisionREPLSubstitute, s.system(ctx, substitute)
		}
	}

	if code, ok := s.Vars.TrySetFromAssignment(strings.TrimSpace(raw)); ok {
		return DecisionAssignment, code
	}

	if !opts.skipProgramLookup {
		if program, ok := s.LookupProgram(args[0]); ok {
			rewritten, err := commandLine(append([]string{program.Interpreter, program.Path}, args[1:]...))
			if err != nil {
				fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
				return DecisionProgramScript, 1
			}
			s.log.Debug("running program", "path", program.Path, "interpreter", program.Interpreter)
			return DecisionProgramScript, s.runLine(ctx, rewritten, runOptions{
				skipProgramLookup: true,
				skipSubstitution:  true,
				singleInstruction: true,
			})
		}
	}

	if builtin, ok := s.Builtins[args[0]]; ok {
		restore := s.Session.SetBuiltin(true)
		defer restore()
		return DecisionBuiltin, builtin.Main(ctx, s, args)
	}

	return DecisionExternal, s.system(ctx, line)
}

// commandLine quotes args so the executor's parser reads each one back as a
// single literal word.
func commandLine(args []string) (string, error) {
	quoted := make([]string, len(args))
	for i, arg := range args {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			return "", err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}

// system runs line on the executor and stores the status in $?. Commands
// run this way can be killed even when started from a built-in.
func (s *Shell) system(ctx context.Context, line string) int {
	restore := s.Session.SetBuiltin(false)
	defer restore()

	code := s.Executor.System(ctx, s.Handle, line)
	s.Vars.Set(VarLastExitCode, strconv.Itoa(code))
	return code
}

// bindStreams binds the session's streams to the executor handle. Interactive
// interpreters get stderr merged into stdout and a fresh input pipe.
func (s *Shell) bindStreams(program string) (restore func()) {
	if s.Config.IsInteractiveInterpreter(program) {
		return s.Handle.Bind(s.Session.ResetInput(), s.Session.Stdout(), s.Session.Stdout())
	}
	return s.Handle.Bind(s.Session.Stdin(), s.Session.Stdout(), s.Session.Stderr())
}

// Kill interrupts the running command. Built-ins can't be interrupted.
func (s *Shell) Kill() bool {
	program := s.Executor.CurrentProgram(s.Handle)
	killed := s.Session.Kill(func() {
		s.Executor.Kill(s.Handle)
	})
	if killed {
		s.log.Debug("killed", "program", program)
		s.recordEvent(logger.Kill(program))
	}
	return killed
}

// SendEOF closes the running command's input.
func (s *Shell) SendEOF() bool {
	program := s.Executor.CurrentProgram(s.Handle)
	sent := s.Session.SendEOF()
	if sent {
		s.recordEvent(logger.EOF(program))
	}
	return sent
}

func (s *Shell) recordEvent(event logger.Event) {
	if err := s.events.Record(event); err != nil {
		s.log.Warn("recording event", "error", err)
	}
}

// Program is an artifact found in the programs directory.
type Program struct {
	Path        string
	Interpreter string
}

// LookupProgram finds name in the programs directory trying each configured
// suffix in order.
func (s *Shell) LookupProgram(name string) (Program, bool) {
	if name == "" || strings.ContainsRune(name, '/') {
		return Program{}, false
	}

	dir, err := s.Config.ProgramsPath()
	if err != nil {
		s.log.Warn("expanding programs directory", "error", err)
		return Program{}, false
	}

	for _, suffix := range s.Config.ProgramSuffixes {
		path := filepath.Join(dir, name+suffix.Suffix)
		info, err := s.Fs.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return Program{Path: path, Interpreter: suffix.Interpreter}, true
	}
	return Program{}, false
}

// ProgramNames lists the names runnable from the programs directory.
func (s *Shell) ProgramNames() []string {
	dir, err := s.Config.ProgramsPath()
	if err != nil {
		return nil
	}
	infos, err := afero.ReadDir(s.Fs, dir)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, info := range infos {
		if !info.Mode().IsRegular() {
			continue
		}
		name := programName(info.Name(), s.Config.ProgramSuffixes)
		if _, ok := s.LookupProgram(name); ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// programName strips the first matching non-empty suffix from file.
func programName(file string, suffixes []config.ProgramSuffix) string {
	for _, suffix := range suffixes {
		if suffix.Suffix != "" && strings.HasSuffix(file, suffix.Suffix) && file != suffix.Suffix {
			return strings.TrimSuffix(file, suffix.Suffix)
		}
	}
	return file
}

// CommandNames lists everything the shell can run by name: built-ins,
// in-process commands and programs.
func (s *Shell) CommandNames() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(names ...string) {
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}

	add(s.BuiltinNames()...)
	add(s.Commands...)
	add(s.ProgramNames()...)
	sort.Strings(out)
	return out
}

// BuiltinNames lists the built-ins in sorted order.
func (s *Shell) BuiltinNames() []string {
	var out []string
	for name := range s.Builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Prompt expands the configured prompt. \w is the working directory with
// the home directory shortened to "~", \W its base name, \u the user, \h the
// host and \$ is "#" for root and "$" otherwise.
func (s *Shell) Prompt() string {
	wd := s.Dir()
	if home, err := homedir.Dir(); err == nil && home != "" && home != "/" {
		if wd == home || strings.HasPrefix(wd, home+"/") {
			wd = "~" + strings.TrimPrefix(wd, home)
		}
	}

	host, _ := os.Hostname()
	user := os.Getenv("USER")
	if value, ok := s.Vars.Get("USER"); ok {
		user = value
	}

	dollar := "$"
	if os.Geteuid() == 0 {
		dollar = "#"
	}

	return strings.NewReplacer(
		`\w`, wd,
		`\W`, filepath.Base(wd),
		`\u`, user,
		`\h`, host,
		`\$`, dollar,
	).Replace(s.Config.Prompt)
}
