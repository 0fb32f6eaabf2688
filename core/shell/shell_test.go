package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/josephlewis42/libterm/core/config"
	"github.com/josephlewis42/libterm/core/executor"
	"github.com/josephlewis42/libterm/core/session"
	"github.com/josephlewis42/libterm/core/ui"
	"github.com/josephlewis42/libterm/core/vos"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	line   string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// fakeExecutor records lines instead of running them. "echo" writes its
// arguments, names in status exit with that status and blockOn waits for
// the run to be killed.
type fakeExecutor struct {
	mu      sync.Mutex
	current *executor.ActiveSession
	calls   []fakeCall
	program string
	status  map[string]int
	blockOn string
	kills   int
}

var _ executor.Executor = (*fakeExecutor)(nil)

func (f *fakeExecutor) Switch(as *executor.ActiveSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = as
}

func (f *fakeExecutor) Current() *executor.ActiveSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeExecutor) System(ctx context.Context, as *executor.ActiveSession, line string) int {
	stdin, stdout, stderr := as.Streams()
	name := strings.Fields(line)[0]

	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{line, stdin, stdout, stderr})
	f.program = name
	status := f.status[name]
	block := name == f.blockOn
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.program = ""
		f.mu.Unlock()
	}()

	switch {
	case block:
		<-ctx.Done()
		return executor.StatusInterrupted
	case name == "echo":
		fmt.Fprintln(stdout, strings.TrimPrefix(line, "echo "))
	}
	return status
}

func (f *fakeExecutor) Kill(as *executor.ActiveSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills++
}

func (f *fakeExecutor) CurrentProgram(as *executor.ActiveSession) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.program
}

func (f *fakeExecutor) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, call := range f.calls {
		out = append(out, call.line)
	}
	return out
}

func (f *fakeExecutor) lastCall() fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fakeUI records requests and answers them with respond, or with success.
type fakeUI struct {
	mu       sync.Mutex
	requests []ui.Request
	respond  func(ui.Request) ui.Response
}

func (f *fakeUI) Do(ctx context.Context, req ui.Request) ui.Response {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return ui.Response{}
	}
	return respond(req)
}

func (f *fakeUI) all() []ui.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ui.Request(nil), f.requests...)
}

type testShell struct {
	*Shell
	exec *fakeExecutor
	ui   *fakeUI
	fs   afero.Fs
}

func newTestShell(t *testing.T, configure ...func(*config.Configuration)) *testShell {
	t.Helper()

	cfg := config.Default()
	cfg.ProgramsDir = "/programs"
	cfg.History.Backend = config.HistoryMemory
	cfg.EOFDelayMS = 1
	for _, fn := range configure {
		fn(cfg)
	}

	fs := afero.NewMemMapFs()
	require.Nil(t, fs.MkdirAll("/home/test", 0755))

	exec := &fakeExecutor{status: map[string]int{"false": 1}}
	fui := &fakeUI{}
	s, err := New(Options{
		Name:     "test",
		Config:   cfg,
		Executor: exec,
		UI:       fui,
		Fs:       fs,
		Dir:      "/home/test",
		Commands: []string{"cat", "env"},
		Version:  "1.2.3",
	})
	require.Nil(t, err)
	t.Cleanup(func() { s.Close() })

	return &testShell{Shell: s, exec: exec, ui: fui, fs: fs}
}

// captureOutput forwards the session output into buffers, the returned func
// closes the session and returns what was written.
func (ts *testShell) captureOutput() func() (stdout, stderr string) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ts.Session.Forward(out, errOut)
	}()

	return func() (string, string) {
		ts.Close()
		<-done
		return out.String(), errOut.String()
	}
}

// bindBuffers binds the handle to in-memory streams for calling built-ins
// directly.
func (ts *testShell) bindBuffers(stdin string) (stdout, stderr *bytes.Buffer) {
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	ts.Handle.Bind(strings.NewReader(stdin), stdout, stderr)
	return stdout, stderr
}

func (ts *testShell) history(t *testing.T) []string {
	t.Helper()
	lines, err := ts.History.All()
	require.Nil(t, err)
	return lines
}

func (ts *testShell) writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.Nil(t, afero.WriteFile(ts.fs, path, []byte(contents), 0644))
}

func TestShell_Run_assignment(t *testing.T) {
	ts := newTestShell(t)

	assert.Equal(t, 0, ts.Run(context.Background(), "FOO=bar"))
	assert.Empty(t, ts.exec.lines())

	assert.Equal(t, 0, ts.Run(context.Background(), "echo $FOO"))
	assert.Equal(t, []string{"echo bar"}, ts.exec.lines())

	// Assignments are checked before substitution and store the raw value.
	assert.Equal(t, 0, ts.Run(context.Background(), "BAZ=$FOO"))
	value, _ := ts.Vars.Get("BAZ")
	assert.Equal(t, "$FOO", value)
}

func TestShell_Run_blank(t *testing.T) {
	ts := newTestShell(t)

	assert.Equal(t, 0, ts.Run(context.Background(), "   "))
	assert.Empty(t, ts.history(t))
	assert.Empty(t, ts.exec.lines())
	assert.Equal(t, session.Idle, ts.Session.State())
}

func TestShell_Run_history(t *testing.T) {
	ts := newTestShell(t)

	ts.Run(context.Background(), "ls")
	ts.Run(context.Background(), "pwd  ")
	ts.Run(context.Background(), "ls")

	assert.Equal(t, []string{"pwd", "ls"}, ts.history(t))
}

func TestShell_Run_multipleInstructions(t *testing.T) {
	ts := newTestShell(t)

	code := ts.Run(context.Background(), `echo "a;b"; A=1; false`)

	assert.Equal(t, 1, code)
	assert.Equal(t, []string{`echo "a;b"`, "false"}, ts.exec.lines())
	assert.Equal(t, []string{`echo "a;b"; A=1; false`}, ts.history(t))
	value, _ := ts.Vars.Get("A")
	assert.Equal(t, "1", value)
}

func TestShell_Run_lastExitCode(t *testing.T) {
	ts := newTestShell(t)

	ts.Run(context.Background(), "false")
	code, _ := ts.Vars.Get(VarLastExitCode)
	assert.Equal(t, "1", code)

	// Built-ins and assignments leave it alone.
	ts.Run(context.Background(), "X=1")
	ts.Run(context.Background(), "history")
	code, _ = ts.Vars.Get(VarLastExitCode)
	assert.Equal(t, "1", code)

	ts.Run(context.Background(), "echo $?")
	assert.Equal(t, "echo 1", ts.exec.lastCall().line)
	code, _ = ts.Vars.Get(VarLastExitCode)
	assert.Equal(t, "0", code)
}

func TestShell_Run_replSubstitute(t *testing.T) {
	ts := newTestShell(t)

	ts.Run(context.Background(), "python")
	call := ts.exec.lastCall()
	assert.Equal(t, "python -c 'import code; code.interact()'", call.line)
	assert.Same(t, call.stdout, call.stderr)

	// Interpreters with arguments run as given.
	ts.Run(context.Background(), "python -V")
	assert.Equal(t, "python -V", ts.exec.lastCall().line)

	// No substitute configured.
	ts.Run(context.Background(), "lua")
	call = ts.exec.lastCall()
	assert.Equal(t, "lua", call.line)
	assert.Same(t, call.stdout, call.stderr)

	ts.Run(context.Background(), "ls")
	call = ts.exec.lastCall()
	assert.NotSame(t, call.stdout, call.stderr)
}

func TestShell_Run_programs(t *testing.T) {
	ts := newTestShell(t)
	ts.writeFile(t, "/programs/foo.py", "print('hi')")
	ts.writeFile(t, "/programs/tool", "")
	ts.writeFile(t, "/programs/tool.py", "")
	ts.writeFile(t, "/programs/linked.bc", "")
	ts.writeFile(t, "/programs/linked.ll", "")
	require.Nil(t, ts.fs.MkdirAll("/programs/dir.py", 0755))

	var builtinRan bool
	ts.Builtins["foo"] = ShellBuiltinFunc(func(ctx context.Context, s *Shell, args []string) int {
		builtinRan = true
		return 0
	})

	cases := map[string]struct {
		line string
		want string
	}{
		"beats-builtin":  {"foo 'a b' c", "python /programs/foo.py 'a b' c"},
		"shell-chars":    {`foo 'a|b' '$HOME' "it's" 'x;y'`, `python /programs/foo.py 'a|b' '$HOME' "it's" 'x;y'`},
		"prebuilt-first": {"tool", "lli /programs/tool"},
		"ll-before-bc":   {"linked", "lli /programs/linked.ll"},
		"skip-dirs":      {"dir", "dir"},
		"with-slash":     {"./foo", "./foo"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			ts.Run(context.Background(), tc.line)
			assert.Equal(t, tc.want, ts.exec.lastCall().line)
		})
	}

	assert.False(t, builtinRan)
	assert.Equal(t, []string{"foo", "linked", "tool"}, ts.ProgramNames())
}

func TestShell_Run_programsKeepArguments(t *testing.T) {
	cfg := config.Default()
	cfg.ProgramsDir = "/programs"
	cfg.History.Backend = config.HistoryMemory

	fs := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fs, "/programs/foo.py", nil, 0644))

	printArgs := func(virtOS vos.VOS) int {
		fmt.Fprintf(virtOS.Stdout(), "%q\n", virtOS.Args())
		return 0
	}
	s, err := New(Options{
		Config: cfg,
		Executor: &executor.ShExecutor{
			Commands: map[string]vos.ProcessFunc{"python": printArgs},
			Fs:       fs,
		},
		Fs:  fs,
		Dir: t.TempDir(),
	})
	require.Nil(t, err)
	ts := &testShell{Shell: s, fs: fs}
	output := ts.captureOutput()

	assert.Equal(t, 0, ts.Run(context.Background(), `foo 'a|b' '$HOME' 'x&y' 'a*' "it's" 'p;q'`))

	stdout, _ := output()
	assert.Equal(t, `["python" "/programs/foo.py" "a|b" "$HOME" "x&y" "a*" "it's" "p;q"]`+"\n", stdout)
}

func TestShell_Run_builtin(t *testing.T) {
	ts := newTestShell(t)

	var sawBuiltinFlag bool
	ts.Builtins["probe"] = ShellBuiltinFunc(func(ctx context.Context, s *Shell, args []string) int {
		sawBuiltinFlag = s.Session.IsBuiltinRunning()
		assert.Equal(t, []string{"probe", "a b"}, args)
		return 4
	})

	assert.Equal(t, 4, ts.Run(context.Background(), "probe 'a b'"))
	assert.True(t, sawBuiltinFlag)
	assert.False(t, ts.Session.IsBuiltinRunning())
	assert.Empty(t, ts.exec.lines())
}

func TestShell_Run_switchesSession(t *testing.T) {
	ts := newTestShell(t)
	other := executor.NewActiveSession("other", "/", nil)
	ts.exec.Switch(other)

	ts.Run(context.Background(), "ls")

	assert.Same(t, ts.Handle, ts.exec.Current())
}

func TestShell_Run_output(t *testing.T) {
	ts := newTestShell(t)
	output := ts.captureOutput()

	ts.Run(context.Background(), "echo hello")
	ts.Run(context.Background(), "nope-builtin-missing")
	ts.Run(context.Background(), "exit 1 2")

	stdout, stderr := output()
	assert.Equal(t, "hello\n", stdout)
	assert.Equal(t, "exit: too many arguments\n", stderr)
}

func TestShell_Kill(t *testing.T) {
	ts := newTestShell(t)
	ts.exec.blockOn = "sleep"

	// Idle, nothing happens.
	assert.False(t, ts.Kill())
	assert.Equal(t, 0, ts.exec.kills)

	done := make(chan int)
	go func() {
		done <- ts.Run(context.Background(), "sleep 100")
	}()
	assert.Eventually(t, func() bool {
		return ts.exec.CurrentProgram(ts.Handle) == "sleep"
	}, time.Second, time.Millisecond)

	assert.True(t, ts.Kill())

	select {
	case code := <-done:
		assert.Equal(t, executor.StatusInterrupted, code)
	case <-time.After(5 * time.Second):
		t.Fatal("Run didn't return after Kill")
	}
	assert.Equal(t, 1, ts.exec.kills)
	assert.Equal(t, session.Idle, ts.Session.State())

	// The process is gone, killing again is harmless.
	assert.False(t, ts.Kill())
}

func TestShell_Kill_builtin(t *testing.T) {
	ts := newTestShell(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	ts.Builtins["wait"] = ShellBuiltinFunc(func(ctx context.Context, s *Shell, args []string) int {
		close(entered)
		<-release
		return 0
	})

	done := make(chan int)
	go func() {
		done <- ts.Run(context.Background(), "wait")
	}()
	<-entered

	assert.False(t, ts.Kill())
	assert.Equal(t, session.Running, ts.Session.State())

	close(release)
	assert.Equal(t, 0, <-done)
	assert.Equal(t, 0, ts.exec.kills)
}

func TestShell_Kill_script(t *testing.T) {
	ts := newTestShell(t)
	ts.exec.blockOn = "sleep"
	ts.writeFile(t, "/home/test/long.sh", "sleep 100\necho never\n")

	done := make(chan int)
	go func() {
		done <- ts.Run(context.Background(), "sh long.sh")
	}()
	assert.Eventually(t, func() bool {
		return ts.exec.CurrentProgram(ts.Handle) == "sleep"
	}, time.Second, time.Millisecond)

	// Commands started by a script can be killed, which stops the script.
	assert.True(t, ts.Kill())
	assert.Equal(t, executor.StatusInterrupted, <-done)
	assert.Equal(t, []string{"sleep 100"}, ts.exec.lines())
}

func TestShell_SendEOF(t *testing.T) {
	ts := newTestShell(t)
	read := make(chan string)
	ts.Builtins["slurp"] = ShellBuiltinFunc(func(ctx context.Context, s *Shell, args []string) int {
		data, _ := io.ReadAll(s.Stdin())
		read <- string(data)
		return 0
	})

	go ts.Run(context.Background(), "slurp")
	assert.Eventually(t, ts.Session.IsRunning, time.Second, time.Millisecond)

	require.Nil(t, ts.Session.Send([]byte("typed")))
	assert.True(t, ts.SendEOF())
	assert.Equal(t, "typed", <-read)
}

func TestShell_Prompt(t *testing.T) {
	ts := newTestShell(t, func(cfg *config.Configuration) {
		cfg.Prompt = `[\u] \W: `
		cfg.Env = append(cfg.Env, "USER=tester")
	})

	assert.Equal(t, "[tester] test: ", ts.Prompt())
}

func TestShell_CommandNames(t *testing.T) {
	ts := newTestShell(t)
	ts.writeFile(t, "/programs/hello.ll", "")

	names := ts.CommandNames()

	assert.Contains(t, names, "hello")
	assert.Contains(t, names, "cat")
	assert.Contains(t, names, "source")
	assert.True(t, sort.StringsAreSorted(names))
}
