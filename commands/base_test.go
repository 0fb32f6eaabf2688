package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/josephlewis42/libterm/core/vos"
	"github.com/josephlewis42/libterm/core/vos/vostest"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

type goldenTestSuite map[string]goldenTest

type goldenTest struct {
	Args []string
}

func (gts goldenTestSuite) Run(t *testing.T, cmd vos.ProcessFunc) {
	t.Helper()

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, tc := range gts {
		t.Run(tn, func(t *testing.T) {
			cmd := vostest.Command(cmd, tc.Args[0], tc.Args[1:]...)
			out, err := cmd.CombinedOutput()
			if err != nil {
				t.Fatal(err)
			}

			g.Assert(t, tn, out)
		})
	}
}

func TestAllCommands(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			if AllCommands[name] == nil {
				t.Fatal("nil command", name)
			}

			cmd := vostest.Command(AllCommands[name], name, "--help")
			out, err := cmd.CombinedOutput()
			assert.Nil(t, err)
			assert.Equal(t, 0, cmd.ExitStatus)
			assert.Contains(t, string(out), "usage: ")
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"cat", "env", "grep", "mkdir", "rm", "scp", "touch", "wc", "which"}, Names())
}

func TestSimpleCommand_badFlag(t *testing.T) {
	var called bool
	proc := func(virtOS vos.VOS) int {
		cmd := &SimpleCommand{Use: "demo", Short: "A demo."}
		return cmd.Run(virtOS, func() int {
			called = true
			return 0
		})
	}

	cmd := vostest.Command(proc, "demo", "--nope")
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.Stdout, cmd.Stderr = stdout, stderr

	assert.Nil(t, cmd.Run())
	assert.False(t, called)
	assert.Equal(t, 1, cmd.ExitStatus)
	assert.Contains(t, stderr.String(), "error: ")
	assert.Contains(t, stdout.String(), "usage: demo\nA demo.\n")
	assert.Len(t, cmd.InvalidInvocations, 1)
}

func TestSimpleCommand_neverBail(t *testing.T) {
	proc := func(virtOS vos.VOS) int {
		cmd := &SimpleCommand{Use: "demo", NeverBail: true}
		return cmd.RunEachArg(virtOS, func(string) error { return nil })
	}

	cmd := vostest.Command(proc, "demo", "--nope")
	out, err := cmd.CombinedOutput()

	assert.Nil(t, err)
	assert.Equal(t, 0, cmd.ExitStatus)
	assert.Empty(t, out)
	assert.Len(t, cmd.InvalidInvocations, 1)
}

func TestRunCat(t *testing.T) {
	cases := goldenTestSuite{
		"help": {[]string{"cat", "--help"}},
	}

	cases.Run(t, Cat)
}

func TestRunEnv(t *testing.T) {
	cases := goldenTestSuite{
		"help":        {[]string{"env", "--help"}},
		"assignments": {[]string{"env", "-i", "B=2", "A=1", "A=3"}},
	}

	cases.Run(t, Env)
}

func TestRunWhich(t *testing.T) {
	cases := goldenTestSuite{
		"help":     {[]string{"which", "--help"}},
		"builtins": {[]string{"which", "cat", "wc"}},
		"missing":  {[]string{"which", "nosuch"}},
	}

	cases.Run(t, Which)
}
