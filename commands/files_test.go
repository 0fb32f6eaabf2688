package commands

import (
	"strings"
	"testing"

	"github.com/josephlewis42/libterm/core/vos/vostest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrep(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fs, "/a.txt", []byte("apple\nBanana\ncherry\n"), 0644))
	require.Nil(t, afero.WriteFile(fs, "/b.txt", []byte("banana bread\n"), 0644))

	cases := map[string]struct {
		args   []string
		stdin  string
		out    string
		status int
	}{
		"match":        {[]string{"an", "/a.txt"}, "", "Banana\n", 0},
		"ignore-case":  {[]string{"-i", "^b", "/a.txt"}, "", "Banana\n", 0},
		"invert":       {[]string{"-v", "an", "/a.txt"}, "", "apple\ncherry\n", 0},
		"line-numbers": {[]string{"-n", "rr", "/a.txt"}, "", "3:cherry\n", 0},
		"many-files":   {[]string{"-i", "banana", "/a.txt", "/b.txt"}, "", "/a.txt:Banana\n/b.txt:banana bread\n", 0},
		"count":        {[]string{"-c", "a", "/a.txt"}, "", "2\n", 0},
		"stdin":        {[]string{"x"}, "a\nxy\n", "xy\n", 0},
		"no-match":     {[]string{"zzz", "/a.txt"}, "", "", 1},
		"bad-pattern":  {[]string{"("}, "", "grep: error parsing regexp: missing closing ): `(`\n", 2},
		"missing-file": {[]string{"a", "/nope"}, "", "grep: open /nope: file does not exist\n", 2},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cmd := vostest.Command(Grep, "grep", tc.args...)
			cmd.Fs = fs
			cmd.Stdin = strings.NewReader(tc.stdin)

			out, err := cmd.CombinedOutput()

			assert.Nil(t, err)
			assert.Equal(t, tc.status, cmd.ExitStatus)
			assert.Equal(t, tc.out, string(out))
		})
	}
}

func TestMkdir(t *testing.T) {
	cmd := vostest.Command(Mkdir, "mkdir", "-p", "/a/b/c")
	out, err := cmd.CombinedOutput()
	assert.Nil(t, err)
	assert.Equal(t, 0, cmd.ExitStatus, string(out))

	isDir, err := afero.IsDir(cmd.Fs, "/a/b/c")
	assert.Nil(t, err)
	assert.True(t, isDir)

	noOperand := vostest.Command(Mkdir, "mkdir")
	out, err = noOperand.CombinedOutput()
	assert.Nil(t, err)
	assert.Equal(t, 1, noOperand.ExitStatus)
	assert.Equal(t, "mkdir: missing operand\n", string(out))
}

func TestTouchAndRm(t *testing.T) {
	fs := afero.NewMemMapFs()

	touch := vostest.Command(Touch, "touch", "new.txt")
	touch.Fs = fs
	touch.Dir = "/tmp"
	require.Nil(t, fs.MkdirAll("/tmp", 0755))
	require.Nil(t, touch.Run())
	assert.Equal(t, 0, touch.ExitStatus)

	exists, err := afero.Exists(fs, "/tmp/new.txt")
	assert.Nil(t, err)
	assert.True(t, exists)

	noCreate := vostest.Command(Touch, "touch", "-c", "/other.txt")
	noCreate.Fs = fs
	require.Nil(t, noCreate.Run())
	assert.Equal(t, 0, noCreate.ExitStatus)
	exists, _ = afero.Exists(fs, "/other.txt")
	assert.False(t, exists)

	rmDir := vostest.Command(Rm, "rm", "/tmp")
	rmDir.Fs = fs
	out, err := rmDir.CombinedOutput()
	assert.Nil(t, err)
	assert.Equal(t, 1, rmDir.ExitStatus)
	assert.Equal(t, "rm: can't remove \"/tmp\": is a directory\n", string(out))

	rmRecursive := vostest.Command(Rm, "rm", "-rf", "/tmp", "/missing")
	rmRecursive.Fs = fs
	require.Nil(t, rmRecursive.Run())
	assert.Equal(t, 0, rmRecursive.ExitStatus)
	exists, _ = afero.Exists(fs, "/tmp/new.txt")
	assert.False(t, exists)
}
