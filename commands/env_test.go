package commands

import (
	"testing"

	"github.com/josephlewis42/libterm/core/vos/vostest"
	"github.com/stretchr/testify/assert"
)

func TestEnv_contents(t *testing.T) {
	cmd := vostest.Command(Env, "env")
	cmd.Env = []string{"C=charlie", "A=alpha", "B=bravo"}

	out, err := cmd.CombinedOutput()

	assert.Equal(t, 0, cmd.ExitStatus, "exit code")
	assert.Nil(t, err)
	assert.Equal(t, "A=alpha\nB=bravo\nC=charlie\n", string(out))
}

func TestEnv_assignments(t *testing.T) {
	cmd := vostest.Command(Env, "env", "-i", "Z=zulu", "A=")
	cmd.Env = []string{"HIDDEN=1"}

	out, err := cmd.CombinedOutput()

	assert.Nil(t, err)
	assert.Equal(t, 0, cmd.ExitStatus)
	assert.Equal(t, "A=\nZ=zulu\n", string(out))
}

func TestEnv_command(t *testing.T) {
	cmd := vostest.Command(Env, "env", "ls")

	_, err := cmd.CombinedOutput()

	assert.Nil(t, err)
	assert.Equal(t, 126, cmd.ExitStatus)
}
