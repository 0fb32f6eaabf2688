package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/josephlewis42/libterm/core/vos"
)

// Env implements the printing half of the POSIX env command. Assignments
// given as arguments are applied to the listing.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/env.html
func Env(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "env [-i] [NAME=VALUE]...",
		Short: "Set or print the environment for command invocation.",
	}
	ignoreEnv := cmd.Flags().Bool('i', "start with an empty environment")

	return cmd.Run(virtOS, func() int {
		env := vos.NewMapEnv()
		if !*ignoreEnv {
			if err := vos.CopyEnv(env, virtOS.Environ()); err != nil {
				cmd.LogProgramError(virtOS, err)
				return 1
			}
		}

		for _, arg := range cmd.Flags().Args() {
			if !strings.Contains(arg, "=") {
				cmd.LogProgramError(virtOS, fmt.Errorf("running commands isn't supported: %q", arg))
				return 126
			}
			key, value := vos.SplitEnv(arg)
			env.Setenv(key, value)
		}

		environ := env.Environ()
		sort.Strings(environ)
		for _, envDef := range environ {
			fmt.Fprintln(virtOS.Stdout(), envDef)
		}

		return 0
	})
}

var _ vos.ProcessFunc = Env

func init() {
	mustAddCmd("env", Env)
}
