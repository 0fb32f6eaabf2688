package commands

import (
	"fmt"
	"os"

	"github.com/josephlewis42/libterm/core/vos"
)

// Mkdir implements a POSIX mkdir command.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/mkdir.html
func Mkdir(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "mkdir [OPTION...] DIRECTORY...",
		Short: "Create directories if they don't exist.",
	}

	makeParents := cmd.Flags().BoolLong("parents", 'p', "make parents if needed")
	verbose := cmd.Flags().BoolLong("verbose", 'v', "print line for every created directory")

	return cmd.Run(virtOS, func() int {
		if len(cmd.Flags().Args()) == 0 {
			fmt.Fprintln(virtOS.Stderr(), "mkdir: missing operand")
			return 1
		}

		mkdir := virtOS.Mkdir
		if *makeParents {
			mkdir = virtOS.MkdirAll
		}

		return cmd.RunEachArg(virtOS, func(dir string) error {
			if err := mkdir(dir, os.ModePerm); err != nil {
				return fmt.Errorf("cannot create directory %q: %w", dir, err)
			}
			if *verbose {
				fmt.Fprintf(virtOS.Stdout(), "mkdir: created directory %q\n", dir)
			}
			return nil
		})
	})
}

var _ vos.ProcessFunc = Mkdir

func init() {
	mustAddCmd("mkdir", Mkdir)
}
