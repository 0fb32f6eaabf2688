package commands

import (
	"io"

	"github.com/josephlewis42/libterm/core/vos"
)

// Cat implements the UNIX cat command.
func Cat(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "cat [OPTION]... [FILE]...",
		Short: "Concatenate FILE(s) to standard output.",
	}

	return cmd.Run(virtOS, func() int {
		return cmd.RunEachFileOrStdin(virtOS, cmd.Flags().Args(), func(_ string, fd io.Reader) error {
			_, err := io.Copy(virtOS.Stdout(), fd)
			return err
		})
	})
}

var _ vos.ProcessFunc = Cat

func init() {
	mustAddCmd("cat", Cat)
}
