package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/josephlewis42/libterm/core/vos"
)

// Rm implements a POSIX rm command.
func Rm(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "rm [OPTION...] FILE...",
		Short: "Remove files or directories.",
	}

	recursive := cmd.Flags().BoolLong("recursive", 'r', "remove directories and their contents recursively")
	force := cmd.Flags().BoolLong("force", 'f', "ignore missing files and arguments, never prompt")

	return cmd.RunEachArg(virtOS, func(file string) error {
		stat, err := virtOS.Stat(file)
		switch {
		case errors.Is(err, fs.ErrNotExist) && *force:
			return nil
		case errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("can't remove %q: no such file or directory", file)
		case err != nil:
			return fmt.Errorf("can't stat %q: %w", file, err)
		case stat.IsDir() && !*recursive:
			return fmt.Errorf("can't remove %q: is a directory", file)
		case stat.IsDir():
			err = virtOS.RemoveAll(file)
		default:
			err = virtOS.Remove(file)
		}

		if err != nil {
			return fmt.Errorf("can't remove %q: %w", file, err)
		}
		return nil
	})
}

var _ vos.ProcessFunc = Rm

func init() {
	mustAddCmd("rm", Rm)
}
