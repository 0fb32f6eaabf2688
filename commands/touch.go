package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/josephlewis42/libterm/core/vos"
)

// Touch implements a POSIX touch command.
func Touch(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "touch [OPTION...] FILE...",
		Short: "Update the access and modification times of files to now.",
	}

	noCreate := cmd.Flags().BoolLong("no-create", 'c', "don't create files")

	return cmd.RunEachArg(virtOS, func(path string) error {
		now := time.Now()
		err := virtOS.Chtimes(path, now, now)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, fs.ErrNotExist) && *noCreate:
			return nil
		case errors.Is(err, fs.ErrNotExist):
			fd, err := virtOS.Create(path)
			if err != nil {
				return fmt.Errorf("cannot touch %q: %w", path, err)
			}
			return fd.Close()
		default:
			return fmt.Errorf("setting times of %q: %w", path, err)
		}
	})
}

var _ vos.ProcessFunc = Touch

func init() {
	mustAddCmd("touch", Touch)
}
