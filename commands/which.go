package commands

import (
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/josephlewis42/libterm/core/vos"
)

// ErrNotFound is the error resulting if a path search failed to find an executable file.
var ErrNotFound = exec.ErrNotFound

func findExecutable(virtOS vos.VOS, file string) error {
	d, err := virtOS.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories named by
// the PATH environment variable. If file contains a slash, it is tried directly
// and the PATH is not consulted.
func LookPath(virtOS vos.VOS, file string) (string, error) {
	if strings.Contains(file, "/") {
		err := findExecutable(virtOS, file)
		if err == nil {
			return file, nil
		}
		return "", err
	}
	path := virtOS.Getenv("PATH")
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(virtOS, path); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// Which implements the UNIX which command, in-process commands are reported
// before anything on the PATH.
func Which(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "which [COMMAND...]",
		Short: "Locate a command.",
		// Never bail, even if args are bad.
		NeverBail: true,
	}

	return cmd.RunEachArg(virtOS, func(arg string) error {
		if _, ok := AllCommands[arg]; ok {
			fmt.Fprintf(virtOS.Stdout(), "%s: built-in command\n", arg)
			return nil
		}

		res, err := LookPath(virtOS, arg)
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		fmt.Fprintln(virtOS.Stdout(), res)
		return nil
	})
}

var _ vos.ProcessFunc = Which

func init() {
	mustAddCmd("which", Which)
}
