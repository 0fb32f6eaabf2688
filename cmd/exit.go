package cmd

import "fmt"

// exitError carries a shell's non-zero exit status out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitStatus(code int) error {
	if code == 0 {
		return nil
	}
	return exitError{code}
}
