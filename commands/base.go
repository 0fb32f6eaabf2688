// Package commands holds the programs that run in-process inside the
// executor's interpreter.
package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/josephlewis42/libterm/core/vos"
	getopt "github.com/pborman/getopt/v2"
)

// AllCommands holds every registered in-process command by name.
var AllCommands = make(map[string]vos.ProcessFunc)

// mustAddCmd registers cmd, it panics on duplicate names.
func mustAddCmd(name string, cmd vos.ProcessFunc) {
	if _, ok := AllCommands[name]; ok {
		panic(fmt.Sprintf("duplicate command %q", name))
	}
	AllCommands[name] = cmd
}

// Names lists the registered command names in sorted order.
func Names() []string {
	var out []string
	for name := range AllCommands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a sone line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool
	// NeverBail skips interacting with stdout/stderr on failure and
	// always runs the callback.
	NeverBail bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was succcessful call the callback.
func (s *SimpleCommand) Run(virtOS vos.VOS, callback func() int) int {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	err := opts.Getopt(virtOS.Args(), nil)
	if err != nil {
		virtOS.LogInvalidInvocation(err)
	}

	if err != nil && !s.NeverBail {
		fmt.Fprintf(virtOS.Stderr(), "error: %s\n\n", err)

		s.PrintHelp(virtOS.Stdout())
		return 1
	}

	if *s.ShowHelp {
		s.PrintHelp(virtOS.Stdout())
		return 0
	}

	return callback()
}

// RunE is like Run, but a returned error is printed and becomes exit status 1.
func (s *SimpleCommand) RunE(virtOS vos.VOS, callback func() error) int {
	return s.Run(virtOS, func() int {
		if err := callback(); err != nil {
			s.LogProgramError(virtOS, err)
			return 1
		}
		return 0
	})
}

// RunEachArg calls callback for each positional argument. Every argument is
// visited even if an earlier one failed.
func (s *SimpleCommand) RunEachArg(virtOS vos.VOS, callback func(string) error) int {
	return s.Run(virtOS, func() int {
		status := 0
		for _, arg := range s.Flags().Args() {
			if err := callback(arg); err != nil {
				s.LogProgramError(virtOS, err)
				status = 1
			}
		}
		return status
	})
}

// RunEachFileOrStdin calls callback with each named file, or with stdin if
// there are none.
func (s *SimpleCommand) RunEachFileOrStdin(virtOS vos.VOS, files []string, callback func(name string, fd io.Reader) error) int {
	if len(files) == 0 {
		if err := callback("-", virtOS.Stdin()); err != nil {
			s.LogProgramError(virtOS, err)
			return 1
		}
		return 0
	}

	status := 0
	for _, name := range files {
		if err := s.withFile(virtOS, name, callback); err != nil {
			s.LogProgramError(virtOS, err)
			status = 1
		}
	}
	return status
}

func (s *SimpleCommand) withFile(virtOS vos.VOS, name string, callback func(name string, fd io.Reader) error) error {
	if name == "-" {
		return callback(name, virtOS.Stdin())
	}

	fd, err := virtOS.Open(name)
	if err != nil {
		return err
	}
	defer fd.Close()

	return callback(name, fd)
}

// LogProgramError writes err to stderr prefixed by the program name.
func (s *SimpleCommand) LogProgramError(virtOS vos.VOS, err error) {
	fmt.Fprintf(virtOS.Stderr(), "%s: %v\n", virtOS.Args()[0], err)
}
