package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/josephlewis42/libterm/core/executor"
	"github.com/josephlewis42/libterm/core/ui"
	"github.com/spf13/afero"
)

func sourceUsage(s *Shell, name string) {
	fmt.Fprintf(s.Stdout(), "usage: %s [FILE [ARG]...]\n", name)
	fmt.Fprintln(s.Stdout(), "Run the commands in FILE, with no FILE open a new terminal.")
}

// Source runs a script file line by line. Arguments after the file are bound
// to $0, $1, ... and $@ for the duration of the script.
func Source(ctx context.Context, s *Shell, args []string) int {
	if len(args) == 1 {
		if s.Config.Embedded {
			sourceUsage(s, args[0])
			return 0
		}
		if resp := s.uiDo(ctx, ui.NewTab{}); resp.Err != nil {
			sourceUsage(s, args[0])
		}
		return 0
	}

	if args[1] == "-h" || args[1] == "--help" {
		sourceUsage(s, args[0])
		return 0
	}

	path, err := s.ResolvePath(args[1])
	if err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
		return 1
	}
	script, err := afero.ReadFile(s.Fs, path)
	if err != nil {
		fmt.Fprintf(s.Stderr(), "%s: %v\n", args[0], err)
		return 1
	}

	return s.RunScript(ctx, string(script), args[2:])
}

// RunScript runs each newline or semicolon separated instruction in script
// with positionals bound to args. An exit instruction stops the script with
// its argument as the status.
func (s *Shell) RunScript(ctx context.Context, script string, args []string) int {
	s.Vars.BindPositionals(args)
	defer s.Vars.UnbindPositionals(args)

	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		for _, instruction := range SplitInstructions(line) {
			instruction = strings.TrimSpace(instruction)
			if instruction == "" {
				continue
			}
			if ctx.Err() != nil {
				return executor.StatusInterrupted
			}

			if words := strings.Fields(instruction); words[0] == "exit" {
				code := 0
				if len(words) > 1 {
					if n, err := strconv.Atoi(s.Vars.Substitute(words[1])); err == nil {
						code = n
					}
				}
				return code
			}

			s.runLine(ctx, instruction, runOptions{})
		}
	}
	return 0
}
