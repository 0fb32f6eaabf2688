package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/josephlewis42/libterm/core/vos"
)

// Grep implements the POSIX grep command. Like grep, it exits 1 when nothing
// matched and 2 on errors.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/
func Grep(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "grep [-cinv] PATTERN [FILE]...",
		Short: "Search files for text matching a pattern.",
	}

	invert := cmd.Flags().Bool('v', "Select lines not matching any of the specified patterns.")
	ignoreCase := cmd.Flags().Bool('i', "Perform pattern matching in searches without regard to case.")
	showLineNumbers := cmd.Flags().Bool('n', "Show line numbers.")
	countOnly := cmd.Flags().Bool('c', "Only write a count of selected lines.")

	return cmd.Run(virtOS, func() int {
		args := cmd.Flags().Args()
		if len(args) == 0 {
			cmd.LogProgramError(virtOS, errors.New("missing argument PATTERN"))
			return 2
		}

		pattern := args[0]
		if *ignoreCase {
			pattern = "(?i)" + pattern
		}
		regex, err := regexp.Compile(pattern)
		if err != nil {
			cmd.LogProgramError(virtOS, err)
			return 2
		}

		files := args[1:]
		showFileName := len(files) > 1
		selected := 0
		status := cmd.RunEachFileOrStdin(virtOS, files, func(name string, fd io.Reader) error {
			w := virtOS.Stdout()
			count := 0

			scanner := bufio.NewScanner(fd)
			for lineNo := 1; scanner.Scan(); lineNo++ {
				line := scanner.Bytes()
				if regex.Match(line) == *invert {
					continue
				}
				count++

				if *countOnly {
					continue
				}
				if showFileName {
					fmt.Fprintf(w, "%s:", name)
				}
				if *showLineNumbers {
					fmt.Fprintf(w, "%d:", lineNo)
				}
				fmt.Fprintf(w, "%s\n", line)
			}

			if *countOnly {
				if showFileName {
					fmt.Fprintf(w, "%s:", name)
				}
				fmt.Fprintln(w, count)
			}

			selected += count
			return scanner.Err()
		})

		switch {
		case status != 0:
			return 2
		case selected == 0:
			return 1
		default:
			return 0
		}
	})
}

var _ vos.ProcessFunc = Grep

func init() {
	mustAddCmd("grep", Grep)
}
