package cmd

import (
	"fmt"
	"sort"

	"github.com/josephlewis42/libterm/commands"
	"github.com/josephlewis42/libterm/core/shell"
	"github.com/spf13/cobra"
)

// builtinsCmd lists what the shell runs without the host
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the built-in and in-process commands.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var builtins []string

		builtins = append(builtins, commands.Names()...)

		for name := range shell.AllBuiltins {
			builtins = append(builtins, "shell:"+name)
		}

		sort.Strings(builtins)

		for _, v := range builtins {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
