package cmd

import (
	"fmt"

	"github.com/josephlewis42/libterm/core/config"
	"github.com/josephlewis42/libterm/core/settings"
	"github.com/josephlewis42/libterm/core/shell"
	"github.com/spf13/cobra"
)

var clearHistory bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the shared command history.",
	Long: `Prints the history kept in the settings database, shared by every
terminal when the history backend is "settings".`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig(newLogger(cmd, nil))
		if err != nil {
			return err
		}
		if cfg.History.Backend != config.HistorySettings {
			return fmt.Errorf("history backend is %q, nothing is persisted", cfg.History.Backend)
		}

		store, err := settings.Open(cfg.SettingsPath())
		if err != nil {
			return err
		}
		defer store.Close()

		history := shell.NewHistory(&shell.SettingsStore{Settings: store}, cfg.History.Limit)
		if clearHistory {
			return history.Clear()
		}

		lines, err := history.All()
		if err != nil {
			return err
		}
		for i, line := range lines {
			fmt.Fprintf(cmd.OutOrStdout(), "%5d  %s\n", i+1, line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVarP(&clearHistory, "clear", "c", false, "clear the history")
}
