package cmd

import (
	"fmt"

	"github.com/josephlewis42/libterm/core/logger"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the event log.",
}

// readEvents feeds every entry of the event log to fn and prints the
// marshaled result.
func readEvents(cmd *cobra.Command, fn func(le *logger.LogEntry), result interface{}) error {
	cmd.SilenceUsage = true

	config, err := loadConfig(newLogger(cmd, nil))
	if err != nil {
		return err
	}

	fd, err := config.ReadEventLog()
	if err != nil {
		return err
	}
	defer fd.Close()

	if err := logger.ReadJSONLinesLog(fd, fn); err != nil {
		return err
	}

	out, err := yaml.Marshal(result)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

var reportCommand = &cobra.Command{
	Use:   "report",
	Short: "Show a report of events.",
	RunE: func(cmd *cobra.Command, args []string) error {
		report := logger.NewReport()
		return readEvents(cmd, report.Update, report)
	},
}

var sessionsCommand = &cobra.Command{
	Use:   "sessions",
	Short: "Show the commands run in each session.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var report logger.SessionReport
		return readEvents(cmd, report.Update, &report)
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(reportCommand)
	eventsCmd.AddCommand(sessionsCommand)
}
