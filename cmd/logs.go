package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/josephlewis42/libterm/core/config"
	"github.com/josephlewis42/libterm/core/ttylog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var idleTimeLimit time.Duration

var logsCmd = &cobra.Command{
	Use:     "logs",
	Aliases: []string{"log"},
	Short:   "Explore the recorded terminal sessions.",
}

// openRecording opens name as a path, or as a recording in the configured
// session_logs directory.
func openRecording(cmd *cobra.Command, name string) (io.ReadCloser, error) {
	fd, err := os.Open(name)
	if !errors.Is(err, fs.ErrNotExist) {
		return fd, err
	}

	cfg, cfgErr := loadConfig(newLogger(cmd, nil))
	if cfgErr != nil {
		return nil, err
	}
	return cfg.OpenSessionLog(name)
}

// playCommand replays a recording in real time
var playCommand = &cobra.Command{
	Use:   "play RECORDING",
	Short: "Replay a recorded interactive session in the terminal.",
	Long:  `Plays a recorded interactive session back to the current terminal.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := openRecording(cmd, args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		sink := ttylog.NewClientOutput(cmd.OutOrStdout())
		sink = ttylog.NewRealTimePlayback(idleTimeLimit, sink)
		return ttylog.Replay(ttylog.NewAsciicastLogSource(fd), sink)
	},
}

// catCommand prints a recording without delays
var catCommand = &cobra.Command{
	Use:   "cat RECORDING",
	Short: "Print full output of recorded log to a terminal.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := openRecording(cmd, args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		sink := ttylog.NewClientOutput(cmd.OutOrStdout())
		return ttylog.Replay(ttylog.NewAsciicastLogSource(fd), sink)
	},
}

// lsCommand lists the recordings
var lsCommand = &cobra.Command{
	Use:   "ls",
	Short: "List the recorded sessions.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cfg, err := loadConfig(newLogger(cmd, nil))
		if err != nil {
			return err
		}

		logsFs := afero.NewBasePathFs(afero.NewOsFs(), cfg.Dir())
		infos, err := afero.ReadDir(logsFs, config.LogsDirName)
		if err != nil {
			return err
		}

		for _, info := range infos {
			if filepath.Ext(info.Name()) != "."+ttylog.AsciicastFileExt {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", info.Name(), info.ModTime().Format(time.RFC3339), info.Size())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(playCommand)
	logsCmd.AddCommand(catCommand)
	logsCmd.AddCommand(lsCommand)

	// cat doesn't allow idle time
	playCommand.Flags().DurationVarP(&idleTimeLimit, "idle-time-limit", "i", 3*time.Second, "Maximum time output can be idle. (e.g. 3s, 2m, 100ms)")
}
