package cmd

import (
	"errors"
	"io/fs"
	"os"
	"runtime/debug"

	"github.com/hashicorp/go-hclog"
	"github.com/josephlewis42/libterm/core/config"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
)

// version reports the module version the binary was built from.
func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

func loadConfig(log hclog.Logger) (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Error("couldn't load config, did you run init?", "path", cfgPath)
	}

	return configuration, err
}

// newLogger builds the diagnostic logger at the level given by --log-level,
// falling back to the configuration's.
func newLogger(cmd *cobra.Command, cfg *config.Configuration) hclog.Logger {
	level := logLevel
	if level == "" && cfg != nil {
		level = cfg.LogLevel
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "libterm",
		Level:  hclog.LevelFromString(level),
		Output: cmd.ErrOrStderr(),
	})
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "libterm",
	Short: "A sandboxed terminal shell",
	Long: `A line-oriented shell for sandboxed terminals: built-in commands,
in-process utilities, user programs and scripts, served locally or over SSH.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()

	var exit exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	cobra.CheckErr(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (trace, debug, info, warn, error, off)")
}
