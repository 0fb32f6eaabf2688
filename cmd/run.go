package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/josephlewis42/libterm/core"
	"github.com/josephlewis42/libterm/core/logger"
	"github.com/josephlewis42/libterm/core/terminal"
	"github.com/josephlewis42/libterm/core/ui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var runLine string

// runCmd runs the shell on the local terminal
var runCmd = &cobra.Command{
	Use:   "run [script [args...]]",
	Short: "Run the shell in the current terminal, or run a line or script.",
	Long: `Starts an interactive terminal on stdin/stdout. With -c the line is run
once, with a script path the script is run with the remaining arguments as
positional variables. The exit status is the shell's.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true

		log := newLogger(cmd, nil)
		cfg, err := loadConfig(log)
		if err != nil {
			return err
		}
		log = newLogger(cmd, cfg)

		ws, err := core.OpenWorkspace(cfg, core.WorkspaceOptions{
			Version: version(),
			Log:     log,
		})
		if err != nil {
			return err
		}
		defer ws.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		events := ws.Events.NewSession()
		events.Record(logger.SessionStart("local", "", nil))
		code, err := runLocal(ctx, cmd, ws, events, args)
		events.Record(logger.SessionEnd(code))
		if err != nil {
			return err
		}
		return exitStatus(code)
	},
}

func runLocal(ctx context.Context, cmd *cobra.Command, ws *core.Workspace, events *logger.SessionLogger, args []string) (int, error) {
	dir, _ := os.Getwd()

	switch {
	case runLine != "" || len(args) > 0:
		sh, err := ws.NewShell(core.ShellOptions{Name: "local", Dir: dir, Env: os.Environ(), Events: events})
		if err != nil {
			return 1, err
		}

		run := func(ctx context.Context) int {
			return sh.Run(ctx, runLine)
		}
		if len(args) > 0 {
			script, err := afero.ReadFile(ws.Fs, args[0])
			if err != nil {
				sh.Close()
				return 1, err
			}
			run = func(ctx context.Context) int {
				return sh.RunScript(ctx, string(script), args[1:])
			}
		}
		return core.RunAttached(ctx, sh, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), run), nil

	default:
		bridge := ui.NewBridge()
		sh, err := ws.NewShell(core.ShellOptions{Name: "local", Dir: dir, Env: os.Environ(), UI: bridge, Events: events})
		if err != nil {
			return 1, err
		}

		fd := int(os.Stdin.Fd())
		isTerminal := term.IsTerminal(fd)
		width, height, err := term.GetSize(fd)
		if err != nil {
			width, height = terminal.DefaultWidth, terminal.DefaultHeight
		}

		t, err := terminal.New(terminal.Options{
			Shell:      sh,
			Bridge:     bridge,
			Stdin:      cmd.InOrStdin(),
			Stdout:     cmd.OutOrStdout(),
			IsTerminal: isTerminal,
			RawMode:    isTerminal,
			Width:      width,
			Height:     height,
			Motd:       ws.Config.Motd,
			Startup:    ws.StartupLines(),
			Log:        ws.Log.Named("terminal"),
		})
		if err != nil {
			sh.Close()
			return 1, err
		}
		defer t.Close()

		stopResize := watchResize(fd, t.Resize)
		defer stopResize()

		// Ctrl-C reaches the terminal as input once it's raw, the signal only
		// ends the loop when it isn't.
		return t.Run(ctx)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runLine, "command", "c", "", "run a single line and exit")
}
