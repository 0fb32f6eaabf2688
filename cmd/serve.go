package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gliderlabs/ssh"
	"github.com/josephlewis42/libterm/core"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	gossh "golang.org/x/crypto/ssh"
)

var authorizedKeysPath string

// loadAuthorizedKeys parses an OpenSSH authorized_keys file.
func loadAuthorizedKeys(path string) ([]ssh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var keys []ssh.PublicKey
	for len(data) > 0 {
		key, _, _, rest, err := gossh.ParseAuthorizedKey(data)
		if err != nil {
			if len(keys) > 0 {
				// Trailing comments and blank lines.
				break
			}
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
		keys = append(keys, key)
		data = rest
	}
	return keys, nil
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve terminals over SSH on the configured port.",
	Long: `Interactive SSH sessions get a terminal and are recorded under
session_logs. Sessions with a command run it once, which is how scp uploads
arrive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		os.Stdin.Close()
		cmd.SilenceUsage = true

		configuration, err := loadConfig(newLogger(cmd, nil))
		if err != nil {
			return err
		}
		log := newLogger(cmd, configuration)
		log.Info("initializing server")

		ws, err := core.OpenWorkspace(configuration, core.WorkspaceOptions{
			Version: version(),
			Log:     log,
		})
		if err != nil {
			return err
		}
		defer ws.Close()

		server, err := core.NewServer(ws)
		if err != nil {
			return err
		}

		if authorizedKeysPath != "" {
			keys, err := loadAuthorizedKeys(authorizedKeysPath)
			if err != nil {
				return err
			}
			log.Info("restricting logins", "keys", len(keys))
			server.AuthorizedKey = func(key ssh.PublicKey) bool {
				for _, allowed := range keys {
					if ssh.KeysEqual(key, allowed) {
						return true
					}
				}
				return false
			}
		}

		errs := make(chan error, 1)
		go func() {
			errs <- server.ListenAndServe()
		}()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errs:
			return err
		case sig := <-sigs:
			log.Info("terminating", "signal", sig.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "server shutdown failed")
		}
		log.Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&authorizedKeysPath, "authorized-keys", "", "only accept the keys in this authorized_keys file")
}
