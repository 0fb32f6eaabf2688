package core

import (
	"context"
	"fmt"
	"io"

	"github.com/gliderlabs/ssh"
	"github.com/hashicorp/go-hclog"
	"github.com/josephlewis42/libterm/core/logger"
	"github.com/josephlewis42/libterm/core/terminal"
	"github.com/josephlewis42/libterm/core/ttylog"
	"github.com/josephlewis42/libterm/core/ui"
	"github.com/pkg/errors"
)

type sshContextKey struct {
	name string
}

// ContextAuthPublicKey holds the public key the client authenticated with.
var ContextAuthPublicKey = sshContextKey{"auth-public-key"}

// Server serves terminals over SSH. Interactive sessions get a terminal,
// exec sessions run their command line once.
type Server struct {
	ws        *Workspace
	log       hclog.Logger
	sshServer *ssh.Server

	// AuthorizedKey reports whether a client key may log in. Every key is
	// accepted when it's nil.
	AuthorizedKey func(key ssh.PublicKey) bool
}

// NewServer creates a server listening on the configured port.
func NewServer(ws *Workspace) (*Server, error) {
	srv := &Server{
		ws:  ws,
		log: ws.Log.Named("serve"),
	}

	srv.sshServer = &ssh.Server{
		Addr: fmt.Sprintf(":%d", ws.Config.SSHPort),
		Handler: func(s ssh.Session) {
			code, err := srv.HandleSession(s)
			if err != nil {
				srv.log.Error("session failed", "remote", s.RemoteAddr().String(), "error", err)
			}
			s.Exit(code)
		},
		PublicKeyHandler: func(ctx ssh.Context, key ssh.PublicKey) bool {
			ctx.SetValue(ContextAuthPublicKey, key.Marshal())
			return srv.AuthorizedKey == nil || srv.AuthorizedKey(key)
		},
	}

	keyPem, err := ws.Config.PrivateKeyPem()
	if err != nil {
		return nil, errors.Wrap(err, "reading host key, did you run init?")
	}
	if err := srv.sshServer.SetOption(ssh.HostKeyPEM(keyPem)); err != nil {
		return nil, err
	}

	return srv, nil
}

// HandleSession runs one SSH session to completion and returns its exit
// code.
func (srv *Server) HandleSession(s ssh.Session) (int, error) {
	events := srv.ws.Events.NewSession()
	log := srv.log.With("session", events.SessionID())

	ptyInfo, winch, isPTY := s.Pty()
	name := "ssh"
	if isPTY {
		name = ptyInfo.Term
	}
	events.Record(logger.SessionStart(name, s.RemoteAddr().String(), s.Environ()))

	var (
		code int
		err  error
	)
	if s.RawCommand() != "" {
		code, err = srv.runCommand(s, events)
	} else {
		code, err = srv.runTerminal(s, ptyInfo, winch, isPTY, events, log)
	}

	events.Record(logger.SessionEnd(code))
	return code, err
}

// runCommand runs a single line, this is how scp uploads arrive.
func (srv *Server) runCommand(s ssh.Session, events *logger.SessionLogger) (int, error) {
	sh, err := srv.ws.NewShell(ShellOptions{
		Name:   "exec-" + events.SessionID(),
		Env:    s.Environ(),
		Events: events,
	})
	if err != nil {
		return 1, err
	}

	code := RunAttached(s.Context(), sh, s, s, s.Stderr(), func(ctx context.Context) int {
		return sh.Run(ctx, s.RawCommand())
	})
	return code, nil
}

func (srv *Server) runTerminal(s ssh.Session, ptyInfo ssh.Pty, winch <-chan ssh.Window, isPTY bool, events *logger.SessionLogger, log hclog.Logger) (int, error) {
	var (
		stdin  io.Reader = s
		stdout io.Writer = s
	)

	if isPTY {
		fd, err := srv.ws.Config.CreateSessionLog(fmt.Sprintf("%s.%s", events.SessionID(), ttylog.AsciicastFileExt))
		if err != nil {
			log.Warn("session won't be recorded", "error", err)
		} else {
			defer fd.Close()

			header := ttylog.DefaultAsciicastHeader()
			header.Width = ptyInfo.Window.Width
			header.Height = ptyInfo.Window.Height
			header.Env["TERM"] = ptyInfo.Term
			recorder := ttylog.NewRecorder(ttylog.NewAsciicastLogSink(fd, header), log.Named("ttylog"))
			stdin = recorder.Reader(s)
			stdout = recorder.Writer(s)
		}
	}

	bridge := ui.NewBridge()
	sh, err := srv.ws.NewShell(ShellOptions{
		Name:   events.SessionID(),
		Env:    s.Environ(),
		UI:     bridge,
		Events: events,
	})
	if err != nil {
		return 1, err
	}

	term, err := terminal.New(terminal.Options{
		Shell:      sh,
		Bridge:     bridge,
		Stdin:      stdin,
		Stdout:     stdout,
		IsTerminal: isPTY,
		Width:      ptyInfo.Window.Width,
		Height:     ptyInfo.Window.Height,
		Motd:       srv.ws.Config.Motd,
		Startup:    srv.ws.StartupLines(),
		Log:        log.Named("terminal"),
	})
	if err != nil {
		sh.Close()
		return 1, err
	}
	defer term.Close()

	ctx, cancel := context.WithCancel(s.Context())
	defer cancel()
	go func() {
		for {
			select {
			case window, ok := <-winch:
				if !ok {
					return
				}
				term.Resize(window.Width, window.Height)
			case <-ctx.Done():
				return
			}
		}
	}()

	code, err := term.Run(ctx)
	if err == context.Canceled {
		// The client hung up.
		err = nil
	}
	return code, err
}

// ListenAndServe accepts connections until Shutdown is called.
func (srv *Server) ListenAndServe() error {
	srv.log.Info("starting SSH server", "addr", srv.sshServer.Addr)
	return srv.sshServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for open ones to finish or
// ctx to expire.
func (srv *Server) Shutdown(ctx context.Context) error {
	return srv.sshServer.Shutdown(ctx)
}
