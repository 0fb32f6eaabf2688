package core

import (
	"bytes"
	"context"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gliderlabs/ssh"
	"github.com/josephlewis42/libterm/core/config"
	"github.com/josephlewis42/libterm/core/logger"
	"github.com/josephlewis42/libterm/core/ttylog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Read(p []byte) (int, error) {
	return 0, io.EOF
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeSession implements the parts of ssh.Session the server uses.
type fakeSession struct {
	ssh.Session

	stdin  io.Reader
	stdout syncBuffer
	stderr syncBuffer
	pty    *ssh.Pty
	cmd    string
	ctx    context.Context
}

func newFakeSession(stdin io.Reader) *fakeSession {
	return &fakeSession{
		stdin: stdin,
		ctx:   context.Background(),
	}
}

func (f *fakeSession) Read(p []byte) (int, error)  { return f.stdin.Read(p) }
func (f *fakeSession) Write(p []byte) (int, error) { return f.stdout.Write(p) }
func (f *fakeSession) Stderr() io.ReadWriter       { return &f.stderr }
func (f *fakeSession) RawCommand() string          { return f.cmd }
func (f *fakeSession) Environ() []string           { return []string{"LANG=C"} }
func (f *fakeSession) Context() context.Context    { return f.ctx }

func (f *fakeSession) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4022}
}

func (f *fakeSession) Pty() (ssh.Pty, <-chan ssh.Window, bool) {
	if f.pty == nil {
		return ssh.Pty{}, nil, false
	}
	return *f.pty, make(chan ssh.Window), true
}

func newTestServer(t *testing.T) (*Server, *Workspace) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Initialize(t.TempDir(), log.New(io.Discard, "", 0))
	require.Nil(t, err)
	cfg.EOFDelayMS = 1
	cfg.HostCommands = false

	ws, err := OpenWorkspace(cfg, WorkspaceOptions{Version: "1.2.3"})
	require.Nil(t, err)
	t.Cleanup(func() { ws.Close() })

	srv, err := NewServer(ws)
	require.Nil(t, err)
	return srv, ws
}

func readEvents(t *testing.T, ws *Workspace) []*logger.LogEntry {
	t.Helper()
	fd, err := ws.Config.ReadEventLog()
	require.Nil(t, err)
	defer fd.Close()

	var out []*logger.LogEntry
	require.Nil(t, logger.ReadJSONLinesLog(fd, func(le *logger.LogEntry) {
		out = append(out, le)
	}))
	return out
}

func eventTypes(entries []*logger.LogEntry) []logger.EventType {
	var out []logger.EventType
	for _, le := range entries {
		out = append(out, le.Type)
	}
	return out
}

func TestServer_HandleSession_exec(t *testing.T) {
	srv, ws := newTestServer(t)

	sess := newFakeSession(strings.NewReader(""))
	sess.cmd = "echo hi; nosuch"

	code, err := srv.HandleSession(sess)
	require.Nil(t, err)
	assert.Equal(t, 127, code)
	assert.Equal(t, "hi\n", sess.stdout.String())
	assert.Equal(t, "nosuch: command not found\n", sess.stderr.String())

	entries := readEvents(t, ws)
	assert.Equal(t, []logger.EventType{
		logger.EventSessionStart,
		logger.EventRunCommand,
		logger.EventRunCommand,
		logger.EventSessionEnd,
	}, eventTypes(entries))
	assert.Equal(t, "127.0.0.1:4022", entries[0].GetString("remote_addr"))
	assert.Equal(t, "nosuch", entries[2].GetString("command"))
	assert.Equal(t, 127, entries[3].GetInt("exit_code"))

	sessionID := entries[0].SessionID
	assert.NotEmpty(t, sessionID)
	for _, le := range entries {
		assert.Equal(t, sessionID, le.SessionID)
	}
}

func TestServer_HandleSession_execInput(t *testing.T) {
	srv, _ := newTestServer(t)

	sess := newFakeSession(strings.NewReader("uploaded\n"))
	sess.cmd = "cat"

	code, err := srv.HandleSession(sess)
	require.Nil(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "uploaded\n", sess.stdout.String())
}

func TestServer_HandleSession_terminal(t *testing.T) {
	srv, ws := newTestServer(t)

	inR, inW := io.Pipe()
	defer inW.Close()
	sess := newFakeSession(inR)
	sess.pty = &ssh.Pty{Term: "xterm", Window: ssh.Window{Width: 100, Height: 30}}

	type result struct {
		code int
		err  error
	}
	results := make(chan result, 1)
	go func() {
		code, err := srv.HandleSession(sess)
		results <- result{code, err}
	}()

	io.WriteString(inW, "echo $COLUMNS\r")
	assert.Eventually(t, func() bool {
		return strings.Contains(sess.stdout.String(), "100\r\n")
	}, 5*time.Second, 10*time.Millisecond)
	io.WriteString(inW, "exit 4\r")

	var r result
	select {
	case r = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("session didn't end")
	}
	require.Nil(t, r.err)
	assert.Equal(t, 4, r.code)
	assert.Contains(t, sess.stdout.String(), "libterm version 1.2.3")

	infos, err := afero.ReadDir(afero.NewBasePathFs(afero.NewOsFs(), ws.Config.Dir()), config.LogsDirName)
	require.Nil(t, err)
	require.Len(t, infos, 1)

	fd, err := ws.Config.OpenSessionLog(infos[0].Name())
	require.Nil(t, err)
	defer fd.Close()

	source := ttylog.NewAsciicastLogSource(fd)
	header, err := source.Header()
	require.Nil(t, err)
	assert.Equal(t, 100, header.Width)
	assert.Equal(t, 30, header.Height)
	assert.Equal(t, "xterm", header.Env["TERM"])

	var input strings.Builder
	require.Nil(t, ttylog.Replay(source, func(e *ttylog.Entry) error {
		if e.Stream == ttylog.StreamInput {
			input.Write(e.Data)
		}
		return nil
	}))
	assert.Equal(t, "echo $COLUMNS\rexit 4\r", input.String())

	types := eventTypes(readEvents(t, ws))
	assert.Equal(t, logger.EventSessionStart, types[0])
	assert.Equal(t, logger.EventSessionEnd, types[len(types)-1])
}

func TestServer_HandleSession_hangup(t *testing.T) {
	srv, _ := newTestServer(t)

	inR, inW := io.Pipe()
	defer inW.Close()
	sess := newFakeSession(inR)
	ctx, cancel := context.WithCancel(context.Background())
	sess.ctx = ctx

	results := make(chan error, 1)
	go func() {
		_, err := srv.HandleSession(sess)
		results <- err
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(sess.stdout.String(), "libterm version")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-results:
		assert.Nil(t, err, "a client hanging up isn't an error")
	case <-time.After(5 * time.Second):
		t.Fatal("session didn't end")
	}
}

func TestServer_AuthorizedKey(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.sshServer.PublicKeyHandler

	ctx := &recordingContext{values: map[interface{}]interface{}{}}
	key := fakeKey("ssh-ed25519")

	assert.True(t, handler(ctx, key), "every key is accepted by default")
	assert.Equal(t, []byte("ssh-ed25519"), ctx.values[ContextAuthPublicKey])

	srv.AuthorizedKey = func(ssh.PublicKey) bool { return false }
	assert.False(t, handler(ctx, key))
}

type recordingContext struct {
	ssh.Context
	values map[interface{}]interface{}
}

func (r *recordingContext) SetValue(key, value interface{}) {
	r.values[key] = value
}

type fakeKey string

func (k fakeKey) Type() string                                   { return string(k) }
func (k fakeKey) Marshal() []byte                                { return []byte(k) }
func (k fakeKey) Verify(data []byte, sig *gossh.Signature) error { return nil }
