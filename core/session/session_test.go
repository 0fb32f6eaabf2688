package session

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()

	s, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSession_Kill_idle(t *testing.T) {
	states := &stateRecorder{}
	s := newTestSession(t, WithStateObserver(states.record))

	terminated := false
	assert.False(t, s.Kill(func() { terminated = true }))
	assert.False(t, terminated)
	assert.Equal(t, Idle, s.State())
	assert.Empty(t, states.get())

	// Nothing was written to the input.
	r := s.Stdin()
	require.True(t, s.SendEOF())
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Empty(t, data)
}

func TestSession_Kill_running(t *testing.T) {
	states := &stateRecorder{}
	s := newTestSession(t, WithStateObserver(states.record))

	ctx, end := s.Begin(context.Background())
	require.True(t, s.IsRunning())

	terminated := false
	assert.True(t, s.Kill(func() { terminated = true }))
	assert.True(t, terminated)
	assert.False(t, s.IsRunning())
	assert.Error(t, ctx.Err())

	// The command finishing after the kill is harmless.
	end()
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, []State{Running, Killing, Idle}, states.get())

	// A second kill has nothing to do.
	assert.False(t, s.Kill(nil))
}

func TestSession_Kill_builtin(t *testing.T) {
	s := newTestSession(t)

	ctx, end := s.Begin(context.Background())
	defer end()

	restore := s.SetBuiltin(true)
	assert.True(t, s.IsBuiltinRunning())
	assert.False(t, s.Kill(nil))
	assert.NoError(t, ctx.Err())

	restore()
	assert.False(t, s.IsBuiltinRunning())
	assert.True(t, s.Kill(nil))
}

func TestSession_Begin_nested(t *testing.T) {
	s := newTestSession(t)

	outer, endOuter := s.Begin(context.Background())
	inner, endInner := s.Begin(outer)
	assert.Equal(t, outer, inner)

	endInner()
	assert.True(t, s.IsRunning(), "nested run must not end the outer one")

	// Calling an end func twice only counts once.
	endInner()
	assert.True(t, s.IsRunning())

	endOuter()
	assert.False(t, s.IsRunning())
	assert.Error(t, outer.Err())
}

func TestSession_Begin_discardsStaleInput(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.Send([]byte("typed while idle\n")))

	_, end := s.Begin(context.Background())
	defer end()

	r := s.Stdin()
	require.True(t, s.SendEOF())
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Empty(t, data)
}

func TestSession_SendEOF(t *testing.T) {
	s := newTestSession(t, WithEOFDelay(time.Millisecond))

	_, end := s.Begin(context.Background())
	defer end()

	r := s.Stdin()
	require.NoError(t, s.Send([]byte("last line\n")))
	require.True(t, s.SendEOF())

	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "last line\n", string(data))

	assert.Eventually(t, func() bool {
		return s.Send([]byte("next\n")) == nil
	}, time.Second, time.Millisecond)
}

func TestSession_SendEOF_beforeReset(t *testing.T) {
	s := newTestSession(t, WithEOFDelay(time.Hour))

	require.True(t, s.SendEOF())
	assert.ErrorIs(t, s.Send([]byte("x")), ErrNoInput)
	assert.False(t, s.SendEOF(), "input is already closed")
}

func TestSession_CloseInput(t *testing.T) {
	s := newTestSession(t, WithEOFDelay(time.Millisecond))

	_, end := s.Begin(context.Background())
	require.NoError(t, s.Send([]byte("payload")))
	require.NoError(t, s.CloseInput())

	time.Sleep(10 * time.Millisecond)
	data, err := io.ReadAll(s.Stdin())
	assert.NoError(t, err)
	assert.Equal(t, "payload", string(data), "no fresh pipe replaces the input")
	assert.ErrorIs(t, s.Send([]byte("x")), ErrNoInput)
	end()

	_, end = s.Begin(context.Background())
	defer end()
	assert.NoError(t, s.Send([]byte("next run")))
}

func TestSession_ResetInput(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.Send([]byte("buffered")))
	r := s.ResetInput()

	require.True(t, s.SendEOF())
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Empty(t, data)
}

func TestSession_Forward(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	out := &bytes.Buffer{}
	done := make(chan error)
	go func() { done <- s.Forward(out, out) }()

	io.WriteString(s.Stdout(), "to stdout\n")
	io.WriteString(s.Stderr(), "to stderr\n")
	require.NoError(t, s.Close())
	require.NoError(t, <-done)

	assert.Contains(t, out.String(), "to stdout\n")
	assert.Contains(t, out.String(), "to stderr\n")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "killing", Killing.String())
	assert.Equal(t, "unknown", State(42).String())
}
