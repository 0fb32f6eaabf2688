package settings

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestStore_roundTrip(t *testing.T) {
	store, _ := openTemp(t)

	var history []string
	ok, err := store.Get(KeyHistory, &history)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(KeyHistory, []string{"ls", "pwd"}))
	ok, err = store.Get(KeyHistory, &history)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"ls", "pwd"}, history)

	require.NoError(t, store.Delete(KeyHistory))
	ok, err = store.Get(KeyHistory, &history)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_persists(t *testing.T) {
	store, path := openTemp(t)

	login := time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)
	require.NoError(t, store.Put(KeyLastLogin, login))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	var got time.Time
	ok, err := reopened.Get(KeyLastLogin, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, login.Equal(got))

	keys, err := reopened.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{KeyLastLogin}, keys)
}

func TestStore_closed(t *testing.T) {
	store, _ := openTemp(t)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Put("a", 1), ErrClosed)
	_, err := store.Get("a", new(int))
	assert.ErrorIs(t, err, ErrClosed)

	// Closing twice is harmless.
	assert.NoError(t, store.Close())
}
