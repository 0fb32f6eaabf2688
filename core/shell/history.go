package shell

import (
	"strings"
	"sync"

	"github.com/josephlewis42/libterm/core/settings"
	"github.com/pkg/errors"
)

// HistoryStore persists the history list.
type HistoryStore interface {
	Load() ([]string, error)
	Save(lines []string) error
}

// MemoryStore keeps history for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	lines []string
}

var _ HistoryStore = (*MemoryStore)(nil)

// Load implements HistoryStore.Load.
func (m *MemoryStore) Load() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...), nil
}

// Save implements HistoryStore.Save.
func (m *MemoryStore) Save(lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append([]string(nil), lines...)
	return nil
}

// SettingsStore keeps history in the settings database under
// settings.KeyHistory so it's shared by every terminal.
type SettingsStore struct {
	Settings *settings.Store
}

var _ HistoryStore = (*SettingsStore)(nil)

// Load implements HistoryStore.Load.
func (s *SettingsStore) Load() ([]string, error) {
	var lines []string
	if _, err := s.Settings.Get(settings.KeyHistory, &lines); err != nil {
		return nil, errors.Wrap(err, "loading history")
	}
	return lines, nil
}

// Save implements HistoryStore.Save.
func (s *SettingsStore) Save(lines []string) error {
	return errors.Wrap(s.Settings.Put(settings.KeyHistory, lines), "saving history")
}

// History is an ordered list of unique lines, oldest first.
type History struct {
	mu    sync.Mutex
	store HistoryStore
	limit int
}

// NewHistory creates a history backed by store. If limit is positive only
// the most recent limit lines are kept.
func NewHistory(store HistoryStore, limit int) *History {
	if store == nil {
		store = &MemoryStore{}
	}
	return &History{store: store, limit: limit}
}

// Record moves line to the end of the history, trailing whitespace is
// trimmed and empty lines are ignored.
func (h *History) Record(line string) error {
	line = strings.TrimRightFunc(line, isBlank)
	if line == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	lines, err := h.store.Load()
	if err != nil {
		return err
	}

	out := make([]string, 0, len(lines)+1)
	for _, l := range lines {
		if l != line {
			out = append(out, l)
		}
	}
	out = append(out, line)

	if h.limit > 0 && len(out) > h.limit {
		out = out[len(out)-h.limit:]
	}

	return h.store.Save(out)
}

// All returns the lines, oldest first.
func (h *History) All() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Load()
}

// Clear removes every line.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Save(nil)
}
