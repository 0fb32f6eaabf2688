package vos

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// VEnv represents a virtual environment.
type VEnv interface {
	// UserHomeDir returns the current user's home directory.
	UserHomeDir() (string, error)

	// Unsetenv unsets a single environment variable.
	Unsetenv(key string) error

	// Setenv sets the value of the environment variable named by the key.
	// It returns an error, if any.
	Setenv(key, value string) error

	// LookupEnv retrieves the value of the environment variable named by the key.
	// If the variable is present in the environment the value (which may be
	// empty) is returned and the boolean is true. Otherwise the returned value
	// will be empty and the boolean will be false.
	LookupEnv(key string) (string, bool)

	// Getenv retrieves the value of the environment variable named by the key.
	// It returns the value, which will be empty if the variable is not present.
	// To distinguish between an empty value and an unset value, use LookupEnv.
	Getenv(key string) string

	// ExpandEnv replaces ${var} or $var in the string according to the values of
	// the current environment variables. References to undefined variables are
	// replaced by the empty string.
	ExpandEnv(s string) string

	// Environ returns a copy of strings representing the environment, in the
	// form "key=value".
	Environ() []string

	// Clearenv deletes all environment variables.
	Clearenv()
}

// SplitEnv splits a "key=value" pair, a missing "=" yields an empty value.
func SplitEnv(entry string) (key, value string) {
	split := strings.SplitN(entry, "=", 2)
	key = split[0]
	if len(split) > 1 {
		value = split[1]
	}
	return key, value
}

// CopyEnv copies all the "key=value" pairs in environ to dst.
func CopyEnv(dst VEnv, environ []string) error {
	for _, e := range environ {
		if err := dst.Setenv(SplitEnv(e)); err != nil {
			return err
		}
	}

	return nil
}

// NewMapEnv creates a new environment backed by a map.
func NewMapEnv() *MapEnv {
	return &MapEnv{}
}

// NewMapEnvFromEnvList creates a new environment from "key=value" pairs.
func NewMapEnvFromEnvList(environ []string) *MapEnv {
	out := &MapEnv{}

	// Ignore error, it will never be set for MapEnv.
	_ = CopyEnv(out, environ)

	return out
}

// MapEnv implements an in-memory VEnv. Keys are kept in the order they were
// first set, so iteration is deterministic.
type MapEnv struct {
	rw   sync.RWMutex
	env  map[string]string
	keys []string
}

var _ VEnv = (*MapEnv)(nil)

// UserHomeDir implements VEnv.UserHomeDir.
func (m *MapEnv) UserHomeDir() (string, error) {
	return m.Getenv("HOME"), nil
}

// Unsetenv implements VEnv.Unsetenv.
func (m *MapEnv) Unsetenv(key string) error {
	m.rw.Lock()
	defer m.rw.Unlock()

	if _, ok := m.env[key]; !ok {
		return nil
	}
	delete(m.env, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return nil
}

// Setenv implements VEnv.Setenv.
func (m *MapEnv) Setenv(key, value string) error {
	m.rw.Lock()
	defer m.rw.Unlock()

	if m.env == nil {
		m.env = make(map[string]string)
	}
	if _, ok := m.env[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.env[key] = value
	return nil
}

// LookupEnv implements VEnv.LookupEnv.
func (m *MapEnv) LookupEnv(key string) (string, bool) {
	m.rw.RLock()
	defer m.rw.RUnlock()

	val, ok := m.env[key]
	return val, ok
}

// Getenv implements VEnv.Getenv.
func (m *MapEnv) Getenv(key string) string {
	val, _ := m.LookupEnv(key)
	return val
}

// ExpandEnv implements VEnv.ExpandEnv.
func (m *MapEnv) ExpandEnv(s string) string {
	return os.Expand(s, m.Getenv)
}

// Environ implements VEnv.Environ.
func (m *MapEnv) Environ() []string {
	var env []string
	m.Each(func(k, v string) bool {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
		return true
	})
	return env
}

// Each calls fn for every variable in insertion order until fn returns false.
// fn operates on a snapshot so it may modify the environment.
func (m *MapEnv) Each(fn func(key, value string) bool) {
	m.rw.RLock()
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = m.env[k]
	}
	m.rw.RUnlock()

	for i, k := range keys {
		if !fn(k, values[i]) {
			return
		}
	}
}

// Clearenv implements VEnv.Clearenv.
func (m *MapEnv) Clearenv() {
	m.rw.Lock()
	defer m.rw.Unlock()
	m.env = make(map[string]string)
	m.keys = nil
}
