package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const (
	ConfigurationName = "config.yaml"
	LogsDirName       = "session_logs"
	PrivateKeyName    = "private_key"
	EventLogName      = "events.log"
)

// History backends.
const (
	HistoryMemory   = "memory"
	HistorySettings = "settings"
)

type Configuration struct {
	configFs         afero.Fs
	configurationDir string

	Prompt      string  `json:"prompt" validate:"required"`
	Motd        string  `json:"motd"`
	ProgramsDir string  `json:"programs_dir" validate:"required"`
	History     History `json:"history"`
	SettingsDB  string  `json:"settings_db" validate:"required"`

	InteractiveInterpreters []string          `json:"interactive_interpreters" validate:"unique,dive,required"`
	REPLSubstitutes         map[string]string `json:"repl_substitutes" validate:"dive,keys,required,endkeys,required"`
	ProgramSuffixes         []ProgramSuffix   `json:"program_suffixes" validate:"unique=Suffix,dive"`

	EOFDelayMS   int      `json:"eof_delay_ms" validate:"gte=0"`
	HostCommands bool     `json:"host_commands"`
	Embedded     bool     `json:"embedded"`
	SSHPort      int      `json:"ssh_port" validate:"gte=0,lte=65535"`
	LogLevel     string   `json:"log_level" validate:"oneof=trace debug info warn error off"`
	Env          []string `json:"env" validate:"dive,required"`
}

type History struct {
	Backend string `json:"backend" validate:"oneof=memory settings"`
	Limit   int    `json:"limit" validate:"gte=0"`
}

// ProgramSuffix maps a file suffix in the programs directory to the
// interpreter that runs it.
type ProgramSuffix struct {
	Suffix      string `json:"suffix"`
	Interpreter string `json:"interpreter" validate:"required"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		c.configFs = afero.NewBasePathFs(afero.NewOsFs(), c.configurationDir)
	}
	return c.configFs
}

// Dir returns the directory the configuration was loaded from.
func (c *Configuration) Dir() string {
	return c.configurationDir
}

// CreateSessionLog creates a terminal recording with the given name.
func (c *Configuration) CreateSessionLog(name string) (afero.File, error) {
	if err := c.fs().MkdirAll(LogsDirName, 0700); err != nil {
		return nil, err
	}
	return c.fs().Create(filepath.Join(LogsDirName, name))
}

// OpenSessionLog opens a terminal recording for reading.
func (c *Configuration) OpenSessionLog(name string) (afero.File, error) {
	return c.fs().Open(filepath.Join(LogsDirName, filepath.Base(name)))
}

// PrivateKeyPem returns the bytes of the SSH host key.
func (c *Configuration) PrivateKeyPem() ([]byte, error) {
	return afero.ReadFile(c.fs(), PrivateKeyName)
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	return c.fs().OpenFile(EventLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(EventLogName, os.O_RDONLY, 0600)
}

// SettingsPath returns the host path of the settings database.
func (c *Configuration) SettingsPath() string {
	if filepath.IsAbs(c.SettingsDB) {
		return c.SettingsDB
	}
	return filepath.Join(c.configurationDir, c.SettingsDB)
}

// ProgramsPath returns the programs directory with "~" expanded.
func (c *Configuration) ProgramsPath() (string, error) {
	return homedir.Expand(c.ProgramsDir)
}

// EOFDelay is the time to wait before replacing a closed input pipe.
func (c *Configuration) EOFDelay() time.Duration {
	return time.Duration(c.EOFDelayMS) * time.Millisecond
}

// IsInteractiveInterpreter returns true if stderr should be merged into
// stdout for the named program.
func (c *Configuration) IsInteractiveInterpreter(name string) bool {
	for _, interp := range c.InteractiveInterpreters {
		if interp == name {
			return true
		}
	}
	return false
}

// Default returns the built-in configuration, it isn't backed by a directory.
func Default() *Configuration {
	return defaultConfig()
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
