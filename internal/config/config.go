// Package config loads the daemon configuration.
//
// Configuration is read with koanf from a YAML file. Because YAML is a
// superset of JSON, the launcher's JSON config layout loads unchanged.
// Optional keys get defaults, then the result is validated.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	goyaml "gopkg.in/yaml.v3"

	"github.com/shotos/fivednine/internal/journal"
	"github.com/shotos/fivednine/internal/protocol"
)

// DefaultConfigPath is where packaged installs keep the daemon config.
const DefaultConfigPath = "/etc/fivednine/fivednined.yaml"

// Defaults for optional keys.
const (
	DefaultSocketMode     = "0660"
	DefaultLogLevel       = "info"
	DefaultRetentionHours = 168
	DefaultPruneSchedule  = "@hourly"
	defaultLauncherPath   = "/usr/local/bin/fivednine"
	defaultLauncherConfig = "/etc/fivednine/launcher.json"
	defaultJournalPath    = "/var/lib/fivednine/journal.db"
)

// Config holds the daemon configuration.
// Fields are tagged for both koanf (loading) and yaml (saving).
type Config struct {
	// LauncherPath is the UI launcher executable started at boot.
	LauncherPath string `koanf:"launcher_path" yaml:"launcher_path"`

	// LauncherConfig is passed to the launcher as --config.
	LauncherConfig string `koanf:"launcher_config" yaml:"launcher_config"`

	// SocketPath is the Unix socket the daemon listens on.
	SocketPath string `koanf:"socket_path" yaml:"socket_path"`

	// SocketMode is the octal permission string applied to the socket.
	// An unquoted YAML 0660 arrives as an integer and is converted back.
	SocketMode string `koanf:"socket_mode" yaml:"socket_mode"`

	// ReadTimeoutSeconds bounds how long one message may take to arrive.
	// 0 disables the deadline.
	ReadTimeoutSeconds int `koanf:"read_timeout_seconds" yaml:"read_timeout_seconds"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level" yaml:"log_level"`

	// JournalPath is the bbolt launch journal. Empty disables the journal.
	JournalPath string `koanf:"journal_path" yaml:"journal_path"`

	JournalRetentionHours int    `koanf:"journal_retention_hours" yaml:"journal_retention_hours"`
	JournalPruneSchedule  string `koanf:"journal_prune_schedule" yaml:"journal_prune_schedule"`
}

// Validation errors returned by Load.
var (
	ErrLauncherPathRequired   = errors.New("launcher_path is required")
	ErrLauncherConfigRequired = errors.New("launcher_config is required")
	ErrInvalidSocketMode      = errors.New("socket_mode must be an octal permission between 0000 and 0777")
	ErrInvalidPruneSchedule   = errors.New("journal_prune_schedule is not a valid cron expression")
	ErrInvalidRetention       = errors.New("journal_retention_hours must be positive")
	ErrInvalidReadTimeout     = errors.New("read_timeout_seconds must not be negative")
)

// Load reads the configuration file at path, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	if err := normalizeSocketMode(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a complete configuration suitable for --write-config.
func Default() *Config {
	cfg := &Config{
		LauncherPath:   defaultLauncherPath,
		LauncherConfig: defaultLauncherConfig,
		JournalPath:    defaultJournalPath,
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.SocketPath == "" {
		c.SocketPath = protocol.DefaultSocketPath
	}
	if c.SocketMode == "" {
		c.SocketMode = DefaultSocketMode
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.JournalRetentionHours == 0 {
		c.JournalRetentionHours = DefaultRetentionHours
	}
	if c.JournalPruneSchedule == "" {
		c.JournalPruneSchedule = DefaultPruneSchedule
	}
}

func (c *Config) validate() error {
	if c.LauncherPath == "" {
		return ErrLauncherPathRequired
	}
	if c.LauncherConfig == "" {
		return ErrLauncherConfigRequired
	}
	if _, err := parseMode(c.SocketMode); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSocketMode, c.SocketMode)
	}
	if c.ReadTimeoutSeconds < 0 {
		return ErrInvalidReadTimeout
	}
	if c.JournalRetentionHours < 0 {
		return ErrInvalidRetention
	}
	if _, err := journal.ParseSchedule(c.JournalPruneSchedule); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPruneSchedule, err)
	}
	return nil
}

// normalizeSocketMode rewrites a numeric socket_mode as an octal string.
// YAML decodes an unquoted 0660 to the integer 432; left alone, the weakly
// typed unmarshal would turn it into "432" and parse that as 0432.
func normalizeSocketMode(k *koanf.Koanf) error {
	var mode int64
	switch v := k.Get("socket_mode").(type) {
	case int:
		mode = int64(v)
	case int64:
		mode = v
	case uint64:
		mode = int64(v)
	case float64:
		if v != float64(int64(v)) {
			return fmt.Errorf("%w: %v", ErrInvalidSocketMode, v)
		}
		mode = int64(v)
	default:
		return nil
	}
	if mode < 0 || mode > 0777 {
		return fmt.Errorf("%w: %d is not a permission (quote octal modes, e.g. \"0660\")", ErrInvalidSocketMode, mode)
	}
	return k.Set("socket_mode", fmt.Sprintf("%04o", mode))
}

func parseMode(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	if v > 0777 {
		return 0, fmt.Errorf("mode %o out of range", v)
	}
	return os.FileMode(v), nil
}

// SocketFileMode returns the parsed socket permissions.
func (c *Config) SocketFileMode() os.FileMode {
	mode, err := parseMode(c.SocketMode)
	if err != nil {
		return 0660
	}
	return mode
}

// ReadTimeout returns the per-message read deadline. Zero means none.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// JournalEnabled reports whether launches are journaled.
func (c *Config) JournalEnabled() bool {
	return c.JournalPath != ""
}

// JournalRetention returns how long journal records are kept.
func (c *Config) JournalRetention() time.Duration {
	return time.Duration(c.JournalRetentionHours) * time.Hour
}

// Save writes cfg to path as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := goyaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to %s: %w", path, err)
	}
	return nil
}
