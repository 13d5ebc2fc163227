// Package config loads launchdex configuration.
//
// Values are layered in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config ($XDG_CONFIG_HOME/launchdex/config.yaml)
//  3. Project config (.launchdex.yaml or .launchdex.yml in the working directory)
//  4. Environment variables (LAUNCHDEX_*)
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/logging"
)

// MaxQueryLengthLimit caps search.max_query_length.
const MaxQueryLengthLimit = 1 << 16

// Config is the complete launchdex configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Plugins   PluginsConfig   `yaml:"plugins" json:"plugins"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Notify    NotifyConfig    `yaml:"notify" json:"notify"`

	// Sources lists the files that contributed, lowest precedence first.
	Sources []string `yaml:"-" json:"sources,omitempty"`
}

// LogConfig configures file logging.
type LogConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// PluginsConfig locates plugin manifests.
type PluginsConfig struct {
	// Dir holds one YAML manifest per plugin.
	Dir string `yaml:"dir" json:"dir"`
	// WatchDebounce is how long `watch` waits for a manifest to settle.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// SearchConfig tunes the search index.
type SearchConfig struct {
	// MaxQueryLength rejects longer queries (bytes).
	MaxQueryLength int `yaml:"max_query_length" json:"max_query_length"`
	// BatchLimit bounds the index operations staged by a single save. 0 = unlimited.
	BatchLimit int `yaml:"batch_limit" json:"batch_limit"`
}

// TelemetryConfig configures query metrics.
type TelemetryConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	DBPath           string `yaml:"db_path" json:"db_path"`
	TopTerms         int    `yaml:"top_terms" json:"top_terms"`
	ZeroResultBuffer int    `yaml:"zero_result_buffer" json:"zero_result_buffer"`
	RecentQueries    int    `yaml:"recent_queries" json:"recent_queries"`
	FlushInterval    string `yaml:"flush_interval" json:"flush_interval"`
}

// NotifyConfig configures the "results changed" signal.
type NotifyConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Log: LogConfig{
			Level:     "warn",
			File:      logging.DefaultLogPath(),
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Plugins: PluginsConfig{
			Dir:           filepath.Join(GetUserConfigDir(), "plugins"),
			WatchDebounce: "300ms",
		},
		Search: SearchConfig{
			MaxQueryLength: 1024,
		},
		Telemetry: TelemetryConfig{
			Enabled:          true,
			DBPath:           filepath.Join(DataDir(), "telemetry.db"),
			TopTerms:         100,
			ZeroResultBuffer: 100,
			RecentQueries:    500,
			FlushInterval:    "30s",
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
	}
}

// GetUserConfigPath returns the user configuration file:
//   - $XDG_CONFIG_HOME/launchdex/config.yaml when XDG_CONFIG_HOME is set
//   - ~/.config/launchdex/config.yaml otherwise
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "launchdex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "launchdex", "config.yaml")
	}
	return filepath.Join(home, ".config", "launchdex", "config.yaml")
}

// GetUserConfigDir returns the directory of the user configuration file.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// DataDir returns ~/.launchdex, where launchdex keeps telemetry and locks.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".launchdex")
	}
	return filepath.Join(home, ".launchdex")
}

// Load builds the configuration for the project directory dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	for _, name := range []string{".launchdex.yaml", ".launchdex.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
			break
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile builds the configuration from defaults, the file at path and the
// environment. Unlike Load, a missing file is an error.
func LoadFile(path string) (*Config, error) {
	if !fileExists(path) {
		return nil, lderrors.New(lderrors.ErrCodeConfigNotFound, "config file not found", nil).
			WithDetail("path", path)
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes path on top of c. Keys absent from the file keep their
// current value; unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return lderrors.ConfigError("failed to read config file", err).WithDetail("path", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return lderrors.ConfigError("failed to parse config file", err).WithDetail("path", path)
	}

	c.Sources = append(c.Sources, path)
	return nil
}

// applyEnvOverrides applies LAUNCHDEX_* environment variables.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"LAUNCHDEX_LOG_LEVEL":      &c.Log.Level,
		"LAUNCHDEX_LOG_FILE":       &c.Log.File,
		"LAUNCHDEX_PLUGINS_DIR":    &c.Plugins.Dir,
		"LAUNCHDEX_WATCH_DEBOUNCE": &c.Plugins.WatchDebounce,
		"LAUNCHDEX_TELEMETRY_DB":   &c.Telemetry.DBPath,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("LAUNCHDEX_MAX_QUERY_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("LAUNCHDEX_MAX_QUERY_LENGTH", v, err)
		}
		c.Search.MaxQueryLength = n
	}

	bools := map[string]*bool{
		"LAUNCHDEX_TELEMETRY": &c.Telemetry.Enabled,
		"LAUNCHDEX_NOTIFY":    &c.Notify.Enabled,
	}
	for name, dst := range bools {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return envError(name, v, err)
			}
			*dst = b
		}
	}
	return nil
}

func envError(name, value string, err error) error {
	return lderrors.ConfigError("invalid environment override", err).
		WithDetail("variable", name).
		WithDetail("value", value)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level, "use debug, info, warn or error")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxFiles < 0 {
		return invalid("log.max_size_mb", fmt.Sprintf("%d/%d", c.Log.MaxSizeMB, c.Log.MaxFiles),
			"log rotation limits must be non-negative")
	}
	if strings.TrimSpace(c.Plugins.Dir) == "" {
		return invalid("plugins.dir", c.Plugins.Dir, "set a manifest directory")
	}
	if d, err := time.ParseDuration(c.Plugins.WatchDebounce); err != nil || d < 0 {
		return invalid("plugins.watch_debounce", c.Plugins.WatchDebounce, "use a duration such as 300ms")
	}
	if c.Search.MaxQueryLength <= 0 || c.Search.MaxQueryLength > MaxQueryLengthLimit {
		return invalid("search.max_query_length", strconv.Itoa(c.Search.MaxQueryLength),
			fmt.Sprintf("must be between 1 and %d", MaxQueryLengthLimit))
	}
	if c.Search.BatchLimit < 0 {
		return invalid("search.batch_limit", strconv.Itoa(c.Search.BatchLimit), "must be non-negative")
	}
	if c.Telemetry.TopTerms <= 0 || c.Telemetry.ZeroResultBuffer <= 0 || c.Telemetry.RecentQueries <= 0 {
		return invalid("telemetry", fmt.Sprintf("%d/%d/%d",
			c.Telemetry.TopTerms, c.Telemetry.ZeroResultBuffer, c.Telemetry.RecentQueries),
			"top_terms, zero_result_buffer and recent_queries must be positive")
	}
	if d, err := time.ParseDuration(c.Telemetry.FlushInterval); err != nil || d < 0 {
		return invalid("telemetry.flush_interval", c.Telemetry.FlushInterval, "use a duration such as 30s")
	}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.DBPath) == "" {
		return invalid("telemetry.db_path", c.Telemetry.DBPath, "set a database path or disable telemetry")
	}
	return nil
}

func invalid(field, value, suggestion string) error {
	return lderrors.New(lderrors.ErrCodeConfigInvalid, "invalid configuration value", nil).
		WithDetail("field", field).
		WithDetail("value", value).
		WithSuggestion(suggestion)
}

// WatchDebounce returns plugins.watch_debounce as a duration. Only valid
// after Validate.
func (c *Config) WatchDebounce() time.Duration {
	d, _ := time.ParseDuration(c.Plugins.WatchDebounce)
	return d
}

// FlushInterval returns telemetry.flush_interval as a duration. Only valid
// after Validate.
func (c *Config) FlushInterval() time.Duration {
	d, _ := time.ParseDuration(c.Telemetry.FlushInterval)
	return d
}

// LoggingConfig converts the log section for logging.Setup.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:     c.Log.Level,
		FilePath:  c.Log.File,
		MaxSizeMB: c.Log.MaxSizeMB,
		MaxFiles:  c.Log.MaxFiles,
	}
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
