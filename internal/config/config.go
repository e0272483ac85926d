// Package config provides reading and writing of dms configuration.
// Supports both global ($XDG_CONFIG_HOME/dms/config.yaml) and local
// (.dms/config.yaml).
// Reading: uses local if it exists, otherwise global.
// Writing: defaults to global, use --local for local.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/jpl-au/dms/internal/errs"
)

var (
	// ErrNoConfigPath is returned when the config path cannot be determined.
	ErrNoConfigPath = errors.New("cannot determine config path")
	// ErrUnknownKey is returned when getting/setting an unknown config key.
	ErrUnknownKey = fmt.Errorf("%w: unknown config key", errs.ErrConfiguration)
	// ErrInvalidValue is returned when a config value is invalid.
	ErrInvalidValue = fmt.Errorf("%w: invalid config value", errs.ErrConfiguration)
)

// Scope represents the configuration scope (global or local).
type Scope int

const (
	// ScopeGlobal is user-wide config under the XDG config home (default)
	ScopeGlobal Scope = iota
	// ScopeLocal is repository-specific config in .dms/config.yaml
	ScopeLocal
)

// Author is the name recorded on revisions and audit entries when the
// caller does not supply one.
type Author struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// Storage backend names.
const (
	BackendLocal  = "local"
	BackendSQLite = "sqlite"
	BackendGCS    = "gcs"
)

// Storage selects where revisions live.
type Storage struct {
	// Backend is local (default), sqlite or gcs.
	Backend string `yaml:"backend,omitempty"`
	// Root is the local backend's directory, relative to the repository.
	Root   string `yaml:"root,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// Limits holds size limit configuration options.
type Limits struct {
	MaxContent *int64 `yaml:"max_content,omitempty"`
}

// Tracing configures OpenTelemetry export.
type Tracing struct {
	Enabled    *bool    `yaml:"enabled,omitempty"`
	Exporter   string   `yaml:"exporter,omitempty"`
	Endpoint   string   `yaml:"endpoint,omitempty"`
	SampleRate *float64 `yaml:"sample_rate,omitempty"`
}

// Uncategorized policies.
const (
	UncategorizedFallback = "fallback"
	UncategorizedReject   = "reject"
)

// Default values applied when not configured.
const (
	DefaultMaxContent = 100 * 1024 * 1024 // 100 MB
	DefaultRoot       = "documents"
)

// Validation bounds for configuration values.
const (
	MinMaxContent = 1
	MaxMaxContent = 10 * 1024 * 1024 * 1024 // 10 GB
)

// Config contains configuration for dms.
type Config struct {
	Author        Author  `yaml:"author,omitempty"`
	Storage       Storage `yaml:"storage,omitempty"`
	Limits        Limits  `yaml:"limits,omitempty"`
	Uncategorized string  `yaml:"uncategorized,omitempty"`
	Tracing       Tracing `yaml:"tracing,omitempty"`

	Rules  []Rule  `yaml:"rules,omitempty"`
	Stages []Stage `yaml:"stages,omitempty"`
	// Security maps user names to the groups they belong to.
	Security map[string][]string `yaml:"security,omitempty"`

	// path is the file this config was loaded from (for Save)
	path  string
	scope Scope
}

// Validate checks that all configured values are within acceptable bounds.
// Returns nil if all values are valid or not set (defaults will be used).
// Rule patterns and stage options are checked when they are registered.
func (c *Config) Validate() error {
	if c.Limits.MaxContent != nil {
		v := *c.Limits.MaxContent
		if v < MinMaxContent || v > MaxMaxContent {
			return fmt.Errorf("%w: max_content must be between %d and %d, got %d",
				ErrInvalidValue, MinMaxContent, int64(MaxMaxContent), v)
		}
	}
	switch c.Storage.Backend {
	case "", BackendLocal, BackendSQLite:
	case BackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("%w: storage.bucket is required for the gcs backend", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%w: storage.backend must be local, sqlite or gcs, got %q", ErrInvalidValue, c.Storage.Backend)
	}
	switch c.Uncategorized {
	case "", UncategorizedFallback, UncategorizedReject:
	default:
		return fmt.Errorf("%w: uncategorized must be fallback or reject, got %q", ErrInvalidValue, c.Uncategorized)
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("%w: tracing.exporter must be none, stdout or otlp, got %q", ErrInvalidValue, c.Tracing.Exporter)
	}
	if r := c.Tracing.SampleRate; r != nil && (*r < 0 || *r > 1) {
		return fmt.Errorf("%w: tracing.sample_rate must be between 0 and 1", ErrInvalidValue)
	}

	ids := make(map[int]bool)
	for _, r := range c.Rules {
		if r.ID <= 0 {
			return fmt.Errorf("%w: rule %q needs a positive id", ErrInvalidValue, r.Title)
		}
		if ids[r.ID] {
			return fmt.Errorf("%w: duplicate rule id %d", ErrInvalidValue, r.ID)
		}
		ids[r.ID] = true
	}
	names := make(map[string]bool)
	for _, s := range c.Stages {
		if s.Kind == "" {
			return fmt.Errorf("%w: stage %q has no kind", ErrInvalidValue, s.Name)
		}
		n := s.StageName()
		if names[n] {
			return fmt.Errorf("%w: duplicate stage name %q", ErrInvalidValue, n)
		}
		names[n] = true
	}
	return nil
}

// MaxContent returns the maximum content size in bytes (defaults to 100 MB).
func (c *Config) MaxContent() int64 {
	if c.Limits.MaxContent == nil {
		return DefaultMaxContent
	}
	return *c.Limits.MaxContent
}

// Backend returns the storage backend name (defaults to local).
func (c *Config) Backend() string {
	if c.Storage.Backend == "" {
		return BackendLocal
	}
	return c.Storage.Backend
}

// Root returns the local backend directory (defaults to "documents").
func (c *Config) Root() string {
	if c.Storage.Root == "" {
		return DefaultRoot
	}
	return c.Storage.Root
}

// UncategorizedPolicy returns how unmatched filenames are handled
// (defaults to fallback).
func (c *Config) UncategorizedPolicy() string {
	if c.Uncategorized == "" {
		return UncategorizedFallback
	}
	return c.Uncategorized
}

// TracingEnabled returns whether spans are exported (defaults to false).
func (c *Config) TracingEnabled() bool {
	return c.Tracing.Enabled != nil && *c.Tracing.Enabled
}

// SampleRate returns the trace sampling ratio (defaults to 1).
func (c *Config) SampleRate() float64 {
	if c.Tracing.SampleRate == nil {
		return 1
	}
	return *c.Tracing.SampleRate
}

// Groups returns the configured groups of a user.
func (c *Config) Groups(user string) []string {
	return c.Security[user]
}

// LocalPath returns the path to the local (repository) config file.
func LocalPath() string {
	return filepath.Join(".dms", "config.yaml")
}

// GlobalPath returns the path to the global (user) config file:
// $XDG_CONFIG_HOME/dms/config.yaml
func GlobalPath() string {
	if xdg.ConfigHome == "" {
		return ""
	}
	return filepath.Join(xdg.ConfigHome, "dms", "config.yaml")
}

// Load reads configuration: uses local if it exists, otherwise global.
func Load() (*Config, error) {
	if _, err := os.Stat(LocalPath()); err == nil {
		return LoadScope(ScopeLocal)
	}
	return LoadScope(ScopeGlobal)
}

// LoadScope reads configuration from a specific scope.
func LoadScope(scope Scope) (*Config, error) {
	path := pathForScope(scope)
	if path == "" {
		return &Config{scope: scope}, nil
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.scope = scope
	return cfg, nil
}

// LoadFile reads configuration from an explicit path. A missing file
// yields an empty configuration.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: malformed config file %s: %w\n\nTo fix: edit the file to correct the YAML syntax, or delete it to use defaults",
			errs.ErrConfiguration, path, err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Scope returns which scope this config was loaded from.
func (c *Config) Scope() Scope {
	return c.scope
}

// Save writes the configuration to its original location.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = pathForScope(c.scope)
	}
	if c.path == "" {
		return ErrNoConfigPath
	}
	return c.saveToPath(c.path)
}

// SaveScope writes the configuration to the specified scope.
func (c *Config) SaveScope(scope Scope) error {
	path := pathForScope(scope)
	if path == "" {
		return ErrNoConfigPath
	}
	return c.saveToPath(path)
}

// saveToPath writes configuration to a specific filesystem path.
// Creates parent directories as needed with mode 0755.
func (c *Config) saveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// pathForScope returns the filesystem path for a given scope.
func pathForScope(scope Scope) string {
	switch scope {
	case ScopeLocal:
		return LocalPath()
	case ScopeGlobal:
		return GlobalPath()
	default:
		return ""
	}
}
