// config_keys.go provides key-value access to configuration settings.
//
// Separated from config.go to isolate the key enumeration and string-based
// get/set logic. This separation allows config.go to focus on YAML structure
// and loading, while this file handles the MCP and CLI interface where config
// is accessed by string keys (e.g., "limits.max_content").
//
// Design: Pointers are used for optional fields so we can distinguish between
// "not set" (nil) and "explicitly set to zero/false". This enables proper
// defaulting - we only apply defaults when the user hasn't set a value.

package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ValidKeys returns all valid configuration keys.
func ValidKeys() []string {
	return []string{
		"author.name", "author.email",
		"storage.backend", "storage.root", "storage.bucket", "storage.prefix",
		"limits.max_content",
		"uncategorized",
		"tracing.enabled", "tracing.exporter", "tracing.endpoint", "tracing.sample_rate",
	}
}

// IsValidKey returns true if the key is a valid configuration key.
func IsValidKey(key string) bool {
	return slices.Contains(ValidKeys(), key)
}

// Get returns the value of a configuration key as a string.
func (c *Config) Get(key string) (string, error) {
	if !IsValidKey(key) {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return c.All()[key], nil
}

// Set sets the value of a configuration key. The result is validated as a
// whole, so a gcs backend without a bucket is refused at the point it is
// set rather than on the next load.
func (c *Config) Set(key, value string) error {
	prev := *c
	if err := c.set(key, value); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		*c = prev
		return err
	}
	return nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "author.name":
		c.Author.Name = value
	case "author.email":
		c.Author.Email = value
	case "storage.backend":
		c.Storage.Backend = strings.ToLower(value)
	case "storage.root":
		c.Storage.Root = value
	case "storage.bucket":
		c.Storage.Bucket = value
	case "storage.prefix":
		c.Storage.Prefix = value
	case "limits.max_content":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: limits.max_content must be a positive integer", ErrInvalidValue)
		}
		c.Limits.MaxContent = &n
	case "uncategorized":
		c.Uncategorized = strings.ToLower(value)
	case "tracing.enabled":
		v := strings.ToLower(value)
		if v != "true" && v != "false" {
			return fmt.Errorf("%w: tracing.enabled must be true or false", ErrInvalidValue)
		}
		b := v == "true"
		c.Tracing.Enabled = &b
	case "tracing.exporter":
		c.Tracing.Exporter = strings.ToLower(value)
	case "tracing.endpoint":
		c.Tracing.Endpoint = value
	case "tracing.sample_rate":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: tracing.sample_rate must be a number", ErrInvalidValue)
		}
		c.Tracing.SampleRate = &f
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// All returns all configuration values as a map.
func (c *Config) All() map[string]string {
	exporter := c.Tracing.Exporter
	if exporter == "" {
		exporter = "none"
	}
	return map[string]string{
		"author.name":         c.Author.Name,
		"author.email":        c.Author.Email,
		"storage.backend":     c.Backend(),
		"storage.root":        c.Root(),
		"storage.bucket":      c.Storage.Bucket,
		"storage.prefix":      c.Storage.Prefix,
		"limits.max_content":  strconv.FormatInt(c.MaxContent(), 10),
		"uncategorized":       c.UncategorizedPolicy(),
		"tracing.enabled":     strconv.FormatBool(c.TracingEnabled()),
		"tracing.exporter":    exporter,
		"tracing.endpoint":    c.Tracing.Endpoint,
		"tracing.sample_rate": strconv.FormatFloat(c.SampleRate(), 'g', -1, 64),
	}
}

// IsSet returns true if the key has an explicit value (not just defaults).
func (c *Config) IsSet(key string) bool {
	switch key {
	case "author.name":
		return c.Author.Name != ""
	case "author.email":
		return c.Author.Email != ""
	case "storage.backend":
		return c.Storage.Backend != ""
	case "storage.root":
		return c.Storage.Root != ""
	case "storage.bucket":
		return c.Storage.Bucket != ""
	case "storage.prefix":
		return c.Storage.Prefix != ""
	case "limits.max_content":
		return c.Limits.MaxContent != nil
	case "uncategorized":
		return c.Uncategorized != ""
	case "tracing.enabled":
		return c.Tracing.Enabled != nil
	case "tracing.exporter":
		return c.Tracing.Exporter != ""
	case "tracing.endpoint":
		return c.Tracing.Endpoint != ""
	case "tracing.sample_rate":
		return c.Tracing.SampleRate != nil
	default:
		return false
	}
}
