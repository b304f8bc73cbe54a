package config

import (
	"fmt"
	"slices"
	"strings"
)

// Validate checks enums and ranges. Load calls it automatically.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider.ID) == "" {
		return fmt.Errorf("provider.id must be set")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be > 0 (got %v)", c.Provider.Timeout)
	}
	if c.Provider.MaxRetries < 0 {
		return fmt.Errorf("provider.max_retries must be >= 0 (got %d)", c.Provider.MaxRetries)
	}

	if err := c.Translation.validate(); err != nil {
		return fmt.Errorf("translation: %w", err)
	}
	if c.Annotation.MaxChars <= 0 {
		return fmt.Errorf("annotation.max_chars must be > 0 (got %d)", c.Annotation.MaxChars)
	}
	if err := c.Cache.validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (t *Translation) validate() error {
	if strings.TrimSpace(t.TargetLanguage) == "" {
		return fmt.Errorf("target_language must be set")
	}
	if t.TargetWords <= 0 {
		return fmt.Errorf("target_words must be > 0 (got %d)", t.TargetWords)
	}
	if t.RequestDelay < 0 {
		return fmt.Errorf("request_delay must be >= 0 (got %v)", t.RequestDelay)
	}
	return oneOf("fallback", t.Fallback, FallbackNone, FallbackMyMemory, FallbackLibre)
}

func (c *Cache) validate() error {
	if err := oneOf("backend", c.Backend, BackendMemory, BackendFile, BackendSQLite, BackendPostgres); err != nil {
		return err
	}
	if c.Backend == BackendPostgres && c.DSN == "" {
		return fmt.Errorf("dsn is required for the postgres backend")
	}
	if c.MemorySize <= 0 {
		return fmt.Errorf("memory_size must be > 0 (got %d)", c.MemorySize)
	}
	return nil
}

func (l *Log) validate() error {
	if err := oneOf("level", strings.ToLower(l.Level), "debug", "info", "warn", "error"); err != nil {
		return err
	}
	return oneOf("format", l.Format, "text", "json")
}

func oneOf(field, value string, valid ...string) error {
	if slices.Contains(valid, value) {
		return nil
	}
	return fmt.Errorf("%s %q is not one of %s", field, value, strings.Join(valid, ", "))
}
