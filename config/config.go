// Package config loads readkit configuration from .readkit.yaml and the
// environment.
//
// When a .readkit.yaml file exists in the working directory it supplies
// the base values; READKIT_* environment variables override it, and
// env-default tags fill whatever is left.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// FileName is the default config file name.
const FileName = ".readkit.yaml"

// PathEnv names an explicit config file. A missing explicit file is an
// error; a missing default file is not.
const PathEnv = "READKIT_CONFIG"

// Config is the root configuration.
type Config struct {
	Provider    Provider    `yaml:"provider"`
	Translation Translation `yaml:"translation"`
	Annotation  Annotation  `yaml:"annotation"`
	Cache       Cache       `yaml:"cache"`
	Log         Log         `yaml:"log"`
}

// Provider selects the language model used for translation and annotation.
type Provider struct {
	ID         string        `yaml:"id"          env:"READKIT_PROVIDER"    env-default:"openai"`
	BaseURL    string        `yaml:"base_url"    env:"READKIT_BASE_URL"`
	Model      string        `yaml:"model"       env:"READKIT_MODEL"`
	APIKey     string        `yaml:"api_key"     env:"READKIT_API_KEY"`
	Proxy      string        `yaml:"proxy"       env:"READKIT_PROXY"`
	Timeout    time.Duration `yaml:"timeout"     env:"READKIT_TIMEOUT"     env-default:"60s"`
	MaxRetries int           `yaml:"max_retries" env:"READKIT_MAX_RETRIES" env-default:"3"`
}

// Fallback translators.
const (
	FallbackNone     = "none"
	FallbackMyMemory = "mymemory"
	FallbackLibre    = "libre"
)

// Translation configures the translation pipeline.
type Translation struct {
	TargetLanguage string        `yaml:"target_language" env:"READKIT_TARGET_LANGUAGE" env-default:"zh-CN"`
	TargetWords    int           `yaml:"target_words"    env:"READKIT_TARGET_WORDS"    env-default:"80"`
	RequestDelay   time.Duration `yaml:"request_delay"   env:"READKIT_REQUEST_DELAY"   env-default:"350ms"`
	Fallback       string        `yaml:"fallback"        env:"READKIT_FALLBACK"        env-default:"mymemory"`
}

// Annotation configures highlight generation. The switches are negative
// because cleanenv cannot tell an explicit false from an unset field.
type Annotation struct {
	Disabled   bool `yaml:"disabled"    env:"READKIT_NO_ANNOTATE"`
	MaxChars   int  `yaml:"max_chars"   env:"READKIT_ANNOTATE_MAX_CHARS" env-default:"6000"`
	NoKeywords bool `yaml:"no_keywords" env:"READKIT_NO_KEYWORDS"`
}

// Cache backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Cache selects where translated segments are kept.
type Cache struct {
	Backend string `yaml:"backend"     env:"READKIT_CACHE_BACKEND" env-default:"file"`
	// Path is the file or database path; empty selects a file in the data dir.
	Path       string `yaml:"path"        env:"READKIT_CACHE_PATH"`
	DSN        string `yaml:"dsn"         env:"READKIT_CACHE_DSN"`
	MemorySize int    `yaml:"memory_size" env:"READKIT_CACHE_MEMORY_SIZE" env-default:"256"`
}

// Log configures diagnostic logging to stderr.
type Log struct {
	Level  string `yaml:"level"  env:"READKIT_LOG_LEVEL"  env-default:"warn"`
	Format string `yaml:"format" env:"READKIT_LOG_FORMAT" env-default:"text"`
}

// Load reads configuration for a working directory.
// Priority: ENV > YAML > defaults (via env-default tags).
func Load(rootDir string) (*Config, error) {
	var cfg Config

	path := os.Getenv(PathEnv)
	explicitPath := path != ""
	if !explicitPath {
		path = filepath.Join(rootDir, FileName)
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Usage describes every environment variable the config reads.
func Usage() string {
	var cfg Config
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return desc
}
