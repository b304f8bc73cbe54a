package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/annotate"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache/pgstore"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache/sqlitestore"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/config"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/llm"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/settings"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/translate"
)

// SQLiteFileName is the default database name for the sqlite backend.
const SQLiteFileName = "cache.db"

// app bundles the configuration and logger the article commands share.
type app struct {
	cfg *config.Config
	log *slog.Logger
}

// providerFlags are the per-command provider overrides.
type providerFlags struct {
	id, model, apiKey, baseURL string
}

func loadApp() (*app, error) {
	// .env is optional.
	_ = godotenv.Load(filepath.Join(rootDir, ".env"))

	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return &app{cfg: cfg, log: newLogger(cfg.Log)}, nil
}

// newLogger builds the diagnostic logger and makes it the default.
// Output is always os.Stderr.
func newLogger(cfg config.Log) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

// provider resolves the model provider. Key lookup order: --api-key flag,
// READKIT_API_KEY (or the config file), then the settings store.
func (a *app) provider(pf providerFlags) (llm.Provider, error) {
	id := firstNonEmpty(pf.id, a.cfg.Provider.ID)
	stored := settings.Get(id)
	var storedModel string
	if stored != nil {
		storedModel = stored.Model
	}

	prov, err := llm.Resolve(id, llm.Provider{
		APIKey:  firstNonEmpty(pf.apiKey, a.cfg.Provider.APIKey, settings.GetAPIKey(id)),
		BaseURL: firstNonEmpty(pf.baseURL, a.cfg.Provider.BaseURL, settings.GetBaseURL(id)),
		Model:   firstNonEmpty(pf.model, a.cfg.Provider.Model, storedModel),
		Proxy:   a.cfg.Provider.Proxy,
		Timeout: a.cfg.Provider.Timeout,
	})
	if err != nil {
		return llm.Provider{}, err
	}
	return prov, prov.Validate()
}

func (a *app) client(pf providerFlags) (*llm.Client, error) {
	prov, err := a.provider(pf)
	if err != nil {
		return nil, err
	}
	return llm.New(prov, llm.Options{MaxRetries: a.cfg.Provider.MaxRetries, Logger: a.log}), nil
}

// translator returns the model translator followed by the configured
// keyless fallback. Without a usable provider the fallback serves alone.
func (a *app) translator(pf providerFlags, prompt string) (translate.Translator, error) {
	var fallback translate.Translator
	switch a.cfg.Translation.Fallback {
	case config.FallbackMyMemory:
		fallback = translate.NewMyMemory()
	case config.FallbackLibre:
		fallback = translate.NewLibre()
	}

	client, err := a.client(pf)
	if err != nil {
		if fallback == nil {
			return nil, err
		}
		logWarning(T("%v; using the %s fallback only"), err, a.cfg.Translation.Fallback)
		return translate.NewChain(fallback), nil
	}

	if prompt == "" {
		prompt = settings.Prompt(settings.PromptTranslate)
	}
	return translate.NewChain(translate.NewLLM(client, prompt), fallback), nil
}

// annotator returns a service that never fails: the model when one is
// configured, keywords otherwise.
func (a *app) annotator(pf providerFlags, lang string) *annotate.Service {
	var primary annotate.Annotator
	if !a.cfg.Annotation.Disabled {
		client, err := a.client(pf)
		if err != nil {
			a.log.Warn("annotation model unavailable", slog.Any("error", err))
		} else {
			primary = annotate.NewLLM(client, lang, a.cfg.Annotation.MaxChars)
		}
	}

	var fallback annotate.Annotator
	if !a.cfg.Annotation.NoKeywords {
		fallback = annotate.Keywords{}
	}
	return annotate.NewService(primary, fallback, a.log)
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

// openStore opens the configured cache backend.
func (a *app) openStore(ctx context.Context) (cache.Store, error) {
	c := a.cfg.Cache
	switch c.Backend {
	case config.BackendMemory:
		return cache.NewMemory(c.MemorySize)
	case config.BackendFile:
		path, err := cachePath(c.Path, cache.FileName)
		if err != nil {
			return nil, err
		}
		return cache.OpenFile(path)
	case config.BackendSQLite:
		path, err := cachePath(c.Path, SQLiteFileName)
		if err != nil {
			return nil, err
		}
		return sqlitestore.Open(ctx, path)
	case config.BackendPostgres:
		if err := pgstore.Migrate(ctx, c.DSN); err != nil {
			return nil, err
		}
		return pgstore.Connect(ctx, c.DSN)
	}
	return nil, fmt.Errorf("unknown cache backend %q", c.Backend)
}

// cachePath returns path, or name inside the data directory.
func cachePath(path, name string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := settings.DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// terminalWidth reads $COLUMNS, falling back to 80.
func terminalWidth() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	return 80
}
