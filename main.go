// readkit: reading assistant for English learners. Tags vocabulary,
// collocations and sentence patterns in an article and translates it
// chunk by chunk.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/annotate"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/article"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache/sqlitestore"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/config"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/highlight"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/i18n"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/langmeta"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/llm"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/pipeline"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/render"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/segmenter"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/settings"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/tagger"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// T translates a CLI message.
func T(msgid string) string { return i18n.T(msgid) }

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir  string
	logLevel string
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "readkit",
		Short: "Reading assistant for English learners",
		Long: `readkit: reading assistant for English learners.

Highlights vocabulary, collocations and sentence patterns in an article and
translates it chunk by chunk, caching every result.

Commands:
  tag         Render an article with its highlights
  segment     Show how an article is split into translation chunks
  annotate    Generate highlights for an article
  translate   Translate an article chunk by chunk
  cache       Inspect or clear the translation cache
  auth        Manage provider API keys
  prompt      Show or change the translation prompt
  config      Show the effective configuration

Articles are Markdown files with optional YAML front matter (id, title,
language). Configuration is read from .readkit.yaml and READKIT_* variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Directory holding .readkit.yaml and .env")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	root.AddCommand(
		newTagCmd(),
		newSegmentCmd(),
		newAnnotateCmd(),
		newTranslateCmd(),
		newCacheCmd(),
		newAuthCmd(),
		newPromptCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

func addProviderFlags(cmd *cobra.Command, pf *providerFlags) {
	cmd.Flags().StringVar(&pf.id, "provider", "", "Model provider: "+strings.Join(llm.ProviderIDs(), ", "))
	cmd.Flags().StringVar(&pf.model, "model", "", "Model name (default: provider default)")
	cmd.Flags().StringVar(&pf.apiKey, "api-key", "", "API key (or READKIT_API_KEY env var)")
	cmd.Flags().StringVar(&pf.baseURL, "base-url", "", "Custom API base URL")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return llm.ProviderIDs(), cobra.ShellCompDirectiveNoFileComp
	})
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "readkit version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// tag
// ---------------------------------------------------------------------------

func newTagCmd() *cobra.Command {
	var (
		highlightsFile string
		annotateFlag   bool
		asJSON         bool
		legend         bool
		pf             providerFlags
	)

	cmd := &cobra.Command{
		Use:   "tag <article>",
		Short: "Render an article with its highlights",
		Long: `Render an article with vocabulary, collocations and sentence patterns
coloured in place.

Highlights come from a JSON or YAML file (--highlights) or are generated on
the fly (--annotate). Without either the article is printed plain.

Examples:
  readkit tag article.md --highlights article.highlights.yaml
  readkit tag article.md --annotate --legend
  readkit tag article.md --highlights h.json --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			art, err := article.ReadFile(args[0])
			if err != nil {
				return err
			}
			text := art.Text()

			var hs []highlight.Highlight
			switch {
			case highlightsFile != "":
				if hs, err = highlight.LoadFile(highlightsFile); err != nil {
					return err
				}
			case annotateFlag:
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				hs = a.annotator(pf, a.cfg.Translation.TargetLanguage).Highlights(ctx, art.ID, text)
				if len(hs) == 0 {
					logWarning(T("No highlights available; showing plain text"))
				}
			}

			segs := tagger.New(tagger.Options{Logger: a.log}).Tag(text, hs)
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, segs)
			}

			r := render.New(out, terminalWidth())
			fmt.Fprintln(out, r.Tagged(segs))
			if legend && len(hs) > 0 {
				fmt.Fprintln(out)
				fmt.Fprint(out, r.Legend(hs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&highlightsFile, "highlights", "", "Highlights file (JSON or YAML)")
	cmd.Flags().BoolVar(&annotateFlag, "annotate", false, "Generate highlights with the annotator")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print display segments as JSON")
	cmd.Flags().BoolVar(&legend, "legend", false, "List highlights and explanations after the text")
	cmd.MarkFlagsMutuallyExclusive("highlights", "annotate")
	addProviderFlags(cmd, &pf)

	return cmd
}

// ---------------------------------------------------------------------------
// segment
// ---------------------------------------------------------------------------

func newSegmentCmd() *cobra.Command {
	var (
		words  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "segment <article>",
		Short: "Show how an article is split into translation chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			art, err := article.ReadFile(args[0])
			if err != nil {
				return err
			}
			text := art.Text()
			chunks := segmenter.Split(text, words)
			out := cmd.OutOrStdout()

			if asJSON {
				type chunk struct {
					Index int    `json:"index"`
					Words int    `json:"words"`
					Text  string `json:"text"`
				}
				list := make([]chunk, len(chunks))
				for i, c := range chunks {
					list[i] = chunk{Index: i, Words: segmenter.WordCount(c), Text: c}
				}
				return writeJSON(out, map[string]any{
					"article":   art.ID,
					"signature": segmenter.Signature(text),
					"chunks":    list,
				})
			}

			r := render.New(out, terminalWidth())
			fmt.Fprint(out, r.Chunks(chunks, segmenter.WordCount))
			logInfo(i18n.N("%d chunk, signature %s", "%d chunks, signature %s", len(chunks)), len(chunks), segmenter.Signature(text))
			return nil
		},
	}

	cmd.Flags().IntVar(&words, "words", segmenter.DefaultTargetWords, "Target words per chunk")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print chunks as JSON")

	return cmd
}

// ---------------------------------------------------------------------------
// annotate
// ---------------------------------------------------------------------------

func newAnnotateCmd() *cobra.Command {
	var (
		format   string
		lang     string
		keywords bool
		outFile  string
		pf       providerFlags
	)

	cmd := &cobra.Command{
		Use:   "annotate <article>",
		Short: "Generate highlights for an article",
		Long: `Ask the model for vocabulary, collocations and sentence patterns in an
article and print them as a highlights file for 'readkit tag'.

Explanations are written in --lang (default: translation.target_language).
When the model is unavailable the most frequent long words are used.

Examples:
  readkit annotate article.md > article.highlights.yaml
  readkit annotate article.md --keywords --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			art, err := article.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if lang == "" {
				lang = a.cfg.Translation.TargetLanguage
			}

			var hs []highlight.Highlight
			if keywords {
				hs, err = annotate.Keywords{}.Analyze(ctx, art.Text())
				if err != nil {
					return err
				}
			} else {
				hs = a.annotator(pf, lang).Highlights(ctx, art.ID, art.Text())
			}
			if len(hs) == 0 {
				return errors.New(T("no highlights produced"))
			}

			out := cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if err := writeHighlights(out, hs, format); err != nil {
				return err
			}
			logSuccess(i18n.N("%d highlight", "%d highlights", len(hs)), len(hs))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVar(&lang, "lang", "", "Language of the explanations")
	cmd.Flags().BoolVar(&keywords, "keywords", false, "Skip the model and pick frequent words")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write to a file instead of stdout")
	addProviderFlags(cmd, &pf)

	return cmd
}

func writeHighlights(w io.Writer, hs []highlight.Highlight, format string) error {
	switch format {
	case "json":
		return writeJSON(w, hs)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(hs); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q (valid: yaml, json)", format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	lang    string
	refresh bool
	retry   int
	prompt  string
	outFile string
	asJSON  bool
	pf      providerFlags
}

func newTranslateCmd() *cobra.Command {
	var ta translateArgs

	cmd := &cobra.Command{
		Use:   "translate <article>",
		Short: "Translate an article chunk by chunk",
		Long: `Translate an article into the target language one chunk at a time.

Every chunk's status is cached, so an interrupted or rate-limited run picks
up where it stopped. Chunks that failed are retried on the next run; use
--retry to retry a single chunk or --refresh to start over.

Examples:
  readkit translate article.md --lang zh-CN
  readkit translate article.md --provider groq
  readkit translate article.md --retry 3
  readkit translate article.md --refresh -o article.zh.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, args[0], ta)
		},
	}

	cmd.Flags().StringVar(&ta.lang, "lang", "", "Target language (default: translation.target_language)")
	cmd.Flags().BoolVar(&ta.refresh, "refresh", false, "Discard cached chunks and translate from scratch")
	cmd.Flags().IntVar(&ta.retry, "retry", 0, "Retry only chunk N (1-based)")
	cmd.Flags().StringVar(&ta.prompt, "prompt", "", "Custom system prompt (use {{targetLang}} placeholder)")
	cmd.Flags().StringVarP(&ta.outFile, "output", "o", "", "Write a bilingual Markdown file")
	cmd.Flags().BoolVar(&ta.asJSON, "json", false, "Print the final state as JSON")
	cmd.MarkFlagsMutuallyExclusive("refresh", "retry")
	addProviderFlags(cmd, &ta.pf)

	return cmd
}

func runTranslate(cmd *cobra.Command, path string, ta translateArgs) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	art, err := article.ReadFile(path)
	if err != nil {
		return err
	}

	lang := langmeta.Canonical(firstNonEmpty(ta.lang, a.cfg.Translation.TargetLanguage))
	tr, err := a.translator(ta.pf, ta.prompt)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	progress := render.New(os.Stderr, terminalWidth())
	p := pipeline.New(tr, store, pipeline.Options{
		TargetLanguage: lang,
		TargetWords:    a.cfg.Translation.TargetWords,
		RequestDelay:   a.cfg.Translation.RequestDelay,
		Logger:         a.log,
		OnProgress: func(pr pipeline.Progress) {
			fmt.Fprintf(os.Stderr, "\r%s", progress.Progress(pr))
		},
	})

	meta := langmeta.Resolve(lang)
	logInfo(T("Translating %s into %s %s"), art.ID, meta.Name(), meta.Flag)

	var res pipeline.Result
	switch {
	case ta.retry > 0:
		if err = p.Open(ctx, art.ID, art.Text()); err != nil {
			return err
		}
		seg, rerr := p.Retry(ctx, ta.retry-1)
		if errors.Is(rerr, pipeline.ErrIndex) {
			return rerr
		}
		if rerr != nil {
			logWarning(T("Chunk %d failed: %v"), ta.retry, rerr)
		} else {
			logSuccess(T("Chunk %d: %s"), ta.retry, seg.Status)
		}
	case ta.refresh:
		if err = p.Open(ctx, art.ID, art.Text()); err != nil {
			return err
		}
		res, err = p.Refresh(ctx)
	default:
		res, err = p.Translate(ctx, art.ID, art.Text())
	}
	if ta.retry == 0 {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logWarning(T("Interrupted; finished chunks are cached"))
		} else {
			return err
		}
	}

	st := p.Snapshot()
	out := cmd.OutOrStdout()
	if ta.asJSON {
		if err := writeJSON(out, st); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, render.New(out, terminalWidth()).Segments(st.Segments))
	}

	if ta.outFile != "" {
		pairs := make([]article.Pair, len(st.Segments))
		for i, s := range st.Segments {
			pairs[i] = article.Pair{Original: s.Original, Translation: s.Translation}
		}
		if err := article.WriteBilingual(ta.outFile, art, lang, pairs); err != nil {
			return err
		}
		logSuccess(T("Wrote %s"), ta.outFile)
	}

	reportRun(res, st)
	return nil
}

func reportRun(res pipeline.Result, st pipeline.State) {
	counts := cache.Counts(st.Segments)
	total := len(st.Segments)
	switch {
	case st.RateLimited:
		logWarning("%s", T(pipeline.MsgRateLimited))
	case st.Message != "":
		logWarning("%s", T(st.Message))
	}
	if counts[cache.Done] == total {
		logSuccess(i18n.N("%d chunk translated", "All %d chunks translated", total), total)
		return
	}
	logInfo(T("%d of %d chunks translated"), counts[cache.Done], total)
	if res.Failed > 0 || counts[cache.Failed] > 0 {
		logInfo(T("Run again to retry failed chunks, or use --retry N"))
	}
}

// ---------------------------------------------------------------------------
// cache
// ---------------------------------------------------------------------------

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the translation cache",
	}
	cmd.AddCommand(newCacheStatsCmd(), newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show what the cache holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend: %s\n", a.cfg.Cache.Backend)
			switch s := store.(type) {
			case *cache.File:
				fmt.Fprintf(out, "path:    %s\n", s.Path())
				fmt.Fprintf(out, "entries: %s\n", s.Summary())
			case *sqlitestore.Store:
				n, err := s.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "entries: %d\n", n)
			case *cache.Memory:
				fmt.Fprintf(out, "entries: %d (memory cache is empty at start)\n", s.Len())
			default:
				fmt.Fprintln(out, "entries: not reported for this backend")
			}
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [article-id]",
		Short: "Remove one article's cached translation, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				logSuccess(T("Cleared %s"), args[0])
				return nil
			}

			f, ok := store.(*cache.File)
			if !ok {
				return errors.New(T("clearing everything is only supported for the file backend; pass an article id"))
			}
			if err := f.Clear(); err != nil {
				return err
			}
			logSuccess(T("Cache cleared"))
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage API keys for model providers. Keys are stored in
$XDG_DATA_HOME/readkit/auth.json with 0600 permissions.

Lookup order: --api-key flag, READKIT_API_KEY, then this store.

Examples:
  readkit auth login --provider groq
  readkit auth login --provider custom-openai
  readkit auth logout --provider groq
  readkit auth list`,
	}
	cmd.AddCommand(newAuthLoginCmd(), newAuthLogoutCmd(), newAuthListCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var provider, model string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key for a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := llm.DefaultProviders()[provider]; !ok {
				return fmt.Errorf(T("unknown provider %q (known: %s)"), provider, strings.Join(llm.ProviderIDs(), ", "))
			}
			return authLogin(cmd.InOrStdin(), provider, model)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to configure (required)")
	cmd.Flags().StringVar(&model, "model", "", "Default model for this provider")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return llm.ProviderIDs(), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func authLogin(in io.Reader, providerID, model string) error {
	prov := llm.DefaultProviders()[providerID]
	scanner := bufio.NewScanner(in)
	ask := func(prompt string) string {
		fmt.Fprint(os.Stderr, prompt)
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}

	fmt.Fprintf(os.Stderr, "\n%s%s: %s%s\n", colorBlue, prov.Name, T("API Key Setup"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	existing := settings.Get(providerID)
	var baseURL string
	if providerID == llm.ProviderCustomOpenAI || providerID == llm.ProviderOllama {
		def := prov.BaseURL
		if existing != nil && existing.BaseURL != "" {
			def = existing.BaseURL
		}
		baseURL = ask(fmt.Sprintf("  %s [%s]: ", T("Base URL"), def))
		if baseURL == "" {
			baseURL = def
		}
	}

	if existing != nil && existing.Key != "" {
		fmt.Fprintf(os.Stderr, "  %s: %s%s%s\n", T("Current key"), colorYellow, settings.MaskKey(existing.Key), colorReset)
	}
	key := ask("  " + T("Enter API key (empty to keep current): "))
	if key == "" && existing != nil {
		key = existing.Key
	}
	if key == "" && prov.NeedsKey {
		return errors.New(T("no API key provided"))
	}

	info := &settings.Info{Type: "api", Key: key, BaseURL: baseURL, Model: model}
	if model == "" && existing != nil {
		info.Model = existing.Model
	}
	if err := settings.Set(providerID, info); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	logSuccess(T("%s credentials saved to %s"), prov.Name, settings.FilePath())
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long: `Remove stored credentials for one or all providers.

If --provider is not specified, credentials for ALL providers are removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider != "" {
				if err := settings.Remove(provider); err != nil {
					return err
				}
				logSuccess(T("%s credentials removed"), provider)
				return nil
			}
			if err := settings.RemoveAll(); err != nil {
				return err
			}
			logSuccess(T("All stored credentials removed"))
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to logout (default: all)")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials and status",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n%s%s%s\n", colorBlue, T("Stored Credentials"), colorReset)
			fmt.Fprintln(out, strings.Repeat("─", 60))

			providers := llm.DefaultProviders()
			for _, id := range llm.ProviderIDs() {
				fmt.Fprintf(out, "  %-14s %s\n", id, credentialStatus(providers[id], settings.Get(id)))
			}

			fmt.Fprintf(out, "\n  %s%s%s\n", colorYellow, T("Environment Variables"), colorReset)
			if envKey := os.Getenv("READKIT_API_KEY"); envKey != "" {
				fmt.Fprintf(out, "  READKIT_API_KEY: %s%s%s (%s)\n", colorGreen, settings.MaskKey(envKey), colorReset, T("overrides stored keys"))
			} else {
				fmt.Fprintf(out, "  READKIT_API_KEY: %s%s%s\n", colorRed, T("not set"), colorReset)
			}
			fmt.Fprintln(out)
		},
	}
}

func credentialStatus(prov llm.Provider, info *settings.Info) string {
	switch {
	case info != nil && info.Key != "":
		status := fmt.Sprintf("%s%s%s (key: %s)", colorGreen, T("configured"), colorReset, settings.MaskKey(info.Key))
		if info.BaseURL != "" {
			status += fmt.Sprintf("\n  %14s endpoint: %s", "", info.BaseURL)
		}
		return status
	case info != nil && info.BaseURL != "":
		return fmt.Sprintf("%s%s%s (no key)\n  %14s endpoint: %s", colorGreen, T("configured"), colorReset, "", info.BaseURL)
	case !prov.NeedsKey:
		return T("no key needed")
	default:
		return colorRed + T("not configured") + colorReset
	}
}

// ---------------------------------------------------------------------------
// prompt
// ---------------------------------------------------------------------------

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Show or change the translation system prompt",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the prompt in effect",
		Run: func(cmd *cobra.Command, args []string) {
			p := settings.Prompt(settings.PromptTranslate)
			if p == "" {
				p = translate.DefaultSystemPrompt
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
		},
	}

	set := &cobra.Command{
		Use:   "set <file>",
		Short: "Use the prompt in file ({{targetLang}} is replaced)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := settings.SetPrompt(settings.PromptTranslate, strings.TrimSpace(string(data))); err != nil {
				return err
			}
			logSuccess(T("Prompt saved"))
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Go back to the built-in prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.SetPrompt(settings.PromptTranslate, ""); err != nil {
				return err
			}
			logSuccess(T("Prompt reset"))
			return nil
		},
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func newConfigCmd() *cobra.Command {
	var env bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if env {
				fmt.Fprintln(out, config.Usage())
				return nil
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			shown := *a.cfg
			if shown.Provider.APIKey != "" {
				shown.Provider.APIKey = settings.MaskKey(shown.Provider.APIKey)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(shown); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&env, "env", false, "List the environment variables instead")
	return cmd
}
