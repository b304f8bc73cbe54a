// Package pipeline translates an article chunk by chunk, strictly in order,
// persisting every status change and discarding results from superseded
// runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/segmenter"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/translate"
)

const (
	// DefaultRequestDelay spaces calls to stay under provider rate limits.
	DefaultRequestDelay = 350 * time.Millisecond

	MsgRateLimited    = "rate limit reached; translation paused"
	MsgPartialFailure = "some segments failed to translate"
)

var (
	ErrNoArticle = errors.New("no article open")
	ErrStale     = errors.New("article changed while the request was in flight")
	ErrIndex     = errors.New("segment index out of range")
)

// Progress is the 1-based position of the segment being worked on.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Options configures a Pipeline. Zero values select defaults.
type Options struct {
	TargetLanguage string
	TargetWords    int
	// RequestDelay defaults to DefaultRequestDelay; negative disables it.
	RequestDelay   time.Duration
	Logger         *slog.Logger

	// OnProgress and OnUpdate are called without the pipeline lock held.
	OnProgress func(Progress)
	OnUpdate   func(cache.Segment)

	// Sleep waits between calls. It must return early with ctx.Err() when
	// ctx is cancelled.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Result summarises one run.
type Result struct {
	RunID      string
	Translated int
	Failed     int
	Skipped    int
	// Halted is set when a rate limit stopped the run.
	Halted bool
	// Stale is set when a newer run superseded this one.
	Stale   bool
	Message string
}

// State is a point-in-time copy of the pipeline.
type State struct {
	ArticleID   string          `json:"article_id"`
	Signature   string          `json:"signature"`
	Segments    []cache.Segment `json:"segments"`
	Progress    Progress        `json:"progress"`
	Message     string          `json:"message,omitempty"`
	RateLimited bool            `json:"rate_limited"`
	Running     bool            `json:"running"`
}

// Pipeline owns the translation state of one open article.
type Pipeline struct {
	tr    translate.Translator
	store cache.Store
	opts  Options
	log   *slog.Logger

	mu          sync.Mutex
	open        bool
	articleID   string
	text        string
	signature   string
	segments    []cache.Segment
	progress    Progress
	message     string
	rateLimited bool
	running     bool

	// runGen invalidates runs; docGen invalidates retries.
	runGen uint64
	docGen uint64

	// seq orders store writes. It is bumped under mu when a write is
	// stamped; storeMu serialises the writes themselves.
	seq     uint64
	storeMu sync.Mutex
	written map[string]uint64
}

// write is a snapshot of the segment list stamped for the store. A purge
// drops the article's other entries first.
type write struct {
	seq   uint64
	key   cache.Key
	segs  []cache.Segment
	purge bool
}

// New returns a Pipeline translating with tr and persisting to store.
func New(tr translate.Translator, store cache.Store, opts Options) *Pipeline {
	if opts.TargetWords <= 0 {
		opts.TargetWords = segmenter.DefaultTargetWords
	}
	if opts.RequestDelay < 0 {
		opts.RequestDelay = 0
	} else if opts.RequestDelay == 0 {
		opts.RequestDelay = DefaultRequestDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{tr: tr, store: store, opts: opts, log: log, written: make(map[string]uint64)}
}

// Open makes text the current article. Any run or retry in flight for the
// previous article is invalidated. Cached segments are reused when the
// content signature matches; otherwise the article's cache entries are
// discarded and segments are rebuilt.
func (p *Pipeline) Open(ctx context.Context, articleID, text string) error {
	sig := segmenter.Signature(text)
	key := cache.Key{ArticleID: articleID, Signature: sig}

	p.mu.Lock()
	p.runGen++
	p.docGen++
	doc := p.docGen
	p.reset(articleID, text, sig)
	p.mu.Unlock()

	segs, ok, err := p.store.Get(ctx, key)
	if err != nil {
		p.log.Warn("cache read failed", slog.String("key", key.String()), slog.Any("error", err))
		ok = false
	}

	if ok {
		segs = cache.Normalize(cache.Clone(segs))
		p.log.Debug("cache hit", slog.String("key", key.String()), slog.Int("segments", len(segs)))
	} else {
		segs = p.build(articleID, text)
	}

	p.mu.Lock()
	if p.docGen != doc {
		p.mu.Unlock()
		return ErrStale
	}
	p.segments = segs
	var w write
	if !ok {
		w = p.stamp(key, true)
	}
	p.mu.Unlock()

	if !ok {
		p.persist(ctx, w)
	}
	return nil
}

// Run translates every segment that is not done, in order. It returns
// ctx.Err() when cancelled; a superseded run returns with Result.Stale.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return Result{}, ErrNoArticle
	}
	p.runGen++
	token := p.runGen
	p.message = ""
	p.rateLimited = false
	p.running = true
	key := cache.Key{ArticleID: p.articleID, Signature: p.signature}
	total := len(p.segments)
	p.mu.Unlock()

	res := Result{RunID: ulid.Make().String()}
	log := p.log.With(slog.String("run", res.RunID), slog.String("article", key.ArticleID))
	log.Info("translation run started", slog.Int("segments", total))

	defer func() {
		p.mu.Lock()
		if p.runGen == token {
			p.running = false
		}
		p.mu.Unlock()
	}()

	calls := 0
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		p.mu.Lock()
		if p.runGen != token {
			p.mu.Unlock()
			res.Stale = true
			return res, nil
		}
		prog := Progress{Current: i + 1, Total: total}
		p.progress = prog
		seg := p.segments[i]
		p.mu.Unlock()
		p.notifyProgress(prog)

		if seg.Status == cache.Done {
			res.Skipped++
			continue
		}

		if calls > 0 {
			if err := p.opts.Sleep(ctx, p.opts.RequestDelay); err != nil {
				return res, err
			}
		}
		calls++

		seg, w, ok := p.mutate(token, 0, i, func(s *cache.Segment) {
			s.Status = cache.InFlight
			s.Error = ""
			s.RateLimited = false
		})
		if !ok {
			res.Stale = true
			return res, nil
		}
		p.persist(ctx, w)
		p.notifyUpdate(seg)

		out, err := p.tr.Translate(ctx, seg.Original, p.opts.TargetLanguage)

		if err != nil && ctx.Err() != nil {
			// Cancelled mid-call: the segment goes back to the queue.
			seg, w, ok = p.mutate(token, 0, i, func(s *cache.Segment) { s.Status = cache.Pending })
			if ok {
				p.persist(context.WithoutCancel(ctx), w)
				p.notifyUpdate(seg)
			}
			return res, ctx.Err()
		}

		halt := false
		seg, w, ok = p.mutate(token, 0, i, func(s *cache.Segment) {
			applyResult(s, out, err)
			switch {
			case err == nil:
			case s.RateLimited:
				p.message = MsgRateLimited
				p.rateLimited = true
				halt = true
			default:
				if p.message == "" {
					p.message = MsgPartialFailure
				}
			}
		})
		if !ok {
			log.Debug("discarding stale result", slog.Int("segment", i))
			res.Stale = true
			return res, nil
		}
		p.persist(ctx, w)
		p.notifyUpdate(seg)

		switch {
		case err == nil:
			res.Translated++
		case halt:
			res.Failed++
			res.Halted = true
			res.Message = MsgRateLimited
			log.Warn("rate limited; run halted", slog.Int("segment", i), slog.Any("error", err))
			return res, nil
		default:
			res.Failed++
			res.Message = MsgPartialFailure
			log.Warn("segment failed", slog.Int("segment", i), slog.Any("error", err))
		}
	}

	log.Info("translation run finished",
		slog.Int("translated", res.Translated),
		slog.Int("failed", res.Failed),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

// Retry translates a single segment again. It does not touch the run. A
// segment that is already done is returned unchanged.
func (p *Pipeline) Retry(ctx context.Context, index int) (cache.Segment, error) {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return cache.Segment{}, ErrNoArticle
	}
	if index < 0 || index >= len(p.segments) {
		n := len(p.segments)
		p.mu.Unlock()
		return cache.Segment{}, fmt.Errorf("%w: %d of %d", ErrIndex, index, n)
	}
	doc := p.docGen
	if p.segments[index].Status == cache.Done {
		seg := p.segments[index]
		p.mu.Unlock()
		return seg, nil
	}
	p.mu.Unlock()

	seg, w, ok := p.mutate(0, doc, index, func(s *cache.Segment) {
		s.Status = cache.InFlight
		s.Error = ""
		s.RateLimited = false
	})
	if !ok {
		return cache.Segment{}, ErrStale
	}
	p.persist(ctx, w)
	p.notifyUpdate(seg)

	out, err := p.tr.Translate(ctx, seg.Original, p.opts.TargetLanguage)

	seg, w, ok = p.mutate(0, doc, index, func(s *cache.Segment) { applyResult(s, out, err) })
	if !ok {
		return cache.Segment{}, ErrStale
	}
	p.persist(ctx, w)
	p.notifyUpdate(seg)
	return seg, err
}

// Refresh discards the cached translation of the open article and
// translates it from scratch.
func (p *Pipeline) Refresh(ctx context.Context) (Result, error) {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return Result{}, ErrNoArticle
	}
	p.runGen++
	p.docGen++
	id, text, sig := p.articleID, p.text, p.signature
	p.reset(id, text, sig)
	p.segments = p.build(id, text)
	w := p.stamp(cache.Key{ArticleID: id, Signature: sig}, true)
	p.mu.Unlock()

	p.persist(ctx, w)

	return p.Run(ctx)
}

// Translate opens the article and runs it.
func (p *Pipeline) Translate(ctx context.Context, articleID, text string) (Result, error) {
	if err := p.Open(ctx, articleID, text); err != nil {
		return Result{}, err
	}
	return p.Run(ctx)
}

// Snapshot returns a copy of the current state.
func (p *Pipeline) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		ArticleID:   p.articleID,
		Signature:   p.signature,
		Segments:    cache.Clone(p.segments),
		Progress:    p.progress,
		Message:     p.message,
		RateLimited: p.rateLimited,
		Running:     p.running,
	}
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// reset must be called with p.mu held.
func (p *Pipeline) reset(articleID, text, sig string) {
	p.open = true
	p.articleID = articleID
	p.text = text
	p.signature = sig
	p.segments = nil
	p.progress = Progress{}
	p.message = ""
	p.rateLimited = false
	p.running = false
}

func (p *Pipeline) build(articleID, text string) []cache.Segment {
	chunks := segmenter.Split(text, p.opts.TargetWords)
	segs := make([]cache.Segment, len(chunks))
	for i, c := range chunks {
		segs[i] = cache.Segment{
			ID:       fmt.Sprintf("%s-%d", articleID, i),
			Original: c,
			Status:   cache.Pending,
		}
	}
	return segs
}

// mutate applies fn to segment i if the caller's generation is still
// current. A non-zero token is checked against the run generation, a
// non-zero doc against the document generation. It returns the updated
// segment and the stamped write that persists it.
func (p *Pipeline) mutate(token, doc uint64, i int, fn func(*cache.Segment)) (cache.Segment, write, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token != 0 && p.runGen != token {
		return cache.Segment{}, write{}, false
	}
	if doc != 0 && p.docGen != doc {
		return cache.Segment{}, write{}, false
	}
	if i >= len(p.segments) {
		return cache.Segment{}, write{}, false
	}
	fn(&p.segments[i])
	key := cache.Key{ArticleID: p.articleID, Signature: p.signature}
	return p.segments[i], p.stamp(key, false), true
}

// stamp copies the segment list for the store. Must be called with p.mu held.
func (p *Pipeline) stamp(key cache.Key, purge bool) write {
	p.seq++
	return write{seq: p.seq, key: key, segs: cache.Clone(p.segments), purge: purge}
}

func applyResult(s *cache.Segment, out string, err error) {
	if err == nil {
		s.Status = cache.Done
		s.Translation = out
		s.Error = ""
		s.RateLimited = false
		return
	}
	s.Status = cache.Failed
	s.Error = err.Error()
	s.RateLimited = translate.IsRateLimited(err)
}

// persist applies w unless a newer write for the same article already
// landed. Store failures are logged and otherwise ignored.
func (p *Pipeline) persist(ctx context.Context, w write) {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()

	id := w.key.ArticleID
	if w.seq <= p.written[id] {
		p.log.Debug("dropping superseded cache write", slog.String("key", w.key.String()), slog.Uint64("seq", w.seq))
		return
	}
	p.written[id] = w.seq

	if w.purge {
		if err := p.store.Delete(ctx, id); err != nil {
			p.log.Warn("cache delete failed", slog.String("article", id), slog.Any("error", err))
		}
	}
	if err := p.store.Put(ctx, w.key, w.segs); err != nil {
		p.log.Warn("cache write failed", slog.String("key", w.key.String()), slog.Any("error", err))
	}
}

func (p *Pipeline) notifyProgress(prog Progress) {
	if p.opts.OnProgress != nil {
		p.opts.OnProgress(prog)
	}
}

func (p *Pipeline) notifyUpdate(seg cache.Segment) {
	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(seg)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
