package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/cache"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/llm"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/segmenter"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/translate"
)

const fourParagraphs = "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here.\n\nFourth paragraph here."

type fakeTranslator struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string]error
	gate    chan struct{}
	started chan string
}

func (f *fakeTranslator) Translate(_ context.Context, text, lang string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	err := f.errs[text]
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- text
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return lang + ":" + text, nil
}

func (f *fakeTranslator) setErr(text string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = map[string]error{}
	}
	if err == nil {
		delete(f.errs, text)
		return
	}
	f.errs[text] = err
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu       sync.Mutex
	progress []Progress
	updates  []cache.Segment
	sleeps   []time.Duration
}

func (r *recorder) options() Options {
	return Options{
		TargetLanguage: "fr",
		OnProgress: func(p Progress) {
			r.mu.Lock()
			r.progress = append(r.progress, p)
			r.mu.Unlock()
		},
		OnUpdate: func(s cache.Segment) {
			r.mu.Lock()
			r.updates = append(r.updates, s)
			r.mu.Unlock()
		},
		Sleep: func(_ context.Context, d time.Duration) error {
			r.mu.Lock()
			r.sleeps = append(r.sleeps, d)
			r.mu.Unlock()
			return nil
		},
	}
}

func (r *recorder) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func newMemory(t *testing.T) *cache.Memory {
	t.Helper()
	m, err := cache.NewMemory(16)
	require.NoError(t, err)
	return m
}

func statuses(segs []cache.Segment) []cache.Status {
	out := make([]cache.Status, len(segs))
	for i, s := range segs {
		out[i] = s.Status
	}
	return out
}

func TestTranslateWholeArticle(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{}
	rec := &recorder{}
	store := newMemory(t)
	p := New(tr, store, rec.options())

	res, err := p.Translate(ctx, "art", fourParagraphs)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Translated)
	assert.False(t, res.Halted)
	assert.NotEmpty(t, res.RunID)

	st := p.Snapshot()
	assert.Equal(t, []cache.Status{cache.Done, cache.Done, cache.Done, cache.Done}, statuses(st.Segments))
	assert.Equal(t, "fr:Second paragraph here.", st.Segments[1].Translation)
	assert.Equal(t, "art-1", st.Segments[1].ID)
	assert.Equal(t, Progress{4, 4}, st.Progress)
	assert.False(t, st.Running)
	assert.Empty(t, st.Message)

	assert.Equal(t, []string{
		"First paragraph here.", "Second paragraph here.",
		"Third paragraph here.", "Fourth paragraph here.",
	}, tr.calls, "segments are attempted in order")
	assert.Equal(t, []Progress{{1, 4}, {2, 4}, {3, 4}, {4, 4}}, rec.progress)
	assert.Equal(t, []time.Duration{DefaultRequestDelay, DefaultRequestDelay, DefaultRequestDelay}, rec.sleeps,
		"no delay before the first call")
	assert.Len(t, rec.updates, 8, "in-flight and done per segment")

	cached, ok, err := store.Get(ctx, cache.Key{ArticleID: "art", Signature: segmenter.Signature(fourParagraphs)})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st.Segments, cached)
}

func TestRateLimitHaltsRun(t *testing.T) {
	tr := &fakeTranslator{}
	tr.setErr("Second paragraph here.", &llm.Failure{Provider: "openai", StatusCode: 429, Message: "slow down"})
	p := New(tr, newMemory(t), (&recorder{}).options())

	res, err := p.Translate(context.Background(), "art", fourParagraphs)
	require.NoError(t, err)
	assert.True(t, res.Halted)
	assert.Equal(t, MsgRateLimited, res.Message)
	assert.Equal(t, 2, tr.callCount())

	st := p.Snapshot()
	assert.Equal(t, []cache.Status{cache.Done, cache.Failed, cache.Pending, cache.Pending}, statuses(st.Segments))
	assert.True(t, st.Segments[1].RateLimited)
	assert.True(t, st.RateLimited)
	assert.Equal(t, MsgRateLimited, st.Message)
}

func TestOtherFailureContinues(t *testing.T) {
	tr := &fakeTranslator{}
	tr.setErr("Second paragraph here.", errors.New("connection reset"))
	p := New(tr, newMemory(t), (&recorder{}).options())

	res, err := p.Translate(context.Background(), "art", fourParagraphs)
	require.NoError(t, err)
	assert.False(t, res.Halted)
	assert.Equal(t, 3, res.Translated)
	assert.Equal(t, 1, res.Failed)

	st := p.Snapshot()
	assert.Equal(t, []cache.Status{cache.Done, cache.Failed, cache.Done, cache.Done}, statuses(st.Segments))
	assert.Equal(t, "connection reset", st.Segments[1].Error)
	assert.False(t, st.Segments[1].RateLimited)
	assert.False(t, st.RateLimited)
	assert.Equal(t, MsgPartialFailure, st.Message)
}

func TestCacheHitSkipsCalls(t *testing.T) {
	ctx := context.Background()
	store := newMemory(t)
	_, err := New(&fakeTranslator{}, store, (&recorder{}).options()).Translate(ctx, "art", fourParagraphs)
	require.NoError(t, err)

	tr := &fakeTranslator{}
	rec := &recorder{}
	res, err := New(tr, store, rec.options()).Translate(ctx, "art", fourParagraphs)
	require.NoError(t, err)

	assert.Zero(t, tr.callCount())
	assert.Equal(t, 4, res.Skipped)
	assert.Empty(t, rec.sleeps)
	assert.Equal(t, []Progress{{1, 4}, {2, 4}, {3, 4}, {4, 4}}, rec.progress, "skipped segments still advance progress")
}

func TestResumeAfterRateLimit(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{}
	tr.setErr("Second paragraph here.", &llm.Failure{StatusCode: 429})
	p := New(tr, newMemory(t), (&recorder{}).options())

	res, err := p.Translate(ctx, "art", fourParagraphs)
	require.NoError(t, err)
	require.True(t, res.Halted)

	tr.setErr("Second paragraph here.", nil)
	res, err = p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Translated)
	assert.Equal(t, 1, res.Skipped)

	st := p.Snapshot()
	assert.Equal(t, []cache.Status{cache.Done, cache.Done, cache.Done, cache.Done}, statuses(st.Segments))
	assert.Empty(t, st.Message)
	assert.False(t, st.RateLimited)
}

func TestSignatureMismatchRebuilds(t *testing.T) {
	ctx := context.Background()
	store := newMemory(t)
	p := New(&fakeTranslator{}, store, (&recorder{}).options())
	_, err := p.Translate(ctx, "art", fourParagraphs)
	require.NoError(t, err)

	edited := fourParagraphs + "\n\nA fifth paragraph."
	require.NoError(t, p.Open(ctx, "art", edited))

	st := p.Snapshot()
	require.Len(t, st.Segments, 5)
	for _, s := range st.Segments {
		assert.Equal(t, cache.Pending, s.Status)
	}

	_, ok, err := store.Get(ctx, cache.Key{ArticleID: "art", Signature: segmenter.Signature(fourParagraphs)})
	require.NoError(t, err)
	assert.False(t, ok, "old signature discarded")
}

// mapStore keeps entries as given so the pipeline's own normalisation is
// what gets tested.
type mapStore struct {
	mu      sync.Mutex
	entries map[cache.Key][]cache.Segment
	putErr  error
	getErr  error
	puts    int
}

func (m *mapStore) Get(_ context.Context, k cache.Key) ([]cache.Segment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	s, ok := m.entries[k]
	return s, ok, nil
}

func (m *mapStore) Put(_ context.Context, k cache.Key, s []cache.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	if m.entries == nil {
		m.entries = map[cache.Key][]cache.Segment{}
	}
	m.entries[k] = s
	return nil
}

func (m *mapStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if k.ArticleID == id {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *mapStore) Close() error { return nil }

func TestOpenNormalisesInFlight(t *testing.T) {
	text := "Only paragraph."
	store := &mapStore{entries: map[cache.Key][]cache.Segment{
		{ArticleID: "art", Signature: segmenter.Signature(text)}: {
			{ID: "art-0", Original: text, Status: cache.InFlight},
		},
	}}
	p := New(&fakeTranslator{}, store, (&recorder{}).options())
	require.NoError(t, p.Open(context.Background(), "art", text))
	assert.Equal(t, cache.Pending, p.Snapshot().Segments[0].Status)
}

func TestStoreErrorsDoNotFailRun(t *testing.T) {
	store := &mapStore{putErr: errors.New("disk full"), getErr: errors.New("unreadable")}
	p := New(&fakeTranslator{}, store, (&recorder{}).options())

	res, err := p.Translate(context.Background(), "art", fourParagraphs)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Translated)
	assert.Equal(t, 9, store.puts, "initial list plus two writes per segment")
}

func TestNoArticle(t *testing.T) {
	p := New(&fakeTranslator{}, newMemory(t), Options{})
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoArticle)
	_, err = p.Retry(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoArticle)
	_, err = p.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoArticle)
}

func TestStaleRunIsSuppressed(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{gate: make(chan struct{}), started: make(chan string, 1)}
	rec := &recorder{}
	p := New(tr, newMemory(t), rec.options())
	require.NoError(t, p.Open(ctx, "old", fourParagraphs))

	done := make(chan Result, 1)
	go func() {
		res, err := p.Run(ctx)
		assert.NoError(t, err)
		done <- res
	}()

	require.Equal(t, "First paragraph here.", <-tr.started)

	tr.mu.Lock()
	tr.started = nil
	tr.mu.Unlock()

	other := "Another article entirely."
	require.NoError(t, p.Open(ctx, "new", other))
	before := p.Snapshot()
	updates := rec.updateCount()

	close(tr.gate)
	res := <-done

	assert.True(t, res.Stale)
	assert.Zero(t, res.Translated)
	assert.Equal(t, before, p.Snapshot(), "stale result changes nothing")
	assert.Equal(t, updates, rec.updateCount(), "stale result is not announced")
	assert.Equal(t, 1, tr.callCount())
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{}
	tr.setErr("Third paragraph here.", errors.New("bad gateway"))
	p := New(tr, newMemory(t), (&recorder{}).options())

	_, err := p.Translate(ctx, "art", fourParagraphs)
	require.NoError(t, err)
	require.Equal(t, cache.Failed, p.Snapshot().Segments[2].Status)

	seg, err := p.Retry(ctx, 2)
	assert.Error(t, err, "still failing")
	assert.Equal(t, cache.Failed, seg.Status)

	tr.setErr("Third paragraph here.", nil)
	seg, err = p.Retry(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, cache.Done, seg.Status)
	assert.Equal(t, "fr:Third paragraph here.", seg.Translation)

	calls := tr.callCount()
	seg, err = p.Retry(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, cache.Done, seg.Status)
	assert.Equal(t, calls, tr.callCount(), "retrying a done segment is a no-op")

	_, err = p.Retry(ctx, 4)
	assert.ErrorIs(t, err, ErrIndex)
	_, err = p.Retry(ctx, -1)
	assert.ErrorIs(t, err, ErrIndex)
}

func TestRetryAfterReopenIsStale(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{}
	tr.setErr("Second paragraph here.", errors.New("boom"))
	p := New(tr, newMemory(t), (&recorder{}).options())
	_, err := p.Translate(ctx, "art", fourParagraphs)
	require.NoError(t, err)

	tr.mu.Lock()
	tr.gate = make(chan struct{})
	tr.started = make(chan string, 1)
	tr.mu.Unlock()

	errc := make(chan error, 1)
	go func() {
		_, err := p.Retry(ctx, 1)
		errc <- err
	}()
	<-tr.started

	require.NoError(t, p.Open(ctx, "other", "Different text."))
	before := p.Snapshot()
	close(tr.gate)

	assert.ErrorIs(t, <-errc, ErrStale)
	assert.Equal(t, before, p.Snapshot())
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{}
	store := newMemory(t)
	p := New(tr, store, (&recorder{}).options())
	_, err := p.Translate(ctx, "art", fourParagraphs)
	require.NoError(t, err)
	require.Equal(t, 4, tr.callCount())

	res, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Translated)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, 8, tr.callCount())
}

func TestRefreshDiscardsInFlightResult(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{gate: make(chan struct{}), started: make(chan string, 1)}
	store := &mapStore{}
	p := New(tr, store, (&recorder{}).options())
	require.NoError(t, p.Open(ctx, "art", fourParagraphs))

	done := make(chan Result, 1)
	go func() {
		res, err := p.Run(ctx)
		assert.NoError(t, err)
		done <- res
	}()
	require.Equal(t, "First paragraph here.", <-tr.started)

	// The old call stays blocked; the refreshed run goes straight through.
	tr.mu.Lock()
	oldGate := tr.gate
	tr.gate, tr.started = nil, nil
	tr.mu.Unlock()

	res, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Translated)
	fresh := p.Snapshot()

	close(oldGate)
	old := <-done
	assert.True(t, old.Stale)
	assert.Zero(t, old.Translated)

	assert.Equal(t, fresh, p.Snapshot(), "old result changes nothing")
	assert.Equal(t, []cache.Status{cache.Done, cache.Done, cache.Done, cache.Done}, statuses(fresh.Segments))
	assert.Equal(t, 5, tr.callCount())

	key := cache.Key{ArticleID: "art", Signature: segmenter.Signature(fourParagraphs)}
	stored, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fresh.Segments, stored)
}

// holdingStore blocks the first Put whose segments satisfy hold until
// release is closed.
type holdingStore struct {
	*mapStore
	hold    func([]cache.Segment) bool
	held    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (h *holdingStore) Put(ctx context.Context, k cache.Key, s []cache.Segment) error {
	matched := false
	if h.hold(s) {
		h.once.Do(func() { matched = true })
	}
	if matched {
		close(h.held)
		<-h.release
	}
	return h.mapStore.Put(ctx, k, s)
}

func TestConcurrentRunAndRetryKeepStoreCurrent(t *testing.T) {
	ctx := context.Background()
	text := "First paragraph here.\n\nSecond paragraph here."
	key := cache.Key{ArticleID: "art", Signature: segmenter.Signature(text)}

	store := &holdingStore{
		mapStore: &mapStore{entries: map[cache.Key][]cache.Segment{
			key: {
				{ID: "art-0", Original: "First paragraph here.", Status: cache.Pending},
				{ID: "art-1", Original: "Second paragraph here.", Status: cache.Failed, Error: "boom"},
			},
		}},
		hold: func(s []cache.Segment) bool {
			return len(s) == 2 && s[0].Status == cache.Done && s[1].Status == cache.InFlight
		},
		held:    make(chan struct{}),
		release: make(chan struct{}),
	}

	gates := map[string]chan struct{}{
		"First paragraph here.":  make(chan struct{}),
		"Second paragraph here.": make(chan struct{}),
	}
	started := make(chan string, 2)
	var calls sync.WaitGroup
	tr := translate.Func(func(_ context.Context, text, lang string) (string, error) {
		started <- text
		<-gates[text]
		return lang + ":" + text, nil
	})

	p := New(tr, store, (&recorder{}).options())
	require.NoError(t, p.Open(ctx, "art", text))

	calls.Add(2)
	go func() {
		defer calls.Done()
		_, err := p.Run(ctx)
		assert.NoError(t, err)
	}()
	require.Equal(t, "First paragraph here.", <-started)

	go func() {
		defer calls.Done()
		_, err := p.Retry(ctx, 1)
		assert.NoError(t, err)
	}()
	require.Equal(t, "Second paragraph here.", <-started)

	// The run's write of segment 0 is held while the retry finishes.
	close(gates["First paragraph here."])
	<-store.held
	close(gates["Second paragraph here."])
	require.Eventually(t, func() bool {
		return p.Snapshot().Segments[1].Status == cache.Done
	}, time.Second, time.Millisecond)

	close(store.release)
	calls.Wait()

	live := p.Snapshot().Segments
	assert.Equal(t, []cache.Status{cache.Done, cache.Done}, statuses(live))
	stored, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, live, stored)

	// Reopening from the store needs no further calls.
	var recalls int
	again := New(translate.Func(func(context.Context, string, string) (string, error) {
		recalls++
		return "", nil
	}), store.mapStore, (&recorder{}).options())
	res, err := again.Translate(ctx, "art", text)
	require.NoError(t, err)
	assert.Zero(t, recalls)
	assert.Equal(t, 2, res.Skipped)
}

func TestPersistDropsSupersededWrites(t *testing.T) {
	ctx := context.Background()
	store := &mapStore{}
	p := New(&fakeTranslator{}, store, Options{})
	key := cache.Key{ArticleID: "art", Signature: "sig"}

	newer := []cache.Segment{{ID: "art-0", Status: cache.Done, Translation: "fr"}}
	older := []cache.Segment{{ID: "art-0", Status: cache.InFlight}}

	p.persist(ctx, write{seq: 2, key: key, segs: newer})
	p.persist(ctx, write{seq: 1, key: key, segs: older})

	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newer, got)
	assert.Equal(t, 1, store.puts)

	// Ordering is per article.
	other := cache.Key{ArticleID: "other", Signature: "sig"}
	p.persist(ctx, write{seq: 1, key: other, segs: older})
	_, ok, err = store.Get(ctx, other)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &fakeTranslator{}
	opts := (&recorder{}).options()
	opts.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	p := New(tr, newMemory(t), opts)

	_, err := p.Translate(ctx, "art", fourParagraphs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tr.callCount())

	st := p.Snapshot()
	assert.Equal(t, []cache.Status{cache.Done, cache.Pending, cache.Pending, cache.Pending}, statuses(st.Segments))
	assert.False(t, st.Running)
}

func TestDefaultSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), 0))
}

func TestTargetWords(t *testing.T) {
	long := strings.Repeat("One two three four five. ", 10)
	p := New(&fakeTranslator{}, newMemory(t), Options{TargetWords: 10})
	require.NoError(t, p.Open(context.Background(), "art", long))
	assert.Len(t, p.Snapshot().Segments, 5)
}
