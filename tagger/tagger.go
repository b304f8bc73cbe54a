// Package tagger resolves overlapping highlights over an article body into
// a flat, ordered sequence of typed text runs.
//
// Every byte of the text ends up with exactly one kind and at most one
// owning highlight. Conflicts are settled by a fixed ranking:
//
//	grammar (3) > grammar anchor (2) > vocabulary, collocation (1) > plain (0)
//
// Within a rank, vocabulary beats collocation, then the longer match wins,
// then the highlight declared first wins. Anchors are only promoted inside
// territory already owned by their parent grammar highlight.
package tagger

import (
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/highlight"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/matcher"
)

// Kind is the tag carried by a run of text.
type Kind string

const (
	Plain         Kind = "plain"
	Grammar       Kind = "grammar"
	GrammarAnchor Kind = "grammar-anchor"
	Vocabulary    Kind = "vocabulary"
	Collocation   Kind = "collocation"
)

// Rank orders kinds for conflict resolution.
func (k Kind) Rank() int {
	switch k {
	case Grammar:
		return 3
	case GrammarAnchor:
		return 2
	case Vocabulary, Collocation:
		return 1
	}
	return 0
}

// Segment is a maximal run of text sharing one kind and owner.
// Start and End are byte offsets into the tagged text.
type Segment struct {
	Text        string               `json:"text"`
	Kind        Kind                 `json:"kind"`
	HighlightID string               `json:"highlightId,omitempty"`
	Highlight   *highlight.Highlight `json:"highlight,omitempty"`
	Start       int                  `json:"start"`
	End         int                  `json:"end"`
}

// Options tunes a Tagger.
type Options struct {
	// Logger receives debug records for skipped highlights.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Tagger tags article text. It holds no state between calls.
type Tagger struct {
	log *slog.Logger
}

// New returns a Tagger.
func New(opts Options) *Tagger {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Tagger{log: log}
}

// Tag is New(Options{}).Tag.
func Tag(text string, highlights []highlight.Highlight) []Segment {
	return New(Options{}).Tag(text, highlights)
}

type candidate struct {
	start, end int
	kind       Kind
	order      int // declaration index
	owner      int // index into highlights
}

func (c candidate) length() int { return c.end - c.start }

// categoryOrder breaks ties within a rank.
func categoryOrder(k Kind) int {
	if k == Collocation {
		return 1
	}
	return 0
}

// less reports whether a outranks b.
func less(a, b candidate) bool {
	if ra, rb := a.kind.Rank(), b.kind.Rank(); ra != rb {
		return ra > rb
	}
	if ca, cb := categoryOrder(a.kind), categoryOrder(b.kind); ca != cb {
		return ca < cb
	}
	if la, lb := a.length(), b.length(); la != lb {
		return la > lb
	}
	if a.order != b.order {
		return a.order < b.order
	}
	return a.start < b.start
}

// Tag splits text into segments. The concatenation of all segment texts
// equals text. Empty text yields a single empty plain segment.
func (t *Tagger) Tag(text string, highlights []highlight.Highlight) []Segment {
	if text == "" {
		return []Segment{{Kind: Plain}}
	}

	kinds := make([]Kind, len(text))
	owners := make([]int, len(text))
	for i := range kinds {
		kinds[i] = Plain
		owners[i] = -1
	}

	// Collect and rank every match, then paint in rank order: the first
	// candidate to reach a byte keeps it.
	var cands []candidate
	for i, h := range highlights {
		if h.Empty() {
			continue
		}
		kind, mode, ok := kindFor(h.Category)
		if !ok {
			t.log.Debug("skipping highlight with unknown category",
				slog.String("id", h.ID), slog.String("category", string(h.Category)))
			continue
		}
		m, err := matcher.New(h.Text, mode)
		if err != nil {
			t.log.Debug("skipping unmatchable highlight", slog.String("id", h.ID), slog.Any("error", err))
			continue
		}
		for _, loc := range m.FindAll(text) {
			cands = append(cands, candidate{start: loc[0], end: loc[1], kind: kind, order: i, owner: i})
		}
	}
	sort.SliceStable(cands, func(a, b int) bool { return less(cands[a], cands[b]) })

	for _, c := range cands {
		for p := c.start; p < c.end; p++ {
			if owners[p] == -1 {
				kinds[p] = c.kind
				owners[p] = c.owner
			}
		}
	}

	t.promoteAnchors(text, highlights, kinds, owners)

	return build(text, highlights, kinds, owners)
}

func kindFor(c highlight.Category) (Kind, matcher.Mode, bool) {
	switch c {
	case highlight.Grammar:
		return Grammar, matcher.Loose, true
	case highlight.Vocabulary:
		return Vocabulary, matcher.WordBoundary, true
	case highlight.Collocation:
		return Collocation, matcher.Loose, true
	}
	return Plain, matcher.Loose, false
}

// promoteAnchors marks anchor occurrences that lie wholly inside their
// parent's grammar territory.
func (t *Tagger) promoteAnchors(text string, highlights []highlight.Highlight, kinds []Kind, owners []int) {
	for i, h := range highlights {
		if h.Category != highlight.Grammar || h.Empty() || len(h.Anchors) == 0 {
			continue
		}
		for _, anchor := range h.Anchors {
			m, err := matcher.New(anchor, matcher.WordBoundary)
			if err != nil {
				t.log.Debug("skipping unmatchable anchor",
					slog.String("id", h.ID), slog.String("anchor", anchor), slog.Any("error", err))
				continue
			}
			for _, loc := range m.FindAll(text) {
				start, end := loc[0], loc[1]
				if owners[start] != i || kinds[start] != Grammar {
					continue
				}
				if !ownedBy(owners[start:end], i) {
					continue
				}
				for p := start; p < end; p++ {
					kinds[p] = GrammarAnchor
				}
			}
		}
	}
}

func ownedBy(owners []int, idx int) bool {
	for _, o := range owners {
		if o != idx {
			return false
		}
	}
	return true
}

func build(text string, highlights []highlight.Highlight, kinds []Kind, owners []int) []Segment {
	var out []Segment
	start := 0
	for p := 0; p < len(text); {
		_, size := utf8.DecodeRuneInString(text[p:])
		next := p + size
		if next >= len(text) || kinds[next] != kinds[start] || owners[next] != owners[start] {
			out = append(out, segment(text, highlights, kinds[start], owners[start], start, next))
			start = next
		}
		p = next
	}
	return out
}

func segment(text string, highlights []highlight.Highlight, kind Kind, owner, start, end int) Segment {
	s := Segment{Text: text[start:end], Kind: kind, Start: start, End: end}
	if kind != Plain && owner >= 0 {
		h := highlights[owner]
		s.HighlightID = h.ID
		s.Highlight = &h
	}
	return s
}
