package tagger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/highlight"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/matcher"
)

type run struct {
	text  string
	kind  Kind
	owner string
}

func runs(segs []Segment) []run {
	out := make([]run, 0, len(segs))
	for _, s := range segs {
		out = append(out, run{s.Text, s.Kind, s.HighlightID})
	}
	return out
}

func join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestTagQuickBrownFox(t *testing.T) {
	hs := []highlight.Highlight{
		{ID: "g", Text: "quick brown", Category: highlight.Grammar},
		{ID: "v", Text: "fox", Category: highlight.Vocabulary},
	}
	got := Tag("The quick brown fox", hs)
	assert.Equal(t, []run{
		{"The ", Plain, ""},
		{"quick brown", Grammar, "g"},
		{" ", Plain, ""},
		{"fox", Vocabulary, "v"},
	}, runs(got))

	require.NotNil(t, got[1].Highlight)
	assert.Equal(t, "quick brown", got[1].Highlight.Text)
	assert.Nil(t, got[0].Highlight)
	assert.Equal(t, 4, got[1].Start)
	assert.Equal(t, 15, got[1].End)
}

func TestTagNoHighlights(t *testing.T) {
	for _, text := range []string{"", "x", "A whole article.\n\nWith paragraphs."} {
		got := Tag(text, nil)
		require.Len(t, got, 1)
		assert.Equal(t, Plain, got[0].Kind)
		assert.Equal(t, text, got[0].Text)
	}
}

func TestTagEmptyTextWithHighlights(t *testing.T) {
	got := Tag("", []highlight.Highlight{{ID: "v", Text: "x", Category: highlight.Vocabulary}})
	assert.Equal(t, []run{{"", Plain, ""}}, runs(got))
}

func TestTagGrammarBeatsVocabularyAndCollocation(t *testing.T) {
	hs := []highlight.Highlight{
		{ID: "v", Text: "threat", Category: highlight.Vocabulary},
		{ID: "c", Text: "a serious threat", Category: highlight.Collocation},
		{ID: "g", Text: "pose a serious threat", Category: highlight.Grammar},
	}
	got := Tag("Floods pose a serious threat.", hs)
	assert.Equal(t, []run{
		{"Floods ", Plain, ""},
		{"pose a serious threat", Grammar, "g"},
		{".", Plain, ""},
	}, runs(got))
}

func TestTagVocabularyBeatsCollocation(t *testing.T) {
	hs := []highlight.Highlight{
		{ID: "c", Text: "pose a threat", Category: highlight.Collocation},
		{ID: "v", Text: "threat", Category: highlight.Vocabulary},
	}
	got := Tag("they pose a threat", hs)
	assert.Equal(t, []run{
		{"they ", Plain, ""},
		{"pose a ", Collocation, "c"},
		{"threat", Vocabulary, "v"},
	}, runs(got))
}

func TestTagAnchorsStayInsideParent(t *testing.T) {
	hs := []highlight.Highlight{
		{
			ID:       "p",
			Text:     "not only smart but also kind",
			Category: highlight.Grammar,
			Anchors:  []string{"not only", "but also", "missing"},
		},
		{ID: "v", Text: "smart", Category: highlight.Vocabulary},
	}
	text := "He is not only smart but also kind. She is not only late."
	got := Tag(text, hs)
	assert.Equal(t, []run{
		{"He is ", Plain, ""},
		{"not only", GrammarAnchor, "p"},
		{" smart ", Grammar, "p"},
		{"but also", GrammarAnchor, "p"},
		{" kind", Grammar, "p"},
		{". She is not only late.", Plain, ""},
	}, runs(got))
}

func TestTagAnchorCrossingParentEdgeIsIgnored(t *testing.T) {
	hs := []highlight.Highlight{
		{ID: "p", Text: "only smart", Category: highlight.Grammar, Anchors: []string{"not only", "smart"}},
	}
	got := Tag("not only smart", hs)
	assert.Equal(t, []run{
		{"not ", Plain, ""},
		{"only ", Grammar, "p"},
		{"smart", GrammarAnchor, "p"},
	}, runs(got))
}

func TestTagAnchorNeverClaimsOtherGrammar(t *testing.T) {
	hs := []highlight.Highlight{
		{ID: "a", Text: "first clause", Category: highlight.Grammar, Anchors: []string{"second"}},
		{ID: "b", Text: "second clause", Category: highlight.Grammar},
	}
	got := Tag("first clause, second clause", hs)
	for _, s := range got {
		assert.NotEqual(t, GrammarAnchor, s.Kind, "segment %q", s.Text)
	}
}

// Overlapping grammar highlights resolve by longest match, then by
// declaration order. The previous pass-based tagger let a later, shorter
// match overwrite the overlap; these cases pin the difference.
func TestTagGrammarOverlapLongestWins(t *testing.T) {
	hs := []highlight.Highlight{
		{ID: "long", Text: "a b c", Category: highlight.Grammar},
		{ID: "short", Text: "c d", Category: highlight.Grammar},
	}
	got := runs(Tag("a b c d", hs))

	assert.Equal(t, []run{
		{"a b c", Grammar, "long"},
		{" d", Grammar, "short"},
	}, got)

	lastWriterWins := []run{
		{"a b ", Grammar, "long"},
		{"c d", Grammar, "short"},
	}
	assert.NotEqual(t, lastWriterWins, got)
}

func TestTagGrammarOverlapEqualLengthEarliestWins(t *testing.T) {
	hs := []highlight.Highlight{
		{ID: "first", Text: "a b", Category: highlight.Grammar},
		{ID: "second", Text: "b c", Category: highlight.Grammar},
	}
	got := runs(Tag("a b c", hs))

	assert.Equal(t, []run{
		{"a b", Grammar, "first"},
		{" c", Grammar, "second"},
	}, got)

	lastWriterWins := []run{
		{"a ", Grammar, "first"},
		{"b c", Grammar, "second"},
	}
	assert.NotEqual(t, lastWriterWins, got)
}

func TestTagOrderIndependentAcrossCategories(t *testing.T) {
	hs := []highlight.Highlight{
		{ID: "v", Text: "brown", Category: highlight.Vocabulary},
		{ID: "c", Text: "brown fox", Category: highlight.Collocation},
		{ID: "g", Text: "quick brown", Category: highlight.Grammar},
	}
	reversed := []highlight.Highlight{hs[2], hs[1], hs[0]}

	text := "The quick brown fox"
	assert.Equal(t, runs(Tag(text, hs)), runs(Tag(text, reversed)))
}

func TestTagSkipsEmptyAndUnknown(t *testing.T) {
	hs := []highlight.Highlight{
		{ID: "e", Text: "   ", Category: highlight.Grammar},
		{ID: "u", Text: "fox", Category: "idiom"},
	}
	got := Tag("The fox", hs)
	assert.Equal(t, []run{{"The fox", Plain, ""}}, runs(got))
}

func TestTagMultibyte(t *testing.T) {
	hs := []highlight.Highlight{{ID: "v", Text: "café", Category: highlight.Vocabulary}}
	got := Tag("un café noir — très bon", hs)
	assert.Equal(t, []run{
		{"un ", Plain, ""},
		{"café", Vocabulary, "v"},
		{" noir — très bon", Plain, ""},
	}, runs(got))
}

func TestTagInvariants(t *testing.T) {
	text := "Not only does the rain pose a threat to crops, but it also\n" +
		"poses a threat to roads. The threat is real; THREATS multiply (sometimes)."
	hs := []highlight.Highlight{
		{ID: "g1", Text: "Not only does the rain pose a threat", Category: highlight.Grammar, Anchors: []string{"not only", "does"}},
		{ID: "g2", Text: "but it also poses", Category: highlight.Grammar, Anchors: []string{"but", "also"}},
		{ID: "g3", Text: "threat to crops, but", Category: highlight.Grammar},
		{ID: "v1", Text: "threat", Category: highlight.Vocabulary},
		{ID: "v2", Text: "(sometimes)", Category: highlight.Vocabulary},
		{ID: "c1", Text: "pose a threat", Category: highlight.Collocation},
		{ID: "c2", Text: "a threat to roads", Category: highlight.Collocation},
	}
	segs := Tag(text, hs)

	assert.Equal(t, text, join(segs))

	byID := map[string]highlight.Highlight{}
	for _, h := range hs {
		byID[h.ID] = h
	}

	pos := 0
	for i, s := range segs {
		assert.Equal(t, pos, s.Start)
		assert.Equal(t, s.Start+len(s.Text), s.End)
		pos = s.End

		if i > 0 {
			prev := segs[i-1]
			assert.False(t, prev.Kind == s.Kind && prev.HighlightID == s.HighlightID,
				"adjacent segments %q and %q should have merged", prev.Text, s.Text)
		}
		if s.Kind == GrammarAnchor {
			assert.Equal(t, highlight.Grammar, byID[s.HighlightID].Category)
		}
		if s.Kind == Plain {
			assert.Empty(t, s.HighlightID)
		}
	}

	kindAt := make([]Kind, len(text))
	for _, s := range segs {
		for p := s.Start; p < s.End; p++ {
			kindAt[p] = s.Kind
		}
	}

	// Grammar territory is never handed to vocabulary or collocation.
	for _, h := range hs {
		if h.Category != highlight.Grammar {
			continue
		}
		for _, loc := range matcher.MustNew(h.Text, matcher.Loose).FindAll(text) {
			for p := loc[0]; p < loc[1]; p++ {
				assert.Contains(t, []Kind{Grammar, GrammarAnchor}, kindAt[p], "byte %d of %q", p, h.ID)
			}
		}
	}

	var anchors []string
	for _, s := range segs {
		if s.Kind == GrammarAnchor {
			anchors = append(anchors, strings.ToLower(s.Text))
		}
	}
	assert.Equal(t, []string{"not only", "does", "also"}, anchors)
}
