package highlight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAnalysis(t *testing.T) {
	a := Analysis{
		Vocabulary: []VocabularyItem{
			{Word: "threat", Pronunciation: "/θret/", Definition: "a danger"},
			{Word: "  "},
		},
		Collocations: []CollocationItem{
			{Phrase: "pose a threat", Meaning: "be dangerous", UsageTag: "formal"},
		},
		SentencePatterns: []PatternItem{
			{
				Skeleton:       "not only ... but also ...",
				Explanation:    "adds emphasis",
				SourceSentence: "He is not only smart but also kind.",
				Anchors:        []string{"not only", " ", "but also"},
			},
			{Skeleton: "orphan"},
		},
	}

	hs := FromAnalysis(a)
	require.Len(t, hs, 3)

	assert.Equal(t, "vocab-0", hs[0].ID)
	assert.Equal(t, Vocabulary, hs[0].Category)
	assert.Equal(t, "/θret/ - a danger", hs[0].Explanation)
	assert.Empty(t, hs[0].Anchors)

	assert.Equal(t, "coll-0", hs[1].ID)
	assert.Equal(t, Collocation, hs[1].Category)
	assert.Equal(t, "formal", hs[1].Translation)

	assert.Equal(t, "pattern-0", hs[2].ID)
	assert.Equal(t, Grammar, hs[2].Category)
	assert.Equal(t, []string{"not only", "but also"}, hs[2].Anchors)
	assert.Equal(t, "not only ... but also ...: adds emphasis", hs[2].Explanation)
}

func TestParseList(t *testing.T) {
	data := []byte(`
- id: g1
  text: not only smart but also kind
  category: grammar
  anchors: [not only, but also]
- text: kind
- text: "   "
`)
	hs, err := Parse(data, ".yaml")
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, "g1", hs[0].ID)
	assert.Equal(t, Vocabulary, hs[1].Category)
	assert.NotEmpty(t, hs[1].ID)
}

func TestParseAnalysisObject(t *testing.T) {
	data := []byte(`{"summary":"s","vocabulary":[{"word":"resilient","definition":"tough"}]}`)
	hs, err := Parse(data, ".json")
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "vocab-0", hs[0].ID)
}

func TestParseUnknownCategory(t *testing.T) {
	_, err := Parse([]byte(`[{"text":"x","category":"idiom"}]`), ".json")
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hl.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"v","text":"word","category":"vocabulary"}]`), 0644))

	hs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "word", hs[0].Text)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
