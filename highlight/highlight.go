// Package highlight defines learning annotations over an article body and
// the mapping from analyzer output to annotations.
package highlight

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Category classifies a highlight.
type Category string

const (
	Vocabulary  Category = "vocabulary"
	Collocation Category = "collocation"
	Grammar     Category = "grammar"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case Vocabulary, Collocation, Grammar:
		return true
	}
	return false
}

// Highlight is one annotation. Every occurrence of Text in the article is
// tagged. Anchors are only meaningful for grammar highlights.
type Highlight struct {
	ID          string   `json:"id" yaml:"id"`
	Text        string   `json:"text" yaml:"text"`
	Category    Category `json:"category" yaml:"category"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Translation string   `json:"translation,omitempty" yaml:"translation,omitempty"`
	Anchors     []string `json:"anchors,omitempty" yaml:"anchors,omitempty"`
}

// Empty reports whether the highlight has no usable surface text.
func (h Highlight) Empty() bool {
	return strings.TrimSpace(h.Text) == ""
}

// ---------------------------------------------------------------------------
// Analysis mapping
// ---------------------------------------------------------------------------

// Analysis is the structured result an annotator model returns.
type Analysis struct {
	Summary          string            `json:"summary" yaml:"summary"`
	Vocabulary       []VocabularyItem  `json:"vocabulary" yaml:"vocabulary"`
	Collocations     []CollocationItem `json:"collocations" yaml:"collocations"`
	SentencePatterns []PatternItem     `json:"sentence_patterns" yaml:"sentence_patterns"`
}

type VocabularyItem struct {
	Word          string `json:"word" yaml:"word"`
	Pronunciation string `json:"pronunciation" yaml:"pronunciation"`
	Definition    string `json:"definition" yaml:"definition"`
}

type CollocationItem struct {
	Phrase           string `json:"phrase" yaml:"phrase"`
	Meaning          string `json:"meaning" yaml:"meaning"`
	UsageTag         string `json:"usage_tag" yaml:"usage_tag"`
	OriginalSentence string `json:"original_sentence" yaml:"original_sentence"`
}

type PatternItem struct {
	Skeleton       string   `json:"skeleton" yaml:"skeleton"`
	Explanation    string   `json:"explanation" yaml:"explanation"`
	SourceSentence string   `json:"source_sentence" yaml:"source_sentence"`
	NewExample     string   `json:"new_example" yaml:"new_example"`
	Anchors        []string `json:"anchors" yaml:"anchors"`
}

// FromAnalysis converts an analysis into highlights. Ids are positional
// (vocab-N, coll-N, pattern-N) so they stay stable for one analysis.
// Items without surface text are dropped.
func FromAnalysis(a Analysis) []Highlight {
	var out []Highlight

	for i, v := range a.Vocabulary {
		word := strings.TrimSpace(v.Word)
		if word == "" {
			continue
		}
		explanation := strings.TrimSpace(v.Definition)
		if p := strings.TrimSpace(v.Pronunciation); p != "" {
			explanation = strings.TrimSpace(p + " - " + explanation)
		}
		out = append(out, Highlight{
			ID:          fmt.Sprintf("vocab-%d", i),
			Text:        word,
			Category:    Vocabulary,
			Explanation: explanation,
		})
	}

	for i, c := range a.Collocations {
		phrase := strings.TrimSpace(c.Phrase)
		if phrase == "" {
			continue
		}
		out = append(out, Highlight{
			ID:          fmt.Sprintf("coll-%d", i),
			Text:        phrase,
			Category:    Collocation,
			Explanation: strings.TrimSpace(c.Meaning),
			Translation: strings.TrimSpace(c.UsageTag),
		})
	}

	for i, p := range a.SentencePatterns {
		sentence := strings.TrimSpace(p.SourceSentence)
		if sentence == "" {
			continue
		}
		var anchors []string
		for _, a := range p.Anchors {
			if a = strings.TrimSpace(a); a != "" {
				anchors = append(anchors, a)
			}
		}
		explanation := strings.TrimSpace(p.Explanation)
		if s := strings.TrimSpace(p.Skeleton); s != "" {
			explanation = strings.TrimSpace(s + ": " + explanation)
		}
		out = append(out, Highlight{
			ID:          fmt.Sprintf("pattern-%d", i),
			Text:        sentence,
			Category:    Grammar,
			Explanation: explanation,
			Anchors:     anchors,
		})
	}

	return out
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// LoadFile reads a highlight set from a .json, .yaml or .yml file.
// The file may hold either a list of highlights or an analysis object.
// Highlights without an id get a random one.
func LoadFile(path string) ([]Highlight, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	hs, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return hs, nil
}

// Parse decodes highlights from data. ext selects the decoder (".json",
// ".yaml", ".yml"); anything else is tried as YAML, which also accepts JSON.
func Parse(data []byte, ext string) ([]Highlight, error) {
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(ext, ".json") {
		unmarshal = json.Unmarshal
	}

	var list []Highlight
	if err := unmarshal(data, &list); err != nil {
		var a Analysis
		if err2 := unmarshal(data, &a); err2 != nil {
			return nil, err
		}
		list = FromAnalysis(a)
	}

	out := make([]Highlight, 0, len(list))
	for _, h := range list {
		if h.Empty() {
			continue
		}
		if h.Category == "" {
			h.Category = Vocabulary
		}
		if !h.Category.Valid() {
			return nil, fmt.Errorf("highlight %q: unknown category %q", h.Text, h.Category)
		}
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		out = append(out, h)
	}
	return out, nil
}
