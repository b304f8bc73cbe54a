package annotate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/highlight"
)

// KeywordExplanation is attached to every keyword highlight.
const KeywordExplanation = "Keyword from the article"

var wordPattern = regexp.MustCompile(`[A-Za-z']+`)

// Keywords picks the most frequent long words as vocabulary highlights.
// It needs no network and never fails.
type Keywords struct {
	// Limit is the number of words returned. Default 12.
	Limit int
	// MinLen is the shortest word considered, exclusive. Default 4.
	MinLen int
}

func (k Keywords) Analyze(_ context.Context, text string) ([]highlight.Highlight, error) {
	limit := k.Limit
	if limit <= 0 {
		limit = 12
	}
	minLen := k.MinLen
	if minLen <= 0 {
		minLen = 4
	}

	freq := make(map[string]int)
	var order []string
	for _, w := range wordPattern.FindAllString(text, -1) {
		w = strings.ToLower(strings.Trim(w, "'"))
		if len(w) <= minLen {
			continue
		}
		if freq[w] == 0 {
			order = append(order, w)
		}
		freq[w]++
	}

	// Most frequent first; ties keep first appearance.
	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })
	if len(order) > limit {
		order = order[:limit]
	}

	out := make([]highlight.Highlight, 0, len(order))
	for i, w := range order {
		out = append(out, highlight.Highlight{
			ID:          fmt.Sprintf("keyword-%d", i),
			Text:        w,
			Category:    highlight.Vocabulary,
			Explanation: KeywordExplanation,
		})
	}
	return out, nil
}
