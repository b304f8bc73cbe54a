package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/highlight"
	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/langmeta"
)

// DefaultMaxChars bounds how much of an article is sent for analysis.
const DefaultMaxChars = 6000

// Completer is the subset of llm.Client the annotator uses.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLM asks a language model for an analysis of the article.
type LLM struct {
	client   Completer
	lang     string
	maxChars int
}

// NewLLM returns a model-backed annotator. Explanations are written in
// lang; maxChars <= 0 selects DefaultMaxChars.
func NewLLM(client Completer, lang string, maxChars int) *LLM {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if lang == "" {
		lang = "en"
	}
	return &LLM{client: client, lang: lang, maxChars: maxChars}
}

func (l *LLM) Analyze(ctx context.Context, text string) ([]highlight.Highlight, error) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinChars {
		return nil, ErrTooShort
	}

	counts := Targets(len(strings.Fields(text)))
	system := systemPrompt(langmeta.PromptName(l.lang), counts)
	user := "Analyze this WHOLE article carefully:\n\n" + headRunes(text, l.maxChars)

	reply, err := l.client.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(reply)
	if err != nil {
		return nil, err
	}

	var a highlight.Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}

	return highlight.FromAnalysis(Verify(a, text)), nil
}

// Verify drops analysis items that do not hold against the text: vocabulary
// absent from the article and anchors absent from their source sentence.
func Verify(a highlight.Analysis, text string) highlight.Analysis {
	lower := strings.ToLower(text)

	vocab := a.Vocabulary[:0:0]
	for _, v := range a.Vocabulary {
		if w := strings.TrimSpace(v.Word); w != "" && strings.Contains(lower, strings.ToLower(w)) {
			vocab = append(vocab, v)
		}
	}
	a.Vocabulary = vocab

	for i, p := range a.SentencePatterns {
		source := strings.ToLower(p.SourceSentence)
		var anchors []string
		for _, an := range p.Anchors {
			if an = strings.TrimSpace(an); an != "" && strings.Contains(source, strings.ToLower(an)) {
				anchors = append(anchors, an)
			}
		}
		a.SentencePatterns[i].Anchors = anchors
	}
	return a
}

func systemPrompt(lang string, c Counts) string {
	return fmt.Sprintf(`You are an expert ESL teacher. Analyse an English article to help advanced learners with reading, vocabulary and writing.

Write every explanation, definition, meaning and the summary in %[1]s.

Cover the whole article, spreading items across its beginning, middle and end.

Extract at least:
- %[2]d vocabulary words (challenging or academic; the "word" field holds the word only, exactly as it appears)
- %[3]d collocations (fixed, native-sounding combinations such as "pose a threat" or "in stark contrast")
- %[4]d sentence patterns (reusable grammatical frames such as "Not only ... but also ...", not merely long sentences)

For each sentence pattern list its anchors: the fixed strings of the frame, e.g. ["Not only", "but also"]. Anchors must appear verbatim in source_sentence.

Reply with ONLY a JSON object of this shape:
{
  "summary": "20 to 30 words",
  "vocabulary": [{"word": "", "pronunciation": "IPA", "definition": ""}],
  "collocations": [{"phrase": "", "meaning": "", "usage_tag": "Formal|Idiom|Business|...", "original_sentence": ""}],
  "sentence_patterns": [{"skeleton": "", "explanation": "", "source_sentence": "", "new_example": "", "anchors": [""]}]
}`, lang, c.Vocabulary, c.Collocations, c.Patterns)
}

// extractJSON finds the first complete JSON object in a string.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}

func headRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for ; n > 0; n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}
