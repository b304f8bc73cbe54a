package translate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/langmeta"
)

// DefaultSystemPrompt asks for a plain translation of one article chunk.
// {{targetLang}} is replaced with the target language's name.
const DefaultSystemPrompt = `You are a professional translator helping English learners read news and feature articles.

IMPORTANT TRANSLATION PRINCIPLES:
- Translate into natural, fluent {{targetLang}}, not word-for-word
- Keep the meaning, tone and register of the original
- Keep names, numbers and quoted titles accurate
- Do not summarise, explain or add notes

TECHNICAL REQUIREMENTS:
- Return ONLY the translated text for the passage you are given
- No quotes around the result, no markdown, no "Translation:" label`

// Completer is the subset of llm.Client the translator uses.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLM translates through a language model.
type LLM struct {
	client Completer
	prompt string
}

// NewLLM returns a model-backed translator. An empty prompt selects
// DefaultSystemPrompt.
func NewLLM(client Completer, prompt string) *LLM {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSystemPrompt
	}
	return &LLM{client: client, prompt: prompt}
}

func (l *LLM) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	system := strings.ReplaceAll(l.prompt, "{{targetLang}}", langmeta.PromptName(targetLang))
	user := fmt.Sprintf("Translate the following passage into %s.\n\nText:\n%s\n\nTranslation:",
		langmeta.PromptName(targetLang), text)

	out, err := l.client.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}

	out = cleanReply(out)
	if out == "" {
		return "", ErrEmpty
	}
	return out, nil
}

var markdownCodeBlock = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// cleanReply strips wrappers models like to add around the translation.
func cleanReply(s string) string {
	s = strings.TrimSpace(s)
	if m := markdownCodeBlock.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if i := strings.Index(s, "Translation:"); i >= 0 {
		s = s[i+len("Translation:"):]
	}
	return strings.TrimSpace(s)
}
