// Package translate turns article chunks into a target language through
// one or more translation backends, and classifies their failures.
package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ZhizhiJingNATSUME/englishlearnershabi2/llm"
)

// Translator translates one chunk of text.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Func adapts a function to Translator.
type Func func(ctx context.Context, text, targetLang string) (string, error)

func (f Func) Translate(ctx context.Context, text, targetLang string) (string, error) {
	return f(ctx, text, targetLang)
}

// ErrRateLimited marks failures caused by the backend's quota.
var ErrRateLimited = errors.New("rate limited")

// ErrEmpty is returned when a backend answers with no usable text.
var ErrEmpty = errors.New("empty translation")

// status429 matches 429 as a whole number, not inside ids or byte counts.
var status429 = regexp.MustCompile(`\b429\b`)

// IsRateLimited reports whether err signals that the backend refused the
// call for quota reasons: a 429 status, ErrRateLimited, or a message that
// says so.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if llm.StatusCode(err) == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return status429.MatchString(msg) ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

// ---------------------------------------------------------------------------
// Fallback chain
// ---------------------------------------------------------------------------

// Chain tries each translator in order and returns the first success.
type Chain []Translator

// NewChain drops nil entries.
func NewChain(ts ...Translator) Chain {
	var c Chain
	for _, t := range ts {
		if t != nil {
			c = append(c, t)
		}
	}
	return c
}

// Translate returns the first successful result. When every translator
// fails the errors are joined, so a quota failure anywhere in the chain
// still classifies as rate limited.
func (c Chain) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if len(c) == 0 {
		return "", fmt.Errorf("no translator configured")
	}

	var errs []error
	for _, t := range c {
		out, err := t.Translate(ctx, text, targetLang)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sameText reports whether a backend echoed its input instead of translating.
func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
