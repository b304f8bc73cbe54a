// Package matcher finds case-insensitive occurrences of literal phrases in
// free text, tolerating whitespace differences and optionally requiring
// word boundaries.
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode selects how a match may sit against its neighbours.
type Mode int

const (
	// Loose accepts a match anywhere, even inside a longer word.
	Loose Mode = iota
	// WordBoundary rejects a match touching a word character on either side.
	WordBoundary
)

func (m Mode) String() string {
	if m == WordBoundary {
		return "word-boundary"
	}
	return "loose"
}

// ErrMatching is wrapped by every pattern construction failure.
var ErrMatching = errors.New("matching error")

// Error reports a phrase that could not be turned into a pattern.
type Error struct {
	Phrase string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: phrase %q: %v", ErrMatching, e.Phrase, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrMatching, e.Err} }

// Matcher is a compiled phrase. The zero value matches nothing.
type Matcher struct {
	phrase string
	mode   Mode
	re     *regexp.Regexp
}

// New compiles phrase. Metacharacters are taken literally and any run of
// whitespace in the phrase matches any run of whitespace in the text.
// A phrase that trims to empty yields a matcher with no matches.
func New(phrase string, mode Mode) (*Matcher, error) {
	m := &Matcher{phrase: phrase, mode: mode}

	words := strings.Fields(phrase)
	if len(words) == 0 {
		return m, nil
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}

	re, err := regexp.Compile(`(?i)` + strings.Join(words, `[\s\p{Zs}]+`))
	if err != nil {
		return nil, &Error{Phrase: phrase, Err: err}
	}
	m.re = re
	return m, nil
}

// MustNew is like New but panics on error.
func MustNew(phrase string, mode Mode) *Matcher {
	m, err := New(phrase, mode)
	if err != nil {
		panic(err)
	}
	return m
}

// Phrase returns the phrase the matcher was built from.
func (m *Matcher) Phrase() string { return m.phrase }

// Mode returns the boundary mode.
func (m *Matcher) Mode() Mode { return m.mode }

// FindAll returns the byte ranges [start, end) of all non-overlapping
// matches in text, left to right.
func (m *Matcher) FindAll(text string) [][2]int {
	if m == nil || m.re == nil || text == "" {
		return nil
	}
	if m.mode == Loose {
		locs := m.re.FindAllStringIndex(text, -1)
		out := make([][2]int, 0, len(locs))
		for _, loc := range locs {
			if loc[1] > loc[0] {
				out = append(out, [2]int{loc[0], loc[1]})
			}
		}
		return out
	}

	var out [][2]int
	pos := 0
	for pos < len(text) {
		loc := m.re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && isolated(text, start, end) {
			out = append(out, [2]int{start, end})
			pos = end
			continue
		}
		// Retry one rune past the rejected start so an overlapping
		// candidate further right still gets a chance.
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			size = 1
		}
		pos = start + size
	}
	return out
}

// Match reports whether text contains at least one occurrence.
func (m *Matcher) Match(text string) bool {
	return len(m.FindAll(text)) > 0
}

func isolated(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
