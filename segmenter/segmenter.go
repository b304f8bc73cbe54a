// Package segmenter splits article text into translation chunks of about a
// target number of words without splitting sentences or merging paragraphs.
package segmenter

import (
	"crypto/md5"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTargetWords is the chunk budget used when none is given.
const DefaultTargetWords = 80

// signatureSpan is the number of runes taken from each end of the text.
const signatureSpan = 64

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Split returns the chunks of text in order. targetWords <= 0 selects
// DefaultTargetWords.
//
// Sentences accumulate into a chunk; the chunk is flushed before a sentence
// that would push it over budget, as soon as it reaches the budget, and at
// the end of every paragraph. A chunk therefore exceeds the budget by at
// most one sentence, and only when that sentence alone is over budget.
func Split(text string, targetWords int) []string {
	if targetWords <= 0 {
		targetWords = DefaultTargetWords
	}

	var chunks []string
	for _, para := range Paragraphs(text) {
		var (
			cur   []string
			count int
		)
		flush := func() {
			if count > 0 {
				chunks = append(chunks, strings.Join(cur, " "))
			}
			cur, count = nil, 0
		}

		for _, sentence := range Sentences(para) {
			n := WordCount(sentence)
			if n == 0 {
				continue
			}
			if count+n > targetWords && count > 0 {
				flush()
			}
			cur = append(cur, sentence)
			count += n
			if count >= targetWords {
				flush()
			}
		}
		flush()
	}
	return chunks
}

// Paragraphs splits text on blank lines and drops empty paragraphs.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sentences splits a paragraph after sentence-terminal punctuation that is
// followed by whitespace. The terminal punctuation stays with its sentence.
func Sentences(paragraph string) []string {
	var out []string
	start := 0
	for i := 0; i < len(paragraph); {
		r, size := utf8.DecodeRuneInString(paragraph[i:])
		i += size
		if !isTerminal(r) {
			continue
		}
		// Swallow runs like "?!" or "..." and closing quotes.
		for i < len(paragraph) {
			r2, s2 := utf8.DecodeRuneInString(paragraph[i:])
			if !isTerminal(r2) && !isCloser(r2) {
				break
			}
			i += s2
		}
		if i == len(paragraph) {
			break
		}
		if r2, _ := utf8.DecodeRuneInString(paragraph[i:]); unicode.IsSpace(r2) || isWide(r) {
			if s := strings.TrimSpace(paragraph[start:i]); s != "" {
				out = append(out, s)
			}
			start = i
		}
	}
	if s := strings.TrimSpace(paragraph[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// isWide reports full-width terminals, which end a sentence without
// trailing whitespace.
func isWide(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』':
		return true
	}
	return false
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Signature fingerprints text from its byte length and its first and last
// runes, so the cost does not grow with the article.
func Signature(text string) string {
	prefix, suffix := text, text
	if utf8.RuneCountInString(text) > signatureSpan {
		prefix = firstRunes(text, signatureSpan)
		suffix = lastRunes(text, signatureSpan)
	}
	sum := md5.Sum([]byte(prefix + "\x00" + suffix))
	return fmt.Sprintf("%d-%x", len(text), sum)
}

func firstRunes(s string, n int) string {
	i := 0
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

func lastRunes(s string, n int) string {
	i := len(s)
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}
