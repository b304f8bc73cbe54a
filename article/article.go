// Package article reads reading articles from Markdown files.
//
// An article file is Markdown with an optional YAML front matter block:
//
//	---
//	id: bbc-2024-05-17
//	title: Cities plan for hotter summers
//	language: en
//	---
//
//	# Cities plan for hotter summers
//
//	Body text...
//
// Without an id the article is named after the file (base name without
// extension).
package article

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Article is a parsed article file.
type Article struct {
	ID       string
	Title    string
	Language string
	// Meta holds every scalar front matter field, including the ones above.
	Meta map[string]string
	// Body is the Markdown after the front matter.
	Body string
}

// frontmatterBlock matches a YAML front matter block at the start of the file.
var frontmatterBlock = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---\r?\n?`)

// codeBlockFence matches fenced code blocks (``` or ~~~).
var codeBlockFence = regexp.MustCompile("(?s)```[^`]*?```|~~~[^~]*?~~~")

var (
	headingLine = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t#]*$`)
	ruleLine    = regexp.MustCompile(`(?m)^[ \t]*[-*_]{3,}[ \t]*$`)
)

// ReadFile reads and parses an article file.
func ReadFile(path string) (*Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if a.ID == "" {
		a.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return a, nil
}

// Parse parses article data. The returned article has no ID unless the
// front matter names one.
func Parse(data []byte) (*Article, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	a := &Article{Meta: make(map[string]string)}

	if m := frontmatterBlock.FindStringSubmatchIndex(text); m != nil {
		raw := text[m[2]:m[3]]
		text = text[m[1]:]

		var node yaml.Node
		if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
			return nil, fmt.Errorf("front matter: %w", err)
		}
		if len(node.Content) > 0 {
			root := node.Content[0]
			if root.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("front matter: expected a mapping")
			}
			for i := 0; i+1 < len(root.Content); i += 2 {
				key, val := root.Content[i], root.Content[i+1]
				if val.Kind != yaml.ScalarNode {
					continue
				}
				a.Meta[key.Value] = val.Value
			}
		}
	}

	a.ID = strings.TrimSpace(a.Meta["id"])
	a.Title = strings.TrimSpace(a.Meta["title"])
	a.Language = strings.TrimSpace(a.Meta["language"])
	a.Body = strings.TrimSpace(text)

	if a.Title == "" {
		if m := headingLine.FindStringSubmatch(outsideCode(a.Body)); m != nil {
			a.Title = strings.TrimSpace(m[1])
		}
	}
	return a, nil
}

// Text returns the body as reading text: heading markers and horizontal
// rules are removed, code blocks are kept verbatim, paragraphs stay
// separated by blank lines.
func (a *Article) Text() string {
	body := a.Body
	codeRanges := codeBlockFence.FindAllStringIndex(body, -1)

	var b strings.Builder
	last := 0
	for _, r := range codeRanges {
		b.WriteString(plain(body[last:r[0]]))
		b.WriteString(body[r[0]:r[1]])
		last = r[1]
	}
	b.WriteString(plain(body[last:]))

	return strings.TrimSpace(b.String())
}

func plain(s string) string {
	s = headingLine.ReplaceAllString(s, "$1")
	return ruleLine.ReplaceAllString(s, "")
}

// outsideCode blanks fenced code blocks so headings inside them are not
// mistaken for the title.
func outsideCode(s string) string {
	return codeBlockFence.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
}

// ---------------------------------------------------------------------------
// Bilingual output
// ---------------------------------------------------------------------------

// Pair is one chunk of the article with its translation.
type Pair struct {
	Original    string
	Translation string
}

// Bilingual renders the article as Markdown with each chunk followed by its
// translation as a block quote. Untranslated chunks stand alone.
func Bilingual(a *Article, targetLang string, pairs []Pair) ([]byte, error) {
	var buf bytes.Buffer

	fm := map[string]string{"id": a.ID, "language": targetLang}
	if a.Title != "" {
		fm["title"] = a.Title
	}
	if src := a.Language; src != "" {
		fm["source_language"] = src
	}
	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshaling front matter: %w", err)
	}
	buf.WriteString("---\n")
	buf.Write(fmBytes)
	buf.WriteString("---\n\n")

	for _, p := range pairs {
		buf.WriteString(strings.TrimSpace(p.Original))
		buf.WriteString("\n\n")
		if t := strings.TrimSpace(p.Translation); t != "" {
			for _, line := range strings.Split(t, "\n") {
				buf.WriteString(strings.TrimRight("> "+line, " "))
				buf.WriteString("\n")
			}
			buf.WriteString("\n")
		}
	}

	out := bytes.TrimRight(buf.Bytes(), "\n")
	return append(out, '\n'), nil
}

// WriteBilingual writes Bilingual output to path, creating its directory.
func WriteBilingual(path string, a *Article, targetLang string, pairs []Pair) error {
	data, err := Bilingual(a, targetLang, pairs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
