// Package langmeta resolves language codes to canonical BCP 47 tags and
// display metadata (English name, native name, emoji flag) for prompts
// and CLI output.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes language display metadata.
type Meta struct {
	Tag     string
	English string
	Native  string
	Flag    string
}

// Name returns the native name, falling back to the English one.
func (m Meta) Name() string {
	if m.Native != "" {
		return m.Native
	}
	return m.English
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

func parse(lang string) (language.Tag, bool) {
	c := canonicalize(lang)
	if c == "" {
		return language.Und, false
	}
	tag, err := language.Parse(c)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// Canonical returns the BCP 47 form of lang ("pt_br" -> "pt-BR"). Codes
// that do not parse are returned in the normalized case form.
func Canonical(lang string) string {
	if tag, ok := parse(lang); ok {
		return tag.String()
	}
	return canonicalize(lang)
}

// Base returns the language subtag ("zh-CN" -> "zh").
func Base(lang string) string {
	if tag, ok := parse(lang); ok {
		base, _ := tag.Base()
		return base.String()
	}
	return strings.SplitN(canonicalize(lang), "-", 2)[0]
}

// Resolve returns best-effort metadata for lang, supporting variants like
// pt_BR and pt-BR. Unknown codes pass through as their own name.
func Resolve(lang string) Meta {
	tag, ok := parse(lang)
	if !ok {
		return Meta{Tag: lang, English: lang}
	}

	m := Meta{
		Tag:     tag.String(),
		English: display.English.Tags().Name(tag),
		Native:  display.Self.Name(tag),
	}
	if m.English == "" {
		m.English = lang
	}
	if region, conf := tag.Region(); conf != language.No {
		m.Flag = flag(region.String())
	}
	return m
}

// PromptName is the name used when telling a model which language to
// write, e.g. "French" or "Chinese (China)".
func PromptName(lang string) string {
	return Resolve(lang).English
}

// flag maps a two-letter region code to its regional-indicator emoji.
func flag(region string) string {
	if len(region) != 2 {
		return ""
	}
	var b strings.Builder
	for _, c := range strings.ToUpper(region) {
		if c < 'A' || c > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (c - 'A'))
	}
	return b.String()
}
