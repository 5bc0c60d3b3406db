package textextract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	dotRun     = regexp.MustCompile(`\.{2,}`)
	whitespace = regexp.MustCompile(`\s+`)
)

// CleanOptions toggles the optional cleaning steps.
type CleanOptions struct {
	Lowercase       bool
	RemoveStopwords bool
}

// Cleaner normalizes extracted text: dot leaders and runs of whitespace are
// collapsed and diacritics are stripped.
type Cleaner struct {
	stopwords map[string]struct{}
}

// NewCleaner uses the given stopwords, or the default Portuguese list when
// stopwords is nil. Stopwords are matched without diacritics, case-insensitively.
func NewCleaner(stopwords []string) *Cleaner {
	if stopwords == nil {
		stopwords = portugueseStopwords
	}
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[strings.ToLower(StripDiacritics(w))] = struct{}{}
	}
	return &Cleaner{stopwords: set}
}

// StripDiacritics removes combining marks after canonical decomposition, so
// "ação" becomes "acao".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Clean applies the cleaning steps in order: lower-case, drop dot runs,
// collapse whitespace, strip diacritics, trim, then remove stopwords.
func (c *Cleaner) Clean(text string, opts CleanOptions) string {
	if text == "" {
		return ""
	}
	if opts.Lowercase {
		text = strings.ToLower(text)
	}
	text = dotRun.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(StripDiacritics(text))
	if opts.RemoveStopwords {
		text = c.RemoveStopwords(text)
	}
	return text
}

// RemoveStopwords drops every whitespace-separated word found in the list.
func (c *Cleaner) RemoveStopwords(text string) string {
	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if _, stop := c.stopwords[strings.ToLower(StripDiacritics(w))]; !stop {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
