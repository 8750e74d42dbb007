// Package filter masks blocked words in chat text.
package filter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const mask = "****"

type WordFilter struct {
	re *regexp.Regexp
}

// New builds a filter for the given words. Matching is case-insensitive and
// only whole words are replaced, in any script. With no words the filter
// passes text through.
func New(words []string) *WordFilter {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return &WordFilter{}
	}
	return &WordFilter{re: regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)}
}

func (f *WordFilter) Filter(text string) string {
	if f == nil || f.re == nil {
		return text
	}

	var b strings.Builder
	copied, pos := 0, 0
	for pos < len(text) {
		loc := f.re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && isBoundary(text, start, end) {
			b.WriteString(text[copied:start])
			b.WriteString(mask)
			copied, pos = end, end
			continue
		}
		// retry from the next rune so overlapping candidates are not missed
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + max(size, 1)
	}
	if copied == 0 {
		return text
	}
	b.WriteString(text[copied:])
	return b.String()
}

// isBoundary reports whether text[start:end] is not glued to a letter, digit
// or underscore on either side. RE2's \b only knows ASCII word characters.
func isBoundary(text string, start, end int) bool {
	if r, _ := utf8.DecodeLastRuneInString(text[:start]); start > 0 && isWordRune(r) {
		return false
	}
	if r, _ := utf8.DecodeRuneInString(text[end:]); end < len(text) && isWordRune(r) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
