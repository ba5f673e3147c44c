// Package keywords extracts domain keywords from free text and reconciles the
// keywords of a resume with the keywords of a job description.
package keywords

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinKeywordLength = 2
	MaxKeywordLength = 50
)

// Normalize lower-cases k, drops every character except letters, digits,
// underscores, whitespace, hyphens and dots, collapses whitespace runs and
// trims the result. Normalize(Normalize(k)) == Normalize(k).
func Normalize(k string) string {
	k = strings.ToLower(k)

	var b strings.Builder
	b.Grow(len(k))
	for _, r := range k {
		if isWordRune(r) || unicode.IsSpace(r) || r == '-' || r == '.' {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Valid reports whether a normalized keyword has an acceptable length.
func Valid(k string) bool {
	n := utf8.RuneCountInString(k)
	return n >= MinKeywordLength && n <= MaxKeywordLength
}

// Sort orders keywords longest first, breaking ties alphabetically, so that
// multi-word phrases lead the list.
func Sort(keywords []string) {
	sort.Slice(keywords, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keywords[i]), utf8.RuneCountInString(keywords[j])
		if li != lj {
			return li > lj
		}
		return keywords[i] < keywords[j]
	})
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}

type set map[string]struct{}

func newSet(items ...string) set {
	s := make(set, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func (s set) has(item string) bool {
	_, ok := s[item]
	return ok
}

func (s set) add(item string) {
	s[item] = struct{}{}
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
