package keywords

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matcher finds whole-token occurrences of a fixed term set in normalized text
type Matcher struct {
	ac    *automaton
	terms []string
}

// Compile builds a Matcher for keywords and hashtags. Hashtags match with
// or without their leading '#' in the input list, but only as "#tag" in text.
// Empty terms are ignored
func Compile(keywords, hashtags []string) *Matcher {
	m := &Matcher{ac: newAutomaton()}
	seen := make(map[string]struct{}, len(keywords)+len(hashtags))
	add := func(term string) {
		if term == "" {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		m.ac.add(term, int32(len(m.terms)))
		m.terms = append(m.terms, term)
	}
	for _, k := range keywords {
		add(Normalize(k))
	}
	for _, h := range hashtags {
		tag := strings.TrimLeft(Normalize(h), "#")
		if tag != "" {
			add("#" + tag)
		}
	}
	m.ac.build()
	return m
}

// Empty reports whether the matcher has no terms
func (m *Matcher) Empty() bool { return m == nil || len(m.terms) == 0 }

// First returns the term whose match ends earliest in text. text must already be normalized
func (m *Matcher) First(text string) (string, bool) {
	if m.Empty() || text == "" {
		return "", false
	}
	found := -1
	m.ac.scan(text, func(end int, id int32) bool {
		term := m.terms[id]
		if !bounded(text, end-len(term), end) {
			return true
		}
		found = int(id)
		return false
	})
	if found < 0 {
		return "", false
	}
	return m.terms[found], true
}

// Match normalizes raw and reports whether any term occurs in it
func (m *Matcher) Match(raw string) bool {
	_, ok := m.First(Normalize(raw))
	return ok
}

// bounded reports whether s[start:end] is not glued to a neighbouring word.
// A side only needs a boundary when the term itself starts or ends with a word rune
func bounded(s string, start, end int) bool {
	first, _ := utf8.DecodeRuneInString(s[start:end])
	if isWord(first) && start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWord(prev) {
			return false
		}
	}
	last, _ := utf8.DecodeLastRuneInString(s[start:end])
	if isWord(last) && end < len(s) {
		next, _ := utf8.DecodeRuneInString(s[end:])
		if isWord(next) {
			return false
		}
	}
	return true
}

// isWord covers letters, numbers, combining marks, and connector punctuation such as '_'
func isWord(r rune) bool {
	if r == utf8.RuneError || r == 0 {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.In(r, unicode.Mn, unicode.Pc)
}
