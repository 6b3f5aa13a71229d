// Package normalize turns free-text organization names into canonical comparison keys.
//
// Trailing suffixes are stripped in two tiers. Legal forms (Inc, LLC, Ltd, ...) always
// go. Descriptors (Capital, Partners, Group, Management, ...) go only while at least
// two words remain, so "Acme Capital" stays "acme capital" while
// "Sequoia Capital Management LLC" and "Sequoia Capital" share the key "sequoia capital".
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// legalForms are always stripped from the end of a name.
var legalForms = map[string]bool{
	"inc": true, "incorporated": true,
	"corp": true, "corporation": true,
	"llc": true, "llp": true, "pllc": true,
	"ltd": true, "limited": true,
	"co": true, "company": true,
	"lp": true, "plc": true,
}

// descriptors are stripped only while at least two words remain, so that
// "Acme Capital" keeps its identity but "Sequoia Capital Management" loses the tail.
var descriptors = map[string]bool{
	"group": true, "partners": true, "holdings": true,
	"capital": true, "management": true,
	"advisors": true, "advisory": true,
}

// Name returns the normalized comparison key for raw.
// Empty or whitespace-only input yields "". Name(Name(x)) == Name(x) for all x.
func Name(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	for {
		next := pass(s)
		if next == s {
			return s
		}
		s = next
	}
}

// pass runs one round of suffix stripping and punctuation cleanup.
// Name iterates it to a fixed point, which is what makes Name idempotent.
func pass(s string) string {
	s = stripSuffixes(s)
	s = strings.TrimRightFunc(s, isPunctOrSpace)
	s = strings.Map(func(r rune) rune {
		if isPunct(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func stripSuffixes(s string) string {
	for {
		s = strings.TrimRightFunc(s, isPunctOrSpace)
		prefix, word := lastWord(strings.TrimSuffix(s, "."))
		switch {
		case word == "":
			return s
		case legalForms[word]:
			s = prefix
		case descriptors[word] && wordCount(prefix) >= 2:
			s = prefix
		default:
			return s
		}
	}
}

// lastWord splits s into everything before its final alphanumeric run and the run itself.
func lastWord(s string) (prefix, word string) {
	i := strings.LastIndexFunc(s, func(r rune) bool { return !isWordRune(r) })
	if i < 0 {
		return "", s
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return s[:i], s[i+size:]
}

func wordCount(s string) int {
	return len(strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) }))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func isPunctOrSpace(r rune) bool {
	return isPunct(r) || unicode.IsSpace(r)
}
