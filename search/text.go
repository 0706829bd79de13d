package search

import (
	"strings"
	"unicode"
)

// English function words ignored when matching query terms.
var stopWords = func() map[string]struct{} {
	words := strings.Fields(`a an and are as at be but by do for from has have he
		her his in is it its not of on or said she that the their they this to
		was were will with you`)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()

// terms lowercases text, splits it on anything that is not a letter or digit
// and drops stop words.
func terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; !stop {
			out = append(out, f)
		}
	}
	return out
}

// containsAllQueryWords reports whether every term of query occurs in
// document. A query made only of stop words never matches.
func containsAllQueryWords(document, query string) bool {
	want := terms(query)
	if len(want) == 0 {
		return false
	}

	have := make(map[string]struct{})
	for _, t := range terms(document) {
		have[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}
