// Package rag holds the time-guarded retrieval and answer validation
// pipeline: tokenization and scoring, question intent, chunk retrieval, line
// resolution, evidence sanitizing and the no-evidence degrade rule.
//
// Every read in this package is bounded by a playback cutoff in
// milliseconds. Nothing that starts after the cutoff is ever returned.
package rag

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9\x{AC00}-\x{D7A3}]+`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "on": {}, "at": {},
	"for": {}, "and": {}, "or": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "it": {}, "this": {}, "that": {}, "with": {},
	"as": {}, "by": {},
}

const minTokenRunes = 2

// fold applies NFKC compatibility normalization and lower-cases.
func fold(text string) string {
	return strings.ToLower(norm.NFKC.String(text))
}

// rawTokens returns every word match of the folded text, unfiltered.
func rawTokens(text string) []string {
	return tokenPattern.FindAllString(fold(text), -1)
}

// Tokenize splits text into scoring tokens. Stopwords are removed, as are
// tokens shorter than two characters unless they are all digits.
func Tokenize(text string) []string {
	var out []string
	for _, tok := range rawTokens(text) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if !isDigits(tok) && utf8.RuneCountInString(tok) < minTokenRunes {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// LexicalScore is the multiset overlap of queryTokens with the tokens of
// text, divided by the number of query tokens. It is 0 for an empty query.
func LexicalScore(queryTokens []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	q := counts(queryTokens)
	t := counts(Tokenize(text))
	overlap := 0
	for tok, n := range q {
		overlap += min(n, t[tok])
	}
	return float64(overlap) / float64(len(queryTokens))
}

func counts(tokens []string) map[string]int {
	m := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		m[tok]++
	}
	return m
}
