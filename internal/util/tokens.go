package util

import (
	"regexp"
	"strings"
)

var (
	moneyToken = regexp.MustCompile(`\$\s?[0-9][0-9,]*(?:\.[0-9]+)?k?`)
	wordToken  = regexp.MustCompile(`[a-z0-9]+(?:[.'][a-z0-9]+)*`)
)

// stopwords carry no product meaning in queries or follow-ups
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "for": {}, "with": {},
	"in": {}, "on": {}, "of": {}, "to": {}, "at": {}, "by": {}, "from": {},
	"is": {}, "it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"me": {}, "my": {}, "i": {}, "you": {}, "your": {}, "one": {}, "ones": {},
	"what": {}, "which": {}, "how": {}, "about": {}, "tell": {}, "more": {},
	"show": {}, "find": {}, "get": {}, "buy": {}, "best": {}, "good": {},
	"deal": {}, "deals": {}, "cheap": {}, "under": {}, "below": {}, "less": {},
	"than": {}, "max": {}, "up": {}, "price": {}, "does": {}, "do": {}, "have": {},
	"has": {}, "can": {}, "please": {}, "any": {}, "some": {}, "there": {},
}

// Tokens lower-cases s and splits it into words, dropping dollar amounts
func Tokens(s string) []string {
	s = moneyToken.ReplaceAllString(strings.ToLower(s), " ")
	return wordToken.FindAllString(s, -1)
}

// ContentTokens returns the distinct non-stopword tokens of s in order of first use
func ContentTokens(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokens(s) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// IsStopword reports whether tok is ignored by ContentTokens
func IsStopword(tok string) bool {
	_, ok := stopwords[strings.ToLower(tok)]
	return ok
}
