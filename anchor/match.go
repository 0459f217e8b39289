// Package anchor classifies how closely the visible text of a link matches
// the anchor text a backlink placement was supposed to carry.
package anchor

import (
	"strings"
	"unicode/utf8"
)

// Kind is the confidence tier of an anchor-text match.
type Kind string

const (
	Exact     Kind = "exact"
	Partial   Kind = "partial"
	WordBased Kind = "word-based"
	None      Kind = "none"
)

// minWordLen is the rune length a word must exceed to take part in
// word-based matching; shorter words ("a", "of", "my") are noise.
const minWordLen = 2

// Rank orders kinds from strongest to weakest: exact > partial > word-based > none.
func (k Kind) Rank() int {
	switch k {
	case Exact:
		return 3
	case Partial:
		return 2
	case WordBased:
		return 1
	default:
		return 0
	}
}

// Result is the outcome of comparing expected and observed anchor text.
type Result struct {
	IsMatch bool
	Kind    Kind
}

// Match compares the expected anchor text with the text observed on a link.
// Both sides are lowercased and whitespace-collapsed, then the first
// satisfied tier wins:
//
//  1. exact: the normalized strings are identical.
//  2. partial: the expected text is a substring of the observed text.
//  3. word-based: every word longer than two runes on one side appears
//     among the words of the other side. Checking both directions lets a
//     truncated link ("Product Reviews" for "Best Product Reviews") match
//     as well as a wrapped one.
//
// Empty text on either side never matches.
func Match(expected, observed string) Result {
	exp := Normalize(expected)
	obs := Normalize(observed)
	if exp == "" || obs == "" {
		return Result{Kind: None}
	}

	if exp == obs {
		return Result{IsMatch: true, Kind: Exact}
	}
	if strings.Contains(obs, exp) {
		return Result{IsMatch: true, Kind: Partial}
	}

	expWords := strings.Split(exp, " ")
	obsWords := strings.Split(obs, " ")
	if containsAllWords(expWords, obsWords) || containsAllWords(obsWords, expWords) {
		return Result{IsMatch: true, Kind: WordBased}
	}

	return Result{Kind: None}
}

// Normalize lowercases text, trims it and collapses internal whitespace runs
// to a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// containsAllWords reports whether every significant word of want appears in
// have. It is false when want has no significant words.
func containsAllWords(want, have []string) bool {
	present := make(map[string]struct{}, len(have))
	for _, word := range have {
		present[word] = struct{}{}
	}

	kept := 0
	for _, word := range want {
		if utf8.RuneCountInString(word) <= minWordLen {
			continue
		}
		kept++
		if _, ok := present[word]; !ok {
			return false
		}
	}
	return kept > 0
}
