package nlu

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FuzzyMatcher picks the candidate most similar to query. Scores are on a
// 0–100 scale; an empty candidate list yields ("", 0).
type FuzzyMatcher interface {
	Best(query string, candidates []string) (match string, score float64)
}

// TokenSetMatcher scores strings by token-set ratio: both sides are reduced
// to sorted sets of normalised words, and the shared words are compared with
// each side's remainder. Word order and repeated or extra words in the query
// do not lower the score of a contained station name.
//
// The zero value is ready to use.
type TokenSetMatcher struct{}

var _ FuzzyMatcher = TokenSetMatcher{}

// Best implements [FuzzyMatcher]. Ties keep the earliest candidate.
func (TokenSetMatcher) Best(query string, candidates []string) (string, float64) {
	q := tokenSet(query)
	var (
		best      string
		bestScore = -1.0
	)
	for _, c := range candidates {
		if s := tokenSetRatio(q, tokenSet(c)); s > bestScore {
			best, bestScore = c, s
		}
	}
	if bestScore < 0 {
		return "", 0
	}
	return best, bestScore
}

// TokenSetRatio returns the token-set similarity of a and b in [0, 100].
func TokenSetRatio(a, b string) float64 {
	return tokenSetRatio(tokenSet(a), tokenSet(b))
}

func tokenSetRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var sect, onlyA, onlyB []string
	for _, t := range a {
		if _, found := slices.BinarySearch(b, t); found {
			sect = append(sect, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range b {
		if _, found := slices.BinarySearch(a, t); !found {
			onlyB = append(onlyB, t)
		}
	}

	s := strings.Join(sect, " ")
	combA := strings.TrimSpace(s + " " + strings.Join(onlyA, " "))
	combB := strings.TrimSpace(s + " " + strings.Join(onlyB, " "))

	return max(ratio(s, combA), ratio(s, combB), ratio(combA, combB))
}

// ratio is the normalised insertion/deletion similarity of a and b, 0–100.
func ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 || a == "" || b == "" {
		return 0
	}
	lcs := matchr.LongestCommonSubsequence(a, b)
	return 100 * float64(2*lcs) / float64(total)
}

// tokenSet normalises s and returns its distinct words, sorted.
func tokenSet(s string) []string {
	words := strings.Fields(normalize(s))
	slices.Sort(words)
	return slices.Compact(words)
}

// normalize folds case, strips diacritics and replaces every rune that is not
// a letter or digit with a space.
func normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = cases.Fold().String(folded)
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
