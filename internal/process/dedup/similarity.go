package dedup

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// SimpleSimilarity is the Jaccard similarity over tokens longer than two runes.
// Texts that are identical after normalization score 1.0.
func SimpleSimilarity(a, b string) float64 {
	na, nb := normalizeSimple(a), normalizeSimple(b)
	if na == "" || nb == "" {
		return 0
	}

	if na == nb {
		return 1
	}

	ta, tb := tokenSet(na, nil), tokenSet(nb, nil)
	jaccard, _ := overlap(ta, tb)

	return jaccard
}

// DetailedSimilarity averages the Jaccard index with the overlap coefficient
// relative to the larger token set. Stop words are removed first.
func DetailedSimilarity(a, b string) float64 {
	ta := tokenSet(normalizeDetailed(a), stopWords)
	tb := tokenSet(normalizeDetailed(b), stopWords)

	jaccard, shared := overlap(ta, tb)
	if shared == 0 {
		return 0
	}

	coverage := float64(shared) / float64(max(len(ta), len(tb)))

	return (jaccard + coverage) / 2
}

// EditSimilarity maps the Levenshtein distance of the lowercased, trimmed
// strings onto [0, 1].
func EditSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)

	switch {
	case la == 0 && lb == 0:
		return 1
	case la == 0 || lb == 0:
		return 0
	}

	longest := max(la, lb)

	return float64(longest-Levenshtein(a, b)) / float64(longest)
}

// Levenshtein counts single-rune insertions, deletions and substitutions.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}

	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i

		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// normalizeSimple lowercases, strips everything that is not a letter, digit
// or whitespace, and collapses whitespace.
func normalizeSimple(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// normalizeDetailed case-folds and replaces quotes, dashes and other
// punctuation with whitespace so compound words split into tokens.
func normalizeDetailed(s string) string {
	folded := cases.Fold().String(s)

	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.Is(unicode.Quotation_Mark, r), unicode.Is(unicode.Dash, r):
			return ' '
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			return ' '
		default:
			return r
		}
	}, folded)

	return strings.Join(strings.Fields(mapped), " ")
}

func tokenSet(normalized string, skip map[string]struct{}) map[string]struct{} {
	set := make(map[string]struct{})

	for _, tok := range strings.Fields(normalized) {
		if utf8.RuneCountInString(tok) < minTokenLength {
			continue
		}

		if _, ok := skip[tok]; ok {
			continue
		}

		set[tok] = struct{}{}
	}

	return set
}

// overlap returns the Jaccard index and the intersection size.
func overlap(a, b map[string]struct{}) (float64, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}

	shared := 0

	for tok := range a {
		if _, ok := b[tok]; ok {
			shared++
		}
	}

	union := len(a) + len(b) - shared

	return float64(shared) / float64(union), shared
}
