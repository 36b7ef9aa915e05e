package mapper

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// tokenScale caps token-based scores below a true character match.
const tokenScale = 0.95

// Score rates the similarity of two normalized strings on a 0-100 scale. It is
// the best of the plain edit ratio, the sorted-token ratio, and the token-set
// ratio; token-based scores are scaled by 0.95.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	best := Ratio(a, b)
	if s := TokenSortRatio(a, b) * tokenScale; s > best {
		best = s
	}
	if s := TokenSetRatio(a, b) * tokenScale; s > best {
		best = s
	}
	return best
}

// Ratio is the normalized Levenshtein similarity scaled to 0-100.
func Ratio(a, b string) float64 {
	return levenshtein.Similarity(a, b, nil) * 100
}

// TokenSortRatio compares the strings after sorting their words.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared words against each side's remainder.
// A string whose words are a subset of the other's scores 100.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)

	var common, onlyA, onlyB []string
	for t := range ta {
		if tb[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if !ta[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	left := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	right := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	if base != "" && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	best := Ratio(left, right)
	if base != "" {
		if s := Ratio(base, left); s > best {
			best = s
		}
		if s := Ratio(base, right); s > best {
			best = s
		}
	}
	return best
}

func sortedTokens(s string) string {
	f := strings.Fields(s)
	sort.Strings(f)
	return strings.Join(f, " ")
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(s) {
		out[f] = true
	}
	return out
}
