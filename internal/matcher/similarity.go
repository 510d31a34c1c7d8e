package matcher

import "strings"

// Dice returns the Sorensen-Dice coefficient of the character bigrams of a
// and b, compared case-insensitively. Bigrams are counted as a multiset so
// the result is symmetric.
func Dice(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1
	}

	ra, rb := []rune(a), []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	counts := make(map[[2]rune]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		counts[[2]rune{ra[i], ra[i+1]}]++
	}

	shared := 0
	for i := 0; i < len(rb)-1; i++ {
		k := [2]rune{rb[i], rb[i+1]}
		if counts[k] > 0 {
			counts[k]--
			shared++
		}
	}

	return float64(2*shared) / float64(len(ra)-1+len(rb)-1)
}
