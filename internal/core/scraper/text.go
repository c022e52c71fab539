package scraper

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// clean collapses whitespace, including non-breaking spaces.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// fold lowercases, strips diacritics and collapses whitespace, so
// "Movimentações  do Processo" and "movimentacoes do processo" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(clean(out))
}

// foldLabel is fold without the trailing colon labels carry on the page.
func foldLabel(s string) string {
	return strings.TrimSpace(strings.TrimRight(fold(s), ": "))
}

func containsAny(haystack string, needles []string) bool {
	h := fold(haystack)
	for _, n := range needles {
		if n = fold(n); n != "" && strings.Contains(h, n) {
			return true
		}
	}
	return false
}
