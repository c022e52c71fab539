package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LabelMatcher finds the value shown next to a label on the detail page.
type LabelMatcher func(doc *goquery.Document, label string) (string, bool)

// DefaultMatchers is tried in order until one yields a value.
var DefaultMatchers = []LabelMatcher{AdjacentCell, MergedCellPrefix, PageRegex}

// AdjacentCell handles <th>Label:</th><td>value</td>.
func AdjacentCell(doc *goquery.Document, label string) (string, bool) {
	want := foldLabel(label)
	var value string
	doc.Find("th, td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if foldLabel(cell.Text()) != want {
			return true
		}
		next := cell.NextFiltered("td, th")
		if v := clean(next.Text()); v != "" {
			value = v
			return false
		}
		return true
	})
	return value, value != ""
}

// MergedCellPrefix handles a single cell holding "Label: value".
func MergedCellPrefix(doc *goquery.Document, label string) (string, bool) {
	want := foldLabel(label) + ":"
	var value string
	doc.Find("th, td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if cell.Find("table").Length() > 0 {
			return true
		}
		text := clean(cell.Text())
		if !strings.HasPrefix(fold(text), want) {
			return true
		}
		if _, rest, ok := strings.Cut(text, ":"); ok {
			if v := strings.TrimSpace(rest); v != "" {
				value = v
				return false
			}
		}
		return true
	})
	return value, value != ""
}

// PageRegex searches the whole page text for "Label: value" on one line.
func PageRegex(doc *goquery.Document, label string) (string, bool) {
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(strings.TrimRight(label, ": ")) + `\s*:[ \t\x{00a0}]*([^\n\r]{1,300})`)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(doc.Text())
	if m == nil {
		return "", false
	}
	v := clean(m[1])
	return v, v != ""
}

// lookup runs every matcher over every label, matcher-major.
func lookup(doc *goquery.Document, matchers []LabelMatcher, labels ...string) string {
	for _, match := range matchers {
		for _, label := range labels {
			if v, ok := match(doc, label); ok {
				return v
			}
		}
	}
	return ""
}
