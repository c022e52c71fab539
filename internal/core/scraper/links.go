package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/markdave123-py/Procura/internal/core/fetcher"
)

var (
	windowOpenRe = regexp.MustCompile(`window\.open\(\s*['"]([^'"]+)['"]`)
	numericIDRe  = regexp.MustCompile(`([A-Za-z_]\w*)\(\s*['"]?(\d+)['"]?\s*[,)]`)
)

// documentURL resolves the best download link inside sel: a plain href,
// then a window.open('...') call, then a numeric document id passed to a
// JS function, formatted with idTemplate. Returns "" when restricted.
func documentURL(sel *goquery.Selection, baseURL, idTemplate string) string {
	if sel == nil {
		return ""
	}
	candidates := sel.Find("a, img, input, span, button").AddSelection(sel)

	var hrefURL, openURL, idURL string
	candidates.Each(func(_ int, el *goquery.Selection) {
		href, _ := el.Attr("href")
		onclick, _ := el.Attr("onclick")
		href = strings.TrimSpace(href)

		if hrefURL == "" && href != "" && href != "#" && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
			hrefURL = resolve(baseURL, href)
		}
		for _, js := range []string{onclick, href} {
			if js == "" {
				continue
			}
			if m := windowOpenRe.FindStringSubmatch(js); m != nil && openURL == "" {
				openURL = resolve(baseURL, m[1])
			}
			if idURL == "" && idTemplate != "" {
				for _, m := range numericIDRe.FindAllStringSubmatch(js, -1) {
					if m[1] != "void" {
						idURL = resolve(baseURL, fmt.Sprintf(idTemplate, m[2]))
						break
					}
				}
			}
		}
	})

	for _, u := range []string{hrefURL, openURL, idURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

func resolve(base, ref string) string {
	u, err := fetcher.ResolveURL(base, ref)
	if err != nil {
		return ""
	}
	return u
}
