package fetcher

import (
	"regexp"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

// UTF8HTML is the content type of every HTML buffer leaving the fetcher.
const UTF8HTML = "text/html; charset=utf-8"

var metaCharset = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?[\w-]+["']?[^>]*>`)

// DecodeHTML converts a portal page to UTF-8. The charset comes from the
// Content-Type header or a <meta> tag; undeclared non-UTF-8 bytes are read
// as Windows-1252, the portal's legacy encoding.
func DecodeHTML(body []byte, contentType string) (string, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain && utf8.Valid(body) {
		return string(body), nil
	}
	if name == "utf-8" {
		return string(body), nil
	}
	if enc == nil {
		enc = charmap.Windows1252
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return metaCharset.ReplaceAllString(string(out), `<meta charset="utf-8">`), nil
}
