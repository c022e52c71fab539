package scraper

import (
	"regexp"
	"strings"

	"github.com/markdave123-py/Procura/internal/apperr"
)

var protocolRe = regexp.MustCompile(`^(\d{5})\.(\d{6})/(\d{4})-(\d{2})$`)

// Protocol is a case number split into the portal's four search fields,
// e.g. 23068.123456/2023-99.
type Protocol struct {
	Radical string
	Number  string
	Year    string
	Digit   string
}

// ParseProtocol accepts only the canonical formatted form.
func ParseProtocol(s string) (Protocol, error) {
	m := protocolRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Protocol{}, apperr.Newf(apperr.InvalidFormat, "protocol %q does not match 00000.000000/0000-00", s)
	}
	return Protocol{Radical: m[1], Number: m[2], Year: m[3], Digit: m[4]}, nil
}

func (p Protocol) String() string {
	return p.Radical + "." + p.Number + "/" + p.Year + "-" + p.Digit
}

// IsProtocol reports whether s is a canonical protocol string.
func IsProtocol(s string) bool {
	return protocolRe.MatchString(strings.TrimSpace(s))
}
