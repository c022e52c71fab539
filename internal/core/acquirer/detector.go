package acquirer

import "strings"

// BlockDetector recognises the portal's anti-automation and error pages by
// marker phrases. Markers are matched case-insensitively.
type BlockDetector struct {
	markers []string
}

func NewBlockDetector(markers []string) *BlockDetector {
	d := &BlockDetector{}
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			d.markers = append(d.markers, m)
		}
	}
	return d
}

// Blocked returns the first marker found in text.
func (d *BlockDetector) Blocked(text string) (string, bool) {
	if d == nil || len(d.markers) == 0 {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, m := range d.markers {
		if strings.Contains(lower, m) {
			return m, true
		}
	}
	return "", false
}
