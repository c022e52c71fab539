package scraper

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/markdave123-py/Procura/internal/models"
)

type fingerprintInput struct {
	Status           string `json:"status"`
	Unit             string `json:"unit"`
	Movements        int    `json:"movements"`
	Documents        int    `json:"documents"`
	LastMovementDate string `json:"lastMovementDate"`
	Subject          string `json:"subject"`
}

// Fingerprint hashes the fields that signal a case changed: status,
// current unit, list sizes, the latest movement date and the detailed
// subject.
func Fingerprint(rec *models.ProcessRecord) string {
	in := fingerprintInput{
		Status:    rec.Status,
		Unit:      rec.CurrentUnit,
		Movements: len(rec.Movements),
		Documents: len(rec.Documents),
		Subject:   rec.Subject,
	}
	if n := len(rec.Movements); n > 0 {
		last := rec.Movements[n-1]
		in.LastMovementDate = last.ReceivedAt
		if in.LastMovementDate == "" {
			in.LastMovementDate = last.SentAt
		}
	}
	b, _ := json.Marshal(in)
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
