package acquirer

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/markdave123-py/Procura/internal/apperr"
)

// Suffixes Chrome and other agents use while a download is in flight.
var partialSuffixes = []string{".crdownload", ".part", ".tmp", ".download"}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return strings.HasPrefix(name, ".")
}

// waitForDownload polls dir until a finished file has kept the same size
// for settle, or until wait elapses.
func waitForDownload(ctx context.Context, dir string, wait, settle, poll time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var (
		lastName    string
		lastSize    int64 = -1
		stableSince time.Time
	)
	for {
		name, size, ok := completedFile(dir)
		now := time.Now()
		if ok {
			if name == lastName && size == lastSize {
				if now.Sub(stableSince) >= settle {
					return filepath.Join(dir, name), nil
				}
			} else {
				lastName, lastSize, stableSince = name, size, now
			}
		}
		if now.After(deadline) {
			return "", apperr.Newf(apperr.DownloadTimeout, "no completed download after %s", wait)
		}

		select {
		case <-ctx.Done():
			return "", apperr.Wrap(apperr.DownloadTimeout, ctx.Err(), "waiting for download")
		case <-ticker.C:
		}
	}
}

// completedFile returns the first regular file in dir without a partial
// suffix.
func completedFile(dir string) (string, int64, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, false
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || isPartial(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		return e.Name(), info.Size(), true
	}
	return "", 0, false
}

// contentTypeFor trusts the file extension and sniffs magic bytes when the
// extension is missing or unknown.
func contentTypeFor(name string, data []byte) string {
	if ext := filepath.Ext(name); ext != "" {
		if ct := mime.TypeByExtension(strings.ToLower(ext)); ct != "" {
			return ct
		}
	}
	return mimetype.Detect(data).String()
}
