// Package acquirer downloads portal documents, first over plain HTTP and,
// when the portal blocks or the link needs a browser, through a headless
// Chrome whose downloads are captured in a private temp dir.
package acquirer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/core/fetcher"
	"github.com/markdave123-py/Procura/internal/models"
)

// HTTPGetter is the direct download transport.
type HTTPGetter interface {
	Get(ctx context.Context, url string) (*fetcher.Response, error)
}

type Options struct {
	// DirectPatterns select locators worth trying over plain HTTP first.
	DirectPatterns []string
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	DownloadWait   time.Duration
	SettleDelay    time.Duration
	PollInterval   time.Duration
	Browser        fetcher.BrowserOptions
}

type Acquirer struct {
	http     HTTPGetter
	open     fetcher.PageOpener
	detector *BlockDetector
	direct   []*regexp.Regexp
	opts     Options
}

func New(http HTTPGetter, open fetcher.PageOpener, detector *BlockDetector, opts Options) (*Acquirer, error) {
	if opts.DownloadWait <= 0 {
		opts.DownloadWait = 30 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = opts.BackoffMin
	}

	a := &Acquirer{http: http, open: open, detector: detector, opts: opts}
	for _, p := range opts.DirectPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("direct download pattern %q: %w", p, err)
		}
		a.direct = append(a.direct, re)
	}
	return a, nil
}

// Acquire returns the document behind locator with a non-empty buffer and
// its MD5. Every failure is an *apperr.Error and retryable.
func (a *Acquirer) Acquire(ctx context.Context, locator string) (*models.AcquiredDocument, error) {
	log := zap.S().With("locator", locator)

	if a.http != nil && a.isDirect(locator) {
		doc, err := a.viaHTTP(ctx, locator)
		if err == nil {
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.CodeOf(ctx.Err()), ctx.Err(), "acquire "+locator)
		}
		log.Warnw("direct download failed, falling back to browser", "code", apperr.CodeOf(err), "error", err)

		if err := sleep(ctx, a.backoff()); err != nil {
			return nil, apperr.Wrap(apperr.Timeout, err, "backoff")
		}
	}

	if a.open == nil {
		return nil, apperr.New(apperr.Unknown, "no browser configured for "+locator)
	}
	doc, err := a.viaBrowser(ctx, locator)
	if err != nil {
		log.Warnw("browser download failed", "code", apperr.CodeOf(err), "error", err)
		return nil, err
	}
	return doc, nil
}

func (a *Acquirer) isDirect(locator string) bool {
	for _, re := range a.direct {
		if re.MatchString(locator) {
			return true
		}
	}
	return false
}

func (a *Acquirer) viaHTTP(ctx context.Context, locator string) (*models.AcquiredDocument, error) {
	resp, err := a.http.Get(ctx, locator)
	if err != nil {
		return nil, err
	}
	ct := resp.ContentType
	if ct == "" {
		ct = mimetype.Detect(resp.Body).String()
	}
	return a.finish(resp.Body, ct, resp.Filename, models.SourceDirect)
}

func (a *Acquirer) viaBrowser(ctx context.Context, locator string) (*models.AcquiredDocument, error) {
	dir, err := os.MkdirTemp("", "procura-download-*")
	if err != nil {
		return nil, apperr.Wrap(apperr.Unknown, err, "create download dir")
	}
	defer os.RemoveAll(dir)

	opts := a.opts.Browser
	opts.DownloadDir = dir
	page, err := a.open(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	resp, navErr := page.Navigate(ctx, locator)
	if navErr == nil && models.KindOf(resp.MIMEType) == models.KindHTML {
		html, err := page.HTML(ctx)
		if err != nil {
			return nil, err
		}
		return a.finish([]byte(html), fetcher.UTF8HTML, fetcher.FilenameFrom("", locator), models.SourceBrowser)
	}

	if navErr != nil && !fetcher.IsAborted(navErr) && apperr.CodeOf(navErr) != apperr.NavigationTimeout {
		return nil, navErr
	}

	path, err := waitForDownload(ctx, dir, a.opts.DownloadWait, a.opts.SettleDelay, a.opts.PollInterval)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unknown, err, "read download")
	}
	name := filepath.Base(path)
	return a.finish(data, contentTypeFor(name, data), name, models.SourceBrowser)
}

// finish normalises HTML to UTF-8, rejects block pages and empty buffers,
// and stamps the hash.
func (a *Acquirer) finish(data []byte, contentType, filename, source string) (*models.AcquiredDocument, error) {
	if len(data) == 0 {
		return nil, apperr.Newf(apperr.EmptyBuffer, "%s download of %s returned no bytes", source, filename)
	}

	if models.KindOf(contentType) == models.KindHTML {
		text, err := fetcher.DecodeHTML(data, contentType)
		if err != nil {
			return nil, apperr.Wrap(apperr.Unknown, err, "decode html")
		}
		if marker, blocked := a.detector.Blocked(text); blocked {
			return nil, apperr.Newf(apperr.BlockedByAntiAutomation, "%s response contains %q", source, marker)
		}
		data = []byte(text)
		contentType = fetcher.UTF8HTML
		if !strings.HasSuffix(strings.ToLower(filename), ".html") && !strings.HasSuffix(strings.ToLower(filename), ".htm") {
			filename += ".html"
		}
		if len(data) == 0 {
			return nil, apperr.Newf(apperr.EmptyBuffer, "%s html of %s decoded to nothing", source, filename)
		}
	}

	sum := md5.Sum(data)
	return &models.AcquiredDocument{
		Data:        data,
		ContentType: contentType,
		Filename:    filename,
		Hash:        hex.EncodeToString(sum[:]),
		Size:        len(data),
		Source:      source,
	}, nil
}

func (a *Acquirer) backoff() time.Duration {
	lo, hi := a.opts.BackoffMin, a.opts.BackoffMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ core.DocumentAcquirer = (*Acquirer)(nil)
