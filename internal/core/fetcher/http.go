// Package fetcher talks to the portal: plain HTTP through resty and
// headless Chrome through chromedp.
package fetcher

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/Procura/internal/apperr"
)

// DefaultUserAgent is sent by both the HTTP client and the browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

const acceptLanguage = "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"

type HTTPOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	RPS       float64 // <= 0 disables the limiter
}

// Response is a fully-read HTTP body with the metadata the acquirer needs.
type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
	Filename    string
	FinalURL    string
}

// HTTPClient issues browser-like GETs against the portal, rate limited so
// bursts of document downloads do not trip the portal's defenses.
type HTTPClient struct {
	client  *resty.Client
	limiter *rate.Limiter
}

func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	c := resty.New().
		SetTimeout(opts.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/pdf,*/*;q=0.8").
		SetHeader("Accept-Language", acceptLanguage)
	if opts.BaseURL != "" {
		c.SetHeader("Referer", strings.TrimRight(opts.BaseURL, "/")+"/")
	}

	var limiter *rate.Limiter
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &HTTPClient{client: c, limiter: limiter}
}

// Get downloads target as raw bytes. Non-2xx statuses are errors.
func (c *HTTPClient) Get(ctx context.Context, target string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperr.Wrap(apperr.CodeOf(err), err, "rate limiter")
		}
	}

	resp, err := c.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeOf(err), err, "GET "+target)
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusNotFound:
		return nil, apperr.Newf(apperr.NotFound, "GET %s: status %d", target, status)
	case status < 200 || status > 299:
		return nil, apperr.Newf(apperr.NetworkFailure, "GET %s: status %d", target, status)
	}

	final := target
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}

	header := resp.Header()
	return &Response{
		StatusCode:  status,
		Body:        resp.Body(),
		ContentType: header.Get("Content-Type"),
		Filename:    FilenameFrom(header.Get("Content-Disposition"), final),
		FinalURL:    final,
	}, nil
}

// FilenameFrom prefers the Content-Disposition filename and falls back to
// the last URL path segment.
func FilenameFrom(disposition, rawURL string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return path.Base(strings.ReplaceAll(name, `\`, "/"))
			}
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "document"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "document"
	}
	return base
}

// ResolveURL makes ref absolute against base.
func ResolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse ref url: %w", err)
	}
	return b.ResolveReference(r).String(), nil
}
