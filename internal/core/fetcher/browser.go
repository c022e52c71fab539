package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
)

// BrowserOptions configures one isolated Chrome instance.
type BrowserOptions struct {
	ExecPath  string
	Headless  bool
	UserAgent string
	Timeout   time.Duration // per navigation / wait
	// DownloadDir, when set, receives every download the page triggers.
	DownloadDir string
	// BlockResources aborts image, font and media requests.
	BlockResources bool
}

// PageResponse describes the main document a navigation ended on.
type PageResponse struct {
	URL      string
	MIMEType string
	Status   int
}

// Page is the slice of browser automation the scraper and acquirer use.
// Every method blocks until done or until the configured timeout.
type Page interface {
	Navigate(ctx context.Context, url string) (*PageResponse, error)
	WaitVisible(ctx context.Context, selector string) error
	SetValue(ctx context.Context, selector, value string) error
	ClickAndWait(ctx context.Context, selector string) (*PageResponse, error)
	HTML(ctx context.Context) (string, error)
	Close()
}

// PageOpener starts a browser and returns its single page.
type PageOpener func(ctx context.Context, opts BrowserOptions) (Page, error)

// ChromePage drives one dedicated Chrome process over CDP.
type ChromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// OpenChrome launches Chrome and returns a ready page. The process lives
// until Close.
func OpenChrome(ctx context.Context, opts BrowserOptions) (Page, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "pt-BR"),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	var setup chromedp.Tasks
	setup = append(setup, network.Enable())
	if opts.DownloadDir != "" {
		setup = append(setup, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(opts.DownloadDir).
			WithEventsEnabled(true))
	}
	if opts.BlockResources {
		setup = append(setup, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", ResourceType: network.ResourceTypeImage},
			{URLPattern: "*", ResourceType: network.ResourceTypeFont},
			{URLPattern: "*", ResourceType: network.ResourceTypeMedia},
		}))
		chromedp.ListenTarget(tabCtx, func(ev interface{}) {
			paused, ok := ev.(*fetch.EventRequestPaused)
			if !ok {
				return
			}
			go func() {
				c := chromedp.FromContext(tabCtx)
				if c == nil || c.Target == nil {
					return
				}
				execCtx := cdp.WithExecutor(tabCtx, c.Target)
				if err := fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx); err != nil {
					zap.S().Debugw("abort blocked request failed", "url", paused.Request.URL, "error", err)
				}
			}()
		})
	}

	// The first Run starts the browser; it must use the tab context itself
	// so later per-call timeouts do not tear the browser down.
	if err := chromedp.Run(tabCtx, setup); err != nil {
		cancel()
		return nil, apperr.Wrap(apperr.CodeOf(err), err, "launch browser")
	}

	return &ChromePage{ctx: tabCtx, cancel: cancel, timeout: opts.Timeout}, nil
}

// run executes actions bounded by the page timeout and the caller's ctx.
func (p *ChromePage) run(ctx context.Context, fn func(runCtx context.Context) error) error {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := fn(runCtx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *ChromePage) Navigate(ctx context.Context, url string) (*PageResponse, error) {
	var resp *network.Response
	err := p.run(ctx, func(runCtx context.Context) error {
		var err error
		resp, err = chromedp.RunResponse(runCtx, chromedp.Navigate(url))
		return err
	})
	if err != nil {
		return nil, navError(err, "navigate "+url)
	}
	return toPageResponse(resp, url), nil
}

func (p *ChromePage) WaitVisible(ctx context.Context, selector string) error {
	err := p.run(ctx, func(runCtx context.Context) error {
		return chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	})
	if err != nil {
		return apperr.Wrap(classify(err, apperr.Timeout), err, "wait for "+selector)
	}
	return nil
}

// SetValue fills a form field and fires change and blur so the portal's
// client-side formatting runs.
func (p *ChromePage) SetValue(ctx context.Context, selector, value string) error {
	js := fmt.Sprintf(`(function(){
		var el = document.querySelector(%s);
		if (!el) { return false; }
		el.dispatchEvent(new Event('change', {bubbles: true}));
		el.dispatchEvent(new Event('blur', {bubbles: true}));
		return true;
	})()`, strconv.Quote(selector))

	var found bool
	err := p.run(ctx, func(runCtx context.Context) error {
		return chromedp.Run(runCtx,
			chromedp.SetValue(selector, value, chromedp.ByQuery),
			chromedp.Evaluate(js, &found),
		)
	})
	if err != nil {
		return apperr.Wrap(classify(err, apperr.Timeout), err, "set "+selector)
	}
	if !found {
		return apperr.Newf(apperr.Unknown, "field %s disappeared", selector)
	}
	return nil
}

func (p *ChromePage) ClickAndWait(ctx context.Context, selector string) (*PageResponse, error) {
	var resp *network.Response
	err := p.run(ctx, func(runCtx context.Context) error {
		var err error
		resp, err = chromedp.RunResponse(runCtx, chromedp.Click(selector, chromedp.ByQuery))
		return err
	})
	if err != nil {
		return nil, navError(err, "click "+selector)
	}
	return toPageResponse(resp, ""), nil
}

func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, func(runCtx context.Context) error {
		return chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	})
	if err != nil {
		return "", apperr.Wrap(classify(err, apperr.Timeout), err, "read page html")
	}
	return html, nil
}

// Close kills the browser process. Safe to call more than once.
func (p *ChromePage) Close() {
	p.cancel()
}

func toPageResponse(resp *network.Response, fallbackURL string) *PageResponse {
	if resp == nil {
		return &PageResponse{URL: fallbackURL}
	}
	return &PageResponse{URL: resp.URL, MIMEType: resp.MimeType, Status: int(resp.Status)}
}

// IsAborted reports a navigation Chrome cancelled, which is what a forced
// download looks like from the page's side.
func IsAborted(err error) bool {
	return err != nil && strings.Contains(err.Error(), "net::ERR_ABORTED")
}

func navError(err error, msg string) error {
	return apperr.Wrap(classify(err, apperr.NavigationTimeout), err, msg)
}

func classify(err error, onDeadline apperr.Code) apperr.Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return onDeadline
	}
	if errors.Is(err, context.Canceled) {
		return apperr.Timeout
	}
	return apperr.CodeOf(err)
}

var _ Page = (*ChromePage)(nil)
var _ PageOpener = OpenChrome
