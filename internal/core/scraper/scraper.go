// Package scraper drives the portal's public case search in a headless
// browser and parses the detail page into a ProcessRecord.
package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/core/fetcher"
	"github.com/markdave123-py/Procura/internal/models"
)

// Selectors locate the search workflow's controls. All are CSS selectors.
type Selectors struct {
	SearchLink   string
	RadicalInput string
	NumberInput  string
	YearInput    string
	DigitInput   string
	Submit       string
	ViewProcess  string
}

func DefaultSelectors() Selectors {
	return Selectors{
		SearchLink:   `a[href*="consulta_processo"]`,
		RadicalInput: `input[id$="RADICAL_PROTOCOLO"]`,
		NumberInput:  `input[id$="NUM_PROTOCOLO"]`,
		YearInput:    `input[id$="ANO_PROTOCOLO"]`,
		DigitInput:   `input[id$="DV_PROTOCOLO"]`,
		Submit:       `input[type="submit"][value*="Consultar"]`,
		ViewProcess:  `a[title*="Visualizar Processo"]`,
	}
}

type Options struct {
	BaseURL     string
	LandingPath string
	SearchPath  string
	// DocumentURLTemplate turns a numeric document id into a path.
	DocumentURLTemplate string
	Selectors           Selectors
	// EmptyStateMarkers identify a search with no results.
	EmptyStateMarkers []string
	// Timeout bounds the whole scrape; each step is also bounded by the
	// browser's own timeout.
	Timeout time.Duration
	Browser fetcher.BrowserOptions
}

func DefaultOptions(baseURL string) Options {
	return Options{
		BaseURL:             strings.TrimRight(baseURL, "/"),
		LandingPath:         "/public/jsp/portal.jsf",
		SearchPath:          "/public/jsp/processos/consulta_processo.jsf",
		DocumentURLTemplate: "/public/jsp/processos/documento_visualizacao.jsf?idDoc=%s",
		Selectors:           DefaultSelectors(),
		EmptyStateMarkers:   []string{"Nenhum processo encontrado", "Nenhum registro encontrado"},
		Timeout:             3 * time.Minute,
	}
}

type Scraper struct {
	open   fetcher.PageOpener
	opts   Options
	parser *DetailParser
	now    func() time.Time
}

func New(open fetcher.PageOpener, opts Options) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Minute
	}
	opts.Browser.BlockResources = true
	return &Scraper{
		open: open,
		opts: opts,
		parser: &DetailParser{
			BaseURL:             opts.BaseURL + "/",
			DocumentURLTemplate: opts.DocumentURLTemplate,
		},
		now: time.Now,
	}
}

// Scrape runs one search for protocol. It never returns nil: on failure
// the record has empty lists, status "scraping error" and a categorised
// ScrapeError.
func (s *Scraper) Scrape(ctx context.Context, protocol string) *models.ProcessRecord {
	start := s.now()
	log := zap.S().With("protocol", protocol)

	rec, err := s.scrape(ctx, protocol)
	if err != nil {
		category := scrapeCategory(err)
		log.Warnw("scrape failed", "category", category, "error", err, "elapsed", time.Since(start))
		return s.failed(protocol, category, err)
	}
	rec.ScrapeError = nil
	rec.ScrapedAt = s.now()
	log.Infow("scrape finished",
		"documents", len(rec.Documents),
		"movements", len(rec.Movements),
		"fingerprint", rec.Fingerprint,
		"elapsed", time.Since(start))
	return rec
}

func (s *Scraper) scrape(ctx context.Context, protocol string) (*models.ProcessRecord, error) {
	p, err := ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	page, err := s.open(ctx, s.opts.Browser)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	sel := s.opts.Selectors

	if _, err := page.Navigate(ctx, s.opts.BaseURL+s.opts.LandingPath); err != nil {
		return nil, err
	}
	if err := s.openSearch(ctx, page); err != nil {
		return nil, err
	}

	fields := []struct{ selector, value string }{
		{sel.RadicalInput, p.Radical},
		{sel.NumberInput, p.Number},
		{sel.YearInput, p.Year},
		{sel.DigitInput, p.Digit},
	}
	for _, f := range fields {
		if err := page.SetValue(ctx, f.selector, f.value); err != nil {
			return nil, err
		}
	}

	if _, err := page.ClickAndWait(ctx, sel.Submit); err != nil {
		return nil, err
	}

	results, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkResults(results); err != nil {
		return nil, err
	}

	if _, err := page.ClickAndWait(ctx, sel.ViewProcess); err != nil {
		return nil, err
	}
	detail, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return s.parser.Parse(detail, p.String())
}

// openSearch follows the landing page's search link and falls back to the
// search URL when the link is missing or the form never shows up.
func (s *Scraper) openSearch(ctx context.Context, page fetcher.Page) error {
	sel := s.opts.Selectors

	if landing, err := page.HTML(ctx); err == nil && hasElement(landing, sel.SearchLink) {
		if _, err := page.ClickAndWait(ctx, sel.SearchLink); err == nil {
			if err := page.WaitVisible(ctx, sel.RadicalInput); err == nil {
				return nil
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	zap.S().Debugw("search link unavailable, opening search page directly")
	if _, err := page.Navigate(ctx, s.opts.BaseURL+s.opts.SearchPath); err != nil {
		return err
	}
	return page.WaitVisible(ctx, sel.RadicalInput)
}

// checkResults tells a real empty search apart from a page we do not
// recognise.
func (s *Scraper) checkResults(html string) error {
	if hasElement(html, s.opts.Selectors.ViewProcess) {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil && containsAny(doc.Text(), s.opts.EmptyStateMarkers) {
		return apperr.New(apperr.NotFound, "search returned no process")
	}
	return apperr.New(apperr.Unknown, "results page has no view-process link")
}

func (s *Scraper) failed(protocol string, category apperr.Code, err error) *models.ProcessRecord {
	return &models.ProcessRecord{
		Number:      protocol,
		Status:      models.StatusScrapingError,
		Interested:  []models.InterestedParty{},
		Documents:   []models.DocumentRef{},
		Movements:   []models.MovementEvent{},
		Incidents:   []models.CancellationIncident{},
		ScrapeError: &models.ScrapeError{Category: string(category), Message: err.Error()},
		ScrapedAt:   s.now(),
	}
}

// scrapeCategory narrows any failure to the five categories a scrape
// reports.
func scrapeCategory(err error) apperr.Code {
	switch code := apperr.CodeOf(err); code {
	case apperr.InvalidFormat, apperr.NotFound, apperr.Timeout, apperr.NetworkFailure:
		return code
	case apperr.NavigationTimeout, apperr.DownloadTimeout:
		return apperr.Timeout
	default:
		return apperr.Unknown
	}
}

func hasElement(html, selector string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

var _ core.ProcessScraper = (*Scraper)(nil)
