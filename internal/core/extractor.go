package core

import (
	"context"

	"github.com/markdave123-py/Procura/internal/models"
)

// TextExtractor converts an acquired document into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, doc *models.AcquiredDocument) (string, error)
}

// DocumentAcquirer downloads the document behind a portal locator.
type DocumentAcquirer interface {
	Acquire(ctx context.Context, locator string) (*models.AcquiredDocument, error)
}

// ProcessScraper reads one case from the portal. It never returns an error:
// failures are reported on the record itself.
type ProcessScraper interface {
	Scrape(ctx context.Context, protocol string) *models.ProcessRecord
}

// Chunker splits text into bounded segments.
type Chunker interface {
	Split(text string) []string
}
