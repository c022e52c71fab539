package ingestion_engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Procura/internal/apperr"
	db "github.com/markdave123-py/Procura/internal/core/database"
	"github.com/markdave123-py/Procura/internal/models"
)

type fakeScraper struct {
	records map[string]*models.ProcessRecord
}

func (f *fakeScraper) Scrape(_ context.Context, protocol string) *models.ProcessRecord {
	if rec, ok := f.records[protocol]; ok {
		return rec
	}
	return &models.ProcessRecord{
		Number:      protocol,
		Status:      models.StatusScrapingError,
		ScrapeError: &models.ScrapeError{Category: string(apperr.NotFound), Message: "search returned no process"},
	}
}

func newTestIngestor(t *testing.T, store *db.MemoryClient, cfg *IngestConfig) *DocumentIngestor {
	t.Helper()
	rec := process(models.DocumentRef{Order: 1, URL: "u1"}, models.DocumentRef{Order: 2, URL: "u2"})
	scraper := &fakeScraper{records: map[string]*models.ProcessRecord{rec.Number: rec}}
	return NewDocumentIngestor(scraper, newTestPipeline(t, store, &fakeAcquirer{}, nil), cfg)
}

func TestProcessOne(t *testing.T) {
	store := db.NewMemoryClient()
	ing := newTestIngestor(t, store, testConfig())

	report, err := ing.ProcessOne(context.Background(), "23068.123456/2023-99", false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)

	_, err = ing.ProcessOne(context.Background(), "23068.000000/2000-00", false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWorkersDrainQueue(t *testing.T) {
	store := db.NewMemoryClient()
	ing := newTestIngestor(t, store, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx, 2)

	require.NoError(t, ing.Enqueue("23068.123456/2023-99", false))

	assert.Eventually(t, func() bool {
		list, _ := store.ListIngestionStatuses(context.Background(), "23068.123456/2023-99")
		if len(list) != 2 {
			return false
		}
		for _, st := range list {
			if st.State != models.StateCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnqueueFailsWhenFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	ing := newTestIngestor(t, db.NewMemoryClient(), cfg)

	require.NoError(t, ing.Enqueue("a", false))
	assert.ErrorIs(t, ing.Enqueue("b", false), ErrQueueFull)
}
