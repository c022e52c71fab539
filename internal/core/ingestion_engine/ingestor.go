package ingestion_engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
)

// ErrQueueFull is returned by Enqueue when no worker can take the job.
var ErrQueueFull = errors.New("ingestion queue is full")

type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(protocol string, force bool) error
	ProcessOne(ctx context.Context, protocol string, force bool) (*Report, error)
}

type job struct {
	protocol string
	force    bool
}

// DocumentIngestor runs process ingestion in the background:
//
// scraper:  reads the process page.
// pipeline: ingests every document found there.
// jobs:     in-memory queue of protocols to process.
type DocumentIngestor struct {
	scraper  core.ProcessScraper
	pipeline *Pipeline
	cfg      *IngestConfig
	jobs     chan job
}

var _ Ingestor = (*DocumentIngestor)(nil)

// NewDocumentIngestor constructs the ingestor with a bounded job queue.
func NewDocumentIngestor(scraper core.ProcessScraper, pipeline *Pipeline, cfg *IngestConfig) *DocumentIngestor {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	return &DocumentIngestor{
		scraper:  scraper,
		pipeline: pipeline,
		cfg:      cfg,
		jobs:     make(chan job, size),
	}
}

// Start runs numWorkers goroutines reading from the queue until ctx ends.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					zap.S().Debugw("ingestion worker shutting down", "worker", w)
					return
				case j := <-i.jobs:
					zap.S().Infow("ingesting process", "protocol", j.protocol, "worker", w, "force", j.force)
					if _, err := i.runJob(ctx, j); err != nil {
						zap.S().Errorw("process ingestion failed", "protocol", j.protocol, "error", err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a protocol without blocking.
func (i *DocumentIngestor) Enqueue(protocol string, force bool) error {
	select {
	case i.jobs <- job{protocol: protocol, force: force}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ProcessOne scrapes protocol and ingests its documents in the caller's
// goroutine.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, protocol string, force bool) (*Report, error) {
	rec := i.scraper.Scrape(ctx, protocol)
	if rec.ScrapeError != nil {
		return nil, apperr.Newf(apperr.Code(rec.ScrapeError.Category), "scrape %s: %s", protocol, rec.ScrapeError.Message)
	}
	return i.pipeline.IngestProcess(ctx, rec, force)
}

// runJob bounds a queued job so one stuck portal session cannot hold a
// worker forever.
func (i *DocumentIngestor) runJob(ctx context.Context, j job) (*Report, error) {
	timeout := i.cfg.JobTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return i.ProcessOne(jobCtx, j.protocol, j.force)
}
