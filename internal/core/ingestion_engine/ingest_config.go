package ingestion_engine

import (
	"time"

	"github.com/markdave123-py/Procura/internal/config"
)

// IngestConfig tunes the pipeline.
//
// ChunkSize:    characters per chunk (e.g., 1000).
// ChunkOverlap: characters shared by consecutive chunks (e.g., 200).
// BatchSize:    chunks per embedding call (e.g., 16).
// EmbedDim:     expected embedding dimension; 0 trusts the provider.
// MinTextChars: below this a document is sent to transcription.
// Workers:      documents of one process handled concurrently.
// QueueSize:    pending protocols the background ingestor holds.
// JobTimeout:   upper bound for one queued protocol.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	EmbedDim     int
	MinTextChars int
	Workers      int
	QueueSize    int
	JobTimeout   time.Duration
}

// NewIngestConfig reads the pipeline knobs from the service config.
func NewIngestConfig(cfg *config.Config) *IngestConfig {
	return &IngestConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.BatchSize,
		EmbedDim:     cfg.EmbedDim,
		MinTextChars: cfg.MinTextChars,
		Workers:      cfg.IngestWorkers,
		QueueSize:    64,
		JobTimeout:   15 * time.Minute,
	}
}

func (c *IngestConfig) batchSize() int {
	if c.BatchSize <= 0 {
		return 16
	}
	return c.BatchSize
}

func (c *IngestConfig) workers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}
