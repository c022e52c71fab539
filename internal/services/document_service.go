package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/core/ingestion_engine"
	"github.com/markdave123-py/Procura/internal/core/scraper"
	"github.com/markdave123-py/Procura/internal/models"
)

// DocumentService manages the indexed documents of processes: queueing
// ingestion, reporting status and purging.
type DocumentService struct {
	db       core.DbClient
	storage  core.ObjectClient
	ingestor ingestion_engine.Ingestor
}

// NewDocumentService wires the service. storage may be nil when archiving
// is disabled.
func NewDocumentService(db core.DbClient, storage core.ObjectClient, ingestor ingestion_engine.Ingestor) *DocumentService {
	return &DocumentService{db: db, storage: storage, ingestor: ingestor}
}

// PurgeResult counts what a purge removed.
type PurgeResult struct {
	ProcessID string `json:"process_id"`
	Chunks    int64  `json:"chunks"`
	Statuses  int64  `json:"statuses"`
	Archived  int    `json:"archived"`
}

// Enqueue schedules background ingestion of protocol.
func (s *DocumentService) Enqueue(protocol string, force bool) error {
	p, err := scraper.ParseProtocol(protocol)
	if err != nil {
		return err
	}
	if err := s.ingestor.Enqueue(p.String(), force); err != nil {
		if errors.Is(err, ingestion_engine.ErrQueueFull) {
			return apperr.Wrap(apperr.Timeout, err, "ingestion queue is busy, try again later")
		}
		return err
	}
	return nil
}

// Ingest runs ingestion synchronously.
func (s *DocumentService) Ingest(ctx context.Context, protocol string, force bool) (*ingestion_engine.Report, error) {
	p, err := scraper.ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}
	return s.ingestor.ProcessOne(ctx, p.String(), force)
}

func (s *DocumentService) Statuses(ctx context.Context, protocol string) ([]models.IngestionStatus, error) {
	p, err := scraper.ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}
	return s.db.ListIngestionStatuses(ctx, p.String())
}

// Purge removes every chunk and status of protocol, and the archived
// copies of its documents.
func (s *DocumentService) Purge(ctx context.Context, protocol string) (*PurgeResult, error) {
	p, err := scraper.ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}
	processID := p.String()
	res := &PurgeResult{ProcessID: processID}

	statuses, err := s.db.ListIngestionStatuses(ctx, processID)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	if s.storage != nil {
		for _, st := range statuses {
			if st.ArchiveKey == "" {
				continue
			}
			if err := s.storage.DeleteFile(ctx, st.ArchiveKey); err != nil {
				zap.S().Warnw("archive delete failed", "key", st.ArchiveKey, "error", err)
				continue
			}
			res.Archived++
		}
	}

	if res.Chunks, err = s.db.DeleteChunksByProcess(ctx, processID); err != nil {
		return nil, fmt.Errorf("delete chunks: %w", err)
	}
	if res.Statuses, err = s.db.DeleteIngestionStatuses(ctx, processID); err != nil {
		return nil, fmt.Errorf("delete statuses: %w", err)
	}

	zap.S().Infow("process purged",
		"process", processID, "chunks", res.Chunks, "statuses", res.Statuses, "archived", res.Archived)
	return res, nil
}
