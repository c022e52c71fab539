package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/models"
)

// Indexer embeds chunk texts and persists them with their position.
type Indexer struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	cfg      *IngestConfig
	now      func() time.Time
}

func NewIndexer(db core.DbClient, embedder core.EmbeddingProvider, cfg *IngestConfig) *Indexer {
	return &Indexer{db: db, embedder: embedder, cfg: cfg, now: time.Now}
}

// Index embeds chunks in batches and stores each one keyed by
// (documentID, position). The document's status moves to PROCESSING and
// ends COMPLETED or ERROR. When a batch fails it is replayed one chunk at
// a time, so every chunk before the failing one is kept. It returns the
// number of chunks stored.
func (i *Indexer) Index(ctx context.Context, processID, documentID string, chunks []string) (int, error) {
	log := zap.S().With("process", processID, "document", documentID)

	if err := i.setState(ctx, processID, documentID, models.StateProcessing, 0, ""); err != nil {
		return 0, err
	}

	stored, err := i.embedAndPersist(ctx, processID, documentID, chunks)
	if err == nil {
		err = i.dropStale(ctx, documentID, stored)
	}
	if err != nil {
		log.Warnw("indexing failed", "stored", stored, "total", len(chunks), "error", err)
		if serr := i.setState(ctx, processID, documentID, models.StateError, stored, err.Error()); serr != nil {
			log.Errorw("record indexing failure", "error", serr)
		}
		return stored, err
	}

	if err := i.setState(ctx, processID, documentID, models.StateCompleted, stored, ""); err != nil {
		return stored, err
	}
	log.Infow("document indexed", "chunks", stored)
	return stored, nil
}

func (i *Indexer) embedAndPersist(ctx context.Context, processID, documentID string, chunks []string) (int, error) {
	batch := i.cfg.batchSize()
	stored := 0

	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		texts := chunks[start:end]

		vecs, err := i.embedder.EmbedTexts(ctx, texts)
		if err == nil && len(vecs) != len(texts) {
			err = fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(texts))
		}
		if err != nil {
			if ctx.Err() != nil {
				return stored, ctx.Err()
			}
			zap.S().Debugw("batch embedding failed, replaying chunk by chunk",
				"document", documentID, "from", start, "error", err)
			n, err := i.replay(ctx, processID, documentID, start, texts)
			stored += n
			if err != nil {
				return stored, err
			}
			continue
		}

		for k, vec := range vecs {
			if err := i.persist(ctx, processID, documentID, start+k, texts[k], vec); err != nil {
				return stored, err
			}
			stored++
		}
	}
	return stored, nil
}

func (i *Indexer) replay(ctx context.Context, processID, documentID string, offset int, texts []string) (int, error) {
	for k, text := range texts {
		vecs, err := i.embedder.EmbedTexts(ctx, []string{text})
		if err == nil && len(vecs) != 1 {
			err = errors.New("embedder returned no vector")
		}
		if err != nil {
			return k, embedError(offset+k, err)
		}
		if err := i.persist(ctx, processID, documentID, offset+k, text, vecs[0]); err != nil {
			return k, err
		}
	}
	return len(texts), nil
}

// embedError keeps a categorized provider error and files anything else
// under EmbeddingFailed.
func embedError(index int, err error) error {
	if apperr.CodeOf(err) != apperr.Unknown {
		return fmt.Errorf("embed chunk %d: %w", index, err)
	}
	return apperr.Wrap(apperr.EmbeddingFailed, err, fmt.Sprintf("embed chunk %d", index))
}

// dropStale removes chunks past the new end of the document, left over
// from an earlier, longer attempt.
func (i *Indexer) dropStale(ctx context.Context, documentID string, count int) error {
	n, err := i.db.DeleteChunksFrom(ctx, documentID, count)
	if err != nil {
		return fmt.Errorf("drop stale chunks: %w", err)
	}
	if n > 0 {
		zap.S().Debugw("dropped stale chunks", "document", documentID, "count", n)
	}
	return nil
}

func (i *Indexer) persist(ctx context.Context, processID, documentID string, index int, text string, vec []float32) error {
	if want := i.dimensions(); want > 0 && len(vec) != want {
		return apperr.Newf(apperr.EmbeddingDimensionMismatch, "chunk %d: got %d dimensions, want %d", index, len(vec), want)
	}
	err := i.db.UpsertChunk(ctx, &models.Chunk{
		ID:         uuid.NewString(),
		ProcessID:  processID,
		DocumentID: documentID,
		ChunkIndex: index,
		Text:       text,
		Embedding:  vec,
		CreatedAt:  i.now(),
	})
	if err != nil {
		return fmt.Errorf("store chunk %d: %w", index, err)
	}
	return nil
}

func (i *Indexer) dimensions() int {
	if i.cfg.EmbedDim > 0 {
		return i.cfg.EmbedDim
	}
	return i.embedder.Dimensions()
}

// setState updates the status in place so fields written earlier in the
// pipeline (hash, archive key) survive.
func (i *Indexer) setState(ctx context.Context, processID, documentID, state string, chunks int, msg string) error {
	st, err := i.db.GetIngestionStatus(ctx, documentID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("read status: %w", err)
	}
	if st == nil {
		st = &models.IngestionStatus{DocumentID: documentID}
	}
	st.ProcessID = processID
	st.State = state
	st.ChunkCount = chunks
	st.Error = msg
	st.UpdatedAt = i.now()
	if err := i.db.SetIngestionStatus(ctx, st); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}
