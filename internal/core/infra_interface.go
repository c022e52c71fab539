package core

import (
	"context"
	"time"

	"github.com/markdave123-py/Procura/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) (err error)
	GetUserByEmail(ctx context.Context, email string) (user *models.User, err error)

	// UpsertChunk writes one chunk keyed by (DocumentID, ChunkIndex).
	UpsertChunk(ctx context.Context, chunk *models.Chunk) error
	// SearchChunks returns the k chunks of processID nearest to vec, by
	// cosine distance then (DocumentID, ChunkIndex).
	SearchChunks(ctx context.Context, processID string, vec []float32, k int) ([]models.ScoredChunk, error)
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) (int64, error)
	// DeleteChunksFrom drops the chunks of documentID at position fromIndex and later.
	DeleteChunksFrom(ctx context.Context, documentID string, fromIndex int) (int64, error)
	DeleteChunksByProcess(ctx context.Context, processID string) (int64, error)

	SetIngestionStatus(ctx context.Context, status *models.IngestionStatus) error
	GetIngestionStatus(ctx context.Context, documentID string) (*models.IngestionStatus, error)
	ListIngestionStatuses(ctx context.Context, processID string) ([]models.IngestionStatus, error)
	DeleteIngestionStatuses(ctx context.Context, processID string) (int64, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, key string) error
}

// Cache is a byte-valued store with per-entry TTL. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
