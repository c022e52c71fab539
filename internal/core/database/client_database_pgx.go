package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/Procura/internal/config"
	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/models"
)

var _ core.DbClient = (*DatabaseClient)(nil)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// buildDSN appends certificate verification to DATABASE_URL when
// SSL_CERT_PATH is set.
func buildDSN(cfg *config.Config) (string, error) {
	if cfg.DatabaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is empty")
	}
	if cfg.SslCertPath == "" {
		return cfg.DatabaseURL, nil
	}
	if _, err := os.Stat(cfg.SslCertPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", cfg.SslCertPath, err)
	}

	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", cfg.SslCertPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FirstName, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Chunks

// UpsertChunk overwrites the chunk at (document_id, chunk_index), so a
// replayed document never duplicates rows.
func (c *DatabaseClient) UpsertChunk(ctx context.Context, ch *models.Chunk) error {
	if ch == nil {
		return errors.New("nil chunk")
	}
	const q = `
		INSERT INTO document_chunks
			(id, process_id, document_id, chunk_index, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (document_id, chunk_index) DO UPDATE
		SET process_id = EXCLUDED.process_id,
		    text       = EXCLUDED.text,
		    embedding  = EXCLUDED.embedding,
		    created_at = EXCLUDED.created_at
	`
	_, err := c.db.ExecContext(ctx, q,
		ch.ID, ch.ProcessID, ch.DocumentID, ch.ChunkIndex, ch.Text, pgvector.NewVector(ch.Embedding), ch.CreatedAt)
	return err
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	const q = `
		SELECT id, process_id, document_id, chunk_index, text, embedding, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Chunk{}
	for rows.Next() {
		var (
			ch  models.Chunk
			emb pgvector.Vector
		)
		if err := rows.Scan(
			&ch.ID, &ch.ProcessID, &ch.DocumentID, &ch.ChunkIndex, &ch.Text, &emb, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}

// SearchChunks finds the k chunks of a process closest to queryVec by
// cosine distance. Ties keep document and position order.
func (c *DatabaseClient) SearchChunks(ctx context.Context, processID string, queryVec []float32, k int) ([]models.ScoredChunk, error) {
	const q = `
		SELECT id, process_id, document_id, chunk_index, text, created_at, embedding <=> $2 AS distance
		FROM document_chunks
		WHERE process_id = $1
		ORDER BY distance ASC, document_id ASC, chunk_index ASC
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, processID, pgvector.NewVector(queryVec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ScoredChunk{}
	for rows.Next() {
		var sc models.ScoredChunk
		if err := rows.Scan(
			&sc.ID, &sc.ProcessID, &sc.DocumentID, &sc.ChunkIndex, &sc.Text, &sc.CreatedAt, &sc.Distance,
		); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteChunksByDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *DatabaseClient) DeleteChunksFrom(ctx context.Context, documentID string, fromIndex int) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1 AND chunk_index >= $2`, documentID, fromIndex)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *DatabaseClient) DeleteChunksByProcess(ctx context.Context, processID string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE process_id = $1`, processID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ingestion status

func (c *DatabaseClient) SetIngestionStatus(ctx context.Context, st *models.IngestionStatus) error {
	if st == nil {
		return errors.New("nil status")
	}
	const q = `
		INSERT INTO ingestion_status
			(document_id, process_id, state, error, chunk_count, content_hash, archive_key, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id) DO UPDATE
		SET process_id   = EXCLUDED.process_id,
		    state        = EXCLUDED.state,
		    error        = EXCLUDED.error,
		    chunk_count  = EXCLUDED.chunk_count,
		    content_hash = EXCLUDED.content_hash,
		    archive_key  = EXCLUDED.archive_key,
		    updated_at   = EXCLUDED.updated_at
	`
	_, err := c.db.ExecContext(ctx, q,
		st.DocumentID, st.ProcessID, st.State, st.Error, st.ChunkCount, st.ContentHash, st.ArchiveKey, st.UpdatedAt)
	return err
}

// GetIngestionStatus returns nil, nil when the document was never seen.
func (c *DatabaseClient) GetIngestionStatus(ctx context.Context, documentID string) (*models.IngestionStatus, error) {
	const q = `
		SELECT document_id, process_id, state, error, chunk_count, content_hash, archive_key, updated_at
		FROM ingestion_status WHERE document_id = $1
	`
	var st models.IngestionStatus
	err := c.db.QueryRowContext(ctx, q, documentID).Scan(
		&st.DocumentID, &st.ProcessID, &st.State, &st.Error, &st.ChunkCount, &st.ContentHash, &st.ArchiveKey, &st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *DatabaseClient) ListIngestionStatuses(ctx context.Context, processID string) ([]models.IngestionStatus, error) {
	const q = `
		SELECT document_id, process_id, state, error, chunk_count, content_hash, archive_key, updated_at
		FROM ingestion_status
		WHERE process_id = $1
		ORDER BY document_id ASC
	`
	rows, err := c.db.QueryContext(ctx, q, processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.IngestionStatus{}
	for rows.Next() {
		var st models.IngestionStatus
		if err := rows.Scan(
			&st.DocumentID, &st.ProcessID, &st.State, &st.Error, &st.ChunkCount, &st.ContentHash, &st.ArchiveKey, &st.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteIngestionStatuses(ctx context.Context, processID string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM ingestion_status WHERE process_id = $1`, processID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
