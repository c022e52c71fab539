package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Procura/internal/config"
	"github.com/markdave123-py/Procura/internal/models"
)

func chunk(process, doc string, idx int, vec ...float32) *models.Chunk {
	return &models.Chunk{ProcessID: process, DocumentID: doc, ChunkIndex: idx, Text: doc, Embedding: vec}
}

func TestMemorySearchOrdersByDistanceThenPosition(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()

	require.NoError(t, m.UpsertChunk(ctx, chunk("P", "P#2", 0, 1, 0)))
	require.NoError(t, m.UpsertChunk(ctx, chunk("P", "P#1", 1, 1, 0)))
	require.NoError(t, m.UpsertChunk(ctx, chunk("P", "P#1", 0, 1, 0)))
	require.NoError(t, m.UpsertChunk(ctx, chunk("P", "P#1", 2, 0, 1)))
	require.NoError(t, m.UpsertChunk(ctx, chunk("Q", "Q#1", 0, 1, 0)))

	hits, err := m.SearchChunks(ctx, "P", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	got := make([][2]any, len(hits))
	for i, h := range hits {
		got[i] = [2]any{h.DocumentID, h.ChunkIndex}
	}
	assert.Equal(t, [][2]any{{"P#1", 0}, {"P#1", 1}, {"P#2", 0}}, got)
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)

	for range 5 {
		again, _ := m.SearchChunks(ctx, "P", []float32{1, 0}, 3)
		assert.Equal(t, hits, again, "retrieval order is deterministic")
	}
}

func TestMemorySearchEmptyProcess(t *testing.T) {
	hits, err := NewMemoryClient().SearchChunks(context.Background(), "none", []float32{1}, 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestMemoryUpsertReplacesByPosition(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()
	require.NoError(t, m.UpsertChunk(ctx, &models.Chunk{ProcessID: "P", DocumentID: "P#1", ChunkIndex: 0, Text: "old"}))
	require.NoError(t, m.UpsertChunk(ctx, &models.Chunk{ProcessID: "P", DocumentID: "P#1", ChunkIndex: 0, Text: "new"}))

	chunks, err := m.GetChunksByDocument(ctx, "P#1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "new", chunks[0].Text)
}

func TestMemoryDeletes(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()
	require.NoError(t, m.UpsertChunk(ctx, chunk("P", "P#1", 0, 1)))
	require.NoError(t, m.UpsertChunk(ctx, chunk("P", "P#2", 0, 1)))
	require.NoError(t, m.UpsertChunk(ctx, chunk("Q", "Q#1", 0, 1)))
	require.NoError(t, m.SetIngestionStatus(ctx, &models.IngestionStatus{DocumentID: "P#1", ProcessID: "P"}))

	require.NoError(t, m.UpsertChunk(ctx, chunk("P", "P#1", 1, 1)))
	require.NoError(t, m.UpsertChunk(ctx, chunk("P", "P#1", 2, 1)))
	n, _ := m.DeleteChunksFrom(ctx, "P#1", 1)
	assert.EqualValues(t, 2, n)
	kept, _ := m.GetChunksByDocument(ctx, "P#1")
	require.Len(t, kept, 1)
	assert.Equal(t, 0, kept[0].ChunkIndex)

	n, _ = m.DeleteChunksByDocument(ctx, "P#2")
	assert.EqualValues(t, 1, n)
	n, _ = m.DeleteChunksByProcess(ctx, "P")
	assert.EqualValues(t, 1, n)
	n, _ = m.DeleteIngestionStatuses(ctx, "P")
	assert.EqualValues(t, 1, n)

	left, _ := m.GetChunksByDocument(ctx, "Q#1")
	assert.Len(t, left, 1)
}

func TestMemoryStatuses(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()

	st, err := m.GetIngestionStatus(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, m.SetIngestionStatus(ctx, &models.IngestionStatus{DocumentID: "P#2", ProcessID: "P", State: models.StatePending}))
	require.NoError(t, m.SetIngestionStatus(ctx, &models.IngestionStatus{DocumentID: "P#1", ProcessID: "P", State: models.StateCompleted}))

	list, err := m.ListIngestionStatuses(ctx, "P")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "P#1", list[0].DocumentID)
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()
	require.NoError(t, m.CreateUser(ctx, &models.User{ID: "1", Email: "Ana@ufpi.br"}))
	assert.Error(t, m.CreateUser(ctx, &models.User{ID: "2", Email: "ana@ufpi.br"}))

	u, err := m.GetUserByEmail(ctx, "ana@UFPI.br")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "1", u.ID)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 1.0, CosineDistance([]float32{1}, []float32{1, 0}))
}

func TestBuildDSN(t *testing.T) {
	_, err := buildDSN(&config.Config{})
	assert.Error(t, err)

	dsn, err := buildDSN(&config.Config{DatabaseURL: "postgres://u:p@localhost/procura"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/procura", dsn)

	_, err = buildDSN(&config.Config{DatabaseURL: "postgres://localhost/x", SslCertPath: "/does/not/exist.pem"})
	assert.Error(t, err)

	cert := t.TempDir() + "/ca.pem"
	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0o600))
	dsn, err = buildDSN(&config.Config{DatabaseURL: "postgres://localhost/x", SslCertPath: cert})
	require.NoError(t, err)
	assert.Contains(t, dsn, "sslmode=verify-ca")
	assert.Contains(t, dsn, "sslrootcert=")
}
