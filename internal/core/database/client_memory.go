package db

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/models"
)

var _ core.DbClient = (*MemoryClient)(nil)

type chunkKey struct {
	documentID string
	index      int
}

// MemoryClient keeps users, chunks and statuses in process memory. It is
// used when no DATABASE_URL is configured and in tests; search ranks
// chunks exactly like the pgvector query.
type MemoryClient struct {
	mu       sync.RWMutex
	users    map[string]models.User
	chunks   map[chunkKey]models.Chunk
	statuses map[string]models.IngestionStatus
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		users:    map[string]models.User{},
		chunks:   map[chunkKey]models.Chunk{},
		statuses: map[string]models.IngestionStatus{},
	}
}

func (m *MemoryClient) Close() error { return nil }

func (m *MemoryClient) CreateUser(_ context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, ok := m.users[key]; ok {
		return errors.New("duplicate email")
	}
	m.users[key] = *user
	return nil
}

func (m *MemoryClient) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryClient) UpsertChunk(_ context.Context, ch *models.Chunk) error {
	if ch == nil {
		return errors.New("nil chunk")
	}
	c := *ch
	c.Embedding = slices.Clone(ch.Embedding)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[chunkKey{ch.DocumentID, ch.ChunkIndex}] = c
	return nil
}

func (m *MemoryClient) GetChunksByDocument(_ context.Context, documentID string) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Chunk{}
	for k, c := range m.chunks {
		if k.documentID == documentID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Chunk) int { return a.ChunkIndex - b.ChunkIndex })
	return out, nil
}

func (m *MemoryClient) SearchChunks(_ context.Context, processID string, vec []float32, k int) ([]models.ScoredChunk, error) {
	m.mu.RLock()
	out := []models.ScoredChunk{}
	for _, c := range m.chunks {
		if c.ProcessID != processID {
			continue
		}
		out = append(out, models.ScoredChunk{Chunk: c, Distance: CosineDistance(vec, c.Embedding)})
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.ScoredChunk) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		if c := strings.Compare(a.DocumentID, b.DocumentID); c != 0 {
			return c
		}
		return a.ChunkIndex - b.ChunkIndex
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *MemoryClient) DeleteChunksByDocument(_ context.Context, documentID string) (int64, error) {
	return m.deleteChunks(func(c models.Chunk) bool { return c.DocumentID == documentID }), nil
}

func (m *MemoryClient) DeleteChunksFrom(_ context.Context, documentID string, fromIndex int) (int64, error) {
	return m.deleteChunks(func(c models.Chunk) bool {
		return c.DocumentID == documentID && c.ChunkIndex >= fromIndex
	}), nil
}

func (m *MemoryClient) DeleteChunksByProcess(_ context.Context, processID string) (int64, error) {
	return m.deleteChunks(func(c models.Chunk) bool { return c.ProcessID == processID }), nil
}

func (m *MemoryClient) deleteChunks(match func(models.Chunk) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, c := range m.chunks {
		if match(c) {
			delete(m.chunks, k)
			n++
		}
	}
	return n
}

func (m *MemoryClient) SetIngestionStatus(_ context.Context, st *models.IngestionStatus) error {
	if st == nil {
		return errors.New("nil status")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[st.DocumentID] = *st
	return nil
}

func (m *MemoryClient) GetIngestionStatus(_ context.Context, documentID string) (*models.IngestionStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[documentID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryClient) ListIngestionStatuses(_ context.Context, processID string) ([]models.IngestionStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.IngestionStatus{}
	for _, st := range m.statuses {
		if st.ProcessID == processID {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b models.IngestionStatus) int { return strings.Compare(a.DocumentID, b.DocumentID) })
	return out, nil
}

func (m *MemoryClient) DeleteIngestionStatuses(_ context.Context, processID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, st := range m.statuses {
		if st.ProcessID == processID {
			delete(m.statuses, id)
			n++
		}
	}
	return n, nil
}

// CosineDistance is 1 - cosine similarity, the pgvector <=> operator. A
// zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
