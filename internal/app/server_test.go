package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/config"
	"github.com/markdave123-py/Procura/internal/core/cache"
	db "github.com/markdave123-py/Procura/internal/core/database"
	"github.com/markdave123-py/Procura/internal/core/ingestion_engine"
	"github.com/markdave123-py/Procura/internal/models"
	"github.com/markdave123-py/Procura/internal/services"
)

const protocol = "23068.123456/2023-99"

type stubScraper struct{}

func (stubScraper) Scrape(_ context.Context, p string) *models.ProcessRecord {
	if p == "99999.999999/2024-00" {
		return &models.ProcessRecord{
			Number:      p,
			Status:      models.StatusScrapingError,
			ScrapeError: &models.ScrapeError{Category: string(apperr.NotFound), Message: "no results"},
		}
	}
	return &models.ProcessRecord{Number: p, Status: "Em andamento"}
}

type stubIngestor struct{ queued []string }

func (s *stubIngestor) Start(context.Context, int) {}

func (s *stubIngestor) Enqueue(p string, _ bool) error {
	s.queued = append(s.queued, p)
	return nil
}

func (s *stubIngestor) ProcessOne(context.Context, string, bool) (*ingestion_engine.Report, error) {
	return &ingestion_engine.Report{}, nil
}

type stubRetriever struct{}

func (stubRetriever) Retrieve(context.Context, string, string, int) ([]models.ScoredChunk, error) {
	return []models.ScoredChunk{}, nil
}

type stubLLM struct{}

func (stubLLM) Generate(context.Context, string, string) (string, error) { return "resposta", nil }

type harness struct {
	handler  http.Handler
	store    *db.MemoryClient
	ingestor *stubIngestor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", CORSOrigins: []string{"http://localhost:5173"}}
	store := db.NewMemoryClient()
	ing := &stubIngestor{}
	svc := Services{
		Users:     services.NewUserService(store),
		Processes: services.NewProcessService(stubScraper{}, cache.NewMemory(), time.Minute),
		Documents: services.NewDocumentService(store, nil, ing),
		Chat:      services.NewChatService(stubRetriever{}, stubLLM{}, 0),
	}
	return &harness{handler: NewRouter(cfg, svc), store: store, ingestor: ing}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) token(t *testing.T) string {
	t.Helper()
	creds := map[string]string{"first_name": "Ana", "email": "ana@example.com", "password": "segredo123"}
	rec := h.do(t, http.MethodPost, "/api/signup", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out["token"])
	return out["token"]
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	h.token(t)

	dup := h.do(t, http.MethodPost, "/api/signup", "", map[string]string{"email": "ana@example.com", "password": "segredo123"})
	assert.Equal(t, http.StatusConflict, dup.Code)

	bad := h.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "ana@example.com", "password": "errada"})
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	short := h.do(t, http.MethodPost, "/api/signup", "", map[string]string{"email": "b@example.com", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, short.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/processes?protocol="+protocol, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/processes?protocol="+protocol, "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetProcess(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t)

	rec := h.do(t, http.MethodGet, "/api/processes?protocol="+protocol, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.ProcessRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, protocol, got.Number)

	rec = h.do(t, http.MethodGet, "/api/processes?protocol=abc", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(apperr.InvalidFormat))

	rec = h.do(t, http.MethodGet, "/api/processes?protocol=99999.999999/2024-00", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "scraping_last_error")
}

func TestIngestAndStatus(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t)

	rec := h.do(t, http.MethodPost, "/api/processes/ingest", tok, map[string]any{"protocol": protocol})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{protocol}, h.ingestor.queued)

	require.NoError(t, h.store.SetIngestionStatus(context.Background(), &models.IngestionStatus{
		DocumentID: protocol + "#1", ProcessID: protocol, State: models.StateCompleted, ChunkCount: 4,
	}))
	rec = h.do(t, http.MethodGet, "/api/processes/status?protocol="+protocol, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []models.IngestionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, 4, statuses[0].ChunkCount)

	rec = h.do(t, http.MethodDelete, "/api/admin/chunks?protocol="+protocol, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"statuses":1`)
}

func TestChatQueryRefusesWithoutContext(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t)

	rec := h.do(t, http.MethodPost, "/api/chat/query", tok, map[string]any{"protocol": protocol, "query": "qual o valor?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var ans services.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans))
	assert.Equal(t, services.NoContextAnswer, ans.Answer)

	rec = h.do(t, http.MethodPost, "/api/chat/query", tok, map[string]any{"protocol": protocol})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
