package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core/cache"
	db "github.com/markdave123-py/Procura/internal/core/database"
	"github.com/markdave123-py/Procura/internal/core/ingestion_engine"
	"github.com/markdave123-py/Procura/internal/models"
)

const protocol = "23068.123456/2023-99"

type countingScraper struct {
	mu    sync.Mutex
	calls int
	fail  *models.ScrapeError
}

func (s *countingScraper) Scrape(_ context.Context, p string) *models.ProcessRecord {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail != nil {
		return &models.ProcessRecord{Number: p, Status: models.StatusScrapingError, ScrapeError: s.fail}
	}
	return &models.ProcessRecord{Number: p, Status: "Em andamento", ScrapedAt: time.Now()}
}

func TestProcessServiceCachesSuccess(t *testing.T) {
	sc := &countingScraper{}
	svc := NewProcessService(sc, cache.NewMemory(), time.Minute)
	ctx := context.Background()

	rec, err := svc.Get(ctx, protocol, false)
	require.NoError(t, err)
	assert.Equal(t, protocol, rec.Number)

	_, err = svc.Get(ctx, " "+protocol+" ", false)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.calls)

	_, err = svc.Get(ctx, protocol, true)
	require.NoError(t, err)
	assert.Equal(t, 2, sc.calls)

	require.NoError(t, svc.Forget(ctx, protocol))
	_, err = svc.Get(ctx, protocol, false)
	require.NoError(t, err)
	assert.Equal(t, 3, sc.calls)
}

func TestProcessServiceNeverCachesFailures(t *testing.T) {
	sc := &countingScraper{fail: &models.ScrapeError{Category: string(apperr.NotFound), Message: "no results"}}
	svc := NewProcessService(sc, cache.NewMemory(), time.Minute)

	for range 2 {
		rec, err := svc.Get(context.Background(), protocol, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Equal(t, models.StatusScrapingError, rec.Status)
	}
	assert.Equal(t, 2, sc.calls)
}

func TestProcessServiceRejectsBadProtocol(t *testing.T) {
	sc := &countingScraper{}
	_, err := NewProcessService(sc, nil, 0).Get(context.Background(), "123", false)
	assert.ErrorIs(t, err, apperr.ErrInvalidFormat)
	assert.Zero(t, sc.calls)
}

type fakeIngestor struct {
	queued []string
	full   bool
}

func (f *fakeIngestor) Start(context.Context, int) {}

func (f *fakeIngestor) Enqueue(p string, _ bool) error {
	if f.full {
		return ingestion_engine.ErrQueueFull
	}
	f.queued = append(f.queued, p)
	return nil
}

func (f *fakeIngestor) ProcessOne(_ context.Context, p string, _ bool) (*ingestion_engine.Report, error) {
	return &ingestion_engine.Report{ProcessID: p, Indexed: 1}, nil
}

type fakeStorage struct {
	deleted []string
	fail    string
}

func (f *fakeStorage) UploadFile(context.Context, string, []byte, string) (string, error) {
	return "", nil
}

func (f *fakeStorage) DeleteFile(_ context.Context, key string) error {
	if key == f.fail {
		return errors.New("access denied")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func TestDocumentServiceEnqueue(t *testing.T) {
	ing := &fakeIngestor{}
	svc := NewDocumentService(db.NewMemoryClient(), nil, ing)

	require.NoError(t, svc.Enqueue(" "+protocol, false))
	assert.Equal(t, []string{protocol}, ing.queued)

	assert.ErrorIs(t, svc.Enqueue("bad", false), apperr.ErrInvalidFormat)

	ing.full = true
	err := svc.Enqueue(protocol, false)
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	assert.ErrorIs(t, err, ingestion_engine.ErrQueueFull)
}

func TestDocumentServicePurge(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryClient()
	for i, key := range []string{"processes/a/1.pdf", "processes/b/2.pdf", ""} {
		docID := ingestion_engine.DocumentID(protocol, i+1)
		require.NoError(t, store.SetIngestionStatus(ctx, &models.IngestionStatus{
			DocumentID: docID, ProcessID: protocol, State: models.StateCompleted, ArchiveKey: key,
		}))
		require.NoError(t, store.UpsertChunk(ctx, &models.Chunk{
			ID: docID, ProcessID: protocol, DocumentID: docID, Text: "x", Embedding: []float32{1},
		}))
	}
	require.NoError(t, store.UpsertChunk(ctx, &models.Chunk{
		ID: "other", ProcessID: "99999.999999/2024-00", DocumentID: "other#1", Text: "y", Embedding: []float32{1},
	}))

	storage := &fakeStorage{fail: "processes/b/2.pdf"}
	svc := NewDocumentService(store, storage, &fakeIngestor{})

	res, err := svc.Purge(ctx, protocol)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Chunks)
	assert.Equal(t, int64(3), res.Statuses)
	assert.Equal(t, 1, res.Archived)
	assert.Equal(t, []string{"processes/a/1.pdf"}, storage.deleted)

	statuses, err := svc.Statuses(ctx, protocol)
	require.NoError(t, err)
	assert.Empty(t, statuses)

	left, err := store.GetChunksByDocument(ctx, "other#1")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestUserServiceRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(db.NewMemoryClient())

	u, err := svc.Register(ctx, "Ana", " Ana@Example.com ", "segredo123")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NotEqual(t, "segredo123", u.PasswordHash)

	_, err = svc.Register(ctx, "Ana", "ana@example.com", "outrasenha")
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := svc.Authenticate(ctx, "ANA@example.com", "segredo123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ana@example.com", "errada")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "ninguem@example.com", "segredo123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserServiceValidation(t *testing.T) {
	svc := NewUserService(db.NewMemoryClient())
	_, err := svc.Register(context.Background(), "Ana", "not-an-email", "segredo123")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	_, err = svc.Register(context.Background(), "Ana", "ana@example.com", "curta")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

type fakeRetriever struct {
	hits []models.ScoredChunk
	err  error
}

func (f fakeRetriever) Retrieve(context.Context, string, string, int) ([]models.ScoredChunk, error) {
	return f.hits, f.err
}

type fakeLLM struct {
	answer string
	err    error
	prompt string
	calls  int
}

func (f *fakeLLM) Generate(_ context.Context, _ string, userPrompt string) (string, error) {
	f.calls++
	f.prompt = userPrompt
	return f.answer, f.err
}

func TestChatServiceRefusesWithoutContext(t *testing.T) {
	llm := &fakeLLM{answer: "inventado"}
	svc := NewChatService(fakeRetriever{hits: []models.ScoredChunk{}}, llm, 0)

	ans, err := svc.Ask(context.Background(), protocol, "qual o valor?", nil)
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, ans.Answer)
	assert.False(t, ans.Grounded)
	assert.Empty(t, ans.Sources)
	assert.Zero(t, llm.calls)
}

func TestChatServiceGroundsAnswer(t *testing.T) {
	hits := []models.ScoredChunk{
		{Chunk: models.Chunk{DocumentID: protocol + "#2", ChunkIndex: 0, Text: "Valor estimado: R$ 10.000,00"}, Distance: 0.1},
	}
	llm := &fakeLLM{answer: " O valor é R$ 10.000,00 [1]. "}
	svc := NewChatService(fakeRetriever{hits: hits}, llm, 3)

	history := []models.ChatMessage{
		{Role: "user", Content: "do que trata o processo?"},
		{Role: "assistant", Content: "Aquisição de computadores."},
	}
	ans, err := svc.Ask(context.Background(), protocol, "qual o valor?", history)
	require.NoError(t, err)
	assert.True(t, ans.Grounded)
	assert.Equal(t, "O valor é R$ 10.000,00 [1].", ans.Answer)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, protocol+"#2", ans.Sources[0].DocumentID)

	assert.Contains(t, llm.prompt, "[1] (documento "+protocol+"#2, trecho 0)")
	assert.Contains(t, llm.prompt, "Assistente: Aquisição de computadores.")
	assert.True(t, strings.HasSuffix(llm.prompt, "Pergunta: qual o valor?"))
}

func TestChatServiceValidation(t *testing.T) {
	svc := NewChatService(fakeRetriever{}, &fakeLLM{}, 0)
	_, err := svc.Ask(context.Background(), "bad", "pergunta", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidFormat)
	_, err = svc.Ask(context.Background(), protocol, " ", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestChatServiceKeepsGenerationErrorCategory(t *testing.T) {
	hits := []models.ScoredChunk{{Chunk: models.Chunk{DocumentID: protocol + "#1", Text: "trecho"}}}

	blocked := &fakeLLM{err: apperr.New(apperr.InvalidRequest, "answer blocked by safety filters")}
	_, err := NewChatService(fakeRetriever{hits: hits}, blocked, 0).Ask(context.Background(), protocol, "pergunta", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	raw := &fakeLLM{err: errors.New("boom")}
	_, err = NewChatService(fakeRetriever{hits: hits}, raw, 0).Ask(context.Background(), protocol, "pergunta", nil)
	assert.Equal(t, apperr.Internal, apperr.CodeOf(err))
}

func TestBuildPromptKeepsRecentHistory(t *testing.T) {
	var history []models.ChatMessage
	for i := range maxHistory + 5 {
		history = append(history, models.ChatMessage{Role: "user", Content: strings.Repeat("x", i+1)})
	}
	prompt := buildPrompt("ctx", "q", history)
	assert.NotContains(t, prompt, "Usuário: x\n")
	assert.Contains(t, prompt, "Usuário: "+strings.Repeat("x", maxHistory+5)+"\n")
}
