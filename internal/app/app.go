// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/config"
	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/core/acquirer"
	"github.com/markdave123-py/Procura/internal/core/cache"
	db "github.com/markdave123-py/Procura/internal/core/database"
	"github.com/markdave123-py/Procura/internal/core/fetcher"
	"github.com/markdave123-py/Procura/internal/core/ingestion_engine"
	"github.com/markdave123-py/Procura/internal/core/llm"
	objectclient "github.com/markdave123-py/Procura/internal/core/object-client"
	"github.com/markdave123-py/Procura/internal/core/retriever"
	"github.com/markdave123-py/Procura/internal/core/scraper"
	"github.com/markdave123-py/Procura/internal/services"
)

// App holds every long-lived dependency of the service.
type App struct {
	Config   *config.Config
	DBClient core.DbClient
	Cache    core.Cache
	Ingestor *ingestion_engine.DocumentIngestor
	Services Services

	closers []func() error
}

// NewScraper builds the portal scraper from config. It needs no storage
// and no AI credentials.
func NewScraper(cfg *config.Config) *scraper.Scraper {
	opts := scraper.DefaultOptions(cfg.PortalBaseURL)
	opts.Browser = browserOptions(cfg)
	return scraper.New(fetcher.OpenChrome, opts)
}

func browserOptions(cfg *config.Config) fetcher.BrowserOptions {
	return fetcher.BrowserOptions{
		ExecPath:       cfg.ChromePath,
		Headless:       cfg.Headless,
		UserAgent:      fetcher.DefaultUserAgent,
		Timeout:        cfg.NavTimeout,
		BlockResources: true,
	}
}

// NewApp connects storage, the Gemini clients and the ingestion pipeline.
// Without DATABASE_URL chunks live in memory; without REDIS_URL so does
// the cache; archiving runs only when S3 is configured.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.RequireAI(); err != nil {
		return nil, err
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if cfg.DatabaseURL != "" {
		dbClient, err := db.NewDatabaseClient(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		a.DBClient = dbClient
		zap.S().Infow("database initialized and ready")
	} else {
		a.DBClient = db.NewMemoryClient()
		zap.S().Warnw("DATABASE_URL not set, chunks are kept in memory")
	}
	a.closers = append(a.closers, a.DBClient.Close)

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(appCtx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.Cache = rc
		a.closers = append(a.closers, rc.Close)
	} else {
		a.Cache = cache.NewMemory()
	}

	var objClient core.ObjectClient
	if cfg.ArchiveEnabled() {
		s3c, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		objClient = s3c
		zap.S().Infow("object client initialized and ready", "bucket", cfg.BucketName)
	}

	geminiEmbedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	a.closers = append(a.closers, geminiEmbedder.Close)
	embedder := llm.NewCachedEmbedder(geminiEmbedder, a.Cache, cfg.EmbedModel, cfg.EmbedCacheTTL)

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel, llm.GenerationOptions{
		Temperature:     float32(cfg.GenTemperature),
		MaxOutputTokens: int32(cfg.GenMaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
	}
	a.closers = append(a.closers, llmProvider.Close)

	transcriber, err := llm.NewGeminiTranscriber(appCtx, cfg.AIAPIKey, cfg.OCRModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the transcriber, %w", err)
	}
	a.closers = append(a.closers, transcriber.Close)

	acq, err := acquirer.New(
		fetcher.NewHTTPClient(fetcher.HTTPOptions{
			BaseURL: cfg.PortalBaseURL,
			Timeout: cfg.HTTPTimeout,
			RPS:     cfg.PortalRPS,
		}),
		fetcher.OpenChrome,
		acquirer.NewBlockDetector(cfg.BlockMarkers),
		acquirer.Options{
			DirectPatterns: cfg.DirectDownloadPatterns,
			BackoffMin:     cfg.BackoffMin,
			BackoffMax:     cfg.BackoffMax,
			DownloadWait:   cfg.DownloadWait,
			Browser:        browserOptions(cfg),
		},
	)
	if err != nil {
		return nil, err
	}

	ingCfg := ingestion_engine.NewIngestConfig(cfg)
	chunker, err := ingestion_engine.NewRecursiveChunker(ingestion_engine.ChunkerOptions{
		ChunkSize: ingCfg.ChunkSize,
		Overlap:   ingCfg.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	useReadability := false
	documentExtractor := ingestion_engine.NewDocumentExtractor(transcriber, ingCfg.MinTextChars, useReadability)
	indexer := ingestion_engine.NewIndexer(a.DBClient, embedder, ingCfg)
	pipeline := ingestion_engine.NewPipeline(a.DBClient, objClient, acq, documentExtractor, chunker, indexer, ingCfg)

	processScraper := NewScraper(cfg)
	a.Ingestor = ingestion_engine.NewDocumentIngestor(processScraper, pipeline, ingCfg)

	a.Services = Services{
		Users:     services.NewUserService(a.DBClient),
		Processes: services.NewProcessService(processScraper, a.Cache, cfg.ScrapeCacheTTL),
		Documents: services.NewDocumentService(a.DBClient, objClient, a.Ingestor),
		Chat:      services.NewChatService(retriever.New(a.DBClient, embedder, cfg.EmbedDim), llmProvider, retriever.DefaultTopK),
	}

	ok = true
	return a, nil
}

// Close releases clients in reverse construction order.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		zap.S().Warnw("closing app", "error", err)
	}
}
