package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/core/scraper"
	"github.com/markdave123-py/Procura/internal/models"
)

// ProcessService looks processes up on the portal and keeps successful
// results for ttl.
type ProcessService struct {
	scraper core.ProcessScraper
	cache   core.Cache
	ttl     time.Duration
}

func NewProcessService(s core.ProcessScraper, cache core.Cache, ttl time.Duration) *ProcessService {
	return &ProcessService{scraper: s, cache: cache, ttl: ttl}
}

// Get returns the record for protocol. refresh skips the cache. A failed
// scrape is returned together with an error carrying its category, and is
// never cached.
func (s *ProcessService) Get(ctx context.Context, protocol string, refresh bool) (*models.ProcessRecord, error) {
	p, err := scraper.ParseProtocol(protocol)
	if err != nil {
		return nil, err
	}
	key := "process:" + p.String()

	if !refresh && s.cache != nil && s.ttl > 0 {
		if rec, ok := s.cached(ctx, key); ok {
			return rec, nil
		}
	}

	rec := s.scraper.Scrape(ctx, p.String())
	if rec.ScrapeError != nil {
		return rec, apperr.New(apperr.Code(rec.ScrapeError.Category), rec.ScrapeError.Message)
	}

	if s.cache != nil && s.ttl > 0 {
		if raw, err := json.Marshal(rec); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
				zap.S().Warnw("process cache write failed", "protocol", p.String(), "error", err)
			}
		}
	}
	return rec, nil
}

func (s *ProcessService) cached(ctx context.Context, key string) (*models.ProcessRecord, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		zap.S().Warnw("process cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var rec models.ProcessRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// Forget drops the cached record, e.g. after a purge.
func (s *ProcessService) Forget(ctx context.Context, protocol string) error {
	if s.cache == nil {
		return nil
	}
	p, err := scraper.ParseProtocol(protocol)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, "process:"+p.String())
}
