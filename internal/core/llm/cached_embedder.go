package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/core"
)

// CachedEmbedder answers repeated texts from a cache and only sends the
// misses to the wrapped provider. Cache failures fall through to the
// provider.
type CachedEmbedder struct {
	next  core.EmbeddingProvider
	cache core.Cache
	ttl   time.Duration
	model string
}

func NewCachedEmbedder(next core.EmbeddingProvider, cache core.Cache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, ttl: ttl, model: model}
}

func (c *CachedEmbedder) Dimensions() int { return c.next.Dimensions() }

func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, t := range texts {
		if vec, ok := c.lookup(ctx, t); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.next.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(missTexts))
	}
	for k, vec := range vecs {
		out[missIdx[k]] = vec
		if err := c.cache.Set(ctx, c.key(missTexts[k]), encodeVector(vec), c.ttl); err != nil {
			zap.S().Debugw("embedding cache write failed", "error", err)
		}
	}
	return out, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, text string) ([]float32, bool) {
	raw, ok, err := c.cache.Get(ctx, c.key(text))
	if err != nil {
		zap.S().Debugw("embedding cache read failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	vec, ok := decodeVector(raw)
	if !ok || len(vec) != c.next.Dimensions() {
		return nil, false
	}
	return vec, true
}

// key includes the model so switching models never serves stale vectors.
func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) ([]float32, bool) {
	if len(b)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, true
}

var _ core.EmbeddingProvider = (*CachedEmbedder)(nil)
