package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("EMBED_DIM", "")
	t.Setenv("GEN_TEMPERATURE", "")
	t.Setenv("GEN_MAX_TOKENS", "")
	t.Setenv("BLOCK_MARKERS", "")

	cfg := LoadConfig()

	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 768, cfg.EmbedDim)
	assert.InDelta(t, 0.2, cfg.GenTemperature, 1e-9)
	assert.Equal(t, 1024, cfg.GenMaxTokens)
	assert.True(t, cfg.Headless)
	assert.Contains(t, cfg.BlockMarkers, "captcha")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("HEADLESS", "false")
	t.Setenv("NAV_TIMEOUT", "5s")
	t.Setenv("PORTAL_RPS", "0.5")
	t.Setenv("BLOCK_MARKERS", " blocked , ,denied ")

	cfg := LoadConfig()

	assert.Equal(t, 500, cfg.ChunkSize)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 5*time.Second, cfg.NavTimeout)
	assert.InDelta(t, 0.5, cfg.PortalRPS, 1e-9)
	assert.Equal(t, []string{"blocked", "denied"}, cfg.BlockMarkers)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "big")
	t.Setenv("DOWNLOAD_WAIT", "forever")
	t.Setenv("HEADLESS", "maybe")

	assert.Equal(t, 1000, getEnvInt("CHUNK_SIZE", 1000))
	assert.Equal(t, time.Minute, getEnvDuration("DOWNLOAD_WAIT", time.Minute))
	assert.True(t, getEnvBool("HEADLESS", true))
}

func TestRequirements(t *testing.T) {
	cfg := &Config{EmbedDim: 768}
	assert.Error(t, cfg.RequireAI())

	cfg.AIAPIKey = "k"
	assert.NoError(t, cfg.RequireAI())
	assert.Error(t, cfg.RequireServer())

	cfg.JWTSecret = "s"
	assert.NoError(t, cfg.RequireServer())

	assert.False(t, cfg.ArchiveEnabled())
	cfg.AwsAccessKey, cfg.AwsSecretKey, cfg.BucketName = "a", "b", "c"
	assert.True(t, cfg.ArchiveEnabled())
}
