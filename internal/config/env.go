package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	DatabaseURL  string
	SslCertPath  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	AIAPIKey   string
	EmbedModel string
	EmbedDim   int
	GenModel   string
	OCRModel   string

	GenTemperature float64
	GenMaxTokens   int

	PortalBaseURL          string
	PortalRPS              float64
	ChromePath             string
	Headless               bool
	NavTimeout             time.Duration
	HTTPTimeout            time.Duration
	DownloadWait           time.Duration
	BackoffMin             time.Duration
	BackoffMax             time.Duration
	BlockMarkers           []string
	DirectDownloadPatterns []string

	ChunkSize     int
	ChunkOverlap  int
	BatchSize     int
	MinTextChars  int
	IngestWorkers int

	RedisURL       string
	ScrapeCacheTTL time.Duration
	EmbedCacheTTL  time.Duration

	Port        string
	JWTSecret   string
	CORSOrigins []string

	LogLevel  string
	LogFormat string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SslCertPath:  getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "sa-east-1"),
		BucketName:   getEnv("BUCKET_NAME", "procura-docs"),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:   getEnvInt("EMBED_DIM", 768),
		GenModel:   getEnv("GEN_MODEL", "gemini-1.5-flash"),
		OCRModel:   getEnv("OCR_MODEL", "gemini-1.5-flash"),

		GenTemperature: getEnvFloat("GEN_TEMPERATURE", 0.2),
		GenMaxTokens:   getEnvInt("GEN_MAX_TOKENS", 1024),

		PortalBaseURL: getEnv("PORTAL_BASE_URL", "https://sipac.ufpi.br"),
		PortalRPS:     getEnvFloat("PORTAL_RPS", 1),
		ChromePath:    getEnv("CHROME_PATH", ""),
		Headless:      getEnvBool("HEADLESS", true),
		NavTimeout:    getEnvDuration("NAV_TIMEOUT", 45*time.Second),
		HTTPTimeout:   getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		DownloadWait:  getEnvDuration("DOWNLOAD_WAIT", 30*time.Second),
		BackoffMin:    getEnvDuration("BACKOFF_MIN", 1*time.Second),
		BackoffMax:    getEnvDuration("BACKOFF_MAX", 3*time.Second),
		BlockMarkers: getEnvList("BLOCK_MARKERS", []string{
			"Acesso negado",
			"Request Rejected",
			"captcha",
			"atividade suspeita",
		}),
		DirectDownloadPatterns: getEnvList("DIRECT_DOWNLOAD_PATTERNS", []string{
			`(?i)verArquivo`,
			`(?i)\.pdf(\?|$)`,
			`(?i)download`,
		}),

		ChunkSize:     getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 200),
		BatchSize:     getEnvInt("BATCH_SIZE", 16),
		MinTextChars:  getEnvInt("MIN_TEXT_CHARS", 50),
		IngestWorkers: getEnvInt("INGEST_WORKERS", 3),

		RedisURL:       getEnv("REDIS_URL", ""),
		ScrapeCacheTTL: getEnvDuration("SCRAPE_CACHE_TTL", 10*time.Minute),
		EmbedCacheTTL:  getEnvDuration("EMBED_CACHE_TTL", 24*time.Hour),

		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	return cfg
}

// RequireAI reports whether the Gemini capabilities can be built.
func (c *Config) RequireAI() error {
	if c.AIAPIKey == "" {
		return errors.New("GEMINI_API_KEY not set")
	}
	if c.EmbedDim <= 0 {
		return errors.New("EMBED_DIM must be positive")
	}
	return nil
}

// RequireServer reports whether the HTTP API can start.
func (c *Config) RequireServer() error {
	if err := c.RequireAI(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET not set")
	}
	return nil
}

// ArchiveEnabled reports whether acquired documents are copied to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		zap.S().Warnw("env value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		zap.S().Warnw("env value is not a number, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		zap.S().Warnw("env value is not a bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		zap.S().Warnw("env value is not a duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
