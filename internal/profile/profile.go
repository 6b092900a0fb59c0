package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// LLM fallback classifier configuration (OpenAI-compatible protocol).
	LLMAPIKey  string // Bearer token for the chat-completion endpoint
	LLMBaseURL string // Full chat-completion URL
	LLMModel   string // Model name: deepseek-chat, qwen-max, gpt-4o-mini, ...
	LLMTimeout int    // Request timeout in seconds (default: 10, hard ceiling 30)

	// Embedding encoder configuration
	ModelType   string // Embedding family tag: bge-m3, bge-large-zh, ...
	ModelPath   string // Base URL of the OpenAI-compatible embedding endpoint
	ModelAPIKey string
	ModelDevice string // cpu / gpu tag, forwarded to the serving backend
	ModelDim    int    // Embedding dimension (default: 1024)

	// Redis result cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CachePrefix   string // Key prefix for cached responses (default: "intent:")
	CacheTTL      int    // Seconds (default: 3600)
	EnableCache   bool

	// Recognition defaults
	DefaultConfidenceThreshold  float64 // 0..1, default 0.7
	SemanticSimilarityThreshold float64 // 0..1, default 0.55
	EnableLLMFallback           bool
	MaxBatchSize                int // default 100
	RequestTimeout              int // seconds, default 30
	LogQueueSize                int // async log sink capacity, default 1000

	// Security
	APIKeyHeader string // default X-API-Key
	AdminAPIKey  string // static API key accepted at the HTTP boundary; empty disables auth

	// Server
	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string
	DSN     string
	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsLLMConfigured returns true when the fallback classifier has a complete configuration.
func (p *Profile) IsLLMConfigured() bool {
	return p.LLMAPIKey != "" && p.LLMBaseURL != "" && p.LLMModel != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	// LLM fallback configuration
	p.LLMAPIKey = getEnvOrDefault("INTENTD_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("INTENTD_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("INTENTD_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("INTENTD_LLM_TIMEOUT_SECONDS", 10)
	if p.LLMTimeout > 30 {
		p.LLMTimeout = 30
	}
	p.EnableLLMFallback = getEnvOrDefaultBool("INTENTD_ENABLE_LLM_FALLBACK", false)

	// Embedding encoder configuration
	p.ModelType = getEnvOrDefault("INTENTD_MODEL_TYPE", "bge-m3")
	p.ModelPath = getEnvOrDefault("INTENTD_MODEL_PATH", "")
	p.ModelAPIKey = getEnvOrDefault("INTENTD_MODEL_API_KEY", "")
	p.ModelDevice = getEnvOrDefault("INTENTD_MODEL_DEVICE", "cpu")
	p.ModelDim = getEnvOrDefaultInt("INTENTD_MODEL_DIMENSIONS", 1024)

	// Result cache
	p.RedisAddr = getEnvOrDefault("INTENTD_REDIS_ADDR", "localhost:6379")
	p.RedisPassword = getEnvOrDefault("INTENTD_REDIS_PASSWORD", "")
	p.RedisDB = getEnvOrDefaultInt("INTENTD_REDIS_DB", 0)
	p.CachePrefix = getEnvOrDefault("INTENTD_CACHE_PREFIX", "intent:")
	p.CacheTTL = getEnvOrDefaultInt("INTENTD_CACHE_TTL", 3600)
	p.EnableCache = getEnvOrDefaultBool("INTENTD_ENABLE_CACHE", true)

	// Recognition defaults
	p.DefaultConfidenceThreshold = getEnvOrDefaultFloat("INTENTD_DEFAULT_CONFIDENCE_THRESHOLD", 0.7)
	p.SemanticSimilarityThreshold = getEnvOrDefaultFloat("INTENTD_SEMANTIC_SIMILARITY_THRESHOLD", 0.55)
	p.MaxBatchSize = getEnvOrDefaultInt("INTENTD_MAX_BATCH_SIZE", 100)
	p.RequestTimeout = getEnvOrDefaultInt("INTENTD_REQUEST_TIMEOUT", 30)
	p.LogQueueSize = getEnvOrDefaultInt("INTENTD_LOG_QUEUE_SIZE", 1000)

	// Security
	p.APIKeyHeader = getEnvOrDefault("INTENTD_API_KEY_HEADER", "X-API-Key")
	p.AdminAPIKey = getEnvOrDefault("INTENTD_ADMIN_API_KEY", "")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.DefaultConfidenceThreshold < 0 || p.DefaultConfidenceThreshold > 1 {
		return errors.Errorf("confidence threshold out of range: %f", p.DefaultConfidenceThreshold)
	}
	if p.SemanticSimilarityThreshold < 0 || p.SemanticSimilarityThreshold > 1 {
		return errors.Errorf("semantic similarity threshold out of range: %f", p.SemanticSimilarityThreshold)
	}
	if p.MaxBatchSize <= 0 {
		p.MaxBatchSize = 100
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 30
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		dbFile := fmt.Sprintf("intentd_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn required for postgres driver")
	}

	return nil
}
