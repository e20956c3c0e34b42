package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Embedding configuration (OpenAI-compatible protocol). The semantic
	// product index is enabled only when an API key is configured.
	AIEmbeddingModel   string
	AIEmbeddingAPIKey  string
	AIEmbeddingBaseURL string

	// VectorDSN is the Postgres DSN holding the product embedding table.
	// Empty disables the semantic index even when embeddings are set up.
	VectorDSN string

	// AdminSecretHash is the bcrypt hash checked against X-Admin-Secret.
	// Empty disables the admin surface.
	AdminSecretHash string

	// TelegramToken enables the Telegram channel when set.
	TelegramToken string

	Mode         string
	Addr         string
	Port         int
	Data         string
	Driver       string
	DSN          string
	ProductsPath string
	OutletsPath  string
	Version      string

	// RateLimitRPS caps chat requests per client IP per second.
	RateLimitRPS float64

	AIEnabled bool
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the semantic index can be built.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEmbeddingAPIKey != "" && p.VectorDSN != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.AIEmbeddingModel = getEnvOrDefault("KOPIBOT_AI_EMBEDDING_MODEL", "text-embedding-3-small")
	p.AIEmbeddingAPIKey = getEnvOrDefault("KOPIBOT_AI_EMBEDDING_API_KEY", "")
	p.AIEmbeddingBaseURL = getEnvOrDefault("KOPIBOT_AI_EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	p.VectorDSN = getEnvOrDefault("KOPIBOT_VECTOR_DSN", "")
	p.AdminSecretHash = getEnvOrDefault("KOPIBOT_ADMIN_SECRET_HASH", "")
	p.TelegramToken = getEnvOrDefault("KOPIBOT_TELEGRAM_TOKEN", "")
	p.ProductsPath = getEnvOrDefault("KOPIBOT_PRODUCTS_PATH", "")
	p.OutletsPath = getEnvOrDefault("KOPIBOT_OUTLETS_PATH", "")
	p.RateLimitRPS = getEnvOrDefaultFloat("KOPIBOT_RATE_LIMIT_RPS", 5)
	p.AIEnabled = p.IsAIEnabled()
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

	// Trim trailing \ or / in case user supplies
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

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/kopibot"
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver != "sqlite" {
		return errors.Errorf("unsupported outlet store driver %q", p.Driver)
	}
	if p.DSN == "" {
		dbFile := fmt.Sprintf("kopibot_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.ProductsPath == "" {
		p.ProductsPath = filepath.Join(dataDir, "products.json")
	}
	if p.OutletsPath == "" {
		p.OutletsPath = filepath.Join(dataDir, "outlets.json")
	}
	if p.RateLimitRPS <= 0 {
		p.RateLimitRPS = 5
	}

	return nil
}
