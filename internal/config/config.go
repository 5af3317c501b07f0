package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Search    SearchConfig
	Ranking   RankingConfig
	Inventory InventoryConfig
	Drive     DriveConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
	Discord   DiscordConfig
	Logging   LoggingConfig
	Keywords  Keywords
}

// DatabaseConfig selects the lead store backend
type DatabaseConfig struct {
	Backend            string // "postgres" or "sqlite"
	DSN                string // full connection string (preferred for postgres)
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	SQLitePath         string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
}

// SearchConfig controls how many matches a client sees per page
type SearchConfig struct {
	PageSize int
	MaxPage  int
}

// RankingConfig holds the additive per-criterion weights
type RankingConfig struct {
	PriceInRange   int
	PriceUnderMax  int
	PriceNearMax   int
	SizeInRange    int
	SizeNearRange  int
	RoomsExact     int
	RoomsAdjacent  int
	LocationMatch  int
	ReadinessMatch int
	DiversityCap   int
}

// InventoryConfig controls the snapshot cache
type InventoryConfig struct {
	TTL           time.Duration
	RefreshCron   string
	KeywordsFile  string
	SuppliersFile string
	Suppliers     []Supplier
}

// DriveConfig holds Google Drive access settings
type DriveConfig struct {
	CredentialsPath    string // OAuth client secrets
	TokenPath          string // stored OAuth token (JSON)
	ServiceAccountPath string
	ListingCacheTTL    time.Duration
	RequestTimeout     time.Duration
}

// LLMConfig holds the provider chain configuration
type LLMConfig struct {
	Providers []string // priority order, e.g. "openai,compatible"

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	CompatibleKey     string
	CompatibleBaseURL string
	CompatibleModel   string
	ChatExtraBody     string // JSON string for extra_body (e.g., {"chat_template_kwargs":{"thinking":false}})

	TranscriptionKey     string // Groq-style whisper endpoint, tried before OpenAI
	TranscriptionBaseURL string
	TranscriptionModel   string
	TranscriptionLang    string

	Temperature    float64
	MaxTokens      int
	Timeout        int
	RequestsPerSec float64
	Burst          int
}

// RateLimitConfig holds per-client inbound message limits
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// DiscordConfig enables agent notifications via a Discord bot
type DiscordConfig struct {
	Token            string
	DefaultChannelID string // used for agents without their own channel
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
	File  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Backend:            getEnv("DATABASE_BACKEND", "sqlite"),
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "leadmatch"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			SQLitePath:         getEnv("SQLITE_PATH", "data/leads.db"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Search: SearchConfig{
			PageSize: getEnvAsInt("MATCH_PAGE_SIZE", 5),
			MaxPage:  getEnvAsInt("MATCH_MAX_PAGE", 20),
		},
		Ranking: RankingConfig{
			PriceInRange:   getEnvAsInt("RANK_PRICE_IN_RANGE", 30),
			PriceUnderMax:  getEnvAsInt("RANK_PRICE_UNDER_MAX", 20),
			PriceNearMax:   getEnvAsInt("RANK_PRICE_NEAR_MAX", 10),
			SizeInRange:    getEnvAsInt("RANK_SIZE_IN_RANGE", 25),
			SizeNearRange:  getEnvAsInt("RANK_SIZE_NEAR_RANGE", 15),
			RoomsExact:     getEnvAsInt("RANK_ROOMS_EXACT", 25),
			RoomsAdjacent:  getEnvAsInt("RANK_ROOMS_ADJACENT", 10),
			LocationMatch:  getEnvAsInt("RANK_LOCATION", 15),
			ReadinessMatch: getEnvAsInt("RANK_READINESS", 10),
			DiversityCap:   getEnvAsInt("RANK_DIVERSITY_CAP", 2),
		},
		Inventory: InventoryConfig{
			TTL:           getEnvAsDuration("INVENTORY_TTL", 15*time.Minute),
			RefreshCron:   getEnv("INVENTORY_REFRESH_CRON", "@every 15m"),
			KeywordsFile:  getEnv("KEYWORDS_FILE", "config/keywords.yaml"),
			SuppliersFile: getEnv("SUPPLIERS_FILE", "config/suppliers.yaml"),
		},
		Drive: DriveConfig{
			CredentialsPath:    getEnv("GOOGLE_CREDENTIALS_PATH", "credentials.json"),
			TokenPath:          getEnv("GOOGLE_TOKEN_PATH", "token.json"),
			ServiceAccountPath: getEnv("GOOGLE_SERVICE_ACCOUNT_PATH", "service_account.json"),
			ListingCacheTTL:    getEnvAsDuration("GOOGLE_DRIVE_CACHE_TTL", time.Hour),
			RequestTimeout:     getEnvAsDuration("GOOGLE_DRIVE_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			Providers:            getEnvAsList("LLM_PROVIDERS", []string{"openai", "compatible"}),
			OpenAIKey:            getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:        getEnv("OPENAI_API_BASE", ""),
			OpenAIModel:          getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			CompatibleKey:        getEnv("COMPATIBLE_API_KEY", ""),
			CompatibleBaseURL:    getEnv("COMPATIBLE_API_BASE", "https://integrate.api.nvidia.com/v1"),
			CompatibleModel:      getEnv("COMPATIBLE_CHAT_MODEL", "deepseek-ai/deepseek-v3.1-terminus"),
			ChatExtraBody:        getEnv("COMPATIBLE_CHAT_EXTRA_BODY", ""),
			TranscriptionKey:     getEnv("GROQ_API_KEY", ""),
			TranscriptionBaseURL: getEnv("GROQ_API_BASE", "https://api.groq.com/openai/v1"),
			TranscriptionModel:   getEnv("GROQ_WHISPER_MODEL", "whisper-large-v3"),
			TranscriptionLang:    getEnv("TRANSCRIPTION_LANGUAGE", "ru"),
			Temperature:          getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:            getEnvAsInt("LLM_MAX_TOKENS", 500),
			Timeout:              getEnvAsInt("LLM_TIMEOUT", 30),
			RequestsPerSec:       getEnvAsFloat("LLM_REQUESTS_PER_SEC", 3),
			Burst:                getEnvAsInt("LLM_BURST", 5),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Discord: DiscordConfig{
			Token:            getEnv("DISCORD_BOT_TOKEN", ""),
			DefaultChannelID: getEnv("DISCORD_DEFAULT_CHANNEL_ID", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	keywords, err := LoadKeywords(cfg.Inventory.KeywordsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load keywords: %w", err)
	}
	cfg.Keywords = keywords

	suppliers, err := LoadSuppliers(cfg.Inventory.SuppliersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load suppliers: %w", err)
	}
	cfg.Inventory.Suppliers = suppliers

	return cfg, nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// Debug reports whether debug logging is on
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "debug")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid bool value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
