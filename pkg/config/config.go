package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Store selects where the per-profile entries live
	Store struct {
		Backend   string // memory, redis or postgres
		KeyPrefix string
	}

	// Database configuration (postgres store backend)
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Retries  int
		Timeout  time.Duration
	}

	// Redis configuration (redis store backend)
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// AI configuration for the remote generative service
	AI struct {
		Provider       string // gemini or openai
		APIKey         string
		OpenAIKey      string
		TextModel      string
		SpeechModel    string
		ImageModel     string
		LiveModel      string
		OpenAIModel    string
		Voice          string
		Timeout        time.Duration
		MaxAttempts    int
		RetryBaseDelay time.Duration
		RetryMaxDelay  time.Duration
	}

	// Voice session and audio pipeline settings
	Voice struct {
		InputSampleRate  int
		OutputSampleRate int
		FrameSize        int
		TranscriptWindow int
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Cache settings
	Cache struct {
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}

	// Secrets settings
	Secrets struct {
		VaultEnabled   bool
		VaultAddr      string
		VaultToken     string
		VaultNamespace string
		VaultMount     string
		VaultPath      string
		APIKeyName     string
	}

	// Feature flags
	Features struct {
		EnableOpenAPIValidation bool
		EnableTracing           bool
		MoodHistoryLimit        int
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load builds a fresh Config from the current environment without touching
// the singleton.
func Load() *Config {
	c := &Config{}

	// Server config
	c.Server.Port = getEnvString("PORT", "8081")
	c.Server.Env = getEnvString("APP_ENV", "development")
	c.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

	// Store config
	c.Store.Backend = strings.ToLower(getEnvString("STORE_BACKEND", "memory"))
	c.Store.KeyPrefix = getEnvString("STORE_KEY_PREFIX", "profile")

	// Database config
	c.Database.Host = getEnvString("DB_HOST", "localhost")
	c.Database.Port = getEnvString("DB_PORT", "5432")
	c.Database.User = getEnvString("DB_USER", "postgres")
	c.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	c.Database.Name = getEnvString("DB_NAME", "calma")
	c.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	c.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	c.Database.Retries = getEnvInt("DB_CONNECT_RETRIES", 5)
	c.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

	// Redis config
	c.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	c.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	c.Redis.DB = getEnvInt("REDIS_DB", 0)

	// AI config
	c.AI.Provider = strings.ToLower(getEnvString("AI_PROVIDER", "gemini"))
	c.AI.APIKey = getEnvString("GEMINI_API_KEY", getEnvString("API_KEY", ""))
	c.AI.OpenAIKey = getEnvString("OPENAI_API_KEY", "")
	c.AI.TextModel = getEnvString("AI_TEXT_MODEL", "gemini-3-flash-preview")
	c.AI.SpeechModel = getEnvString("AI_SPEECH_MODEL", "gemini-2.5-flash-preview-tts")
	c.AI.ImageModel = getEnvString("AI_IMAGE_MODEL", "gemini-2.5-flash-image")
	c.AI.LiveModel = getEnvString("AI_LIVE_MODEL", "gemini-2.5-flash-native-audio-preview-12-2025")
	c.AI.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	c.AI.Voice = getEnvString("AI_VOICE", "Kore")
	c.AI.Timeout = getEnvDuration("AI_TIMEOUT", 30*time.Second)
	c.AI.MaxAttempts = getEnvInt("AI_MAX_ATTEMPTS", 3)
	c.AI.RetryBaseDelay = getEnvDuration("AI_RETRY_BASE_DELAY", 500*time.Millisecond)
	c.AI.RetryMaxDelay = getEnvDuration("AI_RETRY_MAX_DELAY", 4*time.Second)

	// Voice config
	c.Voice.InputSampleRate = getEnvInt("VOICE_INPUT_SAMPLE_RATE", 16000)
	c.Voice.OutputSampleRate = getEnvInt("VOICE_OUTPUT_SAMPLE_RATE", 24000)
	c.Voice.FrameSize = getEnvInt("VOICE_FRAME_SIZE", 4096)
	c.Voice.TranscriptWindow = getEnvInt("VOICE_TRANSCRIPT_WINDOW", 40)

	// Security config
	c.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
	c.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	c.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	c.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 10<<20) // 10MB, image uploads

	// Logging config
	c.Logging.Level = getEnvString("LOG_LEVEL", "info")
	c.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Cache settings
	c.Cache.TTL = getEnvDuration("CACHE_TTL", 30*time.Minute)
	c.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
	c.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

	// Secrets
	c.Secrets.VaultEnabled = getEnvBool("VAULT_ENABLED", false)
	c.Secrets.VaultAddr = getEnvString("VAULT_ADDR", "http://localhost:8200")
	c.Secrets.VaultToken = getEnvString("VAULT_TOKEN", "")
	c.Secrets.VaultNamespace = getEnvString("VAULT_NAMESPACE", "")
	c.Secrets.VaultMount = getEnvString("VAULT_MOUNT", "secret")
	c.Secrets.VaultPath = getEnvString("VAULT_SECRETS_PATH", "calma")
	c.Secrets.APIKeyName = getEnvString("VAULT_API_KEY_NAME", "gemini_api_key")

	// Feature flags
	c.Features.EnableOpenAPIValidation = getEnvBool("ENABLE_OPENAPI_VALIDATION", true)
	c.Features.EnableTracing = getEnvBool("ENABLE_TRACING", false)
	c.Features.MoodHistoryLimit = getEnvInt("MOOD_HISTORY_LIMIT", 50)

	return c
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
