package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	LogMode       string
	LogSalt       string
	// Advisor (OpenAI-compatible chat completions)
	AdvisorProvider string
	AdvisorAPIKey   string
	AdvisorBaseURL  string
	AdvisorModel    string
	AdvisorTimeout  time.Duration
	PromptFile      string
	// Crop model
	PredictorURL          string
	PredictorClientID     string
	PredictorClientSecret string
	PredictorTokenURL     string
	PredictorScopes       []string
	// Menu catalog directory; empty uses the embedded catalog
	CatalogDir string
	// USSD
	MaxDepth        int
	AnswerMaxLength int
	SessionTTL      time.Duration
	SweepInterval   time.Duration
	// Session storage: memory | redis
	SessionDriver string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Preference storage: memory | file | postgres | sqlite
	PreferenceDriver string
	PreferenceFile   string
	DatabaseURL      string
	// Web chatbot
	ChatHistory  int
	CookieSecure bool
}

var (
	errMissingAdvisorKey = errors.New("ADVISOR_API_KEY (or GROQ_API_KEY / OPENAI_API_KEY) is required for the selected advisor provider")
	errMissingDSN        = errors.New("DB_URL is required for SQL preference storage")
)

func Load() Config {
	_ = godotenv.Load()
	provider := strings.ToLower(getEnvDefault("ADVISOR_PROVIDER", "groq"))
	cfg := Config{
		Port:                  getEnvDefault("PORT", "8000"),
		AllowedOrigin:         getEnvDefault("ALLOWED_ORIGIN", "*"),
		LogMode:               getEnvDefault("LOG_MODE", "dev"),
		LogSalt:               os.Getenv("LOG_HASH_SALT"),
		AdvisorProvider:       provider,
		AdvisorAPIKey:         firstEnv("ADVISOR_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY"),
		AdvisorBaseURL:        getEnvDefault("ADVISOR_BASE_URL", defaultBaseURL(provider)),
		AdvisorModel:          getEnvDefault("ADVISOR_MODEL", defaultModel(provider)),
		AdvisorTimeout:        getEnvDurationDefault("ADVISOR_TIMEOUT", 8*time.Second),
		PromptFile:            os.Getenv("ADVISOR_PROMPT_FILE"),
		PredictorURL:          os.Getenv("PREDICTOR_URL"),
		PredictorClientID:     os.Getenv("PREDICTOR_CLIENT_ID"),
		PredictorClientSecret: os.Getenv("PREDICTOR_CLIENT_SECRET"),
		PredictorTokenURL:     os.Getenv("PREDICTOR_TOKEN_URL"),
		PredictorScopes:       getEnvListDefault("PREDICTOR_SCOPES", nil),
		CatalogDir:            os.Getenv("CATALOG_DIR"),
		MaxDepth:              getEnvIntDefault("USSD_MAX_DEPTH", 14),
		AnswerMaxLength:       getEnvIntDefault("USSD_ANSWER_MAX_LENGTH", 140),
		SessionTTL:            getEnvDurationDefault("USSD_SESSION_TTL", 3*time.Minute),
		SweepInterval:         getEnvDurationDefault("USSD_SWEEP_INTERVAL", time.Minute),
		SessionDriver:         strings.ToLower(getEnvDefault("SESSION_DRIVER", "memory")),
		RedisAddr:             getEnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvIntDefault("REDIS_DB", 0),
		PreferenceDriver:      strings.ToLower(getEnvDefault("PREFERENCE_DRIVER", "memory")),
		PreferenceFile:        getEnvDefault("PREFERENCE_FILE", "data/preferences.json"),
		DatabaseURL:           os.Getenv("DB_URL"),
		ChatHistory:           getEnvIntDefault("CHAT_HISTORY", 10),
		CookieSecure:          getEnvBoolDefault("COOKIE_SECURE", false),
	}
	return cfg
}

// Validate reports configuration that would make requests fail unpredictably.
func (c Config) Validate() error {
	switch c.AdvisorProvider {
	case "static":
	case "groq", "openai":
		if strings.TrimSpace(c.AdvisorAPIKey) == "" {
			return errMissingAdvisorKey
		}
	default:
		return fmt.Errorf("unknown ADVISOR_PROVIDER %q", c.AdvisorProvider)
	}
	switch c.SessionDriver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown SESSION_DRIVER %q", c.SessionDriver)
	}
	switch c.PreferenceDriver {
	case "memory", "file":
	case "postgres", "sqlite":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errMissingDSN
		}
	default:
		return fmt.Errorf("unknown PREFERENCE_DRIVER %q", c.PreferenceDriver)
	}
	if c.PredictorClientID != "" && (c.PredictorClientSecret == "" || c.PredictorTokenURL == "") {
		return errors.New("PREDICTOR_CLIENT_SECRET and PREDICTOR_TOKEN_URL are required with PREDICTOR_CLIENT_ID")
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("USSD_MAX_DEPTH must be positive, got %d", c.MaxDepth)
	}
	if c.SessionTTL <= 0 || c.SweepInterval <= 0 {
		return errors.New("USSD_SESSION_TTL and USSD_SWEEP_INTERVAL must be positive")
	}
	if c.AnswerMaxLength < 20 {
		return fmt.Errorf("USSD_ANSWER_MAX_LENGTH too small: %d", c.AnswerMaxLength)
	}
	return nil
}

func defaultBaseURL(provider string) string {
	if provider == "groq" {
		return "https://api.groq.com/openai/v1"
	}
	return ""
}

func defaultModel(provider string) string {
	if provider == "groq" {
		return "llama-3.3-70b-versatile"
	}
	return "gpt-4o-mini"
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}
