package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"visual-spec-compiler/internal/agent"
)

// stubFIBOKey is the placeholder key shipped in example .env files.
const stubFIBOKey = "mock_key"

const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageS3    = "s3"

	LLMProviderGemini = "gemini"
	LLMProviderOpenAI = "openai"
)

type Config struct {
	AppEnv   string
	Port     string
	LogLevel slog.Level

	DatabaseURL string

	FIBOBaseURL string
	FIBOAPIKey  string
	FIBOStub    bool
	FIBOTimeout time.Duration

	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string
	LLMTimeout  time.Duration

	StorageType      string
	UploadDir        string
	BaseURL          string
	AWSBucket        string
	AWSRegion        string
	AWSPublicBaseURL string

	AllowedOrigins []string
}

// UseImageStub reports whether image generation runs without the provider.
func (c *Config) UseImageStub() bool {
	return c.FIBOStub || c.FIBOAPIKey == "" || c.FIBOAPIKey == stubFIBOKey
}

// UseAgentStub reports whether patches are proposed without an LLM.
func (c *Config) UseAgentStub() bool {
	return c.LLMAPIKey == ""
}

// Load reads the environment. A .env file is honoured outside production;
// production injects env vars through infra.
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		godotenv.Load()
	}

	var errs []error

	cfg := &Config{
		AppEnv:      os.Getenv("APP_ENV"),
		Port:        getEnv("PORT", "8083"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		FIBOBaseURL: strings.TrimRight(os.Getenv("FIBO_BASE_URL"), "/"),
		FIBOAPIKey:  os.Getenv("FIBO_API_KEY"),

		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", LLMProviderGemini)),
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
		LLMModel:    os.Getenv("LLM_MODEL"),
		LLMBaseURL:  os.Getenv("LLM_BASE_URL"),

		StorageType:      strings.ToLower(getEnv("STORAGE_TYPE", StorageNone)),
		UploadDir:        getEnv("UPLOAD_DIR", "./uploads"),
		AWSBucket:        os.Getenv("AWS_BUCKET"),
		AWSRegion:        os.Getenv("AWS_REGION"),
		AWSPublicBaseURL: os.Getenv("AWS_PUBLIC_BASE_URL"),
	}
	cfg.BaseURL = getEnv("BASE_URL", "http://localhost:"+cfg.Port)

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	var err error
	if cfg.FIBOStub, err = getBool("FIBO_STUB", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.FIBOTimeout, err = getDuration("FIBO_TIMEOUT", 60*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.LLMTimeout, err = getDuration("LLM_TIMEOUT", agent.DefaultTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if !cfg.UseImageStub() && cfg.FIBOBaseURL == "" {
		errs = append(errs, errors.New("FIBO_BASE_URL is required when FIBO_API_KEY is set"))
	}

	switch cfg.LLMProvider {
	case LLMProviderGemini:
		if cfg.LLMModel == "" {
			cfg.LLMModel = agent.DefaultGeminiModel
		}
	case LLMProviderOpenAI:
		if cfg.LLMModel == "" {
			cfg.LLMModel = agent.DefaultOpenAIModel
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", LLMProviderGemini, LLMProviderOpenAI, cfg.LLMProvider))
	}

	switch cfg.StorageType {
	case StorageNone, StorageLocal:
	case StorageS3:
		if cfg.AWSBucket == "" || cfg.AWSRegion == "" {
			errs = append(errs, errors.New("AWS_BUCKET and AWS_REGION are required when STORAGE_TYPE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE must be one of none, local, s3, got %q", cfg.StorageType))
	}

	// Dev:        ALLOWED_ORIGINS=http://localhost:3000
	// Production: ALLOWED_ORIGINS=https://studio.example.com,https://admin.example.com
	for _, origin := range strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Plain numbers are seconds.
		secs, convErr := strconv.Atoi(v)
		if convErr != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
