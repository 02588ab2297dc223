package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kdimtricp/lostfound/internal/ai"
	"github.com/kdimtricp/lostfound/internal/media"
	"github.com/kdimtricp/lostfound/internal/session"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string      `yaml:"port"`
	MaxUploadSize int64       `yaml:"max_upload_size"`
	MaxImageSize  int64       `yaml:"max_image_size"`
	Logging       LogConfig   `yaml:"logging"`
	Store         StoreConfig `yaml:"store"`
	AI            ai.Config   `yaml:"ai"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type StoreConfig struct {
	Backend            string        `yaml:"backend"` // memory or sqlite
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

func Default() *Config {
	return &Config{
		Port:          "8080",
		MaxUploadSize: 8 << 20,
		MaxImageSize:  media.DefaultMaxImageSize,
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend:            session.BackendMemory,
			SessionIdleTimeout: session.DefaultIdleTimeout,
		},
		AI: *ai.NewConfig(),
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $CONFIG_FILE), then environment variables. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	env := &envReader{}

	c.Port = env.String("PORT", c.Port)
	c.Logging.Level = env.String("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = env.String("LOG_FORMAT", c.Logging.Format)
	c.MaxUploadSize = env.Int64("MAX_UPLOAD_SIZE", c.MaxUploadSize)
	c.MaxImageSize = env.Int64("MAX_IMAGE_SIZE", c.MaxImageSize)

	c.Store.Backend = env.String("STORE_BACKEND", c.Store.Backend)
	c.Store.SessionIdleTimeout = env.Duration("SESSION_IDLE_TIMEOUT", c.Store.SessionIdleTimeout)

	c.AI.Provider = env.String("AI_PROVIDER", c.AI.Provider)
	c.AI.GeminiAPIKey = env.String("GEMINI_API_KEY", env.String("API_KEY", c.AI.GeminiAPIKey))
	c.AI.GeminiModel = env.String("GEMINI_MODEL", c.AI.GeminiModel)
	c.AI.OpenAIAPIKey = env.String("OPENAI_API_KEY", c.AI.OpenAIAPIKey)
	c.AI.OpenAIModel = env.String("OPENAI_MODEL", c.AI.OpenAIModel)
	c.AI.Timeout = env.Duration("AI_TIMEOUT", c.AI.Timeout)
	c.AI.RateLimit = env.Float("AI_RATE_LIMIT", c.AI.RateLimit)
	c.AI.RateBurst = env.Int("AI_RATE_BURST", c.AI.RateBurst)

	return env.err
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must be set")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadSize)
	}
	if c.MaxImageSize <= 0 {
		return fmt.Errorf("max image size must be positive, got %d", c.MaxImageSize)
	}
	if c.MaxImageSize > c.MaxUploadSize {
		return fmt.Errorf("max image size %d exceeds max upload size %d", c.MaxImageSize, c.MaxUploadSize)
	}
	switch c.Store.Backend {
	case session.BackendMemory, session.BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.SessionIdleTimeout < 0 {
		return errors.New("session idle timeout must not be negative")
	}
	switch c.AI.Provider {
	case "", ai.ProviderGemini, ai.ProviderOpenAI, ai.ProviderStub:
	default:
		return fmt.Errorf("unknown AI provider %q", c.AI.Provider)
	}
	if c.AI.RateLimit < 0 || c.AI.RateBurst < 0 {
		return errors.New("AI rate limit and burst must not be negative")
	}
	return nil
}

// envReader reads typed environment variables and keeps the first parse
// error.
type envReader struct {
	err error
}

func (e *envReader) String(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (e *envReader) Int64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		e.fail(key, err)
		return defaultValue
	}
	return n
}

func (e *envReader) Int(key string, defaultValue int) int {
	return int(e.Int64(key, int64(defaultValue)))
}

func (e *envReader) Float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(key, err)
		return defaultValue
	}
	return f
}

func (e *envReader) Duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, err)
		return defaultValue
	}
	return d
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
