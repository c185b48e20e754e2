package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Embedding EmbeddingConfig
	Search    SearchConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
}

// Enabled reports whether the editor API can be served.
func (c JWTConfig) Enabled() bool {
	return c.SecretKey != ""
}

type EmbeddingConfig struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Dimensions  int
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

type SearchConfig struct {
	Threshold    float64
	Limit        int
	StoreTimeout time.Duration
}

// MissingEnvError is returned when a required variable is absent.
type MissingEnvError struct {
	Key string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("required environment variable %s is not set", e.Key)
}

// InvalidEnvError is returned when a variable is present but cannot be parsed.
type InvalidEnvError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidEnvError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %v", e.Value, e.Key, e.Err)
}

func (e *InvalidEnvError) Unwrap() error {
	return e.Err
}

var defaultModels = map[string]string{
	ProviderGemini: "gemini-embedding-001",
	ProviderOpenAI: "text-embedding-3-large",
}

var apiKeyVars = map[string]string{
	ProviderGemini: "GEMINI_API_KEY",
	ProviderOpenAI: "OPENAI_API_KEY",
}

func Load() (*Config, error) {
	LoadDotEnv()
	return FromEnv()
}

// LoadDotEnv loads the first .env file found. Variables already set in the
// environment win.
func LoadDotEnv() {
	// .env is optional; plain environment variables work for Docker/K8s
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			return
		}
	}
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	p := &parser{}

	provider := strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderGemini))
	keyVar, ok := apiKeyVars[provider]
	if !ok {
		return nil, &InvalidEnvError{Key: "EMBEDDING_PROVIDER", Value: provider, Err: fmt.Errorf("expected %s or %s", ProviderGemini, ProviderOpenAI)}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  p.duration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: p.duration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:      p.required("DATABASE_URL"),
			MaxConns: int32(p.integer("DB_MAX_CONNS", 10)),
			MinConns: int32(p.integer("DB_MIN_CONNS", 1)),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
			Issuer:    getEnv("JWT_ISSUER", "agro-search"),
		},
		Embedding: EmbeddingConfig{
			Provider:    provider,
			APIKey:      p.required(keyVar),
			Model:       getEnv("EMBEDDING_MODEL", defaultModels[provider]),
			BaseURL:     getEnv("EMBEDDING_BASE_URL", ""),
			Dimensions:  p.requiredInt("EMBEDDING_DIMENSIONS"),
			Timeout:     p.duration("EMBEDDING_TIMEOUT", 10*time.Second),
			MaxAttempts: p.integer("EMBEDDING_MAX_ATTEMPTS", 2),
			RetryDelay:  p.duration("EMBEDDING_RETRY_DELAY", 250*time.Millisecond),
		},
		Search: SearchConfig{
			Threshold:    p.float("SEARCH_THRESHOLD", 0.55),
			Limit:        p.integer("SEARCH_LIMIT", 5),
			StoreTimeout: p.duration("SEARCH_STORE_TIMEOUT", 5*time.Second),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Embedding.Dimensions <= 0 {
		return &InvalidEnvError{Key: "EMBEDDING_DIMENSIONS", Value: strconv.Itoa(c.Embedding.Dimensions), Err: fmt.Errorf("must be positive")}
	}
	if c.Embedding.MaxAttempts <= 0 {
		return &InvalidEnvError{Key: "EMBEDDING_MAX_ATTEMPTS", Value: strconv.Itoa(c.Embedding.MaxAttempts), Err: fmt.Errorf("must be positive")}
	}
	if c.Search.Threshold < 0 || c.Search.Threshold >= 1 {
		return &InvalidEnvError{Key: "SEARCH_THRESHOLD", Value: strconv.FormatFloat(c.Search.Threshold, 'f', -1, 64), Err: fmt.Errorf("must be in [0, 1)")}
	}
	if c.Search.Limit <= 0 {
		return &InvalidEnvError{Key: "SEARCH_LIMIT", Value: strconv.Itoa(c.Search.Limit), Err: fmt.Errorf("must be positive")}
	}
	return nil
}

// parser keeps the first error so Load reports one actionable problem.
type parser struct {
	err error
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) required(key string) string {
	value := os.Getenv(key)
	if value == "" {
		p.fail(&MissingEnvError{Key: key})
	}
	return value
}

func (p *parser) requiredInt(key string) int {
	value := p.required(key)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(&InvalidEnvError{Key: key, Value: value, Err: err})
	}
	return n
}

func (p *parser) integer(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(&InvalidEnvError{Key: key, Value: value, Err: err})
		return defaultValue
	}
	return n
}

func (p *parser) float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(&InvalidEnvError{Key: key, Value: value, Err: err})
		return defaultValue
	}
	return f
}

// duration accepts Go durations ("5s") or a bare number of seconds.
func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(&InvalidEnvError{Key: key, Value: value, Err: err})
		return defaultValue
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
