// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.f1gpt/config.yaml)
//  3. Default values
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max output token cap is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates an unusable vector dimension.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidCollection indicates the vector collection name is invalid.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to a configured output
	// dimensionality; the documents schema uses 1536 dimensions.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension matches the documents table vector column.
	DefaultEmbedderDimension = 1536

	// DefaultCollection is the default vector collection name.
	DefaultCollection = "f1_articles"

	// DefaultTopK is the default number of documents retrieved per query.
	DefaultTopK = 10

	// MaxTopK bounds retrieval fan-out regardless of configuration.
	MaxTopK = 50
)

// Config stores application configuration.
type Config struct {
	// AI model configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // e.g. "googleai/gemini-2.5-flash"
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Retrieval configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`
	Collection        string `mapstructure:"collection" json:"collection"`
	TopK              int    `mapstructure:"top_k" json:"top_k"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`   // Per-IP rate limiter burst (0 = default)

	// Ingestion configuration (f1gpt ingest)
	Sources      []string `mapstructure:"sources" json:"sources"`
	ChunkSize    int      `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int      `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Observability configuration
	OTLP OTLPConfig `mapstructure:"otlp" json:"otlp"`
}

// OTLPConfig configures optional trace export to a local collector.
type OTLPConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".f1gpt")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use defaults
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Generation defaults: low temperature favors determinism for factual
	// answers; the hard output cap keeps streamed responses bounded.
	viper.SetDefault("model_name", "googleai/gemini-2.5-flash")
	viper.SetDefault("temperature", 0.2)
	viper.SetDefault("max_tokens", 1500)

	// Retrieval defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)
	viper.SetDefault("collection", DefaultCollection)
	viper.SetDefault("top_k", DefaultTopK)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "f1gpt")
	viper.SetDefault("postgres_password", "f1gpt_dev_password")
	viper.SetDefault("postgres_db_name", "f1gpt")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// HTTP defaults
	viper.SetDefault("listen_addr", "127.0.0.1:3400")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 0)

	// Ingestion defaults mirror the original loader corpus shape
	viper.SetDefault("chunk_size", 512)
	viper.SetDefault("chunk_overlap", 100)
	viper.SetDefault("sources", []string{})

	// Observability defaults
	viper.SetDefault("otlp.enabled", false)
	viper.SetDefault("otlp.agent_host", "localhost:4318")
	viper.SetDefault("otlp.service_name", "f1gpt")
	viper.SetDefault("otlp.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; Validate
// only checks its presence.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "F1GPT_MODEL_NAME")
	mustBind("embedder_model", "F1GPT_EMBEDDER_MODEL")
	mustBind("collection", "F1GPT_COLLECTION")
	mustBind("listen_addr", "F1GPT_LISTEN_ADDR")
	mustBind("cors_origins", "F1GPT_CORS_ORIGINS")
	mustBind("trust_proxy", "F1GPT_TRUST_PROXY")
	mustBind("rate_burst", "F1GPT_RATE_BURST")
	mustBind("otlp.enabled", "F1GPT_OTLP_ENABLED")
	mustBind("otlp.agent_host", "F1GPT_OTLP_AGENT_HOST")
}

// Validate checks configuration invariants shared by all commands.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v not in [0, 2]", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: %d not in (0, 65536]", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedderDimension <= 0 || c.EmbedderDimension > 4096 {
		return fmt.Errorf("%w: %d not in (0, 4096]", ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection name must not be empty", ErrInvalidCollection)
	}
	if c.TopK <= 0 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d not in (0, %d]", ErrInvalidTopK, c.TopK, MaxTopK)
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return nil
}

// ValidateServe checks the additional invariants required by serve mode.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrMissingAPIKey)
	}
	return nil
}
