package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Index     IndexConfig     `mapstructure:"index"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	SQL       SQLConfig       `mapstructure:"sql"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	EmbedModel        string        `mapstructure:"embed_model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	TokensPerMinute   int           `mapstructure:"tokens_per_minute"`

	// Per-role overrides. Keys are "classifier", "sql" and "rag"; each
	// override inherits unset fields from the top-level LLM config.
	Roles map[string]LLMRoleOverride `mapstructure:"roles"`
}

// LLMRoleOverride lets one role talk to a different provider or model.
type LLMRoleOverride struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// ResolveForRole returns an LLMConfig with role-specific overrides applied.
func (c LLMConfig) ResolveForRole(role string) LLMConfig {
	override, ok := c.Roles[role]
	if !ok {
		return c
	}
	resolved := c
	if override.Provider != "" {
		resolved.Provider = override.Provider
		if override.APIKey == "" {
			resolved.APIKey = providerKeyFromEnv(override.Provider)
		}
	}
	if override.Model != "" {
		resolved.Model = override.Model
	}
	if override.APIKey != "" {
		resolved.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		resolved.BaseURL = override.BaseURL
	}
	return resolved
}

type IndexConfig struct {
	InputDir     string `mapstructure:"input_dir"`
	DataURL      string `mapstructure:"data_url"`
	Store        string `mapstructure:"store"` // "bolt", "qdrant" or "memory"
	Path         string `mapstructure:"path"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	BatchSize    int    `mapstructure:"batch_size"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type RetrievalConfig struct {
	K           int     `mapstructure:"k"`
	Temperature float64 `mapstructure:"temperature"`
}

type SQLConfig struct {
	DSN          string  `mapstructure:"dsn"`
	TopK         int     `mapstructure:"top_k"`
	Temperature  float64 `mapstructure:"temperature"`
	FewShotsFile string  `mapstructure:"fewshots_file"`
}

type ServerConfig struct {
	Addr  string `mapstructure:"addr"`
	Watch bool   `mapstructure:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// providerKeyEnv maps providers to the API key variable their own SDKs read.
var providerKeyEnv = map[string]string{
	"mistral":   "MISTRAL_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"groq":      "GROQ_API_KEY",
	"together":  "TOGETHER_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
}

func providerKeyFromEnv(provider string) string {
	if name, ok := providerKeyEnv[provider]; ok {
		return os.Getenv(name)
	}
	return ""
}

// keyless providers run locally and need no API key.
var keyless = map[string]bool{"": true, "none": true, "ollama": true, "custom": true}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "mistral")
	v.SetDefault("llm.model", "mistral-small-latest")
	v.SetDefault("llm.embed_model", "mistral-embed")
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("llm.tokens_per_minute", 0)

	v.SetDefault("index.input_dir", "inputs")
	v.SetDefault("index.store", "bolt")
	v.SetDefault("index.path", "vector_db/index.db")
	v.SetDefault("index.chunk_size", 1500)
	v.SetDefault("index.chunk_overlap", 150)
	v.SetDefault("index.batch_size", 32)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "courtside_chunks")

	v.SetDefault("retrieval.k", 5)
	v.SetDefault("retrieval.temperature", 0.1)

	v.SetDefault("sql.dsn", "sqlite:///data/nba.db")
	v.SetDefault("sql.top_k", 5)
	v.SetDefault("sql.temperature", 0.1)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.service_name", "courtside")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("audit.path", "logs/interactions.jsonl")

	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "courtside-index")
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if !keyless[c.LLM.Provider] && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}
	if c.Retrieval.Temperature < 0 || c.Retrieval.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("retrieval temperature %.2f is outside recommended range [0.0, 2.0]", c.Retrieval.Temperature))
	}
	if c.SQL.Temperature < 0 || c.SQL.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("sql temperature %.2f is outside recommended range [0.0, 2.0]", c.SQL.Temperature))
	}
	if c.Index.ChunkSize <= 0 {
		warnings = append(warnings, fmt.Sprintf("index chunk_size %d must be positive", c.Index.ChunkSize))
	} else if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		warnings = append(warnings, fmt.Sprintf("index chunk_overlap %d must be in [0, chunk_size)", c.Index.ChunkOverlap))
	}
	if c.Index.BatchSize <= 0 {
		warnings = append(warnings, fmt.Sprintf("index batch_size %d must be positive", c.Index.BatchSize))
	}
	if c.Retrieval.K <= 0 {
		warnings = append(warnings, fmt.Sprintf("retrieval k %d must be positive", c.Retrieval.K))
	}
	switch c.Index.Store {
	case "bolt", "qdrant", "memory":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown index store %q", c.Index.Store))
	}

	return warnings
}

// Load reads configuration from an optional file, a .env file and the
// environment (COURTSIDE_ prefix, e.g. COURTSIDE_LLM_MODEL). An empty path
// skips the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("COURTSIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKeyFromEnv(cfg.LLM.Provider)
	}
	return &cfg, nil
}

// Warn prints validation warnings to stderr.
func (c *Config) Warn() {
	for _, warning := range c.Validate() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}
}
