package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for quill-engine. Values come from
// config.yaml with environment variable overrides; secrets (passwords,
// API keys) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Database  DatabaseConfig  `yaml:"database"`
	AI        AIConfig        `yaml:"ai"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// DatabaseConfig holds PostgreSQL configuration for both the chat log and
// the project data the assistant queries.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"quill"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"quill_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// URL builds a pgx-compatible connection URL.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// AIConfig holds the model provider settings.
type AIConfig struct {
	// Provider selects the chat-completion backend: "openai" (or any
	// OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"AI_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML

	// Embeddings always go through the OpenAI-compatible endpoint.
	EmbeddingModel string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`

	Temperature float64 `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.1"`

	// Token budget: history is trimmed so that the prompt never exceeds
	// MaxContextTokens - ReservedResponseTokens.
	MaxContextTokens       int `yaml:"max_context_tokens" env:"AI_MAX_CONTEXT_TOKENS" env-default:"16000"`
	ReservedResponseTokens int `yaml:"reserved_response_tokens" env:"AI_RESERVED_RESPONSE_TOKENS" env-default:"2000"`

	MaxRetries          int `yaml:"max_retries" env:"AI_MAX_RETRIES" env-default:"3"`
	RetryInitialDelayMs int `yaml:"retry_initial_delay_ms" env:"AI_RETRY_INITIAL_DELAY_MS" env-default:"500"`
	MaxConcurrentCalls  int `yaml:"max_concurrent_calls" env:"AI_MAX_CONCURRENT_CALLS" env-default:"4"`
}

// AssistantConfig holds the query-pipeline knobs.
type AssistantConfig struct {
	// TablesStr is the comma-separated allow-list of table names the
	// assistant may describe and query. Anything else is invisible.
	TablesStr string   `yaml:"tables" env:"ASSISTANT_TABLES" env-default:"teams,projects,tasks,users"`
	Tables    []string `yaml:"-"`

	// TenantColumn is the column that scopes rows to a tenant.
	TenantColumn string `yaml:"tenant_column" env:"ASSISTANT_TENANT_COLUMN" env-default:"team_id"`

	// TenantTablesStr lists the allow-listed tables that carry the tenant
	// column directly. Used for tenant-filter injection.
	TenantTablesStr string   `yaml:"tenant_tables" env:"ASSISTANT_TENANT_TABLES" env-default:"projects,users"`
	TenantTables    []string `yaml:"-"`

	SchemaCacheTTLMinutes int `yaml:"schema_cache_ttl_minutes" env:"ASSISTANT_SCHEMA_CACHE_TTL_MINUTES" env-default:"10"`
	RowCap                int `yaml:"row_cap" env:"ASSISTANT_ROW_CAP" env-default:"100"`
	ChunkSize             int `yaml:"chunk_size" env:"ASSISTANT_CHUNK_SIZE" env-default:"10"`
	MaxConversationTurns  int `yaml:"max_conversation_turns" env:"ASSISTANT_MAX_CONVERSATION_TURNS" env-default:"30"`
	SchemaTopK            int `yaml:"schema_top_k" env:"ASSISTANT_SCHEMA_TOP_K" env-default:"3"`
}

// SchemaCacheTTL returns the schema cache TTL as a duration.
func (c *AssistantConfig) SchemaCacheTTL() time.Duration {
	return time.Duration(c.SchemaCacheTTLMinutes) * time.Minute
}

// Load reads configuration from config.yaml with environment variable
// overrides, falling back to environment-only when no file is present.
// The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) parseComplexFields() error {
	c.Assistant.Tables = splitCSV(c.Assistant.TablesStr)
	c.Assistant.TenantTables = splitCSV(c.Assistant.TenantTablesStr)
	return nil
}

func (c *Config) validate() error {
	if len(c.Assistant.Tables) == 0 {
		return fmt.Errorf("assistant table allow-list must not be empty")
	}
	allowed := make(map[string]struct{}, len(c.Assistant.Tables))
	for _, t := range c.Assistant.Tables {
		allowed[t] = struct{}{}
	}
	for _, t := range c.Assistant.TenantTables {
		if _, ok := allowed[t]; !ok {
			return fmt.Errorf("tenant table %q is not in the allow-list", t)
		}
	}
	if c.Assistant.TenantColumn == "" {
		return fmt.Errorf("tenant column must not be empty")
	}
	if c.AI.ReservedResponseTokens >= c.AI.MaxContextTokens {
		return fmt.Errorf("reserved response tokens (%d) must be below max context tokens (%d)",
			c.AI.ReservedResponseTokens, c.AI.MaxContextTokens)
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
