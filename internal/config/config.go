package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/equidex/internal/domain/agent"
)

// Config holds the equidex configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Logging      LoggingConfig      `yaml:"logging"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Generation   GenerationConfig   `yaml:"generation"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Ingest       IngestConfig       `yaml:"ingest"`
	Cache        CacheConfig        `yaml:"cache"`
	Client       ClientConfig       `yaml:"client"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BudgetConfig holds embedding token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string       `yaml:"provider"` // openai, ollama
	APIKey              string       `yaml:"api_key"`
	BaseURL             string       `yaml:"base_url"`
	Model               string       `yaml:"model"`
	Dimensions          int          `yaml:"dimensions"`
	DocumentInstruction string       `yaml:"document_instruction"`
	QueryInstruction    string       `yaml:"query_instruction"`
	BatchSize           int          `yaml:"batch_size"`
	Budget              BudgetConfig `yaml:"budget"`
}

// GenerationConfig holds generation provider settings.
type GenerationConfig struct {
	Provider        string  `yaml:"provider"` // openai, anthropic, ollama
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	MaxTokens       int     `yaml:"max_tokens"`
	ReportMaxTokens int     `yaml:"report_max_tokens"`
	Temperature     float64 `yaml:"temperature"`
	StrictSchema    bool    `yaml:"strict_schema"`
}

// OrchestratorConfig holds agent run settings.
type OrchestratorConfig struct {
	AgentSet        string  `yaml:"agent_set"`
	Concurrency     int     `yaml:"concurrency"`
	TaskTimeoutSec  int     `yaml:"task_timeout_sec"`
	TokenBudget     int     `yaml:"token_budget"`
	TopK            int     `yaml:"top_k"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"` // 0 = unlimited
	RateBurst       int     `yaml:"rate_burst"`
}

// IngestConfig holds corpus ingestion settings.
type IngestConfig struct {
	ChunkSize          int  `yaml:"chunk_size"`
	ChunkOverlap       int  `yaml:"chunk_overlap"`
	Summarize          bool `yaml:"summarize"`
	SummaryTokenBudget int  `yaml:"summary_token_budget"`
	SummaryConcurrency int  `yaml:"summary_concurrency"`
}

// CacheConfig holds the embedding cache and budget counter store.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // none, memory, redis (default: memory)
	Size             int      `yaml:"size"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ClientConfig holds the outbound HTTP client retry policy.
type ClientConfig struct {
	RetryMax        int `yaml:"retry_max"`
	RetryWaitMaxSec int `yaml:"retry_wait_max_sec"`
	TimeoutSec      int `yaml:"timeout_sec"`
}

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Load reads configuration from a YAML file by environment name (local, prod).
// A .env file in the working directory is loaded first; real environment variables win.
func Load(env string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	// Analyses run every agent before the response is written.
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 600
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = "openai"
	}
	if c.Orchestrator.AgentSet == "" {
		c.Orchestrator.AgentSet = string(agent.SetPrimary)
	}
	if c.Orchestrator.Concurrency <= 0 {
		c.Orchestrator.Concurrency = 4
	}
	if c.Orchestrator.TaskTimeoutSec <= 0 {
		c.Orchestrator.TaskTimeoutSec = 120
	}
	if c.Orchestrator.TopK <= 0 {
		c.Orchestrator.TopK = 5
	}
	if c.Orchestrator.RateLimitPerSec > 0 && c.Orchestrator.RateBurst <= 0 {
		c.Orchestrator.RateBurst = 1
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = 4000
	}
	if c.Ingest.ChunkOverlap < 0 {
		c.Ingest.ChunkOverlap = 0
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheMemory
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = 10_000
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Client.RetryMax == 0 {
		c.Client.RetryMax = 3
	}
	if c.Client.RetryWaitMaxSec <= 0 {
		c.Client.RetryWaitMaxSec = 5
	}
	if c.Client.TimeoutSec <= 0 {
		c.Client.TimeoutSec = 120
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"ollama\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}
	switch c.Generation.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf(
			"generation.provider must be \"openai\", \"anthropic\" or \"ollama\", got %q",
			c.Generation.Provider,
		)
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("generation.model is required")
	}
	if _, err := agent.ParseSet(c.Orchestrator.AgentSet); err != nil {
		return fmt.Errorf("orchestrator.agent_set: %w", err)
	}
	if c.Orchestrator.RateLimitPerSec < 0 {
		return fmt.Errorf("orchestrator.rate_limit_per_sec must not be negative")
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap (%d) must be smaller than ingest.chunk_size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	switch c.Cache.Driver {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("cache.driver must be \"none\", \"memory\" or \"redis\", got %q", c.Cache.Driver)
	}
	return nil
}

// loadDotEnv loads path into the process environment without overriding variables already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
