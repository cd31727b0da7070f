package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the askdex configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Store      StoreConfig      `yaml:"store"`
	Model      ModelConfig      `yaml:"model"`
	Router     RouterConfig     `yaml:"router"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Context    ContextConfig    `yaml:"context"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig maps API keys to user IDs. Per-user quotas and the intent
// cache are keyed by the user ID.
type AuthConfig struct {
	APIKeys map[string]string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StoreConfig selects and configures the findings store. Redis settings
// also back the quota counters and the intent cache; with a SQL driver
// those fall back to process memory unless addrs is set.
type StoreConfig struct {
	Driver           string   `yaml:"driver"` // redis, sqlite, postgres (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	DSN              string   `yaml:"dsn"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// UsesRedis reports whether a Redis connection is configured.
func (s StoreConfig) UsesRedis() bool {
	return len(s.Addrs) > 0
}

// ModelConfig holds the language model provider settings. An empty API key
// runs the service without a model: analytical queries then return records.
type ModelConfig struct {
	Provider          string  `yaml:"provider"` // openai (default), none
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	HighModel         string  `yaml:"high_model"`
	LowModel          string  `yaml:"low_model"`
	ExtractModel      string  `yaml:"extract_model"`
	ReasoningEffort   bool    `yaml:"reasoning_effort"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float32 `yaml:"temperature"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	ExtractTimeoutMs  int     `yaml:"extract_timeout_ms"`
}

// Enabled reports whether a model provider is configured.
func (m ModelConfig) Enabled() bool {
	return m.Provider != "none" && m.APIKey != ""
}

// RouterConfig holds routing policy and execution limits.
type RouterConfig struct {
	ConfidenceFloor        float64 `yaml:"confidence_floor"`
	ClassificationFallback float64 `yaml:"classification_fallback"`
	MaxQueryLength         int     `yaml:"max_query_length"`
	StoreTimeoutMs         int     `yaml:"store_timeout_ms"`
	ModelTimeoutSec        int     `yaml:"model_timeout_sec"`
	SimpleLimit            int     `yaml:"simple_limit"`
	CandidatePool          int     `yaml:"candidate_pool"`
	PageSize               int     `yaml:"page_size"`
	DailyLimit             int     `yaml:"daily_limit"` // model-backed queries per user per day; negative = unlimited
	IntentCacheTTLSec      int     `yaml:"intent_cache_ttl_sec"`
	ComplexMode            string  `yaml:"complex_mode"` // low, high
	HybridMode             string  `yaml:"hybrid_mode"`
}

// ClassifierConfig overrides classifier thresholds. Zero keeps the stock value.
type ClassifierConfig struct {
	HybridMin    float64 `yaml:"hybrid_min"`
	HybridRatio  float64 `yaml:"hybrid_ratio"`
	MixedMin     float64 `yaml:"mixed_min"`
	HybridBonus  float64 `yaml:"hybrid_bonus"`
	MixedBonus   float64 `yaml:"mixed_bonus"`
	ComplexBonus float64 `yaml:"complex_bonus"`
	TriggerBonus float64 `yaml:"trigger_bonus"`
	SimpleBonus  float64 `yaml:"simple_bonus"`
}

// ContextConfig bounds the model context window.
type ContextConfig struct {
	MaxRecords int           `yaml:"max_records"`
	MaxTokens  int           `yaml:"max_tokens"`
	Weights    WeightsConfig `yaml:"weights"`
}

// WeightsConfig overrides relevance weights. Nil keeps the stock value.
type WeightsConfig struct {
	Year       *float64 `yaml:"year"`
	Category   *float64 `yaml:"category"`
	Severity   *float64 `yaml:"severity"`
	Status     *float64 `yaml:"status"`
	Department *float64 `yaml:"department"`
	Keywords   *float64 `yaml:"keywords"`
}

// CatalogConfig points at the alias override file.
type CatalogConfig struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
	Output      string  `yaml:"output"` // stdout, stderr or a file path
	Pretty      bool    `yaml:"pretty"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverRedis
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = "askdex:"
	}
	if c.Store.ReadinessTimeout <= 0 {
		c.Store.ReadinessTimeout = 10
	}

	if c.Model.Provider == "" {
		c.Model.Provider = "openai"
	}
	if c.Model.HighModel == "" {
		c.Model.HighModel = "gpt-4o"
	}
	if c.Model.LowModel == "" {
		c.Model.LowModel = "gpt-4o-mini"
	}
	if c.Model.MaxTokens <= 0 {
		c.Model.MaxTokens = 1500
	}
	if c.Model.ExtractTimeoutMs <= 0 {
		c.Model.ExtractTimeoutMs = 5000
	}

	r := &c.Router
	if r.ConfidenceFloor == 0 {
		r.ConfidenceFloor = 0.6
	}
	if r.ClassificationFallback == 0 {
		r.ClassificationFallback = 0.5
	}
	if r.MaxQueryLength <= 0 {
		r.MaxQueryLength = 2000
	}
	if r.StoreTimeoutMs <= 0 {
		r.StoreTimeoutMs = 5000
	}
	if r.ModelTimeoutSec <= 0 {
		r.ModelTimeoutSec = 30
	}
	if r.SimpleLimit <= 0 {
		r.SimpleLimit = 500
	}
	if r.CandidatePool <= 0 {
		r.CandidatePool = 200
	}
	if r.PageSize <= 0 {
		r.PageSize = 50
	}
	if r.DailyLimit == 0 {
		r.DailyLimit = 50
	}
	if r.IntentCacheTTLSec <= 0 {
		r.IntentCacheTTLSec = 900
	}
	if r.ComplexMode == "" {
		r.ComplexMode = "high"
	}
	if r.HybridMode == "" {
		r.HybridMode = "low"
	}

	if c.Context.MaxRecords <= 0 {
		c.Context.MaxRecords = 20
	}
	if c.Context.MaxTokens <= 0 {
		c.Context.MaxTokens = 10000
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "askdex"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Store.Driver {
	case DriverRedis:
		if len(c.Store.Addrs) == 0 {
			return fmt.Errorf("store.addrs is required for the redis driver")
		}
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be redis, sqlite or postgres, got %q", c.Store.Driver)
	}

	switch c.Model.Provider {
	case "openai", "none":
	default:
		return fmt.Errorf("model.provider must be \"openai\" or \"none\", got %q", c.Model.Provider)
	}
	if c.Model.RequestsPerSecond < 0 {
		return fmt.Errorf("model.requests_per_second must not be negative")
	}

	if !inUnit(c.Router.ConfidenceFloor) {
		return fmt.Errorf("router.confidence_floor must be within [0,1], got %v", c.Router.ConfidenceFloor)
	}
	if !inUnit(c.Router.ClassificationFallback) {
		return fmt.Errorf("router.classification_fallback must be within [0,1], got %v", c.Router.ClassificationFallback)
	}
	for name, mode := range map[string]string{
		"router.complex_mode": c.Router.ComplexMode,
		"router.hybrid_mode":  c.Router.HybridMode,
	} {
		if mode != "low" && mode != "high" {
			return fmt.Errorf("%s must be \"low\" or \"high\", got %q", name, mode)
		}
	}

	if !inUnit(c.Tracing.SampleRate) {
		return fmt.Errorf("tracing.sample_rate must be within [0,1], got %v", c.Tracing.SampleRate)
	}
	if c.Catalog.Watch && c.Catalog.File == "" {
		return fmt.Errorf("catalog.watch requires catalog.file")
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

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
