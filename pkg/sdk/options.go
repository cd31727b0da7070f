package askdex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askdex/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg        config.Config
	configPath string

	store Store
	model Model
	now   func() time.Time

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithConfigFile loads settings from a YAML file. Options applied after it
// override the file.
func WithConfigFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.configPath = path
	})
}

// WithRedis stores findings, quotas and cached intents in Redis.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Store.Driver = config.DriverRedis
		c.cfg.Store.Addrs = []string{addr}
		c.cfg.Store.Password = password
	})
}

// WithSQLite stores findings in a SQLite database file.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Store.Driver = config.DriverSQLite
		c.cfg.Store.DSN = path
	})
}

// WithPostgres stores findings in PostgreSQL.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Store.Driver = config.DriverPostgres
		c.cfg.Store.DSN = dsn
	})
}

// WithStore uses s as the findings store instead of a configured driver.
func WithStore(s Store) Option {
	return optionFunc(func(c *clientConfig) {
		c.store = s
	})
}

// WithKeyPrefix sets the Redis key prefix. Default: "askdex:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Store.KeyPrefix = prefix
	})
}

// WithOpenAI enables analysis through the OpenAI API.
func WithOpenAI(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Model.Provider = "openai"
		c.cfg.Model.APIKey = apiKey
	})
}

// WithModels selects the chat models used for high and low effort analysis.
// Defaults: gpt-4o and gpt-4o-mini.
func WithModels(high, low string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Model.HighModel = high
		c.cfg.Model.LowModel = low
	})
}

// WithModel uses m for analysis and filter extraction instead of a provider.
func WithModel(m Model) Option {
	return optionFunc(func(c *clientConfig) {
		c.model = m
	})
}

// WithDailyLimit caps analytical queries per user per UTC day. Negative
// disables the cap. Default: 50.
func WithDailyLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Router.DailyLimit = n
	})
}

// WithCatalogFile merges alias overrides from a YAML file into the built-in
// catalog.
func WithCatalogFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Catalog.File = path
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// withClock fixes the time source for quota windows.
func withClock(now func() time.Time) Option {
	return optionFunc(func(c *clientConfig) {
		c.now = now
	})
}
