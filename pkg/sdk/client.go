package askdex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/askdex/internal/app"
	"github.com/kailas-cloud/askdex/internal/config"
)

// Client is the askdex SDK entry point.
type Client struct {
	app *app.App
	obs *observer
}

// New creates a Client and connects to the configured store.
func New(opts ...Option) (*Client, error) {
	return NewContext(context.Background(), opts...)
}

// NewContext is New with a context bounding store connection and readiness.
func NewContext(ctx context.Context, opts ...Option) (*Client, error) {
	c, err := resolve(opts)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(c.logger, c.metricsReg)
	if err != nil {
		return nil, err
	}

	a, err := app.Build(ctx, c.cfg, c.logger, app.Overrides{
		Store: c.store,
		Model: c.model,
		Now:   c.now,
	})
	if err != nil {
		return nil, fmt.Errorf("askdex: %w", err)
	}
	return &Client{app: a, obs: obs}, nil
}

// resolve applies options over the config file, if any, and validates.
func resolve(opts []Option) (*clientConfig, error) {
	c := &clientConfig{}
	for _, o := range opts {
		o.apply(c)
	}

	if c.configPath != "" {
		loaded, err := config.LoadFile(c.configPath)
		if err != nil {
			return nil, fmt.Errorf("askdex: %w", err)
		}
		c = &clientConfig{cfg: loaded}
		for _, o := range opts {
			o.apply(c)
		}
	} else if c.store == nil && c.cfg.Store.Driver == "" {
		return nil, errors.New("askdex: findings store required (use WithRedis, WithSQLite, WithPostgres or WithStore)")
	}

	c.cfg.ApplyDefaults()

	// Store settings are unused with an injected store.
	check := c.cfg
	if c.store != nil {
		check.Store = config.StoreConfig{Driver: config.DriverSQLite, DSN: "external"}
	}
	if err := check.Validate(); err != nil {
		return nil, fmt.Errorf("askdex: %w", err)
	}
	return c, nil
}

// Close releases store connections.
func (c *Client) Close() error {
	if c == nil || c.app == nil {
		return nil
	}
	return c.app.Close()
}

// Route classifies text and answers it on the chosen path.
func (c *Client) Route(ctx context.Context, text string, opts ...QueryOption) (resp Response, err error) {
	defer func(start time.Time) { c.obs.observe("route", start, err) }(time.Now())
	return c.app.Router.Route(ctx, text, queryOptions(opts))
}

// ExecuteAs answers text on the given path, skipping classification.
func (c *Client) ExecuteAs(ctx context.Context, text string, kind Kind, opts ...QueryOption) (resp Response, err error) {
	defer func(start time.Time) { c.obs.observe("execute_as", start, err) }(time.Now())
	return c.app.Router.ExecuteAs(ctx, text, kind, queryOptions(opts))
}

// Classify reports how text would be routed without executing it.
func (c *Client) Classify(ctx context.Context, text string) (cl Classification, err error) {
	defer func(start time.Time) { c.obs.observe("classify", start, err) }(time.Now())
	return c.app.Router.Classify(ctx, text)
}

// Lookup fetches one finding by id.
func (c *Client) Lookup(ctx context.Context, id string) (rec Record, err error) {
	defer func(start time.Time) { c.obs.observe("lookup", start, err) }(time.Now())
	return c.app.Router.Lookup(ctx, id)
}

// Seed writes findings to the store. Findings without an id get a
// generated one.
func (c *Client) Seed(ctx context.Context, records ...Record) (err error) {
	defer func(start time.Time) { c.obs.observe("seed", start, err) }(time.Now())
	records = slices.Clone(records)
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if err := records[i].Validate(); err != nil {
			return fmt.Errorf("askdex: %w", err)
		}
	}
	return c.app.Records.Put(ctx, records...)
}

// Usage reports the daily analytical quota state of userID.
func (c *Client) Usage(ctx context.Context, userID string) (r UsageReport, err error) {
	defer func(start time.Time) { c.obs.observe("usage", start, err) }(time.Now())
	return c.app.Usage.GetReport(ctx, userID)
}

// Health checks the store and the model provider.
func (c *Client) Health(ctx context.Context) HealthReport {
	return c.app.Health.Check(ctx)
}

// Handler returns the HTTP API, for mounting the service in-process.
func (c *Client) Handler() http.Handler {
	return c.app.Handler()
}
