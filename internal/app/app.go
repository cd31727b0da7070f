// Package app is the composition root shared by the CLI and the SDK.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/askdex/internal/config"
	dbRedis "github.com/kailas-cloud/askdex/internal/db/redis"
	"github.com/kailas-cloud/askdex/internal/domain/catalog"
	"github.com/kailas-cloud/askdex/internal/domain/llm"
	"github.com/kailas-cloud/askdex/internal/domain/record"
	"github.com/kailas-cloud/askdex/internal/metrics"
	"github.com/kailas-cloud/askdex/internal/repository/catalogfile"
	"github.com/kailas-cloud/askdex/internal/repository/intentcache"
	quotarepo "github.com/kailas-cloud/askdex/internal/repository/quota"
	recordrepo "github.com/kailas-cloud/askdex/internal/repository/record"
	"github.com/kailas-cloud/askdex/internal/repository/sqlrecord"
	chiTransport "github.com/kailas-cloud/askdex/internal/transport/chi"
	openaiModel "github.com/kailas-cloud/askdex/internal/transport/openai"
	"github.com/kailas-cloud/askdex/internal/usecase/classify"
	"github.com/kailas-cloud/askdex/internal/usecase/extract"
	"github.com/kailas-cloud/askdex/internal/usecase/format"
	healthuc "github.com/kailas-cloud/askdex/internal/usecase/health"
	modeluc "github.com/kailas-cloud/askdex/internal/usecase/model"
	"github.com/kailas-cloud/askdex/internal/usecase/quota"
	"github.com/kailas-cloud/askdex/internal/usecase/ragcontext"
	"github.com/kailas-cloud/askdex/internal/usecase/route"
	"github.com/kailas-cloud/askdex/internal/usecase/usage"
)

// RecordStore is a findings store that can also be written to.
type RecordStore interface {
	route.Store
	Put(ctx context.Context, records ...record.Record) error
}

// Model is a language model usable for both generation and extraction.
type Model = modeluc.Model

// Overrides replace components built from config. Tests and SDK users
// inject their own store or model through it.
type Overrides struct {
	Store RecordStore
	Model Model
	Now   func() time.Time
}

type quotaCounter interface {
	quota.Counter
	usage.CounterReader
}

// App holds the wired services.
type App struct {
	Config  config.Config
	Router  *route.Router
	Health  *healthuc.Service
	Usage   *usage.Service
	Records RecordStore
	Catalog *catalogfile.Watcher
	Logger  *zap.Logger

	closers []func() error
}

// Build wires every component from cfg.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, ov Overrides) (a *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.RegisterRouterMetrics()
	metrics.RegisterModelMetrics()

	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	cat, err := a.buildCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	var rdb *dbRedis.Store
	if cfg.Store.UsesRedis() {
		if rdb, err = a.connectRedis(ctx, cfg.Store); err != nil {
			return nil, err
		}
	}

	var pinger healthuc.StorePinger
	switch {
	case ov.Store != nil:
		a.Records = ov.Store
		pinger = pingerOf(ov.Store)
	case cfg.Store.Driver == config.DriverRedis:
		if rdb == nil {
			return nil, errors.New("redis driver requires store.addrs")
		}
		repo := recordrepo.New(rdb, cfg.Store.KeyPrefix, metrics.StoreRequestDuration)
		if err := repo.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("ensure findings index: %w", err)
		}
		a.Records, pinger = repo, rdb
	default:
		dialect, err := sqlrecord.ParseDialect(cfg.Store.Driver)
		if err != nil {
			return nil, err
		}
		repo, err := sqlrecord.Open(ctx, dialect, cfg.Store.DSN, metrics.StoreRequestDuration)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", dialect, err)
		}
		a.closers = append(a.closers, repo.Close)
		a.Records, pinger = repo, repo
	}

	deps := route.Deps{
		Store:     a.Records,
		Context:   ragcontext.New(weights(cfg.Context.Weights)),
		Formatter: format.New(cfg.Router.PageSize),
		Logger:    logger,
	}

	var (
		model   Model
		checker healthuc.ModelChecker
	)
	switch {
	case ov.Model != nil:
		model = ov.Model
		if hc, ok := ov.Model.(healthuc.ModelChecker); ok {
			checker = hc
		}
	case cfg.Model.Enabled():
		client := openaiModel.New(&openaiModel.Config{
			APIKey:            cfg.Model.APIKey,
			BaseURL:           cfg.Model.BaseURL,
			HighModel:         cfg.Model.HighModel,
			LowModel:          cfg.Model.LowModel,
			ExtractModel:      cfg.Model.ExtractModel,
			ReasoningEffort:   cfg.Model.ReasoningEffort,
			MaxTokens:         cfg.Model.MaxTokens,
			Temperature:       cfg.Model.Temperature,
			RequestsPerSecond: cfg.Model.RequestsPerSecond,
			Burst:             cfg.Model.Burst,
			Logger:            logger,
		})
		model, checker = client, client
	default:
		logger.Info("no model provider configured, analytical queries return records only")
	}

	extractOpts := []extract.Option{
		extract.WithLogger(logger),
		extract.WithModelTimeout(time.Duration(cfg.Model.ExtractTimeoutMs) * time.Millisecond),
	}
	if ov.Now != nil {
		extractOpts = append(extractOpts, extract.WithClock(ov.Now))
	}
	// deps.Model must stay a nil interface when there is no model.
	if model != nil {
		instrumented := modeluc.NewInstrumented(model, cfg.Model.HighModel, logger)
		deps.Model = instrumented
		extractOpts = append(extractOpts, extract.WithModel(instrumented))
	}
	extractor := extract.New(cat, extractOpts...)
	deps.Extractor = extractor
	deps.Classifier = classify.New(cat, extractor, classifierConfig(cfg.Classifier))

	limit := max(cfg.Router.DailyLimit, 0)
	var counter quotaCounter
	if rdb != nil {
		qs := quotarepo.New(rdb, "redis", metrics.StoreRequestDuration)
		counter = quota.NewStoreCounter(qs, limit, cfg.Store.KeyPrefix, ov.Now, logger)
		deps.Cache = intentcache.New(rdb, cfg.Store.KeyPrefix,
			time.Duration(cfg.Router.IntentCacheTTLSec)*time.Second, metrics.IntentCacheTotal, logger)
	} else {
		counter = quota.NewMemoryCounter(limit, ov.Now)
	}
	deps.Quota = counter
	a.Usage = usage.New(counter, ov.Now)

	var opts []route.Option
	if ov.Now != nil {
		opts = append(opts, route.WithClock(ov.Now))
	}
	a.Router = route.New(routerConfig(cfg), deps, opts...)
	a.Health = healthuc.New(pinger, checker, logger)

	logger.Info("askdex wired",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("model", model != nil),
		zap.Bool("redis", rdb != nil),
		zap.Int("daily_limit", limit),
	)
	return a, nil
}

// Handler returns the HTTP API with its middleware chain.
func (a *App) Handler() http.Handler {
	server := chiTransport.NewServer(a.Router, a.Health, a.Logger).WithUsage(a.Usage)
	return chiTransport.NewHandler(server, a.Config.Auth.APIKeys, a.Logger)
}

// WatchCatalog reloads the alias override file until ctx is done. It is a
// no-op without a watched file.
func (a *App) WatchCatalog(ctx context.Context) error {
	if a.Catalog == nil || !a.Config.Catalog.Watch {
		return nil
	}
	return a.Catalog.Run(ctx)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) buildCatalog(cfg config.CatalogConfig) (catalog.Provider, error) {
	base := catalog.Default()
	if cfg.File == "" {
		return catalog.NewStatic(base), nil
	}
	w, err := catalogfile.NewWatcher(cfg.File, base, metrics.CatalogReloadsTotal, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Catalog = w
	return w, nil
}

func (a *App) connectRedis(ctx context.Context, cfg config.StoreConfig) (*dbRedis.Store, error) {
	rdb, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	a.closers = append(a.closers, func() error { rdb.Close(); return nil })

	if err := rdb.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	a.Logger.Info("connected to redis", zap.Strings("addrs", cfg.Addrs))
	return rdb, nil
}

func routerConfig(cfg config.Config) route.Config {
	rc := route.DefaultConfig()
	r := cfg.Router
	rc.ConfidenceFloor = r.ConfidenceFloor
	rc.ClassificationFallback = r.ClassificationFallback
	rc.MaxQueryLength = r.MaxQueryLength
	rc.StoreTimeout = time.Duration(r.StoreTimeoutMs) * time.Millisecond
	rc.ModelTimeout = time.Duration(r.ModelTimeoutSec) * time.Second
	rc.SimpleLimit = r.SimpleLimit
	rc.CandidatePool = r.CandidatePool
	rc.ContextMaxRecords = cfg.Context.MaxRecords
	rc.ContextMaxTokens = cfg.Context.MaxTokens
	if m, err := llm.ParseMode(r.ComplexMode); err == nil {
		rc.ComplexMode = m
	}
	if m, err := llm.ParseMode(r.HybridMode); err == nil {
		rc.HybridMode = m
	}
	return rc
}

func classifierConfig(c config.ClassifierConfig) classify.Config {
	out := classify.DefaultConfig()
	for _, o := range []struct {
		dst *float64
		v   float64
	}{
		{&out.HybridMin, c.HybridMin},
		{&out.HybridRatio, c.HybridRatio},
		{&out.MixedMin, c.MixedMin},
		{&out.HybridBonus, c.HybridBonus},
		{&out.MixedBonus, c.MixedBonus},
		{&out.ComplexBonus, c.ComplexBonus},
		{&out.TriggerBonus, c.TriggerBonus},
		{&out.SimpleBonus, c.SimpleBonus},
	} {
		if o.v != 0 {
			*o.dst = o.v
		}
	}
	return out
}

func weights(c config.WeightsConfig) ragcontext.Weights {
	w := ragcontext.DefaultWeights()
	for _, o := range []struct {
		dst *float64
		v   *float64
	}{
		{&w.Year, c.Year},
		{&w.Category, c.Category},
		{&w.Severity, c.Severity},
		{&w.Status, c.Status},
		{&w.Department, c.Department},
		{&w.Keywords, c.Keywords},
	} {
		if o.v != nil {
			*o.dst = *o.v
		}
	}
	return w
}

type alwaysUp struct{}

func (alwaysUp) Ping(context.Context) error { return nil }

func pingerOf(s RecordStore) healthuc.StorePinger {
	if p, ok := s.(healthuc.StorePinger); ok {
		return p
	}
	return alwaysUp{}
}
