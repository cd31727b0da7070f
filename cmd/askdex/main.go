// Command askdex answers free-text questions about audit findings.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askdex/internal/app"
	"github.com/kailas-cloud/askdex/internal/config"
	logpkg "github.com/kailas-cloud/askdex/internal/logger"
	"github.com/kailas-cloud/askdex/internal/version"
)

// globalFlags hold the persistent flag values shared by every command.
type globalFlags struct {
	env        string
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "askdex",
		Short:         "Route questions about audit findings to lookups or model analysis",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.env, "env", config.GetEnv(), "environment name; selects config/<env>.yaml")
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file path (overrides --env)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(g),
		newAskCmd(g),
		newClassifyCmd(g),
		newSeedCmd(g),
		newUsageCmd(g),
	)
	return root
}

func (g *globalFlags) load() (config.Config, *zap.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load(g.env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger, err := logpkg.NewLogger(g.env, level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

// build loads config and wires the application.
func (g *globalFlags) build(ctx context.Context) (*app.App, error) {
	cfg, logger, err := g.load()
	if err != nil {
		return nil, err
	}
	a, err := app.Build(ctx, cfg, logger, app.Overrides{})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}
