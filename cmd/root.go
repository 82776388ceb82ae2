// Package cmd defines the shoecrawler CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-shoe-crawler/internal/app"
	"github.com/JakeFAU/sale-shoe-crawler/internal/config"
	"github.com/JakeFAU/sale-shoe-crawler/internal/logging"
	"github.com/JakeFAU/sale-shoe-crawler/internal/scheduler"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what commands need from the application container. Tests inject a
// fake through the factory.
type App interface {
	Logger() *zap.Logger
	Crawl(ctx context.Context, profile string, sections []string) (scheduler.Summary, error)
	Close()
}

// appFactory builds the App once config and logger are ready.
type appFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger, dryRun bool) (App, error)

func defaultAppFactory(ctx context.Context, cfg config.Config, logger *zap.Logger, dryRun bool) (App, error) {
	return app.New(ctx, cfg, logger, app.Options{DryRun: dryRun})
}

type rootState struct {
	cfgFile string
	dryRun  bool
	newApp  appFactory
	app     App
	logger  *zap.Logger
}

// close releases the App and flushes the logger. Later calls do nothing.
func (s *rootState) close() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
	if s.logger != nil {
		_ = s.logger.Sync() //nolint:errcheck // best-effort flush
		s.logger = nil
	}
}

func newRootCmd(newApp appFactory) (*cobra.Command, *rootState) {
	state := &rootState{newApp: newApp}
	cmd := &cobra.Command{
		Use:   "shoecrawler",
		Short: "Crawls retailer catalogs for discounted shoes.",
		Long: `shoecrawler walks a retailer's sale sections, follows their pages and
product links, and upserts one record per discounted product.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(state.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
				OutputPaths: cfg.Logging.Outputs,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			state.logger = logger
			zap.ReplaceGlobals(logger)

			appInstance, err := state.newApp(cmd.Context(), cfg, logger, state.dryRun)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			state.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(*cobra.Command, []string) {
			state.close()
		},
	}

	cmd.PersistentFlags().StringVar(&state.cfgFile, "config", "", "config file (YAML); CRAWLER_* env vars override it")
	cmd.PersistentFlags().BoolVar(&state.dryRun, "dry-run", false, "keep records in memory instead of Postgres")

	cmd.AddCommand(newCrawlCmd(), newProfilesCmd())
	return cmd, state
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the CLI. Any error is fatal.
func Execute(ctx context.Context) {
	root, state := newRootCmd(defaultAppFactory)
	err := root.ExecuteContext(ctx)
	logger := zap.L()
	if state.logger != nil {
		logger = state.logger
	}
	if err != nil {
		if state.app != nil {
			state.app.Close()
		}
		logger.Fatal("command execution failed", zap.Error(err))
	}
}
