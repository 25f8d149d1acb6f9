// Package cmd defines and implements the CLI commands for the etd-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/etd-crawler/internal/api"
	"github.com/JakeFAU/etd-crawler/internal/config"
	"github.com/JakeFAU/etd-crawler/internal/crawler"
	"github.com/JakeFAU/etd-crawler/internal/logging"
	"github.com/JakeFAU/etd-crawler/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Crawler is the slice of the crawl engine the commands drive.
type Crawler interface {
	Run(ctx context.Context, startID, endID int64) error
	Status() crawler.StatusSnapshot
	Lookup(ctx context.Context, id int64) (crawler.LookupResult, error)
}

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Logger() *zap.Logger
	Documents() api.DocumentIndex
	Crawler() Crawler
	Serve(ctx context.Context) error
	Close(ctx context.Context) error
}

// serverApp adapts *server.App to App.
type serverApp struct {
	*server.App
}

func (a serverApp) Documents() api.DocumentIndex {
	return a.Catalog()
}

func (a serverApp) Crawler() Crawler {
	return a.Engine()
}

func (a serverApp) Serve(ctx context.Context) error {
	return a.Run(ctx)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	app, err := server.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return serverApp{app}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "etd-crawler",
		Short: "Discovers theses and dissertations in an ETD repository by ID.",
		Long: `etd-crawler scans a numeric range of document identifiers on an
electronic theses repository, records every identifier that resolves to a
downloadable file together with a title read from its first page, and keeps
the results in a JSON catalog that can be searched or served over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return nil
			}
			if err := appInstance.Close(context.WithoutCancel(cmd.Context())); err != nil {
				return fmt.Errorf("close application: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); ETD_* environment variables override it")

	cmd.AddCommand(
		newServeCmd(),
		newCrawlCmd(),
		newSearchCmd(),
		newShowCmd(),
		newLookupCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "etd-crawler:", err)
		os.Exit(1)
	}
}
