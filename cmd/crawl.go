package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shopharvest/shopharvest/internal/catalog"
	"github.com/shopharvest/shopharvest/internal/clock/system"
	"github.com/shopharvest/shopharvest/internal/config"
	"github.com/shopharvest/shopharvest/internal/crawl"
	"github.com/shopharvest/shopharvest/internal/extract"
	"github.com/shopharvest/shopharvest/internal/fetcher"
	"github.com/shopharvest/shopharvest/internal/logging"
	"github.com/shopharvest/shopharvest/internal/normalize"
	"github.com/shopharvest/shopharvest/internal/seed"
	"github.com/shopharvest/shopharvest/internal/server"
	"github.com/shopharvest/shopharvest/internal/sink"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one catalog crawl
// to completion and exits.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a storefront catalog",
		Long: `Crawls the configured storefront, extracting product records through
the strategy chain and writing them to the configured output.`,
		RunE: runCrawlCommand,
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetchClient, err := fetcher.New(fetcher.Config{
		UserAgent:        cfg.HTTP.UserAgent,
		Timeout:          cfg.RequestTimeout(),
		RespectRobots:    cfg.HTTP.RespectRobots,
		TransportRetries: cfg.HTTP.TransportRetries,
		Proxies:          cfg.Proxy.Addresses,
		PoolSize:         cfg.Proxy.PoolSize,
		MaxSessionUses:   cfg.Proxy.MaxSessionUses,
		MaxSessionErrors: cfg.Proxy.MaxSessionErrors,
	}, logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	store, err := buildSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init output: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("output close failed", zap.Error(cerr))
		}
	}()

	seeds, err := resolveSeeds(ctx, cfg, fetchClient, logger)
	if err != nil {
		return err
	}

	metricsServer := server.New(cfg.Server.MetricsPort, logger)
	metricsServer.Start()
	defer func() {
		if serr := metricsServer.Shutdown(context.Background()); serr != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(serr))
		}
	}()

	orchestrator := crawl.New(
		fetchClient,
		extract.NewChain(logger,
			extract.NewAPIStrategy(fetchClient),
			extract.NewJSONLDStrategy(),
			extract.NewHTMLStrategy(),
		),
		normalize.New(cfg.Crawl.IncludeVariants, system.Clock{}),
		store,
		catalog.NewExponentialRetryPolicy(cfg.Crawl.PageRetries, cfg.BackoffInitial(), cfg.BackoffMax()),
		system.Clock{},
		logger,
		crawl.Options{
			Workers:           cfg.Crawl.Concurrency,
			MaxProducts:       cfg.Crawl.MaxProducts,
			MaxPages:          cfg.Crawl.MaxPages,
			FrontierDepth:     cfg.Crawl.FrontierDepth,
			IncludeOutOfStock: cfg.Crawl.IncludeOutOfStock,
		},
	)

	summary, err := orchestrator.Run(ctx, seeds)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}

	logger.Info("crawl command finished",
		zap.String("run_id", summary.RunID),
		zap.Int("accepted", summary.Accepted),
		zap.Int("failures", summary.Failures),
	)
	return nil
}

// resolveSeeds builds the initial frontier, optionally augmented by
// sitemap discovery.
func resolveSeeds(ctx context.Context, cfg config.Config, fetchClient catalog.Fetcher, logger *zap.Logger) ([]catalog.SeedURL, error) {
	seeds, err := seed.Resolve(seed.Options{
		Root:        cfg.Shop.Root,
		URLs:        cfg.Shop.URLs,
		Collection:  cfg.Shop.Collection,
		SearchQuery: cfg.Shop.SearchQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve seeds: %w", err)
	}

	if cfg.Shop.DiscoverSitemap && cfg.Shop.Root != "" {
		discovered, derr := seed.DiscoverSitemapSeeds(ctx, fetchClient, logger, cfg.Shop.Root, cfg.Shop.SitemapLimit)
		if derr != nil {
			logger.Warn("sitemap discovery failed", zap.Error(derr))
		} else {
			seeds = append(seeds, discovered...)
		}
	}
	return seeds, nil
}

func buildSink(ctx context.Context, cfg config.Config) (catalog.Sink, error) {
	switch cfg.Output.Format {
	case "jsonl":
		store, err := sink.NewJSONL(cfg.Output.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := sink.NewPostgres(ctx, cfg.Output.DSN, cfg.Output.Table)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return sink.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Output.Format)
	}
}
