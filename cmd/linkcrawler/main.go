package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/linkcrawler/internal/api"
	"github.com/JakeFAU/linkcrawler/internal/clock/system"
	"github.com/JakeFAU/linkcrawler/internal/config"
	"github.com/JakeFAU/linkcrawler/internal/crawler"
	"github.com/JakeFAU/linkcrawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/linkcrawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/linkcrawler/internal/fetcher/headless"
	"github.com/JakeFAU/linkcrawler/internal/fetcher/promote"
	idgen "github.com/JakeFAU/linkcrawler/internal/id/uuid"
	"github.com/JakeFAU/linkcrawler/internal/links"
	"github.com/JakeFAU/linkcrawler/internal/logging"
	"github.com/JakeFAU/linkcrawler/internal/metrics"
	"github.com/JakeFAU/linkcrawler/internal/progress"
	"github.com/JakeFAU/linkcrawler/internal/progress/sinks"
	memoryStorage "github.com/JakeFAU/linkcrawler/internal/storage/memory"
	postgresStorage "github.com/JakeFAU/linkcrawler/internal/storage/postgres"
	redisStorage "github.com/JakeFAU/linkcrawler/internal/storage/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger, os.Stdout)
	stop()
	if syncErr := logger.Sync(); syncErr != nil && !errors.Is(syncErr, syscall.EINVAL) {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "linkcrawler: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, out io.Writer) error {
	metrics.Init()

	fetcher, closeFetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFetcher()

	hub, err := newHub(cfg.Progress, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	dispatch, err := dispatcher.New(dispatcher.Deps{
		Fetcher:    fetcher,
		Extractor:  links.NewExtractor(),
		Resolver:   links.NewResolver(cfg.Crawler.AllowedSchemes),
		NewVisited: visitedFactory(cfg.Visited, logger),
		IDs:        idgen.New(),
		Clock:      system.New(),
		Events:     hub,
	}, logger)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	var srv *http.Server
	if cfg.Server.Port > 0 {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(dispatch, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	crawlDone := make(chan struct{})
	var result dispatcher.Result

	g.Go(func() error {
		defer close(crawlDone)
		res, err := dispatch.Crawl(gctx, dispatcher.Params{
			Seeds:          cfg.Crawler.Seeds,
			Workers:        cfg.Crawler.Concurrency,
			QueueCapacity:  cfg.Crawler.QueueCapacity,
			VisitedCeiling: cfg.Crawler.VisitedCeiling,
		})
		result = res
		return err
	})

	if srv != nil {
		g.Go(func() error {
			logger.Info("status server started", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-crawlDone:
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("status server shutdown error", zap.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()
	// A canceled crawl still reports what it visited.
	if werr := printVisited(out, result.Visited); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return err
	}
	logger.Info("crawl complete",
		zap.String("crawl_id", result.CrawlID.String()),
		zap.Int("visited", len(result.Visited)),
		zap.Duration("duration", result.Duration),
	)
	return nil
}

func newFetcher(cfg config.Config, logger *zap.Logger) (crawler.Fetcher, func(), error) {
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
	})
	if cfg.Fetcher.Kind == config.FetcherColly {
		return probe, func() {}, nil
	}

	render, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Crawler.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("headless fetcher: %w", err)
	}
	if cfg.Fetcher.Kind == config.FetcherHeadless {
		return render, render.Close, nil
	}
	detector := promote.NewHeuristic(cfg.Headless.PromotionThresh)
	return promote.New(probe, render, detector, logger), render.Close, nil
}

func newHub(cfg config.ProgressConfig, logger *zap.Logger) (*progress.Hub, error) {
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink: %w", err)
	}
	sinkList := []progress.Sink{promSink}
	if cfg.LogEvents {
		sinkList = append(sinkList, sinks.NewLogSink(logger))
	}
	return progress.NewHub(progress.Config{
		BufferSize:     cfg.BufferSize,
		MaxBatchEvents: cfg.MaxBatchEvents,
		MaxBatchWait:   cfg.MaxBatchWait,
		Logger:         logger,
	}, sinkList...), nil
}

func visitedFactory(cfg config.VisitedConfig, logger *zap.Logger) dispatcher.VisitedFactory {
	switch cfg.Backend {
	case config.VisitedRedis:
		return func(ctx context.Context, crawlID uuid.UUID) (crawler.VisitedSet, error) {
			set, err := redisStorage.NewVisitedSet(ctx, redisStorage.Config{
				Addr:   cfg.RedisAddr,
				Prefix: cfg.RedisPrefix,
				TTL:    cfg.RedisTTL,
				Logger: logger,
			}, crawlID.String())
			if err != nil {
				return nil, err
			}
			return set, nil
		}
	case config.VisitedPostgres:
		return func(ctx context.Context, crawlID uuid.UUID) (crawler.VisitedSet, error) {
			set, err := postgresStorage.NewVisitedSet(ctx, postgresStorage.Config{
				DSN:      cfg.PostgresDSN,
				Table:    cfg.PostgresTable,
				MaxConns: cfg.PostgresMaxConns,
			}, crawlID.String())
			if err != nil {
				return nil, err
			}
			return set, nil
		}
	default:
		return func(context.Context, uuid.UUID) (crawler.VisitedSet, error) {
			return memoryStorage.NewVisitedSet(), nil
		}
	}
}

func printVisited(out io.Writer, visited []string) error {
	w := bufio.NewWriter(out)
	for _, url := range visited {
		if _, err := fmt.Fprintln(w, url); err != nil {
			return fmt.Errorf("write visited: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write visited: %w", err)
	}
	return nil
}
