package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/cigame/internal/adapters/http/api"
	"github.com/okian/cigame/internal/adapters/mq/stream"
	"github.com/okian/cigame/internal/adapters/repository"
	service "github.com/okian/cigame/internal/app"
	"github.com/okian/cigame/internal/config"
	"github.com/okian/cigame/pkg/logger"
	"github.com/okian/cigame/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Load configuration (defaults -> optional file -> env) before logging,
	// which depends on the configured format.
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithJSON(cfg.LogFormat == "json")); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "cigame stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	configureMetrics(cfg)

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info(ctx, "store opened", logger.String("driver", cfg.StoreDriver))

	svc, err := newService(cfg, store, log)
	if err != nil {
		_ = store.Close()
		return err
	}
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		updateServiceMetrics(ctx, svc)
	}()

	if cfg.BuildStream != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		consumer := newStreamConsumer(cfg, client, svc, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer client.Close()
			if err := consumer.Run(ctx); err != nil {
				log.Error(ctx, "build stream consumer failed", logger.Error(err))
			}
		}()
	}

	srv := newHTTPServer(cfg, svc, log)
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a failed listener.
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	wg.Wait()
	if err := svc.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}

	log.Info(ctx, "server stopped")
	return runErr
}

// configureMetrics applies the metric naming and labels from cfg.
func configureMetrics(cfg *config.Config) {
	var labels map[string]string
	if cfg.MetricsInstance != "" {
		labels = map[string]string{"instance": cfg.MetricsInstance}
	}
	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(cfg.MetricsLatencyBuckets),
		metrics.WithConstLabels(labels),
	)
}

// newService builds the scoring service. Saved game settings take
// precedence over the ones in the configuration.
func newService(cfg *config.Config, store repository.Store, log logger.Logger) (*service.Service, error) {
	settings, err := config.LoadGameSettings(cfg.GamesFile, cfg.GameSettings())
	if err != nil {
		return nil, err
	}
	return service.New(
		service.WithLogger(log),
		service.WithStore(store),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithRuleSets(cfg.RuleSets),
		service.WithPlugins(cfg.Plugins...),
		service.WithGameSettings(settings),
		service.WithGamesFile(cfg.GamesFile),
	), nil
}

func newHTTPServer(cfg *config.Config, svc *service.Service, log logger.Logger) *http.Server {
	handler := api.NewServer(svc,
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithAuthorizer(api.NewTokenAuthorizer(cfg.AdminToken)),
		api.WithAllowedOrigins(cfg.CORSOrigins...),
		api.WithLogger(log.Named("http")),
	).Router()

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func newStreamConsumer(cfg *config.Config, client *redis.Client, svc *service.Service, log logger.Logger) *stream.Consumer {
	return stream.NewConsumer(client, cfg.BuildStream, cfg.BuildStreamGroup, cfg.BuildStreamConsumer,
		stream.SubmitterFunc(svc.Ingest),
		stream.WithLogger(log.Named("stream")),
	)
}

// updateServiceMetrics refreshes the gauges derived from service stats
// until ctx is done.
func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the queue, user and system gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}
