package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/cigame/internal/simulate"
	"github.com/okian/cigame/pkg/logger"
)

// Default configuration constants.
const (
	defaultBuilds     = 5000
	defaultProjects   = 8
	defaultAuthors    = 200
	defaultDuplicates = 100
	defaultTopN       = 50
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultSettle     = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		builds     = flag.Int("builds", defaultBuilds, "Number of distinct builds to generate")
		projects   = flag.Int("projects", defaultProjects, "Number of projects")
		authors    = flag.Int("authors", defaultAuthors, "Size of the author pool")
		duplicates = flag.Int("duplicates", defaultDuplicates, "Builds submitted a second time")
		topN       = flag.Int("top", defaultTopN, "Leaderboard rows to verify")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettle, "How long scoring may take to catch up")
		streamName = flag.String("stream", "", "Publish to this Redis stream instead of POST /builds")
		redisAddr  = flag.String("redis", "localhost:6379", "Redis address used with -stream")
		outputFile = flag.String("output", "", "Write the generated builds to this JSON file")
		verbose    = flag.Bool("verbose", false, "Log submission progress")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:    *baseURL,
		Builds:     *builds,
		Projects:   *projects,
		Authors:    *authors,
		Duplicates: *duplicates,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		Settle:     *settle,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}
	if *streamName != "" {
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer client.Close()
		cfg.Publish = simulate.StreamPublisher(client, *streamName)
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
