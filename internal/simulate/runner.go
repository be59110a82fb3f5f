package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/cigame/internal/domain/leaderboard"
	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
	pollInterval        = 250 * time.Millisecond
	defaultSettle       = 30 * time.Second
	defaultTopN         = 50
)

// Run executes a complete simulation against cfg.BaseURL. The service is
// expected to start from an empty ledger with the build rule set matching
// cfg.Points.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get()
	stats := &Stats{StartTime: time.Now()}
	if cfg.Points == nil {
		cfg.Points = DefaultPoints()
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}
	if cfg.TopN <= 0 {
		cfg.TopN = defaultTopN
	}

	log.Info(ctx, "starting build simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("builds", cfg.Builds),
		logger.Int("duplicates", cfg.Duplicates),
		logger.Int("workers", cfg.Workers),
		logger.Int("topN", cfg.TopN),
		logger.Duration("timeout", cfg.Timeout))

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.get(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	builds, err := Generate(ctx, cfg, stats)
	if err != nil {
		return stats, fmt.Errorf("build generation failed: %w", err)
	}

	Submit(ctx, cfg, withDuplicates(builds, cfg.Duplicates), stats)
	if stats.BuildsFailed > 0 {
		return stats, fmt.Errorf("%d builds were not accepted", stats.BuildsFailed)
	}

	expected := Expected(builds, cfg.Points)
	rows, err := settle(ctx, c, cfg, expected)
	stats.LeaderboardEntries = len(rows)
	if err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := saveBuilds(cfg.OutputFile, builds); err != nil {
			log.Warn(ctx, "failed to save builds to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, stats)
	return stats, nil
}

// settle polls the leaderboard until it matches expected or cfg.Settle
// elapses. Scoring is asynchronous so early reads may lag.
func settle(ctx context.Context, c *client, cfg *Config, expected []leaderboard.Row) ([]leaderboard.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Settle)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		rows, err := c.fetchLeaderboard(ctx, "", cfg.TopN)
		if err == nil {
			if err = Verify(expected, rows, cfg.TopN); err == nil {
				logger.Get().Info(ctx, "leaderboard verified", logger.Int("rows", len(rows)))
				return rows, nil
			}
		}
		select {
		case <-ctx.Done():
			return rows, err
		case <-ticker.C:
		}
	}
}

func saveBuilds(path string, builds []*model.Build) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(builds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal builds: %w", err)
	}
	return os.WriteFile(path, data, filePermission)
}

func logStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.BuildsSubmitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "simulation statistics",
		logger.Int("buildsGenerated", stats.BuildsGenerated),
		logger.Int("buildsSubmitted", stats.BuildsSubmitted),
		logger.Int("buildsAccepted", stats.BuildsAccepted),
		logger.Int("buildsDuplicate", stats.BuildsDuplicate),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("buildsPerSecond", perSecond))
}
