// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"

	"github.com/okian/cigame/internal/domain/game"
	"github.com/okian/cigame/internal/domain/rules"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory build queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many build keys are remembered for idempotency.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard/{game}?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// StoreDriver selects user persistence: memory, sqlite or redis.
	StoreDriver string `koanf:"store_driver"`
	// StorePath is the SQLite database file.
	StorePath string `koanf:"store_path"`
	// ScoreCardLimit bounds the score cards kept by the memory store.
	ScoreCardLimit int `koanf:"score_card_limit"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// BuildStream is the Redis stream builds are read from. Empty disables
	// stream intake.
	BuildStream         string `koanf:"build_stream"`
	BuildStreamGroup    string `koanf:"build_stream_group"`
	BuildStreamConsumer string `koanf:"build_stream_consumer"`

	// GamesFile persists the game settings edited at runtime.
	GamesFile string `koanf:"games_file"`

	// AdminToken gates the administrative endpoints. Empty disables them.
	AdminToken string `koanf:"admin_token"`
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `koanf:"cors_origins"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	// MetricsInstance, when set, is attached to every metric as the
	// "instance" label.
	MetricsInstance string `koanf:"metrics_instance"`
	// MetricsLatencyBuckets overrides the latency histogram buckets, in
	// milliseconds.
	MetricsLatencyBuckets []float64 `koanf:"metrics_latency_buckets"`

	// Plugins lists the installed integrations rule sets may require.
	Plugins []string `koanf:"plugins"`

	// RuleSets is the rule book.
	RuleSets []rules.SetSpec `koanf:"rule_sets"`

	// NamesCaseSensitive and CustomGames seed the game settings when no
	// games file exists yet.
	NamesCaseSensitive bool              `koanf:"names_case_sensitive"`
	CustomGames        []game.Definition `koanf:"custom_games"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          100_000,
		MaxLeaderboardLimit: 100,
		StoreDriver:         StoreMemory,
		StorePath:           "cigame.db",
		ScoreCardLimit:      10_000,
		RedisAddr:           "localhost:6379",
		BuildStreamGroup:    "cigame",
		BuildStreamConsumer: "cigame-1",
		GamesFile:           "games.yaml",
		MetricsNamespace:    "cigame",
		MetricsSubsystem:    "scoring",
		CORSOrigins:         []string{"*"},
		NamesCaseSensitive:  true,
		RuleSets:            DefaultRuleSets(),
	}
}

// DefaultRuleSets is the rule book used when none is configured.
func DefaultRuleSets() []rules.SetSpec {
	return []rules.SetSpec{
		{
			Name:    rules.SetBuild,
			Results: map[string]float64{"SUCCESS": 1, "FAILURE": -10},
		},
		{
			Name:     rules.SetUnitTesting,
			Requires: "junit",
			Metrics: []rules.MetricSpec{
				{Metric: "tests.failed", IncreasePoints: -1, DecreasePoints: 1},
				{Metric: "tests.passed", IncreasePoints: 1},
			},
		},
		{
			Name:     rules.SetOpenTasks,
			Requires: "tasks",
			Metrics:  []rules.MetricSpec{{Metric: "tasks.open", IncreasePoints: -1, DecreasePoints: 1}},
		},
		{
			Name:     rules.SetWarnings,
			Requires: "warnings",
			Metrics:  []rules.MetricSpec{{Metric: "warnings.compiler", IncreasePoints: -1, DecreasePoints: 1}},
		},
		{
			Name:     rules.SetCheckstyle,
			Requires: "checkstyle",
			Metrics:  []rules.MetricSpec{{Metric: "warnings.checkstyle", IncreasePoints: -1, DecreasePoints: 1}},
		},
	}
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("%w: store_path is required for sqlite", ErrInvalidConfig)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is required for redis", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.BuildStream != "" && c.RedisAddr == "" {
		return fmt.Errorf("%w: build_stream requires redis_addr", ErrInvalidConfig)
	}
	for i := 1; i < len(c.MetricsLatencyBuckets); i++ {
		if c.MetricsLatencyBuckets[i] <= c.MetricsLatencyBuckets[i-1] {
			return fmt.Errorf("%w: metrics_latency_buckets must be increasing", ErrInvalidConfig)
		}
	}
	for i, s := range c.RuleSets {
		if s.Name == "" {
			return fmt.Errorf("%w: rule_sets[%d] has no name", ErrInvalidConfig, i)
		}
	}
	return nil
}
