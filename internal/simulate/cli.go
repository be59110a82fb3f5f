package simulate

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/okian/cigame/internal/adapters/mq/stream"
	"github.com/okian/cigame/internal/domain/model"
)

// StreamPublisher returns a Publish func appending builds to a Redis stream.
func StreamPublisher(client *redis.Client, name string) func(ctx context.Context, b *model.Build) error {
	return func(ctx context.Context, b *model.Build) error {
		_, err := stream.Publish(ctx, client, name, b)
		return err
	}
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`CI Game Build Simulator
=======================

Generates builds for a pool of authors, submits them concurrently and checks
that the default game leaderboard ranks every author as expected. Run it
against a freshly started service.

Usage:
  go run ./cmd/simulate-builds [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -builds int
        Number of distinct builds to generate (default 5000)
  -projects int
        Number of projects (default 8)
  -authors int
        Size of the author pool (default 200)
  -duplicates int
        Builds submitted a second time (default 100)
  -top int
        Leaderboard rows to verify (default 50)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        How long scoring may take to catch up (default 30s)
  -stream string
        Publish to this Redis stream instead of POST /builds
  -redis string
        Redis address used with -stream (default "localhost:6379")
  -output string
        Write the generated builds to this JSON file
  -verbose
        Log submission progress
  -help
        Show this help message

Examples:
  go run ./cmd/simulate-builds -builds 20000 -workers 16
  go run ./cmd/simulate-builds -stream cigame:builds -redis localhost:6379
`)
}
