// Package simulate drives a running service with generated builds and checks
// the resulting leaderboard against the scores the builds should produce.
package simulate

import (
	"context"
	"time"

	"github.com/okian/cigame/internal/domain/model"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Builds     int           // Number of distinct builds to generate
	Projects   int           // Number of projects builds are spread over
	Authors    int           // Size of the author pool
	Duplicates int           // Builds submitted a second time
	TopN       int           // Leaderboard rows fetched and checked
	Workers    int           // Concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // How long scoring may take to catch up
	OutputFile string        // Where generated builds are written, optional
	Verbose    bool          // Log progress

	// Points per build result. Must match the service's build rule set.
	Points map[model.Result]float64

	// Publish, when set, replaces the HTTP submission path, e.g. with a
	// Redis stream producer.
	Publish func(ctx context.Context, b *model.Build) error
}

// DefaultPoints mirrors the default build rule set of the service.
func DefaultPoints() map[model.Result]float64 {
	return map[model.Result]float64{
		model.ResultSuccess: 1,
		model.ResultFailure: -10,
	}
}

// AckResponse is the body answered by POST /builds.
type AckResponse struct {
	Status    string `json:"status"`
	Build     string `json:"build"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	BuildsGenerated    int
	BuildsSubmitted    int
	BuildsAccepted     int
	BuildsDuplicate    int
	BuildsFailed       int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
