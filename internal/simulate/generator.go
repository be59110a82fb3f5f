package simulate

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cigame/internal/domain/leaderboard"
	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/pkg/logger"
)

const maxChangesPerBuild = 3

// resultWeights spreads results roughly 6:2:2.
var resultWeights = []model.Result{
	model.ResultSuccess, model.ResultSuccess, model.ResultSuccess,
	model.ResultSuccess, model.ResultSuccess, model.ResultSuccess,
	model.ResultFailure, model.ResultFailure,
	model.ResultUnstable, model.ResultUnstable,
}

// randomInt returns a uniform value in [0, n) using crypto/rand.
func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// Authors returns n distinct author ids.
func Authors(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "dev-" + uuid.NewString()[:8]
	}
	return out
}

// Generate creates cfg.Builds builds spread over cfg.Projects projects. Build
// numbers increase per project so every key is distinct.
func Generate(ctx context.Context, cfg *Config, stats *Stats) ([]*model.Build, error) {
	if cfg.Builds < 1 || cfg.Projects < 1 || cfg.Authors < 1 {
		return nil, fmt.Errorf("builds, projects and authors must be positive")
	}
	logger.Get().Info(ctx, "generating builds",
		logger.Int("builds", cfg.Builds),
		logger.Int("projects", cfg.Projects),
		logger.Int("authors", cfg.Authors))

	authors := Authors(cfg.Authors)
	numbers := make([]int, cfg.Projects)
	now := time.Now().UTC()

	builds := make([]*model.Build, cfg.Builds)
	for i := range builds {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("build generation cancelled: %w", err)
		}
		p := randomInt(cfg.Projects)
		numbers[p]++
		b := &model.Build{
			Project: fmt.Sprintf("project-%02d", p+1),
			Number:  numbers[p],
			Result:  resultWeights[randomInt(len(resultWeights))],
			TS:      now.Add(time.Duration(i) * time.Millisecond),
		}
		for n := 1 + randomInt(maxChangesPerBuild); n > 0; n-- {
			b.Changes = append(b.Changes, model.Change{Author: authors[randomInt(len(authors))]})
		}
		builds[i] = b
	}

	if stats != nil {
		stats.BuildsGenerated = len(builds)
	}
	return builds, nil
}

// Expected returns the default game leaderboard the builds should produce
// when every author participates. Each distinct author of a build receives
// the build's full points; builds worth nothing credit nobody.
func Expected(builds []*model.Build, points map[model.Result]float64) []leaderboard.Row {
	scores := make(map[string]float64)
	for _, b := range builds {
		total := points[b.Result]
		if total == 0 {
			continue
		}
		seen := make(map[string]struct{}, len(b.Changes))
		for _, c := range b.Changes {
			if _, dup := seen[c.Author]; dup || c.Author == "" {
				continue
			}
			seen[c.Author] = struct{}{}
			scores[c.Author] += total
		}
	}

	rows := make([]leaderboard.Row, 0, len(scores))
	for user, score := range scores {
		rows = append(rows, leaderboard.Row{User: user, Score: score})
	}
	leaderboard.Sort(rows)
	return rows
}
