// Package leaderboard ranks participating users by their score in one game.
package leaderboard

import (
	"sort"

	"github.com/okian/cigame/internal/domain/attribution"
	"github.com/okian/cigame/internal/domain/game"
	"github.com/okian/cigame/internal/domain/model"
)

// Row is one line of a leaderboard. Rows are built per request and never stored.
type Row struct {
	Rank        int     `json:"rank"`
	User        string  `json:"user"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// Build ranks users for g. A user is included only when participating and
// holding a score for g. Among users whose ids collide under p, the first
// occurrence in users that passes both filters is listed, so an opted-out
// or never-played spelling does not hide a credited one. Rows are ordered
// by score descending, then user id ascending, and equal scores share a rank.
func Build(g game.Game, users []model.User, p attribution.Policy) []Row {
	seen := make(map[string]struct{}, len(users))
	rows := make([]Row, 0, len(users))
	for _, u := range users {
		if u.Score == nil || !u.Score.Participating() {
			continue
		}
		score, ok := u.Score.ScoreFor(g)
		if !ok {
			continue
		}

		k := attribution.Key(u.ID, p)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, Row{User: u.ID, Score: score, Description: u.Description})
	}

	Sort(rows)
	return rows
}

// Sort orders rows by score descending, then user id ascending, and assigns
// their ranks.
func Sort(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].User < rows[j].User
	})
	rank(rows)
}

// Top returns at most n leading rows. n <= 0 returns all rows.
func Top(rows []Row, n int) []Row {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}

// rank assigns consecutive ranks; equal scores share one.
func rank(rows []Row) {
	current := 0
	for i := range rows {
		if i == 0 || rows[i].Score != rows[i-1].Score {
			current++
		}
		rows[i].Rank = current
	}
}
