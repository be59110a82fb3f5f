package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/okian/cigame/internal/domain/leaderboard"
)

// ErrMismatch reports a leaderboard that differs from the expected one.
var ErrMismatch = errors.New("leaderboard mismatch")

type leaderboardResponse struct {
	Entries []leaderboard.Row `json:"entries"`
}

// fetchLeaderboard reads the top n rows of gameID. An empty id reads the
// default game.
func (c *client) fetchLeaderboard(ctx context.Context, gameID string, n int) ([]leaderboard.Row, error) {
	path := "/leaderboard"
	if gameID != "" {
		path += "/" + url.PathEscape(gameID)
	}
	path += "?limit=" + strconv.Itoa(n)

	var resp leaderboardResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Verify compares the served rows with the top n expected rows.
func Verify(expected, actual []leaderboard.Row, n int) error {
	want := leaderboard.Top(expected, n)
	if len(actual) != len(want) {
		return fmt.Errorf("%w: %d rows served, %d expected", ErrMismatch, len(actual), len(want))
	}
	for i := range want {
		a, w := actual[i], want[i]
		if i > 0 && a.Score > actual[i-1].Score {
			return fmt.Errorf("%w: row %d scores higher than row %d", ErrMismatch, i+1, i)
		}
		if a.User != w.User || a.Score != w.Score || a.Rank != w.Rank {
			return fmt.Errorf("%w: row %d is %s (rank %d, %.1f), expected %s (rank %d, %.1f)",
				ErrMismatch, i+1, a.User, a.Rank, a.Score, w.User, w.Rank, w.Score)
		}
	}
	return nil
}
