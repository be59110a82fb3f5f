// Package ledger holds a user's accumulated scores across games.
package ledger

import (
	"fmt"

	"github.com/okian/cigame/internal/domain/game"
)

// Entry is the per-user score record: one score for the default game and
// a sparse map of custom game scores. An absent custom key means the user
// never played that game.
type Entry struct {
	Score        float64            `json:"score"`
	CustomScores map[string]float64 `json:"custom_game_scores,omitempty"`

	// NotParticipating is inverted so a zero value record participates.
	NotParticipating bool `json:"not_participating,omitempty"`
}

// New returns a participating entry with an initial default game score.
func New(score float64) *Entry {
	return &Entry{Score: score}
}

// Participating reports whether the user takes part in the game.
func (e *Entry) Participating() bool { return !e.NotParticipating }

// SetParticipating opts the user in or out. Stored scores are kept either way.
func (e *Entry) SetParticipating(v bool) { e.NotParticipating = !v }

// Adjust adds delta to the user's score for g regardless of participation.
func (e *Entry) Adjust(g game.Game, delta float64) {
	switch g.Kind {
	case game.KindDefault:
		e.Score += delta
	case game.KindCustom:
		if e.CustomScores == nil {
			e.CustomScores = make(map[string]float64)
		}
		current, ok := e.CustomScores[g.ID]
		if !ok {
			current = 0
		}
		e.CustomScores[g.ID] = current + delta
	default:
		panic(fmt.Sprintf("ledger: unknown game kind %v", g.Kind))
	}
}

// Apply adjusts the score for g when the user participates. It reports
// whether the adjustment was applied so callers know to persist the record.
func (e *Entry) Apply(g game.Game, delta float64) bool {
	if !e.Participating() {
		return false
	}
	e.Adjust(g, delta)
	return true
}

// ScoreFor returns the score for g. The default game always has a score;
// a custom game has one only once the user was credited for it.
func (e *Entry) ScoreFor(g game.Game) (float64, bool) {
	switch g.Kind {
	case game.KindDefault:
		return e.Score, true
	case game.KindCustom:
		score, ok := e.CustomScores[g.ID]
		return score, ok
	default:
		return 0, false
	}
}

// Reset zeroes the score for g. A custom game the user never played is left
// absent. It reports whether the stored value changed.
func (e *Entry) Reset(g game.Game) bool {
	switch g.Kind {
	case game.KindDefault:
		changed := e.Score != 0
		e.Score = 0
		return changed
	case game.KindCustom:
		score, ok := e.CustomScores[g.ID]
		if !ok {
			return false
		}
		e.CustomScores[g.ID] = 0
		return score != 0
	default:
		return false
	}
}

// PruneObsolete drops every custom game score whose id is not in valid and
// reports whether anything was removed.
func (e *Entry) PruneObsolete(valid map[string]struct{}) bool {
	changed := false
	for id := range e.CustomScores {
		if _, ok := valid[id]; !ok {
			delete(e.CustomScores, id)
			changed = true
		}
	}
	return changed
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.CustomScores != nil {
		c.CustomScores = make(map[string]float64, len(e.CustomScores))
		for id, score := range e.CustomScores {
			c.CustomScores[id] = score
		}
	}
	return &c
}

func (e *Entry) String() string {
	return fmt.Sprintf("ledger.Entry[participating=%t score=%g custom=%v]", e.Participating(), e.Score, e.CustomScores)
}
