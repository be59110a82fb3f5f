package model

import "github.com/okian/cigame/internal/domain/ledger"

// User is a build participant as known to the host. Score is nil until the
// user is first credited.
type User struct {
	ID          string        `json:"id"`
	Description string        `json:"description,omitempty"`
	Score       *ledger.Entry `json:"score,omitempty"`
}

// ScoreEntry returns the user's ledger entry, creating a participating one
// when the user has none yet.
func (u *User) ScoreEntry() *ledger.Entry {
	if u.Score == nil {
		u.Score = ledger.New(0)
	}
	return u.Score
}

// Participating reports whether the user takes part in the game. Users
// without a ledger entry participate by default.
func (u *User) Participating() bool {
	return u.Score == nil || u.Score.Participating()
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
	u.Score = u.Score.Clone()
	return u
}
