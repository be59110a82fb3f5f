// Package repository persists user records and build score cards.
package repository

import (
	"context"

	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/internal/domain/rules"
)

// Store is the persistence collaborator of the scoring core. Saves are not
// retried here; callers decide what a failed save means.
type Store interface {
	// LoadUsers returns every stored user record.
	LoadUsers(ctx context.Context) ([]model.User, error)
	// SaveUser inserts or replaces the record of u.ID.
	SaveUser(ctx context.Context, u model.User) error

	// SaveScoreCard keeps the evaluation report of a build, keyed by r.Build.
	SaveScoreCard(ctx context.Context, r rules.Report) error
	// ScoreCard returns the report of build. Returns ErrNotFound if none is kept.
	ScoreCard(ctx context.Context, build string) (rules.Report, error)

	Close() error
}
