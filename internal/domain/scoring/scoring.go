// Package scoring credits build results to contributors and maintains the
// score ledger when games change.
package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/okian/cigame/internal/domain/attribution"
	"github.com/okian/cigame/internal/domain/directory"
	"github.com/okian/cigame/internal/domain/game"
	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/internal/domain/rules"
	"github.com/okian/cigame/pkg/logger"
	"github.com/okian/cigame/pkg/metrics"
)

// Evaluator computes the score card of a build.
type Evaluator interface {
	Evaluate(ctx context.Context, b *model.Build) (rules.Report, error)
}

// Games resolves the games a project plays in.
type Games interface {
	Applicable(project string) []game.Game
	CustomIDs() map[string]struct{}
}

// Users serializes changes to user records.
type Users interface {
	Update(ctx context.Context, id string, fn directory.MutateFunc) (bool, error)
	ForEachExisting(ctx context.Context, fn directory.MutateFunc) (int, error)
}

// CardStore keeps the score card of every scored build.
type CardStore interface {
	SaveScoreCard(ctx context.Context, r rules.Report) error
}

// Outcome describes what Perform did to the ledger.
type Outcome struct {
	Report       rules.Report
	Contributors []string
	Credited     []string
	OptedOut     []string
	// Changed is true when any user record was modified.
	Changed bool
	// SaveErr joins the per-user save failures. The in-memory scores of
	// those users are still updated.
	SaveErr error
}

// Publisher runs the rule book over a build and credits its contributors.
type Publisher struct {
	engine Evaluator
	games  Games
	users  Users
	cards  CardStore
	policy func() attribution.Policy
	log    logger.Logger
}

// NewPublisher creates a publisher. By default ids are compared case
// sensitively and score cards are not kept.
func NewPublisher(engine Evaluator, games Games, users Users, opts ...Option) *Publisher {
	p := &Publisher{
		engine: engine,
		games:  games,
		users:  users,
		policy: func() attribution.Policy { return attribution.CaseSensitive },
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Perform scores b. A rule failure is returned as an error and leaves the
// ledger untouched. Otherwise the build's total is applied to every
// participating contributor for each game covering the project, and each
// changed user is saved once.
func (p *Publisher) Perform(ctx context.Context, b *model.Build) (Outcome, error) {
	report, err := p.engine.Evaluate(ctx, b)
	if err != nil {
		p.log.Error(ctx, "rule evaluation failed", logger.String("build", b.Key()), logger.Error(err))
		metrics.RecordErrorByComponent("scoring", "rule_failed")
		return Outcome{}, err
	}

	out := Outcome{Report: report}
	if p.cards != nil {
		if err := p.cards.SaveScoreCard(ctx, report); err != nil {
			p.log.Warn(ctx, "score card not saved", logger.String("build", b.Key()), logger.Error(err))
			metrics.RecordErrorByComponent("scoring", "score_card_save")
		}
	}

	out.Contributors = attribution.Contributors(b, p.policy())
	metrics.RecordBuildScored(report.Total)
	if report.Total == 0 || len(out.Contributors) == 0 {
		return out, nil
	}

	games := p.games.Applicable(b.Project)
	var saveErrs []error
	for _, id := range out.Contributors {
		optedOut := false
		changed, err := p.users.Update(ctx, id, func(u *model.User) bool {
			if !u.Participating() {
				optedOut = true
				return false
			}
			entry := u.ScoreEntry()
			for _, g := range games {
				if entry.Apply(g, report.Total) {
					metrics.RecordScoreAdjustment(g.Kind.String())
				}
			}
			return true
		})
		if optedOut {
			out.OptedOut = append(out.OptedOut, id)
			metrics.RecordOptedOutSkip()
			continue
		}
		if changed {
			out.Changed = true
			out.Credited = append(out.Credited, id)
		}
		if err != nil {
			p.log.Error(ctx, "user save failed", logger.String("user", id), logger.String("build", b.Key()), logger.Error(err))
			metrics.RecordUserSaveError("credit")
			saveErrs = append(saveErrs, err)
		}
	}
	out.SaveErr = errors.Join(saveErrs...)

	p.log.Debug(ctx, "build credited",
		logger.String("build", b.Key()),
		logger.Float64("total", report.Total),
		logger.Strings("credited", out.Credited),
		logger.Int("games", len(games)),
	)
	return out, nil
}

// Maintainer keeps stored scores consistent with the game configuration.
type Maintainer struct {
	games Games
	users Users
	log   logger.Logger
}

// NewMaintainer creates a maintainer.
func NewMaintainer(games Games, users Users, opts ...MaintainerOption) *Maintainer {
	m := &Maintainer{games: games, users: users, log: logger.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Prune removes scores of custom games that no longer exist from every
// known user and returns how many users changed. Save failures are logged
// and otherwise ignored; the next prune retries them.
func (m *Maintainer) Prune(ctx context.Context) int {
	start := time.Now()
	valid := m.games.CustomIDs()
	n, err := m.users.ForEachExisting(ctx, func(u *model.User) bool {
		return u.Score != nil && u.Score.PruneObsolete(valid)
	})
	if err != nil {
		m.log.Warn(ctx, "pruned scores not saved", logger.Error(err))
		metrics.RecordUserSaveError("prune")
	}
	metrics.RecordPrunedUsers(n)
	m.log.Info(ctx, "obsolete game scores pruned",
		logger.Int("users", n),
		logger.Int("custom_games", len(valid)),
		logger.Duration("took", time.Since(start)),
	)
	return n
}

// Reset zeroes the score of g for every participating user and returns how
// many users changed. Failed saves do not stop the reset and are returned
// joined.
func (m *Maintainer) Reset(ctx context.Context, g game.Game) (int, error) {
	n, err := m.users.ForEachExisting(ctx, func(u *model.User) bool {
		if u.Score == nil || !u.Score.Participating() {
			return false
		}
		return u.Score.Reset(g)
	})
	metrics.RecordReset(g.Kind.String())
	if err != nil {
		m.log.Error(ctx, "reset scores not saved", logger.String("game", g.ID), logger.Error(err))
		metrics.RecordUserSaveError("reset")
	}
	m.log.Info(ctx, "game scores reset", logger.String("game", g.ID), logger.Int("users", n))
	return n, err
}
