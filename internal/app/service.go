// Package service ties the scoring core to its queue, workers and store and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/cigame/internal/adapters/mq/queue"
	"github.com/okian/cigame/internal/adapters/mq/worker"
	"github.com/okian/cigame/internal/adapters/repository"
	"github.com/okian/cigame/internal/config"
	"github.com/okian/cigame/internal/domain/attribution"
	"github.com/okian/cigame/internal/domain/dedupe"
	"github.com/okian/cigame/internal/domain/directory"
	"github.com/okian/cigame/internal/domain/game"
	"github.com/okian/cigame/internal/domain/leaderboard"
	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/internal/domain/rules"
	"github.com/okian/cigame/internal/domain/scoring"
	"github.com/okian/cigame/pkg/logger"
	"github.com/okian/cigame/pkg/metrics"
)

// Service accepts completed builds, scores them in the background and
// answers leaderboard and administration queries.
type Service struct {
	mu sync.RWMutex

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	ruleSets    []rules.SetSpec
	plugins     []string
	settings    config.GameSettings
	gamesFile   string
	store       repository.Store

	// Components, built by Start
	users      *directory.Directory
	games      *game.Registry
	engine     *rules.Engine
	publisher  *scoring.Publisher
	maintainer *scoring.Maintainer
	deduper    dedupe.Deduper
	queue      *queue.InMemoryQueue
	pool       *worker.Pool

	caseSensitive atomic.Bool
	// settingsMu serializes game configuration changes with their save and prune.
	settingsMu sync.Mutex

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10_000,
		dedupeSize:  100_000,
		ruleSets:    config.DefaultRuleSets(),
		settings:    config.GameSettings{NamesCaseSensitive: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the stored users and starts the scoring workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}

	s.logger.Info(ctx, "starting scoring service...")

	users, err := s.store.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	s.users = directory.New(s.store, users...)

	s.games = game.NewRegistry()
	scopeErrs, err := s.games.Replace(s.settings.CustomGames)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGames, err)
	}
	for _, err := range scopeErrs {
		s.logger.Warn(ctx, "custom game matches no project", logger.Error(err))
	}
	s.caseSensitive.Store(s.settings.NamesCaseSensitive)
	if missingIDs(s.settings.CustomGames) {
		// Write the resolved ids back so edits to a game's name keep its scores.
		if err := config.SaveGameSettings(s.gamesFile, s.currentSettings()); err != nil {
			s.logger.Warn(ctx, "resolved game ids not saved", logger.String("path", s.gamesFile), logger.Error(err))
		}
	}

	s.engine = rules.NewEngine(rules.FromSpecs(s.ruleSets, s.plugins)...)
	s.publisher = scoring.NewPublisher(s.engine, s.games, s.users,
		scoring.WithScoreCards(s.store),
		scoring.WithPolicy(s.Policy),
		scoring.WithLogger(s.logger.Named("publisher")),
	)
	s.maintainer = scoring.NewMaintainer(s.games, s.users,
		scoring.WithMaintainerLogger(s.logger.Named("maintainer")),
	)
	// Settings may have been edited while the service was down.
	s.maintainer.Prune(ctx)

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.ProcessorFunc(s.process), worker.WithLogger(s.logger))

	// Workers outlive the start context and stop once Stop drained the queue.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	metrics.UpdateTotalUsers(s.users.Len())
	metrics.UpdateCustomGames(len(s.settings.CustomGames))
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("users", s.users.Len()),
		logger.Int("ruleSets", len(s.engine.Sets())),
	)
	return nil
}

// Stop drains the queue, waits for the workers and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping scoring service...")

	err := s.pool.Shutdown(ctx)
	s.cancel()
	if cerr := s.store.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
	}

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
	return err
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Policy returns the current id comparison policy.
func (s *Service) Policy() attribution.Policy {
	return attribution.PolicyFor(s.caseSensitive.Load())
}

// Submit validates b and queues it for scoring. A build already accepted
// returns ErrDuplicate; a full queue returns ErrBackpressure and the build
// may be delivered again.
func (s *Service) Submit(ctx context.Context, b *model.Build) error {
	if err := s.running(); err != nil {
		return err
	}
	metrics.RecordBuildReceived()

	if b == nil {
		metrics.RecordBuildRejected("invalid")
		return fmt.Errorf("%w: empty body", ErrInvalidBuild)
	}
	if err := b.Validate(); err != nil {
		metrics.RecordBuildRejected("invalid")
		return fmt.Errorf("%w: %w", ErrInvalidBuild, err)
	}

	key := b.Key()
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordBuildDuplicate()
		s.logger.Debug(ctx, "duplicate build, skipping", logger.String("build", key))
		return ErrDuplicate
	}

	if err := s.queue.Enqueue(ctx, b); err != nil {
		s.deduper.Unrecord(ctx, key)
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			metrics.RecordBuildRejected("backpressure")
			return fmt.Errorf("%w: %s", ErrBackpressure, key)
		}
		return err
	}
	s.logger.Debug(ctx, "build queued", logger.String("build", key), logger.Int("changes", len(b.Changes)))
	return nil
}

// Ingest submits a build delivered by a broker. Duplicates and invalid
// builds are logged and dropped so the message is acknowledged; only a
// backpressure error asks for redelivery.
func (s *Service) Ingest(ctx context.Context, b *model.Build) error {
	err := s.Submit(ctx, b)
	switch {
	case err == nil, errors.Is(err, ErrDuplicate):
		return nil
	case errors.Is(err, ErrInvalidBuild):
		s.logger.Warn(ctx, "dropping invalid build", logger.Error(err))
		return nil
	default:
		return err
	}
}

// ScoreBuild scores b synchronously, bypassing the queue and dedupe.
func (s *Service) ScoreBuild(ctx context.Context, b *model.Build) (scoring.Outcome, error) {
	if err := s.running(); err != nil {
		return scoring.Outcome{}, err
	}
	if err := b.Validate(); err != nil {
		return scoring.Outcome{}, fmt.Errorf("%w: %w", ErrInvalidBuild, err)
	}
	return s.score(ctx, b)
}

// process is the worker entry point. It does not take s.mu so Stop can
// drain the queue while holding it.
func (s *Service) process(ctx context.Context, b *model.Build) error {
	_, err := s.score(ctx, b)
	return err
}

func (s *Service) score(ctx context.Context, b *model.Build) (scoring.Outcome, error) {
	out, err := s.publisher.Perform(ctx, b)
	if err != nil {
		return out, err
	}
	if out.SaveErr != nil {
		s.logger.Warn(ctx, "build scored with unsaved users",
			logger.String("build", b.Key()), logger.Error(out.SaveErr))
	}
	metrics.UpdateTotalUsers(s.users.Len())
	return out, nil
}

// Games returns the default game followed by the custom games by name.
func (s *Service) Games() ([]game.Game, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.games.All(), nil
}

// GameSettings returns the current game settings with custom game ids resolved.
func (s *Service) GameSettings() (config.GameSettings, error) {
	if err := s.running(); err != nil {
		return config.GameSettings{}, err
	}
	return s.currentSettings(), nil
}

func (s *Service) currentSettings() config.GameSettings {
	return config.GameSettings{
		NamesCaseSensitive: s.caseSensitive.Load(),
		CustomGames:        s.games.Definitions(),
	}
}

func missingIDs(defs []game.Definition) bool {
	for _, d := range defs {
		if strings.TrimSpace(d.ID) == "" {
			return true
		}
	}
	return false
}

// GamesUpdate reports the effect of ConfigureGames.
type GamesUpdate struct {
	Settings config.GameSettings
	// ScopeErrors lists games whose project list could not be parsed. Those
	// games are kept but match no project.
	ScopeErrors []error
	// Pruned is the number of users whose obsolete game scores were removed.
	Pruned int
}

// ConfigureGames replaces the game settings, saves them and prunes scores of
// removed games. A failed save is returned; the new settings stay in effect.
// A set that reuses a game id or claims the default game's id fails with
// ErrInvalidGames and changes nothing.
func (s *Service) ConfigureGames(ctx context.Context, gs config.GameSettings) (GamesUpdate, error) {
	if err := s.running(); err != nil {
		return GamesUpdate{}, err
	}
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	scopeErrs, err := s.games.Replace(gs.CustomGames)
	if err != nil {
		return GamesUpdate{}, fmt.Errorf("%w: %w", ErrInvalidGames, err)
	}
	up := GamesUpdate{ScopeErrors: scopeErrs}
	s.caseSensitive.Store(gs.NamesCaseSensitive)
	up.Settings = s.currentSettings()
	metrics.UpdateCustomGames(len(up.Settings.CustomGames))

	var saveErr error
	if err := config.SaveGameSettings(s.gamesFile, up.Settings); err != nil {
		s.logger.Error(ctx, "game settings not saved", logger.String("path", s.gamesFile), logger.Error(err))
		metrics.RecordErrorByComponent("service", "settings_save")
		saveErr = err
	}
	up.Pruned = s.maintainer.Prune(ctx)

	s.logger.Info(ctx, "game settings updated",
		logger.Bool("namesCaseSensitive", gs.NamesCaseSensitive),
		logger.Int("customGames", len(up.Settings.CustomGames)),
		logger.Int("pruned", up.Pruned),
	)
	return up, saveErr
}

// Leaderboard ranks the participating users of gameID. An empty id selects
// the default game. A positive limit keeps only the first rows.
func (s *Service) Leaderboard(ctx context.Context, gameID string, limit int) (game.Game, []leaderboard.Row, error) {
	if err := s.running(); err != nil {
		return game.Game{}, nil, err
	}
	g, err := s.lookup(gameID)
	if err != nil {
		return game.Game{}, nil, err
	}

	start := time.Now()
	rows := leaderboard.Build(g, s.users.Snapshot(), s.Policy())
	if limit > 0 {
		rows = leaderboard.Top(rows, limit)
	}
	metrics.RecordLeaderboardLatency(float64(time.Since(start).Milliseconds()))
	return g, rows, nil
}

// ResetGame zeroes gameID's score of every participating user.
func (s *Service) ResetGame(ctx context.Context, gameID string) (int, error) {
	if err := s.running(); err != nil {
		return 0, err
	}
	g, err := s.lookup(gameID)
	if err != nil {
		return 0, err
	}
	return s.maintainer.Reset(ctx, g)
}

func (s *Service) lookup(gameID string) (game.Game, error) {
	if gameID == "" {
		return game.Default(), nil
	}
	g, ok := s.games.Lookup(gameID)
	if !ok {
		return game.Game{}, fmt.Errorf("%w: %s", ErrUnknownGame, gameID)
	}
	return g, nil
}

// GameScore is a user's score in one game.
type GameScore struct {
	Game  string  `json:"game"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// UserScores is the score sheet of one user.
type UserScores struct {
	User          string      `json:"user"`
	Description   string      `json:"description,omitempty"`
	Participating bool        `json:"participating"`
	Scores        []GameScore `json:"scores"`
}

// UserScores returns the scores of id in every game the user played.
func (s *Service) UserScores(_ context.Context, id string) (UserScores, error) {
	if err := s.running(); err != nil {
		return UserScores{}, err
	}
	u, ok := s.users.Get(id)
	if !ok {
		return UserScores{}, fmt.Errorf("%w: %s", ErrUnknownUser, id)
	}

	out := UserScores{User: u.ID, Description: u.Description, Participating: u.Participating(), Scores: []GameScore{}}
	if u.Score == nil {
		return out, nil
	}
	for _, g := range s.games.All() {
		if score, ok := u.Score.ScoreFor(g); ok {
			out.Scores = append(out.Scores, GameScore{Game: g.ID, Name: g.Name, Score: score})
		}
	}
	return out, nil
}

// Profile is a partial update of a user. Nil fields are left unchanged.
type Profile struct {
	Description   *string `json:"description,omitempty"`
	Participating *bool   `json:"participating,omitempty"`
}

// UpdateProfile applies p to the user id, creating the user when unknown.
// Opting out keeps the stored scores.
func (s *Service) UpdateProfile(ctx context.Context, id string, p Profile) (model.User, error) {
	if err := s.running(); err != nil {
		return model.User{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return model.User{}, fmt.Errorf("%w: missing user id", ErrInvalidProfile)
	}

	var updated model.User
	_, err := s.users.Update(ctx, id, func(u *model.User) bool {
		changed := false
		if p.Description != nil && *p.Description != u.Description {
			u.Description = *p.Description
			changed = true
		}
		if p.Participating != nil && *p.Participating != u.Participating() {
			u.ScoreEntry().SetParticipating(*p.Participating)
			changed = true
		}
		updated = u.Clone()
		return changed
	})
	metrics.UpdateTotalUsers(s.users.Len())
	return updated, err
}

// ScoreCard returns the report kept for build number of project.
func (s *Service) ScoreCard(ctx context.Context, project string, number int) (rules.Report, error) {
	if err := s.running(); err != nil {
		return rules.Report{}, err
	}
	key := model.BuildKey(project, number)
	r, err := s.store.ScoreCard(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return rules.Report{}, fmt.Errorf("%w: %s", ErrNoScoreCard, key)
	}
	return r, err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	var sets []string
	for _, set := range s.engine.Sets() {
		if set.Available() {
			sets = append(sets, set.Name())
		}
	}
	queueLen := s.queue.Len()
	totalUsers := s.users.Len()
	customGames := len(s.games.Definitions())

	stats["queueLength"] = queueLen
	stats["totalUsers"] = totalUsers
	stats["customGames"] = customGames
	stats["seenBuilds"] = s.deduper.Size()
	stats["ruleSets"] = sets
	stats["namesCaseSensitive"] = s.caseSensitive.Load()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateTotalUsers(totalUsers)
	metrics.UpdateCustomGames(customGames)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	return stats
}
