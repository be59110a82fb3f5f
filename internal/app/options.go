package service

import (
	"github.com/okian/cigame/internal/adapters/repository"
	"github.com/okian/cigame/internal/config"
	"github.com/okian/cigame/internal/domain/rules"
	"github.com/okian/cigame/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the build queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many build keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets where user records and score cards are kept. The service
// closes the store on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRuleSets replaces the rule book.
func WithRuleSets(specs []rules.SetSpec) Option {
	return func(s *Service) {
		s.ruleSets = specs
	}
}

// WithPlugins lists the installed integrations rule sets may require.
func WithPlugins(names ...string) Option {
	return func(s *Service) {
		s.plugins = names
	}
}

// WithGameSettings sets the game settings the service starts with.
func WithGameSettings(gs config.GameSettings) Option {
	return func(s *Service) {
		s.settings = gs
	}
}

// WithGamesFile sets where game settings are saved after every change.
// An empty path keeps them in memory.
func WithGamesFile(path string) Option {
	return func(s *Service) {
		s.gamesFile = path
	}
}
