package scoring

import (
	"github.com/okian/cigame/internal/domain/attribution"
	"github.com/okian/cigame/pkg/logger"
)

// Option applies a configuration option to the Publisher.
type Option func(*Publisher)

// WithScoreCards keeps the score card of every evaluated build in store.
func WithScoreCards(store CardStore) Option {
	return func(p *Publisher) {
		p.cards = store
	}
}

// WithPolicy reads the id comparison policy on every build, so a settings
// change applies to the next build.
func WithPolicy(policy func() attribution.Policy) Option {
	return func(p *Publisher) {
		if policy != nil {
			p.policy = policy
		}
	}
}

// WithLogger sets the publisher's logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

// MaintainerOption applies a configuration option to the Maintainer.
type MaintainerOption func(*Maintainer)

// WithMaintainerLogger sets the maintainer's logger.
func WithMaintainerLogger(l logger.Logger) MaintainerOption {
	return func(m *Maintainer) {
		if l != nil {
			m.log = l
		}
	}
}
