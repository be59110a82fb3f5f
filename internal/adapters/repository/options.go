package repository

import "github.com/okian/cigame/internal/domain/model"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithScoreCardLimit bounds the number of score cards kept. The oldest card
// is dropped first. A limit <= 0 keeps every card.
func WithScoreCardLimit(limit int) Option {
	return func(s *MemoryStore) {
		s.cardLimit = limit
	}
}

// WithUsers seeds the store with user records.
func WithUsers(users ...model.User) Option {
	return func(s *MemoryStore) {
		for _, u := range users {
			s.users[u.ID] = u.Clone()
		}
	}
}
