package repository

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/internal/domain/rules"
)

const defaultScoreCardLimit = 10_000

// MemoryStore keeps everything in process memory. Records are lost on exit.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]model.User
	cards     map[string]*list.Element
	order     *list.List // oldest card at the front
	cardLimit int
}

type card struct {
	build  string
	report rules.Report
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		users:     make(map[string]model.User),
		cards:     make(map[string]*list.Element),
		order:     list.New(),
		cardLimit: defaultScoreCardLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) LoadUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, u model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.users[u.ID] = u.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SaveScoreCard(_ context.Context, r rules.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.cards[r.Build]; ok {
		el.Value.(*card).report = r
		s.order.MoveToBack(el)
		return nil
	}
	s.cards[r.Build] = s.order.PushBack(&card{build: r.Build, report: r})
	for s.cardLimit > 0 && s.order.Len() > s.cardLimit {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.cards, oldest.Value.(*card).build)
	}
	return nil
}

func (s *MemoryStore) ScoreCard(_ context.Context, build string) (rules.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.cards[build]
	if !ok {
		return rules.Report{}, ErrNotFound
	}
	return el.Value.(*card).report, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
