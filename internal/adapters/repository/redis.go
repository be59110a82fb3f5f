package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/cigame/internal/domain/ledger"
	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/internal/domain/rules"
)

const (
	defaultRedisPrefix  = "cigame"
	defaultScoreCardTTL = 30 * 24 * time.Hour
)

// RedisStore keeps one hash per user and score cards as expiring strings.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	cardTTL time.Duration
}

// NewRedisStore wraps client. Keys are namespaced under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, cardTTL: defaultScoreCardTTL}
}

func (s *RedisStore) usersKey() string           { return s.prefix + ":users" }
func (s *RedisStore) userKey(id string) string   { return s.prefix + ":user:" + id }
func (s *RedisStore) cardKey(build string) string { return s.prefix + ":scorecard:" + build }

func (s *RedisStore) LoadUsers(ctx context.Context) ([]model.User, error) {
	ids, err := s.client.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %w", ErrLoad, err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.userKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read users: %w", ErrLoad, err)
	}

	out := make([]model.User, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		u := model.User{ID: id, Description: fields["description"]}
		if raw, ok := fields["score"]; ok && raw != "" {
			u.Score = &ledger.Entry{}
			if err := json.Unmarshal([]byte(raw), u.Score); err != nil {
				return nil, fmt.Errorf("%w: decode score of %s: %w", ErrLoad, id, err)
			}
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *RedisStore) SaveUser(ctx context.Context, u model.User) error {
	score := ""
	if u.Score != nil {
		b, err := json.Marshal(u.Score)
		if err != nil {
			return fmt.Errorf("%w: encode score of %s: %w", ErrSave, u.ID, err)
		}
		score = string(b)
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.userKey(u.ID), "description", u.Description, "score", score)
		p.SAdd(ctx, s.usersKey(), u.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: user %s: %w", ErrSave, u.ID, err)
	}
	return nil
}

func (s *RedisStore) SaveScoreCard(ctx context.Context, r rules.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encode score card %s: %w", ErrSave, r.Build, err)
	}
	if err := s.client.Set(ctx, s.cardKey(r.Build), b, s.cardTTL).Err(); err != nil {
		return fmt.Errorf("%w: score card %s: %w", ErrSave, r.Build, err)
	}
	return nil
}

func (s *RedisStore) ScoreCard(ctx context.Context, build string) (rules.Report, error) {
	raw, err := s.client.Get(ctx, s.cardKey(build)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rules.Report{}, ErrNotFound
	}
	if err != nil {
		return rules.Report{}, fmt.Errorf("%w: score card %s: %w", ErrLoad, build, err)
	}
	var r rules.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return rules.Report{}, fmt.Errorf("%w: decode score card %s: %w", ErrLoad, build, err)
	}
	return r, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
