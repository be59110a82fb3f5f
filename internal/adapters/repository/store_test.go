package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/okian/cigame/internal/adapters/repository"
	"github.com/okian/cigame/internal/config"
	"github.com/okian/cigame/internal/domain/ledger"
	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/internal/domain/rules"
	. "github.com/smartystreets/goconvey/convey"
)

// storeContract runs the behaviour every Store shares.
func storeContract(newStore func() repository.Store) {
	ctx := context.Background()

	Convey("When users are saved and loaded", func() {
		s := newStore()
		defer func() { _ = s.Close() }()

		alice := model.User{ID: "alice", Description: "release manager", Score: ledger.New(12.5)}
		alice.Score.CustomScores = map[string]float64{"g1": 3}
		opted := model.User{ID: "bob", Score: ledger.New(4)}
		opted.Score.SetParticipating(false)

		So(s.SaveUser(ctx, alice), ShouldBeNil)
		So(s.SaveUser(ctx, opted), ShouldBeNil)
		So(s.SaveUser(ctx, model.User{ID: "carol"}), ShouldBeNil)

		users, err := s.LoadUsers(ctx)
		So(err, ShouldBeNil)
		byID := map[string]model.User{}
		for _, u := range users {
			byID[u.ID] = u
		}

		Convey("Then every field survives", func() {
			So(len(users), ShouldEqual, 3)
			So(byID["alice"].Description, ShouldEqual, "release manager")
			So(byID["alice"].Score.Score, ShouldEqual, 12.5)
			So(byID["alice"].Score.CustomScores["g1"], ShouldEqual, 3)
			So(byID["bob"].Score.Participating(), ShouldBeFalse)
			So(byID["carol"].Score, ShouldBeNil)
		})
	})

	Convey("When a user is saved twice", func() {
		s := newStore()
		defer func() { _ = s.Close() }()

		So(s.SaveUser(ctx, model.User{ID: "dave", Score: ledger.New(1)}), ShouldBeNil)
		So(s.SaveUser(ctx, model.User{ID: "dave", Score: ledger.New(2)}), ShouldBeNil)
		users, err := s.LoadUsers(ctx)

		Convey("Then the last save wins", func() {
			So(err, ShouldBeNil)
			So(len(users), ShouldEqual, 1)
			So(users[0].Score.Score, ShouldEqual, 2)
		})
	})

	Convey("When a score card is saved", func() {
		s := newStore()
		defer func() { _ = s.Close() }()

		report := rules.Report{
			Build:   "core#3",
			Entries: []rules.Entry{{Set: "build", Rule: "build-result", Result: rules.Result{Points: 1, Description: "Build result was SUCCESS"}}},
			Total:   1,
		}
		So(s.SaveScoreCard(ctx, report), ShouldBeNil)

		Convey("Then it can be read back by build key", func() {
			got, err := s.ScoreCard(ctx, "core#3")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, report)
		})

		Convey("And unknown builds are not found", func() {
			_, err := s.ScoreCard(ctx, "core#4")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		storeContract(func() repository.Store { return repository.NewMemoryStore() })
	})

	Convey("Given a memory store keeping two score cards", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(repository.WithScoreCardLimit(2))
		for _, b := range []string{"a#1", "a#2", "a#3"} {
			So(s.SaveScoreCard(ctx, rules.Report{Build: b}), ShouldBeNil)
		}

		Convey("Then the oldest card is dropped", func() {
			_, err := s.ScoreCard(ctx, "a#1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = s.ScoreCard(ctx, "a#3")
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a seeded memory store", t, func() {
		s := repository.NewMemoryStore(repository.WithUsers(model.User{ID: "zed"}, model.User{ID: "amy"}))
		users, err := s.LoadUsers(context.Background())

		Convey("Then users load sorted by id", func() {
			So(err, ShouldBeNil)
			So(users[0].ID, ShouldEqual, "amy")
			So(users[1].ID, ShouldEqual, "zed")
		})
	})
}

func TestSQLiteStore(t *testing.T) {
	Convey("Given a SQLite store", t, func() {
		dir := t.TempDir()
		n := 0
		storeContract(func() repository.Store {
			n++
			s, err := repository.OpenSQLite(context.Background(), filepath.Join(dir, "scores-"+string(rune('a'+n))+".db"))
			So(err, ShouldBeNil)
			return s
		})
	})

	Convey("Given a SQLite file reopened", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "reopen.db")
		s, err := repository.OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		So(s.SaveUser(ctx, model.User{ID: "erin", Score: ledger.New(7)}), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		again, err := repository.OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		defer func() { _ = again.Close() }()
		users, err := again.LoadUsers(ctx)

		Convey("Then records persist across opens", func() {
			So(err, ShouldBeNil)
			So(len(users), ShouldEqual, 1)
			So(users[0].Score.Score, ShouldEqual, 7)
		})
	})

	Convey("Given an empty path", t, func() {
		_, err := repository.OpenSQLite(context.Background(), " ")
		So(err, ShouldNotBeNil)
	})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CIGAME_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CIGAME_TEST_REDIS_ADDR not set")
	}

	Convey("Given a Redis store", t, func() {
		n := 0
		storeContract(func() repository.Store {
			n++
			client := redis.NewClient(&redis.Options{Addr: addr})
			prefix := "cigame-test-" + t.Name() + "-" + string(rune('a'+n))
			keys, _ := client.Keys(context.Background(), prefix+":*").Result()
			if len(keys) > 0 {
				client.Del(context.Background(), keys...)
			}
			return repository.NewRedisStore(client, prefix)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given store drivers", t, func() {
		ctx := context.Background()
		cfg := config.New()

		Convey("When memory is selected", func() {
			s, err := repository.Open(ctx, cfg)
			So(err, ShouldBeNil)
			_, ok := s.(*repository.MemoryStore)
			So(ok, ShouldBeTrue)
		})

		Convey("When sqlite is selected", func() {
			cfg.StoreDriver = config.StoreSQLite
			cfg.StorePath = filepath.Join(t.TempDir(), "open.db")
			s, err := repository.Open(ctx, cfg)
			So(err, ShouldBeNil)
			defer func() { _ = s.Close() }()
			_, ok := s.(*repository.SQLiteStore)
			So(ok, ShouldBeTrue)
		})

		Convey("When the driver is unknown", func() {
			cfg.StoreDriver = "mongo"
			_, err := repository.Open(ctx, cfg)
			So(errors.Is(err, repository.ErrDriver), ShouldBeTrue)
		})
	})
}
