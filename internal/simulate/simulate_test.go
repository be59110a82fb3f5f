package simulate_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cigame/internal/adapters/http/api"
	service "github.com/okian/cigame/internal/app"
	"github.com/okian/cigame/internal/domain/leaderboard"
	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/internal/simulate"
	"github.com/okian/cigame/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func build(project string, number int, result model.Result, authors ...string) *model.Build {
	b := &model.Build{Project: project, Number: number, Result: result}
	for _, a := range authors {
		b.Changes = append(b.Changes, model.Change{Author: a})
	}
	return b
}

func TestGenerate(t *testing.T) {
	Convey("Given a generator configuration", t, func() {
		cfg := &simulate.Config{Builds: 300, Projects: 4, Authors: 10}
		stats := &simulate.Stats{}

		builds, err := simulate.Generate(context.Background(), cfg, stats)
		So(err, ShouldBeNil)

		Convey("Then every build is valid and has a distinct key", func() {
			So(builds, ShouldHaveLength, 300)
			So(stats.BuildsGenerated, ShouldEqual, 300)

			keys := map[string]struct{}{}
			authors := map[string]struct{}{}
			last := map[string]int{}
			for _, b := range builds {
				So(b.Validate(), ShouldBeNil)
				So(len(b.Changes), ShouldBeBetweenOrEqual, 1, 3)
				So(b.Number, ShouldEqual, last[b.Project]+1)
				last[b.Project] = b.Number
				keys[b.Key()] = struct{}{}
				for _, c := range b.Changes {
					authors[c.Author] = struct{}{}
				}
			}
			So(keys, ShouldHaveLength, 300)
			So(len(last), ShouldBeLessThanOrEqualTo, 4)
			So(len(authors), ShouldBeLessThanOrEqualTo, 10)
		})
	})

	Convey("Given an empty author pool", t, func() {
		_, err := simulate.Generate(context.Background(), &simulate.Config{Builds: 1, Projects: 1}, nil)

		Convey("Then generation is refused", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestExpected(t *testing.T) {
	Convey("Given builds with repeated and shared authors", t, func() {
		builds := []*model.Build{
			build("core", 1, model.ResultSuccess, "alice", "alice", "bob"),
			build("core", 2, model.ResultSuccess, "bob"),
			build("core", 3, model.ResultFailure, "carol"),
			build("core", 4, model.ResultUnstable, "dave"),
		}

		rows := simulate.Expected(builds, simulate.DefaultPoints())

		Convey("Then each author is credited once per build", func() {
			So(rows, ShouldResemble, []leaderboard.Row{
				{Rank: 1, User: "bob", Score: 2},
				{Rank: 2, User: "alice", Score: 1},
				{Rank: 3, User: "carol", Score: -10},
			})
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given an expected leaderboard", t, func() {
		expected := []leaderboard.Row{
			{Rank: 1, User: "a", Score: 3},
			{Rank: 2, User: "b", Score: 1},
			{Rank: 2, User: "c", Score: 1},
		}

		Convey("Then the same top rows verify", func() {
			So(simulate.Verify(expected, expected[:2], 2), ShouldBeNil)
		})

		Convey("Then a swapped row is a mismatch", func() {
			served := []leaderboard.Row{expected[0], expected[2], expected[1]}
			So(errors.Is(simulate.Verify(expected, served, 3), simulate.ErrMismatch), ShouldBeTrue)
		})

		Convey("Then missing rows are a mismatch", func() {
			So(errors.Is(simulate.Verify(expected, expected[:1], 3), simulate.ErrMismatch), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(1000))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(api.NewServer(svc).Router())
		defer srv.Close()

		Convey("When a simulation runs against it", func() {
			stats, err := simulate.Run(ctx, &simulate.Config{
				BaseURL:    srv.URL,
				Builds:     200,
				Projects:   3,
				Authors:    20,
				Duplicates: 10,
				TopN:       100,
				Workers:    4,
				Timeout:    5 * time.Second,
				Settle:     10 * time.Second,
			})

			Convey("Then the leaderboard matches the generated builds", func() {
				So(err, ShouldBeNil)
				So(stats.BuildsAccepted, ShouldEqual, 200)
				So(stats.BuildsDuplicate, ShouldEqual, 10)
				So(stats.BuildsFailed, ShouldEqual, 0)
				So(stats.LeaderboardEntries, ShouldBeGreaterThan, 0)
			})
		})
	})
}
