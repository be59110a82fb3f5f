package ledger_test

import (
	"testing"

	"github.com/okian/cigame/internal/domain/game"
	"github.com/okian/cigame/internal/domain/ledger"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	defaultGame = game.Default()
	customGame  = game.NewCustom(game.Definition{ID: "g1", Name: "Backend", Jobs: "api"})
	otherGame   = game.NewCustom(game.Definition{ID: "g2", Name: "Frontend", Jobs: "web"})
)

func TestEntry_Adjust(t *testing.T) {
	Convey("Given a fresh entry", t, func() {
		e := ledger.New(0)

		Convey("Then the default game starts at zero and custom games are absent", func() {
			score, ok := e.ScoreFor(defaultGame)
			So(ok, ShouldBeTrue)
			So(score, ShouldEqual, 0)

			_, ok = e.ScoreFor(customGame)
			So(ok, ShouldBeFalse)
		})

		Convey("When a sequence of deltas is applied", func() {
			deltas := []float64{5, -2.5, 10, 0, -1}
			for _, d := range deltas {
				So(e.Apply(defaultGame, d), ShouldBeTrue)
				So(e.Apply(customGame, d), ShouldBeTrue)
			}

			Convey("Then each game's score is the sum of its deltas", func() {
				score, _ := e.ScoreFor(defaultGame)
				So(score, ShouldEqual, 11.5)

				custom, ok := e.ScoreFor(customGame)
				So(ok, ShouldBeTrue)
				So(custom, ShouldEqual, 11.5)
			})

			Convey("And an untouched custom game stays absent", func() {
				_, ok := e.ScoreFor(otherGame)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a zero delta is the first custom adjustment", func() {
			e.Apply(customGame, 0)

			Convey("Then the game counts as played with zero", func() {
				score, ok := e.ScoreFor(customGame)
				So(ok, ShouldBeTrue)
				So(score, ShouldEqual, 0)
			})
		})
	})

	Convey("Given an entry that opted out", t, func() {
		e := ledger.New(10)
		e.SetParticipating(false)

		Convey("When a delta is applied", func() {
			applied := e.Apply(defaultGame, 5)

			Convey("Then nothing changes and the caller is told so", func() {
				So(applied, ShouldBeFalse)
				score, _ := e.ScoreFor(defaultGame)
				So(score, ShouldEqual, 10)
			})
		})

		Convey("When the user opts back in", func() {
			e.SetParticipating(true)

			Convey("Then the stored history is intact", func() {
				So(e.Participating(), ShouldBeTrue)
				score, _ := e.ScoreFor(defaultGame)
				So(score, ShouldEqual, 10)
			})
		})
	})
}

func TestEntry_Reset(t *testing.T) {
	Convey("Given an entry with scores", t, func() {
		e := ledger.New(42)
		e.Apply(customGame, 7)

		Convey("When resetting the default game", func() {
			changed := e.Reset(defaultGame)

			Convey("Then it reads zero", func() {
				So(changed, ShouldBeTrue)
				score, ok := e.ScoreFor(defaultGame)
				So(ok, ShouldBeTrue)
				So(score, ShouldEqual, 0)
			})

			Convey("And resetting again reports no change", func() {
				So(e.Reset(defaultGame), ShouldBeFalse)
			})
		})

		Convey("When resetting a played custom game", func() {
			So(e.Reset(customGame), ShouldBeTrue)

			Convey("Then it reads zero and stays present", func() {
				score, ok := e.ScoreFor(customGame)
				So(ok, ShouldBeTrue)
				So(score, ShouldEqual, 0)
			})
		})

		Convey("When resetting a custom game never played", func() {
			So(e.Reset(otherGame), ShouldBeFalse)

			Convey("Then no spurious entry is created", func() {
				_, ok := e.ScoreFor(otherGame)
				So(ok, ShouldBeFalse)
				So(len(e.CustomScores), ShouldEqual, 1)
			})
		})
	})
}

func TestEntry_PruneObsolete(t *testing.T) {
	Convey("Given an entry with two custom games", t, func() {
		e := ledger.New(2)
		e.CustomScores = map[string]float64{"id": 15, "id2": 15}

		Convey("When only one id remains valid", func() {
			changed := e.PruneObsolete(map[string]struct{}{"id": {}})

			Convey("Then the obsolete score is removed", func() {
				So(changed, ShouldBeTrue)
				_, ok := e.CustomScores["id"]
				So(ok, ShouldBeTrue)
				_, ok = e.CustomScores["id2"]
				So(ok, ShouldBeFalse)
			})

			Convey("And the default score is untouched", func() {
				So(e.Score, ShouldEqual, 2)
			})
		})

		Convey("When every id is still valid", func() {
			changed := e.PruneObsolete(map[string]struct{}{"id": {}, "id2": {}})

			Convey("Then nothing changes", func() {
				So(changed, ShouldBeFalse)
				So(len(e.CustomScores), ShouldEqual, 2)
			})
		})

		Convey("When no custom game remains", func() {
			So(e.PruneObsolete(nil), ShouldBeTrue)
			So(e.CustomScores, ShouldBeEmpty)
		})
	})
}

func TestEntry_Clone(t *testing.T) {
	Convey("Given an entry", t, func() {
		e := ledger.New(1)
		e.Apply(customGame, 3)

		Convey("When cloned and the clone is modified", func() {
			c := e.Clone()
			c.Apply(customGame, 100)
			c.SetParticipating(false)

			Convey("Then the original is unaffected", func() {
				score, _ := e.ScoreFor(customGame)
				So(score, ShouldEqual, 3)
				So(e.Participating(), ShouldBeTrue)
			})
		})
	})
}
