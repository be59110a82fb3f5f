package game_test

import (
	"errors"
	"testing"

	"github.com/okian/cigame/internal/domain/game"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseScope(t *testing.T) {
	Convey("Given a comma separated job list", t, func() {
		Convey("When the list is well formed", func() {
			projects, err := game.ParseScope(" core , web,, cli ")

			Convey("Then names are trimmed and blanks skipped in order", func() {
				So(err, ShouldBeNil)
				So(projects, ShouldResemble, []string{"core", "web", "cli"})
			})
		})

		Convey("When the list is blank", func() {
			projects, err := game.ParseScope(" , ")

			Convey("Then it reports an empty scope", func() {
				So(errors.Is(err, game.ErrEmptyScope), ShouldBeTrue)
				So(projects, ShouldBeNil)
			})
		})

		Convey("When a name contains a quote", func() {
			_, err := game.ParseScope(`core, "web`)

			Convey("Then it reports a malformed scope", func() {
				So(errors.Is(err, game.ErrMalformedScope), ShouldBeTrue)
			})
		})

		Convey("When a name contains a control character", func() {
			_, err := game.ParseScope("core, we\tb")

			Convey("Then it reports a malformed scope", func() {
				So(errors.Is(err, game.ErrMalformedScope), ShouldBeTrue)
			})
		})
	})
}

func TestGame_Covers(t *testing.T) {
	Convey("Given the default game", t, func() {
		g := game.Default()

		Convey("Then it covers every project", func() {
			So(g.IsDefault(), ShouldBeTrue)
			So(g.ID, ShouldEqual, game.DefaultID)
			So(g.Covers("anything"), ShouldBeTrue)
			So(g.Covers(""), ShouldBeTrue)
		})
	})

	Convey("Given a custom game", t, func() {
		g := game.NewCustom(game.Definition{ID: "g1", Name: "Backend", Jobs: "api, worker"})

		Convey("Then it covers only its projects", func() {
			So(g.Kind, ShouldEqual, game.KindCustom)
			So(g.Covers("api"), ShouldBeTrue)
			So(g.Covers("worker"), ShouldBeTrue)
			So(g.Covers("web"), ShouldBeFalse)
			So(g.Covers("API"), ShouldBeFalse)
		})
	})

	Convey("Given a custom game with a malformed scope", t, func() {
		g := game.NewCustom(game.Definition{ID: "g2", Name: "Broken", Jobs: "api, \x00"})

		Convey("Then it fails closed", func() {
			So(g.ScopeError(), ShouldNotBeNil)
			So(g.Covers("api"), ShouldBeFalse)
		})

		Convey("And the configured scope survives a round trip", func() {
			So(g.Definition().Jobs, ShouldEqual, "api, \x00")
		})
	})

	Convey("Given a custom game without an id", t, func() {
		a := game.NewCustom(game.Definition{Name: "A", Jobs: "x"})
		b := game.NewCustom(game.Definition{Name: "B", Jobs: "x"})

		Convey("Then a distinct id is derived from each name", func() {
			So(a.ID, ShouldNotBeEmpty)
			So(b.ID, ShouldNotBeEmpty)
			So(a.ID, ShouldNotEqual, b.ID)
		})

		Convey("Then the same definition resolves to the same id again", func() {
			again := game.NewCustom(game.Definition{Name: " A ", Jobs: "y"})
			So(again.ID, ShouldEqual, a.ID)
			So(a.ID, ShouldEqual, game.DeriveID("A"))
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given a registry with custom games", t, func() {
		r := game.NewRegistry(
			game.Definition{ID: "z", Name: "Zulu", Jobs: "api"},
			game.Definition{ID: "a", Name: "Alpha", Jobs: "web, api"},
			game.Definition{ID: "b", Name: "Bravo", Jobs: ""},
		)

		Convey("When listing all games", func() {
			all := r.All()

			Convey("Then the default game is first and the rest sorted by name", func() {
				So(len(all), ShouldEqual, 4)
				So(all[0].IsDefault(), ShouldBeTrue)
				So(all[1].Name, ShouldEqual, "Alpha")
				So(all[2].Name, ShouldEqual, "Bravo")
				So(all[3].Name, ShouldEqual, "Zulu")
			})
		})

		Convey("When a custom game is named before the default game", func() {
			_, err := r.Replace([]game.Definition{{ID: "0", Name: "AAA", Jobs: "api"}})
			So(err, ShouldBeNil)

			Convey("Then the default game still leads", func() {
				all := r.All()
				So(all[0].IsDefault(), ShouldBeTrue)
				So(all[1].Name, ShouldEqual, "AAA")
			})
		})

		Convey("When resolving the games for a project", func() {
			games := r.Applicable("api")

			Convey("Then default and every covering custom game are returned", func() {
				ids := make([]string, len(games))
				for i, g := range games {
					ids[i] = g.ID
				}
				So(ids, ShouldResemble, []string{game.DefaultID, "a", "z"})
			})

			Convey("And an empty scope matches nothing", func() {
				for _, g := range r.Applicable("") {
					So(g.ID, ShouldNotEqual, "b")
				}
			})
		})

		Convey("When looking up games", func() {
			g, ok := r.Lookup("a")
			So(ok, ShouldBeTrue)
			So(g.Name, ShouldEqual, "Alpha")

			d, ok := r.Lookup(game.DefaultID)
			So(ok, ShouldBeTrue)
			So(d.IsDefault(), ShouldBeTrue)

			_, ok = r.Lookup("missing")
			So(ok, ShouldBeFalse)
		})

		Convey("When reading the valid custom ids", func() {
			ids := r.CustomIDs()

			Convey("Then the default game is not part of the set", func() {
				So(len(ids), ShouldEqual, 3)
				_, hasDefault := ids[game.DefaultID]
				So(hasDefault, ShouldBeFalse)
			})
		})

		Convey("When replacing with a malformed definition", func() {
			errs, err := r.Replace([]game.Definition{
				{ID: "ok", Name: "Ok", Jobs: "api"},
				{ID: "bad", Name: "Bad", Jobs: "'api'"},
			})

			Convey("Then the error is reported and the game kept", func() {
				So(err, ShouldBeNil)
				So(len(errs), ShouldEqual, 1)
				So(errors.Is(errs[0], game.ErrMalformedScope), ShouldBeTrue)
				_, ok := r.Lookup("bad")
				So(ok, ShouldBeTrue)
				So(len(r.Definitions()), ShouldEqual, 2)
			})
		})

		Convey("When replacing with a set that claims the default id", func() {
			_, err := r.Replace([]game.Definition{
				{ID: game.DefaultID, Name: "Shadow", Jobs: "api"},
				{ID: "x", Name: "X", Jobs: "api"},
			})

			Convey("Then the set is rejected and the previous games kept", func() {
				So(errors.Is(err, game.ErrReservedID), ShouldBeTrue)
				So(len(r.CustomIDs()), ShouldEqual, 3)
				_, ok := r.Lookup("x")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When replacing with a set that repeats an id", func() {
			_, err := r.Replace([]game.Definition{
				{ID: "x", Name: "X", Jobs: "api"},
				{ID: "x", Name: "Other X", Jobs: "web"},
			})

			Convey("Then the set is rejected and the previous games kept", func() {
				So(errors.Is(err, game.ErrDuplicateID), ShouldBeTrue)
				So(len(r.CustomIDs()), ShouldEqual, 3)
			})
		})

		Convey("When two id-less games share a name", func() {
			_, err := r.Replace([]game.Definition{
				{Name: "Core", Jobs: "api"},
				{Name: "Core", Jobs: "web"},
			})

			Convey("Then their derived ids collide and the set is rejected", func() {
				So(errors.Is(err, game.ErrDuplicateID), ShouldBeTrue)
			})
		})
	})
}
