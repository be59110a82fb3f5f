package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/cigame/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a build key is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "core#1")

			Convey("Then it is reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And the same key is reported as seen afterwards", func() {
				So(d.SeenAndRecord(ctx, "core#1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And other builds of the project are still new", func() {
				So(d.SeenAndRecord(ctx, "core#2"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "web#1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When a recorded key is unrecorded", func() {
			d.SeenAndRecord(ctx, "core#1")
			d.Unrecord(ctx, "core#1")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "core#1"), ShouldBeFalse)
			})
		})

		Convey("When an unknown key is unrecorded", func() {
			d.SeenAndRecord(ctx, "core#1")
			d.Unrecord(ctx, "core#9")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("core#%d", i))
		}

		Convey("When a fourth key is recorded", func() {
			So(d.SeenAndRecord(ctx, "core#4"), ShouldBeFalse)

			Convey("Then the oldest key is forgotten", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "core#1"), ShouldBeFalse)
			})

			Convey("And the recent keys are kept", func() {
				So(d.SeenAndRecord(ctx, "core#3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "core#4"), ShouldBeTrue)
			})
		})

		Convey("When a middle key is unrecorded before the window moves", func() {
			d.Unrecord(ctx, "core#2")
			d.SeenAndRecord(ctx, "core#4")

			Convey("Then no other key is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "core#1"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		Convey("When many keys are recorded", func() {
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("core#%d", i))
			}

			Convey("Then none is evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(ctx, "core#0"), ShouldBeTrue)
			})
		})
	})
}

func TestInMemoryDeduper_Concurrent(t *testing.T) {
	Convey("Given many goroutines delivering the same builds", t, func() {
		d := dedupe.NewInMemoryDeduper()
		ctx := context.Background()

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for g := 0; g < 20; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("core#%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each build is accepted exactly once", func() {
			So(fresh, ShouldEqual, 50)
			So(d.Size(), ShouldEqual, 50)
		})
	})
}
