package stream_test

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/cigame/internal/adapters/mq/stream"
	"github.com/okian/cigame/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type sink struct {
	mu       sync.Mutex
	builds   []string
	rejects  int
	attempts int
}

func (s *sink) Submit(_ context.Context, b *model.Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.rejects > 0 {
		s.rejects--
		return errors.New("queue full")
	}
	s.builds = append(s.builds, b.Key())
	return nil
}

func (s *sink) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.builds...)
}

// drained waits until s holds want builds and the group has nothing pending.
func drained(ctx context.Context, client *redis.Client, name string, s *sink, want int) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(s.keys()) >= want {
			if p, err := client.XPending(ctx, name, "scorers").Result(); err == nil && p.Count == 0 {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestDecode(t *testing.T) {
	Convey("Given stream entries", t, func() {
		Convey("When the payload is a build", func() {
			b, err := stream.Decode(redis.XMessage{ID: "1-0", Values: map[string]interface{}{
				"build": `{"project":"core","number":4,"result":"SUCCESS","changes":[{"author":"alice"}]}`,
			}})

			Convey("Then it is decoded", func() {
				So(err, ShouldBeNil)
				So(b.Key(), ShouldEqual, "core#4")
				So(b.Changes[0].Author, ShouldEqual, "alice")
			})
		})

		Convey("When the field is missing", func() {
			_, err := stream.Decode(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": "{}"}})
			So(err, ShouldNotBeNil)
		})

		Convey("When the payload is not JSON", func() {
			_, err := stream.Decode(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"build": "{"}})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestConsumer(t *testing.T) {
	addr := os.Getenv("CIGAME_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CIGAME_TEST_REDIS_ADDR not set")
	}

	Convey("Given a stream with builds", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client := redis.NewClient(&redis.Options{Addr: addr})
		name := "cigame-test-builds-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		defer client.Del(context.Background(), name)

		for i := 1; i <= 3; i++ {
			_, err := stream.Publish(ctx, client, name, &model.Build{Project: "core", Number: i, Result: model.ResultSuccess})
			So(err, ShouldBeNil)
		}
		client.XAdd(ctx, &redis.XAddArgs{Stream: name, Values: map[string]interface{}{"build": "not json"}})

		s := &sink{}
		c := stream.NewConsumer(client, name, "scorers", "c1", s, stream.WithBlock(100*time.Millisecond))

		Convey("When the consumer runs", func() {
			runCtx, stop := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- c.Run(runCtx) }()

			drained(ctx, client, name, s, 3)
			stop()
			So(<-done, ShouldBeNil)

			Convey("Then every build is submitted and acknowledged", func() {
				So(s.keys(), ShouldResemble, []string{"core#1", "core#2", "core#3"})
				pending, err := client.XPending(ctx, name, "scorers").Result()
				So(err, ShouldBeNil)
				So(pending.Count, ShouldEqual, 0)
			})
		})
	})
}

func TestConsumer_Redelivery(t *testing.T) {
	addr := os.Getenv("CIGAME_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CIGAME_TEST_REDIS_ADDR not set")
	}

	Convey("Given a build the sink rejects once", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client := redis.NewClient(&redis.Options{Addr: addr})
		name := "cigame-test-redelivery-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		defer client.Del(context.Background(), name)

		_, err := stream.Publish(ctx, client, name, &model.Build{Project: "core", Number: 7, Result: model.ResultSuccess})
		So(err, ShouldBeNil)

		s := &sink{rejects: 1}
		c := stream.NewConsumer(client, name, "scorers", "c1", s,
			stream.WithBlock(50*time.Millisecond), stream.WithRetryDelay(50*time.Millisecond))

		Convey("When the consumer runs", func() {
			runCtx, stop := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- c.Run(runCtx) }()

			drained(ctx, client, name, s, 1)
			stop()
			So(<-done, ShouldBeNil)

			Convey("Then the pending entry is delivered again and acknowledged", func() {
				So(s.keys(), ShouldResemble, []string{"core#7"})
				s.mu.Lock()
				So(s.attempts, ShouldEqual, 2)
				s.mu.Unlock()
				pending, err := client.XPending(ctx, name, "scorers").Result()
				So(err, ShouldBeNil)
				So(pending.Count, ShouldEqual, 0)
			})
		})
	})

	Convey("Given an entry left pending by an earlier run", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client := redis.NewClient(&redis.Options{Addr: addr})
		name := "cigame-test-restart-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		defer client.Del(context.Background(), name)

		_, err := stream.Publish(ctx, client, name, &model.Build{Project: "core", Number: 8, Result: model.ResultSuccess})
		So(err, ShouldBeNil)
		So(client.XGroupCreateMkStream(ctx, name, "scorers", "0").Err(), ShouldBeNil)
		// deliver without acking, as a crashed consumer would
		_, err = client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group: "scorers", Consumer: "c1", Streams: []string{name, ">"}, Count: 1, Block: -1,
		}).Result()
		So(err, ShouldBeNil)

		s := &sink{}
		c := stream.NewConsumer(client, name, "scorers", "c1", s, stream.WithBlock(50*time.Millisecond))

		Convey("When a consumer with the same name starts", func() {
			runCtx, stop := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- c.Run(runCtx) }()

			drained(ctx, client, name, s, 1)
			stop()
			So(<-done, ShouldBeNil)

			Convey("Then it handles the pending entry first", func() {
				So(s.keys(), ShouldResemble, []string{"core#8"})
				pending, err := client.XPending(ctx, name, "scorers").Result()
				So(err, ShouldBeNil)
				So(pending.Count, ShouldEqual, 0)
			})
		})
	})
}
