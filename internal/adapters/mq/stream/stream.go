// Package stream reads completed builds from a Redis stream consumer group.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/pkg/logger"
	"github.com/okian/cigame/pkg/metrics"
)

const (
	// payloadField holds the JSON encoded build in each stream entry.
	payloadField = "build"

	defaultBatch = 10
	defaultBlock = time.Second
	defaultRetry = time.Second

	// newEntries is the read cursor for entries never delivered to the group.
	newEntries = ">"
)

// Submitter accepts a build for scoring. Returning an error leaves the
// message pending; the consumer reads its pending entries again after the
// retry delay.
type Submitter interface {
	Submit(ctx context.Context, b *model.Build) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, b *model.Build) error

func (f SubmitterFunc) Submit(ctx context.Context, b *model.Build) error { return f(ctx, b) }

// Consumer moves builds from a Redis stream into the scoring pipeline.
type Consumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	batch    int64
	block    time.Duration
	retry    time.Duration
	sink     Submitter
	logger   logger.Logger

	// cursor is newEntries, or the id after which this consumer's pending
	// entries are read again.
	cursor string
}

// NewConsumer creates a consumer reading stream as member consumer of group.
func NewConsumer(client *redis.Client, stream, group, consumer string, sink Submitter, opts ...Option) *Consumer {
	c := &Consumer{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		batch:    defaultBatch,
		block:    defaultBlock,
		retry:    defaultRetry,
		sink:     sink,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureGroup creates the consumer group and the stream if needed.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", c.group, c.stream, err)
	}
	return nil
}

// Run reads until ctx is done. Entries left pending by an earlier run of
// the same consumer name are handled before new ones.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.cursor = "0"
	c.logger.Info(ctx, "build stream consumer started",
		logger.String("stream", c.stream), logger.String("group", c.group), logger.String("consumer", c.consumer))

	for {
		if ctx.Err() != nil {
			return nil
		}
		n, failed, err := c.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error(ctx, "error reading build stream", logger.Error(err))
			metrics.RecordErrorByComponent("stream", "read_error")
		}
		if n > 0 {
			c.logger.Debug(ctx, "build stream batch handled", logger.Int("messages", n), logger.Int("pending", failed))
		}
		if err != nil || failed > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retry):
			}
		}
	}
}

// poll reads one batch and handles it. It returns the number of messages
// read and how many of them stay pending.
//
// While the cursor is not newEntries the read walks this consumer's pending
// entries list. Reaching its end switches to new entries; a rejected build
// rewinds the cursor so the list is walked again.
func (c *Consumer) poll(ctx context.Context) (read, failed int, err error) {
	if c.cursor == "" {
		c.cursor = newEntries
	}
	args := &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, c.cursor},
		Count:    c.batch,
		Block:    c.block,
	}
	history := c.cursor != newEntries
	if history {
		// pending reads return at once; a negative Block omits the argument
		args.Block = -1
	}

	streams, err := c.client.XReadGroup(ctx, args).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, err
	}

	for _, s := range streams {
		for _, msg := range s.Messages {
			read++
			if history {
				c.cursor = msg.ID
			}
			if !c.handle(ctx, msg) {
				failed++
			}
		}
	}
	if history && read == 0 {
		c.cursor = newEntries
	}
	if failed > 0 {
		c.cursor = "0"
	}
	return read, failed, nil
}

// handle submits one entry and reports whether it was acknowledged.
func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) bool {
	b, err := Decode(msg)
	if err != nil {
		// a malformed entry would be redelivered forever
		c.logger.Warn(ctx, "dropping malformed build message", logger.String("id", msg.ID), logger.Error(err))
		metrics.RecordStreamMessage("malformed")
		c.ack(ctx, msg.ID)
		return true
	}

	if err := c.sink.Submit(ctx, b); err != nil {
		c.logger.Warn(ctx, "build not accepted, leaving message pending",
			logger.String("id", msg.ID), logger.String("build", b.Key()), logger.Error(err))
		metrics.RecordStreamMessage("pending")
		return false
	}
	metrics.RecordStreamMessage("acked")
	c.ack(ctx, msg.ID)
	return true
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		c.logger.Error(ctx, "ack failed", logger.String("id", id), logger.Error(err))
		metrics.RecordErrorByComponent("stream", "ack_error")
	}
}

// Decode parses the build carried by a stream entry.
func Decode(msg redis.XMessage) (*model.Build, error) {
	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		return nil, fmt.Errorf("missing %q field", payloadField)
	}
	var b model.Build
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("decode build: %w", err)
	}
	return &b, nil
}

// Publish appends b to stream. Used by tools and tests feeding the service.
func Publish(ctx context.Context, client *redis.Client, stream string, b *model.Build) (string, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode build: %w", err)
	}
	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{payloadField: string(payload)},
	}).Result()
}
