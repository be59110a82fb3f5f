package stream

import (
	"time"

	"github.com/okian/cigame/pkg/logger"
)

// Option applies a configuration option to the Consumer.
type Option func(*Consumer)

// WithBatch sets how many entries are read per call.
func WithBatch(n int64) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.batch = n
		}
	}
}

// WithBlock sets how long a read waits for new entries.
func WithBlock(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.block = d
		}
	}
}

// WithRetryDelay sets the pause after a read error or a rejected build.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.retry = d
		}
	}
}

// WithLogger sets the consumer's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}
