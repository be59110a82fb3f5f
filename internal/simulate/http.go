package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/cigame/internal/domain/model"
	"github.com/okian/cigame/pkg/logger"
)

const (
	progressInterval  = time.Second
	channelMultiplier = 2
)

type outcome int

const (
	accepted outcome = iota
	duplicate
	failed
)

// client wraps http.Client for the service's JSON API.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

func (c *client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d: %s", path, resp.StatusCode, body)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *client) postBuild(ctx context.Context, b *model.Build) outcome {
	data, err := json.Marshal(b)
	if err != nil {
		return failed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/builds", bytes.NewReader(data))
	if err != nil {
		return failed
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return failed
	}
	defer resp.Body.Close()

	var ack AckResponse
	_ = json.NewDecoder(resp.Body).Decode(&ack)
	switch {
	case resp.StatusCode == http.StatusAccepted:
		return accepted
	case resp.StatusCode == http.StatusOK && ack.Duplicate:
		return duplicate
	default:
		return failed
	}
}

// Submit sends builds concurrently with cfg.Workers submitters. Builds go
// through cfg.Publish when set, otherwise to POST /builds.
func Submit(ctx context.Context, cfg *Config, builds []*model.Build, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting builds", logger.Int("builds", len(builds)), logger.Int("workers", cfg.Workers))

	send := newClient(cfg.BaseURL, cfg.Timeout).postBuild
	if cfg.Publish != nil {
		send = func(ctx context.Context, b *model.Build) outcome {
			if err := cfg.Publish(ctx, b); err != nil {
				return failed
			}
			return accepted
		}
	}

	var counts [3]atomic.Int64
	var submitted atomic.Int64
	var lastReport atomic.Int64

	workers := max(cfg.Workers, 1)
	ch := make(chan *model.Build, workers*channelMultiplier)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range ch {
				counts[send(ctx, b)].Add(1)
				n := submitted.Add(1)

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if cfg.Verbose && now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "submission progress",
						logger.Int("submitted", int(n)),
						logger.Int("total", len(builds)),
						logger.Int("failed", int(counts[failed].Load())))
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, b := range builds {
			select {
			case <-ctx.Done():
				return
			case ch <- b:
			}
		}
	}()
	wg.Wait()

	stats.BuildsSubmitted = int(submitted.Load())
	stats.BuildsAccepted = int(counts[accepted].Load())
	stats.BuildsDuplicate = int(counts[duplicate].Load())
	stats.BuildsFailed = int(counts[failed].Load())

	log.Info(ctx, "build submission completed",
		logger.Int("accepted", stats.BuildsAccepted),
		logger.Int("duplicate", stats.BuildsDuplicate),
		logger.Int("failed", stats.BuildsFailed))
}

// withDuplicates appends n resubmissions picked from builds.
func withDuplicates(builds []*model.Build, n int) []*model.Build {
	out := make([]*model.Build, len(builds), len(builds)+n)
	copy(out, builds)
	for i := 0; i < n && len(builds) > 0; i++ {
		out = append(out, builds[randomInt(len(builds))])
	}
	return out
}
