package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides project-scoped Redis operations for runs.
// It is safe for concurrent use.
type Client struct {
	rdb     *redis.Client
	project string
}

// NewClient creates a client for the given project. The project must not
// be empty.
func NewClient(redisOpts *redis.Options, project string) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		project: project,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client.
func NewClientFromURL(url, project string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewClient(opts, project)
}

// Project returns the namespace of the client.
func (c *Client) Project() string {
	return c.project
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateRun validates and writes a run, adds it to the index and publishes
// it on the events channel. Writing the same run twice is safe.
func (c *Client) CreateRun(ctx context.Context, r *Run) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	hash, err := RunToHash(r)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, RunKey(c.project, r.ID), hash)
	pipe.ZAdd(ctx, RunIndexKey(c.project), redis.Z{Score: float64(r.CreatedAtMs), Member: r.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write run to Redis: %w", err)
	}

	runJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal run for event: %w", err)
	}
	if err := c.rdb.Publish(ctx, RunEventsChannel(c.project), runJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID. Returns (nil, redis.Nil) if it does not
// exist; use IsNotFound to check.
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	hashData, err := c.rdb.HGetAll(ctx, RunKey(c.project, runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	r, err := HashToRun(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return r, nil
}

// RunExists checks for a run without fetching it.
func (c *Client) RunExists(ctx context.Context, runID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, RunKey(c.project, runID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check run existence: %w", err)
	}
	return n > 0, nil
}

// ListRuns returns the runs whose creation time lies in [sinceMs, untilMs],
// oldest first. A zero bound is open. IDs in the index whose hash is
// missing or malformed are reported through skipped and left out.
func (c *Client) ListRuns(ctx context.Context, sinceMs, untilMs int64) (runs []*Run, skipped []string, err error) {
	lo, hi := "-inf", "+inf"
	if sinceMs > 0 {
		lo = fmt.Sprintf("%d", sinceMs)
	}
	if untilMs > 0 {
		hi = fmt.Sprintf("%d", untilMs)
	}

	ids, err := c.rdb.ZRangeByScore(ctx, RunIndexKey(c.project), &redis.ZRangeBy{Min: lo, Max: hi}).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read run index: %w", err)
	}

	for _, id := range ids {
		r, err := c.GetRun(ctx, id)
		if err != nil {
			skipped = append(skipped, id)
			continue
		}
		runs = append(runs, r)
	}
	return runs, skipped, nil
}

// ScanRunIDs returns the IDs of all runs whose ID starts with prefix,
// using SCAN so the server is not blocked.
func (c *Client) ScanRunIDs(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := RunKeyPrefix(c.project)
	iter := c.rdb.Scan(ctx, 0, escapeMatch(keyPrefix+prefix)+"*", 0).Iterator()

	var ids []string
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan runs: %w", err)
	}
	return ids, nil
}

// escapeMatch quotes the glob metacharacters of a SCAN MATCH pattern.
func escapeMatch(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Subscription delivers runs published after it was created. Close it
// when done.
type Subscription struct {
	events <-chan *Run
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of new runs. It is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan *Run {
	return s.events
}

// Errors returns decoding errors. Bad messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeRuns subscribes to new runs of this project. The subscription
// is confirmed before returning, so runs created afterwards are delivered.
func (c *Client) SubscribeRuns(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, RunEventsChannel(c.project))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to run events: %w", err)
	}

	eventsChan := make(chan *Run, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var r Run
				if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal run event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &r:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// RedisClient exposes the underlying client for tests and tooling.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// IsNotFound reports whether err is a Redis "key not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
