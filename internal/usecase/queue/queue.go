// Package queue implements the four-priority Redis-backed job queue: jobs
// are pushed onto a named list, a dispatcher blocks across the lists in
// priority order, and each job's outcome is recorded so a caller on the
// synchronous path can poll it.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue names, in the priority order a Dispatcher drains them.
const (
	High   = "high"
	Medium = "medium"
	Low    = "low"
	GPU    = "gpu"
)

// Priority is the drain order a Dispatcher checks queues in: high before
// medium before low before gpu, so synchronous-path work never waits
// behind a batch of scheduled maintenance.
var Priority = []string{High, Medium, Low, GPU}

// DefaultTimeout is the maximum duration a job on a given queue is allowed
// to run before its context is cancelled.
var DefaultTimeout = map[string]time.Duration{
	High:   20 * time.Second,
	Medium: 60 * time.Second,
	Low:    180 * time.Second,
	GPU:    300 * time.Second,
}

// Status is a job's lifecycle state, polled by the synchronous feed path.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrUnknownJob is returned by Poll for a job ID the queue has no record of
// (never enqueued, or its record has since expired).
var ErrUnknownJob = errors.New("queue: unknown job id")

type jobRecord struct {
	ID         string `json:"id"`
	Queue      string `json:"queue"`
	Payload    []byte `json:"payload"`
	MaxRetries int    `json:"max_retries"`
	Attempt    int    `json:"attempt"`
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`
}

// jobTTL bounds how long a finished job's status record is kept around for
// polling before Redis reclaims the key.
const jobTTL = 1 * time.Hour

// Client is a thin wrapper around a redis client providing enqueue, status
// polling, and the blocking pop a Dispatcher uses to pull work.
type Client struct {
	rdb *redis.Client
}

// New dials redisURL (e.g. "redis://localhost:6379/0").
func New(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// NewFromRedis wraps an already-constructed redis client, used by tests
// that point at a miniredis instance.
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func jobKey(id string) string   { return "job:" + id }
func queueKey(name string) string { return "queue:" + name }

// Enqueue submits payload to queueName, retried up to maxRetries times by
// the dispatcher's own-retry-count path (distinct from the DB-busy backoff,
// which always retries regardless of this count). Returns the job ID.
func (c *Client) Enqueue(ctx context.Context, queueName string, payload []byte, maxRetries int) (string, error) {
	if _, ok := DefaultTimeout[queueName]; !ok {
		return "", fmt.Errorf("queue: unknown queue %q", queueName)
	}

	id := newJobID()
	rec := jobRecord{
		ID:         id,
		Queue:      queueName,
		Payload:    payload,
		MaxRetries: maxRetries,
		Status:     StatusPending,
	}
	if err := c.saveRecord(ctx, rec); err != nil {
		return "", err
	}
	if err := c.rdb.LPush(ctx, queueKey(queueName), id).Err(); err != nil {
		return "", fmt.Errorf("enqueue to %s: %w", queueName, err)
	}
	return id, nil
}

// Poll reports a job's current status and, once StatusDone or StatusFailed,
// its terminal error message (empty on success).
func (c *Client) Poll(ctx context.Context, jobID string) (Status, string, error) {
	rec, err := c.loadRecord(ctx, jobID)
	if err != nil {
		return "", "", err
	}
	return rec.Status, rec.Error, nil
}

// blockingPop waits up to timeout across queues (checked in the given
// order) for the next job, returning its record. It returns nil, nil on a
// timeout with no job available.
func (c *Client) blockingPop(ctx context.Context, queues []string, timeout time.Duration) (*jobRecord, error) {
	keys := make([]string, len(queues))
	for i, q := range queues {
		keys[i] = queueKey(q)
	}

	result, err := c.rdb.BRPop(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blocking pop: %w", err)
	}

	id := result[1]
	rec, err := c.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Client) saveRecord(ctx context.Context, rec jobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	if err := c.rdb.Set(ctx, jobKey(rec.ID), data, jobTTL).Err(); err != nil {
		return fmt.Errorf("save job record: %w", err)
	}
	return nil
}

func (c *Client) loadRecord(ctx context.Context, id string) (*jobRecord, error) {
	data, err := c.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUnknownJob
	}
	if err != nil {
		return nil, fmt.Errorf("load job record: %w", err)
	}
	var rec jobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal job record: %w", err)
	}
	return &rec, nil
}

// requeue increments the job's attempt count and pushes it back onto its
// queue, used when a non-DB-busy handler error still has retries left.
func (c *Client) requeue(ctx context.Context, rec jobRecord) error {
	rec.Attempt++
	rec.Status = StatusPending
	if err := c.saveRecord(ctx, rec); err != nil {
		return err
	}
	return c.rdb.LPush(ctx, queueKey(rec.Queue), rec.ID).Err()
}

var jobIDCounter int64

// newJobID generates a unique job id by pairing the current time with a
// process-wide counter, so two jobs enqueued within the same nanosecond
// still get distinct IDs.
func newJobID() string {
	jobIDCounter++
	return fmt.Sprintf("job-%d-%d", time.Now().UnixNano(), jobIDCounter)
}
