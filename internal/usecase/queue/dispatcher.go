package queue

import (
	"context"
	"log/slog"
	"time"

	"feedproxy/internal/domain/entity"
	"feedproxy/internal/resilience/retry"
)

// HandlerFunc processes one job's payload. A returned error that satisfies
// entity.IsDBBusy is retried in-place with exponential backoff; any other
// error consumes one of the job's own retry attempts.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Dispatcher pulls jobs from a Client across queues in priority order and
// runs them against a registered HandlerFunc per queue.
type Dispatcher struct {
	client    *Client
	dbRetry   retry.Config
	pollEvery time.Duration
	logger    *slog.Logger
}

// NewDispatcher builds a Dispatcher backed by client. dbRetry controls the
// DB-busy backoff (retry.DBConfig() unless overridden).
func NewDispatcher(client *Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:    client,
		dbRetry:   retry.DBConfig(),
		pollEvery: 5 * time.Second,
		logger:    logger,
	}
}

// Run drains Priority queues until ctx is cancelled, dispatching each job
// to handlers[queue]. A queue with no registered handler is skipped.
func (d *Dispatcher) Run(ctx context.Context, handlers map[string]HandlerFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := d.client.blockingPop(ctx, Priority, d.pollEvery)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("dispatcher: pop failed", slog.Any("error", err))
			continue
		}
		if rec == nil {
			continue
		}

		handler, ok := handlers[rec.Queue]
		if !ok {
			d.logger.Warn("dispatcher: no handler registered for queue", slog.String("queue", rec.Queue))
			continue
		}

		d.process(ctx, *rec, handler)
	}
}

func (d *Dispatcher) process(ctx context.Context, rec jobRecord, handler HandlerFunc) {
	rec.Status = StatusRunning
	if err := d.client.saveRecord(ctx, rec); err != nil {
		d.logger.Error("dispatcher: failed to mark job running", slog.String("job_id", rec.ID), slog.Any("error", err))
	}

	timeout := DefaultTimeout[rec.Queue]
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := d.runWithDBRetry(jobCtx, rec, handler)
	if err == nil {
		rec.Status = StatusDone
		rec.Error = ""
		_ = d.client.saveRecord(ctx, rec)
		return
	}

	if rec.Attempt < rec.MaxRetries {
		d.logger.Warn("dispatcher: job failed, requeueing",
			slog.String("job_id", rec.ID), slog.Int("attempt", rec.Attempt), slog.Any("error", err))
		if reqErr := d.client.requeue(ctx, rec); reqErr != nil {
			d.logger.Error("dispatcher: requeue failed", slog.String("job_id", rec.ID), slog.Any("error", reqErr))
		}
		return
	}

	rec.Status = StatusFailed
	rec.Error = err.Error()
	_ = d.client.saveRecord(ctx, rec)
	d.logger.Error("dispatcher: job exhausted retries", slog.String("job_id", rec.ID), slog.Any("error", err))
}

// runWithDBRetry retries handler in place, with exponential backoff, as
// long as it keeps failing with a DB-busy error — those are transient
// write-contention errors rather than genuine job failures, so they are
// not charged against the job's own retry count.
func (d *Dispatcher) runWithDBRetry(ctx context.Context, rec jobRecord, handler HandlerFunc) error {
	delay := d.dbRetry.InitialDelay
	var err error
	for attempt := 1; attempt <= d.dbRetry.MaxAttempts; attempt++ {
		err = handler(ctx, rec.Payload)
		if err == nil || !entity.IsDBBusy(err) {
			return err
		}
		if attempt == d.dbRetry.MaxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * d.dbRetry.Multiplier)
		if delay > d.dbRetry.MaxDelay {
			delay = d.dbRetry.MaxDelay
		}
	}
	return err
}
