package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"feedproxy/internal/usecase/jobs"
)

// Scheduler enqueues the three cron-driven maintenance tasks onto the
// low-priority queue. It runs in its own process, independent of the
// Dispatcher workers that actually execute jobs.
type Scheduler struct {
	client *Client
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler registers the three fixed cron-driven tasks and returns a
// Scheduler ready to Start. All three schedules run in UTC:
// "0 4 * * *" / "0 3 * * 0" / "0 * * * *".
func NewScheduler(client *Client, logger *slog.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	s := &Scheduler{client: client, cron: c, logger: logger}

	schedules := []struct {
		spec string
		task string
		q    string
	}{
		{"0 * * * *", jobs.TaskFetchAllFeeds, Low},
		{"0 4 * * *", jobs.TaskRunFullMaintenance, Low},
		{"0 3 * * 0", jobs.TaskRetryDisabledFeeds, Low},
	}
	for _, sched := range schedules {
		task := sched.task
		q := sched.q
		if _, err := c.AddFunc(sched.spec, func() { s.enqueue(task, q) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) enqueue(task, queueName string) {
	payload, err := jobs.Encode(task, nil)
	if err != nil {
		s.logger.Error("scheduler: encode failed", slog.String("task", task), slog.Any("error", err))
		return
	}
	id, err := s.client.Enqueue(context.Background(), queueName, payload, 0)
	if err != nil {
		s.logger.Error("scheduler: enqueue failed", slog.String("task", task), slog.Any("error", err))
		return
	}
	s.logger.Info("scheduler: enqueued task", slog.String("task", task), slog.String("job_id", id))
}

// Start begins the cron loop; it returns immediately, running in the
// background until Stop is called.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for any in-flight cron invocation to finish, then returns.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
