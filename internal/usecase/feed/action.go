package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedproxy/internal/usecase/jobs"
	"feedproxy/internal/usecase/queue"
)

// HandleLogUserAction is the dispatcher-side counterpart to LogClick: it
// touches the user's activity, records the click against the article, and
// unconditionally enqueues a cluster recompute. RecomputeClusters itself
// decides whether the user has enough embedded articles yet to cluster.
func (s *Service) HandleLogUserAction(ctx context.Context, userID string, articleID int64, linkURL string) error {
	now := time.Now().UTC()
	if _, err := s.users.Upsert(ctx, userID); err != nil {
		return fmt.Errorf("upsert user %s: %w", userID, err)
	}
	if err := s.users.Touch(ctx, userID, now); err != nil {
		return fmt.Errorf("touch user %s: %w", userID, err)
	}
	if err := s.users.LinkArticle(ctx, userID, articleID, now); err != nil {
		return fmt.Errorf("link article %d to user %s: %w", articleID, userID, err)
	}
	if s.queue == nil {
		return nil
	}

	payload, err := jobs.Encode(jobs.TaskRecomputeUserClusters, jobs.RecomputeUserClustersPayload{UserID: userID})
	if err != nil {
		return fmt.Errorf("encode recompute_user_clusters: %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, queue.Medium, payload, 2); err != nil {
		return fmt.Errorf("enqueue recompute_user_clusters: %w", err)
	}
	s.logger.Info("feed: enqueued cluster recompute", slog.String("user_id", userID))
	return nil
}
