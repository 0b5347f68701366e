// Package jobs defines the payload envelope shared between job producers
// (the feed usecase, the scheduler) and the worker process that dispatches
// queue.Client jobs to their handlers.
package jobs

import "encoding/json"

const (
	TaskFetchFeedBatch        = "fetch_feed_batch"
	TaskComputeEmbeddingsBatch = "compute_embeddings_batch"
	TaskRecomputeUserClusters  = "recompute_user_clusters"
	TaskLogUserAction          = "log_user_action"
	TaskFetchAllFeeds          = "fetch_all_feeds"
	TaskRunFullMaintenance     = "run_full_maintenance"
	TaskRetryDisabledFeeds     = "retry_disabled_feeds"
)

// Envelope is the JSON shape every job payload takes on the wire: a task
// name the dispatcher's handler table is keyed by, and task-specific data.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Encode(taskType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: taskType, Data: raw})
}

type FetchFeedBatchPayload struct {
	FeedIDs []int64 `json:"feed_ids"`
}

type ComputeEmbeddingsBatchPayload struct {
	ArticleIDs []int64 `json:"article_ids"`
}

type RecomputeUserClustersPayload struct {
	UserID string `json:"user_id"`
}

type LogUserActionPayload struct {
	UserID    string `json:"user_id"`
	ArticleID int64  `json:"article_id"`
	LinkURL   string `json:"link_url"`
}
