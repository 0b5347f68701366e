// Package ingest fetches feed documents, merges their articles into
// storage, and enqueues embedding work for anything new. It is the
// worker-side counterpart of the synchronous feed usecase: the scheduler's
// hourly "fetch_all_feeds" cron tick and the feed usecase's own
// high-priority refresh both land here.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"feedproxy/internal/domain/entity"
	"feedproxy/internal/infra/fetcher"
	"feedproxy/internal/infra/parser"
	"feedproxy/internal/repository"
	"feedproxy/internal/usecase/jobs"
	"feedproxy/internal/usecase/queue"
)

// BatchSize caps how many feed IDs a single fetch_feed_batch job carries,
// and how many feeds fetch_all_feeds enqueues per batch job.
const BatchSize = 10

// RefreshInterval is how stale a feed's last successful fetch must be
// before fetch_all_feeds considers it due for a refresh.
const RefreshInterval = 1 * time.Hour

// MaxStaleFeeds bounds a single fetch_all_feeds tick so one run can't
// enqueue an unbounded backlog if ingestion has been down for a while.
const MaxStaleFeeds = 500

// MaxConcurrentFetches bounds how many feeds a single FetchFeedBatch call
// fetches in parallel.
const MaxConcurrentFetches = 5

type Service struct {
	fetcher  *fetcher.Fetcher
	parser   *parser.Parser
	feeds    repository.FeedRepository
	articles repository.ArticleRepository
	queue    *queue.Client
	logger   *slog.Logger
}

func NewService(f *fetcher.Fetcher, p *parser.Parser, feeds repository.FeedRepository, articles repository.ArticleRepository, q *queue.Client, logger *slog.Logger) *Service {
	return &Service{fetcher: f, parser: p, feeds: feeds, articles: articles, queue: q, logger: logger}
}

// FetchFeedBatch fetches and re-parses every feed in feedIDs concurrently,
// merging newly-seen articles into storage and tracking per-feed fetch
// failures. It returns the IDs of articles that were newly inserted, across
// all feeds in the batch, so the caller can enqueue embedding work for them.
func (s *Service) FetchFeedBatch(ctx context.Context, feedIDs []int64) ([]int64, error) {
	var newArticleIDs []int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentFetches)
	for _, feedID := range feedIDs {
		feedID := feedID
		g.Go(func() error {
			ids, err := s.fetchOne(gctx, feedID)
			if err != nil {
				s.logger.Warn("ingest: feed fetch failed", slog.Int64("feed_id", feedID), slog.Any("error", err))
				return nil
			}
			mu.Lock()
			newArticleIDs = append(newArticleIDs, ids...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(newArticleIDs) > 0 && s.queue != nil {
		payload, err := jobs.Encode(jobs.TaskComputeEmbeddingsBatch, jobs.ComputeEmbeddingsBatchPayload{ArticleIDs: newArticleIDs})
		if err != nil {
			return newArticleIDs, fmt.Errorf("encode embeddings job: %w", err)
		}
		if _, err := s.queue.Enqueue(ctx, queue.GPU, payload, 3); err != nil {
			return newArticleIDs, fmt.Errorf("enqueue embeddings job: %w", err)
		}
	}
	return newArticleIDs, nil
}

// fetchOne fetches a single feed, merges its articles, and records the
// outcome (success or failure) on the feed row. A fetch or parse error
// disables the feed once it crosses entity.DefaultMaxConsecutiveFailures
// consecutive failures.
func (s *Service) fetchOne(ctx context.Context, feedID int64) ([]int64, error) {
	feed, err := s.feeds.Get(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("load feed %d: %w", feedID, err)
	}

	parsed, finalURL, err := s.fetcher.FetchFeed(ctx, s.parser, feed.URL)
	if err != nil {
		feed.RecordFailure(err, entity.DefaultMaxConsecutiveFailures)
		if updErr := s.feeds.Update(ctx, feed); updErr != nil {
			return nil, fmt.Errorf("record failure for feed %d: %w", feedID, updErr)
		}
		return nil, err
	}

	if finalURL != feed.URL {
		if err := s.feeds.RenameURL(ctx, feedID, finalURL); err != nil {
			return nil, fmt.Errorf("rename feed %d to %s: %w", feedID, finalURL, err)
		}
		feed.URL = finalURL
	}
	feed.Title = parsed.Title
	feed.Description = parsed.Description
	feed.Language = parsed.Language
	feed.Logo = parsed.Logo
	feed.RecordSuccess(time.Now().UTC())
	if err := s.feeds.Update(ctx, feed); err != nil {
		return nil, fmt.Errorf("record success for feed %d: %w", feedID, err)
	}

	urls := make([]string, len(parsed.Articles))
	for i, a := range parsed.Articles {
		urls[i] = a.URL
	}
	exists, err := s.articles.ExistsByURLBatch(ctx, feedID, urls)
	if err != nil {
		return nil, fmt.Errorf("check existing articles for feed %d: %w", feedID, err)
	}

	var newIDs []int64
	for _, a := range parsed.Articles {
		if a.URL == "" || exists[a.URL] {
			continue
		}
		stored, err := s.articles.InsertIfAbsent(ctx, &entity.Article{
			FeedID:      feedID,
			Title:       a.Title,
			URL:         a.URL,
			Description: a.Description,
			CommentsURL: a.CommentsURL,
			PubDate:     a.PubDate,
			Updated:     time.Now().UTC(),
		})
		if err != nil {
			return newIDs, fmt.Errorf("insert article %s: %w", a.URL, err)
		}
		newIDs = append(newIDs, stored.ID)
	}
	return newIDs, nil
}

// FetchAllFeeds enqueues a fetch_feed_batch job, in chunks of BatchSize, for
// every feed due for a refresh. Feeds are selected by fetch staleness
// (FeedRepository.ListStale already excludes disabled feeds); this is a
// narrower candidate set than the original's join through active,
// non-frozen users, a simplification recorded in the design notes.
func (s *Service) FetchAllFeeds(ctx context.Context) (int, error) {
	stale, err := s.feeds.ListStale(ctx, RefreshInterval, time.Now().UTC(), MaxStaleFeeds)
	if err != nil {
		return 0, fmt.Errorf("list stale feeds: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	enqueued := 0
	for start := 0; start < len(stale); start += BatchSize {
		end := start + BatchSize
		if end > len(stale) {
			end = len(stale)
		}
		ids := make([]int64, end-start)
		for i, feed := range stale[start:end] {
			ids[i] = feed.ID
		}
		payload, err := jobs.Encode(jobs.TaskFetchFeedBatch, jobs.FetchFeedBatchPayload{FeedIDs: ids})
		if err != nil {
			return enqueued, fmt.Errorf("encode fetch batch: %w", err)
		}
		if _, err := s.queue.Enqueue(ctx, queue.Low, payload, 2); err != nil {
			return enqueued, fmt.Errorf("enqueue fetch batch: %w", err)
		}
		enqueued += len(ids)
	}
	s.logger.Info("enqueued stale feeds for refresh", slog.Int("feeds", enqueued))
	return enqueued, nil
}
