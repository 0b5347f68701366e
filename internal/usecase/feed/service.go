// Package feed orchestrates the synchronous feed request: upsert user and
// feed, ensure the feed is fresh enough, rank and rewrite its articles, and
// the click-logging side effect that follows a rewritten link.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedproxy/internal/domain/entity"
	"feedproxy/internal/infra/fetcher"
	"feedproxy/internal/infra/parser"
	"feedproxy/internal/repository"
	"feedproxy/internal/usecase/jobs"
	"feedproxy/internal/usecase/queue"
	"feedproxy/internal/usecase/ranker"
	"feedproxy/internal/usecase/rewrite"
)

type Service struct {
	fetcher  *fetcher.Fetcher
	parser   *parser.Parser
	feeds    repository.FeedRepository
	articles repository.ArticleRepository
	users    repository.UserRepository
	queue    *queue.Client
	cfg      Config
	logger   *slog.Logger
}

func NewService(f *fetcher.Fetcher, p *parser.Parser, feeds repository.FeedRepository, articles repository.ArticleRepository, users repository.UserRepository, q *queue.Client, cfg Config, logger *slog.Logger) *Service {
	return &Service{fetcher: f, parser: p, feeds: feeds, articles: articles, users: users, queue: q, cfg: cfg, logger: logger}
}

// GetFeed implements get_feed: it resolves feedURL to a Feed row (seeding
// one via a synchronous fetch if this is the first time anyone has asked
// for it), links it to userID, refreshes it if stale, ranks its recent
// articles against the user's cluster model, and returns a rewritten RSS
// document ready to serve as application/xml.
func (s *Service) GetFeed(ctx context.Context, userID, feedURL string) ([]byte, error) {
	if err := entity.ValidateURL(feedURL); err != nil {
		return nil, classifyURLError(err)
	}

	user, err := s.users.Upsert(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", userID, err)
	}
	now := time.Now().UTC()
	if err := s.users.Touch(ctx, userID, now); err != nil {
		return nil, fmt.Errorf("touch user %s: %w", userID, err)
	}
	user.LastRequest = now
	user.IsFrozen = false

	feed, err := s.feeds.FindByURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("find feed %s: %w", feedURL, err)
	}
	if feed == nil {
		feed, err = s.seedFeed(ctx, feedURL)
		if err != nil {
			return nil, err
		}
	}

	if err := s.users.LinkFeed(ctx, userID, feed.ID); err != nil {
		return nil, fmt.Errorf("link user %s to feed %d: %w", userID, feed.ID, err)
	}

	if feed.Stale(s.cfg.RefreshInterval, now) {
		s.refreshAndWait(ctx, feed.ID)
		if refreshed, err := s.feeds.Get(ctx, feed.ID); err == nil && refreshed != nil {
			feed = refreshed
		}
	}

	recent, err := s.articles.ListRecent(ctx, feed.ID, s.cfg.RecentArticles)
	if err != nil {
		return nil, fmt.Errorf("list recent articles for feed %d: %w", feed.ID, err)
	}

	if user.HasClusters() {
		recent = ranker.Rank(recent, user.Clusters, ranker.DefaultFilterRatio, ranker.DefaultRandomRatio)
	}

	plain := make([]entity.Article, len(recent))
	for i, a := range recent {
		plain[i] = *a
	}
	return rewrite.Rewrite(s.cfg.BaseURL, s.cfg.RootPath, feed, plain, userID)
}

// seedFeed creates the Feed row and performs the first, synchronous fetch
// so a brand-new feed URL doesn't return an empty document on its first
// request.
func (s *Service) seedFeed(ctx context.Context, feedURL string) (*entity.Feed, error) {
	feed, err := s.feeds.Upsert(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("create feed %s: %w", feedURL, err)
	}

	parsed, finalURL, err := s.fetcher.FetchFeed(ctx, s.parser, feedURL)
	if err != nil {
		feed.RecordFailure(err, entity.DefaultMaxConsecutiveFailures)
		_ = s.feeds.Update(ctx, feed)
		return nil, classifyFetchError(err)
	}

	if finalURL != feedURL {
		if err := s.feeds.RenameURL(ctx, feed.ID, finalURL); err != nil {
			return nil, fmt.Errorf("rename feed %d: %w", feed.ID, err)
		}
		feed.URL = finalURL
	}
	feed.Title = parsed.Title
	feed.Description = parsed.Description
	feed.Language = parsed.Language
	feed.Logo = parsed.Logo
	feed.RecordSuccess(time.Now().UTC())
	if err := s.feeds.Update(ctx, feed); err != nil {
		return nil, fmt.Errorf("save seeded feed %d: %w", feed.ID, err)
	}

	for _, a := range parsed.Articles {
		if a.URL == "" {
			continue
		}
		if _, err := s.articles.InsertIfAbsent(ctx, &entity.Article{
			FeedID:      feed.ID,
			Title:       a.Title,
			URL:         a.URL,
			Description: a.Description,
			CommentsURL: a.CommentsURL,
			PubDate:     a.PubDate,
			Updated:     time.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("seed article %s: %w", a.URL, err)
		}
	}
	return feed, nil
}

// refreshAndWait enqueues a high-priority refresh and polls its status,
// giving up silently after RefreshTimeout — the caller proceeds with
// whatever articles are already stored, matching the original's
// "serve stale rather than block forever" behavior.
func (s *Service) refreshAndWait(ctx context.Context, feedID int64) {
	if s.queue == nil {
		return
	}
	payload, err := jobs.Encode(jobs.TaskFetchFeedBatch, jobs.FetchFeedBatchPayload{FeedIDs: []int64{feedID}})
	if err != nil {
		s.logger.Error("feed: encode refresh job failed", slog.Int64("feed_id", feedID), slog.Any("error", err))
		return
	}
	jobID, err := s.queue.Enqueue(ctx, queue.High, payload, 1)
	if err != nil {
		s.logger.Error("feed: enqueue refresh failed", slog.Int64("feed_id", feedID), slog.Any("error", err))
		return
	}

	deadline := time.Now().Add(s.cfg.RefreshTimeout)
	for time.Now().Before(deadline) {
		status, _, err := s.queue.Poll(ctx, jobID)
		if err != nil {
			return
		}
		if status == queue.StatusDone || status == queue.StatusFailed {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.RefreshPollInterval):
		}
	}
}

// LogClick implements log_click: it fires the logging job and returns
// immediately, leaving the worker to touch the user's activity and record
// the click.
func (s *Service) LogClick(ctx context.Context, userID string, articleID int64, linkURL string) error {
	payload, err := jobs.Encode(jobs.TaskLogUserAction, jobs.LogUserActionPayload{
		UserID:    userID,
		ArticleID: articleID,
		LinkURL:   linkURL,
	})
	if err != nil {
		return fmt.Errorf("encode log_user_action: %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, queue.Medium, payload, 2); err != nil {
		return fmt.Errorf("enqueue log_user_action: %w", err)
	}
	return nil
}

// classifyURLError distinguishes ValidateURL's two failure modes: a
// private-network target is an SSRF attempt (403), anything else is a
// malformed request (422).
func classifyURLError(err error) error {
	var verr *entity.ValidationError
	if errors.As(err, &verr) && strings.Contains(verr.Message, "private network") {
		return entity.NewError(entity.KindSSRF, "blocked url", err)
	}
	return entity.NewError(entity.KindValidation, "invalid feed url", err)
}

// classifyFetchError maps a Fetcher error onto the Kind the HTTP layer
// branches its status code on.
func classifyFetchError(err error) error {
	if errors.Is(err, entity.ErrSSRFBlocked) || errors.Is(err, fetcher.ErrUnsafeRedirect) {
		return entity.NewError(entity.KindSSRF, "blocked redirect", err)
	}
	var verr *entity.ValidationError
	if errors.As(err, &verr) {
		return classifyURLError(err)
	}
	if entity.KindOf(err) != entity.KindUnknown {
		return err
	}
	return entity.NewError(entity.KindUpstream, "fetch feed", err)
}
