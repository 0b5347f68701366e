package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedproxy/internal/domain/entity"
	"feedproxy/internal/repository"
)

// BatchSize matches the input-per-call limit the queue's embedding job
// handler processes articles in.
const BatchSize = 32

// Service computes and stores missing article embeddings, and recomputes a
// user's cluster centers from their read history.
type Service struct {
	provider Provider
	articles repository.ArticleRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

func NewService(provider Provider, articles repository.ArticleRepository, users repository.UserRepository, logger *slog.Logger) *Service {
	return &Service{provider: provider, articles: articles, users: users, logger: logger}
}

// ComputeMissing embeds up to BatchSize articles that have no embedding yet
// and persists the result. It returns the number of articles embedded.
func (s *Service) ComputeMissing(ctx context.Context) (int, error) {
	pending, err := s.articles.WithoutEmbedding(ctx, BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list articles without embedding: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, article := range pending {
		texts[i] = embeddingInput(article)
	}

	vectors, err := s.provider.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(pending) {
		return 0, fmt.Errorf("embed batch: got %d vectors for %d articles", len(vectors), len(pending))
	}

	for i, article := range pending {
		if err := s.articles.SetEmbedding(ctx, article.ID, vectors[i]); err != nil {
			return i, fmt.Errorf("store embedding for article %d: %w", article.ID, err)
		}
	}

	s.logger.Info("computed article embeddings", slog.Int("count", len(pending)))
	return len(pending), nil
}

// embeddingInput builds the string fed to the embedding provider: the
// article's title and description joined by a space, matching what the
// model was evaluated against.
func embeddingInput(article *entity.Article) string {
	if article.Description == "" {
		return article.Title
	}
	return article.Title + " " + article.Description
}

// readHistoryLimit bounds how many of a user's most recent clicks feed the
// clustering input; older clicks contribute negligibly to K-means centers
// and this keeps the recompute job's cost bounded for long-lived users.
const readHistoryLimit = 500

// RecomputeClusters re-derives a user's cluster centers from their read
// history. It is a no-op, successfully, when fewer than ClusterCount of
// those articles carry an embedding yet, matching Cluster's own refusal
// threshold; the caller is expected to retry on the next click.
func (s *Service) RecomputeClusters(ctx context.Context, userID string) error {
	read, err := s.users.ReadArticles(ctx, userID, readHistoryLimit)
	if err != nil {
		return fmt.Errorf("list read articles for %s: %w", userID, err)
	}

	embedded := make([]*entity.Article, 0, len(read))
	for _, article := range read {
		if article.HasEmbedding() {
			embedded = append(embedded, article)
		}
	}

	centers, err := Cluster(embedded, ClusterCount, ClusterSeed)
	if err != nil {
		if err == ErrNotEnoughArticles {
			s.logger.Debug("skipping cluster recompute, not enough embedded read articles",
				slog.String("user_id", userID), slog.Int("embedded", len(embedded)))
			return nil
		}
		return fmt.Errorf("cluster articles for %s: %w", userID, err)
	}

	if err := s.users.SetClusters(ctx, userID, centers, time.Now().UTC()); err != nil {
		return fmt.Errorf("store clusters for %s: %w", userID, err)
	}
	s.logger.Info("recomputed user clusters", slog.String("user_id", userID), slog.Int("read_articles", len(embedded)))
	return nil
}
