package feed

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"feedproxy/internal/domain/entity"
	"feedproxy/internal/usecase/ranker"
)

// RegisterUser creates a brand-new opaque user id and upserts the row,
// matching register_user's uuid4().hex id format.
func (s *Service) RegisterUser(ctx context.Context) (string, error) {
	userID := strings.ReplaceAll(uuid.New().String(), "-", "")
	if _, err := s.users.Upsert(ctx, userID); err != nil {
		return "", fmt.Errorf("register user %s: %w", userID, err)
	}
	return userID, nil
}

// EnsureUser creates userID if it doesn't already exist, matching
// process_opml's get-or-create when a caller supplies an existing id.
func (s *Service) EnsureUser(ctx context.Context, userID string) error {
	if _, err := s.users.Upsert(ctx, userID); err != nil {
		return fmt.Errorf("ensure user %s: %w", userID, err)
	}
	return nil
}

// maxClusterArticles bounds how many of a user's read articles the clusters
// endpoint loads to group by nearest center.
const maxClusterArticles = 2000

// ErrUserNotFound is returned by GetUserClusters for an id the Store has
// never seen.
var ErrUserNotFound = entity.NewError(entity.KindNotFound, "user not found", nil)

// ErrClustersNotReady is returned when the user exists but has no cluster
// model yet (fewer than ten read articles with embeddings).
var ErrClustersNotReady = fmt.Errorf("clusters not ready")

// ClusteredArticle is the subset of an article's fields the clusters
// endpoint exposes.
type ClusteredArticle struct {
	Title       string
	Description string
	URL         string
}

// GetUserClusters groups a user's read articles by nearest cluster center,
// mirroring get_user_clusters's cosine-argmin assignment.
func (s *Service) GetUserClusters(ctx context.Context, userID string) (map[int][]ClusteredArticle, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	read, err := s.users.ReadArticles(ctx, userID, maxClusterArticles)
	if err != nil {
		return nil, fmt.Errorf("list read articles for %s: %w", userID, err)
	}
	embedded := make([]*entity.Article, 0, len(read))
	for _, a := range read {
		if a.HasEmbedding() {
			embedded = append(embedded, a)
		}
	}
	if len(embedded) == 0 || !user.HasClusters() {
		return nil, ErrClustersNotReady
	}

	result := make(map[int][]ClusteredArticle, len(user.Clusters))
	for _, article := range embedded {
		cluster := nearestClusterIndex(article.Embedding, user.Clusters)
		result[cluster] = append(result[cluster], ClusteredArticle{
			Title:       article.Title,
			Description: article.Description,
			URL:         article.URL,
		})
	}
	return result, nil
}

func nearestClusterIndex(embedding []float32, centers [][]float32) int {
	best, bestDist := 0, math.Inf(1)
	for i, center := range centers {
		d := ranker.CosineDistance(embedding, center)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
