package ingest_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedproxy/internal/domain/entity"
	"feedproxy/internal/infra/fetcher"
	"feedproxy/internal/infra/parser"
	"feedproxy/internal/usecase/ingest"
)

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Sample Feed</title>
<description>A sample feed for tests</description>
<item><title>First Post</title><link>https://example.test/first</link><description>hello</description></item>
<item><title>Second Post</title><link>https://example.test/second</link><description>world</description></item>
</channel></rss>`

type stubFeeds struct {
	feeds   map[int64]*entity.Feed
	renamed map[int64]string
	updated []*entity.Feed
	stale   []*entity.Feed
}

func (s *stubFeeds) Get(_ context.Context, id int64) (*entity.Feed, error) { return s.feeds[id], nil }
func (s *stubFeeds) FindByURL(context.Context, string) (*entity.Feed, error) { return nil, nil }
func (s *stubFeeds) Upsert(context.Context, string) (*entity.Feed, error)    { return nil, nil }
func (s *stubFeeds) Update(_ context.Context, feed *entity.Feed) error {
	s.updated = append(s.updated, feed)
	s.feeds[feed.ID] = feed
	return nil
}
func (s *stubFeeds) Delete(context.Context, int64) error                 { return nil }
func (s *stubFeeds) ListDisabled(context.Context) ([]*entity.Feed, error) { return nil, nil }
func (s *stubFeeds) List(context.Context) ([]*entity.Feed, error)         { return nil, nil }
func (s *stubFeeds) ListStale(context.Context, time.Duration, time.Time, int) ([]*entity.Feed, error) {
	return s.stale, nil
}
func (s *stubFeeds) RenameURL(_ context.Context, feedID int64, newURL string) error {
	if s.renamed == nil {
		s.renamed = map[int64]string{}
	}
	s.renamed[feedID] = newURL
	return nil
}
func (s *stubFeeds) CountFeeds(context.Context) (int64, error) { return int64(len(s.feeds)), nil }

type stubArticles struct {
	byFeedURL map[string]bool
	nextID    int64
	inserted  []*entity.Article
}

func (s *stubArticles) Get(context.Context, int64) (*entity.Article, error) { return nil, nil }
func (s *stubArticles) InsertIfAbsent(_ context.Context, a *entity.Article) (*entity.Article, error) {
	s.nextID++
	a.ID = s.nextID
	s.inserted = append(s.inserted, a)
	return a, nil
}
func (s *stubArticles) Update(context.Context, *entity.Article) error        { return nil }
func (s *stubArticles) SetEmbedding(context.Context, int64, []float32) error { return nil }
func (s *stubArticles) Delete(context.Context, int64) error                 { return nil }
func (s *stubArticles) ListRecent(context.Context, int64, int) ([]*entity.Article, error) {
	return nil, nil
}
func (s *stubArticles) ExistsByURLBatch(_ context.Context, _ int64, urls []string) (map[string]bool, error) {
	out := make(map[string]bool, len(urls))
	for _, u := range urls {
		out[u] = s.byFeedURL[u]
	}
	return out, nil
}
func (s *stubArticles) WithoutEmbedding(context.Context, int) ([]*entity.Article, error) {
	return nil, nil
}
func (s *stubArticles) DeleteUnreadOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (s *stubArticles) ClearEmbeddingsOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (s *stubArticles) CountArticles(context.Context) (int64, error) { return 0, nil }

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_FetchFeedBatch_InsertsNewArticlesAndRecordsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	feeds := &stubFeeds{feeds: map[int64]*entity.Feed{
		1: {ID: 1, URL: server.URL},
	}}
	articles := &stubArticles{byFeedURL: map[string]bool{}}

	cfg := fetcher.DefaultConfig()
	cfg.DenyPrivateIPs = false
	svc := ingest.NewService(fetcher.New(cfg), parser.New(), feeds, articles, nil, silentLogger())

	newIDs, err := svc.FetchFeedBatch(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Len(t, newIDs, 2)
	require.Len(t, articles.inserted, 2)
	require.Len(t, feeds.updated, 1)
	require.False(t, feeds.updated[0].IsDisabled)
	require.Equal(t, "Sample Feed", feeds.updated[0].Title)
}

func TestService_FetchFeedBatch_RecordsFailureOnUnreachableFeed(t *testing.T) {
	feeds := &stubFeeds{feeds: map[int64]*entity.Feed{
		1: {ID: 1, URL: "http://127.0.0.1:1/does-not-exist"},
	}}
	articles := &stubArticles{byFeedURL: map[string]bool{}}

	cfg := fetcher.DefaultConfig()
	cfg.DenyPrivateIPs = false
	cfg.Timeout = 500 * time.Millisecond
	svc := ingest.NewService(fetcher.New(cfg), parser.New(), feeds, articles, nil, silentLogger())

	newIDs, err := svc.FetchFeedBatch(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Empty(t, newIDs)
	require.Len(t, feeds.updated, 1)
	require.Equal(t, 1, feeds.updated[0].ConsecutiveFailures)
}

func TestService_FetchAllFeeds_NoStaleFeedsIsNoop(t *testing.T) {
	feeds := &stubFeeds{feeds: map[int64]*entity.Feed{}}
	articles := &stubArticles{byFeedURL: map[string]bool{}}
	cfg := fetcher.DefaultConfig()
	svc := ingest.NewService(fetcher.New(cfg), parser.New(), feeds, articles, nil, silentLogger())

	n, err := svc.FetchAllFeeds(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}
