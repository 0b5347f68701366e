package maintenance_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"feedproxy/internal/domain/entity"
	"feedproxy/internal/infra/db"
	"feedproxy/internal/usecase/maintenance"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubUsers struct {
	dormant        []*entity.User
	frozen         map[string]bool
	orphanArticles int64
	orphanFeeds    int64
	inactive       []string
	deleted        []string
	totalUsers     int64
	frozenUsers    int64
}

func (s *stubUsers) Upsert(context.Context, string) (*entity.User, error) { return nil, nil }
func (s *stubUsers) Get(context.Context, string) (*entity.User, error)    { return nil, nil }
func (s *stubUsers) Touch(context.Context, string, time.Time) error       { return nil }
func (s *stubUsers) SetFrozen(_ context.Context, id string, frozen bool, _ time.Time) error {
	if s.frozen == nil {
		s.frozen = map[string]bool{}
	}
	s.frozen[id] = frozen
	return nil
}
func (s *stubUsers) SetClusters(context.Context, string, [][]float32, time.Time) error { return nil }
func (s *stubUsers) ListDormant(context.Context, time.Duration, time.Time) ([]*entity.User, error) {
	return s.dormant, nil
}
func (s *stubUsers) ListInactive(context.Context, time.Duration, time.Time) ([]string, error) {
	return s.inactive, nil
}
func (s *stubUsers) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}
func (s *stubUsers) LinkFeed(context.Context, string, int64) error              { return nil }
func (s *stubUsers) LinkArticle(context.Context, string, int64, time.Time) error { return nil }
func (s *stubUsers) ArticleClickCount(context.Context, string) (int, error)     { return 0, nil }
func (s *stubUsers) ReadArticles(context.Context, string, int) ([]*entity.Article, error) {
	return nil, nil
}
func (s *stubUsers) CleanupOrphanArticleLinks(context.Context) (int64, error) { return s.orphanArticles, nil }
func (s *stubUsers) CleanupOrphanFeedLinks(context.Context) (int64, error)    { return s.orphanFeeds, nil }
func (s *stubUsers) CountUsers(context.Context) (int64, error)               { return s.totalUsers, nil }
func (s *stubUsers) CountFrozenUsers(context.Context) (int64, error)         { return s.frozenUsers, nil }

type stubFeeds struct {
	disabled []*entity.Feed
	updated  []*entity.Feed
	total    int64
}

func (s *stubFeeds) Get(context.Context, int64) (*entity.Feed, error)            { return nil, nil }
func (s *stubFeeds) FindByURL(context.Context, string) (*entity.Feed, error)     { return nil, nil }
func (s *stubFeeds) Upsert(context.Context, string) (*entity.Feed, error)        { return nil, nil }
func (s *stubFeeds) Update(_ context.Context, feed *entity.Feed) error {
	s.updated = append(s.updated, feed)
	return nil
}
func (s *stubFeeds) Delete(context.Context, int64) error { return nil }
func (s *stubFeeds) ListDisabled(context.Context) ([]*entity.Feed, error) { return s.disabled, nil }
func (s *stubFeeds) List(context.Context) ([]*entity.Feed, error)         { return nil, nil }
func (s *stubFeeds) ListStale(context.Context, time.Duration, time.Time, int) ([]*entity.Feed, error) {
	return nil, nil
}
func (s *stubFeeds) RenameURL(context.Context, int64, string) error { return nil }
func (s *stubFeeds) CountFeeds(context.Context) (int64, error)      { return s.total, nil }

type stubArticles struct {
	cleared       int64
	deleted       int64
	total         int64
	withEmbedding int64
}

func (s *stubArticles) Get(context.Context, int64) (*entity.Article, error) { return nil, nil }
func (s *stubArticles) InsertIfAbsent(context.Context, *entity.Article) (*entity.Article, error) {
	return nil, nil
}
func (s *stubArticles) Update(context.Context, *entity.Article) error         { return nil }
func (s *stubArticles) SetEmbedding(context.Context, int64, []float32) error  { return nil }
func (s *stubArticles) Delete(context.Context, int64) error                  { return nil }
func (s *stubArticles) ListRecent(context.Context, int64, int) ([]*entity.Article, error) {
	return nil, nil
}
func (s *stubArticles) ExistsByURLBatch(context.Context, int64, []string) (map[string]bool, error) {
	return nil, nil
}
func (s *stubArticles) WithoutEmbedding(context.Context, int) ([]*entity.Article, error) {
	return nil, nil
}
func (s *stubArticles) DeleteUnreadOlderThan(context.Context, time.Time) (int64, error) {
	return s.deleted, nil
}
func (s *stubArticles) ClearEmbeddingsOlderThan(context.Context, time.Time) (int64, error) {
	return s.cleared, nil
}
func (s *stubArticles) CountArticles(context.Context) (int64, error) { return s.total, nil }
func (s *stubArticles) CountWithEmbedding(context.Context) (int64, error) {
	return s.withEmbedding, nil
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestService_FreezeDormantUsers_FreezesEach(t *testing.T) {
	users := &stubUsers{dormant: []*entity.User{{ID: "a"}, {ID: "b"}}}
	svc := maintenance.NewService(users, &stubFeeds{}, &stubArticles{}, openTestDB(t), db.BackendSQLite, maintenance.DefaultConfig(), silentLogger())

	n, err := svc.FreezeDormantUsers(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, users.frozen["a"])
	require.True(t, users.frozen["b"])
}

func TestService_RetryDisabledFeeds_ReEnablesEach(t *testing.T) {
	feeds := &stubFeeds{disabled: []*entity.Feed{
		{ID: 1, IsDisabled: true, ConsecutiveFailures: 7, LastError: "boom"},
	}}
	svc := maintenance.NewService(&stubUsers{}, feeds, &stubArticles{}, openTestDB(t), db.BackendSQLite, maintenance.DefaultConfig(), silentLogger())

	n, err := svc.RetryDisabledFeeds(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.False(t, feeds.updated[0].IsDisabled)
	require.Zero(t, feeds.updated[0].ConsecutiveFailures)
	require.Empty(t, feeds.updated[0].LastError)
}

func TestService_RunFull_ExecutesInOrderAndVacuums(t *testing.T) {
	users := &stubUsers{dormant: []*entity.User{{ID: "a"}}}
	articles := &stubArticles{cleared: 3, deleted: 4}
	svc := maintenance.NewService(users, &stubFeeds{}, articles, openTestDB(t), db.BackendSQLite, maintenance.DefaultConfig(), silentLogger())

	result, err := svc.RunFull(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.FrozenUsers)
	require.EqualValues(t, 3, result.RemovedEmbeddings)
	require.EqualValues(t, 4, result.DeletedArticles)
	require.True(t, result.Vacuumed)
}

func TestService_Stats_AggregatesCounts(t *testing.T) {
	users := &stubUsers{totalUsers: 5, frozenUsers: 2}
	feeds := &stubFeeds{total: 3}
	articles := &stubArticles{total: 10, withEmbedding: 4}
	svc := maintenance.NewService(users, feeds, articles, openTestDB(t), db.BackendSQLite, maintenance.DefaultConfig(), silentLogger())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 5, stats.TotalUsers)
	require.EqualValues(t, 2, stats.FrozenUsers)
	require.EqualValues(t, 3, stats.TotalFeeds)
	require.EqualValues(t, 10, stats.TotalArticles)
	require.EqualValues(t, 4, stats.ArticlesWithEmbeds)
}
