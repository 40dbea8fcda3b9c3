package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stoksync/stoksync/internal/history"
	"github.com/stoksync/stoksync/internal/issues"
)

type fakeHistory struct {
	statuses []string
	recent   []history.Entry
	calls    int
}

func (f *fakeHistory) StatusesSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	f.calls++
	return f.statuses, nil
}

func (f *fakeHistory) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	return f.recent, nil
}

type fakeIssues struct {
	counts     []issues.TypeCount
	unresolved int
}

func (f *fakeIssues) CountsByType(ctx context.Context) ([]issues.TypeCount, error) {
	return f.counts, nil
}

func (f *fakeIssues) TotalUnresolved(ctx context.Context) (int, error) {
	return f.unresolved, nil
}

func newTestService(t *testing.T, hist *fakeHistory, iss *fakeIssues) *Service {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(nil, hist, iss, client)
}

func TestSummaryAggregates(t *testing.T) {
	hist := &fakeHistory{
		statuses: []string{history.StatusSuccess, history.StatusCompletedWithWarnings, history.StatusCriticalFailure},
		recent:   []history.Entry{{ID: 7, Status: history.StatusSuccess}},
	}
	iss := &fakeIssues{
		counts:     []issues.TypeCount{{Type: issues.TypeUnpriced, Count: 2}, {Type: issues.TypeUnmatched, Count: 1}},
		unresolved: 3,
	}
	service := newTestService(t, hist, iss)

	summary, err := service.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 50, summary.HealthScore)
	require.Equal(t, 3, summary.RunsLast24h)
	require.Equal(t, 3, summary.UnresolvedIssues)
	require.Equal(t, 2, summary.IssuesByType[issues.TypeUnpriced])
	require.NotNil(t, summary.LastRun)
	require.Equal(t, int64(7), summary.LastRun.ID)
}

func TestSummaryUsesCache(t *testing.T) {
	hist := &fakeHistory{statuses: []string{history.StatusSuccess}}
	service := newTestService(t, hist, &fakeIssues{})

	_, err := service.Summary(context.Background())
	require.NoError(t, err)
	_, err = service.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, hist.calls)

	service.Invalidate(context.Background())
	_, err = service.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, hist.calls)
}

func TestHealthScoreWithNoRuns(t *testing.T) {
	require.Equal(t, 100, healthScore(nil))
	require.Equal(t, 100, healthScore([]string{}))
	require.Equal(t, 0, healthScore([]string{history.StatusCriticalFailure}))
	require.Equal(t, 100, healthScore([]string{history.StatusSuccess, history.StatusSuccess}))
}
