// Package dashboard aggregates run health and issue statistics for the
// operator overview.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/stoksync/stoksync/internal/history"
	"github.com/stoksync/stoksync/internal/issues"
)

const (
	cacheKey = "stoksync:dashboard:summary"
	cacheTTL = 30 * time.Second
)

// HistorySource is the slice of run history the dashboard reads.
type HistorySource interface {
	StatusesSince(ctx context.Context, cutoff time.Time) ([]string, error)
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// IssueSource is the slice of the issue ledger the dashboard reads.
type IssueSource interface {
	CountsByType(ctx context.Context) ([]issues.TypeCount, error)
	TotalUnresolved(ctx context.Context) (int, error)
}

// Summary is the aggregated dashboard payload.
type Summary struct {
	HealthScore      int            `json:"health_score"`
	RunsLast24h      int            `json:"runs_last_24h"`
	UnresolvedIssues int            `json:"unresolved_issues"`
	IssuesByType     map[string]int `json:"issues_by_type"`
	LastRun          *history.Entry `json:"last_run,omitempty"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// Service computes dashboard summaries with a short Redis cache in front
// and singleflight collapsing concurrent recomputes.
type Service struct {
	logger  *slog.Logger
	history HistorySource
	issues  IssueSource
	cache   *redis.Client
	group   singleflight.Group
	now     func() time.Time
}

// NewService constructs Service. The cache client may be nil; summaries
// are then computed on every call.
func NewService(logger *slog.Logger, historySource HistorySource, issueSource IssueSource, cache *redis.Client) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:  logger,
		history: historySource,
		issues:  issueSource,
		cache:   cache,
		now:     time.Now,
	}
}

// Summary returns the current dashboard summary, served from cache when
// fresh.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	if cached, ok := s.fromCache(ctx); ok {
		return cached, nil
	}
	result, err, _ := s.group.Do(cacheKey, func() (any, error) {
		summary, err := s.compute(ctx)
		if err != nil {
			return Summary{}, err
		}
		s.store(ctx, summary)
		return summary, nil
	})
	if err != nil {
		return Summary{}, err
	}
	return result.(Summary), nil
}

// Invalidate drops the cached summary, used right after a run finishes.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Warn("invalidate dashboard cache", slog.Any("error", err))
	}
}

func (s *Service) compute(ctx context.Context) (Summary, error) {
	cutoff := s.now().Add(-24 * time.Hour)
	statuses, err := s.history.StatusesSince(ctx, cutoff)
	if err != nil {
		return Summary{}, err
	}
	recent, err := s.history.Recent(ctx, 1)
	if err != nil {
		return Summary{}, err
	}
	counts, err := s.issues.CountsByType(ctx)
	if err != nil {
		return Summary{}, err
	}
	unresolved, err := s.issues.TotalUnresolved(ctx)
	if err != nil {
		return Summary{}, err
	}

	byType := make(map[string]int, len(counts))
	for _, c := range counts {
		byType[c.Type] = c.Count
	}
	summary := Summary{
		HealthScore:      healthScore(statuses),
		RunsLast24h:      len(statuses),
		UnresolvedIssues: unresolved,
		IssuesByType:     byType,
		GeneratedAt:      s.now(),
	}
	if len(recent) > 0 {
		last := recent[0]
		summary.LastRun = &last
	}
	return summary, nil
}

// healthScore grades the last 24 hours of runs: clean runs count full,
// runs with warnings count half, failures zero. No runs means nothing
// is failing, so the score stays at 100.
func healthScore(statuses []string) int {
	if len(statuses) == 0 {
		return 100
	}
	total := 0.0
	for _, status := range statuses {
		switch status {
		case history.StatusSuccess:
			total += 1.0
		case history.StatusCompletedWithWarnings:
			total += 0.5
		}
	}
	return int(total / float64(len(statuses)) * 100)
}

func (s *Service) fromCache(ctx context.Context) (Summary, bool) {
	if s.cache == nil {
		return Summary{}, false
	}
	raw, err := s.cache.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return Summary{}, false
	}
	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return Summary{}, false
	}
	return summary, true
}

func (s *Service) store(ctx context.Context, summary Summary) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, raw, cacheTTL).Err(); err != nil {
		s.logger.Warn("cache dashboard summary", slog.Any("error", err))
	}
}
