package performance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"taskscore/internal/domain/core"
)

type Directory interface {
	GetEmployee(ctx context.Context, tenantID, employeeID string) (*core.Employee, error)
	ListActiveEmployeeIDs(ctx context.Context, tenantID string) ([]string, error)
	ListEmployeesByIDs(ctx context.Context, tenantID string, ids []string) (map[string]core.Employee, error)
}

// Cache stores rendered leaderboards. Invalidate must make every
// previously built key unreachable.
type Cache interface {
	Key(ctx context.Context, tenantID, name string) (string, error)
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Invalidate(ctx context.Context, tenantID string) error
}

type Service struct {
	store     StoreAPI
	directory Directory
	policy    Policy
	workers   int
	cache     Cache
	flight    singleflight.Group
	now       func() time.Time
}

func NewService(store StoreAPI, directory Directory, policy Policy, workers int) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		store:     store,
		directory: directory,
		policy:    policy,
		workers:   workers,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithCache enables leaderboard caching.
func (s *Service) WithCache(cache Cache) *Service {
	s.cache = cache
	return s
}

func (s *Service) Policy() Policy {
	return s.policy
}

// CurrentPeriod is the default scoring period: the current UTC month.
func (s *Service) CurrentPeriod() Period {
	return MonthOf(s.now())
}

func (s *Service) LiveScore(ctx context.Context, tenantID, employeeID string) (EmployeeScore, error) {
	return s.store.LatestScore(ctx, tenantID, employeeID)
}

func (s *Service) History(ctx context.Context, tenantID, employeeID string, limit int) ([]EmployeeScore, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)
	history, err := s.store.ScoreHistory(ctx, tenantID, employeeID, limit)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []EmployeeScore{}
	}
	return history, nil
}

func (s *Service) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		slog.Warn("leaderboard cache invalidate failed", "tenantId", tenantID, "err", err)
	}
}

func (s *Service) employeeExists(ctx context.Context, tenantID, employeeID string) error {
	_, err := s.directory.GetEmployee(ctx, tenantID, employeeID)
	if errors.Is(err, core.ErrEmployeeNotFound) {
		return ErrEmployeeNotFound
	}
	return err
}
