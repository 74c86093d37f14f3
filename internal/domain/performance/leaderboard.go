package performance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"taskscore/internal/domain/core"
)

type LeaderboardFilter struct {
	DepartmentID string
	Limit        int
}

// Rank orders scores for the leaderboard: total descending, then average
// rating, then on-time rate, then employee ID ascending. Ranks start at 1
// and are unique.
func Rank(scores []EmployeeScore) []RankedEntry {
	ordered := make([]EmployeeScore, len(scores))
	copy(ordered, scores)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.AverageRating != b.AverageRating {
			return a.AverageRating > b.AverageRating
		}
		if a.OnTimeRate != b.OnTimeRate {
			return a.OnTimeRate > b.OnTimeRate
		}
		return a.EmployeeID < b.EmployeeID
	})

	entries := make([]RankedEntry, 0, len(ordered))
	for i, score := range ordered {
		entries = append(entries, RankedEntry{
			Rank:          i + 1,
			EmployeeID:    score.EmployeeID,
			TotalScore:    score.TotalScore,
			Grade:         score.Grade,
			AverageRating: score.AverageRating,
			OnTimeRate:    score.OnTimeRate,
			CalculatedAt:  score.CalculatedAt,
		})
	}
	return entries
}

// Leaderboard ranks each employee's live score. Results are cached until the
// next score write in the tenant.
func (s *Service) Leaderboard(ctx context.Context, tenantID string, filter LeaderboardFilter) ([]RankedEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLeaderboardLimit
	}
	filter.Limit = min(filter.Limit, MaxLeaderboardLimit)

	name := fmt.Sprintf("leaderboard:%s:%d", filter.DepartmentID, filter.Limit)
	key := ""
	if s.cache != nil {
		var err error
		key, err = s.cache.Key(ctx, tenantID, name)
		if err != nil {
			slog.Warn("leaderboard cache key failed", "tenantId", tenantID, "err", err)
		} else {
			var cached []RankedEntry
			hit, err := s.cache.Get(ctx, key, &cached)
			if err != nil {
				slog.Warn("leaderboard cache read failed", "key", key, "err", err)
			} else if hit {
				return cached, nil
			}
		}
	}

	flightKey := key
	if flightKey == "" {
		flightKey = tenantID + ":" + name
	}
	v, err, _ := s.flight.Do(flightKey, func() (any, error) {
		entries, err := s.buildLeaderboard(ctx, tenantID, filter)
		if err != nil {
			return nil, err
		}
		if key != "" {
			if err := s.cache.Set(ctx, key, entries); err != nil {
				slog.Warn("leaderboard cache write failed", "key", key, "err", err)
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]RankedEntry), nil
}

func (s *Service) buildLeaderboard(ctx context.Context, tenantID string, filter LeaderboardFilter) ([]RankedEntry, error) {
	scores, err := s.store.LatestScores(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load latest scores: %w", err)
	}
	ids := make([]string, 0, len(scores))
	for _, score := range scores {
		ids = append(ids, score.EmployeeID)
	}
	employees, err := s.directory.ListEmployeesByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}

	eligible := scores[:0:0]
	for _, score := range scores {
		emp, ok := employees[score.EmployeeID]
		if !ok || emp.Status != core.EmployeeStatusActive {
			continue
		}
		if filter.DepartmentID != "" && emp.DepartmentID != filter.DepartmentID {
			continue
		}
		eligible = append(eligible, score)
	}

	entries := Rank(eligible)
	if len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	for i := range entries {
		emp := employees[entries[i].EmployeeID]
		entries[i].EmployeeName = emp.DisplayName()
		entries[i].JobTitle = emp.JobTitle
		entries[i].DepartmentID = emp.DepartmentID
		entries[i].DepartmentName = emp.DepartmentName
	}
	return entries, nil
}
