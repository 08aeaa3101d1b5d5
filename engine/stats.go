package engine

import (
	"context"
	"fmt"

	"civicrank/core"
)

const DefaultTopUsers = 10

// PointStatistics is read from storage, so every instance reports the same numbers.
type PointStatistics struct {
	core.LedgerTotals
	TopUsers []core.User `json:"top_users"`
}

// PointStatistics sums the stored ledger and lists the top earners.
func (s *Service) PointStatistics(ctx context.Context, top int) (PointStatistics, error) {
	totals, err := s.storage.LedgerTotals(ctx)
	if err != nil {
		return PointStatistics{}, fmt.Errorf("ledger totals: %w", err)
	}
	users, err := s.TopUsers(ctx, top)
	if err != nil {
		return PointStatistics{}, err
	}
	if totals.ByEventType == nil {
		totals.ByEventType = []core.EventTypeTotal{}
	}
	return PointStatistics{LedgerTotals: totals, TopUsers: users}, nil
}

// TopUsers lists users by current points, highest first.
func (s *Service) TopUsers(ctx context.Context, limit int) ([]core.User, error) {
	if limit <= 0 {
		limit = DefaultTopUsers
	}
	users, err := s.storage.TopUsers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	if users == nil {
		users = []core.User{}
	}
	return users, nil
}
