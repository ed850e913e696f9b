// Package velocity provides the recent-decision history lookup behind the
// repeated high-risk activity rule.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/riskshield/riskshield/internal/domain"
	"github.com/riskshield/riskshield/internal/rules"
)

// Service answers trailing-window history queries over persisted decisions.
// It reads the repository directly so the velocity rule observes every
// committed decision for the customer (read-your-writes).
type Service struct {
	repo domain.Repository
}

// NewService creates a velocity service.
func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

// RecentScores returns the combined scores of a customer's decisions since
// the given time.
func (s *Service) RecentScores(ctx context.Context, customerID string, since time.Time) ([]float64, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customerID is required")
	}
	if s.repo == nil {
		return nil, fmt.Errorf("no history source available")
	}

	scores, err := s.repo.RecentScores(ctx, customerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent scores: %w", err)
	}
	return scores, nil
}

// History returns the accessor the rule engine consumes.
func (s *Service) History() rules.HistoryFunc {
	return s.RecentScores
}
