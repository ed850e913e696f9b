package classifier

import (
	"context"

	"github.com/riskshield/riskshield/internal/domain"
)

// Stub is a fixed-output classifier for tests and dry runs.
type Stub struct {
	// P is the probability returned for every input.
	P float64

	// Err, when set, is returned instead of a probability.
	Err error
}

// Probability implements domain.Classifier.
func (s *Stub) Probability(context.Context, *domain.FeatureVector) (float64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.P, nil
}

// Unavailable is a classifier with no model behind it. Every call fails fast
// with domain.ErrClassifierUnavailable.
type Unavailable struct{}

// Probability implements domain.Classifier.
func (Unavailable) Probability(context.Context, *domain.FeatureVector) (float64, error) {
	return 0, domain.ErrClassifierUnavailable
}
