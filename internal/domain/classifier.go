package domain

import (
	"context"
	"errors"
	"time"
)

// ErrClassifierUnavailable is returned when no usable model is behind the
// Classifier. The pipeline fails fast with it rather than guessing a score.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Classifier produces a fraud probability in [0,1] for a feature vector.
// The production implementation evaluates a pretrained gradient-boosted tree
// ensemble; tests inject stubs.
type Classifier interface {
	Probability(ctx context.Context, fv *FeatureVector) (float64, error)
}

// HolidayCalendar reports whether a calendar date is a designated national
// holiday. Lookup is by the date's year.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// ClassifierConfig holds classifier initialization settings.
type ClassifierConfig struct {
	// ModelPath is the path to the exported gradient-boosted model artifact.
	ModelPath string
}
