// Package scoring orchestrates the fraud-scoring pipeline: feature
// derivation, classifier inference, rule evaluation, score fusion,
// explanation, persistence.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/riskshield/riskshield/internal/domain"
	"github.com/riskshield/riskshield/internal/explain"
	"github.com/riskshield/riskshield/internal/features"
	"github.com/riskshield/riskshield/internal/rules"
)

// ErrPersistence marks a write failure after the decision was computed. The
// call fails rather than silently dropping the decision.
var ErrPersistence = errors.New("failed to persist decision")

// Service runs the scoring pipeline. Each call is a single stateless pass:
// one history read inside the rule engine, one decision write at the end.
type Service struct {
	classifier domain.Classifier
	calendar   domain.HolidayCalendar
	engine     *rules.Engine
	generator  *explain.Generator
	repo       domain.Repository
	bus        domain.EventBus
	cfg        domain.ScoringConfig

	now func() time.Time
}

// NewService wires the pipeline. bus may be nil; publishing is best-effort.
func NewService(classifier domain.Classifier, calendar domain.HolidayCalendar, engine *rules.Engine, repo domain.Repository, bus domain.EventBus, cfg domain.ScoringConfig) *Service {
	return &Service{
		classifier: classifier,
		calendar:   calendar,
		engine:     engine,
		generator:  explain.NewGenerator(cfg),
		repo:       repo,
		bus:        bus,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Score runs the full pipeline for one transaction and persists the
// resulting decision record.
func (s *Service) Score(ctx context.Context, in *domain.TransactionInput) (*domain.DecisionRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	fv, err := features.Derive(in, s.calendar)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	if s.classifier == nil {
		return nil, domain.ErrClassifierUnavailable
	}
	prob, err := s.classifier.Probability(ctx, fv)
	if err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	outcome, err := s.engine.Evaluate(ctx, in.CustomerID, fv)
	if err != nil {
		return nil, fmt.Errorf("rule evaluation: %w", err)
	}

	fused := Fuse(prob, outcome.Score, s.cfg)
	explanation := s.generator.Build(fv, fused.Combined, fused.RuleScore, outcome.Flags)

	rec := &domain.DecisionRecord{
		ID:            uuid.New().String(),
		CustomerID:    in.CustomerID,
		TransactionID: in.TransactionID,
		Email:         in.Email,
		Amount:        in.Amount,
		Channel:       in.Channel,
		Features:      *fv,
		Flags:         outcome.Flags,
		ModelScore:    fused.ModelScore,
		RuleScore:     fused.RuleScore,
		CombinedScore: fused.Combined,
		IsFraud:       fused.IsFraud,
		Explanation:   explanation,
		Timestamp:     s.now().UTC(),
	}

	if err := s.repo.SaveDecision(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.publish(ctx, rec)

	return rec, nil
}

// ScoreBatch scores up to cfg.BulkMaxItems transactions. Items are logically
// independent: a failure in one is captured as an error placeholder result
// and never aborts the rest.
func (s *Service) ScoreBatch(ctx context.Context, items []*domain.TransactionInput) (*domain.BatchResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrInvalidInput)
	}
	if len(items) > s.cfg.BulkMaxItems {
		return nil, fmt.Errorf("%w: batch exceeds %d items", domain.ErrInvalidInput, s.cfg.BulkMaxItems)
	}

	start := s.now()
	result := &domain.BatchResult{
		Processed: len(items),
		Results:   make([]domain.BatchItemResult, 0, len(items)),
	}

	for _, in := range items {
		rec, err := s.Score(ctx, in)
		if err != nil {
			result.Failed++
			result.Results = append(result.Results, domain.BatchItemResult{
				TransactionID: in.TransactionID,
				CustomerID:    in.CustomerID,
				Flags:         []string{},
				Status:        domain.BatchStatusError,
				ErrorMessage:  err.Error(),
			})
			continue
		}

		result.Succeeded++
		if rec.IsFraud == 1 {
			result.FraudDetected++
		}
		result.Results = append(result.Results, domain.BatchItemResult{
			TransactionID: rec.TransactionID,
			CustomerID:    rec.CustomerID,
			RiskScore:     rec.CombinedScore,
			IsFraud:       rec.IsFraud,
			ModelScore:    rec.ModelScore,
			RuleScore:     rec.RuleScore,
			Flags:         rec.Flags,
			Status:        domain.BatchStatusSuccess,
		})
	}

	elapsed := s.now().Sub(start)
	result.ElapsedMs = elapsed.Milliseconds()
	result.AvgItemMs = round2(float64(elapsed.Milliseconds()) / float64(len(items)))
	if result.Succeeded > 0 {
		result.FraudRate = round2(float64(result.FraudDetected) / float64(result.Succeeded) * 100)
	}

	return result, nil
}

// publish emits the decision events. Failures are logged, never propagated.
func (s *Service) publish(ctx context.Context, rec *domain.DecisionRecord) {
	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		slog.Error("failed to marshal decision event", "decision_id", rec.ID, "error", err)
		return
	}

	if err := s.bus.Publish(ctx, domain.TopicDecisionRecorded, payload); err != nil {
		slog.Warn("failed to publish decision event", "decision_id", rec.ID, "error", err)
	}
	if rec.IsFraud == 1 {
		if err := s.bus.Publish(ctx, domain.TopicFraudAlert, payload); err != nil {
			slog.Warn("failed to publish fraud alert", "decision_id", rec.ID, "error", err)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
