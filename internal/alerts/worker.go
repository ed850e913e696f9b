// Package alerts provides the async alert worker that consumes scoring
// decision events from the EventBus.
package alerts

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/riskshield/riskshield/internal/domain"
)

var (
	decisionsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskshield",
		Subsystem: "alerts",
		Name:      "decisions_consumed_total",
		Help:      "Decision events consumed from the bus.",
	}, []string{"verdict"})

	fraudAlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskshield",
		Subsystem: "alerts",
		Name:      "fraud_alerts_total",
		Help:      "Fraud alerts emitted, by severity.",
	}, []string{"severity"})
)

// Worker consumes decision events and emits fraud alerts. It is a sink: it
// never writes back to the repository and its failures never affect scoring.
type Worker struct {
	bus domain.EventBus
	cfg domain.ScoringConfig

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new alert worker.
func NewWorker(bus domain.EventBus, cfg domain.ScoringConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the decision and fraud topics.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicDecisionRecorded, w.handleDecision)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	sub, err = w.bus.Subscribe(w.ctx, domain.TopicFraudAlert, w.handleFraudAlert)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("alert worker started",
		"topics", []string{domain.TopicDecisionRecorded, domain.TopicFraudAlert},
	)

	return nil
}

// Stop unsubscribes and halts the worker.
func (w *Worker) Stop() {
	for _, sub := range w.subscriptions {
		_ = sub.Unsubscribe()
	}
	w.subscriptions = nil
	w.cancel()

	slog.Info("alert worker stopped")
}

func (w *Worker) handleDecision(ctx context.Context, msg *domain.Message) error {
	rec, err := decodeDecision(msg)
	if err != nil {
		slog.Error("failed to decode decision event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	verdict := "legitimate"
	if rec.IsFraud == 1 {
		verdict = "fraud"
	}
	decisionsConsumed.WithLabelValues(verdict).Inc()

	slog.Debug("decision recorded",
		"decision_id", rec.ID,
		"transaction_id", rec.TransactionID,
		"risk_score", rec.CombinedScore,
		"is_fraud", rec.IsFraud,
	)

	return nil
}

func (w *Worker) handleFraudAlert(ctx context.Context, msg *domain.Message) error {
	rec, err := decodeDecision(msg)
	if err != nil {
		slog.Error("failed to decode fraud alert",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	severity := "review"
	if rec.CombinedScore >= w.cfg.HighRiskThreshold {
		severity = "block"
	}
	fraudAlertsEmitted.WithLabelValues(severity).Inc()

	slog.Warn("fraud alert",
		"severity", severity,
		"decision_id", rec.ID,
		"transaction_id", rec.TransactionID,
		"customer_id", rec.CustomerID,
		"amount", rec.Amount,
		"risk_score", rec.CombinedScore,
		"rule_flags", rec.Flags,
	)

	return nil
}

func decodeDecision(msg *domain.Message) (*domain.DecisionRecord, error) {
	var rec domain.DecisionRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
