package scoring

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/riskshield/riskshield/internal/classifier"
	"github.com/riskshield/riskshield/internal/domain"
	"github.com/riskshield/riskshield/internal/rules"
)

// memRepo is an in-memory Repository for pipeline tests.
type memRepo struct {
	mu        sync.Mutex
	decisions []*domain.DecisionRecord
	saveErr   error
}

func (r *memRepo) SaveUser(ctx context.Context, user *domain.User) error { return nil }
func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (r *memRepo) SaveDecision(ctx context.Context, rec *domain.DecisionRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, rec)
	return nil
}

func (r *memRepo) GetDecision(ctx context.Context, id string) (*domain.DecisionRecord, error) {
	return nil, errors.New("not implemented")
}

func (r *memRepo) ListDecisionsByEmail(ctx context.Context, email string) ([]*domain.DecisionRecord, error) {
	return nil, errors.New("not implemented")
}

func (r *memRepo) RecentScores(ctx context.Context, customerID string, since time.Time) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var scores []float64
	for _, d := range r.decisions {
		if d.CustomerID == customerID && !d.Timestamp.Before(since) {
			scores = append(scores, d.CombinedScore)
		}
	}
	return scores, nil
}

func (r *memRepo) DecisionStats(ctx context.Context) ([]domain.DecisionStat, error) {
	return nil, nil
}
func (r *memRepo) SaveCustomRule(ctx context.Context, rule *domain.CustomRule) error { return nil }
func (r *memRepo) ListCustomRules(ctx context.Context) ([]*domain.CustomRule, error) {
	return nil, nil
}
func (r *memRepo) Ping(ctx context.Context) error { return nil }
func (r *memRepo) Close() error                   { return nil }

// recordingBus captures published topics.
type recordingBus struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (b *recordingBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	return nil, errors.New("not implemented")
}
func (b *recordingBus) Ping(ctx context.Context) error { return nil }
func (b *recordingBus) Close() error                   { return nil }

func (b *recordingBus) published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.topics...)
}

func cleanInput() *domain.TransactionInput {
	return &domain.TransactionInput{
		Email:          "test@example.com",
		CustomerID:     "CUST001",
		TransactionID:  "TXN001",
		Timestamp:      "2025-03-12 14:30:00",
		Amount:         5000,
		KYCVerified:    1,
		AccountAgeDays: 365,
		Channel:        domain.ChannelOnline,
	}
}

func newService(model domain.Classifier, repo domain.Repository, bus domain.EventBus, cfg domain.ScoringConfig) *Service {
	engine := rules.NewEngine(cfg, nil)
	return NewService(model, nil, engine, repo, bus, cfg)
}

func TestScore(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	ctx := context.Background()

	t.Run("LegitimateTransaction", func(t *testing.T) {
		repo := &memRepo{}
		bus := &recordingBus{}
		svc := newService(&classifier.Stub{P: 0.2}, repo, bus, cfg)

		rec, err := svc.Score(ctx, cleanInput())
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}

		if rec.ID == "" {
			t.Error("expected a generated decision ID")
		}
		if rec.CombinedScore != 0.2 {
			t.Errorf("expected combined 0.2, got %v", rec.CombinedScore)
		}
		if rec.IsFraud != 0 {
			t.Errorf("expected legitimate verdict, got is_fraud %d", rec.IsFraud)
		}
		if rec.Flags == nil || len(rec.Flags) != 0 {
			t.Errorf("expected empty flags, got %v", rec.Flags)
		}
		if !strings.Contains(rec.Explanation, "LEGITIMATE") {
			t.Errorf("explanation should carry the verdict: %q", rec.Explanation)
		}
		if len(repo.decisions) != 1 {
			t.Fatalf("expected 1 persisted decision, got %d", len(repo.decisions))
		}

		topics := bus.published()
		if len(topics) != 1 || topics[0] != domain.TopicDecisionRecorded {
			t.Errorf("expected only the decision event, got %v", topics)
		}
	})

	t.Run("FraudulentTransaction", func(t *testing.T) {
		repo := &memRepo{}
		bus := &recordingBus{}
		svc := newService(&classifier.Stub{P: 0.5}, repo, bus, cfg)

		in := cleanInput()
		in.Amount = 150000

		rec, err := svc.Score(ctx, in)
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if rec.CombinedScore != 0.7 {
			t.Errorf("expected combined 0.7, got %v", rec.CombinedScore)
		}
		if rec.IsFraud != 1 {
			t.Errorf("expected fraud verdict, got is_fraud %d", rec.IsFraud)
		}
		if len(rec.Flags) != 1 || rec.Flags[0] != "High amount transaction (>₹100K)" {
			t.Errorf("unexpected flags: %v", rec.Flags)
		}

		topics := bus.published()
		if len(topics) != 2 || topics[0] != domain.TopicDecisionRecorded || topics[1] != domain.TopicFraudAlert {
			t.Errorf("expected decision + fraud alert events, got %v", topics)
		}
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		svc := newService(&classifier.Stub{P: 0.2}, &memRepo{}, nil, cfg)

		in := cleanInput()
		in.Amount = -10

		_, err := svc.Score(ctx, in)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("BadTimestampIsInvalidInput", func(t *testing.T) {
		svc := newService(&classifier.Stub{P: 0.2}, &memRepo{}, nil, cfg)

		in := cleanInput()
		in.Timestamp = "12/03/2025 14:30"

		_, err := svc.Score(ctx, in)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("NilClassifier", func(t *testing.T) {
		svc := newService(nil, &memRepo{}, nil, cfg)

		_, err := svc.Score(ctx, cleanInput())
		if !errors.Is(err, domain.ErrClassifierUnavailable) {
			t.Errorf("expected ErrClassifierUnavailable, got %v", err)
		}
	})

	t.Run("ClassifierError", func(t *testing.T) {
		svc := newService(classifier.Unavailable{}, &memRepo{}, nil, cfg)

		_, err := svc.Score(ctx, cleanInput())
		if !errors.Is(err, domain.ErrClassifierUnavailable) {
			t.Errorf("expected wrapped ErrClassifierUnavailable, got %v", err)
		}
	})

	t.Run("PersistenceFailure", func(t *testing.T) {
		repo := &memRepo{saveErr: errors.New("disk full")}
		svc := newService(&classifier.Stub{P: 0.2}, repo, nil, cfg)

		_, err := svc.Score(ctx, cleanInput())
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("expected ErrPersistence, got %v", err)
		}
	})

	t.Run("BusFailureDoesNotFailCall", func(t *testing.T) {
		repo := &memRepo{}
		bus := &recordingBus{err: errors.New("bus down")}
		svc := newService(&classifier.Stub{P: 0.2}, repo, bus, cfg)

		if _, err := svc.Score(ctx, cleanInput()); err != nil {
			t.Fatalf("bus failure must not fail the scoring call: %v", err)
		}
		if len(repo.decisions) != 1 {
			t.Errorf("decision should still be persisted, got %d", len(repo.decisions))
		}
	})

	t.Run("VelocityReadsOwnWrites", func(t *testing.T) {
		repo := &memRepo{}
		engine := rules.NewEngine(cfg, repo.RecentScores)
		svc := NewService(&classifier.Stub{P: 0.75}, nil, engine, repo, nil, cfg)

		// Three fraud decisions within the hour, then a fourth scoring call
		// for the same customer trips the velocity rule.
		for i := 0; i < 3; i++ {
			in := cleanInput()
			in.TransactionID = "TXN00" + string(rune('1'+i))
			if _, err := svc.Score(ctx, in); err != nil {
				t.Fatalf("Score %d failed: %v", i, err)
			}
		}

		rec, err := svc.Score(ctx, cleanInput())
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		if len(rec.Flags) != 1 || rec.Flags[0] != "Multiple high-risk transactions in last hour" {
			t.Errorf("expected velocity flag, got %v", rec.Flags)
		}
		if rec.CombinedScore != 1.0 {
			t.Errorf("expected saturated combined score 1.0, got %v", rec.CombinedScore)
		}
	})

	t.Run("RepeatedScoringIsDeterministic", func(t *testing.T) {
		svc := newService(&classifier.Stub{P: 0.5}, &memRepo{}, nil, cfg)

		in := cleanInput()
		in.Amount = 150000

		first, err := svc.Score(ctx, in)
		if err != nil {
			t.Fatalf("Score failed: %v", err)
		}
		for i := 0; i < 3; i++ {
			rec, err := svc.Score(ctx, in)
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			if !reflect.DeepEqual(rec.Features, first.Features) {
				t.Errorf("feature vector changed on repeat: %+v vs %+v", rec.Features, first.Features)
			}
			if !reflect.DeepEqual(rec.Flags, first.Flags) {
				t.Errorf("flags changed on repeat: %v vs %v", rec.Flags, first.Flags)
			}
			if rec.ModelScore != first.ModelScore || rec.RuleScore != first.RuleScore ||
				rec.CombinedScore != first.CombinedScore || rec.IsFraud != first.IsFraud {
				t.Errorf("scores changed on repeat: %+v vs %+v", rec, first)
			}
			if rec.Explanation != first.Explanation {
				t.Errorf("explanation changed on repeat")
			}
		}
	})
}

func TestRound2(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"RoundsDown", 0.333333, 0.33},
		{"RoundsUp", 0.666666, 0.67},
		{"Negative", -0.005, -0.01},
		{"LargeValue", 1e17, 1e17},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := round2(tc.in); got != tc.want {
				t.Errorf("round2(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestScoreBatch(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	ctx := context.Background()

	t.Run("EmptyBatch", func(t *testing.T) {
		svc := newService(&classifier.Stub{P: 0.2}, &memRepo{}, nil, cfg)

		_, err := svc.ScoreBatch(ctx, nil)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("OverLimit", func(t *testing.T) {
		small := cfg
		small.BulkMaxItems = 2
		svc := newService(&classifier.Stub{P: 0.2}, &memRepo{}, nil, small)

		items := []*domain.TransactionInput{cleanInput(), cleanInput(), cleanInput()}
		_, err := svc.ScoreBatch(ctx, items)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("MixedResults", func(t *testing.T) {
		repo := &memRepo{}
		svc := newService(&classifier.Stub{P: 0.65}, repo, nil, cfg)

		good := cleanInput()
		fraud := cleanInput()
		fraud.TransactionID = "TXN-FRAUD"
		bad := cleanInput()
		bad.TransactionID = "TXN-BAD"
		bad.Amount = -5

		// P=0.65 alone crosses the threshold, so both valid items are fraud.
		result, err := svc.ScoreBatch(ctx, []*domain.TransactionInput{good, fraud, bad})
		if err != nil {
			t.Fatalf("ScoreBatch failed: %v", err)
		}

		if result.Processed != 3 {
			t.Errorf("expected 3 processed, got %d", result.Processed)
		}
		if result.Succeeded != 2 || result.Failed != 1 {
			t.Errorf("expected 2 succeeded / 1 failed, got %d / %d", result.Succeeded, result.Failed)
		}
		if result.FraudDetected != 2 {
			t.Errorf("expected 2 fraud, got %d", result.FraudDetected)
		}
		if result.FraudRate != 100 {
			t.Errorf("expected fraud rate 100, got %v", result.FraudRate)
		}
		if len(result.Results) != 3 {
			t.Fatalf("expected 3 item results, got %d", len(result.Results))
		}

		errItem := result.Results[2]
		if errItem.Status != domain.BatchStatusError {
			t.Errorf("expected error status, got %q", errItem.Status)
		}
		if errItem.TransactionID != "TXN-BAD" {
			t.Errorf("error placeholder must carry the transaction id, got %q", errItem.TransactionID)
		}
		if errItem.ErrorMessage == "" {
			t.Error("error placeholder must carry a message")
		}
		if errItem.Flags == nil {
			t.Error("error placeholder flags must be an empty slice, not nil")
		}

		// One row per succeeded item; the failed item is never persisted.
		if len(repo.decisions) != 2 {
			t.Errorf("expected 2 persisted decisions, got %d", len(repo.decisions))
		}
	})

	t.Run("FraudRateOverSucceeded", func(t *testing.T) {
		svc := newService(&classifier.Stub{P: 0.65}, &memRepo{}, nil, cfg)

		good := cleanInput()
		bad := cleanInput()
		bad.Amount = -1

		result, err := svc.ScoreBatch(ctx, []*domain.TransactionInput{good, bad})
		if err != nil {
			t.Fatalf("ScoreBatch failed: %v", err)
		}
		// 1 fraud out of 1 succeeded, not out of 2 processed.
		if result.FraudRate != 100 {
			t.Errorf("fraud rate is computed over succeeded items, got %v", result.FraudRate)
		}
	})
}
