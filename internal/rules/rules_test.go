package rules

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/riskshield/riskshield/internal/domain"
)

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestEvaluateBuiltins(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	engine := NewEngine(cfg, nil)
	ctx := context.Background()

	t.Run("CleanTransaction", func(t *testing.T) {
		fv := &domain.FeatureVector{
			KYCVerified:       1,
			AccountAgeDays:    365,
			TransactionAmount: 5000,
		}

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if out.Score != 0 {
			t.Errorf("expected score 0, got %f", out.Score)
		}
		if out.Flags == nil {
			t.Error("flags must be an empty slice, not nil")
		}
		if len(out.Flags) != 0 {
			t.Errorf("expected no flags, got %v", out.Flags)
		}
	})

	t.Run("HighAmount", func(t *testing.T) {
		fv := &domain.FeatureVector{KYCVerified: 1, AccountAgeDays: 365, TransactionAmount: 150000}

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !almostEqual(out.Score, 0.20) {
			t.Errorf("expected score 0.20, got %f", out.Score)
		}
		if len(out.Flags) != 1 || out.Flags[0] != "High amount transaction (>₹100K)" {
			t.Errorf("unexpected flags: %v", out.Flags)
		}
	})

	t.Run("HighAmountBoundary", func(t *testing.T) {
		// Exactly at the threshold the rule does not fire.
		fv := &domain.FeatureVector{KYCVerified: 1, AccountAgeDays: 365, TransactionAmount: 100000}

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if out.Score != 0 {
			t.Errorf("expected score 0 at the exact threshold, got %f", out.Score)
		}
	})

	t.Run("NightAmount", func(t *testing.T) {
		fv := &domain.FeatureVector{
			KYCVerified:       1,
			AccountAgeDays:    365,
			TransactionAmount: 60000,
			IsNightTxn:        1,
		}

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !almostEqual(out.Score, 0.20) {
			t.Errorf("expected score 0.20, got %f", out.Score)
		}
		if len(out.Flags) != 1 || out.Flags[0] != "Large night-time transaction" {
			t.Errorf("unexpected flags: %v", out.Flags)
		}
	})

	t.Run("NewUnverifiedAccount", func(t *testing.T) {
		fv := &domain.FeatureVector{
			KYCVerified:       0,
			AccountAgeDays:    5,
			TransactionAmount: 1000,
		}

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !almostEqual(out.Score, 0.25) {
			t.Errorf("expected score 0.25, got %f", out.Score)
		}
		if len(out.Flags) != 1 || out.Flags[0] != "New unverified account" {
			t.Errorf("unexpected flags: %v", out.Flags)
		}
	})

	t.Run("WeekendHighValue", func(t *testing.T) {
		fv := &domain.FeatureVector{
			KYCVerified:       1,
			AccountAgeDays:    365,
			TransactionAmount: 90000,
			IsWeekendTxn:      1,
		}

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !almostEqual(out.Score, 0.15) {
			t.Errorf("expected score 0.15, got %f", out.Score)
		}
		if len(out.Flags) != 1 || out.Flags[0] != "Weekend high-value transaction" {
			t.Errorf("unexpected flags: %v", out.Flags)
		}
	})

	t.Run("HolidayHighValue", func(t *testing.T) {
		fv := &domain.FeatureVector{
			KYCVerified:       1,
			AccountAgeDays:    365,
			TransactionAmount: 75000,
			IsHolidayTxn:      1,
		}

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !almostEqual(out.Score, 0.10) {
			t.Errorf("expected score 0.10, got %f", out.Score)
		}
		if len(out.Flags) != 1 || out.Flags[0] != "High-value holiday transaction" {
			t.Errorf("unexpected flags: %v", out.Flags)
		}
	})

	t.Run("AccumulationAndOrder", func(t *testing.T) {
		// Night weekend transaction, very high amount, brand-new unverified
		// account: four rules fire, in table order.
		fv := &domain.FeatureVector{
			KYCVerified:       0,
			AccountAgeDays:    3,
			TransactionAmount: 150000,
			IsNightTxn:        1,
			IsWeekendTxn:      1,
		}

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !almostEqual(out.Score, 0.80) {
			t.Errorf("expected score 0.80, got %f", out.Score)
		}

		want := []string{
			"High amount transaction (>₹100K)",
			"Large night-time transaction",
			"New unverified account",
			"Weekend high-value transaction",
		}
		if len(out.Flags) != len(want) {
			t.Fatalf("expected %d flags, got %v", len(want), out.Flags)
		}
		for i, f := range want {
			if out.Flags[i] != f {
				t.Errorf("flag %d: expected %q, got %q", i, f, out.Flags[i])
			}
		}
	})

	t.Run("UncappedScore", func(t *testing.T) {
		// All five builtins at once on a holiday: the raw rule score may
		// exceed 1; saturation is fusion's job, not the engine's.
		fv := &domain.FeatureVector{
			KYCVerified:       0,
			AccountAgeDays:    3,
			TransactionAmount: 150000,
			IsNightTxn:        1,
			IsWeekendTxn:      1,
			IsHolidayTxn:      1,
		}

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !almostEqual(out.Score, 0.90) {
			t.Errorf("expected score 0.90, got %f", out.Score)
		}
	})
}

func TestVelocityRule(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	fv := &domain.FeatureVector{KYCVerified: 1, AccountAgeDays: 365, TransactionAmount: 1000}
	ctx := context.Background()

	t.Run("Fires", func(t *testing.T) {
		now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

		var gotSince time.Time
		engine := NewEngine(cfg, func(ctx context.Context, customerID string, since time.Time) ([]float64, error) {
			gotSince = since
			return []float64{0.75, 0.82, 0.91}, nil
		})
		engine.now = func() time.Time { return now }

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !almostEqual(out.Score, 0.30) {
			t.Errorf("expected score 0.30, got %f", out.Score)
		}
		if len(out.Flags) != 1 || out.Flags[0] != "Multiple high-risk transactions in last hour" {
			t.Errorf("unexpected flags: %v", out.Flags)
		}
		if !gotSince.Equal(now.Add(-time.Hour)) {
			t.Errorf("expected since %v, got %v", now.Add(-time.Hour), gotSince)
		}
	})

	t.Run("BelowFloorIgnored", func(t *testing.T) {
		// Scores at or below 0.7 do not count toward the threshold.
		engine := NewEngine(cfg, func(ctx context.Context, customerID string, since time.Time) ([]float64, error) {
			return []float64{0.70, 0.70, 0.95, 0.85}, nil
		})

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if out.Score != 0 {
			t.Errorf("two qualifying scores must not fire the rule, got score %f", out.Score)
		}
	})

	t.Run("NoHistorySource", func(t *testing.T) {
		engine := NewEngine(cfg, nil)

		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if out.Score != 0 {
			t.Errorf("expected score 0 with no history source, got %f", out.Score)
		}
	})

	t.Run("EmptyCustomerID", func(t *testing.T) {
		called := false
		engine := NewEngine(cfg, func(ctx context.Context, customerID string, since time.Time) ([]float64, error) {
			called = true
			return nil, nil
		})

		if _, err := engine.Evaluate(ctx, "", fv); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if called {
			t.Error("history must not be consulted for an empty customer ID")
		}
	})

	t.Run("HistoryError", func(t *testing.T) {
		boom := errors.New("database gone")
		engine := NewEngine(cfg, func(ctx context.Context, customerID string, since time.Time) ([]float64, error) {
			return nil, boom
		})

		_, err := engine.Evaluate(ctx, "CUST001", fv)
		if !errors.Is(err, boom) {
			t.Fatalf("expected history error to propagate, got %v", err)
		}
		if !strings.Contains(err.Error(), "CUST001") {
			t.Errorf("error should name the customer: %v", err)
		}
	})
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

// Each added qualifying condition may only add weight and flags, never take
// either away.
func TestEvaluateMonotonicity(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	engine := NewEngine(cfg, nil)
	ctx := context.Background()

	steps := []struct {
		name   string
		mutate func(fv *domain.FeatureVector)
	}{
		{"HighAmount", func(fv *domain.FeatureVector) { fv.TransactionAmount = 150000 }},
		{"Night", func(fv *domain.FeatureVector) { fv.IsNightTxn = 1 }},
		{"NewUnverified", func(fv *domain.FeatureVector) {
			fv.AccountAgeDays = 3
			fv.KYCVerified = 0
		}},
		{"Weekend", func(fv *domain.FeatureVector) { fv.IsWeekendTxn = 1 }},
		{"Holiday", func(fv *domain.FeatureVector) { fv.IsHolidayTxn = 1 }},
	}

	fv := &domain.FeatureVector{KYCVerified: 1, AccountAgeDays: 365, TransactionAmount: 5000}
	prev, err := engine.Evaluate(ctx, "CUST001", fv)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	for _, step := range steps {
		step.mutate(fv)
		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("%s: Evaluate failed: %v", step.name, err)
		}
		if out.Score < prev.Score {
			t.Errorf("%s: score decreased from %f to %f", step.name, prev.Score, out.Score)
		}
		for _, f := range prev.Flags {
			if !hasFlag(out.Flags, f) {
				t.Errorf("%s: flag %q was dropped", step.name, f)
			}
		}
		prev = out
	}

	if len(prev.Flags) != 5 {
		t.Errorf("expected all 5 builtin flags after the final step, got %v", prev.Flags)
	}
}

// Repeated evaluation of the same feature vector yields identical outcomes.
func TestEvaluateIdempotence(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	engine := NewEngine(cfg, func(ctx context.Context, customerID string, since time.Time) ([]float64, error) {
		return []float64{0.95, 0.85, 0.75}, nil
	})
	engine.now = func() time.Time { return time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	fv := &domain.FeatureVector{
		TransactionAmount: 150000,
		IsNightTxn:        1,
		AccountAgeDays:    3,
	}

	first, err := engine.Evaluate(ctx, "CUST001", fv)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		out, err := engine.Evaluate(ctx, "CUST001", fv)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !reflect.DeepEqual(out, first) {
			t.Fatalf("outcome changed on repeat: first %+v, got %+v", first, out)
		}
	}
}
