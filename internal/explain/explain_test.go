package explain

import (
	"strings"
	"testing"

	"github.com/riskshield/riskshield/internal/domain"
)

func TestBuild(t *testing.T) {
	gen := NewGenerator(domain.DefaultScoringConfig())

	cleanFV := &domain.FeatureVector{
		KYCVerified:       1,
		AccountAgeDays:    365,
		TransactionAmount: 5000,
	}

	t.Run("LegitimateVerdict", func(t *testing.T) {
		out := gen.Build(cleanFV, 0.15, 0, nil)

		if !strings.Contains(out, "✓ This transaction appears LEGITIMATE with a combined risk score of 15.00%.") {
			t.Errorf("missing verdict line:\n%s", out)
		}
		if !strings.Contains(out, "The ML model indicated low risk (15.00%).") {
			t.Errorf("missing model contribution line:\n%s", out)
		}
		if !strings.Contains(out, "No specific risk rules were triggered.") {
			t.Errorf("missing no-rules line:\n%s", out)
		}
		if !strings.Contains(out, "✓ RECOMMENDATION: Transaction can proceed with standard monitoring.") {
			t.Errorf("missing recommendation:\n%s", out)
		}
	})

	t.Run("FraudulentVerdict", func(t *testing.T) {
		out := gen.Build(cleanFV, 0.72, 0.2, []string{"High amount transaction (>₹100K)"})

		if !strings.Contains(out, "⚠️ This transaction has been flagged as FRAUDULENT with a combined risk score of 72.00%.") {
			t.Errorf("missing verdict line:\n%s", out)
		}
		// model contribution = 0.72 - 0.2 = 0.52 > 0.5
		if !strings.Contains(out, "The ML model detected a high fraud probability (52.00%).") {
			t.Errorf("missing high-risk model line:\n%s", out)
		}
		if !strings.Contains(out, "Additionally, 1 risk rule(s) were triggered:") {
			t.Errorf("missing rule count line:\n%s", out)
		}
		if !strings.Contains(out, "  • High amount transaction (>₹100K)") {
			t.Errorf("missing rule bullet:\n%s", out)
		}
		if !strings.Contains(out, "⚠️ RECOMMENDATION: Review this transaction and consider additional verification.") {
			t.Errorf("missing review recommendation:\n%s", out)
		}
	})

	t.Run("BlockRecommendation", func(t *testing.T) {
		out := gen.Build(cleanFV, 0.95, 0.4, nil)

		if !strings.Contains(out, "🚨 RECOMMENDATION: Block this transaction and contact the customer immediately.") {
			t.Errorf("missing block recommendation:\n%s", out)
		}
	})

	t.Run("ModerateModelRisk", func(t *testing.T) {
		out := gen.Build(cleanFV, 0.45, 0.1, nil)

		// 0.45 - 0.1 = 0.35, in (0.3, 0.5]
		if !strings.Contains(out, "The ML model indicated moderate risk (35.00%).") {
			t.Errorf("missing moderate-risk line:\n%s", out)
		}
	})

	t.Run("RiskFactors", func(t *testing.T) {
		fv := &domain.FeatureVector{
			KYCVerified:       0,
			AccountAgeDays:    5,
			TransactionAmount: 150000,
			IsNightTxn:        1,
			IsWeekendTxn:      1,
			IsHolidayTxn:      1,
		}
		out := gen.Build(fv, 0.9, 0.8, nil)

		if !strings.Contains(out, "Key risk factors identified:") {
			t.Errorf("missing risk factor section:\n%s", out)
		}
		if !strings.Contains(out, "Very high transaction amount (₹150,000.00)") {
			t.Errorf("missing amount factor:\n%s", out)
		}
		if !strings.Contains(out, "Account not KYC verified") {
			t.Errorf("missing KYC factor:\n%s", out)
		}
		if !strings.Contains(out, "Very new account (5 days old)") {
			t.Errorf("missing account age factor:\n%s", out)
		}
		if !strings.Contains(out, "Transaction during night hours (10 PM - 6 AM)") {
			t.Errorf("missing night factor:\n%s", out)
		}

		// Six factors apply; the section is capped at five, so the last two
		// calendar factors are truncated after the weekend entry.
		if strings.Contains(out, "Transaction on a public holiday") {
			t.Errorf("risk factor list must be capped at five:\n%s", out)
		}
	})

	t.Run("NoRiskFactorSectionWhenClean", func(t *testing.T) {
		out := gen.Build(cleanFV, 0.1, 0, nil)
		if strings.Contains(out, "Key risk factors identified:") {
			t.Errorf("clean vector must not produce a risk factor section:\n%s", out)
		}
	})

	t.Run("HighVsVeryHighAmountTier", func(t *testing.T) {
		fv := &domain.FeatureVector{KYCVerified: 1, AccountAgeDays: 365, TransactionAmount: 75000}
		out := gen.Build(fv, 0.3, 0, nil)

		if !strings.Contains(out, "High transaction amount (₹75,000.00)") {
			t.Errorf("missing high-tier amount factor:\n%s", out)
		}
	})
}

func TestAmountFormatting(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1234.5, "1,234.50"},
		{100000, "100,000.00"},
		{999, "999.00"},
		{1234567.89, "1,234,567.89"},
	}
	for _, tc := range cases {
		if got := amount(tc.in); got != tc.want {
			t.Errorf("amount(%v): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
