// Package explain renders the human-readable narrative for one scoring
// decision from fixed templates. The generator is deterministic and total:
// any valid feature vector and fused score produces a narrative.
package explain

import (
	"fmt"
	"strings"

	"github.com/riskshield/riskshield/internal/domain"
)

// Model-contribution buckets for the narrative wording.
const (
	modelHighRisk     = 0.5
	modelModerateRisk = 0.3
)

// Amount tiers for the risk-factor section.
const (
	veryHighAmountTier = 100000
	highAmountTier     = 50000
)

// maxRiskFactors caps the risk-factor section length.
const maxRiskFactors = 5

// Generator builds decision narratives.
type Generator struct {
	cfg domain.ScoringConfig
}

// NewGenerator creates a narrative generator.
func NewGenerator(cfg domain.ScoringConfig) *Generator {
	return &Generator{cfg: cfg}
}

// Build assembles the five-section narrative: verdict, model contribution,
// triggered rules, risk factors, recommendation.
func (g *Generator) Build(fv *domain.FeatureVector, combined, ruleScore float64, flags []string) string {
	isFraud := combined >= g.cfg.FraudThreshold

	var parts []string

	// 1. Overall verdict
	if isFraud {
		parts = append(parts, fmt.Sprintf(
			"⚠️ This transaction has been flagged as FRAUDULENT with a combined risk score of %s.",
			percent(combined)))
	} else {
		parts = append(parts, fmt.Sprintf(
			"✓ This transaction appears LEGITIMATE with a combined risk score of %s.",
			percent(combined)))
	}

	// 2. Model contribution
	modelRisk := combined - ruleScore
	switch {
	case modelRisk > modelHighRisk:
		parts = append(parts, fmt.Sprintf("The ML model detected a high fraud probability (%s).", percent(modelRisk)))
	case modelRisk > modelModerateRisk:
		parts = append(parts, fmt.Sprintf("The ML model indicated moderate risk (%s).", percent(modelRisk)))
	default:
		parts = append(parts, fmt.Sprintf("The ML model indicated low risk (%s).", percent(modelRisk)))
	}

	// 3. Rule contribution
	if len(flags) > 0 {
		parts = append(parts, fmt.Sprintf("Additionally, %d risk rule(s) were triggered:", len(flags)))
		for _, flag := range flags {
			parts = append(parts, "  • "+flag)
		}
	} else {
		parts = append(parts, "No specific risk rules were triggered.")
	}

	// 4. Key risk factors
	if factors := riskFactors(fv); len(factors) > 0 {
		parts = append(parts, "\nKey risk factors identified:")
		for _, f := range factors {
			parts = append(parts, "  • "+f)
		}
	}

	// 5. Recommendation
	switch {
	case isFraud && combined > g.cfg.HighRiskThreshold:
		parts = append(parts, "\n🚨 RECOMMENDATION: Block this transaction and contact the customer immediately.")
	case isFraud:
		parts = append(parts, "\n⚠️ RECOMMENDATION: Review this transaction and consider additional verification.")
	default:
		parts = append(parts, "\n✓ RECOMMENDATION: Transaction can proceed with standard monitoring.")
	}

	return strings.Join(parts, "\n")
}

// riskFactors re-derives up to maxRiskFactors human-readable factors from the
// feature vector. Redundant with the rule flags on purpose: this section is
// phrased for a reader, not a rule audit.
func riskFactors(fv *domain.FeatureVector) []string {
	var factors []string

	switch {
	case fv.TransactionAmount > veryHighAmountTier:
		factors = append(factors, fmt.Sprintf("Very high transaction amount (₹%s)", amount(fv.TransactionAmount)))
	case fv.TransactionAmount > highAmountTier:
		factors = append(factors, fmt.Sprintf("High transaction amount (₹%s)", amount(fv.TransactionAmount)))
	}

	if fv.KYCVerified == 0 {
		factors = append(factors, "Account not KYC verified")
	}

	switch {
	case fv.AccountAgeDays < 10:
		factors = append(factors, fmt.Sprintf("Very new account (%d days old)", fv.AccountAgeDays))
	case fv.AccountAgeDays < 30:
		factors = append(factors, fmt.Sprintf("New account (%d days old)", fv.AccountAgeDays))
	}

	if fv.IsNightTxn == 1 {
		factors = append(factors, "Transaction during night hours (10 PM - 6 AM)")
	}
	if fv.IsWeekendTxn == 1 {
		factors = append(factors, "Weekend transaction")
	}
	if fv.IsHolidayTxn == 1 {
		factors = append(factors, "Transaction on a public holiday")
	}

	if len(factors) > maxRiskFactors {
		factors = factors[:maxRiskFactors]
	}
	return factors
}

// percent formats a ratio as a percentage with two decimals.
func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// amount formats a monetary value with thousands separators.
func amount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	neg := false
	if strings.HasPrefix(intPart, "-") {
		neg = true
		intPart = intPart[1:]
	}

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
