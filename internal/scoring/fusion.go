package scoring

import (
	"math"

	"github.com/riskshield/riskshield/internal/domain"
)

// Fuse combines the classifier probability with the additive rule score:
// combined = round4(min(1, model + rule)). The rule score arrives uncapped;
// the min() saturation after summing is the only calibration applied.
func Fuse(modelProb, ruleScore float64, cfg domain.ScoringConfig) domain.FusedDecision {
	combined := round4(math.Min(1.0, modelProb+ruleScore))

	isFraud := 0
	if combined >= cfg.FraudThreshold {
		isFraud = 1
	}

	return domain.FusedDecision{
		ModelScore: round4(modelProb),
		RuleScore:  ruleScore,
		Combined:   combined,
		IsFraud:    isFraud,
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
