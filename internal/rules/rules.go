// Package rules implements the deterministic rule engine of the scoring
// pipeline: a fixed, ordered table of builtin threshold rules followed by
// operator-defined CEL rules.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/riskshield/riskshield/internal/domain"
)

// HistoryFunc returns the combined scores of a customer's prior decisions
// since the given time. It backs the velocity rule.
type HistoryFunc func(ctx context.Context, customerID string, since time.Time) ([]float64, error)

// Rule is one row of the builtin rule table: a predicate over the feature
// vector, the weight it adds when it fires, and the flag it appends.
type Rule struct {
	Label     string
	Weight    float64
	Predicate func(fv *domain.FeatureVector) bool
}

// Engine evaluates the rule table for one feature vector. Every rule is
// evaluated independently in fixed order; weights accumulate additively with
// no cap (saturation is fusion's job).
type Engine struct {
	cfg      domain.ScoringConfig
	builtins []Rule
	history  HistoryFunc
	custom   *CustomEngine

	now func() time.Time
}

// NewEngine creates a rule engine. history may be nil, in which case the
// velocity rule never fires.
func NewEngine(cfg domain.ScoringConfig, history HistoryFunc) *Engine {
	return &Engine{
		cfg:      cfg,
		builtins: builtinRules(cfg),
		history:  history,
		custom:   NewCustomEngine(),
		now:      time.Now,
	}
}

// builtinRules builds the fixed rule table from the scoring constants. Order
// is part of the contract: flags appear in the outcome in this order.
func builtinRules(cfg domain.ScoringConfig) []Rule {
	return []Rule{
		{
			Label:  "High amount transaction (>₹100K)",
			Weight: 0.20,
			Predicate: func(fv *domain.FeatureVector) bool {
				return fv.TransactionAmount > cfg.HighAmountThreshold
			},
		},
		{
			Label:  "Large night-time transaction",
			Weight: 0.20,
			Predicate: func(fv *domain.FeatureVector) bool {
				return fv.IsNightTxn == 1 && fv.TransactionAmount > cfg.NightAmountThreshold
			},
		},
		{
			Label:  "New unverified account",
			Weight: 0.25,
			Predicate: func(fv *domain.FeatureVector) bool {
				return fv.AccountAgeDays < cfg.NewAccountDays && fv.KYCVerified == 0
			},
		},
		{
			Label:  "Weekend high-value transaction",
			Weight: 0.15,
			Predicate: func(fv *domain.FeatureVector) bool {
				return fv.IsWeekendTxn == 1 && fv.TransactionAmount > cfg.WeekendAmountThreshold
			},
		},
		{
			Label:  "High-value holiday transaction",
			Weight: 0.10,
			Predicate: func(fv *domain.FeatureVector) bool {
				return fv.IsHolidayTxn == 1 && fv.TransactionAmount > cfg.HolidayAmountThreshold
			},
		},
	}
}

// velocityLabel is the flag for the repeated high-risk activity rule.
const velocityLabel = "Multiple high-risk transactions in last hour"

// velocityWeight is added when the velocity rule fires.
const velocityWeight = 0.30

// Evaluate runs the builtin table, the velocity rule, and then any loaded
// custom rules against one feature vector. The only error source is the
// history accessor.
func (e *Engine) Evaluate(ctx context.Context, customerID string, fv *domain.FeatureVector) (*domain.RuleOutcome, error) {
	out := &domain.RuleOutcome{Flags: []string{}}

	for _, r := range e.builtins {
		if r.Predicate(fv) {
			out.Flags = append(out.Flags, r.Label)
			out.Score += r.Weight
		}
	}

	fired, err := e.velocityFired(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("velocity lookup for customer %s: %w", customerID, err)
	}
	if fired {
		out.Flags = append(out.Flags, velocityLabel)
		out.Score += velocityWeight
	}

	e.custom.apply(fv, out)

	return out, nil
}

// velocityFired checks the trailing-window history for repeated high-risk
// decisions by the same customer.
func (e *Engine) velocityFired(ctx context.Context, customerID string) (bool, error) {
	if e.history == nil || customerID == "" {
		return false, nil
	}

	since := e.now().Add(-e.cfg.VelocityWindow)
	scores, err := e.history(ctx, customerID, since)
	if err != nil {
		return false, err
	}

	highRisk := 0
	for _, s := range scores {
		if s > e.cfg.VelocityScoreFloor {
			highRisk++
		}
	}
	return highRisk >= e.cfg.VelocityCount, nil
}

// LoadCustomRules compiles and installs operator-defined rules, replacing
// any previously loaded set.
func (e *Engine) LoadCustomRules(configs []*domain.CustomRule) error {
	return e.custom.Reload(configs)
}

// ValidateCustomRule compiles a rule without installing it.
func (e *Engine) ValidateCustomRule(cfg *domain.CustomRule) error {
	return e.custom.Validate(cfg)
}

// CustomRules returns the currently loaded custom rule configurations.
func (e *Engine) CustomRules() []*domain.CustomRule {
	return e.custom.Loaded()
}

// CustomRulesCount returns the number of loaded custom rules.
func (e *Engine) CustomRulesCount() int {
	return e.custom.Count()
}
