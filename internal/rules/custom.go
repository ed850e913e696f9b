package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/riskshield/riskshield/internal/domain"
)

// CustomEngine holds the compiled operator-defined CEL rules. Each rule is a
// boolean predicate over the feature vector; a true result adds the rule's
// weight and appends its label. Custom rules run after the builtin table and
// are applied in rule-ID order so repeated evaluations are deterministic.
type CustomEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledRule
}

type compiledRule struct {
	config  *domain.CustomRule
	program cel.Program
}

// NewCustomEngine creates an engine with the feature-vector CEL environment.
func NewCustomEngine() *CustomEngine {
	env, err := cel.NewEnv(
		cel.Variable("kyc_verified", cel.IntType),
		cel.Variable("account_age_days", cel.IntType),
		cel.Variable("transaction_amount", cel.DoubleType),
		cel.Variable("channel_encoded", cel.IntType),
		cel.Variable("hour_of_day", cel.IntType),
		cel.Variable("day_of_week", cel.IntType),
		cel.Variable("is_night_txn", cel.IntType),
		cel.Variable("is_high_amount_transaction", cel.IntType),
		cel.Variable("high_amount_night_txn", cel.IntType),
		cel.Variable("kyc_low_age_txn", cel.IntType),
		cel.Variable("is_weekend_txn", cel.IntType),
		cel.Variable("is_holiday_txn", cel.IntType),
	)
	if err != nil {
		// The environment is built from constants only; failure here is a
		// programming error.
		panic(fmt.Sprintf("rules: failed to create CEL environment: %v", err))
	}

	return &CustomEngine{
		env:      env,
		compiled: make(map[string]*compiledRule),
	}
}

// Validate compiles a rule configuration without installing it.
func (e *CustomEngine) Validate(cfg *domain.CustomRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	_, err := e.compile(cfg)
	return err
}

// Reload replaces the loaded rule set with the enabled rules from configs.
func (e *CustomEngine) Reload(configs []*domain.CustomRule) error {
	next := make(map[string]*compiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compile(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	e.mu.Lock()
	e.compiled = next
	e.mu.Unlock()
	return nil
}

// Loaded returns the installed rule configurations, sorted by ID.
func (e *CustomEngine) Loaded() []*domain.CustomRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.CustomRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		out = append(out, c.config)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of installed rules.
func (e *CustomEngine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// apply evaluates the installed rules against fv, accumulating into out. An
// evaluation error on a single rule is logged and skipped; custom rules never
// fail a scoring call.
func (e *CustomEngine) apply(fv *domain.FeatureVector, out *domain.RuleOutcome) {
	e.mu.RLock()
	ordered := make([]*compiledRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		ordered = append(ordered, c)
	}
	e.mu.RUnlock()

	if len(ordered) == 0 {
		return
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].config.ID < ordered[j].config.ID })

	activation := map[string]any{
		"kyc_verified":               int64(fv.KYCVerified),
		"account_age_days":           int64(fv.AccountAgeDays),
		"transaction_amount":         fv.TransactionAmount,
		"channel_encoded":            int64(fv.ChannelEncoded),
		"hour_of_day":                int64(fv.HourOfDay),
		"day_of_week":                int64(fv.DayOfWeek),
		"is_night_txn":               int64(fv.IsNightTxn),
		"is_high_amount_transaction": int64(fv.IsHighAmountTxn),
		"high_amount_night_txn":      int64(fv.HighAmountNightTxn),
		"kyc_low_age_txn":            int64(fv.KYCLowAgeTxn),
		"is_weekend_txn":             int64(fv.IsWeekendTxn),
		"is_holiday_txn":             int64(fv.IsHolidayTxn),
	}

	for _, c := range ordered {
		val, _, err := c.program.Eval(activation)
		if err != nil {
			slog.Warn("custom rule evaluation failed",
				"rule_id", c.config.ID,
				"error", err,
			)
			continue
		}
		if b, ok := val.(types.Bool); ok && bool(b) {
			out.Flags = append(out.Flags, c.config.Label)
			out.Score += c.config.Weight
		}
	}
}

func (e *CustomEngine) compile(cfg *domain.CustomRule) (*compiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("custom rule: id is required")
	}
	if cfg.Label == "" {
		return nil, fmt.Errorf("custom rule %s: label is required", cfg.ID)
	}
	if cfg.Weight < 0 {
		return nil, fmt.Errorf("custom rule %s: weight must be non-negative", cfg.ID)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile custom rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("custom rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for custom rule %s: %w", cfg.ID, err)
	}

	return &compiledRule{config: cfg, program: program}, nil
}
