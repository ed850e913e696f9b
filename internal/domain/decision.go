package domain

import (
	"time"
)

// RuleOutcome is the rule engine's output for one scoring call: the triggered
// rule labels in evaluation order and the additive rule score. The score is
// deliberately uncapped here; saturation happens at fusion.
type RuleOutcome struct {
	Flags []string `json:"flags"`
	Score float64  `json:"score"`
}

// FusedDecision combines the classifier probability with the rule score.
// Combined = round4(min(1, model + rule)); fraud iff Combined >= threshold.
type FusedDecision struct {
	ModelScore float64 `json:"model_risk_score"`
	RuleScore  float64 `json:"rule_score"`
	Combined   float64 `json:"combined_score"`
	IsFraud    int     `json:"is_fraud"`
}

// DecisionRecord is the persisted, append-only outcome of one scoring
// pipeline execution. Written once, never updated or deleted.
type DecisionRecord struct {
	ID            string        `json:"id"`
	CustomerID    string        `json:"customer_id"`
	TransactionID string        `json:"transaction_id"`
	Email         string        `json:"email"`
	Amount        float64       `json:"amount"`
	Channel       int           `json:"channel"`
	Features      FeatureVector `json:"derived_features"`
	Flags         []string      `json:"rule_flags"`
	ModelScore    float64       `json:"model_risk_score"`
	RuleScore     float64       `json:"rule_score"`
	CombinedScore float64       `json:"risk_score"`
	IsFraud       int           `json:"is_fraud"`
	Explanation   string        `json:"explanation"`
	Timestamp     time.Time     `json:"timestamp"`
}

// BatchItemResult is the per-item outcome of a bulk scoring call. Failed
// items carry a zeroed score and an error message instead of aborting the
// batch.
type BatchItemResult struct {
	TransactionID string   `json:"transaction_id"`
	CustomerID    string   `json:"customer_id"`
	RiskScore     float64  `json:"risk_score"`
	IsFraud       int      `json:"is_fraud"`
	ModelScore    float64  `json:"model_risk_score"`
	RuleScore     float64  `json:"rule_score"`
	Flags         []string `json:"rules_triggered"`
	Status        string   `json:"status"`
	ErrorMessage  string   `json:"error_message,omitempty"`
}

// Batch item statuses.
const (
	BatchStatusSuccess = "success"
	BatchStatusError   = "error"
)

// BatchResult is the full outcome of a bulk scoring call.
type BatchResult struct {
	Processed     int               `json:"total_processed"`
	Succeeded     int               `json:"successful"`
	Failed        int               `json:"failed"`
	FraudDetected int               `json:"fraud_detected"`
	FraudRate     float64           `json:"fraud_rate"`
	ElapsedMs     int64             `json:"processing_time_ms"`
	AvgItemMs     float64           `json:"avg_time_per_transaction_ms"`
	Results       []BatchItemResult `json:"results"`
}

// DecisionStat is the slim per-decision row used for analytics aggregation.
type DecisionStat struct {
	Amount        float64   `json:"transaction_amount"`
	Channel       int       `json:"channel"`
	CombinedScore float64   `json:"risk_score"`
	IsFraud       int       `json:"is_fraud"`
	Timestamp     time.Time `json:"timestamp"`
}
