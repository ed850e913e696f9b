// Package analytics aggregates persisted scoring decisions into the
// dashboard report.
package analytics

import (
	"math"
	"sort"

	"github.com/riskshield/riskshield/internal/domain"
)

// KPIs are the headline counters. AmountProtected sums the amounts of
// fraud-flagged transactions.
type KPIs struct {
	TotalTransactions int     `json:"total_transactions"`
	FraudDetected     int     `json:"fraud_detected"`
	AmountProtected   float64 `json:"amount_protected"`
}

// FraudVsLegitimate is the verdict split.
type FraudVsLegitimate struct {
	Fraud      int `json:"fraud"`
	Legitimate int `json:"legitimate"`
}

// TrendPoint is one month of the fraud-rate trend, keyed "YYYY-MM".
type TrendPoint struct {
	Month             string  `json:"month"`
	FraudRate         float64 `json:"fraud_rate"`
	TotalTransactions int     `json:"total_transactions"`
	FraudCount        int     `json:"fraud_count"`
}

// ScatterPoint is one decision in the amount-vs-risk scatter.
type ScatterPoint struct {
	TransactionAmount float64 `json:"transaction_amount"`
	RiskScore         float64 `json:"risk_score"`
	IsFraud           int     `json:"is_fraud"`
}

// Graphs holds the chart payloads.
type Graphs struct {
	FraudVsLegitimate FraudVsLegitimate `json:"fraud_vs_legitimate"`
	FraudRateTrend    []TrendPoint      `json:"fraud_rate_trend"`
	FraudByChannel    map[string]int    `json:"fraud_by_channel"`
	AmountVsRisk      []ScatterPoint    `json:"amount_vs_risk_scatter"`
}

// Report is the full analytics payload.
type Report struct {
	KPIs   KPIs   `json:"kpis"`
	Graphs Graphs `json:"graphs"`
}

// BuildReport aggregates decision rows into a Report. An empty input yields
// a zeroed report with empty (not nil) collections.
func BuildReport(stats []domain.DecisionStat) *Report {
	report := &Report{
		Graphs: Graphs{
			FraudRateTrend: []TrendPoint{},
			FraudByChannel: map[string]int{},
			AmountVsRisk:   []ScatterPoint{},
		},
	}

	monthly := make(map[string]*TrendPoint)

	for _, s := range stats {
		report.KPIs.TotalTransactions++
		if s.IsFraud == 1 {
			report.KPIs.FraudDetected++
			report.KPIs.AmountProtected += s.Amount
			report.Graphs.FraudByChannel[domain.ChannelName(s.Channel)]++
		}

		month := s.Timestamp.Format("2006-01")
		point, ok := monthly[month]
		if !ok {
			point = &TrendPoint{Month: month}
			monthly[month] = point
		}
		point.TotalTransactions++
		if s.IsFraud == 1 {
			point.FraudCount++
		}

		report.Graphs.AmountVsRisk = append(report.Graphs.AmountVsRisk, ScatterPoint{
			TransactionAmount: s.Amount,
			RiskScore:         s.CombinedScore,
			IsFraud:           s.IsFraud,
		})
	}

	report.KPIs.AmountProtected = round2(report.KPIs.AmountProtected)
	report.Graphs.FraudVsLegitimate = FraudVsLegitimate{
		Fraud:      report.KPIs.FraudDetected,
		Legitimate: report.KPIs.TotalTransactions - report.KPIs.FraudDetected,
	}

	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)

	for _, m := range months {
		point := monthly[m]
		if point.TotalTransactions > 0 {
			point.FraudRate = round2(float64(point.FraudCount) / float64(point.TotalTransactions) * 100)
		}
		report.Graphs.FraudRateTrend = append(report.Graphs.FraudRateTrend, *point)
	}

	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
