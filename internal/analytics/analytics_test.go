package analytics

import (
	"testing"
	"time"

	"github.com/riskshield/riskshield/internal/domain"
)

func stat(amount float64, channel, isFraud int, ts string) domain.DecisionStat {
	parsed, err := time.Parse("2006-01-02", ts)
	if err != nil {
		panic(err)
	}
	return domain.DecisionStat{
		Amount:        amount,
		Channel:       channel,
		CombinedScore: 0.5,
		IsFraud:       isFraud,
		Timestamp:     parsed,
	}
}

func TestBuildReport(t *testing.T) {
	t.Run("EmptyInput", func(t *testing.T) {
		report := BuildReport(nil)

		if report.KPIs.TotalTransactions != 0 || report.KPIs.FraudDetected != 0 {
			t.Errorf("expected zeroed KPIs, got %+v", report.KPIs)
		}
		if report.Graphs.FraudRateTrend == nil {
			t.Error("trend must be an empty slice, not nil")
		}
		if report.Graphs.FraudByChannel == nil {
			t.Error("channel map must be empty, not nil")
		}
		if report.Graphs.AmountVsRisk == nil {
			t.Error("scatter must be an empty slice, not nil")
		}
	})

	t.Run("KPIs", func(t *testing.T) {
		report := BuildReport([]domain.DecisionStat{
			stat(10000, domain.ChannelOnline, 0, "2025-01-10"),
			stat(25000.555, domain.ChannelATM, 1, "2025-01-15"),
			stat(50000, domain.ChannelMobile, 1, "2025-02-01"),
		})

		if report.KPIs.TotalTransactions != 3 {
			t.Errorf("expected 3 transactions, got %d", report.KPIs.TotalTransactions)
		}
		if report.KPIs.FraudDetected != 2 {
			t.Errorf("expected 2 fraud, got %d", report.KPIs.FraudDetected)
		}
		// Only fraud amounts count, rounded to two decimals.
		if report.KPIs.AmountProtected != 75000.56 {
			t.Errorf("expected amount protected 75000.56, got %v", report.KPIs.AmountProtected)
		}
	})

	t.Run("FraudVsLegitimate", func(t *testing.T) {
		report := BuildReport([]domain.DecisionStat{
			stat(100, 0, 0, "2025-01-01"),
			stat(100, 0, 0, "2025-01-02"),
			stat(100, 0, 1, "2025-01-03"),
		})

		split := report.Graphs.FraudVsLegitimate
		if split.Fraud != 1 || split.Legitimate != 2 {
			t.Errorf("expected 1/2 split, got %+v", split)
		}
	})

	t.Run("MonthlyTrendSorted", func(t *testing.T) {
		report := BuildReport([]domain.DecisionStat{
			stat(100, 0, 1, "2025-03-05"),
			stat(100, 0, 0, "2025-01-10"),
			stat(100, 0, 1, "2025-01-20"),
			stat(100, 0, 0, "2025-03-06"),
			stat(100, 0, 0, "2025-03-07"),
		})

		trend := report.Graphs.FraudRateTrend
		if len(trend) != 2 {
			t.Fatalf("expected 2 months, got %d", len(trend))
		}
		if trend[0].Month != "2025-01" || trend[1].Month != "2025-03" {
			t.Errorf("expected sorted months, got %s, %s", trend[0].Month, trend[1].Month)
		}

		jan := trend[0]
		if jan.TotalTransactions != 2 || jan.FraudCount != 1 || jan.FraudRate != 50 {
			t.Errorf("unexpected January point: %+v", jan)
		}
		mar := trend[1]
		if mar.TotalTransactions != 3 || mar.FraudCount != 1 || mar.FraudRate != 33.33 {
			t.Errorf("unexpected March point: %+v", mar)
		}
	})

	t.Run("FraudByChannel", func(t *testing.T) {
		report := BuildReport([]domain.DecisionStat{
			stat(100, domain.ChannelOnline, 1, "2025-01-01"),
			stat(100, domain.ChannelOnline, 1, "2025-01-02"),
			stat(100, domain.ChannelATM, 1, "2025-01-03"),
			stat(100, domain.ChannelPOS, 0, "2025-01-04"), // legitimate, not counted
		})

		byChannel := report.Graphs.FraudByChannel
		if byChannel["Online"] != 2 {
			t.Errorf("expected 2 Online fraud, got %d", byChannel["Online"])
		}
		if byChannel["ATM"] != 1 {
			t.Errorf("expected 1 ATM fraud, got %d", byChannel["ATM"])
		}
		if _, ok := byChannel["POS"]; ok {
			t.Error("legitimate decisions must not appear in the channel breakdown")
		}
	})

	t.Run("Scatter", func(t *testing.T) {
		report := BuildReport([]domain.DecisionStat{
			stat(12345, domain.ChannelOnline, 1, "2025-01-01"),
		})

		scatter := report.Graphs.AmountVsRisk
		if len(scatter) != 1 {
			t.Fatalf("expected 1 scatter point, got %d", len(scatter))
		}
		p := scatter[0]
		if p.TransactionAmount != 12345 || p.RiskScore != 0.5 || p.IsFraud != 1 {
			t.Errorf("unexpected scatter point: %+v", p)
		}
	})
}
