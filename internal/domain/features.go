package domain

// FeatureVector is the fixed set of behavioral features derived from one
// TransactionInput plus a holiday calendar lookup. It is immutable and lives
// only for the duration of the scoring call (and as a persisted snapshot on
// the decision record).
type FeatureVector struct {
	KYCVerified        int     `json:"kyc_verified"`
	AccountAgeDays     int     `json:"account_age_days"`
	TransactionAmount  float64 `json:"transaction_amount"`
	ChannelEncoded     int     `json:"channel_encoded"`
	HourOfDay          int     `json:"hour_of_day"`
	DayOfWeek          int     `json:"day_of_week"`
	IsNightTxn         int     `json:"is_night_txn"`
	IsHighAmountTxn    int     `json:"is_high_amount_transaction"`
	HighAmountNightTxn int     `json:"high_amount_night_txn"`
	KYCLowAgeTxn       int     `json:"kyc_low_age_txn"`
	IsWeekendTxn       int     `json:"is_weekend_txn"`
	IsHolidayTxn       int     `json:"is_holiday_txn"`
}

// FeatureNames returns the canonical feature order used by the classifier.
// Model artifacts declare their own feature list and are mapped against this
// order at load time.
func FeatureNames() []string {
	return []string{
		"kyc_verified",
		"account_age_days",
		"transaction_amount",
		"channel_encoded",
		"hour_of_day",
		"day_of_week",
		"is_night_txn",
		"is_high_amount_transaction",
		"high_amount_night_txn",
		"kyc_low_age_txn",
		"is_weekend_txn",
		"is_holiday_txn",
	}
}

// Values returns the feature values in canonical order.
func (fv *FeatureVector) Values() []float64 {
	return []float64{
		float64(fv.KYCVerified),
		float64(fv.AccountAgeDays),
		fv.TransactionAmount,
		float64(fv.ChannelEncoded),
		float64(fv.HourOfDay),
		float64(fv.DayOfWeek),
		float64(fv.IsNightTxn),
		float64(fv.IsHighAmountTxn),
		float64(fv.HighAmountNightTxn),
		float64(fv.KYCLowAgeTxn),
		float64(fv.IsWeekendTxn),
		float64(fv.IsHolidayTxn),
	}
}
