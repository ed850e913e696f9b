// Package features derives the behavioral feature vector from a raw
// transaction input.
package features

import (
	"errors"
	"fmt"
	"time"

	"github.com/riskshield/riskshield/internal/domain"
)

// ErrBadTimestamp marks a transaction timestamp that does not match the
// required "YYYY-MM-DD HH:MM:SS" format.
var ErrBadTimestamp = errors.New("malformed transaction timestamp")

// Night window boundaries (hour of day).
const (
	nightStartHour = 22
	nightEndHour   = 6
)

// highAmountFlagThreshold is the amount above which the high-amount feature
// flag is set. Distinct from the rule-engine thresholds.
const highAmountFlagThreshold = 50000

// Derive computes the feature vector for one transaction. It is a pure
// function of the input plus the holiday calendar; bounds validation is the
// input boundary's responsibility, not Derive's.
func Derive(in *domain.TransactionInput, cal domain.HolidayCalendar) (*domain.FeatureVector, error) {
	ts, err := time.Parse(domain.TimestampLayout, in.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %q (want %s)", ErrBadTimestamp, in.Timestamp, domain.TimestampLayout)
	}

	hour := ts.Hour()
	// time.Weekday counts from Sunday; the feature counts from Monday.
	day := (int(ts.Weekday()) + 6) % 7

	fv := &domain.FeatureVector{
		KYCVerified:       in.KYCVerified,
		AccountAgeDays:    in.AccountAgeDays,
		TransactionAmount: in.Amount,
		ChannelEncoded:    in.Channel,
		HourOfDay:         hour,
		DayOfWeek:         day,
	}

	if hour >= nightStartHour || hour < nightEndHour {
		fv.IsNightTxn = 1
	}
	if day >= 5 {
		fv.IsWeekendTxn = 1
	}
	if in.Amount > highAmountFlagThreshold {
		fv.IsHighAmountTxn = 1
	}
	if fv.IsHighAmountTxn == 1 && fv.IsNightTxn == 1 {
		fv.HighAmountNightTxn = 1
	}
	if in.KYCVerified == 0 && in.AccountAgeDays < 30 {
		fv.KYCLowAgeTxn = 1
	}
	if cal != nil && cal.IsHoliday(ts) {
		fv.IsHolidayTxn = 1
	}

	return fv, nil
}
