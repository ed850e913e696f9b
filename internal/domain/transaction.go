// Package domain defines the core types and interfaces for RiskShield.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput marks a request that failed boundary validation.
var ErrInvalidInput = errors.New("invalid input")

// TimestampLayout is the required wire format for transaction timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Channel codes for transaction origination.
const (
	ChannelOnline = 0
	ChannelATM    = 1
	ChannelPOS    = 2
	ChannelMobile = 3
)

// ChannelName maps a channel code to its display name.
func ChannelName(code int) string {
	switch code {
	case ChannelOnline:
		return "Online"
	case ChannelATM:
		return "ATM"
	case ChannelPOS:
		return "POS"
	case ChannelMobile:
		return "Mobile"
	default:
		return "Unknown"
	}
}

// TransactionInput is a single transaction submitted for scoring.
// It is created per API call and never mutated; only its derived
// DecisionRecord form is persisted.
type TransactionInput struct {
	Email          string  `json:"email"`
	CustomerID     string  `json:"customer_id"`
	TransactionID  string  `json:"transaction_id"`
	Timestamp      string  `json:"transaction_datetime"`
	Amount         float64 `json:"transaction_amount"`
	KYCVerified    int     `json:"kyc_verified"`
	AccountAgeDays int     `json:"account_age_days"`
	Channel        int     `json:"channel_encoded"`
}

// Validate enforces the input-boundary invariants. Timestamp format is the
// feature deriver's responsibility, not Validate's.
func (in *TransactionInput) Validate() error {
	if in.CustomerID == "" {
		return fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	}
	if in.TransactionID == "" {
		return fmt.Errorf("%w: transaction_id is required", ErrInvalidInput)
	}
	if in.Timestamp == "" {
		return fmt.Errorf("%w: transaction_datetime is required", ErrInvalidInput)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: transaction_amount must be positive", ErrInvalidInput)
	}
	if in.KYCVerified != 0 && in.KYCVerified != 1 {
		return fmt.Errorf("%w: kyc_verified must be 0 or 1", ErrInvalidInput)
	}
	if in.AccountAgeDays < 0 {
		return fmt.Errorf("%w: account_age_days must be non-negative", ErrInvalidInput)
	}
	if in.Channel < ChannelOnline || in.Channel > ChannelMobile {
		return fmt.Errorf("%w: channel_encoded must be in [0,3]", ErrInvalidInput)
	}
	return nil
}

// User is a registered API user.
type User struct {
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
