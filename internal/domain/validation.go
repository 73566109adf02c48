package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var maxAmount = decimal.New(1, 19-AmountScale)

// ValidateDonationRequest checks a request before any network call is made.
// Every failure wraps ErrInvalidRequest.
func ValidateDonationRequest(req DonationRequest) error {
	if req.DonorID <= 0 {
		return fmt.Errorf("%w: donor id is required", ErrInvalidRequest)
	}
	if req.CampaignID <= 0 {
		return fmt.Errorf("%w: campaign id is required", ErrInvalidRequest)
	}
	if err := ValidateAmount(req.Amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := ValidateCurrencyCode(req.Currency); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(req.IdempotencyKey) > 255 {
		return fmt.Errorf("%w: idempotency key must be at most 255 characters", ErrInvalidRequest)
	}
	return nil
}

// ValidateAmount validates that an amount is positive and representable
// with AmountScale fractional digits without rounding.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}

	if !amount.Equal(amount.Truncate(AmountScale)) {
		return fmt.Errorf("amount must have at most %d decimal places", AmountScale)
	}

	// NUMERIC(19, 4) leaves 15 integer digits
	if amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("amount is too large")
	}

	return nil
}

// ValidateCurrencyCode validates that a currency code follows ISO 4217 format.
func ValidateCurrencyCode(code string) error {
	if code == "" {
		return fmt.Errorf("currency code cannot be empty")
	}

	if len(code) != 3 {
		return fmt.Errorf("currency code must be 3 characters (ISO 4217)")
	}

	// Check if all characters are uppercase letters
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return fmt.Errorf("currency code must contain only uppercase letters")
		}
	}

	return nil
}
