package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validation errors shared across domain packages.
var (
	ErrInvalidUserID       = errors.New("invalid user id")
	ErrInvalidAmountCents  = errors.New("invalid amount cents")
	ErrInvalidCurrency     = errors.New("invalid currency code")
	ErrInvalidMetadataJSON = errors.New("invalid metadata json")
)

// AmountCents is a strictly positive integer currency amount in cents.
type AmountCents int64

// NewAmountCents validates an amount and ensures it is strictly positive.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// Int64 returns the raw cent value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// UserID identifies the owning user of an account, payment, or entry.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// Currency is an ISO-4217 style three-letter code.
type Currency struct {
	value string
}

// NewCurrency validates and normalizes a currency code.
func NewCurrency(raw string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if len(normalized) != 3 {
		return Currency{}, fmt.Errorf("%w: must be three letters", ErrInvalidCurrency)
	}
	for _, r := range normalized {
		if r < 'A' || r > 'Z' {
			return Currency{}, fmt.Errorf("%w: must be three letters", ErrInvalidCurrency)
		}
	}
	return Currency{value: normalized}, nil
}

// String returns the normalized code.
func (currency Currency) String() string {
	return currency.value
}

// MetadataJSON is a free-form JSON blob attached to ledger records.
type MetadataJSON struct {
	value string
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}
