package card

import (
	"fmt"
	"strings"
	"time"
)

// Maximum credit limit is 1,000,000.00 in cents.
const maxCreditLimitCents int64 = 100_000_000

// CardID identifies a card.
type CardID struct {
	value string
}

// NewCardID validates and normalizes a card id.
func NewCardID(raw string) (CardID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CardID{}, fmt.Errorf("%w: empty value", ErrInvalidCardID)
	}
	return CardID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CardID) String() string {
	return id.value
}

// Equal compares two card ids by identity value.
func (id CardID) Equal(other CardID) bool {
	return id.value == other.value
}

// Number is a validated card number. It is stored in full but only ever
// displayed masked.
type Number struct {
	value string
}

// NewNumber strips separators and validates length, digits, and the Luhn
// checksum.
func NewNumber(raw string) (Number, error) {
	if strings.TrimSpace(raw) == "" {
		return Number{}, ErrCardNumberRequired
	}
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(raw)
	if len(cleaned) < 13 || len(cleaned) > 19 {
		return Number{}, ErrCardNumberLength
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return Number{}, ErrCardNumberFormat
		}
	}
	if !validLuhn(cleaned) {
		return Number{}, ErrCardNumberChecksum
	}
	return Number{value: cleaned}, nil
}

// String returns the full normalized number.
func (number Number) String() string {
	return number.value
}

// LastFour returns the last four digits.
func (number Number) LastFour() string {
	return number.value[len(number.value)-4:]
}

// Masked returns the display form, e.g. "**** **** **** 1234".
func (number Number) Masked() string {
	return "**** **** **** " + number.LastFour()
}

func validLuhn(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}

// Expiration is a validated month/year expiration date.
type Expiration struct {
	month int
	year  int
}

// NewExpiration validates the month, normalizes two-digit years to 2000+,
// and rejects dates whose end of month is already past now.
func NewExpiration(month int, year int, now time.Time) (Expiration, error) {
	if month < 1 || month > 12 {
		return Expiration{}, ErrInvalidExpirationMonth
	}
	if year < 100 {
		year += 2000
	}
	expiration := Expiration{month: month, year: year}
	if expiration.IsExpired(now) {
		return Expiration{}, ErrCardExpired
	}
	return expiration, nil
}

// StoredExpiration rebuilds an expiration from persisted values. The
// not-in-the-past check is skipped so cards that expired after issuance
// still rehydrate.
func StoredExpiration(month int, year int) (Expiration, error) {
	if month < 1 || month > 12 {
		return Expiration{}, ErrInvalidExpirationMonth
	}
	if year < 100 {
		year += 2000
	}
	return Expiration{month: month, year: year}, nil
}

// Month returns the expiration month.
func (expiration Expiration) Month() int {
	return expiration.month
}

// Year returns the four-digit expiration year.
func (expiration Expiration) Year() int {
	return expiration.year
}

// IsExpired reports whether the end of the expiration month is before now.
func (expiration Expiration) IsExpired(now time.Time) bool {
	endOfMonth := time.Date(expiration.year, time.Month(expiration.month), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1, 0).Add(-time.Nanosecond)
	return endOfMonth.Before(now)
}

// String formats the expiration as MM/YY.
func (expiration Expiration) String() string {
	return fmt.Sprintf("%02d/%02d", expiration.month, expiration.year%100)
}

// CVV is a validated card verification value.
type CVV struct {
	value string
}

// NewCVV validates a 3-4 digit verification value.
func NewCVV(raw string) (CVV, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return CVV{}, ErrCVVRequired
	}
	if len(cleaned) < 3 || len(cleaned) > 4 {
		return CVV{}, ErrInvalidCVVLength
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return CVV{}, ErrInvalidCVVFormat
		}
	}
	return CVV{value: cleaned}, nil
}

// String returns the raw value.
func (cvv CVV) String() string {
	return cvv.value
}

// Masked returns the display form.
func (cvv CVV) Masked() string {
	return "***"
}

// CreditLimit is a validated credit limit in cents.
type CreditLimit struct {
	cents int64
}

// NewCreditLimit validates a limit: strictly positive and at most
// 1,000,000.00.
func NewCreditLimit(cents int64) (CreditLimit, error) {
	if cents <= 0 {
		return CreditLimit{}, ErrInvalidCreditLimit
	}
	if cents > maxCreditLimitCents {
		return CreditLimit{}, ErrCreditLimitTooHigh
	}
	return CreditLimit{cents: cents}, nil
}

// Cents returns the limit in cents.
func (limit CreditLimit) Cents() int64 {
	return limit.cents
}

// Status defines the card lifecycle.
type Status string

const (
	StatusActive    Status = "active"
	StatusBlocked   Status = "blocked"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// String returns the status value.
func (status Status) String() string {
	return string(status)
}

// ParseStatus validates a stored status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusActive, StatusBlocked, StatusExpired, StatusCancelled:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Brand identifies the card network.
type Brand string

const (
	BrandVisa            Brand = "visa"
	BrandMastercard      Brand = "mastercard"
	BrandAmericanExpress Brand = "american_express"
)

// String returns the brand value.
func (brand Brand) String() string {
	return string(brand)
}

// ParseBrand validates a brand value.
func ParseBrand(raw string) (Brand, error) {
	switch Brand(strings.ToLower(strings.TrimSpace(raw))) {
	case BrandVisa:
		return BrandVisa, nil
	case BrandMastercard:
		return BrandMastercard, nil
	case BrandAmericanExpress:
		return BrandAmericanExpress, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBrand, raw)
}

// Kind identifies the card tier.
type Kind string

const (
	KindClassic  Kind = "classic"
	KindGold     Kind = "gold"
	KindPlatinum Kind = "platinum"
	KindBlack    Kind = "black"
)

// String returns the kind value.
func (kind Kind) String() string {
	return string(kind)
}

// ParseKind validates a kind value.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindClassic, KindGold, KindPlatinum, KindBlack:
		return Kind(strings.ToLower(strings.TrimSpace(raw))), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
}

// HolderName is a validated, normalized cardholder name.
type HolderName struct {
	value string
}

// NewHolderName trims and upper-cases the cardholder name.
func NewHolderName(raw string) (HolderName, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return HolderName{}, ErrHolderNameRequired
	}
	return HolderName{value: normalized}, nil
}

// String returns the normalized name.
func (name HolderName) String() string {
	return name.value
}
