package card

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func TestNewNumberAcceptsValidCards(test *testing.T) {
	test.Parallel()
	for _, raw := range []string{
		"4111111111111111",
		"5555555555554444",
		"378282246310005",
		"4111 1111 1111 1111",
		"4111-1111-1111-1111",
	} {
		number, err := NewNumber(raw)
		if err != nil {
			test.Fatalf("NewNumber(%q): %v", raw, err)
		}
		if number.LastFour() == "" {
			test.Fatalf("expected last four digits for %q", raw)
		}
	}
}

func TestNewNumberRejectsInvalidCards(test *testing.T) {
	test.Parallel()
	cases := []struct {
		raw  string
		want error
	}{
		{"", ErrCardNumberRequired},
		{"   ", ErrCardNumberRequired},
		{"411111111111", ErrCardNumberLength},
		{"41111111111111111111", ErrCardNumberLength},
		{"4111111111111abc", ErrCardNumberFormat},
		{"4111111111111112", ErrCardNumberChecksum},
	}
	for _, testCase := range cases {
		if _, err := NewNumber(testCase.raw); !errors.Is(err, testCase.want) {
			test.Fatalf("NewNumber(%q): expected %v, got %v", testCase.raw, testCase.want, err)
		}
	}
}

func TestNumberMaskedShowsLastFourOnly(test *testing.T) {
	test.Parallel()
	number := mustNumber(test, "4111111111111111")
	if number.Masked() != "**** **** **** 1111" {
		test.Fatalf("unexpected masked form: %q", number.Masked())
	}
}

func TestNewExpirationNormalizesTwoDigitYears(test *testing.T) {
	test.Parallel()
	expiration, err := NewExpiration(12, 30, testNow)
	if err != nil {
		test.Fatalf("expiration: %v", err)
	}
	if expiration.Year() != 2030 {
		test.Fatalf("expected year 2030, got %d", expiration.Year())
	}
	if expiration.String() != "12/30" {
		test.Fatalf("unexpected string form: %q", expiration.String())
	}
}

func TestNewExpirationRejectsBadMonthAndPastDates(test *testing.T) {
	test.Parallel()
	if _, err := NewExpiration(0, 2030, testNow); !errors.Is(err, ErrInvalidExpirationMonth) {
		test.Fatalf("expected ErrInvalidExpirationMonth, got %v", err)
	}
	if _, err := NewExpiration(13, 2030, testNow); !errors.Is(err, ErrInvalidExpirationMonth) {
		test.Fatalf("expected ErrInvalidExpirationMonth, got %v", err)
	}
	if _, err := NewExpiration(2, 2026, testNow); !errors.Is(err, ErrCardExpired) {
		test.Fatalf("expected ErrCardExpired, got %v", err)
	}
}

func TestExpirationValidThroughEndOfMonth(test *testing.T) {
	test.Parallel()
	expiration, err := NewExpiration(3, 2026, testNow)
	if err != nil {
		test.Fatalf("expiration in current month must be valid: %v", err)
	}
	endOfMonth := time.Date(2026, time.March, 31, 23, 59, 59, 0, time.UTC)
	if expiration.IsExpired(endOfMonth) {
		test.Fatal("card must stay valid through the last day of its month")
	}
	firstOfNext := time.Date(2026, time.April, 1, 0, 0, 0, 1, time.UTC)
	if !expiration.IsExpired(firstOfNext) {
		test.Fatal("card must expire once the month ends")
	}
}

func TestStoredExpirationAllowsPastDates(test *testing.T) {
	test.Parallel()
	expiration, err := StoredExpiration(1, 2020)
	if err != nil {
		test.Fatalf("stored expiration: %v", err)
	}
	if !expiration.IsExpired(testNow) {
		test.Fatal("expected stored expiration to report expired")
	}
	if _, err := StoredExpiration(13, 2020); !errors.Is(err, ErrInvalidExpirationMonth) {
		test.Fatalf("expected ErrInvalidExpirationMonth, got %v", err)
	}
}

func TestNewCVV(test *testing.T) {
	test.Parallel()
	for _, raw := range []string{"123", "1234"} {
		if _, err := NewCVV(raw); err != nil {
			test.Fatalf("NewCVV(%q): %v", raw, err)
		}
	}
	cases := []struct {
		raw  string
		want error
	}{
		{"", ErrCVVRequired},
		{"12", ErrInvalidCVVLength},
		{"12345", ErrInvalidCVVLength},
		{"12a", ErrInvalidCVVFormat},
	}
	for _, testCase := range cases {
		if _, err := NewCVV(testCase.raw); !errors.Is(err, testCase.want) {
			test.Fatalf("NewCVV(%q): expected %v, got %v", testCase.raw, testCase.want, err)
		}
	}
	cvv := mustCVV(test, "123")
	if cvv.Masked() != "***" {
		test.Fatalf("unexpected masked cvv: %q", cvv.Masked())
	}
}

func TestNewCreditLimitBounds(test *testing.T) {
	test.Parallel()
	if _, err := NewCreditLimit(0); !errors.Is(err, ErrInvalidCreditLimit) {
		test.Fatalf("expected ErrInvalidCreditLimit, got %v", err)
	}
	if _, err := NewCreditLimit(-500); !errors.Is(err, ErrInvalidCreditLimit) {
		test.Fatalf("expected ErrInvalidCreditLimit, got %v", err)
	}
	limit, err := NewCreditLimit(maxCreditLimitCents)
	if err != nil {
		test.Fatalf("limit at maximum must be accepted: %v", err)
	}
	if limit.Cents() != maxCreditLimitCents {
		test.Fatalf("unexpected limit cents: %d", limit.Cents())
	}
	if _, err := NewCreditLimit(maxCreditLimitCents + 1); !errors.Is(err, ErrCreditLimitTooHigh) {
		test.Fatalf("expected ErrCreditLimitTooHigh, got %v", err)
	}
}

func TestNewHolderNameNormalizes(test *testing.T) {
	test.Parallel()
	holder, err := NewHolderName("  Joao da Silva  ")
	if err != nil {
		test.Fatalf("holder: %v", err)
	}
	if holder.String() != "JOAO DA SILVA" {
		test.Fatalf("expected uppercase trimmed name, got %q", holder.String())
	}
	if _, err := NewHolderName("   "); !errors.Is(err, ErrHolderNameRequired) {
		test.Fatalf("expected ErrHolderNameRequired, got %v", err)
	}
}

func TestParseEnumerations(test *testing.T) {
	test.Parallel()
	if _, err := ParseBrand("visa"); err != nil {
		test.Fatalf("brand: %v", err)
	}
	if _, err := ParseBrand("diners"); !errors.Is(err, ErrInvalidBrand) {
		test.Fatalf("expected ErrInvalidBrand, got %v", err)
	}
	if _, err := ParseKind("platinum"); err != nil {
		test.Fatalf("kind: %v", err)
	}
	if _, err := ParseKind("silver"); !errors.Is(err, ErrInvalidKind) {
		test.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if _, err := ParseStatus("blocked"); err != nil {
		test.Fatalf("status: %v", err)
	}
	if _, err := ParseStatus("frozen"); !errors.Is(err, ErrInvalidStatus) {
		test.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func mustNumber(test *testing.T, raw string) Number {
	test.Helper()
	number, err := NewNumber(raw)
	if err != nil {
		test.Fatalf("number: %v", err)
	}
	return number
}

func mustCVV(test *testing.T, raw string) CVV {
	test.Helper()
	cvv, err := NewCVV(raw)
	if err != nil {
		test.Fatalf("cvv: %v", err)
	}
	return cvv
}
