package payment

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
)

var paymentNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestPayment(test *testing.T) *Payment {
	test.Helper()
	id, err := NewID("payment-1")
	if err != nil {
		test.Fatalf("payment id: %v", err)
	}
	userID, err := domain.NewUserID("user-1")
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	cardID, err := card.NewCardID("card-1")
	if err != nil {
		test.Fatalf("card id: %v", err)
	}
	amount, err := domain.NewAmountCents(12_500)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	currency, err := domain.NewCurrency("BRL")
	if err != nil {
		test.Fatalf("currency: %v", err)
	}
	created := New(id, "PAY-20260315-ABCDEF01", userID, cardID, amount, currency, "Mercado Livre", "marketplace", "", "", paymentNow)
	created.PullEvents()
	return created
}

func TestNewPaymentStartsPending(test *testing.T) {
	test.Parallel()
	p := newTestPayment(test)
	if p.Status() != StatusPending {
		test.Fatalf("expected pending, got %s", p.Status())
	}
	if p.ProcessedAt() != nil || p.CompletedAt() != nil {
		test.Fatal("fresh payment carries processing timestamps")
	}
}

func TestHappyPathTransitions(test *testing.T) {
	test.Parallel()
	p := newTestPayment(test)
	p.MarkProcessing(paymentNow)
	if p.Status() != StatusProcessing {
		test.Fatalf("expected processing, got %s", p.Status())
	}
	if p.ProcessedAt() == nil {
		test.Fatal("processing timestamp not set")
	}

	p.Complete("SIM-20260315-000042", paymentNow)
	if p.Status() != StatusCompleted {
		test.Fatalf("expected completed, got %s", p.Status())
	}
	if p.AuthorizationCode() != "SIM-20260315-000042" {
		test.Fatalf("unexpected authorization code: %q", p.AuthorizationCode())
	}
	if p.CompletedAt() == nil {
		test.Fatal("completion timestamp not set")
	}
}

func TestFailureTransition(test *testing.T) {
	test.Parallel()
	p := newTestPayment(test)
	p.MarkProcessing(paymentNow)
	p.Fail("transaction rejected by issuer", paymentNow)
	if p.Status() != StatusFailed {
		test.Fatalf("expected failed, got %s", p.Status())
	}
	if p.FailureReason() != "transaction rejected by issuer" {
		test.Fatalf("unexpected reason: %q", p.FailureReason())
	}
}

func mustPanic(test *testing.T, want string, fn func()) {
	test.Helper()
	defer func() {
		recovered := recover()
		if recovered == nil {
			test.Fatal("expected panic, got none")
		}
		message, ok := recovered.(string)
		if !ok || !strings.Contains(message, want) {
			test.Fatalf("unexpected panic value: %v", recovered)
		}
	}()
	fn()
}

func TestIllegalTransitionsPanic(test *testing.T) {
	test.Parallel()

	pending := newTestPayment(test)
	mustPanic(test, "illegal transition pending -> completed", func() {
		pending.Complete("AUTH-1", paymentNow)
	})

	unprocessed := newTestPayment(test)
	mustPanic(test, "illegal transition pending -> failed", func() {
		unprocessed.Fail("reason", paymentNow)
	})

	completed := newTestPayment(test)
	completed.MarkProcessing(paymentNow)
	completed.Complete("AUTH-2", paymentNow)
	mustPanic(test, "illegal transition completed -> processing", func() {
		completed.MarkProcessing(paymentNow)
	})
	mustPanic(test, "illegal transition completed -> completed", func() {
		completed.Complete("AUTH-3", paymentNow)
	})

	failed := newTestPayment(test)
	failed.MarkProcessing(paymentNow)
	failed.Fail("declined", paymentNow)
	mustPanic(test, "illegal transition failed -> completed", func() {
		failed.Complete("AUTH-4", paymentNow)
	})
}

func TestRefundOnlyFromCompleted(test *testing.T) {
	test.Parallel()

	pending := newTestPayment(test)
	if err := pending.Refund(paymentNow); !errors.Is(err, ErrRefundNotAllowed) {
		test.Fatalf("expected ErrRefundNotAllowed for pending, got %v", err)
	}
	if pending.Status() != StatusPending {
		test.Fatalf("failed refund mutated status to %s", pending.Status())
	}

	failed := newTestPayment(test)
	failed.MarkProcessing(paymentNow)
	failed.Fail("declined", paymentNow)
	if err := failed.Refund(paymentNow); !errors.Is(err, ErrRefundNotAllowed) {
		test.Fatalf("expected ErrRefundNotAllowed for failed, got %v", err)
	}

	completed := newTestPayment(test)
	completed.MarkProcessing(paymentNow)
	completed.Complete("AUTH-5", paymentNow)
	if err := completed.Refund(paymentNow); err != nil {
		test.Fatalf("refund: %v", err)
	}
	if completed.Status() != StatusRefunded {
		test.Fatalf("expected refunded, got %s", completed.Status())
	}

	if err := completed.Refund(paymentNow); !errors.Is(err, ErrRefundNotAllowed) {
		test.Fatalf("expected ErrRefundNotAllowed for double refund, got %v", err)
	}
}

func TestParseStatusRejectsUnknown(test *testing.T) {
	test.Parallel()
	for _, raw := range []string{"pending", "processing", "completed", "failed", "refunded"} {
		if _, err := ParseStatus(raw); err != nil {
			test.Fatalf("ParseStatus(%q): %v", raw, err)
		}
	}
	if _, err := ParseStatus("authorized"); !errors.Is(err, ErrInvalidStatus) {
		test.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
