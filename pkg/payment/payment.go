package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
)

// ID identifies a payment.
type ID struct {
	value string
}

// NewID validates and normalizes a payment id.
func NewID(raw string) (ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ID{}, fmt.Errorf("%w: empty value", ErrInvalidPaymentID)
	}
	return ID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ID) String() string {
	return id.value
}

// Equal compares two payment ids by identity value.
func (id ID) Equal(other ID) bool {
	return id.value == other.value
}

// Status defines the payment lifecycle: pending -> processing -> exactly
// one of {completed, failed}; only completed may move on to refunded.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// String returns the status value.
func (status Status) String() string {
	return string(status)
}

// Prior returns the one source state a payment transitions into status
// from. Stores use it to guard writes: a row whose status no longer
// matches the expected source was moved by a concurrent writer.
func (status Status) Prior() Status {
	switch status {
	case StatusProcessing:
		return StatusPending
	case StatusCompleted, StatusFailed:
		return StatusProcessing
	case StatusRefunded:
		return StatusCompleted
	}
	return status
}

// ParseStatus validates a stored status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRefunded:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Payment is a single charge attempt against a card.
type Payment struct {
	domain.EventRecorder

	id        ID
	reference string
	userID    domain.UserID
	cardID    card.CardID

	amount   domain.AmountCents
	currency domain.Currency

	merchantName     string
	merchantCategory string
	description      string

	status            Status
	authorizationCode string
	failureReason     string
	idempotencyKey    string

	createdAt   time.Time
	processedAt *time.Time
	completedAt *time.Time
}

// New creates a pending payment and records the initiation event.
func New(
	id ID,
	reference string,
	userID domain.UserID,
	cardID card.CardID,
	amount domain.AmountCents,
	currency domain.Currency,
	merchantName string,
	merchantCategory string,
	description string,
	idempotencyKey string,
	now time.Time,
) *Payment {
	created := &Payment{
		id:               id,
		reference:        reference,
		userID:           userID,
		cardID:           cardID,
		amount:           amount,
		currency:         currency,
		merchantName:     strings.TrimSpace(merchantName),
		merchantCategory: strings.TrimSpace(merchantCategory),
		description:      strings.TrimSpace(description),
		status:           StatusPending,
		idempotencyKey:   strings.TrimSpace(idempotencyKey),
		createdAt:        now,
	}
	created.Record(InitiatedEvent{PaymentID: id, UserID: userID, CardID: cardID, AmountCents: amount.Int64()})
	return created
}

// Rehydrate rebuilds a payment from stored state. No events are recorded.
func Rehydrate(
	id ID,
	reference string,
	userID domain.UserID,
	cardID card.CardID,
	amount domain.AmountCents,
	currency domain.Currency,
	merchantName string,
	merchantCategory string,
	description string,
	status Status,
	authorizationCode string,
	failureReason string,
	idempotencyKey string,
	createdAt time.Time,
	processedAt *time.Time,
	completedAt *time.Time,
) *Payment {
	return &Payment{
		id:                id,
		reference:         reference,
		userID:            userID,
		cardID:            cardID,
		amount:            amount,
		currency:          currency,
		merchantName:      merchantName,
		merchantCategory:  merchantCategory,
		description:       description,
		status:            status,
		authorizationCode: authorizationCode,
		failureReason:     failureReason,
		idempotencyKey:    idempotencyKey,
		createdAt:         createdAt,
		processedAt:       processedAt,
		completedAt:       completedAt,
	}
}

// MarkProcessing moves a pending payment to processing. Calling it in any
// other state is orchestration misuse and panics.
func (p *Payment) MarkProcessing(now time.Time) {
	p.mustBe(StatusPending, StatusProcessing)
	p.status = StatusProcessing
	at := now
	p.processedAt = &at
}

// Complete finishes a processing payment with the gateway authorization
// code. Calling it in any other state panics.
func (p *Payment) Complete(authorizationCode string, now time.Time) {
	p.mustBe(StatusProcessing, StatusCompleted)
	p.status = StatusCompleted
	p.authorizationCode = authorizationCode
	at := now
	p.completedAt = &at
	p.Record(CompletedEvent{PaymentID: p.id, UserID: p.userID, AmountCents: p.amount.Int64()})
}

// Fail finishes a processing payment with a failure reason. Calling it in
// any other state panics.
func (p *Payment) Fail(reason string, now time.Time) {
	p.mustBe(StatusProcessing, StatusFailed)
	p.status = StatusFailed
	p.failureReason = reason
	at := now
	p.completedAt = &at
	p.Record(FailedEvent{PaymentID: p.id, UserID: p.userID, Reason: reason})
}

// Refund moves a completed payment to refunded. Any other state yields
// ErrRefundNotAllowed and leaves the payment untouched.
func (p *Payment) Refund(now time.Time) error {
	if p.status != StatusCompleted {
		return ErrRefundNotAllowed
	}
	p.status = StatusRefunded
	at := now
	p.completedAt = &at
	p.Record(RefundedEvent{PaymentID: p.id, UserID: p.userID, AmountCents: p.amount.Int64()})
	return nil
}

// mustBe guards the one legal source state for a transition. Violations
// indicate a code path bypassing the orchestrator, not bad user input.
func (p *Payment) mustBe(from Status, to Status) {
	if p.status != from {
		panic(fmt.Sprintf("payment %s: illegal transition %s -> %s", p.id, p.status, to))
	}
}

// ID returns the payment identity.
func (p *Payment) ID() ID { return p.id }

// Reference returns the human-readable payment reference.
func (p *Payment) Reference() string { return p.reference }

// UserID returns the owning user.
func (p *Payment) UserID() domain.UserID { return p.userID }

// CardID returns the charged card.
func (p *Payment) CardID() card.CardID { return p.cardID }

// Amount returns the payment amount.
func (p *Payment) Amount() domain.AmountCents { return p.amount }

// Currency returns the currency code.
func (p *Payment) Currency() domain.Currency { return p.currency }

// MerchantName returns the merchant descriptor.
func (p *Payment) MerchantName() string { return p.merchantName }

// MerchantCategory returns the merchant category.
func (p *Payment) MerchantCategory() string { return p.merchantCategory }

// Description returns the optional free-form description.
func (p *Payment) Description() string { return p.description }

// Status returns the lifecycle status.
func (p *Payment) Status() Status { return p.status }

// AuthorizationCode returns the gateway authorization code, empty until
// completion.
func (p *Payment) AuthorizationCode() string { return p.authorizationCode }

// FailureReason returns the failure reason, empty unless failed.
func (p *Payment) FailureReason() string { return p.failureReason }

// IdempotencyKey returns the caller-supplied deduplication key, may be
// empty.
func (p *Payment) IdempotencyKey() string { return p.idempotencyKey }

// CreatedAt returns the creation time.
func (p *Payment) CreatedAt() time.Time { return p.createdAt }

// ProcessedAt returns when processing started, nil while pending.
func (p *Payment) ProcessedAt() *time.Time { return p.processedAt }

// CompletedAt returns when the payment reached a terminal state.
func (p *Payment) CompletedAt() *time.Time { return p.completedAt }
