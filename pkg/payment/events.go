package payment

import (
	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
)

// InitiatedEvent records a newly created payment.
type InitiatedEvent struct {
	PaymentID   ID
	UserID      domain.UserID
	CardID      card.CardID
	AmountCents int64
}

// EventName identifies the event.
func (InitiatedEvent) EventName() string { return "payment.initiated" }

// CompletedEvent records a successful charge.
type CompletedEvent struct {
	PaymentID   ID
	UserID      domain.UserID
	AmountCents int64
}

// EventName identifies the event.
func (CompletedEvent) EventName() string { return "payment.completed" }

// FailedEvent records a failed charge attempt.
type FailedEvent struct {
	PaymentID ID
	UserID    domain.UserID
	Reason    string
}

// EventName identifies the event.
func (FailedEvent) EventName() string { return "payment.failed" }

// RefundedEvent records a refunded payment.
type RefundedEvent struct {
	PaymentID   ID
	UserID      domain.UserID
	AmountCents int64
}

// EventName identifies the event.
func (RefundedEvent) EventName() string { return "payment.refunded" }
