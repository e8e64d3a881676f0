package card

import "github.com/icredito/credito/pkg/domain"

// OpenedEvent records a newly opened card.
type OpenedEvent struct {
	CardID CardID
	UserID domain.UserID
}

// EventName identifies the event.
func (OpenedEvent) EventName() string { return "card.opened" }

// ChargedEvent records a purchase applied to the balance.
type ChargedEvent struct {
	CardID      CardID
	UserID      domain.UserID
	AmountCents int64
}

// EventName identifies the event.
func (ChargedEvent) EventName() string { return "card.charged" }

// PaymentAppliedEvent records a balance payment.
type PaymentAppliedEvent struct {
	CardID      CardID
	UserID      domain.UserID
	AmountCents int64
}

// EventName identifies the event.
func (PaymentAppliedEvent) EventName() string { return "card.payment_applied" }

// BlockedEvent records a card block.
type BlockedEvent struct {
	CardID CardID
	UserID domain.UserID
}

// EventName identifies the event.
func (BlockedEvent) EventName() string { return "card.blocked" }

// ActivatedEvent records a card reactivation.
type ActivatedEvent struct {
	CardID CardID
	UserID domain.UserID
}

// EventName identifies the event.
func (ActivatedEvent) EventName() string { return "card.activated" }

// CancelledEvent records a card cancellation.
type CancelledEvent struct {
	CardID CardID
	UserID domain.UserID
}

// EventName identifies the event.
func (CancelledEvent) EventName() string { return "card.cancelled" }

// AliasUpdatedEvent records an alias change.
type AliasUpdatedEvent struct {
	CardID CardID
}

// EventName identifies the event.
func (AliasUpdatedEvent) EventName() string { return "card.alias_updated" }
