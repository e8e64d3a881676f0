package card

import (
	"strings"
	"time"

	"github.com/icredito/credito/pkg/domain"
)

// Card is the credit-card aggregate. The balance is only ever mutated
// through Charge and MakePayment, which preserve
// 0 <= balance <= creditLimit.
type Card struct {
	domain.EventRecorder

	id         CardID
	userID     domain.UserID
	number     Number
	holder     HolderName
	expiration Expiration
	cvv        CVV
	brand      Brand
	kind       Kind
	limit      CreditLimit

	balanceCents int64
	status       Status
	alias        string

	createdAt time.Time
	updatedAt time.Time
	version   int64
}

// Open creates a new active card with a zero balance and records the
// opening event.
func Open(
	id CardID,
	userID domain.UserID,
	number Number,
	holder HolderName,
	expiration Expiration,
	cvv CVV,
	brand Brand,
	kind Kind,
	limit CreditLimit,
	alias string,
	now time.Time,
) *Card {
	opened := &Card{
		id:         id,
		userID:     userID,
		number:     number,
		holder:     holder,
		expiration: expiration,
		cvv:        cvv,
		brand:      brand,
		kind:       kind,
		limit:      limit,
		status:     StatusActive,
		alias:      strings.TrimSpace(alias),
		createdAt:  now,
		updatedAt:  now,
	}
	opened.Record(OpenedEvent{CardID: id, UserID: userID})
	return opened
}

// Rehydrate rebuilds a card from stored state. No events are recorded.
func Rehydrate(
	id CardID,
	userID domain.UserID,
	number Number,
	holder HolderName,
	expiration Expiration,
	cvv CVV,
	brand Brand,
	kind Kind,
	limit CreditLimit,
	balanceCents int64,
	status Status,
	alias string,
	createdAt time.Time,
	updatedAt time.Time,
	version int64,
) *Card {
	return &Card{
		id:           id,
		userID:       userID,
		number:       number,
		holder:       holder,
		expiration:   expiration,
		cvv:          cvv,
		brand:        brand,
		kind:         kind,
		limit:        limit,
		balanceCents: balanceCents,
		status:       status,
		alias:        alias,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		version:      version,
	}
}

// ID returns the card identity.
func (c *Card) ID() CardID { return c.id }

// UserID returns the owning user.
func (c *Card) UserID() domain.UserID { return c.userID }

// Number returns the full card number.
func (c *Card) Number() Number { return c.number }

// MaskedNumber returns the display-only number form.
func (c *Card) MaskedNumber() string { return c.number.Masked() }

// Holder returns the cardholder name.
func (c *Card) Holder() HolderName { return c.holder }

// Expiration returns the expiration date.
func (c *Card) Expiration() Expiration { return c.expiration }

// CVV returns the verification value.
func (c *Card) CVV() CVV { return c.cvv }

// Brand returns the card network.
func (c *Card) Brand() Brand { return c.brand }

// Kind returns the card tier.
func (c *Card) Kind() Kind { return c.kind }

// LimitCents returns the credit limit in cents.
func (c *Card) LimitCents() int64 { return c.limit.Cents() }

// BalanceCents returns the current balance in cents.
func (c *Card) BalanceCents() int64 { return c.balanceCents }

// AvailableCreditCents returns creditLimit minus currentBalance.
func (c *Card) AvailableCreditCents() int64 { return c.limit.Cents() - c.balanceCents }

// Status returns the lifecycle status.
func (c *Card) Status() Status { return c.status }

// Alias returns the optional user-chosen alias.
func (c *Card) Alias() string { return c.alias }

// CreatedAt returns the creation time.
func (c *Card) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last mutation time.
func (c *Card) UpdatedAt() time.Time { return c.updatedAt }

// Version returns the optimistic-concurrency version.
func (c *Card) Version() int64 { return c.version }

// IsExpired reports whether the end of the expiration month is before now.
func (c *Card) IsExpired(now time.Time) bool {
	return c.expiration.IsExpired(now)
}

// Charge adds a purchase amount to the balance. It fails without mutating
// when the card is not active, expired, or the amount exceeds available
// credit. Duplicate submission is not deduplicated here; callers carry an
// idempotency key.
func (c *Card) Charge(amount domain.AmountCents, now time.Time) error {
	if c.status != StatusActive {
		return ErrCardNotActive
	}
	if c.IsExpired(now) {
		return ErrCardExpired
	}
	if amount.Int64() > c.AvailableCreditCents() {
		return ErrInsufficientCredit
	}
	c.balanceCents += amount.Int64()
	c.updatedAt = now
	c.Record(ChargedEvent{CardID: c.id, UserID: c.userID, AmountCents: amount.Int64()})
	return nil
}

// MakePayment reduces the balance by min(amount, balance) and returns the
// amount actually applied. The balance never goes negative.
func (c *Card) MakePayment(amount domain.AmountCents, now time.Time) int64 {
	applied := amount.Int64()
	if applied > c.balanceCents {
		applied = c.balanceCents
	}
	c.balanceCents -= applied
	c.updatedAt = now
	c.Record(PaymentAppliedEvent{CardID: c.id, UserID: c.userID, AmountCents: applied})
	return applied
}

// Block transitions an active card to blocked. Any other state is a no-op.
func (c *Card) Block(now time.Time) {
	if c.status != StatusActive {
		return
	}
	c.status = StatusBlocked
	c.updatedAt = now
	c.Record(BlockedEvent{CardID: c.id, UserID: c.userID})
}

// Activate transitions a blocked card back to active. Any other state is a
// no-op.
func (c *Card) Activate(now time.Time) {
	if c.status != StatusBlocked {
		return
	}
	c.status = StatusActive
	c.updatedAt = now
	c.Record(ActivatedEvent{CardID: c.id, UserID: c.userID})
}

// Cancel permanently cancels the card. Cancelling twice is a no-op.
func (c *Card) Cancel(now time.Time) {
	if c.status == StatusCancelled {
		return
	}
	c.status = StatusCancelled
	c.updatedAt = now
	c.Record(CancelledEvent{CardID: c.id, UserID: c.userID})
}

// UpdateAlias replaces the card alias.
func (c *Card) UpdateAlias(alias string, now time.Time) {
	c.alias = strings.TrimSpace(alias)
	c.updatedAt = now
	c.Record(AliasUpdatedEvent{CardID: c.id})
}
