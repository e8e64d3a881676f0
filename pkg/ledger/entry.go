package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
)

// Errors returned by the ledger package.
var (
	ErrInvalidEntryID    = errors.New("invalid entry id")
	ErrInvalidEntryType  = errors.New("invalid entry type")
	ErrSnapshotMismatch  = errors.New("balance snapshot mismatch")
	ErrEntryNotFound     = errors.New("ledger entry not found")
	ErrInvalidPageBounds = errors.New("invalid page bounds")
)

// EntryID identifies a ledger entry.
type EntryID struct {
	value string
}

// NewEntryID validates and normalizes an entry id.
func NewEntryID(raw string) (EntryID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return EntryID{}, fmt.Errorf("%w: empty value", ErrInvalidEntryID)
	}
	return EntryID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id EntryID) String() string {
	return id.value
}

// Type enumerates ledger entry kinds.
type Type string

const (
	TypePurchase Type = "purchase"
	TypePayment  Type = "payment"
	TypeRefund   Type = "refund"
	TypeFee      Type = "fee"
	TypeInterest Type = "interest"
)

// String returns the type value.
func (entryType Type) String() string {
	return string(entryType)
}

// ParseType validates a stored type value.
func ParseType(raw string) (Type, error) {
	switch Type(raw) {
	case TypePurchase, TypePayment, TypeRefund, TypeFee, TypeInterest:
		return Type(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryType, raw)
}

// Signed applies the direction of the entry type to an amount: purchases,
// fees, and interest raise the balance; payments and refunds lower it.
func (entryType Type) Signed(amountCents int64) int64 {
	switch entryType {
	case TypePayment, TypeRefund:
		return -amountCents
	default:
		return amountCents
	}
}

// Entry is a single immutable line in the ledger, snapshotting the account
// balance before and after the movement it records.
type Entry struct {
	id            EntryID
	cardID        card.CardID
	paymentID     string
	userID        domain.UserID
	entryType     Type
	amountCents   domain.AmountCents
	currency      domain.Currency
	description   string
	balanceBefore int64
	balanceAfter  int64
	merchantName  string
	category      string
	metadata      domain.MetadataJSON
	createdAt     time.Time
}

// NewEntry builds an entry and enforces the snapshot invariant:
// balanceAfter must equal balanceBefore plus the signed amount.
func NewEntry(
	id EntryID,
	userID domain.UserID,
	cardID card.CardID,
	paymentID string,
	entryType Type,
	amountCents domain.AmountCents,
	currency domain.Currency,
	description string,
	balanceBefore int64,
	balanceAfter int64,
	merchantName string,
	category string,
	metadata domain.MetadataJSON,
	createdAt time.Time,
) (Entry, error) {
	if balanceAfter != balanceBefore+entryType.Signed(amountCents.Int64()) {
		return Entry{}, fmt.Errorf("%w: %s %d: %d -> %d", ErrSnapshotMismatch, entryType, amountCents.Int64(), balanceBefore, balanceAfter)
	}
	return Entry{
		id:            id,
		cardID:        cardID,
		paymentID:     paymentID,
		userID:        userID,
		entryType:     entryType,
		amountCents:   amountCents,
		currency:      currency,
		description:   description,
		balanceBefore: balanceBefore,
		balanceAfter:  balanceAfter,
		merchantName:  merchantName,
		category:      category,
		metadata:      metadata,
		createdAt:     createdAt,
	}, nil
}

// NewPurchase records a charge against the card balance.
func NewPurchase(id EntryID, userID domain.UserID, cardID card.CardID, paymentID string, amount domain.AmountCents, currency domain.Currency, merchantName string, metadata domain.MetadataJSON, balanceBefore int64, now time.Time) (Entry, error) {
	return NewEntry(
		id, userID, cardID, paymentID, TypePurchase, amount, currency,
		fmt.Sprintf("Purchase at %s", merchantName),
		balanceBefore, balanceBefore+amount.Int64(),
		merchantName, "purchases", metadata, now,
	)
}

// NewPayment records a bill payment that reduces the card balance.
func NewPayment(id EntryID, userID domain.UserID, cardID card.CardID, amount domain.AmountCents, currency domain.Currency, balanceBefore int64, now time.Time) (Entry, error) {
	return NewEntry(
		id, userID, cardID, "", TypePayment, amount, currency,
		"Credit card payment",
		balanceBefore, balanceBefore-amount.Int64(),
		"", "payments", domain.MetadataJSON{}, now,
	)
}

// NewRefund records a refund of a completed payment.
func NewRefund(id EntryID, userID domain.UserID, cardID card.CardID, paymentID string, amount domain.AmountCents, currency domain.Currency, merchantName string, balanceBefore int64, now time.Time) (Entry, error) {
	return NewEntry(
		id, userID, cardID, paymentID, TypeRefund, amount, currency,
		fmt.Sprintf("Refund from %s", merchantName),
		balanceBefore, balanceBefore-amount.Int64(),
		merchantName, "refunds", domain.MetadataJSON{}, now,
	)
}

// ID returns the entry identity.
func (entry Entry) ID() EntryID { return entry.id }

// CardID returns the card the entry belongs to.
func (entry Entry) CardID() card.CardID { return entry.cardID }

// PaymentID returns the linked payment id, empty when unlinked.
func (entry Entry) PaymentID() string { return entry.paymentID }

// UserID returns the owning user.
func (entry Entry) UserID() domain.UserID { return entry.userID }

// Type returns the entry kind.
func (entry Entry) Type() Type { return entry.entryType }

// AmountCents returns the unsigned amount.
func (entry Entry) AmountCents() domain.AmountCents { return entry.amountCents }

// SignedAmountCents returns the amount with the type's direction applied.
func (entry Entry) SignedAmountCents() int64 {
	return entry.entryType.Signed(entry.amountCents.Int64())
}

// Currency returns the currency code.
func (entry Entry) Currency() domain.Currency { return entry.currency }

// Description returns the human-readable description.
func (entry Entry) Description() string { return entry.description }

// BalanceBeforeCents returns the balance snapshot before the movement.
func (entry Entry) BalanceBeforeCents() int64 { return entry.balanceBefore }

// BalanceAfterCents returns the balance snapshot after the movement.
func (entry Entry) BalanceAfterCents() int64 { return entry.balanceAfter }

// MerchantName returns the merchant descriptor, empty for bill payments.
func (entry Entry) MerchantName() string { return entry.merchantName }

// Category returns the reporting category.
func (entry Entry) Category() string { return entry.category }

// Metadata returns the attached JSON metadata blob.
func (entry Entry) Metadata() domain.MetadataJSON { return entry.metadata }

// CreatedAt returns the creation time.
func (entry Entry) CreatedAt() time.Time { return entry.createdAt }
