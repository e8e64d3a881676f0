package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
	"github.com/icredito/credito/pkg/ledger"
)

// Store is the persistence contract for payments.
type Store interface {
	GetPaymentForUser(ctx context.Context, id ID, userID domain.UserID) (*Payment, error)
	GetPaymentByReference(ctx context.Context, reference string, userID domain.UserID) (*Payment, error)
	GetPaymentByIdempotencyKey(ctx context.Context, key string, userID domain.UserID) (*Payment, error)
	AddPayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p *Payment) error
	ListPaymentsForUser(ctx context.Context, userID domain.UserID, page int, pageSize int) (PaymentPage, error)
}

// PaymentPage is one page of payments with the total match count.
type PaymentPage struct {
	Payments   []*Payment
	TotalCount int64
	Page       int
	PageSize   int
}

// TxStores exposes the three store ports inside one transaction.
type TxStores interface {
	Cards() card.Store
	Payments() Store
	Entries() ledger.Store
}

// UnitOfWork runs fn inside one atomic transaction: either every write made
// through the TxStores commits, or none do.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStores) error) error
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithPublisher wires a publisher that receives events after each
// successful commit.
func WithPublisher(publisher domain.Publisher) ServiceOption {
	return func(service *Service) {
		service.publisher = publisher
	}
}

// WithIDGenerator overrides payment and entry id generation.
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		service.newID = generate
	}
}

// Service orchestrates a charge or refund as one unit of work: gateway
// call, card mutation, and ledger append commit together or not at all.
type Service struct {
	cards     card.Store
	payments  Store
	uow       UnitOfWork
	gateway   Gateway
	nowFn     func() time.Time
	publisher domain.Publisher
	newID     func() string
}

// NewService wires a Service.
func NewService(cards card.Store, payments Store, uow UnitOfWork, gateway Gateway, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if cards == nil || payments == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if uow == nil {
		return nil, fmt.Errorf("%w: unit of work dependency is nil", ErrInvalidServiceConfig)
	}
	if gateway == nil {
		return nil, fmt.Errorf("%w: gateway dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		cards:     cards,
		payments:  payments,
		uow:       uow,
		gateway:   gateway,
		nowFn:     now,
		publisher: domain.NopPublisher{},
		newID:     uuid.NewString,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// ChargeParams carries a charge request.
type ChargeParams struct {
	CardID           card.CardID
	Amount           domain.AmountCents
	Currency         domain.Currency
	MerchantName     string
	MerchantCategory string
	Description      string
	Metadata         domain.MetadataJSON
	// IdempotencyKey is optional; a repeated key returns the original
	// result instead of charging twice.
	IdempotencyKey string
}

// Result reports the outcome of a charge or refund. A gateway decline or a
// failed local charge is reported as a failed Result, not an error: the
// failed payment is persisted and its identity returned.
type Result struct {
	PaymentID         ID
	Reference         string
	Status            Status
	AuthorizationCode string
	AmountCents       int64
	Currency          string
	CompletedAt       time.Time
	FailureReason     string
	// Duplicate marks a replayed idempotency key: the fields describe the
	// original payment and nothing was charged again.
	Duplicate bool
}

// ProcessPayment runs the charge flow: validate, load the card, authorize
// with the gateway, charge the card, append a purchase ledger entry, and
// commit card + payment + entry atomically.
func (service *Service) ProcessPayment(ctx context.Context, userID domain.UserID, params ChargeParams) (Result, error) {
	if strings.TrimSpace(params.MerchantName) == "" {
		return Result{}, ErrMerchantRequired
	}
	// A zero AmountCents value bypasses the constructor; reject it here so
	// no zero-amount charge or ledger entry can be persisted.
	if params.Amount.Int64() <= 0 {
		return Result{}, fmt.Errorf("%w: must be greater than zero", domain.ErrInvalidAmountCents)
	}

	if params.IdempotencyKey != "" {
		existing, err := service.payments.GetPaymentByIdempotencyKey(ctx, params.IdempotencyKey, userID)
		if err == nil {
			return resultFromPayment(existing, true), nil
		}
		if !errors.Is(err, ErrPaymentNotFound) {
			return Result{}, err
		}
	}

	loaded, err := service.cards.GetCardForUser(ctx, params.CardID, userID)
	if err != nil {
		return Result{}, err
	}

	now := service.nowFn()
	id, err := NewID(service.newID())
	if err != nil {
		return Result{}, err
	}
	attempt := New(
		id,
		service.newReference(now),
		userID,
		params.CardID,
		params.Amount,
		params.Currency,
		params.MerchantName,
		params.MerchantCategory,
		params.Description,
		params.IdempotencyKey,
		now,
	)
	attempt.MarkProcessing(now)

	// The gateway is the only step with real latency; it runs outside the
	// commit so the card row is never locked across the network call.
	authorization, err := service.gateway.Process(ctx, SnapshotCard(loaded), params.Amount, params.MerchantName)
	if err != nil {
		// Nothing was persisted yet: a cancelled or broken gateway call
		// leaves no payment stuck in processing.
		return Result{}, domain.WrapError("payment", "gateway", "process", err)
	}

	if !authorization.Success {
		attempt.Fail(authorization.ErrorMessage, service.nowFn())
		if err := service.persistFailedAttempt(ctx, attempt, userID); err != nil {
			return Result{}, err
		}
		return resultFromPayment(attempt, false), nil
	}

	var chargeErr error
	var pending []domain.Event
	commitErr := service.uow.WithTx(ctx, func(ctx context.Context, tx TxStores) error {
		fresh, err := tx.Cards().GetCardForUser(ctx, params.CardID, userID)
		if err != nil {
			return err
		}
		balanceBefore := fresh.BalanceCents()
		chargeNow := service.nowFn()
		if chargeErr = fresh.Charge(params.Amount, chargeNow); chargeErr != nil {
			// The gateway already authorized this charge; the attempt is
			// persisted as failed and the authorization voided afterward.
			attempt.Fail(chargeErr.Error(), chargeNow)
			return tx.Payments().AddPayment(ctx, attempt)
		}
		attempt.Complete(authorization.AuthorizationCode, chargeNow)

		entryID, err := ledger.NewEntryID(service.newID())
		if err != nil {
			return err
		}
		entry, err := ledger.NewPurchase(entryID, userID, params.CardID, id.String(), params.Amount, params.Currency, attempt.MerchantName(), params.Metadata, balanceBefore, chargeNow)
		if err != nil {
			return err
		}
		if err := tx.Cards().UpdateCard(ctx, fresh); err != nil {
			return err
		}
		if err := tx.Payments().AddPayment(ctx, attempt); err != nil {
			return err
		}
		if err := tx.Entries().AppendEntry(ctx, entry); err != nil {
			return err
		}
		pending = append(pending, fresh.PullEvents()...)
		pending = append(pending, ledger.RecordedEvent{
			EntryID:     entry.ID(),
			UserID:      userID,
			CardID:      params.CardID,
			Type:        ledger.TypePurchase,
			AmountCents: params.Amount.Int64(),
		})
		return nil
	})
	if commitErr != nil {
		if errors.Is(commitErr, ErrDuplicatePayment) && params.IdempotencyKey != "" {
			return service.replayDuplicate(ctx, params.IdempotencyKey, userID)
		}
		return Result{}, commitErr
	}

	if chargeErr != nil {
		// Best effort: release the authorization the gateway is holding.
		_ = service.gateway.Void(ctx, authorization.AuthorizationCode)
		service.publisher.Publish(ctx, attempt.PullEvents()...)
		return resultFromPayment(attempt, false), nil
	}

	pending = append(pending, attempt.PullEvents()...)
	service.publisher.Publish(ctx, pending...)
	return resultFromPayment(attempt, false), nil
}

// RefundPayment reverses a completed payment: the card balance is restored
// by min(amount, balance), a refund ledger entry is appended, and the
// payment moves to refunded. Card, payment, and entry commit atomically.
// A missing card does not block the refund; the balance restore is then
// skipped.
func (service *Service) RefundPayment(ctx context.Context, id ID, userID domain.UserID) (Result, error) {
	var refunded *Payment
	var pending []domain.Event
	err := service.uow.WithTx(ctx, func(ctx context.Context, tx TxStores) error {
		loaded, err := tx.Payments().GetPaymentForUser(ctx, id, userID)
		if err != nil {
			return err
		}
		now := service.nowFn()
		if err := loaded.Refund(now); err != nil {
			return err
		}

		heldCard, err := tx.Cards().GetCard(ctx, loaded.CardID())
		switch {
		case errors.Is(err, card.ErrCardNotFound):
			// Card is gone; refund the payment without restoring balance.
		case err != nil:
			return err
		default:
			balanceBefore := heldCard.BalanceCents()
			applied := heldCard.MakePayment(loaded.Amount(), now)
			if err := tx.Cards().UpdateCard(ctx, heldCard); err != nil {
				return err
			}
			if applied > 0 {
				appliedAmount, err := domain.NewAmountCents(applied)
				if err != nil {
					return err
				}
				entryID, err := ledger.NewEntryID(service.newID())
				if err != nil {
					return err
				}
				entry, err := ledger.NewRefund(entryID, userID, loaded.CardID(), id.String(), appliedAmount, loaded.Currency(), loaded.MerchantName(), balanceBefore, now)
				if err != nil {
					return err
				}
				if err := tx.Entries().AppendEntry(ctx, entry); err != nil {
					return err
				}
				pending = append(pending, ledger.RecordedEvent{
					EntryID:     entry.ID(),
					UserID:      userID,
					CardID:      loaded.CardID(),
					Type:        ledger.TypeRefund,
					AmountCents: applied,
				})
			}
			pending = append(pending, heldCard.PullEvents()...)
		}

		if err := tx.Payments().UpdatePayment(ctx, loaded); err != nil {
			return err
		}
		refunded = loaded
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	pending = append(pending, refunded.PullEvents()...)
	service.publisher.Publish(ctx, pending...)
	return resultFromPayment(refunded, false), nil
}

// PayBalanceParams carries a bill-payment request.
type PayBalanceParams struct {
	CardID   card.CardID
	Amount   domain.AmountCents
	Currency domain.Currency
}

// PayBalanceResult reports a bill payment: the amount actually applied is
// min(requested, balance).
type PayBalanceResult struct {
	AppliedCents int64
	BalanceCents int64
}

// PayBalance pays down a card balance and appends a payment ledger entry.
// Card and entry commit atomically.
func (service *Service) PayBalance(ctx context.Context, userID domain.UserID, params PayBalanceParams) (PayBalanceResult, error) {
	if params.Amount.Int64() <= 0 {
		return PayBalanceResult{}, fmt.Errorf("%w: must be greater than zero", domain.ErrInvalidAmountCents)
	}
	var result PayBalanceResult
	var pending []domain.Event
	err := service.uow.WithTx(ctx, func(ctx context.Context, tx TxStores) error {
		loaded, err := tx.Cards().GetCardForUser(ctx, params.CardID, userID)
		if err != nil {
			return err
		}
		now := service.nowFn()
		balanceBefore := loaded.BalanceCents()
		applied := loaded.MakePayment(params.Amount, now)
		if err := tx.Cards().UpdateCard(ctx, loaded); err != nil {
			return err
		}
		if applied > 0 {
			appliedAmount, err := domain.NewAmountCents(applied)
			if err != nil {
				return err
			}
			entryID, err := ledger.NewEntryID(service.newID())
			if err != nil {
				return err
			}
			entry, err := ledger.NewPayment(entryID, userID, params.CardID, appliedAmount, params.Currency, balanceBefore, now)
			if err != nil {
				return err
			}
			if err := tx.Entries().AppendEntry(ctx, entry); err != nil {
				return err
			}
			pending = append(pending, ledger.RecordedEvent{
				EntryID:     entry.ID(),
				UserID:      userID,
				CardID:      params.CardID,
				Type:        ledger.TypePayment,
				AmountCents: applied,
			})
		}
		pending = append(pending, loaded.PullEvents()...)
		result = PayBalanceResult{AppliedCents: applied, BalanceCents: loaded.BalanceCents()}
		return nil
	})
	if err != nil {
		return PayBalanceResult{}, err
	}
	service.publisher.Publish(ctx, pending...)
	return result, nil
}

// GetPayment returns a payment owned by the user.
func (service *Service) GetPayment(ctx context.Context, id ID, userID domain.UserID) (*Payment, error) {
	return service.payments.GetPaymentForUser(ctx, id, userID)
}

// GetPaymentByReference returns a payment by its human-readable reference.
func (service *Service) GetPaymentByReference(ctx context.Context, reference string, userID domain.UserID) (*Payment, error) {
	return service.payments.GetPaymentByReference(ctx, reference, userID)
}

// ListPayments returns one page of the user's payment history, newest
// first.
func (service *Service) ListPayments(ctx context.Context, userID domain.UserID, page int, pageSize int) (PaymentPage, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 || pageSize < 1 || pageSize > 100 {
		return PaymentPage{}, ErrInvalidPageBounds
	}
	return service.payments.ListPaymentsForUser(ctx, userID, page, pageSize)
}

func (service *Service) persistFailedAttempt(ctx context.Context, attempt *Payment, userID domain.UserID) error {
	err := service.uow.WithTx(ctx, func(ctx context.Context, tx TxStores) error {
		return tx.Payments().AddPayment(ctx, attempt)
	})
	if errors.Is(err, ErrDuplicatePayment) && attempt.IdempotencyKey() != "" {
		return nil
	}
	if err != nil {
		return err
	}
	service.publisher.Publish(ctx, attempt.PullEvents()...)
	return nil
}

func (service *Service) replayDuplicate(ctx context.Context, key string, userID domain.UserID) (Result, error) {
	existing, err := service.payments.GetPaymentByIdempotencyKey(ctx, key, userID)
	if err != nil {
		return Result{}, err
	}
	return resultFromPayment(existing, true), nil
}

// newReference builds a human-readable reference: PAY-YYYYMMDD-XXXXXXXX.
func (service *Service) newReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(service.newID(), "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("PAY-%s-%s", now.UTC().Format("20060102"), suffix)
}

func resultFromPayment(p *Payment, duplicate bool) Result {
	result := Result{
		PaymentID:         p.ID(),
		Reference:         p.Reference(),
		Status:            p.Status(),
		AuthorizationCode: p.AuthorizationCode(),
		AmountCents:       p.Amount().Int64(),
		Currency:          p.Currency().String(),
		FailureReason:     p.FailureReason(),
		Duplicate:         duplicate,
	}
	if completedAt := p.CompletedAt(); completedAt != nil {
		result.CompletedAt = *completedAt
	}
	return result
}
