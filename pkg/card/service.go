package card

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/icredito/credito/pkg/domain"
)

// Store is the persistence contract for cards. Deletion is intentionally
// absent: financial accounts are cancelled, never removed.
type Store interface {
	GetCard(ctx context.Context, id CardID) (*Card, error)
	GetCardForUser(ctx context.Context, id CardID, userID domain.UserID) (*Card, error)
	CardNumberExists(ctx context.Context, number Number) (bool, error)
	AddCard(ctx context.Context, c *Card) error
	UpdateCard(ctx context.Context, c *Card) error
	ListCardsForUser(ctx context.Context, userID domain.UserID) ([]*Card, error)
}

// ErrInvalidServiceConfig reports a missing service dependency.
var ErrInvalidServiceConfig = fmt.Errorf("invalid card service config")

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithPublisher wires a publisher that receives events after each
// successful mutation.
func WithPublisher(publisher domain.Publisher) ServiceOption {
	return func(service *Service) {
		service.publisher = publisher
	}
}

// WithIDGenerator overrides card id generation.
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		service.newID = generate
	}
}

// Service owns card lifecycle operations outside of payment processing.
type Service struct {
	store     Store
	nowFn     func() time.Time
	publisher domain.Publisher
	newID     func() string
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:     store,
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

// OpenCardParams carries the raw inputs for opening a card.
type OpenCardParams struct {
	Number          string
	HolderName      string
	ExpirationMonth int
	ExpirationYear  int
	CVV             string
	Brand           string
	Kind            string
	LimitCents      int64
	Alias           string
}

// OpenCard validates the request, rejects duplicate card numbers, and
// persists a new active card with a zero balance.
func (service *Service) OpenCard(ctx context.Context, userID domain.UserID, params OpenCardParams) (*Card, error) {
	now := service.nowFn()
	number, err := NewNumber(params.Number)
	if err != nil {
		return nil, err
	}
	holder, err := NewHolderName(params.HolderName)
	if err != nil {
		return nil, err
	}
	expiration, err := NewExpiration(params.ExpirationMonth, params.ExpirationYear, now)
	if err != nil {
		return nil, err
	}
	cvv, err := NewCVV(params.CVV)
	if err != nil {
		return nil, err
	}
	brand, err := ParseBrand(params.Brand)
	if err != nil {
		return nil, err
	}
	kind, err := ParseKind(params.Kind)
	if err != nil {
		return nil, err
	}
	limit, err := NewCreditLimit(params.LimitCents)
	if err != nil {
		return nil, err
	}

	exists, err := service.store.CardNumberExists(ctx, number)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrCardNumberExists
	}

	id, err := NewCardID(service.newID())
	if err != nil {
		return nil, err
	}
	opened := Open(id, userID, number, holder, expiration, cvv, brand, kind, limit, params.Alias, now)
	if err := service.store.AddCard(ctx, opened); err != nil {
		return nil, err
	}
	service.publisher.Publish(ctx, opened.PullEvents()...)
	return opened, nil
}

// GetCard returns a card owned by the user.
func (service *Service) GetCard(ctx context.Context, id CardID, userID domain.UserID) (*Card, error) {
	return service.store.GetCardForUser(ctx, id, userID)
}

// ListCards returns every card owned by the user.
func (service *Service) ListCards(ctx context.Context, userID domain.UserID) ([]*Card, error) {
	return service.store.ListCardsForUser(ctx, userID)
}

// UpdateAlias replaces the alias of a card owned by the user.
func (service *Service) UpdateAlias(ctx context.Context, id CardID, userID domain.UserID, alias string) (*Card, error) {
	return service.mutate(ctx, id, userID, func(c *Card, now time.Time) {
		c.UpdateAlias(alias, now)
	})
}

// BlockCard blocks an active card owned by the user.
func (service *Service) BlockCard(ctx context.Context, id CardID, userID domain.UserID) (*Card, error) {
	return service.mutate(ctx, id, userID, func(c *Card, now time.Time) {
		c.Block(now)
	})
}

// ActivateCard reactivates a blocked card owned by the user.
func (service *Service) ActivateCard(ctx context.Context, id CardID, userID domain.UserID) (*Card, error) {
	return service.mutate(ctx, id, userID, func(c *Card, now time.Time) {
		c.Activate(now)
	})
}

// CancelCard permanently cancels a card owned by the user.
func (service *Service) CancelCard(ctx context.Context, id CardID, userID domain.UserID) (*Card, error) {
	return service.mutate(ctx, id, userID, func(c *Card, now time.Time) {
		c.Cancel(now)
	})
}

func (service *Service) mutate(ctx context.Context, id CardID, userID domain.UserID, apply func(*Card, time.Time)) (*Card, error) {
	loaded, err := service.store.GetCardForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	apply(loaded, service.nowFn())
	if err := service.store.UpdateCard(ctx, loaded); err != nil {
		return nil, err
	}
	service.publisher.Publish(ctx, loaded.PullEvents()...)
	return loaded, nil
}
