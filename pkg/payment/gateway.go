package payment

import (
	"context"

	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
)

// CardSnapshot is the read-only view of a card handed to the gateway.
type CardSnapshot struct {
	CardID               card.CardID
	Status               card.Status
	Expiration           card.Expiration
	AvailableCreditCents int64
}

// SnapshotCard captures the gateway-facing view of a card.
func SnapshotCard(c *card.Card) CardSnapshot {
	return CardSnapshot{
		CardID:               c.ID(),
		Status:               c.Status(),
		Expiration:           c.Expiration(),
		AvailableCreditCents: c.AvailableCreditCents(),
	}
}

// GatewayResult is the outcome of a gateway authorization attempt. A
// declined charge is not an error: Success is false and ErrorMessage
// carries the decline reason.
type GatewayResult struct {
	Success           bool
	AuthorizationCode string
	ErrorMessage      string
}

// Gateway is the external payment-processor capability. Process may take
// variable latency and must honor ctx cancellation. Void is a best-effort
// reversal of a prior authorization, used when the local charge fails
// after the gateway already approved.
type Gateway interface {
	Process(ctx context.Context, snapshot CardSnapshot, amount domain.AmountCents, merchantName string) (GatewayResult, error)
	Void(ctx context.Context, authorizationCode string) error
}
