package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/icredito/credito/pkg/domain"
	"github.com/icredito/credito/pkg/payment"
)

// Scripted replays a fixed sequence of gateway outcomes. Once the script
// is exhausted every further charge is approved with a sequential code.
// It records voided authorization codes for inspection.
type Scripted struct {
	mu       sync.Mutex
	script   []payment.GatewayResult
	index    int
	approved int
	voided   []string
}

// NewScripted wires a Scripted gateway with the given outcomes.
func NewScripted(script ...payment.GatewayResult) *Scripted {
	return &Scripted{script: script}
}

// Approve builds a scripted approval.
func Approve(authorizationCode string) payment.GatewayResult {
	return payment.GatewayResult{Success: true, AuthorizationCode: authorizationCode}
}

// Decline builds a scripted decline.
func Decline(reason string) payment.GatewayResult {
	return payment.GatewayResult{Success: false, ErrorMessage: reason}
}

// Process pops the next scripted outcome.
func (scripted *Scripted) Process(ctx context.Context, snapshot payment.CardSnapshot, amount domain.AmountCents, merchantName string) (payment.GatewayResult, error) {
	if err := ctx.Err(); err != nil {
		return payment.GatewayResult{}, err
	}
	scripted.mu.Lock()
	defer scripted.mu.Unlock()
	if scripted.index < len(scripted.script) {
		next := scripted.script[scripted.index]
		scripted.index++
		return next, nil
	}
	scripted.approved++
	return payment.GatewayResult{Success: true, AuthorizationCode: fmt.Sprintf("AUTH-%06d", scripted.approved)}, nil
}

// Void records the reversed authorization code.
func (scripted *Scripted) Void(ctx context.Context, authorizationCode string) error {
	scripted.mu.Lock()
	defer scripted.mu.Unlock()
	scripted.voided = append(scripted.voided, authorizationCode)
	return nil
}

// Voided returns the authorization codes reversed so far.
func (scripted *Scripted) Voided() []string {
	scripted.mu.Lock()
	defer scripted.mu.Unlock()
	codes := make([]string, len(scripted.voided))
	copy(codes, scripted.voided)
	return codes
}

var _ payment.Gateway = (*Scripted)(nil)
