// Package gateway provides payment.Gateway implementations: a randomized
// simulator for manual and integration exercises, and a scripted gateway
// with fixed outcomes for tests.
package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
	"github.com/icredito/credito/pkg/payment"
)

const (
	defaultSuccessRate = 0.95
	defaultMinDelay    = 100 * time.Millisecond
	defaultMaxDelay    = 500 * time.Millisecond
)

var declineReasons = []string{
	"issuer connection error",
	"transaction rejected by issuer",
	"temporary system error",
	"transaction limit exceeded",
}

// SimulatedOption configures a Simulated gateway.
type SimulatedOption func(*Simulated)

// WithRandSource seeds the simulator's randomness.
func WithRandSource(source rand.Source) SimulatedOption {
	return func(simulated *Simulated) {
		simulated.rng = rand.New(source)
	}
}

// WithSuccessRate overrides the approval probability.
func WithSuccessRate(rate float64) SimulatedOption {
	return func(simulated *Simulated) {
		simulated.successRate = rate
	}
}

// WithDelayBounds overrides the simulated network latency range.
func WithDelayBounds(min time.Duration, max time.Duration) SimulatedOption {
	return func(simulated *Simulated) {
		simulated.minDelay = min
		simulated.maxDelay = max
	}
}

// WithClock overrides the clock used for expiry checks and codes.
func WithClock(now func() time.Time) SimulatedOption {
	return func(simulated *Simulated) {
		simulated.nowFn = now
	}
}

// Simulated behaves like a real processor: variable latency, a configurable
// approval rate, and decline reasons drawn from a fixed pool.
type Simulated struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	nowFn       func() time.Time
	logger      *zap.Logger
}

// NewSimulated wires a Simulated gateway.
func NewSimulated(logger *zap.Logger, options ...SimulatedOption) *Simulated {
	if logger == nil {
		logger = zap.NewNop()
	}
	simulated := &Simulated{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: defaultSuccessRate,
		minDelay:    defaultMinDelay,
		maxDelay:    defaultMaxDelay,
		nowFn:       time.Now,
		logger:      logger,
	}
	for _, option := range options {
		if option != nil {
			option(simulated)
		}
	}
	return simulated
}

// Process simulates an authorization attempt against the card snapshot.
func (simulated *Simulated) Process(ctx context.Context, snapshot payment.CardSnapshot, amount domain.AmountCents, merchantName string) (payment.GatewayResult, error) {
	if err := simulated.simulateLatency(ctx); err != nil {
		return payment.GatewayResult{}, err
	}

	now := simulated.nowFn()
	simulated.logger.Info("processing simulated charge",
		zap.String("card_id", snapshot.CardID.String()),
		zap.Int64("amount_cents", amount.Int64()),
		zap.String("merchant", merchantName),
	)

	if snapshot.Status != card.StatusActive {
		return decline("card not active"), nil
	}
	if snapshot.Expiration.IsExpired(now) {
		return decline("card expired"), nil
	}
	if amount.Int64() > snapshot.AvailableCreditCents {
		return decline("insufficient credit"), nil
	}

	simulated.mu.Lock()
	roll := simulated.rng.Float64()
	reasonIndex := simulated.rng.Intn(len(declineReasons))
	codeSuffix := simulated.rng.Intn(900_000) + 100_000
	simulated.mu.Unlock()

	if roll > simulated.successRate {
		reason := declineReasons[reasonIndex]
		simulated.logger.Warn("simulated decline", zap.String("reason", reason))
		return decline(reason), nil
	}

	code := fmt.Sprintf("SIM-%s-%06d", now.UTC().Format("20060102"), codeSuffix)
	simulated.logger.Info("simulated approval", zap.String("authorization_code", code))
	return payment.GatewayResult{Success: true, AuthorizationCode: code}, nil
}

// Void logs the reversal request. The simulator holds no state to release.
func (simulated *Simulated) Void(ctx context.Context, authorizationCode string) error {
	simulated.logger.Info("voiding simulated authorization", zap.String("authorization_code", authorizationCode))
	return nil
}

func (simulated *Simulated) simulateLatency(ctx context.Context) error {
	simulated.mu.Lock()
	delay := simulated.minDelay
	if spread := simulated.maxDelay - simulated.minDelay; spread > 0 {
		delay += time.Duration(simulated.rng.Int63n(int64(spread)))
	}
	simulated.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func decline(reason string) payment.GatewayResult {
	return payment.GatewayResult{Success: false, ErrorMessage: reason}
}

var _ payment.Gateway = (*Simulated)(nil)
