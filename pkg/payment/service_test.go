package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
	"github.com/icredito/credito/pkg/ledger"
)

type stubCards struct {
	cards map[string]*card.Card
}

func newStubCards() *stubCards {
	return &stubCards{cards: map[string]*card.Card{}}
}

func cloneCard(c *card.Card) *card.Card {
	limit, err := card.NewCreditLimit(c.LimitCents())
	if err != nil {
		panic(err)
	}
	expiration, err := card.StoredExpiration(c.Expiration().Month(), c.Expiration().Year())
	if err != nil {
		panic(err)
	}
	return card.Rehydrate(
		c.ID(), c.UserID(), c.Number(), c.Holder(), expiration, c.CVV(),
		c.Brand(), c.Kind(), limit, c.BalanceCents(), c.Status(), c.Alias(),
		c.CreatedAt(), c.UpdatedAt(), c.Version(),
	)
}

func (store *stubCards) GetCard(ctx context.Context, id card.CardID) (*card.Card, error) {
	if c, ok := store.cards[id.String()]; ok {
		return cloneCard(c), nil
	}
	return nil, card.ErrCardNotFound
}

func (store *stubCards) GetCardForUser(ctx context.Context, id card.CardID, userID domain.UserID) (*card.Card, error) {
	c, ok := store.cards[id.String()]
	if !ok || c.UserID() != userID {
		return nil, card.ErrCardNotFound
	}
	return cloneCard(c), nil
}

func (store *stubCards) CardNumberExists(ctx context.Context, number card.Number) (bool, error) {
	return false, nil
}

func (store *stubCards) AddCard(ctx context.Context, c *card.Card) error {
	store.cards[c.ID().String()] = cloneCard(c)
	return nil
}

func (store *stubCards) UpdateCard(ctx context.Context, c *card.Card) error {
	if _, ok := store.cards[c.ID().String()]; !ok {
		return card.ErrCardNotFound
	}
	store.cards[c.ID().String()] = cloneCard(c)
	return nil
}

func (store *stubCards) ListCardsForUser(ctx context.Context, userID domain.UserID) ([]*card.Card, error) {
	return nil, nil
}

type stubPayments struct {
	payments map[string]*Payment
	// staleRead, when set, is what GetPaymentForUser returns for its id,
	// mimicking a read that predates a concurrent commit.
	staleRead *Payment
}

func newStubPayments() *stubPayments {
	return &stubPayments{payments: map[string]*Payment{}}
}

func clonePayment(p *Payment) *Payment {
	return Rehydrate(
		p.ID(), p.Reference(), p.UserID(), p.CardID(), p.Amount(), p.Currency(),
		p.MerchantName(), p.MerchantCategory(), p.Description(), p.Status(),
		p.AuthorizationCode(), p.FailureReason(), p.IdempotencyKey(),
		p.CreatedAt(), p.ProcessedAt(), p.CompletedAt(),
	)
}

func (store *stubPayments) GetPaymentForUser(ctx context.Context, id ID, userID domain.UserID) (*Payment, error) {
	if store.staleRead != nil && store.staleRead.ID().Equal(id) && store.staleRead.UserID() == userID {
		return clonePayment(store.staleRead), nil
	}
	p, ok := store.payments[id.String()]
	if !ok || p.UserID() != userID {
		return nil, ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (store *stubPayments) GetPaymentByReference(ctx context.Context, reference string, userID domain.UserID) (*Payment, error) {
	for _, p := range store.payments {
		if p.Reference() == reference && p.UserID() == userID {
			return clonePayment(p), nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (store *stubPayments) GetPaymentByIdempotencyKey(ctx context.Context, key string, userID domain.UserID) (*Payment, error) {
	for _, p := range store.payments {
		if p.IdempotencyKey() == key && p.UserID() == userID {
			return clonePayment(p), nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (store *stubPayments) AddPayment(ctx context.Context, p *Payment) error {
	if key := p.IdempotencyKey(); key != "" {
		for _, existing := range store.payments {
			if existing.IdempotencyKey() == key && existing.UserID() == p.UserID() {
				return ErrDuplicatePayment
			}
		}
	}
	store.payments[p.ID().String()] = clonePayment(p)
	return nil
}

func (store *stubPayments) UpdatePayment(ctx context.Context, p *Payment) error {
	existing, ok := store.payments[p.ID().String()]
	if !ok {
		return ErrPaymentNotFound
	}
	if existing.Status() != p.Status().Prior() {
		return ErrPaymentConflict
	}
	store.payments[p.ID().String()] = clonePayment(p)
	return nil
}

func (store *stubPayments) ListPaymentsForUser(ctx context.Context, userID domain.UserID, page int, pageSize int) (PaymentPage, error) {
	listed := make([]*Payment, 0, len(store.payments))
	for _, p := range store.payments {
		if p.UserID() == userID {
			listed = append(listed, p)
		}
	}
	return PaymentPage{Payments: listed, TotalCount: int64(len(listed)), Page: page, PageSize: pageSize}, nil
}

type stubEntries struct {
	entries []ledger.Entry
}

func (store *stubEntries) AppendEntry(ctx context.Context, entry ledger.Entry) error {
	store.entries = append(store.entries, entry)
	return nil
}

func (store *stubEntries) GetEntryForUser(ctx context.Context, id ledger.EntryID, userID domain.UserID) (ledger.Entry, error) {
	for _, entry := range store.entries {
		if entry.ID() == id && entry.UserID() == userID {
			return entry, nil
		}
	}
	return ledger.Entry{}, ledger.ErrEntryNotFound
}

func (store *stubEntries) ListEntriesForUser(ctx context.Context, userID domain.UserID, filter ledger.Filter) (ledger.Page, error) {
	return ledger.Page{Entries: store.entries}, nil
}

func (store *stubEntries) ListEntriesForCard(ctx context.Context, cardID card.CardID, userID domain.UserID, filter ledger.Filter) (ledger.Page, error) {
	return ledger.Page{Entries: store.entries}, nil
}

func (store *stubEntries) SumByType(ctx context.Context, userID domain.UserID, from time.Time, to time.Time) ([]ledger.TypeTotal, error) {
	return nil, nil
}

// stubEnv bundles the three stores behind a unit of work that restores its
// snapshot whenever fn fails, mimicking a rolled-back transaction.
type stubEnv struct {
	cards     *stubCards
	payments  *stubPayments
	entries   *stubEntries
	commitErr error
}

func newStubEnv() *stubEnv {
	return &stubEnv{
		cards:    newStubCards(),
		payments: newStubPayments(),
		entries:  &stubEntries{},
	}
}

func (env *stubEnv) Cards() card.Store     { return env.cards }
func (env *stubEnv) Payments() Store       { return env.payments }
func (env *stubEnv) Entries() ledger.Store { return env.entries }

func (env *stubEnv) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStores) error) error {
	cardsSnapshot := make(map[string]*card.Card, len(env.cards.cards))
	for key, value := range env.cards.cards {
		cardsSnapshot[key] = value
	}
	paymentsSnapshot := make(map[string]*Payment, len(env.payments.payments))
	for key, value := range env.payments.payments {
		paymentsSnapshot[key] = value
	}
	entriesSnapshot := len(env.entries.entries)

	err := fn(ctx, env)
	if err == nil && env.commitErr != nil {
		err = env.commitErr
	}
	if err != nil {
		env.cards.cards = cardsSnapshot
		env.payments.payments = paymentsSnapshot
		env.entries.entries = env.entries.entries[:entriesSnapshot]
	}
	return err
}

type stubGateway struct {
	results []GatewayResult
	err     error
	voided  []string
	calls   int
}

func (gateway *stubGateway) Process(ctx context.Context, snapshot CardSnapshot, amount domain.AmountCents, merchantName string) (GatewayResult, error) {
	gateway.calls++
	if gateway.err != nil {
		return GatewayResult{}, gateway.err
	}
	if len(gateway.results) == 0 {
		return GatewayResult{Success: true, AuthorizationCode: "AUTH-TEST"}, nil
	}
	result := gateway.results[0]
	gateway.results = gateway.results[1:]
	return result, nil
}

func (gateway *stubGateway) Void(ctx context.Context, authorizationCode string) error {
	gateway.voided = append(gateway.voided, authorizationCode)
	return nil
}

type recordingPublisher struct {
	events []domain.Event
}

func (publisher *recordingPublisher) Publish(ctx context.Context, events ...domain.Event) {
	publisher.events = append(publisher.events, events...)
}

func (publisher *recordingPublisher) names() []string {
	names := make([]string, 0, len(publisher.events))
	for _, event := range publisher.events {
		names = append(names, event.EventName())
	}
	return names
}

type serviceFixture struct {
	env       *stubEnv
	gateway   *stubGateway
	publisher *recordingPublisher
	service   *Service
	userID    domain.UserID
	cardID    card.CardID
}

func newServiceFixture(test *testing.T, limitCents int64) *serviceFixture {
	test.Helper()
	env := newStubEnv()
	gateway := &stubGateway{}
	publisher := &recordingPublisher{}

	sequence := 0
	generate := func() string {
		sequence++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", sequence)
	}

	service, err := NewService(env.cards, env.payments, env, gateway,
		func() time.Time { return paymentNow },
		WithPublisher(publisher),
		WithIDGenerator(generate),
	)
	if err != nil {
		test.Fatalf("service: %v", err)
	}

	userID, err := domain.NewUserID("user-1")
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	holder, err := card.NewHolderName("Maria Souza")
	if err != nil {
		test.Fatalf("holder: %v", err)
	}
	number, err := card.NewNumber("4111111111111111")
	if err != nil {
		test.Fatalf("number: %v", err)
	}
	expiration, err := card.NewExpiration(12, 2030, paymentNow)
	if err != nil {
		test.Fatalf("expiration: %v", err)
	}
	cvv, err := card.NewCVV("123")
	if err != nil {
		test.Fatalf("cvv: %v", err)
	}
	brand, err := card.ParseBrand("visa")
	if err != nil {
		test.Fatalf("brand: %v", err)
	}
	kind, err := card.ParseKind("gold")
	if err != nil {
		test.Fatalf("kind: %v", err)
	}
	limit, err := card.NewCreditLimit(limitCents)
	if err != nil {
		test.Fatalf("limit: %v", err)
	}
	cardID, err := card.NewCardID("card-1")
	if err != nil {
		test.Fatalf("card id: %v", err)
	}
	opened := card.Open(cardID, userID, number, holder, expiration, cvv, brand, kind, limit, "", paymentNow)
	opened.PullEvents()
	if err := env.cards.AddCard(context.Background(), opened); err != nil {
		test.Fatalf("seed card: %v", err)
	}

	return &serviceFixture{
		env:       env,
		gateway:   gateway,
		publisher: publisher,
		service:   service,
		userID:    userID,
		cardID:    cardID,
	}
}

func (fixture *serviceFixture) chargeParams(test *testing.T, cents int64) ChargeParams {
	test.Helper()
	amount, err := domain.NewAmountCents(cents)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	currency, err := domain.NewCurrency("BRL")
	if err != nil {
		test.Fatalf("currency: %v", err)
	}
	return ChargeParams{
		CardID:           fixture.cardID,
		Amount:           amount,
		Currency:         currency,
		MerchantName:     "Mercado Livre",
		MerchantCategory: "marketplace",
	}
}

func (fixture *serviceFixture) storedCard(test *testing.T) *card.Card {
	test.Helper()
	c, err := fixture.env.cards.GetCard(context.Background(), fixture.cardID)
	if err != nil {
		test.Fatalf("stored card: %v", err)
	}
	return c
}

func TestProcessPaymentSuccessCommitsTrio(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)

	result, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 30_000))
	if err != nil {
		test.Fatalf("process: %v", err)
	}
	if result.Status != StatusCompleted {
		test.Fatalf("expected completed, got %s", result.Status)
	}
	if result.AuthorizationCode != "AUTH-TEST" {
		test.Fatalf("unexpected authorization code: %q", result.AuthorizationCode)
	}

	if fixture.storedCard(test).BalanceCents() != 30_000 {
		test.Fatalf("expected balance 30000, got %d", fixture.storedCard(test).BalanceCents())
	}
	if len(fixture.env.payments.payments) != 1 {
		test.Fatalf("expected one stored payment, got %d", len(fixture.env.payments.payments))
	}
	stored, err := fixture.env.payments.GetPaymentForUser(context.Background(), result.PaymentID, fixture.userID)
	if err != nil {
		test.Fatalf("stored payment: %v", err)
	}
	if stored.Status() != StatusCompleted {
		test.Fatalf("stored payment status %s", stored.Status())
	}
	if len(fixture.env.entries.entries) != 1 {
		test.Fatalf("expected one ledger entry, got %d", len(fixture.env.entries.entries))
	}
	entry := fixture.env.entries.entries[0]
	if entry.Type() != ledger.TypePurchase {
		test.Fatalf("expected purchase entry, got %s", entry.Type())
	}
	if entry.BalanceBeforeCents() != 0 || entry.BalanceAfterCents() != 30_000 {
		test.Fatalf("unexpected snapshots: %d -> %d", entry.BalanceBeforeCents(), entry.BalanceAfterCents())
	}
	if entry.PaymentID() != result.PaymentID.String() {
		test.Fatalf("entry not linked to payment: %q", entry.PaymentID())
	}

	names := fixture.publisher.names()
	if len(names) == 0 {
		test.Fatal("no events published after commit")
	}
	wantEvents := map[string]bool{"card.charged": false, "ledger.entry_recorded": false, "payment.completed": false}
	for _, name := range names {
		if _, ok := wantEvents[name]; ok {
			wantEvents[name] = true
		}
	}
	for name, seen := range wantEvents {
		if !seen {
			test.Fatalf("expected %s event, got %v", name, names)
		}
	}
}

func TestProcessPaymentDeclinePersistsFailedPaymentOnly(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)
	fixture.gateway.results = []GatewayResult{{Success: false, ErrorMessage: "transaction rejected by issuer"}}

	result, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 30_000))
	if err != nil {
		test.Fatalf("a decline is a result, not an error: %v", err)
	}
	if result.Status != StatusFailed {
		test.Fatalf("expected failed, got %s", result.Status)
	}
	if result.FailureReason != "transaction rejected by issuer" {
		test.Fatalf("unexpected reason: %q", result.FailureReason)
	}

	if fixture.storedCard(test).BalanceCents() != 0 {
		test.Fatal("decline mutated the card balance")
	}
	if len(fixture.env.payments.payments) != 1 {
		test.Fatalf("expected the failed attempt persisted, got %d payments", len(fixture.env.payments.payments))
	}
	if len(fixture.env.entries.entries) != 0 {
		test.Fatal("decline appended a ledger entry")
	}
	if len(fixture.gateway.voided) != 0 {
		test.Fatal("decline voided an authorization")
	}
}

func TestProcessPaymentGatewayErrorPersistsNothing(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)
	fixture.gateway.err = errors.New("gateway unreachable")

	_, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 30_000))
	if err == nil {
		test.Fatal("expected gateway error")
	}
	if len(fixture.env.payments.payments) != 0 {
		test.Fatal("broken gateway call left a payment behind")
	}
	if fixture.storedCard(test).BalanceCents() != 0 {
		test.Fatal("broken gateway call mutated the card")
	}
}

func TestProcessPaymentChargeFailureVoidsAuthorization(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 10_000)

	result, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 20_000))
	if err != nil {
		test.Fatalf("charge failure is a result, not an error: %v", err)
	}
	if result.Status != StatusFailed {
		test.Fatalf("expected failed, got %s", result.Status)
	}

	if fixture.storedCard(test).BalanceCents() != 0 {
		test.Fatal("failed charge mutated the balance")
	}
	if len(fixture.env.entries.entries) != 0 {
		test.Fatal("failed charge appended a ledger entry")
	}
	if len(fixture.env.payments.payments) != 1 {
		test.Fatalf("expected failed attempt persisted, got %d", len(fixture.env.payments.payments))
	}
	if len(fixture.gateway.voided) != 1 || fixture.gateway.voided[0] != "AUTH-TEST" {
		test.Fatalf("expected authorization voided, got %v", fixture.gateway.voided)
	}
}

func TestProcessPaymentCommitFailureDiscardsEverything(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)
	fixture.env.commitErr = errors.New("commit failed")

	_, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 30_000))
	if err == nil {
		test.Fatal("expected commit error")
	}
	if fixture.storedCard(test).BalanceCents() != 0 {
		test.Fatal("failed commit left a balance change")
	}
	if len(fixture.env.payments.payments) != 0 {
		test.Fatal("failed commit left a payment")
	}
	if len(fixture.env.entries.entries) != 0 {
		test.Fatal("failed commit left a ledger entry")
	}
}

func TestProcessPaymentIdempotentReplay(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)

	params := fixture.chargeParams(test, 30_000)
	params.IdempotencyKey = "order-42"

	first, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, params)
	if err != nil {
		test.Fatalf("first charge: %v", err)
	}
	second, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, params)
	if err != nil {
		test.Fatalf("replay: %v", err)
	}

	if !second.Duplicate {
		test.Fatal("replay not marked duplicate")
	}
	if !second.PaymentID.Equal(first.PaymentID) {
		test.Fatalf("replay returned a different payment: %s vs %s", second.PaymentID, first.PaymentID)
	}
	if fixture.storedCard(test).BalanceCents() != 30_000 {
		test.Fatalf("replay charged again: balance %d", fixture.storedCard(test).BalanceCents())
	}
	if len(fixture.env.payments.payments) != 1 {
		test.Fatalf("replay persisted a second payment: %d", len(fixture.env.payments.payments))
	}
	if fixture.gateway.calls != 1 {
		test.Fatalf("replay reached the gateway: %d calls", fixture.gateway.calls)
	}
}

func TestProcessPaymentRequiresMerchant(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)
	params := fixture.chargeParams(test, 1_000)
	params.MerchantName = "   "

	if _, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, params); !errors.Is(err, ErrMerchantRequired) {
		test.Fatalf("expected ErrMerchantRequired, got %v", err)
	}
}

func TestRefundRestoresBalanceAndAppendsEntry(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)

	charged, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 30_000))
	if err != nil {
		test.Fatalf("charge: %v", err)
	}

	refunded, err := fixture.service.RefundPayment(context.Background(), charged.PaymentID, fixture.userID)
	if err != nil {
		test.Fatalf("refund: %v", err)
	}
	if refunded.Status != StatusRefunded {
		test.Fatalf("expected refunded, got %s", refunded.Status)
	}
	if fixture.storedCard(test).BalanceCents() != 0 {
		test.Fatalf("expected balance restored to zero, got %d", fixture.storedCard(test).BalanceCents())
	}

	if len(fixture.env.entries.entries) != 2 {
		test.Fatalf("expected purchase plus refund entries, got %d", len(fixture.env.entries.entries))
	}
	refundEntry := fixture.env.entries.entries[1]
	if refundEntry.Type() != ledger.TypeRefund {
		test.Fatalf("expected refund entry, got %s", refundEntry.Type())
	}
	if refundEntry.BalanceBeforeCents() != 30_000 || refundEntry.BalanceAfterCents() != 0 {
		test.Fatalf("unexpected refund snapshots: %d -> %d", refundEntry.BalanceBeforeCents(), refundEntry.BalanceAfterCents())
	}
}

func TestRefundClampedToRemainingBalance(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)

	charged, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 30_000))
	if err != nil {
		test.Fatalf("charge: %v", err)
	}

	payAmount, err := domain.NewAmountCents(20_000)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	currency, err := domain.NewCurrency("BRL")
	if err != nil {
		test.Fatalf("currency: %v", err)
	}
	if _, err := fixture.service.PayBalance(context.Background(), fixture.userID, PayBalanceParams{CardID: fixture.cardID, Amount: payAmount, Currency: currency}); err != nil {
		test.Fatalf("pay balance: %v", err)
	}
	if fixture.storedCard(test).BalanceCents() != 10_000 {
		test.Fatalf("expected balance 10000, got %d", fixture.storedCard(test).BalanceCents())
	}

	refunded, err := fixture.service.RefundPayment(context.Background(), charged.PaymentID, fixture.userID)
	if err != nil {
		test.Fatalf("refund: %v", err)
	}
	if refunded.Status != StatusRefunded {
		test.Fatalf("expected refunded, got %s", refunded.Status)
	}
	if fixture.storedCard(test).BalanceCents() != 0 {
		test.Fatalf("expected zero balance, got %d", fixture.storedCard(test).BalanceCents())
	}

	refundEntry := fixture.env.entries.entries[len(fixture.env.entries.entries)-1]
	if refundEntry.Type() != ledger.TypeRefund {
		test.Fatalf("expected refund entry, got %s", refundEntry.Type())
	}
	if refundEntry.AmountCents().Int64() != 10_000 {
		test.Fatalf("expected clamped refund of 10000, got %d", refundEntry.AmountCents().Int64())
	}
	if refundEntry.BalanceBeforeCents() != 10_000 || refundEntry.BalanceAfterCents() != 0 {
		test.Fatalf("unexpected refund snapshots: %d -> %d", refundEntry.BalanceBeforeCents(), refundEntry.BalanceAfterCents())
	}
}

func TestRefundRejectedForFailedPayment(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)
	fixture.gateway.results = []GatewayResult{{Success: false, ErrorMessage: "declined"}}

	failed, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 30_000))
	if err != nil {
		test.Fatalf("charge: %v", err)
	}
	if _, err := fixture.service.RefundPayment(context.Background(), failed.PaymentID, fixture.userID); !errors.Is(err, ErrRefundNotAllowed) {
		test.Fatalf("expected ErrRefundNotAllowed, got %v", err)
	}
}

func TestRefundAppliedOnceUnderStaleRead(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)

	first, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 15_000))
	if err != nil {
		test.Fatalf("first charge: %v", err)
	}
	if _, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 15_000)); err != nil {
		test.Fatalf("second charge: %v", err)
	}
	if fixture.storedCard(test).BalanceCents() != 30_000 {
		test.Fatalf("expected balance 30000, got %d", fixture.storedCard(test).BalanceCents())
	}

	// Capture the payment while it is still completed, then refund it for
	// real. A second refund working from the captured snapshot mimics a
	// request that read the payment before the first one committed.
	stale, err := fixture.env.payments.GetPaymentForUser(context.Background(), first.PaymentID, fixture.userID)
	if err != nil {
		test.Fatalf("snapshot: %v", err)
	}
	if _, err := fixture.service.RefundPayment(context.Background(), first.PaymentID, fixture.userID); err != nil {
		test.Fatalf("refund: %v", err)
	}
	if fixture.storedCard(test).BalanceCents() != 15_000 {
		test.Fatalf("expected balance 15000 after refund, got %d", fixture.storedCard(test).BalanceCents())
	}

	fixture.env.payments.staleRead = stale
	if _, err := fixture.service.RefundPayment(context.Background(), first.PaymentID, fixture.userID); !errors.Is(err, ErrPaymentConflict) {
		test.Fatalf("expected ErrPaymentConflict, got %v", err)
	}

	if fixture.storedCard(test).BalanceCents() != 15_000 {
		test.Fatalf("balance restored twice: got %d", fixture.storedCard(test).BalanceCents())
	}
	refunds := 0
	for _, entry := range fixture.env.entries.entries {
		if entry.Type() == ledger.TypeRefund {
			refunds++
		}
	}
	if refunds != 1 {
		test.Fatalf("expected a single refund entry, got %d", refunds)
	}
}

func TestProcessPaymentRejectsZeroAmount(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)

	currency, err := domain.NewCurrency("BRL")
	if err != nil {
		test.Fatalf("currency: %v", err)
	}
	params := ChargeParams{
		CardID:       fixture.cardID,
		Currency:     currency,
		MerchantName: "Mercado Livre",
	}
	if _, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, params); !errors.Is(err, domain.ErrInvalidAmountCents) {
		test.Fatalf("expected ErrInvalidAmountCents, got %v", err)
	}
	if fixture.gateway.calls != 0 {
		test.Fatalf("gateway should not be reached, got %d calls", fixture.gateway.calls)
	}
	if len(fixture.env.payments.payments) != 0 || len(fixture.env.entries.entries) != 0 {
		test.Fatalf("nothing should be persisted for a zero amount")
	}

	if _, err := fixture.service.PayBalance(context.Background(), fixture.userID, PayBalanceParams{CardID: fixture.cardID, Currency: currency}); !errors.Is(err, domain.ErrInvalidAmountCents) {
		test.Fatalf("expected ErrInvalidAmountCents for pay balance, got %v", err)
	}
}

func TestPayBalanceClampsAndRecordsEntry(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)

	if _, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 30_000)); err != nil {
		test.Fatalf("charge: %v", err)
	}

	amount, err := domain.NewAmountCents(50_000)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	currency, err := domain.NewCurrency("BRL")
	if err != nil {
		test.Fatalf("currency: %v", err)
	}
	result, err := fixture.service.PayBalance(context.Background(), fixture.userID, PayBalanceParams{CardID: fixture.cardID, Amount: amount, Currency: currency})
	if err != nil {
		test.Fatalf("pay balance: %v", err)
	}
	if result.AppliedCents != 30_000 {
		test.Fatalf("expected applied 30000, got %d", result.AppliedCents)
	}
	if result.BalanceCents != 0 {
		test.Fatalf("expected zero balance, got %d", result.BalanceCents)
	}

	paymentEntry := fixture.env.entries.entries[len(fixture.env.entries.entries)-1]
	if paymentEntry.Type() != ledger.TypePayment {
		test.Fatalf("expected payment entry, got %s", paymentEntry.Type())
	}
	if paymentEntry.AmountCents().Int64() != 30_000 {
		test.Fatalf("expected entry amount 30000, got %d", paymentEntry.AmountCents().Int64())
	}
}

func TestPayBalanceOnZeroBalanceAppendsNothing(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)

	amount, err := domain.NewAmountCents(5_000)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	currency, err := domain.NewCurrency("BRL")
	if err != nil {
		test.Fatalf("currency: %v", err)
	}
	result, err := fixture.service.PayBalance(context.Background(), fixture.userID, PayBalanceParams{CardID: fixture.cardID, Amount: amount, Currency: currency})
	if err != nil {
		test.Fatalf("pay balance: %v", err)
	}
	if result.AppliedCents != 0 {
		test.Fatalf("expected applied 0, got %d", result.AppliedCents)
	}
	if len(fixture.env.entries.entries) != 0 {
		test.Fatal("zero-amount payment appended an entry")
	}
}

func TestListPaymentsPageBounds(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)
	if _, err := fixture.service.ListPayments(context.Background(), fixture.userID, 1, 101); !errors.Is(err, ErrInvalidPageBounds) {
		test.Fatalf("expected ErrInvalidPageBounds, got %v", err)
	}
	if _, err := fixture.service.ListPayments(context.Background(), fixture.userID, -1, 10); !errors.Is(err, ErrInvalidPageBounds) {
		test.Fatalf("expected ErrInvalidPageBounds, got %v", err)
	}
}

func TestReferenceFormat(test *testing.T) {
	test.Parallel()
	fixture := newServiceFixture(test, 100_000)

	result, err := fixture.service.ProcessPayment(context.Background(), fixture.userID, fixture.chargeParams(test, 1_000))
	if err != nil {
		test.Fatalf("charge: %v", err)
	}
	if len(result.Reference) != len("PAY-20260315-00000000") {
		test.Fatalf("unexpected reference length: %q", result.Reference)
	}
	if result.Reference[:13] != "PAY-20260315-" {
		test.Fatalf("unexpected reference prefix: %q", result.Reference)
	}
}
