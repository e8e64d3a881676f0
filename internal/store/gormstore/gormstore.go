package gormstore

import (
	"context"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
	"github.com/icredito/credito/pkg/ledger"
	"github.com/icredito/credito/pkg/payment"
)

const (
	constraintCardNumber     = "uniq_cards_number"
	constraintPaymentIdem    = "uniq_payments_user_idem"
	constraintPaymentRef     = "uniq_payments_reference"
	defaultMetadataJSON      = "{}"
	pgUniqueViolationCode    = "23505"
	sqliteConstraintCode     = 19
	errorOperationStore      = "store"
	errorSubjectCard         = "card"
	errorSubjectPayment      = "payment"
	errorSubjectTransaction  = "transaction"
	errorCodeCreate          = "create"
	errorCodeDuplicate       = "duplicate"
	errorCodeGet             = "get"
	errorCodeInvalid         = "invalid"
	errorCodeList            = "list"
	errorCodeLookup          = "lookup"
	errorCodeSumByType       = "sum_by_type"
	errorCodeUpdate          = "update"
	errorCodeVersionConflict = "version_conflict"
)

// Store implements the card, payment, and transaction persistence ports on
// one gorm handle, and doubles as the unit of work that runs all three
// against a single transaction.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var (
	_ card.Store         = (*Store)(nil)
	_ payment.Store      = (*Store)(nil)
	_ ledger.Store       = (*Store)(nil)
	_ payment.UnitOfWork = (*Store)(nil)
	_ payment.TxStores   = (*Store)(nil)
)

// WithTx executes fn within one database transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx payment.TxStores) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// Cards exposes the card port on the current transaction.
func (store *Store) Cards() card.Store { return store }

// Payments exposes the payment port on the current transaction.
func (store *Store) Payments() payment.Store { return store }

// Entries exposes the transaction-history port on the current transaction.
func (store *Store) Entries() ledger.Store { return store }

func (store *Store) GetCard(ctx context.Context, id card.CardID) (*card.Card, error) {
	return store.getCard(ctx, func(query *gorm.DB) *gorm.DB {
		return query.Where("card_id = ?", id.String())
	})
}

func (store *Store) GetCardForUser(ctx context.Context, id card.CardID, userID domain.UserID) (*card.Card, error) {
	return store.getCard(ctx, func(query *gorm.DB) *gorm.DB {
		return query.Where("card_id = ? AND user_id = ?", id.String(), userID.String())
	})
}

func (store *Store) getCard(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (*card.Card, error) {
	var model CardModel
	err := scope(store.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wrapStoreError(errorSubjectCard, errorCodeGet, card.ErrCardNotFound)
		}
		return nil, wrapStoreError(errorSubjectCard, errorCodeGet, err)
	}
	loaded, err := mapCard(model)
	if err != nil {
		return nil, wrapStoreError(errorSubjectCard, errorCodeInvalid, err)
	}
	return loaded, nil
}

func (store *Store) CardNumberExists(ctx context.Context, number card.Number) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&CardModel{}).
		Where("card_number = ?", number.String()).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectCard, errorCodeLookup, err)
	}
	return count > 0, nil
}

func (store *Store) AddCard(ctx context.Context, c *card.Card) error {
	model := cardModel(c)
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintCardNumber) {
		return wrapStoreError(errorSubjectCard, errorCodeDuplicate, card.ErrCardNumberExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectCard, errorCodeCreate, err)
	}
	return nil
}

// UpdateCard writes the mutable card fields guarded by the version the
// aggregate was loaded at. A concurrent writer makes RowsAffected zero and
// the caller retries with a fresh load.
func (store *Store) UpdateCard(ctx context.Context, c *card.Card) error {
	result := store.db.WithContext(ctx).
		Model(&CardModel{}).
		Where("card_id = ? AND version = ?", c.ID().String(), c.Version()).
		Updates(map[string]interface{}{
			"balance_cents": c.BalanceCents(),
			"status":        c.Status().String(),
			"alias":         c.Alias(),
			"updated_at":    c.UpdatedAt(),
			"version":       c.Version() + 1,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCard, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCard, errorCodeVersionConflict, card.ErrCardConflict)
	}
	return nil
}

func (store *Store) ListCardsForUser(ctx context.Context, userID domain.UserID) ([]*card.Card, error) {
	var rows []CardModel
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectCard, errorCodeList, err)
	}
	cards := make([]*card.Card, 0, len(rows))
	for _, row := range rows {
		loaded, err := mapCard(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectCard, errorCodeInvalid, err)
		}
		cards = append(cards, loaded)
	}
	return cards, nil
}

func (store *Store) GetPaymentForUser(ctx context.Context, id payment.ID, userID domain.UserID) (*payment.Payment, error) {
	return store.getPayment(ctx, func(query *gorm.DB) *gorm.DB {
		return query.Where("payment_id = ? AND user_id = ?", id.String(), userID.String())
	})
}

func (store *Store) GetPaymentByReference(ctx context.Context, reference string, userID domain.UserID) (*payment.Payment, error) {
	return store.getPayment(ctx, func(query *gorm.DB) *gorm.DB {
		return query.Where("reference = ? AND user_id = ?", reference, userID.String())
	})
}

func (store *Store) GetPaymentByIdempotencyKey(ctx context.Context, key string, userID domain.UserID) (*payment.Payment, error) {
	return store.getPayment(ctx, func(query *gorm.DB) *gorm.DB {
		return query.Where("idempotency_key = ? AND user_id = ?", key, userID.String())
	})
}

func (store *Store) getPayment(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (*payment.Payment, error) {
	var model PaymentModel
	err := scope(store.db.WithContext(ctx)).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wrapStoreError(errorSubjectPayment, errorCodeGet, payment.ErrPaymentNotFound)
		}
		return nil, wrapStoreError(errorSubjectPayment, errorCodeGet, err)
	}
	loaded, err := mapPayment(model)
	if err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
	}
	return loaded, nil
}

func (store *Store) AddPayment(ctx context.Context, p *payment.Payment) error {
	model := paymentModel(p)
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintPaymentIdem, constraintPaymentRef) {
		return wrapStoreError(errorSubjectPayment, errorCodeDuplicate, payment.ErrDuplicatePayment)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeCreate, err)
	}
	return nil
}

// UpdatePayment writes the mutable payment fields guarded by the status
// the new status must have transitioned from. A row already moved by a
// concurrent writer matches zero rows, so two refunds of the same payment
// cannot both apply.
func (store *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	result := store.db.WithContext(ctx).
		Model(&PaymentModel{}).
		Where("payment_id = ? AND status = ?", p.ID().String(), p.Status().Prior().String()).
		Updates(map[string]interface{}{
			"status":             p.Status().String(),
			"authorization_code": p.AuthorizationCode(),
			"failure_reason":     p.FailureReason(),
			"processed_at":       p.ProcessedAt(),
			"completed_at":       p.CompletedAt(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectPayment, errorCodeVersionConflict, payment.ErrPaymentConflict)
	}
	return nil
}

func (store *Store) ListPaymentsForUser(ctx context.Context, userID domain.UserID, page int, pageSize int) (payment.PaymentPage, error) {
	query := store.db.WithContext(ctx).
		Model(&PaymentModel{}).
		Where("user_id = ?", userID.String())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return payment.PaymentPage{}, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}

	var rows []PaymentModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return payment.PaymentPage{}, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}

	payments := make([]*payment.Payment, 0, len(rows))
	for _, row := range rows {
		loaded, err := mapPayment(row)
		if err != nil {
			return payment.PaymentPage{}, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
		}
		payments = append(payments, loaded)
	}
	return payment.PaymentPage{Payments: payments, TotalCount: total, Page: page, PageSize: pageSize}, nil
}

func (store *Store) AppendEntry(ctx context.Context, entry ledger.Entry) error {
	model := entryModel(entry)
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetEntryForUser(ctx context.Context, id ledger.EntryID, userID domain.UserID) (ledger.Entry, error) {
	var model EntryModel
	err := store.db.WithContext(ctx).
		Where("entry_id = ? AND user_id = ?", id.String(), userID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Entry{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, ledger.ErrEntryNotFound)
		}
		return ledger.Entry{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	entry, err := mapEntry(model)
	if err != nil {
		return ledger.Entry{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return entry, nil
}

func (store *Store) ListEntriesForUser(ctx context.Context, userID domain.UserID, filter ledger.Filter) (ledger.Page, error) {
	return store.listEntries(ctx, filter, func(query *gorm.DB) *gorm.DB {
		return query.Where("user_id = ?", userID.String())
	})
}

func (store *Store) ListEntriesForCard(ctx context.Context, cardID card.CardID, userID domain.UserID, filter ledger.Filter) (ledger.Page, error) {
	return store.listEntries(ctx, filter, func(query *gorm.DB) *gorm.DB {
		return query.Where("card_id = ? AND user_id = ?", cardID.String(), userID.String())
	})
}

func (store *Store) listEntries(ctx context.Context, filter ledger.Filter, scope func(*gorm.DB) *gorm.DB) (ledger.Page, error) {
	query := scope(store.db.WithContext(ctx).Model(&EntryModel{}))
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type.String())
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at <= ?", filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return ledger.Page{}, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}

	var rows []EntryModel
	err := query.
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return ledger.Page{}, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}

	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapEntry(row)
		if err != nil {
			return ledger.Page{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return ledger.Page{Entries: entries, TotalCount: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (store *Store) SumByType(ctx context.Context, userID domain.UserID, from time.Time, to time.Time) ([]ledger.TypeTotal, error) {
	query := store.db.WithContext(ctx).
		Model(&EntryModel{}).
		Select("type, count(*) as count, coalesce(sum(amount_cents),0) as total_cents").
		Where("user_id = ?", userID.String())
	if !from.IsZero() {
		query = query.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("created_at <= ?", to)
	}

	var rows []typeTotalRow
	if err := query.Group("type").Scan(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeSumByType, err)
	}

	totals := make([]ledger.TypeTotal, 0, len(rows))
	for _, row := range rows {
		entryType, err := ledger.ParseType(row.Type)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		totals = append(totals, ledger.TypeTotal{Type: entryType, Count: row.Count, TotalCents: row.TotalCents})
	}
	return totals, nil
}

type typeTotalRow struct {
	Type       string
	Count      int64
	TotalCents int64
}

func wrapStoreError(subject string, code string, err error) error {
	return domain.WrapError(errorOperationStore, subject, code, err)
}

func cardModel(c *card.Card) CardModel {
	return CardModel{
		CardID:           c.ID().String(),
		UserID:           c.UserID().String(),
		CardNumber:       c.Number().String(),
		HolderName:       c.Holder().String(),
		ExpirationMonth:  c.Expiration().Month(),
		ExpirationYear:   c.Expiration().Year(),
		CVV:              c.CVV().String(),
		Brand:            c.Brand().String(),
		Kind:             c.Kind().String(),
		CreditLimitCents: c.LimitCents(),
		BalanceCents:     c.BalanceCents(),
		Status:           c.Status().String(),
		Alias:            c.Alias(),
		Version:          c.Version(),
		CreatedAt:        c.CreatedAt(),
		UpdatedAt:        c.UpdatedAt(),
	}
}

func mapCard(model CardModel) (*card.Card, error) {
	id, err := card.NewCardID(model.CardID)
	if err != nil {
		return nil, err
	}
	userID, err := domain.NewUserID(model.UserID)
	if err != nil {
		return nil, err
	}
	number, err := card.NewNumber(model.CardNumber)
	if err != nil {
		return nil, err
	}
	holder, err := card.NewHolderName(model.HolderName)
	if err != nil {
		return nil, err
	}
	expiration, err := card.StoredExpiration(model.ExpirationMonth, model.ExpirationYear)
	if err != nil {
		return nil, err
	}
	cvv, err := card.NewCVV(model.CVV)
	if err != nil {
		return nil, err
	}
	brand, err := card.ParseBrand(model.Brand)
	if err != nil {
		return nil, err
	}
	kind, err := card.ParseKind(model.Kind)
	if err != nil {
		return nil, err
	}
	limit, err := card.NewCreditLimit(model.CreditLimitCents)
	if err != nil {
		return nil, err
	}
	status, err := card.ParseStatus(model.Status)
	if err != nil {
		return nil, err
	}
	return card.Rehydrate(
		id,
		userID,
		number,
		holder,
		expiration,
		cvv,
		brand,
		kind,
		limit,
		model.BalanceCents,
		status,
		model.Alias,
		model.CreatedAt,
		model.UpdatedAt,
		model.Version,
	), nil
}

func paymentModel(p *payment.Payment) PaymentModel {
	var idempotencyKey *string
	if key := p.IdempotencyKey(); key != "" {
		idempotencyKey = &key
	}
	return PaymentModel{
		PaymentID:         p.ID().String(),
		Reference:         p.Reference(),
		UserID:            p.UserID().String(),
		CardID:            p.CardID().String(),
		AmountCents:       p.Amount().Int64(),
		Currency:          p.Currency().String(),
		MerchantName:      p.MerchantName(),
		MerchantCategory:  p.MerchantCategory(),
		Description:       p.Description(),
		Status:            p.Status().String(),
		AuthorizationCode: p.AuthorizationCode(),
		FailureReason:     p.FailureReason(),
		IdempotencyKey:    idempotencyKey,
		CreatedAt:         p.CreatedAt(),
		ProcessedAt:       p.ProcessedAt(),
		CompletedAt:       p.CompletedAt(),
	}
}

func mapPayment(model PaymentModel) (*payment.Payment, error) {
	id, err := payment.NewID(model.PaymentID)
	if err != nil {
		return nil, err
	}
	userID, err := domain.NewUserID(model.UserID)
	if err != nil {
		return nil, err
	}
	cardID, err := card.NewCardID(model.CardID)
	if err != nil {
		return nil, err
	}
	amount, err := domain.NewAmountCents(model.AmountCents)
	if err != nil {
		return nil, err
	}
	currency, err := domain.NewCurrency(model.Currency)
	if err != nil {
		return nil, err
	}
	status, err := payment.ParseStatus(model.Status)
	if err != nil {
		return nil, err
	}
	idempotencyKey := ""
	if model.IdempotencyKey != nil {
		idempotencyKey = *model.IdempotencyKey
	}
	return payment.Rehydrate(
		id,
		model.Reference,
		userID,
		cardID,
		amount,
		currency,
		model.MerchantName,
		model.MerchantCategory,
		model.Description,
		status,
		model.AuthorizationCode,
		model.FailureReason,
		idempotencyKey,
		model.CreatedAt,
		model.ProcessedAt,
		model.CompletedAt,
	), nil
}

func entryModel(entry ledger.Entry) EntryModel {
	var paymentID *string
	if value := entry.PaymentID(); value != "" {
		paymentID = &value
	}
	return EntryModel{
		EntryID:            entry.ID().String(),
		UserID:             entry.UserID().String(),
		CardID:             entry.CardID().String(),
		PaymentID:          paymentID,
		Type:               entry.Type().String(),
		AmountCents:        entry.AmountCents().Int64(),
		Currency:           entry.Currency().String(),
		Description:        entry.Description(),
		BalanceBeforeCents: entry.BalanceBeforeCents(),
		BalanceAfterCents:  entry.BalanceAfterCents(),
		MerchantName:       entry.MerchantName(),
		Category:           entry.Category(),
		Metadata:           datatypesJSON(entry.Metadata().String()),
		CreatedAt:          entry.CreatedAt(),
	}
}

func mapEntry(model EntryModel) (ledger.Entry, error) {
	id, err := ledger.NewEntryID(model.EntryID)
	if err != nil {
		return ledger.Entry{}, err
	}
	userID, err := domain.NewUserID(model.UserID)
	if err != nil {
		return ledger.Entry{}, err
	}
	cardID, err := card.NewCardID(model.CardID)
	if err != nil {
		return ledger.Entry{}, err
	}
	entryType, err := ledger.ParseType(model.Type)
	if err != nil {
		return ledger.Entry{}, err
	}
	amount, err := domain.NewAmountCents(model.AmountCents)
	if err != nil {
		return ledger.Entry{}, err
	}
	currency, err := domain.NewCurrency(model.Currency)
	if err != nil {
		return ledger.Entry{}, err
	}
	metadata, err := domain.NewMetadataJSON(string(model.Metadata))
	if err != nil {
		return ledger.Entry{}, err
	}
	paymentID := ""
	if model.PaymentID != nil {
		paymentID = *model.PaymentID
	}
	return ledger.NewEntry(
		id,
		userID,
		cardID,
		paymentID,
		entryType,
		amount,
		currency,
		model.Description,
		model.BalanceBeforeCents,
		model.BalanceAfterCents,
		model.MerchantName,
		model.Category,
		metadata,
		model.CreatedAt,
	)
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error, constraints ...string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolationCode {
			return false
		}
		for _, constraint := range constraints {
			if pgErr.ConstraintName == constraint {
				return true
			}
		}
		return false
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
