package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CardModel mirrors the cards table.
type CardModel struct {
	CardID           string    `gorm:"type:uuid;primaryKey"`
	UserID           string    `gorm:"not null;index:idx_cards_user"`
	CardNumber       string    `gorm:"not null;index:uniq_cards_number,unique"`
	HolderName       string    `gorm:"not null"`
	ExpirationMonth  int       `gorm:"not null"`
	ExpirationYear   int       `gorm:"not null"`
	CVV              string    `gorm:"not null"`
	Brand            string    `gorm:"not null"`
	Kind             string    `gorm:"not null"`
	CreditLimitCents int64     `gorm:"not null"`
	BalanceCents     int64     `gorm:"not null"`
	Status           string    `gorm:"not null"`
	Alias            string    `gorm:""`
	Version          int64     `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (CardModel) TableName() string { return "cards" }

func (model *CardModel) BeforeCreate(tx *gorm.DB) error {
	if model.CardID == "" {
		model.CardID = uuid.NewString()
	}
	return nil
}

// PaymentModel mirrors the payments table. IdempotencyKey is nullable so
// payments without a key never collide on the unique index.
type PaymentModel struct {
	PaymentID         string     `gorm:"type:uuid;primaryKey"`
	Reference         string     `gorm:"not null;index:uniq_payments_reference,unique"`
	UserID            string     `gorm:"not null;index:idx_payments_user_created,priority:1;index:uniq_payments_user_idem,unique,priority:1"`
	CardID            string     `gorm:"type:uuid;not null;index:idx_payments_card"`
	AmountCents       int64      `gorm:"not null"`
	Currency          string     `gorm:"not null"`
	MerchantName      string     `gorm:"not null"`
	MerchantCategory  string     `gorm:""`
	Description       string     `gorm:""`
	Status            string     `gorm:"not null"`
	AuthorizationCode string     `gorm:""`
	FailureReason     string     `gorm:""`
	IdempotencyKey    *string    `gorm:"index:uniq_payments_user_idem,unique,priority:2"`
	CreatedAt         time.Time  `gorm:"not null;index:idx_payments_user_created,priority:2"`
	ProcessedAt       *time.Time `gorm:""`
	CompletedAt       *time.Time `gorm:""`
}

func (PaymentModel) TableName() string { return "payments" }

func (model *PaymentModel) BeforeCreate(tx *gorm.DB) error {
	if model.PaymentID == "" {
		model.PaymentID = uuid.NewString()
	}
	return nil
}

// EntryModel mirrors the append-only transactions table.
type EntryModel struct {
	EntryID            string         `gorm:"type:uuid;primaryKey"`
	UserID             string         `gorm:"not null;index:idx_transactions_user_created,priority:1"`
	CardID             string         `gorm:"type:uuid;not null;index:idx_transactions_card_created,priority:1"`
	PaymentID          *string        `gorm:"type:uuid"`
	Type               string         `gorm:"not null"`
	AmountCents        int64          `gorm:"not null"`
	Currency           string         `gorm:"not null"`
	Description        string         `gorm:"not null"`
	BalanceBeforeCents int64          `gorm:"not null"`
	BalanceAfterCents  int64          `gorm:"not null"`
	MerchantName       string         `gorm:""`
	Category           string         `gorm:""`
	Metadata           datatypes.JSON `gorm:"not null"`
	CreatedAt          time.Time      `gorm:"not null;index:idx_transactions_user_created,priority:2;index:idx_transactions_card_created,priority:2"`
}

func (EntryModel) TableName() string { return "transactions" }

func (model *EntryModel) BeforeCreate(tx *gorm.DB) error {
	if model.EntryID == "" {
		model.EntryID = uuid.NewString()
	}
	return nil
}
