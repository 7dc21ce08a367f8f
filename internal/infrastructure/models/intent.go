package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionIntent struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	QuoteID              uuid.UUID `gorm:"type:uuid;not null;index"`
	IdempotencyKey       string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	UserID               uuid.UUID `gorm:"type:uuid;not null;index"`
	InputAsset           string    `gorm:"type:varchar(16);not null"`
	OutputAsset          string    `gorm:"type:varchar(16);not null"`
	InputAmount          float64
	ExpectedOutputAmount float64
	Status               string `gorm:"type:varchar(32);not null;index"`
	// Holds the quote id while the intent is active, NULL once terminal
	ActiveQuoteKey     *string `gorm:"type:varchar(64);uniqueIndex"`
	ValidatedAt        *time.Time
	FundsPulledAt      *time.Time
	SwapExecutedAt     *time.Time
	CompletedAt        *time.Time
	FailedAt           *time.Time
	ErrorDetail        *string `gorm:"type:text"`
	ValidationDetails  string  `gorm:"type:jsonb;default:'{}'"`
	PullTxHash         *string `gorm:"type:varchar(255)"`
	SwapTxHash         *string `gorm:"type:varchar(255)"`
	DisbursementTxHash *string `gorm:"type:varchar(255)"`
	RefundTxHash       *string `gorm:"type:varchar(255)"`
	RouteProvider      *string `gorm:"type:varchar(50)"`
	TradeHash          *string `gorm:"type:varchar(255);index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time `gorm:"index"`
}

func (TransactionIntent) TableName() string {
	return "transaction_intents"
}
