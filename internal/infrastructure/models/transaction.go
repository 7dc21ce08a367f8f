package models

import (
	"time"

	"github.com/google/uuid"
)

type Transaction struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index"`
	QuoteID      uuid.UUID `gorm:"type:uuid;not null;index"`
	IntentID     uuid.UUID `gorm:"type:uuid;index"`
	InputAsset   string    `gorm:"type:varchar(16);not null"`
	OutputAsset  string    `gorm:"type:varchar(16);not null"`
	InputAmount  float64
	OutputAmount float64
	TxHash       *string `gorm:"type:varchar(255);index"`
	TradeHash    string  `gorm:"type:varchar(255);index"`
	Status       string  `gorm:"type:varchar(20);not null;index"`
	Metadata     string  `gorm:"type:jsonb;default:'{}'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Transaction) TableName() string {
	return "transactions"
}

type FeeRecord struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	QuoteID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	TransactionID *uuid.UUID `gorm:"type:uuid"`
	TxHash        string     `gorm:"type:varchar(255)"`
	FeeAsset      string     `gorm:"type:varchar(16);not null"`
	FeeAmount     float64
	FeeBps        int
	FeeSide       string `gorm:"type:varchar(10)"`
	CreatedAt     time.Time
}

func (FeeRecord) TableName() string {
	return "fee_records"
}

type FailedTransactionRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	QuoteID     uuid.UUID `gorm:"type:uuid;not null"`
	IntentID    uuid.UUID `gorm:"type:uuid"`
	TxHash      string    `gorm:"type:varchar(255)"`
	TradeHash   string    `gorm:"type:varchar(255)"`
	Payload     string    `gorm:"type:jsonb;not null"`
	LastError   string    `gorm:"type:text"`
	Status      string    `gorm:"type:varchar(20);not null;index"`
	RetryCount  int       `gorm:"default:0"`
	MaxRetries  int
	NextRetryAt time.Time `gorm:"index"`
	RecoveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (FailedTransactionRecord) TableName() string {
	return "failed_transaction_records"
}
