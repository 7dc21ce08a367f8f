package models

import (
	"time"

	"github.com/google/uuid"
)

type EncryptedWalletKey struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Address    string    `gorm:"type:varchar(64);not null;index"`
	Ciphertext string    `gorm:"type:text;not null"`
	IV         string    `gorm:"column:iv;type:varchar(64);not null"`
	Salt       string    `gorm:"type:varchar(64);not null"`
	Method     string    `gorm:"type:varchar(32);not null"`
	CreatedAt  time.Time
}

func (EncryptedWalletKey) TableName() string {
	return "encrypted_wallet_keys"
}

type WalletMetadata struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Salt      string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time
}

func (WalletMetadata) TableName() string {
	return "secure_wallet_metadata"
}

type OnchainAddress struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Address     string    `gorm:"type:varchar(64);not null;index"`
	Chain       string    `gorm:"type:varchar(32);not null"`
	AssetScope  string    `gorm:"type:varchar(32)"`
	SetupMethod string    `gorm:"type:varchar(32);not null"`
	IsPrimary   bool      `gorm:"default:false"`
	Status      string    `gorm:"type:varchar(16);not null;index"`
	CreatedAt   time.Time
	ArchivedAt  *time.Time
}

func (OnchainAddress) TableName() string {
	return "onchain_addresses"
}
