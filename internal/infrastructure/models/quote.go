package models

import (
	"time"

	"github.com/google/uuid"
)

type Quote struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID             *uuid.UUID `gorm:"type:uuid;index"` // Nullable for indicative quotes
	Side               string     `gorm:"type:varchar(10);not null"`
	AmountKind         string     `gorm:"type:varchar(10);not null"`
	InputAsset         string     `gorm:"type:varchar(16);not null"`
	OutputAsset        string     `gorm:"type:varchar(16);not null"`
	InputAmount        float64    `gorm:"not null"`
	OutputAmount       float64    `gorm:"not null"`
	ExchangeRate       float64
	FeeAmount          float64
	FeeAsset           string `gorm:"type:varchar(16)"`
	FeeBps             int
	FeeSide            string `gorm:"type:varchar(10)"`
	NetAmount          float64
	NetUSDAmount       float64 `gorm:"column:net_usd_amount"`
	MinimumReceived    float64
	SlippageBps        int
	Indicative         bool    `gorm:"default:false"`
	InputUnitPriceUSD  float64 `gorm:"column:input_unit_price_usd"`
	OutputUnitPriceUSD float64 `gorm:"column:output_unit_price_usd"`
	PriceSource        string  `gorm:"type:varchar(100)"`
	PriceObservedAt    time.Time
	CreatedAt          time.Time
	ExpiresAt          time.Time `gorm:"not null;index"`
}

func (Quote) TableName() string {
	return "quotes"
}
