package models

import (
	"time"

	"github.com/google/uuid"
)

type ContractDeployment struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name            string    `gorm:"type:varchar(100);not null"`
	ChainID         int64     `gorm:"not null;index"`
	Address         string    `gorm:"type:varchar(64);not null"`
	TxHash          string    `gorm:"type:varchar(255)"`
	RuntimeCodeHash string    `gorm:"type:varchar(66)"`
	Status          string    `gorm:"type:varchar(20);not null"`
	DeployedAt      time.Time
	VerifiedAt      *time.Time
}

func (ContractDeployment) TableName() string {
	return "contract_deployments"
}
