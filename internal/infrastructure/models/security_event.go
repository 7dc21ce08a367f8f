package models

import (
	"time"

	"github.com/google/uuid"
)

type SecurityEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Operation string    `gorm:"type:varchar(50);not null"`
	Outcome   string    `gorm:"type:varchar(16);not null"`
	Severity  string    `gorm:"type:varchar(16);not null"`
	Metadata  string    `gorm:"type:jsonb;default:'{}'"`
	CreatedAt time.Time `gorm:"index"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}
