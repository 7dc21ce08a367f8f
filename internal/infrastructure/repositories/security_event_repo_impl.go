package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"vaultswap.backend/internal/domain/entities"
	"vaultswap.backend/internal/infrastructure/models"
)

// SecurityEventRepository stores key-vault audit events
type SecurityEventRepository struct {
	db *gorm.DB
}

func NewSecurityEventRepository(db *gorm.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

func (r *SecurityEventRepository) Create(ctx context.Context, ev *entities.SecurityEvent) error {
	meta := []byte("{}")
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return err
		}
		meta = b
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(&models.SecurityEvent{
		ID:        ev.ID,
		UserID:    ev.UserID,
		Operation: string(ev.Operation),
		Outcome:   string(ev.Outcome),
		Severity:  string(ev.Severity),
		Metadata:  string(meta),
		CreatedAt: ev.CreatedAt,
	}).Error
}

func (r *SecurityEventRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.SecurityEvent, error) {
	var ms []models.SecurityEvent
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.SecurityEvent, 0, len(ms))
	for _, m := range ms {
		var meta map[string]string
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
		out = append(out, &entities.SecurityEvent{
			ID:        m.ID,
			UserID:    m.UserID,
			Operation: entities.SecurityOperation(m.Operation),
			Outcome:   entities.SecurityOutcome(m.Outcome),
			Severity:  entities.SecuritySeverity(m.Severity),
			Metadata:  meta,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}
