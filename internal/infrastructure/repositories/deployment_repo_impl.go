package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/infrastructure/models"
)

// DeploymentRepository records contract deployments
type DeploymentRepository struct {
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) *DeploymentRepository {
	return &DeploymentRepository{db: db}
}

func (r *DeploymentRepository) Create(ctx context.Context, d *entities.ContractDeployment) error {
	if d.DeployedAt.IsZero() {
		d.DeployedAt = time.Now()
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(&models.ContractDeployment{
		ID:              d.ID,
		Name:            d.Name,
		ChainID:         d.ChainID,
		Address:         d.Address,
		TxHash:          d.TxHash,
		RuntimeCodeHash: d.RuntimeCodeHash,
		Status:          string(d.Status),
		DeployedAt:      d.DeployedAt,
		VerifiedAt:      timePtr(d.VerifiedAt),
	}).Error
}

// List returns deployments on chainID, or on every chain when chainID is 0
func (r *DeploymentRepository) List(ctx context.Context, chainID int64) ([]*entities.ContractDeployment, error) {
	q := GetDB(ctx, r.db).WithContext(ctx).Order("deployed_at ASC")
	if chainID != 0 {
		q = q.Where("chain_id = ?", chainID)
	}
	var ms []models.ContractDeployment
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.ContractDeployment, 0, len(ms))
	for _, m := range ms {
		out = append(out, &entities.ContractDeployment{
			ID:              m.ID,
			Name:            m.Name,
			ChainID:         m.ChainID,
			Address:         m.Address,
			TxHash:          m.TxHash,
			RuntimeCodeHash: m.RuntimeCodeHash,
			Status:          entities.DeploymentStatus(m.Status),
			DeployedAt:      m.DeployedAt,
			VerifiedAt:      nullTime(m.VerifiedAt),
		})
	}
	return out, nil
}

func (r *DeploymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.DeploymentStatus) error {
	updates := map[string]interface{}{"status": string(status)}
	if status == entities.DeploymentStatusVerified || status == entities.DeploymentStatusMismatch {
		updates["verified_at"] = time.Now()
	}
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.ContractDeployment{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}
