package repositories

import (
	"context"

	"github.com/google/uuid"
	"vaultswap.backend/internal/domain/entities"
)

type DeploymentRepository interface {
	Create(ctx context.Context, d *entities.ContractDeployment) error
	List(ctx context.Context, chainID int64) ([]*entities.ContractDeployment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.DeploymentStatus) error
}
