package usecases

import (
	"context"

	"github.com/google/uuid"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/domain/repositories"
	"vaultswap.backend/pkg/utils"
)

// TransactionUsecase serves a user's swap history
type TransactionUsecase struct {
	repo repositories.TransactionRepository
}

func NewTransactionUsecase(repo repositories.TransactionRepository) *TransactionUsecase {
	return &TransactionUsecase{repo: repo}
}

func (u *TransactionUsecase) ListTransactions(ctx context.Context, userID uuid.UUID, pagination utils.PaginationParams) ([]*entities.Transaction, utils.PaginationMeta, error) {
	pagination = pagination.Normalize()
	txs, total, err := u.repo.ListByUser(ctx, userID, pagination)
	if err != nil {
		return nil, utils.PaginationMeta{}, err
	}
	return txs, utils.CalculateMeta(total, pagination), nil
}

// GetTransaction returns one of the user's transactions
func (u *TransactionUsecase) GetTransaction(ctx context.Context, userID, id uuid.UUID) (*entities.Transaction, error) {
	tx, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, domainerrors.ErrNotFound
	}
	return tx, nil
}
