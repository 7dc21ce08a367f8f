package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"vaultswap.backend/internal/domain/entities"
	"vaultswap.backend/pkg/utils"
)

// TransactionRepository persists swap transactions
type TransactionRepository interface {
	Create(ctx context.Context, tx *entities.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)
	GetByTxHash(ctx context.Context, txHash string) (*entities.Transaction, error)
	GetByTradeHash(ctx context.Context, tradeHash string) (*entities.Transaction, error)
	// FindBlockingByQuote returns a pending or completed transaction for the quote
	FindBlockingByQuote(ctx context.Context, quoteID uuid.UUID) (*entities.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, pagination utils.PaginationParams) ([]*entities.Transaction, int64, error)
	ListPending(ctx context.Context, limit int) ([]*entities.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, txHash string) error
}

// FeeRecordRepository persists collected fees
type FeeRecordRepository interface {
	Create(ctx context.Context, record *entities.FeeRecord) error
	ListByQuote(ctx context.Context, quoteID uuid.UUID) ([]*entities.FeeRecord, error)
}

// FailedTransactionRepository persists bookkeeping writes awaiting reconciliation
type FailedTransactionRepository interface {
	Create(ctx context.Context, record *entities.FailedTransactionRecord) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.FailedTransactionRecord, error)
	Update(ctx context.Context, record *entities.FailedTransactionRecord) error
}
