package repositories

import (
	"context"

	"github.com/google/uuid"
	"vaultswap.backend/internal/domain/entities"
)

// QuoteRepository persists quotes. Quotes are never updated after insert.
type QuoteRepository interface {
	Create(ctx context.Context, quote *entities.Quote) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Quote, error)
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*entities.Quote, error)
}
