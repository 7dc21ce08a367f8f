package repositories

import (
	"context"

	"github.com/google/uuid"
	"vaultswap.backend/internal/domain/entities"
)

// IntentRepository persists swap intents.
//
// Create must fail with ErrAlreadyInProgress when another non-terminal intent
// holds the same quote. UpdateStatus only applies when the stored status
// still equals from, and returns ErrStaleStatus otherwise.
type IntentRepository interface {
	Create(ctx context.Context, intent *entities.Intent) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Intent, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*entities.Intent, error)
	FindActiveByQuote(ctx context.Context, quoteID uuid.UUID) (*entities.Intent, error)
	HasCompletedForQuote(ctx context.Context, quoteID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, intent *entities.Intent, from entities.IntentStatus) error
}
