package repositories

import (
	"context"

	"github.com/google/uuid"
	"vaultswap.backend/internal/domain/entities"
)

// WalletKeyRepository stores encrypted signing keys. Insert-only.
type WalletKeyRepository interface {
	Create(ctx context.Context, key *entities.EncryptedWalletKey) error
	GetByAddress(ctx context.Context, userID uuid.UUID, address string) (*entities.EncryptedWalletKey, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.EncryptedWalletKey, error)
}

// WalletMetadataRepository stores the per-user deterministic derivation salt
type WalletMetadataRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*entities.WalletMetadata, error)
	Create(ctx context.Context, meta *entities.WalletMetadata) error
}

// OnchainAddressRepository stores a user's public addresses
type OnchainAddressRepository interface {
	Create(ctx context.Context, addr *entities.OnchainAddress) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.OnchainAddress, error)
	// SetPrimary makes id the only primary address of the user
	SetPrimary(ctx context.Context, userID, id uuid.UUID) error
	ClearPrimary(ctx context.Context, userID uuid.UUID) error
	Archive(ctx context.Context, id uuid.UUID) error
}

// SecurityEventRepository stores audit events
type SecurityEventRepository interface {
	Create(ctx context.Context, event *entities.SecurityEvent) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.SecurityEvent, error)
}
