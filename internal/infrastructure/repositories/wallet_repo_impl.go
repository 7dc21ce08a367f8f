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

// WalletKeyRepository stores encrypted keys. There is no update path.
type WalletKeyRepository struct {
	db *gorm.DB
}

func NewWalletKeyRepository(db *gorm.DB) *WalletKeyRepository {
	return &WalletKeyRepository{db: db}
}

func (r *WalletKeyRepository) Create(ctx context.Context, key *entities.EncryptedWalletKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	m := &models.EncryptedWalletKey{
		ID:         key.ID,
		UserID:     key.UserID,
		Address:    key.Address,
		Ciphertext: key.Ciphertext,
		IV:         key.IV,
		Salt:       key.Salt,
		Method:     string(key.Method),
		CreatedAt:  key.CreatedAt,
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(m).Error
}

// GetByAddress matches the address case-insensitively and prefers the newest key
func (r *WalletKeyRepository) GetByAddress(ctx context.Context, userID uuid.UUID, address string) (*entities.EncryptedWalletKey, error) {
	var m models.EncryptedWalletKey
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("user_id = ? AND LOWER(address) = LOWER(?)", userID, address).
		Order("created_at DESC").
		First(&m).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return walletKeyToEntity(&m), nil
}

func (r *WalletKeyRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.EncryptedWalletKey, error) {
	var ms []models.EncryptedWalletKey
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.EncryptedWalletKey, 0, len(ms))
	for i := range ms {
		out = append(out, walletKeyToEntity(&ms[i]))
	}
	return out, nil
}

func walletKeyToEntity(m *models.EncryptedWalletKey) *entities.EncryptedWalletKey {
	return &entities.EncryptedWalletKey{
		ID:         m.ID,
		UserID:     m.UserID,
		Address:    m.Address,
		Ciphertext: m.Ciphertext,
		IV:         m.IV,
		Salt:       m.Salt,
		Method:     entities.EncryptionMethod(m.Method),
		CreatedAt:  m.CreatedAt,
	}
}

// WalletMetadataRepository stores the deterministic derivation salt
type WalletMetadataRepository struct {
	db *gorm.DB
}

func NewWalletMetadataRepository(db *gorm.DB) *WalletMetadataRepository {
	return &WalletMetadataRepository{db: db}
}

func (r *WalletMetadataRepository) Get(ctx context.Context, userID uuid.UUID) (*entities.WalletMetadata, error) {
	var m models.WalletMetadata
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &entities.WalletMetadata{UserID: m.UserID, Salt: m.Salt, CreatedAt: m.CreatedAt}, nil
}

// Create fails with ErrAlreadyExists when the user already has a salt
func (r *WalletMetadataRepository) Create(ctx context.Context, meta *entities.WalletMetadata) error {
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	err := GetDB(ctx, r.db).WithContext(ctx).Create(&models.WalletMetadata{
		UserID:    meta.UserID,
		Salt:      meta.Salt,
		CreatedAt: meta.CreatedAt,
	}).Error
	if isUniqueViolation(err) {
		return domainerrors.ErrAlreadyExists
	}
	return err
}

// OnchainAddressRepository stores public addresses
type OnchainAddressRepository struct {
	db *gorm.DB
}

func NewOnchainAddressRepository(db *gorm.DB) *OnchainAddressRepository {
	return &OnchainAddressRepository{db: db}
}

func (r *OnchainAddressRepository) Create(ctx context.Context, addr *entities.OnchainAddress) error {
	if addr.CreatedAt.IsZero() {
		addr.CreatedAt = time.Now()
	}
	if addr.Status == "" {
		addr.Status = entities.AddressStatusActive
	}
	m := &models.OnchainAddress{
		ID:          addr.ID,
		UserID:      addr.UserID,
		Address:     addr.Address,
		Chain:       addr.Chain,
		AssetScope:  addr.AssetScope,
		SetupMethod: string(addr.SetupMethod),
		IsPrimary:   addr.IsPrimary,
		Status:      string(addr.Status),
		CreatedAt:   addr.CreatedAt,
		ArchivedAt:  timePtr(addr.ArchivedAt),
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(m).Error
}

// ListByUser returns every address of the user, archived included
func (r *OnchainAddressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.OnchainAddress, error) {
	var ms []models.OnchainAddress
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.OnchainAddress, 0, len(ms))
	for _, m := range ms {
		out = append(out, &entities.OnchainAddress{
			ID:          m.ID,
			UserID:      m.UserID,
			Address:     m.Address,
			Chain:       m.Chain,
			AssetScope:  m.AssetScope,
			SetupMethod: entities.WalletSetupMethod(m.SetupMethod),
			IsPrimary:   m.IsPrimary,
			Status:      entities.AddressStatus(m.Status),
			CreatedAt:   m.CreatedAt,
			ArchivedAt:  nullTime(m.ArchivedAt),
		})
	}
	return out, nil
}

// SetPrimary demotes every other address of the user and promotes id
func (r *OnchainAddressRepository) SetPrimary(ctx context.Context, userID, id uuid.UUID) error {
	return GetDB(ctx, r.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OnchainAddress{}).
			Where("user_id = ? AND id <> ?", userID, id).
			Update("is_primary", false).Error; err != nil {
			return err
		}
		result := tx.Model(&models.OnchainAddress{}).
			Where("id = ? AND user_id = ? AND status = ?", id, userID, string(entities.AddressStatusActive)).
			Update("is_primary", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrNotFound
		}
		return nil
	})
}

func (r *OnchainAddressRepository) ClearPrimary(ctx context.Context, userID uuid.UUID) error {
	return GetDB(ctx, r.db).WithContext(ctx).Model(&models.OnchainAddress{}).
		Where("user_id = ?", userID).
		Update("is_primary", false).Error
}

// Archive retires an active address and drops its primary flag
func (r *OnchainAddressRepository) Archive(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.OnchainAddress{}).
		Where("id = ? AND status = ?", id, string(entities.AddressStatusActive)).
		Updates(map[string]interface{}{
			"status":      string(entities.AddressStatusArchived),
			"is_primary":  false,
			"archived_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}
