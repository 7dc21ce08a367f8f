package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"vaultswap.backend/internal/domain/entities"
	"vaultswap.backend/internal/infrastructure/models"
)

// QuoteRepository implements quote persistence
type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

func (r *QuoteRepository) Create(ctx context.Context, q *entities.Quote) error {
	m := &models.Quote{
		ID:                 q.ID,
		UserID:             q.UserID,
		Side:               string(q.Side),
		AmountKind:         string(q.AmountKind),
		InputAsset:         string(q.InputAsset),
		OutputAsset:        string(q.OutputAsset),
		InputAmount:        q.InputAmount,
		OutputAmount:       q.OutputAmount,
		ExchangeRate:       q.ExchangeRate,
		FeeAmount:          q.FeeAmount,
		FeeAsset:           string(q.FeeAsset),
		FeeBps:             q.FeeBps,
		FeeSide:            string(q.FeeSide),
		NetAmount:          q.NetAmount,
		NetUSDAmount:       q.NetUSDAmount,
		MinimumReceived:    q.MinimumReceived,
		SlippageBps:        q.SlippageBps,
		Indicative:         q.Indicative,
		InputUnitPriceUSD:  q.PriceSnapshot.InputUnitPriceUSD,
		OutputUnitPriceUSD: q.PriceSnapshot.OutputUnitPriceUSD,
		PriceSource:        q.PriceSnapshot.Source,
		PriceObservedAt:    q.PriceSnapshot.ObservedAt,
		CreatedAt:          q.CreatedAt,
		ExpiresAt:          q.ExpiresAt,
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(m).Error
}

func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Quote, error) {
	var m models.Quote
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return r.toEntity(&m), nil
}

// GetByIDForUser only returns quotes owned by userID
func (r *QuoteRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*entities.Quote, error) {
	var m models.Quote
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&m).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return r.toEntity(&m), nil
}

func (r *QuoteRepository) toEntity(m *models.Quote) *entities.Quote {
	return &entities.Quote{
		ID:              m.ID,
		UserID:          m.UserID,
		Side:            entities.QuoteSide(m.Side),
		AmountKind:      entities.AmountKind(m.AmountKind),
		InputAsset:      entities.AssetSymbol(m.InputAsset),
		OutputAsset:     entities.AssetSymbol(m.OutputAsset),
		InputAmount:     m.InputAmount,
		OutputAmount:    m.OutputAmount,
		ExchangeRate:    m.ExchangeRate,
		FeeAmount:       m.FeeAmount,
		FeeAsset:        entities.AssetSymbol(m.FeeAsset),
		FeeBps:          m.FeeBps,
		FeeSide:         entities.FeeSide(m.FeeSide),
		NetAmount:       m.NetAmount,
		NetUSDAmount:    m.NetUSDAmount,
		MinimumReceived: m.MinimumReceived,
		SlippageBps:     m.SlippageBps,
		Indicative:      m.Indicative,
		PriceSnapshot: entities.PriceSnapshot{
			InputUnitPriceUSD:  m.InputUnitPriceUSD,
			OutputUnitPriceUSD: m.OutputUnitPriceUSD,
			Source:             m.PriceSource,
			ObservedAt:         m.PriceObservedAt,
		},
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}
