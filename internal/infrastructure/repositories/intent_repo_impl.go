package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/infrastructure/models"
)

// IntentRepository implements intent persistence. The unique
// active_quote_key column keeps at most one live intent per quote.
type IntentRepository struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

func activeQuoteKey(intent *entities.Intent) *string {
	if intent.Status.IsTerminal() {
		return nil
	}
	key := intent.QuoteID.String()
	return &key
}

func activeStatusStrings() []string {
	statuses := entities.ActiveIntentStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *IntentRepository) Create(ctx context.Context, intent *entities.Intent) error {
	details, err := json.Marshal(intent.ValidationDetails)
	if err != nil {
		return fmt.Errorf("marshal validation details: %w", err)
	}
	if intent.ValidationDetails == nil {
		details = []byte("{}")
	}

	m := &models.TransactionIntent{
		ID:                   intent.ID,
		QuoteID:              intent.QuoteID,
		IdempotencyKey:       intent.IdempotencyKey,
		UserID:               intent.UserID,
		InputAsset:           string(intent.InputAsset),
		OutputAsset:          string(intent.OutputAsset),
		InputAmount:          intent.InputAmount,
		ExpectedOutputAmount: intent.ExpectedOutputAmount,
		Status:               string(intent.Status),
		ActiveQuoteKey:       activeQuoteKey(intent),
		ValidationDetails:    string(details),
		CreatedAt:            intent.CreatedAt,
		UpdatedAt:            intent.UpdatedAt,
	}
	if err := GetDB(ctx, r.db).WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyInProgress
		}
		return err
	}
	return nil
}

func (r *IntentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Intent, error) {
	var m models.TransactionIntent
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return r.toEntity(&m), nil
}

func (r *IntentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entities.Intent, error) {
	var m models.TransactionIntent
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("idempotency_key = ?", key).First(&m).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return r.toEntity(&m), nil
}

// FindActiveByQuote returns the live intent for the quote or ErrNotFound
func (r *IntentRepository) FindActiveByQuote(ctx context.Context, quoteID uuid.UUID) (*entities.Intent, error) {
	var m models.TransactionIntent
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("quote_id = ? AND status IN ?", quoteID, activeStatusStrings()).
		Order("created_at DESC").
		First(&m).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return r.toEntity(&m), nil
}

func (r *IntentRepository) HasCompletedForQuote(ctx context.Context, quoteID uuid.UUID) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).WithContext(ctx).Model(&models.TransactionIntent{}).
		Where("quote_id = ? AND status = ?", quoteID, string(entities.IntentStatusCompleted)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatus writes the intent's status and evidence, but only when the
// stored status still equals from.
func (r *IntentRepository) UpdateStatus(ctx context.Context, intent *entities.Intent, from entities.IntentStatus) error {
	details := "{}"
	if intent.ValidationDetails != nil {
		b, err := json.Marshal(intent.ValidationDetails)
		if err != nil {
			return fmt.Errorf("marshal validation details: %w", err)
		}
		details = string(b)
	}
	if intent.UpdatedAt.IsZero() {
		intent.UpdatedAt = time.Now()
	}

	updates := map[string]interface{}{
		"status":               string(intent.Status),
		"active_quote_key":     activeQuoteKey(intent),
		"validated_at":         timePtr(intent.ValidatedAt),
		"funds_pulled_at":      timePtr(intent.FundsPulledAt),
		"swap_executed_at":     timePtr(intent.SwapExecutedAt),
		"completed_at":         timePtr(intent.CompletedAt),
		"failed_at":            timePtr(intent.FailedAt),
		"error_detail":         stringPtr(intent.ErrorDetail),
		"validation_details":   details,
		"pull_tx_hash":         stringPtr(intent.PullTxHash),
		"swap_tx_hash":         stringPtr(intent.SwapTxHash),
		"disbursement_tx_hash": stringPtr(intent.DisbursementTxHash),
		"refund_tx_hash":       stringPtr(intent.RefundTxHash),
		"route_provider":       stringPtr(intent.RouteProvider),
		"trade_hash":           stringPtr(intent.TradeHash),
		"updated_at":           intent.UpdatedAt,
	}

	db := GetDB(ctx, r.db).WithContext(ctx)
	result := db.Model(&models.TransactionIntent{}).
		Where("id = ? AND status = ?", intent.ID, string(from)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, intent.ID); err != nil {
			return err
		}
		return domainerrors.ErrStaleStatus
	}
	return nil
}

func (r *IntentRepository) toEntity(m *models.TransactionIntent) *entities.Intent {
	var details map[string]any
	if m.ValidationDetails != "" {
		_ = json.Unmarshal([]byte(m.ValidationDetails), &details)
	}
	if len(details) == 0 {
		details = nil
	}
	return &entities.Intent{
		ID:                   m.ID,
		QuoteID:              m.QuoteID,
		IdempotencyKey:       m.IdempotencyKey,
		UserID:               m.UserID,
		InputAsset:           entities.AssetSymbol(m.InputAsset),
		OutputAsset:          entities.AssetSymbol(m.OutputAsset),
		InputAmount:          m.InputAmount,
		ExpectedOutputAmount: m.ExpectedOutputAmount,
		Status:               entities.IntentStatus(m.Status),
		ValidatedAt:          nullTime(m.ValidatedAt),
		FundsPulledAt:        nullTime(m.FundsPulledAt),
		SwapExecutedAt:       nullTime(m.SwapExecutedAt),
		CompletedAt:          nullTime(m.CompletedAt),
		FailedAt:             nullTime(m.FailedAt),
		ErrorDetail:          nullString(m.ErrorDetail),
		ValidationDetails:    details,
		PullTxHash:           nullString(m.PullTxHash),
		SwapTxHash:           nullString(m.SwapTxHash),
		DisbursementTxHash:   nullString(m.DisbursementTxHash),
		RefundTxHash:         nullString(m.RefundTxHash),
		RouteProvider:        nullString(m.RouteProvider),
		TradeHash:            nullString(m.TradeHash),
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
