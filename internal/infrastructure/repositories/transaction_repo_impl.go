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
	"vaultswap.backend/pkg/utils"
)

// TransactionRepository implements swap transaction persistence
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	meta, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = now
	}
	m := &models.Transaction{
		ID:           tx.ID,
		UserID:       tx.UserID,
		QuoteID:      tx.QuoteID,
		IntentID:     tx.IntentID,
		InputAsset:   string(tx.InputAsset),
		OutputAsset:  string(tx.OutputAsset),
		InputAmount:  tx.InputAmount,
		OutputAmount: tx.OutputAmount,
		TxHash:       stringPtr(tx.TxHash),
		TradeHash:    tx.TradeHash,
		Status:       string(tx.Status),
		Metadata:     string(meta),
		CreatedAt:    tx.CreatedAt,
		UpdatedAt:    tx.UpdatedAt,
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(m).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *TransactionRepository) GetByTxHash(ctx context.Context, txHash string) (*entities.Transaction, error) {
	return r.first(ctx, "tx_hash = ?", txHash)
}

func (r *TransactionRepository) GetByTradeHash(ctx context.Context, tradeHash string) (*entities.Transaction, error) {
	return r.first(ctx, "trade_hash = ?", tradeHash)
}

// FindBlockingByQuote returns a pending or completed transaction for the quote
func (r *TransactionRepository) FindBlockingByQuote(ctx context.Context, quoteID uuid.UUID) (*entities.Transaction, error) {
	return r.first(ctx, "quote_id = ? AND status IN ?", quoteID, []string{
		string(entities.TransactionStatusPending),
		string(entities.TransactionStatusCompleted),
	})
}

func (r *TransactionRepository) first(ctx context.Context, query string, args ...interface{}) (*entities.Transaction, error) {
	var m models.Transaction
	if err := GetDB(ctx, r.db).WithContext(ctx).Where(query, args...).Order("created_at DESC").First(&m).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return r.toEntity(&m), nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, pagination utils.PaginationParams) ([]*entities.Transaction, int64, error) {
	p := pagination.Normalize()
	db := GetDB(ctx, r.db).WithContext(ctx)

	var total int64
	if err := db.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.Transaction
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(p.Limit).Offset(p.Offset()).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*entities.Transaction, 0, len(ms))
	for i := range ms {
		out = append(out, r.toEntity(&ms[i]))
	}
	return out, total, nil
}

// ListPending returns the oldest pending transactions first
func (r *TransactionRepository) ListPending(ctx context.Context, limit int) ([]*entities.Transaction, error) {
	var ms []models.Transaction
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("status = ?", string(entities.TransactionStatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.Transaction, 0, len(ms))
	for i := range ms {
		out = append(out, r.toEntity(&ms[i]))
	}
	return out, nil
}

// UpdateStatus sets the status and, when given, the on-chain hash
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, txHash string) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if txHash != "" {
		updates["tx_hash"] = txHash
	}
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *TransactionRepository) toEntity(m *models.Transaction) *entities.Transaction {
	var meta entities.TransactionMetadata
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
	}
	return &entities.Transaction{
		ID:           m.ID,
		UserID:       m.UserID,
		QuoteID:      m.QuoteID,
		IntentID:     m.IntentID,
		InputAsset:   entities.AssetSymbol(m.InputAsset),
		OutputAsset:  entities.AssetSymbol(m.OutputAsset),
		InputAmount:  m.InputAmount,
		OutputAmount: m.OutputAmount,
		TxHash:       nullString(m.TxHash),
		TradeHash:    m.TradeHash,
		Status:       entities.TransactionStatus(m.Status),
		Metadata:     meta,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FeeRecordRepository implements fee bookkeeping
type FeeRecordRepository struct {
	db *gorm.DB
}

func NewFeeRecordRepository(db *gorm.DB) *FeeRecordRepository {
	return &FeeRecordRepository{db: db}
}

func (r *FeeRecordRepository) Create(ctx context.Context, rec *entities.FeeRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m := &models.FeeRecord{
		ID:            rec.ID,
		UserID:        rec.UserID,
		QuoteID:       rec.QuoteID,
		TransactionID: rec.TransactionID,
		TxHash:        rec.TxHash,
		FeeAsset:      string(rec.FeeAsset),
		FeeAmount:     rec.FeeAmount,
		FeeBps:        rec.FeeBps,
		FeeSide:       string(rec.FeeSide),
		CreatedAt:     rec.CreatedAt,
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(m).Error
}

func (r *FeeRecordRepository) ListByQuote(ctx context.Context, quoteID uuid.UUID) ([]*entities.FeeRecord, error) {
	var ms []models.FeeRecord
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("quote_id = ?", quoteID).Order("created_at ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.FeeRecord, 0, len(ms))
	for _, m := range ms {
		out = append(out, &entities.FeeRecord{
			ID:            m.ID,
			UserID:        m.UserID,
			QuoteID:       m.QuoteID,
			TransactionID: m.TransactionID,
			TxHash:        m.TxHash,
			FeeAsset:      entities.AssetSymbol(m.FeeAsset),
			FeeAmount:     m.FeeAmount,
			FeeBps:        m.FeeBps,
			FeeSide:       entities.FeeSide(m.FeeSide),
			CreatedAt:     m.CreatedAt,
		})
	}
	return out, nil
}

// FailedTransactionRepository implements the reconciliation backlog
type FailedTransactionRepository struct {
	db *gorm.DB
}

func NewFailedTransactionRepository(db *gorm.DB) *FailedTransactionRepository {
	return &FailedTransactionRepository{db: db}
}

func (r *FailedTransactionRepository) Create(ctx context.Context, rec *entities.FailedTransactionRecord) error {
	m, err := failedRecordToModel(rec)
	if err != nil {
		return err
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(m).Error
}

// ListDue returns open records whose next retry time has passed
func (r *FailedTransactionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.FailedTransactionRecord, error) {
	var ms []models.FailedTransactionRecord
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("status IN ? AND next_retry_at <= ?", []string{
			string(entities.FailedRecordPending),
			string(entities.FailedRecordRetrying),
		}, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.FailedTransactionRecord, 0, len(ms))
	for i := range ms {
		rec, err := failedRecordToEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *FailedTransactionRepository) Update(ctx context.Context, rec *entities.FailedTransactionRecord) error {
	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.FailedTransactionRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"last_error":    rec.LastError,
			"status":        string(rec.Status),
			"retry_count":   rec.RetryCount,
			"next_retry_at": rec.NextRetryAt,
			"recovered_at":  timePtr(rec.RecoveredAt),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func failedRecordToModel(rec *entities.FailedTransactionRecord) (*models.FailedTransactionRecord, error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	return &models.FailedTransactionRecord{
		ID:          rec.ID,
		UserID:      rec.UserID,
		QuoteID:     rec.QuoteID,
		IntentID:    rec.IntentID,
		TxHash:      rec.TxHash,
		TradeHash:   rec.TradeHash,
		Payload:     string(payload),
		LastError:   rec.LastError,
		Status:      string(rec.Status),
		RetryCount:  rec.RetryCount,
		MaxRetries:  rec.MaxRetries,
		NextRetryAt: rec.NextRetryAt,
		RecoveredAt: timePtr(rec.RecoveredAt),
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}

func failedRecordToEntity(m *models.FailedTransactionRecord) (*entities.FailedTransactionRecord, error) {
	var payload entities.Transaction
	if err := json.Unmarshal([]byte(m.Payload), &payload); err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", m.ID, err)
	}
	return &entities.FailedTransactionRecord{
		ID:          m.ID,
		UserID:      m.UserID,
		QuoteID:     m.QuoteID,
		IntentID:    m.IntentID,
		TxHash:      m.TxHash,
		TradeHash:   m.TradeHash,
		Payload:     &payload,
		LastError:   m.LastError,
		Status:      entities.FailedRecordStatus(m.Status),
		RetryCount:  m.RetryCount,
		MaxRetries:  m.MaxRetries,
		NextRetryAt: m.NextRetryAt,
		RecoveredAt: nullTime(m.RecoveredAt),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}
