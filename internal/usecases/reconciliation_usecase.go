package usecases

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/domain/repositories"
	"vaultswap.backend/pkg/logger"
	"vaultswap.backend/pkg/utils"
)

// ReconciliationReport summarizes one reconciliation pass
type ReconciliationReport struct {
	Recovered    int `json:"recovered"`
	Retrying     int `json:"retrying"`
	Abandoned    int `json:"abandoned"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	StillPending int `json:"stillPending"`
}

// ReconciliationDeps groups the reconciler's collaborators
type ReconciliationDeps struct {
	Quotes        repositories.QuoteRepository
	Transactions  repositories.TransactionRepository
	Fees          repositories.FeeRecordRepository
	FailedRecords repositories.FailedTransactionRepository
	Ledger        *IntentLedger
	Router        RouteProvider
	Events        EventPublisher
	Metrics       SwapMetrics
}

// ReconciliationUsecase repairs bookkeeping for swaps that settled on chain
// but were not fully recorded
type ReconciliationUsecase struct {
	deps      ReconciliationDeps
	batchSize int
	now       func() time.Time
}

func NewReconciliationUsecase(deps ReconciliationDeps, batchSize int) *ReconciliationUsecase {
	if batchSize <= 0 {
		batchSize = 50
	}
	if deps.Events == nil {
		deps.Events = NoopPublisher()
	}
	if deps.Metrics == nil {
		deps.Metrics = NoopMetrics()
	}
	return &ReconciliationUsecase{deps: deps, batchSize: batchSize, now: time.Now}
}

// SetClock overrides the time source
func (u *ReconciliationUsecase) SetClock(now func() time.Time) { u.now = now }

// Run performs one full pass
func (u *ReconciliationUsecase) Run(ctx context.Context) (ReconciliationReport, error) {
	var report ReconciliationReport
	errRetry := u.RetryFailedRecords(ctx, &report)
	errPending := u.ResolvePendingTransactions(ctx, &report)
	return report, errors.Join(errRetry, errPending)
}

// RetryFailedRecords re-writes due failed bookkeeping records into transactions
func (u *ReconciliationUsecase) RetryFailedRecords(ctx context.Context, report *ReconciliationReport) error {
	now := u.now()
	records, err := u.deps.FailedRecords.ListDue(ctx, now, u.batchSize)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := u.rewrite(ctx, rec); err != nil {
			rec.RecordFailure(err.Error(), now)
			if rec.Status == entities.FailedRecordAbandoned {
				report.Abandoned++
				logger.Error(ctx, "abandoned failed transaction record",
					zap.String("record_id", rec.ID.String()),
					zap.String("tx_hash", rec.TxHash),
					zap.Error(err),
				)
			} else {
				report.Retrying++
			}
		} else {
			rec.MarkRecovered(now)
			report.Recovered++
		}

		if err := u.deps.FailedRecords.Update(ctx, rec); err != nil {
			logger.Error(ctx, "failed to update reconciliation record", zap.String("record_id", rec.ID.String()), zap.Error(err))
			continue
		}
		u.deps.Metrics.ReconciliationRecord(string(rec.Status))
	}
	return nil
}

// rewrite stores the record's transaction unless a row for the same swap already exists
func (u *ReconciliationUsecase) rewrite(ctx context.Context, rec *entities.FailedTransactionRecord) error {
	if rec.Payload == nil {
		return errors.New("record has no transaction payload")
	}
	tx := rec.Payload

	existing, err := u.findExisting(ctx, rec)
	if err != nil {
		return err
	}
	// a pending payload comes from a poll timeout: store it as pending and
	// let ResolvePendingTransactions settle it
	unsettled := tx.Status == entities.TransactionStatusPending
	if existing == nil {
		if !unsettled {
			tx.Status = entities.TransactionStatusCompleted
		}
		tx.UpdatedAt = u.now()
		if err := u.deps.Transactions.Create(ctx, tx); err != nil {
			return err
		}
		if unsettled {
			return nil
		}
	} else {
		tx = existing
		if unsettled {
			return nil
		}
		if tx.Status == entities.TransactionStatusPending {
			if err := u.deps.Transactions.UpdateStatus(ctx, tx.ID, entities.TransactionStatusCompleted, rec.TxHash); err != nil {
				return err
			}
		}
	}

	u.recordFee(ctx, tx)
	u.completeIntent(ctx, tx, rec.TxHash)
	return nil
}

func (u *ReconciliationUsecase) findExisting(ctx context.Context, rec *entities.FailedTransactionRecord) (*entities.Transaction, error) {
	lookups := []struct {
		key string
		fn  func(context.Context, string) (*entities.Transaction, error)
	}{
		{rec.TxHash, u.deps.Transactions.GetByTxHash},
		{rec.TradeHash, u.deps.Transactions.GetByTradeHash},
	}
	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		tx, err := l.fn(ctx, l.key)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// ResolvePendingTransactions re-polls trades whose status was unknown when
// execution stopped polling
func (u *ReconciliationUsecase) ResolvePendingTransactions(ctx context.Context, report *ReconciliationReport) error {
	if u.deps.Router == nil {
		return nil
	}
	pending, err := u.deps.Transactions.ListPending(ctx, u.batchSize)
	if err != nil {
		return err
	}

	for _, tx := range pending {
		provider := entities.RouteProviderName(tx.Metadata.Provider)
		status, err := u.deps.Router.GetStatus(ctx, provider, tx.TradeHash)
		if err != nil {
			logger.Warn(ctx, "pending trade status unavailable", zap.String("trade_hash", tx.TradeHash), zap.Error(err))
			report.StillPending++
			continue
		}

		switch status.State {
		case entities.RouteStateConfirmed:
			txHash := status.TxHash
			if txHash == "" {
				txHash = tx.TxHash.String
			}
			if err := u.deps.Transactions.UpdateStatus(ctx, tx.ID, entities.TransactionStatusCompleted, txHash); err != nil {
				logger.Error(ctx, "failed to complete pending transaction", zap.String("id", tx.ID.String()), zap.Error(err))
				report.StillPending++
				continue
			}
			tx.TxHash.SetValid(txHash)
			u.recordFee(ctx, tx)
			u.completeIntent(ctx, tx, txHash)
			report.Completed++
		case entities.RouteStateFailed:
			if err := u.deps.Transactions.UpdateStatus(ctx, tx.ID, entities.TransactionStatusFailed, ""); err != nil {
				logger.Error(ctx, "failed to fail pending transaction", zap.String("id", tx.ID.String()), zap.Error(err))
				report.StillPending++
				continue
			}
			u.failIntent(ctx, tx, status)
			report.Failed++
		default:
			report.StillPending++
		}
	}
	return nil
}

func (u *ReconciliationUsecase) completeIntent(ctx context.Context, tx *entities.Transaction, txHash string) {
	if u.deps.Ledger == nil {
		return
	}
	_, err := u.deps.Ledger.UpdateStatus(ctx, tx.IntentID, entities.IntentStatusCompleted, entities.IntentEvidence{SwapTxHash: txHash})
	if err != nil {
		logger.Warn(ctx, "intent not completed by reconciliation", zap.String("intent_id", tx.IntentID.String()), zap.Error(err))
		return
	}
	u.publish(ctx, tx, entities.SwapPhaseReconciled, entities.IntentStatusCompleted, txHash, "")
}

func (u *ReconciliationUsecase) failIntent(ctx context.Context, tx *entities.Transaction, status *entities.RouteStatus) {
	if u.deps.Ledger == nil {
		return
	}
	reason := status.Reason
	if reason == "" {
		reason = "trade failed after polling timeout"
	}
	_, err := u.deps.Ledger.Fail(ctx, tx.IntentID, reason, entities.IntentEvidence{RefundTxHash: status.RefundTxHash})
	if err != nil {
		logger.Warn(ctx, "intent not failed by reconciliation", zap.String("intent_id", tx.IntentID.String()), zap.Error(err))
		return
	}
	u.publish(ctx, tx, entities.SwapPhaseFailed, entities.IntentStatusFailed, "", reason)
}

// recordFee writes the quote's fee once per quote
func (u *ReconciliationUsecase) recordFee(ctx context.Context, tx *entities.Transaction) {
	if u.deps.Fees == nil || u.deps.Quotes == nil {
		return
	}
	existing, err := u.deps.Fees.ListByQuote(ctx, tx.QuoteID)
	if err != nil || len(existing) > 0 {
		return
	}
	quote, err := u.deps.Quotes.GetByID(ctx, tx.QuoteID)
	if err != nil || quote.FeeAmount <= 0 {
		return
	}
	txID := tx.ID
	fee := &entities.FeeRecord{
		ID:            utils.GenerateUUIDv7(),
		UserID:        tx.UserID,
		QuoteID:       quote.ID,
		TransactionID: &txID,
		TxHash:        tx.TxHash.String,
		FeeAsset:      quote.FeeAsset,
		FeeAmount:     quote.FeeAmount,
		FeeBps:        quote.FeeBps,
		FeeSide:       quote.FeeSide,
		CreatedAt:     u.now(),
	}
	if err := u.deps.Fees.Create(ctx, fee); err != nil {
		logger.Warn(ctx, "failed to record fee during reconciliation", zap.Error(err))
	}
}

func (u *ReconciliationUsecase) publish(ctx context.Context, tx *entities.Transaction, phase entities.SwapPhase, status entities.IntentStatus, txHash, reason string) {
	event := entities.SwapEvent{
		Phase:     phase,
		IntentID:  tx.IntentID,
		QuoteID:   tx.QuoteID,
		UserID:    tx.UserID,
		Status:    status,
		Provider:  tx.Metadata.Provider,
		TxHash:    txHash,
		TradeHash: tx.TradeHash,
		Error:     reason,
		At:        u.now(),
	}
	if err := u.deps.Events.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "failed to publish reconciliation event", zap.Error(err))
	}
}
