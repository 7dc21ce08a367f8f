package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// TransactionStatus is the bookkeeping state of a swap
type TransactionStatus string

const (
	// TransactionStatusPending is only written when polling ran out before
	// the trade reached a terminal state
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// TransactionMetadata is the execution detail kept with a swap record
type TransactionMetadata struct {
	Protocol       string `json:"protocol"`
	Provider       string `json:"provider"`
	RouteSummary   string `json:"routeSummary,omitempty"`
	PriceImpactBps int    `json:"priceImpactBps"`
	GasEstimate    uint64 `json:"gasEstimate,omitempty"`
	GasPaidBy      string `json:"gasPaidBy,omitempty"`
	RetriedExpired bool   `json:"retriedExpired,omitempty"`
}

// Transaction is the durable record of a swap
type Transaction struct {
	ID           uuid.UUID           `json:"id"`
	UserID       uuid.UUID           `json:"userId"`
	QuoteID      uuid.UUID           `json:"quoteId"`
	IntentID     uuid.UUID           `json:"intentId"`
	InputAsset   AssetSymbol         `json:"inputAsset"`
	OutputAsset  AssetSymbol         `json:"outputAsset"`
	InputAmount  float64             `json:"inputAmount"`
	OutputAmount float64             `json:"outputAmount"`
	TxHash       null.String         `json:"txHash"`
	TradeHash    string              `json:"tradeHash"`
	Status       TransactionStatus   `json:"status"`
	Metadata     TransactionMetadata `json:"metadata"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// FeeRecord is the platform fee collected on a swap
type FeeRecord struct {
	ID            uuid.UUID   `json:"id"`
	UserID        uuid.UUID   `json:"userId"`
	QuoteID       uuid.UUID   `json:"quoteId"`
	TransactionID *uuid.UUID  `json:"transactionId,omitempty"`
	TxHash        string      `json:"txHash"`
	FeeAsset      AssetSymbol `json:"feeAsset"`
	FeeAmount     float64     `json:"feeAmount"`
	FeeBps        int         `json:"feeBps"`
	FeeSide       FeeSide     `json:"feeSide"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// FailedRecordStatus is the reconciliation state of a failed bookkeeping write
type FailedRecordStatus string

const (
	FailedRecordPending   FailedRecordStatus = "pending"
	FailedRecordRetrying  FailedRecordStatus = "retrying"
	FailedRecordRecovered FailedRecordStatus = "recovered"
	FailedRecordAbandoned FailedRecordStatus = "abandoned"
)

const (
	failedRecordBaseDelay = 30 * time.Second
	failedRecordMaxDelay  = time.Hour
)

// FailedTransactionRecord captures a confirmed swap whose Transaction row
// could not be written
type FailedTransactionRecord struct {
	ID          uuid.UUID          `json:"id"`
	UserID      uuid.UUID          `json:"userId"`
	QuoteID     uuid.UUID          `json:"quoteId"`
	IntentID    uuid.UUID          `json:"intentId"`
	TxHash      string             `json:"txHash"`
	TradeHash   string             `json:"tradeHash"`
	Payload     *Transaction       `json:"payload"`
	LastError   string             `json:"lastError"`
	Status      FailedRecordStatus `json:"status"`
	RetryCount  int                `json:"retryCount"`
	MaxRetries  int                `json:"maxRetries"`
	NextRetryAt time.Time          `json:"nextRetryAt"`
	RecoveredAt null.Time          `json:"recoveredAt"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// NextRetryTime doubles the delay on every attempt, capped at one hour
func (r *FailedTransactionRecord) NextRetryTime(now time.Time) time.Time {
	delay := failedRecordBaseDelay
	for i := 0; i < r.RetryCount && delay < failedRecordMaxDelay; i++ {
		delay *= 2
	}
	if delay > failedRecordMaxDelay {
		delay = failedRecordMaxDelay
	}
	return now.Add(delay)
}

// RecordFailure bumps the retry counter and schedules or abandons the record
func (r *FailedTransactionRecord) RecordFailure(errMsg string, now time.Time) {
	r.RetryCount++
	r.LastError = errMsg
	r.UpdatedAt = now
	if r.RetryCount >= r.MaxRetries {
		r.Status = FailedRecordAbandoned
		return
	}
	r.Status = FailedRecordRetrying
	r.NextRetryAt = r.NextRetryTime(now)
}

// MarkRecovered closes the record
func (r *FailedTransactionRecord) MarkRecovered(now time.Time) {
	r.Status = FailedRecordRecovered
	r.RecoveredAt = null.TimeFrom(now)
	r.UpdatedAt = now
}
