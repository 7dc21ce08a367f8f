package entities

import (
	"time"

	"github.com/google/uuid"
)

// SwapResult is what ExecuteSwap reports upward
type SwapResult struct {
	Success                bool              `json:"success"`
	Status                 TransactionStatus `json:"status,omitempty"`
	TxHash                 string            `json:"txHash,omitempty"`
	TradeHash              string            `json:"tradeHash,omitempty"`
	Error                  string            `json:"error,omitempty"`
	RequiresReconciliation bool              `json:"requiresReconciliation,omitempty"`
	RequiresRefund         bool              `json:"requiresRefund,omitempty"`
	RefundTxHash           string            `json:"refundTxHash,omitempty"`
	RequiresImport         bool              `json:"requiresImport,omitempty"`
	IntentID               *uuid.UUID        `json:"intentId,omitempty"`
	TransactionID          *uuid.UUID        `json:"transactionId,omitempty"`
}

// ExecuteSwapInput is the request to run a quoted swap
type ExecuteSwapInput struct {
	QuoteID  uuid.UUID `json:"quoteId"`
	UserID   uuid.UUID `json:"-"`
	Password string    `json:"password"`
}

// SwapPhase names a lifecycle point published on the event bus
type SwapPhase string

const (
	SwapPhaseIntentCreated  SwapPhase = "intent_created"
	SwapPhaseValidated      SwapPhase = "validated"
	SwapPhaseFundsPulled    SwapPhase = "funds_pulled"
	SwapPhaseSubmitted      SwapPhase = "submitted"
	SwapPhaseCompleted      SwapPhase = "completed"
	SwapPhaseFailed         SwapPhase = "failed"
	SwapPhasePending        SwapPhase = "pending"
	SwapPhaseReconciled     SwapPhase = "reconciled"
	SwapPhaseNeedsReconcile SwapPhase = "needs_reconciliation"
)

// SwapEvent is a lifecycle notification. It never carries key material.
type SwapEvent struct {
	Phase     SwapPhase    `json:"phase"`
	IntentID  uuid.UUID    `json:"intentId"`
	QuoteID   uuid.UUID    `json:"quoteId"`
	UserID    uuid.UUID    `json:"userId"`
	Status    IntentStatus `json:"status,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	TxHash    string       `json:"txHash,omitempty"`
	TradeHash string       `json:"tradeHash,omitempty"`
	Error     string       `json:"error,omitempty"`
	At        time.Time    `json:"at"`
}
