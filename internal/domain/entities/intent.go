package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// IntentStatus is the lifecycle state of a swap attempt
type IntentStatus string

const (
	IntentStatusInitiated        IntentStatus = "initiated"
	IntentStatusValidating       IntentStatus = "validating"
	IntentStatusFundsPulled      IntentStatus = "funds_pulled"
	IntentStatusSwapExecuted     IntentStatus = "swap_executed"
	IntentStatusCompleted        IntentStatus = "completed"
	IntentStatusValidationFailed IntentStatus = "validation_failed"
	IntentStatusFailed           IntentStatus = "failed"
)

var intentTransitions = map[IntentStatus][]IntentStatus{
	IntentStatusInitiated:    {IntentStatusValidating, IntentStatusFailed},
	IntentStatusValidating:   {IntentStatusFundsPulled, IntentStatusValidationFailed, IntentStatusFailed},
	IntentStatusFundsPulled:  {IntentStatusSwapExecuted, IntentStatusFailed},
	IntentStatusSwapExecuted: {IntentStatusCompleted, IntentStatusFailed},
}

// IsTerminal reports whether no further transition is allowed
func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentStatusCompleted, IntentStatusFailed, IntentStatusValidationFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal forward move from s
func (s IntentStatus) CanTransitionTo(next IntentStatus) bool {
	for _, allowed := range intentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActiveIntentStatuses are the non-terminal statuses
func ActiveIntentStatuses() []IntentStatus {
	return []IntentStatus{
		IntentStatusInitiated,
		IntentStatusValidating,
		IntentStatusFundsPulled,
		IntentStatusSwapExecuted,
	}
}

// Intent is the durable pre-flight record of a swap attempt
type Intent struct {
	ID                   uuid.UUID      `json:"id"`
	QuoteID              uuid.UUID      `json:"quoteId"`
	IdempotencyKey       string         `json:"idempotencyKey"`
	UserID               uuid.UUID      `json:"userId"`
	InputAsset           AssetSymbol    `json:"inputAsset"`
	OutputAsset          AssetSymbol    `json:"outputAsset"`
	InputAmount          float64        `json:"inputAmount"`
	ExpectedOutputAmount float64        `json:"expectedOutputAmount"`
	Status               IntentStatus   `json:"status"`
	ValidatedAt          null.Time      `json:"validatedAt"`
	FundsPulledAt        null.Time      `json:"fundsPulledAt"`
	SwapExecutedAt       null.Time      `json:"swapExecutedAt"`
	CompletedAt          null.Time      `json:"completedAt"`
	FailedAt             null.Time      `json:"failedAt"`
	ErrorDetail          null.String    `json:"errorDetail"`
	ValidationDetails    map[string]any `json:"validationDetails,omitempty"`
	PullTxHash           null.String    `json:"pullTxHash"`
	SwapTxHash           null.String    `json:"swapTxHash"`
	DisbursementTxHash   null.String    `json:"disbursementTxHash"`
	RefundTxHash         null.String    `json:"refundTxHash"`
	RouteProvider        null.String    `json:"routeProvider"`
	TradeHash            null.String    `json:"tradeHash"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// PhaseStartedAt is when the intent entered its current status
func (i *Intent) PhaseStartedAt() time.Time {
	var ts null.Time
	switch i.Status {
	case IntentStatusValidating:
		ts = i.ValidatedAt
	case IntentStatusFundsPulled:
		ts = i.FundsPulledAt
	case IntentStatusSwapExecuted:
		ts = i.SwapExecutedAt
	case IntentStatusCompleted:
		ts = i.CompletedAt
	case IntentStatusFailed, IntentStatusValidationFailed:
		ts = i.FailedAt
	}
	if ts.Valid {
		return ts.Time
	}
	return i.CreatedAt
}

// IntentEvidence carries what a status transition observed. Empty fields
// leave the stored values untouched.
type IntentEvidence struct {
	ErrorDetail        string
	ValidationDetails  map[string]any
	PullTxHash         string
	SwapTxHash         string
	DisbursementTxHash string
	RefundTxHash       string
	RouteProvider      string
	TradeHash          string
}

// CreateIntentInput is what the ledger needs to open an intent
type CreateIntentInput struct {
	QuoteID              uuid.UUID
	UserID               uuid.UUID
	InputAsset           AssetSymbol
	OutputAsset          AssetSymbol
	InputAmount          float64
	ExpectedOutputAmount float64
}
