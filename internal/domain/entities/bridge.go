package entities

import "time"

// BridgeQuoteInput asks the bridge for a cross-chain route
type BridgeQuoteInput struct {
	OriginAsset      string  `json:"originAsset" binding:"required"`
	OriginChain      string  `json:"originChain"`
	DestinationAsset string  `json:"destinationAsset" binding:"required"`
	DestinationChain string  `json:"destinationChain"`
	Amount           float64 `json:"amount" binding:"required,gt=0"`
	Recipient        string  `json:"recipient" binding:"required"`
	RefundTo         string  `json:"refundTo"`
	SlippageBps      int     `json:"slippageBps"`
	Dry              bool    `json:"dry"`
}

// BridgeRoute is an executable bridge transfer: send AmountIn to DepositAddress
type BridgeRoute struct {
	DepositAddress string    `json:"depositAddress"`
	DepositMemo    string    `json:"depositMemo,omitempty"`
	AmountIn       string    `json:"amountIn"`
	AmountOut      string    `json:"amountOut"`
	TimeEstimate   float64   `json:"timeEstimateSeconds"`
	Deadline       time.Time `json:"deadline"`
}

// BridgeState is the normalized bridge execution state
type BridgeState string

const (
	BridgeStatePending  BridgeState = "pending"
	BridgeStateSuccess  BridgeState = "success"
	BridgeStateFailed   BridgeState = "failed"
	BridgeStateRefunded BridgeState = "refunded"
)

// BridgeStatus is the bridge's view of a deposit
type BridgeStatus struct {
	DepositAddress    string      `json:"depositAddress"`
	State             BridgeState `json:"state"`
	RawStatus         string      `json:"rawStatus"`
	DestinationTxHash string      `json:"destinationTxHash,omitempty"`
	AmountOut         string      `json:"amountOut,omitempty"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}
