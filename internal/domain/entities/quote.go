package entities

import (
	"time"

	"github.com/google/uuid"
)

// QuoteSide is the user's perspective on the trade
type QuoteSide string

const (
	QuoteSideBuy  QuoteSide = "buy"
	QuoteSideSell QuoteSide = "sell"
)

// AmountKind tells which leg the requested amount refers to
type AmountKind string

const (
	// AmountKindSource means the amount is what the user spends
	AmountKindSource AmountKind = "source"
	// AmountKindTarget means the amount is what the user wants to receive
	AmountKindTarget AmountKind = "target"
)

// FeeSide selects the leg the platform fee is taken from
type FeeSide string

const (
	FeeSideInput  FeeSide = "input"
	FeeSideOutput FeeSide = "output"
)

// PriceSnapshot records the oracle prices a quote was built from
type PriceSnapshot struct {
	InputUnitPriceUSD  float64   `json:"inputUnitPriceUsd"`
	OutputUnitPriceUSD float64   `json:"outputUnitPriceUsd"`
	Source             string    `json:"source"`
	ObservedAt         time.Time `json:"observedAt"`
}

// Quote is an immutable, time-boxed swap offer
type Quote struct {
	ID              uuid.UUID     `json:"id"`
	UserID          *uuid.UUID    `json:"userId,omitempty"`
	Side            QuoteSide     `json:"side"`
	AmountKind      AmountKind    `json:"amountKind"`
	InputAsset      AssetSymbol   `json:"inputAsset"`
	OutputAsset     AssetSymbol   `json:"outputAsset"`
	InputAmount     float64       `json:"inputAmount"`
	OutputAmount    float64       `json:"outputAmount"`
	ExchangeRate    float64       `json:"exchangeRate"`
	FeeAmount       float64       `json:"feeAmount"`
	FeeAsset        AssetSymbol   `json:"feeAsset"`
	FeeBps          int           `json:"feeBps"`
	FeeSide         FeeSide       `json:"feeSide"`
	NetAmount       float64       `json:"netAmount"`
	NetUSDAmount    float64       `json:"netUsdAmount"`
	MinimumReceived float64       `json:"minimumReceived"`
	SlippageBps     int           `json:"slippageBps"`
	Indicative      bool          `json:"indicative"`
	PriceSnapshot   PriceSnapshot `json:"priceSnapshot"`
	CreatedAt       time.Time     `json:"createdAt"`
	ExpiresAt       time.Time     `json:"expiresAt"`
}

// IsExpired reports whether now is past the quote's expiry
func (q *Quote) IsExpired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// ExpiredBy returns how long ago the quote expired (zero when still valid)
func (q *Quote) ExpiredBy(now time.Time) time.Duration {
	if !q.IsExpired(now) {
		return 0
	}
	return now.Sub(q.ExpiresAt)
}

// GenerateQuoteInput is the request for a new quote
type GenerateQuoteInput struct {
	UserID      *uuid.UUID  `json:"-"`
	Side        QuoteSide   `json:"side"`
	InputAsset  AssetSymbol `json:"inputAsset"`
	OutputAsset AssetSymbol `json:"outputAsset"`
	Amount      float64     `json:"amount"`
	AmountKind  AmountKind  `json:"amountKind"`
	Indicative  bool        `json:"-"`
}
