package usecases

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"vaultswap.backend/internal/domain/entities"
)

// PriceOracle returns the current USD price of an asset
type PriceOracle interface {
	GetCurrentPrice(ctx context.Context, asset entities.AssetSymbol) (*entities.PriceQuote, error)
}

// RouteProvider finds, executes and tracks DEX routes. Failures at the
// provider boundary are *domainerrors.ProviderError.
type RouteProvider interface {
	// GetBestRoute returns candidate routes ordered best first
	GetBestRoute(ctx context.Context, req entities.RouteRequest) ([]*entities.Route, error)
	ExecuteRoute(ctx context.Context, route *entities.Route, taker string, slippageBps int, signed []entities.SignedPayload) (*entities.ExecutionResult, error)
	GetStatus(ctx context.Context, provider entities.RouteProviderName, tradeHash string) (*entities.RouteStatus, error)
}

// BridgeProvider moves assets across chains via deposit addresses
type BridgeProvider interface {
	Quote(ctx context.Context, input entities.BridgeQuoteInput) (*entities.BridgeRoute, error)
	SubmitDeposit(ctx context.Context, depositAddress, txHash string) error
	Status(ctx context.Context, depositAddress string) (*entities.BridgeStatus, error)
}

// BalanceReader reads on-chain balances in base units
type BalanceReader interface {
	AssetBalance(ctx context.Context, asset entities.Asset, owner string) (*big.Int, error)
}

// ContractChain is the chain surface used to deploy and verify contracts
type ContractChain interface {
	ChainID() *big.Int
	CodeAt(ctx context.Context, address string) ([]byte, error)
	DeployContract(ctx context.Context, key *ecdsa.PrivateKey, bytecode []byte, gasLimit uint64) (common.Address, common.Hash, error)
}

// EventPublisher emits swap lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event entities.SwapEvent) error
}

// SwapMetrics records pipeline metrics
type SwapMetrics interface {
	QuoteGenerated(pair string, indicative bool)
	SwapFinished(outcome string, elapsed time.Duration)
	StuckIntentFailed()
	ProviderError(provider, kind string)
	ReconciliationRecord(status string)
	SecurityEvent(operation, outcome string)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, entities.SwapEvent) error { return nil }

type noopMetrics struct{}

func (noopMetrics) QuoteGenerated(string, bool)        {}
func (noopMetrics) SwapFinished(string, time.Duration) {}
func (noopMetrics) StuckIntentFailed()                 {}
func (noopMetrics) ProviderError(string, string)       {}
func (noopMetrics) ReconciliationRecord(string)        {}
func (noopMetrics) SecurityEvent(string, string)       {}

// NoopPublisher discards events
func NoopPublisher() EventPublisher { return noopPublisher{} }

// NoopMetrics discards metrics
func NoopMetrics() SwapMetrics { return noopMetrics{} }
