package usecases

import "vaultswap.backend/internal/domain/entities"

const (
	// DefaultFeeBps is the platform fee, 0.8%
	DefaultFeeBps  = 80
	bpsDenominator = 10000
)

// CalculateFee returns amount * bps / 10000
func CalculateFee(amount float64, bps int) float64 {
	return amount * float64(bps) / bpsDenominator
}

// NetAmount returns amount minus its fee
func NetAmount(amount float64, bps int) float64 {
	return amount - CalculateFee(amount, bps)
}

// FeeCalculator carries the configured fee rate and the leg it is charged on
type FeeCalculator struct {
	bps  int
	side entities.FeeSide
}

// NewFeeCalculator falls back to the input side for unknown sides and to
// DefaultFeeBps for negative rates
func NewFeeCalculator(bps int, side entities.FeeSide) *FeeCalculator {
	if bps < 0 || bps >= bpsDenominator {
		bps = DefaultFeeBps
	}
	if side != entities.FeeSideOutput {
		side = entities.FeeSideInput
	}
	return &FeeCalculator{bps: bps, side: side}
}

func (f *FeeCalculator) Bps() int { return f.bps }

func (f *FeeCalculator) Side() entities.FeeSide { return f.side }

// Fee applies the configured rate to amount
func (f *FeeCalculator) Fee(amount float64) float64 {
	return CalculateFee(amount, f.bps)
}
