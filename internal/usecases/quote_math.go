package usecases

import (
	"math/big"

	"github.com/shopspring/decimal"
	"vaultswap.backend/internal/domain/entities"
)

const exchangeRatePlaces = 8

// QuoteMathInput is everything the pricing formulas need
type QuoteMathInput struct {
	Amount      float64
	AmountKind  entities.AmountKind
	InputPrice  float64 // USD per whole input token
	OutputPrice float64 // USD per whole output token
	FeeBps      int
	FeeSide     entities.FeeSide
	SlippageBps int
}

// QuoteAmounts are unrounded results. FeeAmount and NetAmount are
// denominated in the fee leg's asset.
type QuoteAmounts struct {
	InputAmount     float64
	OutputAmount    float64
	FeeAmount       float64
	NetAmount       float64
	NetUSDAmount    float64
	ExchangeRate    float64
	MinimumReceived float64
}

// ComputeQuoteAmounts solves the swap for the unknown leg. All arithmetic
// stays in float64; rounding happens once in RoundForPresentation.
func ComputeQuoteAmounts(in QuoteMathInput) QuoteAmounts {
	rate := in.InputPrice / in.OutputPrice
	feeFrac := float64(in.FeeBps) / bpsDenominator

	var out QuoteAmounts
	out.ExchangeRate = rate

	switch in.FeeSide {
	case entities.FeeSideOutput:
		if in.AmountKind == entities.AmountKindTarget {
			out.OutputAmount = in.Amount
			gross := in.Amount / (1 - feeFrac)
			out.FeeAmount = gross - in.Amount
			out.InputAmount = gross / rate
		} else {
			out.InputAmount = in.Amount
			gross := in.Amount * rate
			out.FeeAmount = CalculateFee(gross, in.FeeBps)
			out.OutputAmount = gross - out.FeeAmount
		}
		out.NetAmount = out.OutputAmount
		out.NetUSDAmount = out.NetAmount * in.OutputPrice
	default:
		if in.AmountKind == entities.AmountKindTarget {
			out.OutputAmount = in.Amount
			net := in.Amount / rate
			out.InputAmount = net / (1 - feeFrac)
			out.FeeAmount = out.InputAmount - net
			out.NetAmount = net
		} else {
			out.InputAmount = in.Amount
			out.FeeAmount = CalculateFee(in.Amount, in.FeeBps)
			out.NetAmount = in.Amount - out.FeeAmount
			out.OutputAmount = out.NetAmount * rate
		}
		out.NetUSDAmount = out.NetAmount * in.InputPrice
	}

	out.MinimumReceived = out.OutputAmount * (1 - float64(in.SlippageBps)/bpsDenominator)
	return out
}

// RoundForPresentation rounds every amount to its asset's display precision
func RoundForPresentation(a QuoteAmounts, input, output, feeAsset entities.Asset) QuoteAmounts {
	return QuoteAmounts{
		InputAmount:     roundTo(a.InputAmount, input.PresentationDecimals()),
		OutputAmount:    roundTo(a.OutputAmount, output.PresentationDecimals()),
		FeeAmount:       roundTo(a.FeeAmount, feeAsset.PresentationDecimals()),
		NetAmount:       roundTo(a.NetAmount, feeAsset.PresentationDecimals()),
		NetUSDAmount:    roundTo(a.NetUSDAmount, 2),
		ExchangeRate:    roundTo(a.ExchangeRate, exchangeRatePlaces),
		MinimumReceived: roundTo(a.MinimumReceived, output.PresentationDecimals()),
	}
}

func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// ToBaseUnits converts a whole-token amount to integer base units, truncating dust
func ToBaseUnits(amount float64, decimals int32) *big.Int {
	return decimal.NewFromFloat(amount).Shift(decimals).Truncate(0).BigInt()
}

// FromBaseUnits converts integer base units to a whole-token amount
func FromBaseUnits(amount *big.Int, decimals int32) float64 {
	if amount == nil {
		return 0
	}
	return decimal.NewFromBigInt(amount, -decimals).InexactFloat64()
}
