package entities

import "time"

// TroyOunceGrams converts a per-gram gold price into a per-token price (1 XAUT = 1 troy oz)
const TroyOunceGrams = 31.1035

// PriceUnit is the denomination the oracle reports a price in
type PriceUnit string

const (
	PriceUnitToken PriceUnit = "token"
	PriceUnitGram  PriceUnit = "gram"
)

// PriceQuote is what the price oracle returns for an asset
type PriceQuote struct {
	Asset         AssetSymbol `json:"asset"`
	UnitPriceUSD  float64     `json:"unitPriceUsd"`
	Unit          PriceUnit   `json:"unit"`
	Source        string      `json:"source"`
	LastUpdatedAt time.Time   `json:"lastUpdatedAt"`
}

// PerTokenUSD normalizes the price to one whole token
func (p PriceQuote) PerTokenUSD() float64 {
	if p.Unit == PriceUnitGram {
		return p.UnitPriceUSD * TroyOunceGrams
	}
	return p.UnitPriceUSD
}
