package entities

import (
	"sort"
	"strings"
)

// AssetSymbol identifies a swappable asset
type AssetSymbol string

const (
	AssetUSDC  AssetSymbol = "USDC"
	AssetUSDT  AssetSymbol = "USDT"
	AssetDAI   AssetSymbol = "DAI"
	AssetXAUT  AssetSymbol = "XAUT"
	AssetTRZRY AssetSymbol = "TRZRY"
	AssetETH   AssetSymbol = "ETH"
	AssetWBTC  AssetSymbol = "WBTC"
)

// AssetKind drives pricing and presentation rules
type AssetKind string

const (
	AssetKindStable   AssetKind = "stable"
	AssetKindGold     AssetKind = "gold"
	AssetKindTreasury AssetKind = "treasury"
	AssetKindNative   AssetKind = "native"
	AssetKindWrapped  AssetKind = "wrapped"
)

// NativeTokenAddress is the aggregator convention for the chain's native coin
const NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// Asset describes a token on the execution chain
type Asset struct {
	Symbol   AssetSymbol `json:"symbol"`
	Name     string      `json:"name"`
	Kind     AssetKind   `json:"kind"`
	Decimals int32       `json:"decimals"`
	Address  string      `json:"address"`
}

// PresentationDecimals is 2 for USD-denominated assets and 6 for everything else
func (a Asset) PresentationDecimals() int32 {
	if a.Kind == AssetKindStable {
		return 2
	}
	return 6
}

// IsNative reports whether the asset is the chain's native coin
func (a Asset) IsNative() bool {
	return a.Kind == AssetKindNative
}

// ParseAssetSymbol normalizes user input into a known symbol
func ParseAssetSymbol(s string) (AssetSymbol, bool) {
	sym := AssetSymbol(strings.ToUpper(strings.TrimSpace(s)))
	switch sym {
	case AssetUSDC, AssetUSDT, AssetDAI, AssetXAUT, AssetTRZRY, AssetETH, AssetWBTC:
		return sym, true
	}
	return "", false
}

type assetPair struct {
	a, b AssetSymbol
}

func newAssetPair(a, b AssetSymbol) assetPair {
	if a > b {
		a, b = b, a
	}
	return assetPair{a: a, b: b}
}

// AssetRegistry holds the tradable assets and the supported pair set.
// Pairs are symmetric.
type AssetRegistry struct {
	assets map[AssetSymbol]Asset
	pairs  map[assetPair]struct{}
}

// NewAssetRegistry builds a registry from assets and pairs
func NewAssetRegistry(assets []Asset, pairs [][2]AssetSymbol) *AssetRegistry {
	r := &AssetRegistry{
		assets: make(map[AssetSymbol]Asset, len(assets)),
		pairs:  make(map[assetPair]struct{}, len(pairs)),
	}
	for _, a := range assets {
		r.assets[a.Symbol] = a
	}
	for _, p := range pairs {
		if p[0] == p[1] {
			continue
		}
		r.pairs[newAssetPair(p[0], p[1])] = struct{}{}
	}
	return r
}

// DefaultAssetRegistry returns the Ethereum mainnet asset set
func DefaultAssetRegistry() *AssetRegistry {
	assets := []Asset{
		{Symbol: AssetUSDC, Name: "USD Coin", Kind: AssetKindStable, Decimals: 6, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
		{Symbol: AssetUSDT, Name: "Tether USD", Kind: AssetKindStable, Decimals: 6, Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
		{Symbol: AssetDAI, Name: "Dai", Kind: AssetKindStable, Decimals: 18, Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"},
		{Symbol: AssetXAUT, Name: "Tether Gold", Kind: AssetKindGold, Decimals: 6, Address: "0x68749665FF8D2d112Fa859AA293F07A622782F38"},
		{Symbol: AssetTRZRY, Name: "Treasury Token", Kind: AssetKindTreasury, Decimals: 18},
		{Symbol: AssetETH, Name: "Ether", Kind: AssetKindNative, Decimals: 18, Address: NativeTokenAddress},
		{Symbol: AssetWBTC, Name: "Wrapped BTC", Kind: AssetKindWrapped, Decimals: 8, Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"},
	}

	var pairs [][2]AssetSymbol
	stables := []AssetSymbol{AssetUSDC, AssetUSDT, AssetDAI}
	for _, s := range stables {
		for _, t := range []AssetSymbol{AssetXAUT, AssetTRZRY, AssetETH, AssetWBTC} {
			pairs = append(pairs, [2]AssetSymbol{s, t})
		}
	}
	pairs = append(pairs,
		[2]AssetSymbol{AssetUSDC, AssetUSDT},
		[2]AssetSymbol{AssetUSDC, AssetDAI},
		[2]AssetSymbol{AssetXAUT, AssetTRZRY},
		[2]AssetSymbol{AssetETH, AssetWBTC},
		[2]AssetSymbol{AssetETH, AssetXAUT},
	)
	return NewAssetRegistry(assets, pairs)
}

// Get returns the asset for symbol
func (r *AssetRegistry) Get(symbol AssetSymbol) (Asset, bool) {
	a, ok := r.assets[symbol]
	return a, ok
}

// Supports reports whether (a, b) or (b, a) is tradable
func (r *AssetRegistry) Supports(a, b AssetSymbol) bool {
	if a == b {
		return false
	}
	_, ok := r.pairs[newAssetPair(a, b)]
	return ok
}

// SetAddress overrides the contract address of an asset (TRZRY is deployment specific)
func (r *AssetRegistry) SetAddress(symbol AssetSymbol, address string) {
	if a, ok := r.assets[symbol]; ok && address != "" {
		a.Address = address
		r.assets[symbol] = a
	}
}

// Assets lists registered assets sorted by symbol
func (r *AssetRegistry) Assets() []Asset {
	out := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ERC20s lists registered assets that have a token contract
func (r *AssetRegistry) ERC20s() []Asset {
	var out []Asset
	for _, a := range r.Assets() {
		if !a.IsNative() && a.Address != "" {
			out = append(out, a)
		}
	}
	return out
}
