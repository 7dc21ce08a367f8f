package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/pkg/logger"
	"vaultswap.backend/pkg/redis"
)

// slot0() on a Uniswap v3 style pool
var slot0Selector = common.Hex2Bytes("3850c7bd")

const (
	sourceFeed     = "feed"
	sourcePool     = "pool"
	sourcePeg      = "peg"
	sourceFallback = "fallback"
)

// ViewCaller runs read-only contract calls
type ViewCaller interface {
	CallView(ctx context.Context, to string, data []byte) ([]byte, error)
}

// Config configures the price oracle
type Config struct {
	FeedURL string
	// TreasuryPool is the TRZRY/USDC pool. Empty means no pool yet.
	TreasuryPool string
	CacheTTL     time.Duration
	Timeout      time.Duration
}

// PriceOracle prices assets from an HTTP feed, the treasury pool and a
// stable peg, with an optional redis cache in front
type PriceOracle struct {
	cfg        Config
	assets     *entities.AssetRegistry
	chain      ViewCaller
	httpClient *http.Client
	now        func() time.Time
}

type feedResponse struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Unit      string    `json:"unit"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewPriceOracle creates the oracle. chain may be nil, in which case TRZRY
// is priced 1:1.
func NewPriceOracle(cfg Config, assets *entities.AssetRegistry, chain ViewCaller) *PriceOracle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if assets == nil {
		assets = entities.DefaultAssetRegistry()
	}
	return &PriceOracle{
		cfg:        cfg,
		assets:     assets,
		chain:      chain,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// SetClock overrides the time source
func (o *PriceOracle) SetClock(now func() time.Time) { o.now = now }

// GetCurrentPrice returns the USD price of asset
func (o *PriceOracle) GetCurrentPrice(ctx context.Context, symbol entities.AssetSymbol) (*entities.PriceQuote, error) {
	asset, ok := o.assets.Get(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: unknown asset %s", domainerrors.ErrPriceUnavailable, symbol)
	}

	if asset.Kind == entities.AssetKindStable {
		return &entities.PriceQuote{
			Asset:         symbol,
			UnitPriceUSD:  1,
			Unit:          entities.PriceUnitToken,
			Source:        sourcePeg,
			LastUpdatedAt: o.now(),
		}, nil
	}

	if cached, ok := o.cached(ctx, symbol); ok {
		return cached, nil
	}

	var (
		quote *entities.PriceQuote
		err   error
	)
	if asset.Kind == entities.AssetKindTreasury {
		quote, err = o.treasuryPrice(ctx, asset)
	} else {
		quote, err = o.feedPrice(ctx, symbol)
	}
	if err != nil {
		return nil, err
	}

	o.store(ctx, quote)
	return quote, nil
}

func cacheKey(symbol entities.AssetSymbol) string {
	return "price:" + string(symbol)
}

func (o *PriceOracle) cached(ctx context.Context, symbol entities.AssetSymbol) (*entities.PriceQuote, bool) {
	if o.cfg.CacheTTL <= 0 {
		return nil, false
	}
	var quote entities.PriceQuote
	if err := redis.GetJSON(ctx, cacheKey(symbol), &quote); err != nil {
		if !redis.IsNil(err) && !errors.Is(err, redis.ErrNotConfigured) {
			logger.Warn(ctx, "price cache read failed", zap.String("asset", string(symbol)), zap.Error(err))
		}
		return nil, false
	}
	return &quote, true
}

func (o *PriceOracle) store(ctx context.Context, quote *entities.PriceQuote) {
	if o.cfg.CacheTTL <= 0 || quote.Source == sourceFallback {
		return
	}
	if err := redis.SetJSON(ctx, cacheKey(quote.Asset), quote, o.cfg.CacheTTL); err != nil && !errors.Is(err, redis.ErrNotConfigured) {
		logger.Warn(ctx, "price cache write failed", zap.String("asset", string(quote.Asset)), zap.Error(err))
	}
}

func (o *PriceOracle) feedPrice(ctx context.Context, symbol entities.AssetSymbol) (*entities.PriceQuote, error) {
	if o.cfg.FeedURL == "" {
		return nil, fmt.Errorf("%w: price feed not configured", domainerrors.ErrPriceUnavailable)
	}
	reqURL := fmt.Sprintf("%s/v1/prices/%s", strings.TrimRight(o.cfg.FeedURL, "/"), url.PathEscape(string(symbol)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: feed status %d: %s", domainerrors.ErrPriceUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", domainerrors.ErrPriceUnavailable, err)
	}
	if payload.Price <= 0 {
		return nil, fmt.Errorf("%w: feed returned no price for %s", domainerrors.ErrPriceUnavailable, symbol)
	}

	unit := entities.PriceUnitToken
	if strings.EqualFold(payload.Unit, string(entities.PriceUnitGram)) {
		unit = entities.PriceUnitGram
	}
	updated := payload.UpdatedAt
	if updated.IsZero() {
		updated = o.now()
	}
	return &entities.PriceQuote{
		Asset:         symbol,
		UnitPriceUSD:  payload.Price,
		Unit:          unit,
		Source:        sourceFeed,
		LastUpdatedAt: updated,
	}, nil
}

// treasuryPrice reads the pool's sqrtPriceX96. A missing pool or an
// uninitialized one prices TRZRY at 1 USDC.
func (o *PriceOracle) treasuryPrice(ctx context.Context, asset entities.Asset) (*entities.PriceQuote, error) {
	fallback := &entities.PriceQuote{
		Asset:         asset.Symbol,
		UnitPriceUSD:  1,
		Unit:          entities.PriceUnitToken,
		Source:        sourceFallback,
		LastUpdatedAt: o.now(),
	}
	usdc, ok := o.assets.Get(entities.AssetUSDC)
	if o.chain == nil || o.cfg.TreasuryPool == "" || asset.Address == "" || !ok {
		return fallback, nil
	}

	raw, err := o.chain.CallView(ctx, o.cfg.TreasuryPool, slot0Selector)
	if err != nil {
		return nil, fmt.Errorf("%w: treasury pool: %v", domainerrors.ErrPriceUnavailable, err)
	}
	if len(raw) < 32 {
		return fallback, nil
	}
	sqrtPrice := new(big.Int).SetBytes(raw[:32])
	if sqrtPrice.Sign() == 0 {
		return fallback, nil
	}

	treasuryIsToken0 := strings.ToLower(asset.Address) < strings.ToLower(usdc.Address)
	dec0, dec1 := asset.Decimals, usdc.Decimals
	if !treasuryIsToken0 {
		dec0, dec1 = usdc.Decimals, asset.Decimals
	}

	price := PoolPrice(sqrtPrice, dec0, dec1)
	if !treasuryIsToken0 {
		price = 1 / price
	}
	return &entities.PriceQuote{
		Asset:         asset.Symbol,
		UnitPriceUSD:  price,
		Unit:          entities.PriceUnitToken,
		Source:        sourcePool,
		LastUpdatedAt: o.now(),
	}, nil
}

// PoolPrice converts a Q64.96 square root price into whole token1 per whole token0
func PoolPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 int32) float64 {
	sqrt := new(big.Float).SetInt(sqrtPriceX96)
	q96 := new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))
	ratio := new(big.Float).Quo(sqrt, q96)
	ratio.Mul(ratio, ratio)

	shift := decimals0 - decimals1
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs32(shift))), nil))
	if shift >= 0 {
		ratio.Mul(ratio, scale)
	} else {
		ratio.Quo(ratio, scale)
	}
	f, _ := ratio.Float64()
	return f
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
