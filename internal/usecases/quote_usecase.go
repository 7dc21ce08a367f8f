package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/domain/repositories"
	"vaultswap.backend/pkg/logger"
	"vaultswap.backend/pkg/utils"
)

// QuoteSettings are the quoting knobs from configuration
type QuoteSettings struct {
	SlippageBps        int
	Validity           time.Duration
	IndicativeValidity time.Duration
}

// QuoteUsecase prices swaps and persists the resulting quotes
type QuoteUsecase struct {
	quoteRepo repositories.QuoteRepository
	oracle    PriceOracle
	assets    *entities.AssetRegistry
	fees      *FeeCalculator
	settings  QuoteSettings
	metrics   SwapMetrics
	now       func() time.Time
}

// NewQuoteUsecase creates a new quote usecase
func NewQuoteUsecase(
	quoteRepo repositories.QuoteRepository,
	oracle PriceOracle,
	assets *entities.AssetRegistry,
	fees *FeeCalculator,
	settings QuoteSettings,
	metrics SwapMetrics,
) *QuoteUsecase {
	if settings.Validity <= 0 {
		settings.Validity = 10 * time.Minute
	}
	if settings.IndicativeValidity <= 0 {
		settings.IndicativeValidity = 2 * time.Minute
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	return &QuoteUsecase{
		quoteRepo: quoteRepo,
		oracle:    oracle,
		assets:    assets,
		fees:      fees,
		settings:  settings,
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetClock overrides the time source
func (u *QuoteUsecase) SetClock(now func() time.Time) {
	u.now = now
}

// GenerateQuote prices a swap and stores the quote. Indicative quotes are
// returned even when they cannot be stored.
func (u *QuoteUsecase) GenerateQuote(ctx context.Context, input *entities.GenerateQuoteInput) (*entities.Quote, error) {
	inAsset, outAsset, err := u.validate(input)
	if err != nil {
		return nil, err
	}

	side, err := resolveSide(input.Side, inAsset, outAsset)
	if err != nil {
		return nil, err
	}
	kind := input.AmountKind
	if kind == "" {
		kind = entities.AmountKindSource
	}
	if kind != entities.AmountKindSource && kind != entities.AmountKindTarget {
		return nil, domainerrors.NewError("amountKind must be source or target", domainerrors.ErrInvalidInput)
	}

	inPrice, outPrice, err := u.fetchPrices(ctx, inAsset.Symbol, outAsset.Symbol)
	if err != nil {
		return nil, err
	}

	raw := ComputeQuoteAmounts(QuoteMathInput{
		Amount:      input.Amount,
		AmountKind:  kind,
		InputPrice:  inPrice.PerTokenUSD(),
		OutputPrice: outPrice.PerTokenUSD(),
		FeeBps:      u.fees.Bps(),
		FeeSide:     u.fees.Side(),
		SlippageBps: u.settings.SlippageBps,
	})

	feeAsset := inAsset
	if u.fees.Side() == entities.FeeSideOutput {
		feeAsset = outAsset
	}
	amounts := RoundForPresentation(raw, inAsset, outAsset, feeAsset)

	now := u.now()
	validity := u.settings.Validity
	if input.Indicative {
		validity = u.settings.IndicativeValidity
	}

	quote := &entities.Quote{
		ID:              utils.GenerateUUIDv7(),
		UserID:          input.UserID,
		Side:            side,
		AmountKind:      kind,
		InputAsset:      inAsset.Symbol,
		OutputAsset:     outAsset.Symbol,
		InputAmount:     amounts.InputAmount,
		OutputAmount:    amounts.OutputAmount,
		ExchangeRate:    amounts.ExchangeRate,
		FeeAmount:       amounts.FeeAmount,
		FeeAsset:        feeAsset.Symbol,
		FeeBps:          u.fees.Bps(),
		FeeSide:         u.fees.Side(),
		NetAmount:       amounts.NetAmount,
		NetUSDAmount:    amounts.NetUSDAmount,
		MinimumReceived: amounts.MinimumReceived,
		SlippageBps:     u.settings.SlippageBps,
		Indicative:      input.Indicative,
		PriceSnapshot:   snapshotOf(inPrice, outPrice),
		CreatedAt:       now,
		ExpiresAt:       now.Add(validity),
	}

	if err := u.quoteRepo.Create(ctx, quote); err != nil {
		if !input.Indicative {
			return nil, fmt.Errorf("persist quote: %w", err)
		}
		logger.Warn(ctx, "Failed to persist indicative quote", zap.String("quote_id", quote.ID.String()), zap.Error(err))
	}

	u.metrics.QuoteGenerated(string(inAsset.Symbol)+"/"+string(outAsset.Symbol), input.Indicative)
	return quote, nil
}

// GetQuote returns a stored quote owned by userID
func (u *QuoteUsecase) GetQuote(ctx context.Context, userID, quoteID uuid.UUID) (*entities.Quote, error) {
	q, err := u.quoteRepo.GetByIDForUser(ctx, quoteID, userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrQuoteNotFound
		}
		return nil, err
	}
	return q, nil
}

func (u *QuoteUsecase) validate(input *entities.GenerateQuoteInput) (entities.Asset, entities.Asset, error) {
	if input == nil {
		return entities.Asset{}, entities.Asset{}, domainerrors.ErrBadRequest
	}
	if input.InputAsset == input.OutputAsset {
		return entities.Asset{}, entities.Asset{}, domainerrors.ErrSameAssetSwap
	}
	inAsset, okIn := u.assets.Get(input.InputAsset)
	outAsset, okOut := u.assets.Get(input.OutputAsset)
	if !okIn || !okOut || !u.assets.Supports(input.InputAsset, input.OutputAsset) {
		return entities.Asset{}, entities.Asset{}, domainerrors.ErrUnsupportedPair
	}
	if input.Amount <= 0 || math.IsNaN(input.Amount) || math.IsInf(input.Amount, 0) {
		return entities.Asset{}, entities.Asset{}, domainerrors.ErrInvalidAmount
	}
	return inAsset, outAsset, nil
}

// resolveSide checks the requested side against the pair. Spending a stable
// asset is a buy and receiving one is a sell; for pairs where both or neither
// leg is stable the side is informational and defaults to buy.
func resolveSide(requested entities.QuoteSide, in, out entities.Asset) (entities.QuoteSide, error) {
	if requested != "" && requested != entities.QuoteSideBuy && requested != entities.QuoteSideSell {
		return "", domainerrors.NewError("side must be buy or sell", domainerrors.ErrInvalidInput)
	}
	inStable := in.Kind == entities.AssetKindStable
	outStable := out.Kind == entities.AssetKindStable

	var implied entities.QuoteSide
	switch {
	case inStable && !outStable:
		implied = entities.QuoteSideBuy
	case outStable && !inStable:
		implied = entities.QuoteSideSell
	}
	if implied == "" {
		if requested == "" {
			return entities.QuoteSideBuy, nil
		}
		return requested, nil
	}
	if requested != "" && requested != implied {
		return "", domainerrors.NewError(
			fmt.Sprintf("side %s does not match %s -> %s", requested, in.Symbol, out.Symbol),
			domainerrors.ErrInvalidInput,
		)
	}
	return implied, nil
}

func (u *QuoteUsecase) fetchPrices(ctx context.Context, in, out entities.AssetSymbol) (*entities.PriceQuote, *entities.PriceQuote, error) {
	var inPrice, outPrice *entities.PriceQuote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := u.oracle.GetCurrentPrice(gctx, in)
		inPrice = p
		return err
	})
	g.Go(func() error {
		p, err := u.oracle.GetCurrentPrice(gctx, out)
		outPrice = p
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domainerrors.ErrPriceUnavailable, err)
	}
	if inPrice == nil || outPrice == nil || inPrice.PerTokenUSD() <= 0 || outPrice.PerTokenUSD() <= 0 {
		return nil, nil, domainerrors.ErrPriceUnavailable
	}
	return inPrice, outPrice, nil
}

func snapshotOf(in, out *entities.PriceQuote) entities.PriceSnapshot {
	source := in.Source
	if out.Source != in.Source {
		source = in.Source + "+" + out.Source
	}
	observed := in.LastUpdatedAt
	if out.LastUpdatedAt.Before(observed) {
		observed = out.LastUpdatedAt
	}
	return entities.PriceSnapshot{
		InputUnitPriceUSD:  in.PerTokenUSD(),
		OutputUnitPriceUSD: out.PerTokenUSD(),
		Source:             source,
		ObservedAt:         observed,
	}
}
