package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/infrastructure/metrics"
	"vaultswap.backend/internal/infrastructure/oracle"
	"vaultswap.backend/internal/usecases"
)

// discardQuotes keeps indicative quotes out of the database
type discardQuotes struct{}

func (discardQuotes) Create(context.Context, *entities.Quote) error { return nil }

func (discardQuotes) GetByID(context.Context, uuid.UUID) (*entities.Quote, error) {
	return nil, domainerrors.ErrNotFound
}

func (discardQuotes) GetByIDForUser(context.Context, uuid.UUID, uuid.UUID) (*entities.Quote, error) {
	return nil, domainerrors.ErrNotFound
}

func newQuoteCmd(state *cli) *cobra.Command {
	var (
		from, to, side, kind string
		amount               float64
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against the live oracle without storing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := state.cfg

			in, ok := entities.ParseAssetSymbol(from)
			if !ok {
				return fmt.Errorf("unknown asset %q", from)
			}
			out, ok := entities.ParseAssetSymbol(to)
			if !ok {
				return fmt.Errorf("unknown asset %q", to)
			}

			assets := entities.DefaultAssetRegistry()
			assets.SetAddress(entities.AssetTRZRY, cfg.Blockchain.TreasuryTokenAddress)

			var chain oracle.ViewCaller
			if cfg.Blockchain.TreasuryPoolAddress != "" && (in == entities.AssetTRZRY || out == entities.AssetTRZRY) {
				client, err := dialChain(cfg.Blockchain.RPCURL)
				if err != nil {
					return fmt.Errorf("failed to dial chain rpc: %w", err)
				}
				defer client.Close()
				chain = client
			}

			prices := oracle.NewPriceOracle(oracle.Config{
				FeedURL:      cfg.Providers.PriceFeedURL,
				TreasuryPool: cfg.Blockchain.TreasuryPoolAddress,
				Timeout:      cfg.Providers.HTTPTimeout,
			}, assets, chain)

			quotes := usecases.NewQuoteUsecase(discardQuotes{}, prices, assets,
				usecases.NewFeeCalculator(cfg.Swap.FeeBps, entities.FeeSide(cfg.Swap.FeeSide)),
				usecases.QuoteSettings{
					SlippageBps:        cfg.Swap.SlippageBps,
					Validity:           cfg.Swap.QuoteValidity,
					IndicativeValidity: cfg.Swap.IndicativeValidity,
				}, metrics.NewSwap(nil))

			q, err := quotes.GenerateQuote(cmd.Context(), &entities.GenerateQuoteInput{
				Side:        entities.QuoteSide(side),
				InputAsset:  in,
				OutputAsset: out,
				Amount:      amount,
				AmountKind:  entities.AmountKind(kind),
				Indicative:  true,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "input asset symbol")
	cmd.Flags().StringVar(&to, "to", "", "output asset symbol")
	cmd.Flags().Float64Var(&amount, "amount", 0, "amount in token units")
	cmd.Flags().StringVar(&side, "side", "", "buy or sell (derived from the pair when empty)")
	cmd.Flags().StringVar(&kind, "amount-kind", string(entities.AmountKindSource), "source or target")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
