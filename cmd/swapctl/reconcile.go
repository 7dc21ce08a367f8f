package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultswap.backend/internal/infrastructure/metrics"
	"vaultswap.backend/internal/infrastructure/repositories"
	"vaultswap.backend/internal/infrastructure/routeprovider"
	"vaultswap.backend/internal/usecases"
	"vaultswap.backend/pkg/logger"
)

func newReconcileCmd(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass over pending swaps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := state.cfg

			db, err := openDB(cfg.Database.URL())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			var publisher usecases.EventPublisher = usecases.NoopPublisher()
			if cfg.NATS.URL != "" {
				pub, conn, err := connectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
				if err != nil {
					logger.Warn(ctx, "NATS unavailable, events dropped", zap.Error(err))
				} else {
					publisher = pub
					defer conn.Close()
				}
			}

			router := routeprovider.NewAggregator(cfg.Blockchain.ChainID,
				routeprovider.NewZeroX(routeprovider.ZeroXConfig{
					BaseURL: cfg.Providers.ZeroXBaseURL,
					APIKey:  cfg.Providers.ZeroXAPIKey,
					Timeout: cfg.Providers.HTTPTimeout,
				}),
				routeprovider.NewUniswapX(routeprovider.UniswapXConfig{
					BaseURL: cfg.Providers.UniswapXBaseURL,
					APIKey:  cfg.Providers.UniswapXAPIKey,
					Timeout: cfg.Providers.HTTPTimeout,
				}),
			)

			reconciler := usecases.NewReconciliationUsecase(usecases.ReconciliationDeps{
				Quotes:        repositories.NewQuoteRepository(db),
				Transactions:  repositories.NewTransactionRepository(db),
				Fees:          repositories.NewFeeRecordRepository(db),
				FailedRecords: repositories.NewFailedTransactionRepository(db),
				Ledger: usecases.NewIntentLedger(repositories.NewIntentRepository(db), usecases.StuckPolicy{
					Validating: cfg.Swap.ValidatingStuckAfter,
					Other:      cfg.Swap.StuckAfter,
				}),
				Router:  router,
				Events:  publisher,
				Metrics: metrics.NewSwap(nil),
			}, cfg.Reconciliation.BatchSize)

			report, err := reconciler.Run(ctx)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}
