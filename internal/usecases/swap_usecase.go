package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/domain/repositories"
	"vaultswap.backend/pkg/logger"
	"vaultswap.backend/pkg/utils"
)

// WalletSigner resolves and unlocks a user's signing key
type WalletSigner interface {
	ResolveAddress(ctx context.Context, userID uuid.UUID) (*entities.OnchainAddress, error)
	UnlockForSigning(ctx context.Context, userID uuid.UUID, password string) (*SigningHandle, error)
}

// SwapSettings are the execution knobs from configuration
type SwapSettings struct {
	ChainID         int64
	SlippageBps     int
	PollInterval    time.Duration
	PollAttempts    int
	PersistAttempts int
	PersistBackoff  time.Duration
	// MaxReconcileRetries bounds retries of a failed bookkeeping write
	MaxReconcileRetries int
	// SettleTimeout bounds submission and status polling once a signed
	// route leaves the process. BookkeepingTimeout bounds the writes after it.
	SettleTimeout      time.Duration
	BookkeepingTimeout time.Duration
}

// SwapDeps groups the orchestrator's collaborators
type SwapDeps struct {
	Quotes        repositories.QuoteRepository
	Transactions  repositories.TransactionRepository
	Fees          repositories.FeeRecordRepository
	FailedRecords repositories.FailedTransactionRepository
	Ledger        *IntentLedger
	Signer        WalletSigner
	Router        RouteProvider
	Assets        *entities.AssetRegistry
	Events        EventPublisher
	Metrics       SwapMetrics
}

// SwapUsecase runs a quoted swap end to end
type SwapUsecase struct {
	deps     SwapDeps
	settings SwapSettings
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewSwapUsecase(deps SwapDeps, settings SwapSettings) *SwapUsecase {
	if settings.SlippageBps <= 0 {
		settings.SlippageBps = 25
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = 2 * time.Second
	}
	if settings.PollAttempts <= 0 {
		settings.PollAttempts = 60
	}
	if settings.PersistAttempts <= 0 {
		settings.PersistAttempts = 3
	}
	if settings.PersistBackoff <= 0 {
		settings.PersistBackoff = time.Second
	}
	if settings.MaxReconcileRetries <= 0 {
		settings.MaxReconcileRetries = 10
	}
	if settings.SettleTimeout <= 0 {
		settings.SettleTimeout = settings.PollInterval*time.Duration(settings.PollAttempts) + 2*time.Minute
	}
	if settings.BookkeepingTimeout <= 0 {
		settings.BookkeepingTimeout = settings.PersistBackoff*time.Duration(1<<settings.PersistAttempts) + 30*time.Second
	}
	if deps.Assets == nil {
		deps.Assets = entities.DefaultAssetRegistry()
	}
	if deps.Events == nil {
		deps.Events = NoopPublisher()
	}
	if deps.Metrics == nil {
		deps.Metrics = NoopMetrics()
	}
	return &SwapUsecase{deps: deps, settings: settings, now: time.Now, sleep: sleepContext}
}

// SetClock overrides the time source
func (u *SwapUsecase) SetClock(now func() time.Time) { u.now = now }

// SetSleep overrides how the usecase waits between polls and retries
func (u *SwapUsecase) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	u.sleep = sleep
}

// detached keeps ctx values (request id, user id) but not its cancellation
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// swapRun carries the state of one ExecuteSwap call
type swapRun struct {
	quote   *entities.Quote
	intent  *entities.Intent
	taker   string
	route   *entities.Route
	retried bool
	started time.Time
}

func (r *swapRun) result() *entities.SwapResult {
	res := &entities.SwapResult{}
	if r.intent != nil {
		id := r.intent.ID
		res.IntentID = &id
	}
	return res
}

// ExecuteSwap executes a previously quoted swap for the user
func (u *SwapUsecase) ExecuteSwap(ctx context.Context, input entities.ExecuteSwapInput) (*entities.SwapResult, error) {
	run := &swapRun{started: u.now()}

	if err := u.guardQuote(ctx, input.QuoteID); err != nil {
		return nil, err
	}

	quote, err := u.deps.Quotes.GetByIDForUser(ctx, input.QuoteID, input.UserID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.ErrQuoteNotFound
	}
	if err != nil {
		return nil, err
	}
	if now := u.now(); quote.IsExpired(now) {
		return nil, &domainerrors.QuoteExpiredError{QuoteID: quote.ID.String(), ExpiredAt: quote.ExpiresAt, Overage: quote.ExpiredBy(now)}
	}
	run.quote = quote

	wallet, err := u.deps.Signer.ResolveAddress(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	run.taker = wallet.Address

	if err := u.clearStuckIntent(ctx, quote.ID); err != nil {
		return nil, err
	}

	intent, err := u.deps.Ledger.CreateIntent(ctx, entities.CreateIntentInput{
		QuoteID:              quote.ID,
		UserID:               input.UserID,
		InputAsset:           quote.InputAsset,
		OutputAsset:          quote.OutputAsset,
		InputAmount:          quote.InputAmount,
		ExpectedOutputAmount: quote.OutputAmount,
	})
	if err != nil {
		return nil, err
	}
	run.intent = intent
	u.publish(ctx, run, entities.SwapPhaseIntentCreated, "")

	// a concurrent winner may have finished between the first guard and CreateIntent
	if err := u.guardQuote(ctx, quote.ID); err != nil {
		u.failIntent(ctx, run, "superseded by concurrent swap", entities.IntentEvidence{})
		return nil, err
	}

	if err := u.advance(ctx, run, entities.IntentStatusValidating, entities.IntentEvidence{
		ValidationDetails: map[string]any{
			"walletAddress":  run.taker,
			"quoteExpiresAt": quote.ExpiresAt.UTC().Format(time.RFC3339),
			"inputAmount":    quote.InputAmount,
			"slippageBps":    u.settings.SlippageBps,
		},
	}); err != nil {
		return run.result(), err
	}
	u.publish(ctx, run, entities.SwapPhaseValidated, "")

	route, err := u.findRoute(ctx, run)
	if err != nil {
		return run.result(), err
	}
	run.route = route

	handle, err := u.deps.Signer.UnlockForSigning(ctx, input.UserID, input.Password)
	if err != nil {
		u.failIntent(ctx, run, err.Error(), entities.IntentEvidence{})
		return run.result(), err
	}
	defer handle.Close()

	signed, err := signRoute(handle, route)
	if err != nil {
		u.failIntent(ctx, run, err.Error(), entities.IntentEvidence{})
		return run.result(), err
	}
	if err := u.advance(ctx, run, entities.IntentStatusFundsPulled, entities.IntentEvidence{RouteProvider: string(route.Provider)}); err != nil {
		return run.result(), err
	}
	u.publish(ctx, run, entities.SwapPhaseFundsPulled, "")

	// signed payloads are about to leave the process: from here on the swap
	// runs to a recorded outcome even if the caller goes away
	settleCtx, cancelSettle := detached(ctx, u.settings.SettleTimeout)
	defer cancelSettle()

	exec, err := u.submit(settleCtx, run, handle, signed)
	if err != nil {
		bookCtx, cancelBook := detached(ctx, u.settings.BookkeepingTimeout)
		defer cancelBook()
		res := run.result()
		res.Error = err.Error()
		var perr *domainerrors.ProviderError
		if errors.As(err, &perr) {
			res.RequiresImport = perr.RequiresImport
			res.RequiresRefund = perr.RequiresRefund
			res.RefundTxHash = perr.RefundTxHash
		}
		u.failIntent(bookCtx, run, err.Error(), entities.IntentEvidence{RefundTxHash: res.RefundTxHash})
		return res, err
	}

	// the trade is out: a ledger hiccup here must not stop polling or recording
	if updated, err := u.deps.Ledger.UpdateStatus(settleCtx, run.intent.ID, entities.IntentStatusSwapExecuted, entities.IntentEvidence{
		TradeHash:  exec.TradeHash,
		SwapTxHash: exec.TxHash,
	}); err != nil {
		logger.Error(settleCtx, "trade submitted but intent not advanced",
			zap.String("intent_id", run.intent.ID.String()),
			zap.String("trade_hash", exec.TradeHash),
			zap.Error(err),
		)
	} else {
		run.intent = updated
	}
	u.publish(settleCtx, run, entities.SwapPhaseSubmitted, exec.TxHash)

	status, pollErr := u.poll(settleCtx, run, exec.TradeHash)

	bookCtx, cancelBook := detached(ctx, u.settings.BookkeepingTimeout)
	defer cancelBook()
	if pollErr != nil {
		return u.handlePollFailure(bookCtx, run, exec, status, pollErr)
	}
	txHash := status.TxHash
	if txHash == "" {
		txHash = exec.TxHash
	}

	return u.finish(bookCtx, run, exec.TradeHash, txHash), nil
}

// guardQuote rejects a quote that already has a pending or completed swap
func (u *SwapUsecase) guardQuote(ctx context.Context, quoteID uuid.UUID) error {
	tx, err := u.deps.Transactions.FindBlockingByQuote(ctx, quoteID)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return err
	}
	if tx != nil {
		return fmt.Errorf("%w: transaction %s is %s", domainerrors.ErrAlreadyInProgress, tx.ID, tx.Status)
	}
	done, err := u.deps.Ledger.HasCompletedForQuote(ctx, quoteID)
	if err != nil {
		return err
	}
	if done {
		return fmt.Errorf("%w: quote %s already completed", domainerrors.ErrAlreadyInProgress, quoteID)
	}
	return nil
}

// clearStuckIntent fails an active intent that has outlived its phase and
// rejects a fresh one
func (u *SwapUsecase) clearStuckIntent(ctx context.Context, quoteID uuid.UUID) error {
	active, err := u.deps.Ledger.FindActiveByQuote(ctx, quoteID)
	if err != nil || active == nil {
		return err
	}
	now := u.now()
	if !u.deps.Ledger.IsStuck(active, now) {
		return fmt.Errorf("%w: intent %s is %s", domainerrors.ErrAlreadyInProgress, active.ID, active.Status)
	}
	if _, err := u.deps.Ledger.FailStuck(ctx, active, now); err != nil && !errors.Is(err, domainerrors.ErrStaleStatus) {
		return err
	}
	u.deps.Metrics.StuckIntentFailed()
	logger.Warn(ctx, "failed stuck intent",
		zap.String("intent_id", active.ID.String()),
		zap.String("status", string(active.Status)),
	)
	return nil
}

func (u *SwapUsecase) routeRequest(run *swapRun) (entities.RouteRequest, error) {
	in, ok := u.deps.Assets.Get(run.quote.InputAsset)
	if !ok {
		return entities.RouteRequest{}, domainerrors.ErrUnsupportedPair
	}
	out, ok := u.deps.Assets.Get(run.quote.OutputAsset)
	if !ok {
		return entities.RouteRequest{}, domainerrors.ErrUnsupportedPair
	}
	return entities.RouteRequest{
		ChainID:     u.settings.ChainID,
		InputAsset:  in,
		OutputAsset: out,
		SellAmount:  ToBaseUnits(run.quote.InputAmount, in.Decimals),
		SlippageBps: u.settings.SlippageBps,
		Taker:       run.taker,
	}, nil
}

// findRoute asks the providers for a route. Provider errors fail the
// intent; an empty answer is a validation failure.
func (u *SwapUsecase) findRoute(ctx context.Context, run *swapRun) (*entities.Route, error) {
	req, err := u.routeRequest(run)
	if err != nil {
		u.failIntent(ctx, run, err.Error(), entities.IntentEvidence{})
		return nil, err
	}
	routes, err := u.deps.Router.GetBestRoute(ctx, req)
	if err != nil {
		u.recordProviderError(err)
		u.failIntent(ctx, run, err.Error(), entities.IntentEvidence{})
		return nil, err
	}
	if len(routes) == 0 || routes[0] == nil {
		updated, err := u.deps.Ledger.UpdateStatus(ctx, run.intent.ID, entities.IntentStatusValidationFailed, entities.IntentEvidence{
			ErrorDetail: domainerrors.ErrNoRouteFound.Error(),
		})
		if err != nil {
			logger.Error(ctx, "failed to mark intent validation_failed", zap.Error(err))
		} else {
			run.intent = updated
		}
		u.publish(ctx, run, entities.SwapPhaseFailed, domainerrors.ErrNoRouteFound.Error())
		u.deps.Metrics.SwapFinished("validation_failed", u.now().Sub(run.started))
		return nil, domainerrors.ErrNoRouteFound
	}
	return routes[0], nil
}

func signRoute(handle *SigningHandle, route *entities.Route) ([]entities.SignedPayload, error) {
	if route.Payload == nil {
		return nil, fmt.Errorf("%w: route has no payload", domainerrors.ErrSwapFailed)
	}
	requests := route.Payload.SigningRequests()
	signed := make([]entities.SignedPayload, 0, len(requests))
	for _, req := range requests {
		sp, err := handle.Sign(req)
		if err != nil {
			return nil, err
		}
		signed = append(signed, sp)
	}
	return signed, nil
}

// submit sends the signed route. An expired route is re-fetched, re-signed
// and re-submitted exactly once.
func (u *SwapUsecase) submit(ctx context.Context, run *swapRun, handle *SigningHandle, signed []entities.SignedPayload) (*entities.ExecutionResult, error) {
	for {
		exec, err := u.deps.Router.ExecuteRoute(ctx, run.route, run.taker, u.settings.SlippageBps, signed)
		if err == nil && exec != nil && !exec.Success {
			err = &domainerrors.ProviderError{
				Provider:       string(run.route.Provider),
				Kind:           domainerrors.ProviderErrorUnknown,
				Message:        "submission rejected",
				RequiresRefund: exec.RequiresRefund,
				RefundTxHash:   exec.RefundTxHash,
			}
		}
		if err == nil && exec == nil {
			err = fmt.Errorf("%w: empty execution result", domainerrors.ErrSwapFailed)
		}
		if err == nil {
			return exec, nil
		}
		u.recordProviderError(err)

		if run.retried || !domainerrors.IsProviderKind(err, domainerrors.ProviderErrorExpired) {
			return nil, err
		}
		run.retried = true
		logger.Info(ctx, "route expired, refreshing once", zap.String("intent_id", run.intent.ID.String()))

		req, reqErr := u.routeRequest(run)
		if reqErr != nil {
			return nil, reqErr
		}
		routes, routeErr := u.deps.Router.GetBestRoute(ctx, req)
		if routeErr != nil {
			return nil, routeErr
		}
		if len(routes) == 0 || routes[0] == nil {
			return nil, domainerrors.ErrNoRouteFound
		}
		run.route = routes[0]
		if signed, err = signRoute(handle, run.route); err != nil {
			return nil, err
		}
	}
}

// poll waits for the trade to settle. It returns ErrPollingTimeout when
// the budget runs out and ErrSwapFailed when the provider reports failure.
func (u *SwapUsecase) poll(ctx context.Context, run *swapRun, tradeHash string) (*entities.RouteStatus, error) {
	var last *entities.RouteStatus
	for attempt := 0; attempt < u.settings.PollAttempts; attempt++ {
		if attempt > 0 {
			if err := u.sleep(ctx, u.settings.PollInterval); err != nil {
				return last, fmt.Errorf("%w: %v", domainerrors.ErrPollingTimeout, err)
			}
		}
		status, err := u.deps.Router.GetStatus(ctx, run.route.Provider, tradeHash)
		if err != nil {
			u.recordProviderError(err)
			logger.Warn(ctx, "status poll failed",
				zap.String("trade_hash", tradeHash),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}
		last = status
		switch status.State {
		case entities.RouteStateConfirmed:
			return status, nil
		case entities.RouteStateFailed:
			reason := status.Reason
			if reason == "" {
				reason = "trade failed"
			}
			return status, fmt.Errorf("%w: %s", domainerrors.ErrSwapFailed, reason)
		}
	}
	return last, domainerrors.ErrPollingTimeout
}

func (u *SwapUsecase) handlePollFailure(ctx context.Context, run *swapRun, exec *entities.ExecutionResult, status *entities.RouteStatus, err error) (*entities.SwapResult, error) {
	res := run.result()
	res.TradeHash = exec.TradeHash
	res.TxHash = exec.TxHash
	res.Error = err.Error()

	if !errors.Is(err, domainerrors.ErrPollingTimeout) {
		if status != nil {
			res.RefundTxHash = status.RefundTxHash
			res.RequiresRefund = status.RefundTxHash != ""
		}
		res.Status = entities.TransactionStatusFailed
		u.failIntent(ctx, run, err.Error(), entities.IntentEvidence{RefundTxHash: res.RefundTxHash})
		return res, err
	}

	// the trade may still land: keep the intent at swap_executed and leave
	// a pending record for reconciliation
	res.Status = entities.TransactionStatusPending
	res.RequiresReconciliation = true
	tx := u.buildTransaction(run, exec.TradeHash, exec.TxHash, entities.TransactionStatusPending)
	if createErr := u.persistTransaction(ctx, tx); createErr != nil {
		u.recordFailedWrite(ctx, run, tx, createErr)
	} else {
		res.TransactionID = &tx.ID
	}
	u.publish(ctx, run, entities.SwapPhasePending, exec.TxHash)
	u.deps.Metrics.SwapFinished("pending", u.now().Sub(run.started))
	return res, err
}

// finish records a confirmed trade. Bookkeeping failures never turn the
// result into a failure.
func (u *SwapUsecase) finish(ctx context.Context, run *swapRun, tradeHash, txHash string) *entities.SwapResult {
	res := run.result()
	res.Success = true
	res.Status = entities.TransactionStatusCompleted
	res.TradeHash = tradeHash
	res.TxHash = txHash

	tx := u.buildTransaction(run, tradeHash, txHash, entities.TransactionStatusCompleted)
	if err := u.persistTransaction(ctx, tx); err != nil {
		res.RequiresReconciliation = true
		u.recordFailedWrite(ctx, run, tx, err)
	} else {
		res.TransactionID = &tx.ID
		u.recordFee(ctx, run, tx)
	}

	if _, err := u.deps.Ledger.UpdateStatus(ctx, run.intent.ID, entities.IntentStatusCompleted, entities.IntentEvidence{
		SwapTxHash: txHash,
	}); err != nil {
		logger.Error(ctx, "failed to complete intent",
			zap.String("intent_id", run.intent.ID.String()),
			zap.Error(err),
		)
	}
	u.publish(ctx, run, entities.SwapPhaseCompleted, txHash)
	u.deps.Metrics.SwapFinished("completed", u.now().Sub(run.started))
	return res
}

func (u *SwapUsecase) buildTransaction(run *swapRun, tradeHash, txHash string, status entities.TransactionStatus) *entities.Transaction {
	now := u.now()
	tx := &entities.Transaction{
		ID:           utils.GenerateUUIDv7(),
		UserID:       run.intent.UserID,
		QuoteID:      run.quote.ID,
		IntentID:     run.intent.ID,
		InputAsset:   run.quote.InputAsset,
		OutputAsset:  run.quote.OutputAsset,
		InputAmount:  run.quote.InputAmount,
		OutputAmount: run.quote.OutputAmount,
		TradeHash:    tradeHash,
		Status:       status,
		Metadata: entities.TransactionMetadata{
			Protocol:       "dex_aggregator",
			Provider:       string(run.route.Provider),
			RouteSummary:   run.route.Summary,
			PriceImpactBps: run.route.PriceImpactBps,
			GasEstimate:    run.route.GasEstimate,
			GasPaidBy:      "provider",
			RetriedExpired: run.retried,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if txHash != "" {
		tx.TxHash.SetValid(txHash)
	}
	return tx
}

// persistTransaction writes tx with exponential backoff. A row already
// stored under the same trade hash counts as written.
func (u *SwapUsecase) persistTransaction(ctx context.Context, tx *entities.Transaction) error {
	var err error
	backoff := u.settings.PersistBackoff
	for attempt := 1; attempt <= u.settings.PersistAttempts; attempt++ {
		if err = u.deps.Transactions.Create(ctx, tx); err == nil {
			return nil
		}
		if existing, lookupErr := u.deps.Transactions.GetByTradeHash(ctx, tx.TradeHash); lookupErr == nil && existing != nil {
			tx.ID = existing.ID
			return nil
		}
		logger.Warn(ctx, "transaction write failed",
			zap.String("trade_hash", tx.TradeHash),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < u.settings.PersistAttempts {
			if sleepErr := u.sleep(ctx, backoff); sleepErr != nil {
				return sleepErr
			}
			backoff *= 2
		}
	}
	return err
}

func (u *SwapUsecase) recordFailedWrite(ctx context.Context, run *swapRun, tx *entities.Transaction, cause error) {
	now := u.now()
	record := &entities.FailedTransactionRecord{
		ID:          utils.GenerateUUIDv7(),
		UserID:      tx.UserID,
		QuoteID:     tx.QuoteID,
		IntentID:    tx.IntentID,
		TxHash:      tx.TxHash.String,
		TradeHash:   tx.TradeHash,
		Payload:     tx,
		LastError:   cause.Error(),
		Status:      entities.FailedRecordPending,
		MaxRetries:  u.settings.MaxReconcileRetries,
		NextRetryAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.deps.FailedRecords.Create(ctx, record); err != nil {
		// last resort: the log line is the only trace of this swap
		logger.Error(ctx, "failed to record transaction for reconciliation",
			zap.String("intent_id", run.intent.ID.String()),
			zap.String("trade_hash", tx.TradeHash),
			zap.String("tx_hash", tx.TxHash.String),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	u.deps.Metrics.ReconciliationRecord(string(entities.FailedRecordPending))
	u.publish(ctx, run, entities.SwapPhaseNeedsReconcile, tx.TxHash.String)
}

func (u *SwapUsecase) recordFee(ctx context.Context, run *swapRun, tx *entities.Transaction) {
	if u.deps.Fees == nil || run.quote.FeeAmount <= 0 {
		return
	}
	txID := tx.ID
	fee := &entities.FeeRecord{
		ID:            utils.GenerateUUIDv7(),
		UserID:        tx.UserID,
		QuoteID:       run.quote.ID,
		TransactionID: &txID,
		TxHash:        tx.TxHash.String,
		FeeAsset:      run.quote.FeeAsset,
		FeeAmount:     run.quote.FeeAmount,
		FeeBps:        run.quote.FeeBps,
		FeeSide:       run.quote.FeeSide,
		CreatedAt:     u.now(),
	}
	if err := u.deps.Fees.Create(ctx, fee); err != nil {
		logger.Warn(ctx, "failed to record fee", zap.String("quote_id", run.quote.ID.String()), zap.Error(err))
	}
}

func (u *SwapUsecase) advance(ctx context.Context, run *swapRun, next entities.IntentStatus, ev entities.IntentEvidence) error {
	updated, err := u.deps.Ledger.UpdateStatus(ctx, run.intent.ID, next, ev)
	if err != nil {
		logger.Error(ctx, "intent transition failed",
			zap.String("intent_id", run.intent.ID.String()),
			zap.String("to", string(next)),
			zap.Error(err),
		)
		if !errors.Is(err, domainerrors.ErrStaleStatus) && !errors.Is(err, domainerrors.ErrIntentTerminal) {
			u.failIntent(ctx, run, err.Error(), entities.IntentEvidence{})
		}
		return err
	}
	run.intent = updated
	return nil
}

func (u *SwapUsecase) failIntent(ctx context.Context, run *swapRun, reason string, ev entities.IntentEvidence) {
	if run.intent == nil {
		return
	}
	if updated, err := u.deps.Ledger.Fail(ctx, run.intent.ID, reason, ev); err != nil {
		logger.Error(ctx, "failed to mark intent failed",
			zap.String("intent_id", run.intent.ID.String()),
			zap.Error(err),
		)
	} else {
		run.intent = updated
	}
	u.publish(ctx, run, entities.SwapPhaseFailed, "")
	u.deps.Metrics.SwapFinished("failed", u.now().Sub(run.started))
}

func (u *SwapUsecase) recordProviderError(err error) {
	var perr *domainerrors.ProviderError
	if errors.As(err, &perr) {
		u.deps.Metrics.ProviderError(perr.Provider, string(perr.Kind))
	}
}

func (u *SwapUsecase) publish(ctx context.Context, run *swapRun, phase entities.SwapPhase, txHash string) {
	event := entities.SwapEvent{
		Phase:   phase,
		QuoteID: run.quote.ID,
		TxHash:  txHash,
		At:      u.now(),
	}
	if run.intent != nil {
		event.IntentID = run.intent.ID
		event.UserID = run.intent.UserID
		event.Status = run.intent.Status
		event.TradeHash = run.intent.TradeHash.String
		if run.intent.ErrorDetail.Valid && phase == entities.SwapPhaseFailed {
			event.Error = run.intent.ErrorDetail.String
		}
	}
	if run.route != nil {
		event.Provider = string(run.route.Provider)
	}
	if err := u.deps.Events.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "failed to publish swap event", zap.String("phase", string(phase)), zap.Error(err))
	}
}
