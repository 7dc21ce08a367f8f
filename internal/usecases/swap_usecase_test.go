package usecases_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/usecases"
)

// stubSigner hands out a fresh handle per unlock since Close zeroes the key
type stubSigner struct {
	keyBytes []byte
	address  string
	password string
}

func newStubSigner(t *testing.T) *stubSigner {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return &stubSigner{
		keyBytes: ethcrypto.FromECDSA(key),
		address:  ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		password: testPassword,
	}
}

func (s *stubSigner) ResolveAddress(context.Context, uuid.UUID) (*entities.OnchainAddress, error) {
	return &entities.OnchainAddress{Address: s.address, Status: entities.AddressStatusActive}, nil
}

func (s *stubSigner) UnlockForSigning(_ context.Context, _ uuid.UUID, password string) (*usecases.SigningHandle, error) {
	if password != s.password {
		return nil, domainerrors.ErrWrongPassword
	}
	key, err := ethcrypto.ToECDSA(s.keyBytes)
	if err != nil {
		return nil, err
	}
	return usecases.NewSigningHandle(key), nil
}

type swapFixture struct {
	uc      *usecases.SwapUsecase
	quotes  *MockQuoteRepository
	txs     *MockTransactionRepository
	fees    *MockFeeRecordRepository
	failed  *MockFailedTransactionRepository
	intents *memIntentRepo
	ledger  *usecases.IntentLedger
	router  *MockRouteProvider
	events  *recordingPublisher
	quote   *entities.Quote
	userID  uuid.UUID
	now     time.Time

	sleepMu sync.Mutex
	sleeps  []time.Duration
}

func testRoute() *entities.Route {
	return &entities.Route{
		Provider:    entities.RouteProviderZeroX,
		InputAsset:  entities.AssetUSDC,
		OutputAsset: entities.AssetXAUT,
		SellAmount:  big.NewInt(1_000_000_000),
		BuyAmount:   big.NewInt(375_000),
		Summary:     "Uniswap_V3 100%",
		Payload: &entities.ZeroXRoutePayload{
			Trade: entities.SigningRequest{Kind: entities.SigningKindTrade, Type: "Mail", TypedData: sampleTypedData()},
		},
	}
}

func newSwapFixture(t *testing.T) *swapFixture {
	f := &swapFixture{
		quotes:  new(MockQuoteRepository),
		txs:     new(MockTransactionRepository),
		fees:    new(MockFeeRecordRepository),
		failed:  new(MockFailedTransactionRepository),
		intents: newMemIntentRepo(),
		router:  new(MockRouteProvider),
		events:  &recordingPublisher{},
		userID:  uuid.New(),
		now:     time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.ledger = usecases.NewIntentLedger(f.intents, usecases.StuckPolicy{})
	f.ledger.SetClock(clock)

	f.quote = &entities.Quote{
		ID:           uuid.New(),
		UserID:       &f.userID,
		InputAsset:   entities.AssetUSDC,
		OutputAsset:  entities.AssetXAUT,
		InputAmount:  1000,
		OutputAmount: 0.375218,
		FeeAmount:    8,
		FeeAsset:     entities.AssetUSDC,
		FeeBps:       80,
		FeeSide:      entities.FeeSideInput,
		CreatedAt:    f.now.Add(-time.Minute),
		ExpiresAt:    f.now.Add(9 * time.Minute),
	}

	f.uc = usecases.NewSwapUsecase(usecases.SwapDeps{
		Quotes:        f.quotes,
		Transactions:  f.txs,
		Fees:          f.fees,
		FailedRecords: f.failed,
		Ledger:        f.ledger,
		Signer:        newStubSigner(t),
		Router:        f.router,
		Events:        f.events,
	}, usecases.SwapSettings{ChainID: 1, PollAttempts: 3})
	f.uc.SetClock(clock)
	f.uc.SetSleep(func(_ context.Context, d time.Duration) error {
		f.sleepMu.Lock()
		defer f.sleepMu.Unlock()
		f.sleeps = append(f.sleeps, d)
		return nil
	})
	return f
}

// happy wires every collaborator for a successful swap
func (f *swapFixture) happy() {
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
	f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{testRoute()}, nil)
	f.router.On("ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, 25, mock.Anything).
		Return(&entities.ExecutionResult{Success: true, TradeHash: "0xtrade"}, nil)
	f.router.On("GetStatus", mock.Anything, entities.RouteProviderZeroX, "0xtrade").
		Return(&entities.RouteStatus{State: entities.RouteStateConfirmed, TxHash: "0xabc"}, nil)
	f.txs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.fees.On("Create", mock.Anything, mock.Anything).Return(nil)
}

func (f *swapFixture) execute() (*entities.SwapResult, error) {
	return f.uc.ExecuteSwap(context.Background(), entities.ExecuteSwapInput{
		QuoteID:  f.quote.ID,
		UserID:   f.userID,
		Password: testPassword,
	})
}

func (f *swapFixture) onlyIntent(t *testing.T) *entities.Intent {
	intents := f.intents.byQuote(f.quote.ID)
	require.Len(t, intents, 1)
	return intents[0]
}

func TestSwapUsecase_ExecuteSwap_Success(t *testing.T) {
	f := newSwapFixture(t)
	f.happy()

	res, err := f.execute()
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, entities.TransactionStatusCompleted, res.Status)
	assert.Equal(t, "0xabc", res.TxHash)
	assert.Equal(t, "0xtrade", res.TradeHash)
	assert.False(t, res.RequiresReconciliation)
	require.NotNil(t, res.TransactionID)

	intent := f.onlyIntent(t)
	assert.Equal(t, entities.IntentStatusCompleted, intent.Status)
	assert.Equal(t, "0xtrade", intent.TradeHash.String)
	assert.Equal(t, "0xabc", intent.SwapTxHash.String)
	assert.Equal(t, "0x", intent.RouteProvider.String)

	assert.Equal(t, []entities.SwapPhase{
		entities.SwapPhaseIntentCreated,
		entities.SwapPhaseValidated,
		entities.SwapPhaseFundsPulled,
		entities.SwapPhaseSubmitted,
		entities.SwapPhaseCompleted,
	}, f.events.phases())

	f.txs.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(tx *entities.Transaction) bool {
		return tx.Status == entities.TransactionStatusCompleted && tx.TxHash.String == "0xabc" && tx.Metadata.Provider == "0x"
	}))
	f.fees.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(r *entities.FeeRecord) bool {
		return r.FeeAmount == 8 && r.FeeAsset == entities.AssetUSDC && r.TxHash == "0xabc"
	}))
	f.router.AssertCalled(t, "GetBestRoute", mock.Anything, mock.MatchedBy(func(req entities.RouteRequest) bool {
		return req.SellAmount.String() == "1000000000" && req.ChainID == 1 && req.OutputAsset.Symbol == entities.AssetXAUT
	}))
}

func TestSwapUsecase_ExecuteSwap_SignsEveryRequest(t *testing.T) {
	f := newSwapFixture(t)
	route := testRoute()
	approval := entities.SigningRequest{Kind: entities.SigningKindApproval, Type: "Mail", TypedData: sampleTypedData()}
	route.Payload.(*entities.ZeroXRoutePayload).Approval = &approval

	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
	f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{route}, nil)
	f.router.On("ExecuteRoute", mock.Anything, route, mock.Anything, 25, mock.MatchedBy(func(signed []entities.SignedPayload) bool {
		return len(signed) == 2 && signed[0].Kind == entities.SigningKindApproval && signed[1].Kind == entities.SigningKindTrade
	})).Return(&entities.ExecutionResult{Success: true, TradeHash: "0xtrade"}, nil)
	f.router.On("GetStatus", mock.Anything, entities.RouteProviderZeroX, "0xtrade").
		Return(&entities.RouteStatus{State: entities.RouteStateConfirmed, TxHash: "0xabc"}, nil)
	f.txs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.fees.On("Create", mock.Anything, mock.Anything).Return(nil)

	res, err := f.execute()
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSwapUsecase_ExecuteSwap_ExpiredQuote(t *testing.T) {
	f := newSwapFixture(t)
	f.quote.ExpiresAt = f.now.Add(-90 * time.Second)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)

	_, err := f.execute()
	require.ErrorIs(t, err, domainerrors.ErrQuoteExpired)
	var expired *domainerrors.QuoteExpiredError
	require.True(t, errors.As(err, &expired))
	assert.Equal(t, 90*time.Second, expired.Overage)
	assert.Empty(t, f.intents.byQuote(f.quote.ID))
	f.router.AssertNotCalled(t, "GetBestRoute", mock.Anything, mock.Anything)
}

func TestSwapUsecase_ExecuteSwap_QuoteNotFound(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(nil, domainerrors.ErrNotFound)

	_, err := f.execute()
	assert.ErrorIs(t, err, domainerrors.ErrQuoteNotFound)
}

func TestSwapUsecase_ExecuteSwap_ExistingTransactionBlocks(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).
		Return(&entities.Transaction{ID: uuid.New(), Status: entities.TransactionStatusCompleted}, nil)

	_, err := f.execute()
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyInProgress)
	f.quotes.AssertNotCalled(t, "GetByIDForUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestSwapUsecase_ExecuteSwap_FreshActiveIntentBlocks(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)

	require.NoError(t, f.intents.Create(context.Background(), &entities.Intent{
		ID: uuid.New(), QuoteID: f.quote.ID, Status: entities.IntentStatusValidating,
		CreatedAt: f.now.Add(-40 * time.Second), ValidatedAt: nullTime(f.now.Add(-30 * time.Second)),
	}))

	_, err := f.execute()
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyInProgress)
	assert.Len(t, f.intents.byQuote(f.quote.ID), 1)
}

func TestSwapUsecase_ExecuteSwap_StuckIntentIsFailedAndReplaced(t *testing.T) {
	f := newSwapFixture(t)
	f.happy()

	stuckID := uuid.New()
	require.NoError(t, f.intents.Create(context.Background(), &entities.Intent{
		ID: stuckID, QuoteID: f.quote.ID, UserID: f.userID, Status: entities.IntentStatusValidating,
		CreatedAt: f.now.Add(-4 * time.Minute), ValidatedAt: nullTime(f.now.Add(-3 * time.Minute)),
	}))

	res, err := f.execute()
	require.NoError(t, err)
	assert.True(t, res.Success)

	stuck, err := f.intents.GetByID(context.Background(), stuckID)
	require.NoError(t, err)
	assert.Equal(t, entities.IntentStatusFailed, stuck.Status)
	assert.Contains(t, stuck.ErrorDetail.String, "stuck in validating")

	require.NotNil(t, res.IntentID)
	assert.NotEqual(t, stuckID, *res.IntentID)
	fresh, err := f.intents.GetByID(context.Background(), *res.IntentID)
	require.NoError(t, err)
	assert.Equal(t, entities.IntentStatusCompleted, fresh.Status)
}

func TestSwapUsecase_ExecuteSwap_ConcurrentCallsOnSameQuote(t *testing.T) {
	f := newSwapFixture(t)
	f.happy()

	// hold both callers at the insert so they race on the uniqueness check
	var arrived sync.WaitGroup
	arrived.Add(2)
	f.intents.beforeCreate = func() {
		arrived.Done()
		arrived.Wait()
	}

	type outcome struct {
		res *entities.SwapResult
		err error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, err := f.execute()
			results <- outcome{res, err}
		}()
	}

	var succeeded, blocked int
	for i := 0; i < 2; i++ {
		o := <-results
		switch {
		case o.err == nil && o.res.Success:
			succeeded++
		case errors.Is(o.err, domainerrors.ErrAlreadyInProgress):
			blocked++
		default:
			t.Fatalf("unexpected outcome: %+v %v", o.res, o.err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, blocked)
	f.router.AssertNumberOfCalls(t, "ExecuteRoute", 1)
	f.txs.AssertNumberOfCalls(t, "Create", 1)
}

func TestSwapUsecase_ExecuteSwap_ExpiredRouteRetriedOnce(t *testing.T) {
	expired := &domainerrors.ProviderError{Provider: "0x", Kind: domainerrors.ProviderErrorExpired, Message: "EXPIRED: quote expired"}

	t.Run("second attempt succeeds", func(t *testing.T) {
		f := newSwapFixture(t)
		f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
		f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
		f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{testRoute()}, nil)
		f.router.On("ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, 25, mock.Anything).Return(nil, expired).Once()
		f.router.On("ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, 25, mock.Anything).
			Return(&entities.ExecutionResult{Success: true, TradeHash: "0xtrade"}, nil).Once()
		f.router.On("GetStatus", mock.Anything, entities.RouteProviderZeroX, "0xtrade").
			Return(&entities.RouteStatus{State: entities.RouteStateConfirmed, TxHash: "0xabc"}, nil)
		f.txs.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.fees.On("Create", mock.Anything, mock.Anything).Return(nil)

		res, err := f.execute()
		require.NoError(t, err)
		assert.True(t, res.Success)
		f.router.AssertNumberOfCalls(t, "GetBestRoute", 2)
		f.router.AssertNumberOfCalls(t, "ExecuteRoute", 2)
		f.txs.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(tx *entities.Transaction) bool {
			return tx.Metadata.RetriedExpired
		}))
	})

	t.Run("second failure surfaces verbatim", func(t *testing.T) {
		f := newSwapFixture(t)
		second := &domainerrors.ProviderError{Provider: "0x", Kind: domainerrors.ProviderErrorExpired, Message: "EXPIRED: again"}
		f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
		f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
		f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{testRoute()}, nil)
		f.router.On("ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, 25, mock.Anything).Return(nil, expired).Once()
		f.router.On("ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, 25, mock.Anything).Return(nil, second).Once()

		res, err := f.execute()
		require.Error(t, err)
		assert.Same(t, second, err)
		assert.False(t, res.Success)
		assert.Equal(t, second.Error(), res.Error)
		f.router.AssertNumberOfCalls(t, "ExecuteRoute", 2)
		assert.Equal(t, entities.IntentStatusFailed, f.onlyIntent(t).Status)
	})
}

func TestSwapUsecase_ExecuteSwap_SubmissionFlags(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
	f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{testRoute()}, nil)
	f.router.On("ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, 25, mock.Anything).Return(nil, &domainerrors.ProviderError{
		Provider:       "0x",
		Kind:           domainerrors.ProviderErrorRequiresImport,
		Message:        "token requires import",
		RequiresImport: true,
	})

	res, err := f.execute()
	require.Error(t, err)
	assert.True(t, res.RequiresImport)
	assert.True(t, domainerrors.IsProviderKind(err, domainerrors.ProviderErrorRequiresImport))
	f.router.AssertNumberOfCalls(t, "ExecuteRoute", 1)
	assert.Equal(t, entities.IntentStatusFailed, f.onlyIntent(t).Status)
}

func TestSwapUsecase_ExecuteSwap_NoRoute(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
	f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{}, nil)

	_, err := f.execute()
	assert.ErrorIs(t, err, domainerrors.ErrNoRouteFound)
	intent := f.onlyIntent(t)
	assert.Equal(t, entities.IntentStatusValidationFailed, intent.Status)
	assert.True(t, intent.FailedAt.Valid)
}

func TestSwapUsecase_ExecuteSwap_RouteProviderError(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
	f.router.On("GetBestRoute", mock.Anything, mock.Anything).
		Return(nil, &domainerrors.ProviderError{Provider: "0x", Kind: domainerrors.ProviderErrorUnavailable, Message: "503"})

	_, err := f.execute()
	assert.ErrorIs(t, err, domainerrors.ErrProviderFailure)
	assert.Equal(t, entities.IntentStatusFailed, f.onlyIntent(t).Status)
}

func TestSwapUsecase_ExecuteSwap_WrongPassword(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
	f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{testRoute()}, nil)

	_, err := f.uc.ExecuteSwap(context.Background(), entities.ExecuteSwapInput{QuoteID: f.quote.ID, UserID: f.userID, Password: "nope-nope"})
	assert.ErrorIs(t, err, domainerrors.ErrWrongPassword)
	f.router.AssertNotCalled(t, "ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, entities.IntentStatusFailed, f.onlyIntent(t).Status)
}

func TestSwapUsecase_ExecuteSwap_TradeFailsOnChain(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
	f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{testRoute()}, nil)
	f.router.On("ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, 25, mock.Anything).
		Return(&entities.ExecutionResult{Success: true, TradeHash: "0xtrade"}, nil)
	f.router.On("GetStatus", mock.Anything, entities.RouteProviderZeroX, "0xtrade").
		Return(&entities.RouteStatus{State: entities.RouteStateFailed, Reason: "reverted", RefundTxHash: "0xrefund"}, nil)

	res, err := f.execute()
	assert.ErrorIs(t, err, domainerrors.ErrSwapFailed)
	assert.True(t, res.RequiresRefund)
	assert.Equal(t, "0xrefund", res.RefundTxHash)
	intent := f.onlyIntent(t)
	assert.Equal(t, entities.IntentStatusFailed, intent.Status)
	assert.Equal(t, "0xrefund", intent.RefundTxHash.String)
	f.txs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSwapUsecase_ExecuteSwap_PollingTimeout(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
	f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{testRoute()}, nil)
	f.router.On("ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, 25, mock.Anything).
		Return(&entities.ExecutionResult{Success: true, TradeHash: "0xtrade", TxHash: "0xsubmitted"}, nil)
	f.router.On("GetStatus", mock.Anything, entities.RouteProviderZeroX, "0xtrade").
		Return(&entities.RouteStatus{State: entities.RouteStatePending}, nil)
	f.txs.On("Create", mock.Anything, mock.MatchedBy(func(tx *entities.Transaction) bool {
		return tx.Status == entities.TransactionStatusPending && tx.TradeHash == "0xtrade"
	})).Return(nil)

	res, err := f.execute()
	assert.ErrorIs(t, err, domainerrors.ErrPollingTimeout)
	assert.False(t, res.Success)
	assert.True(t, res.RequiresReconciliation)
	assert.Equal(t, entities.TransactionStatusPending, res.Status)
	assert.NotNil(t, res.TransactionID)

	f.router.AssertNumberOfCalls(t, "GetStatus", 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, f.sleeps)
	assert.Equal(t, entities.IntentStatusSwapExecuted, f.onlyIntent(t).Status)
}

func TestSwapUsecase_ExecuteSwap_BookkeepingFailureKeepsSuccess(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
	f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{testRoute()}, nil)
	f.router.On("ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, 25, mock.Anything).
		Return(&entities.ExecutionResult{Success: true, TradeHash: "0xtrade"}, nil)
	f.router.On("GetStatus", mock.Anything, entities.RouteProviderZeroX, "0xtrade").
		Return(&entities.RouteStatus{State: entities.RouteStateConfirmed, TxHash: "0xabc"}, nil)
	f.txs.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	f.txs.On("GetByTradeHash", mock.Anything, "0xtrade").Return(nil, domainerrors.ErrNotFound)
	f.failed.On("Create", mock.Anything, mock.Anything).Return(nil)

	res, err := f.execute()
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.RequiresReconciliation)
	assert.Nil(t, res.TransactionID)

	f.txs.AssertNumberOfCalls(t, "Create", 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps)
	f.failed.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(r *entities.FailedTransactionRecord) bool {
		return r.TxHash == "0xabc" && r.Status == entities.FailedRecordPending && r.Payload != nil && r.MaxRetries == 10
	}))
	f.fees.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, entities.IntentStatusCompleted, f.onlyIntent(t).Status)
	assert.Contains(t, f.events.phases(), entities.SwapPhaseNeedsReconcile)
}

func TestSwapUsecase_ExecuteSwap_CallerGoneAfterSubmitStillRecords(t *testing.T) {
	f := newSwapFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.router.On("GetStatus", mock.Anything, entities.RouteProviderZeroX, "0xtrade").
		Run(func(mock.Arguments) { cancel() }).
		Return(&entities.RouteStatus{State: entities.RouteStateConfirmed, TxHash: "0xabc"}, nil)
	f.happy()

	res, err := f.uc.ExecuteSwap(ctx, entities.ExecuteSwapInput{QuoteID: f.quote.ID, UserID: f.userID, Password: testPassword})
	require.NoError(t, err)
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, res.Success)
	assert.False(t, res.RequiresReconciliation)
	require.NotNil(t, res.TransactionID)

	f.txs.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(tx *entities.Transaction) bool {
		return tx.Status == entities.TransactionStatusCompleted && tx.TxHash.String == "0xabc"
	}))
	f.fees.AssertNumberOfCalls(t, "Create", 1)
	assert.Equal(t, entities.IntentStatusCompleted, f.onlyIntent(t).Status)
}

func TestSwapUsecase_ExecuteSwap_PendingWriteFailureQueuesReconciliation(t *testing.T) {
	f := newSwapFixture(t)
	f.txs.On("FindBlockingByQuote", mock.Anything, f.quote.ID).Return(nil, domainerrors.ErrNotFound)
	f.quotes.On("GetByIDForUser", mock.Anything, f.quote.ID, f.userID).Return(f.quote, nil)
	f.router.On("GetBestRoute", mock.Anything, mock.Anything).Return([]*entities.Route{testRoute()}, nil)
	f.router.On("ExecuteRoute", mock.Anything, mock.Anything, mock.Anything, 25, mock.Anything).
		Return(&entities.ExecutionResult{Success: true, TradeHash: "0xtrade", TxHash: "0xsubmitted"}, nil)
	f.router.On("GetStatus", mock.Anything, entities.RouteProviderZeroX, "0xtrade").
		Return(&entities.RouteStatus{State: entities.RouteStatePending}, nil)
	f.txs.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	f.txs.On("GetByTradeHash", mock.Anything, "0xtrade").Return(nil, domainerrors.ErrNotFound)
	f.failed.On("Create", mock.Anything, mock.Anything).Return(nil)

	res, err := f.execute()
	assert.ErrorIs(t, err, domainerrors.ErrPollingTimeout)
	assert.True(t, res.RequiresReconciliation)
	assert.Nil(t, res.TransactionID)

	f.txs.AssertNumberOfCalls(t, "Create", 3)
	f.failed.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(r *entities.FailedTransactionRecord) bool {
		return r.TradeHash == "0xtrade" && r.Payload != nil && r.Payload.Status == entities.TransactionStatusPending
	}))
	assert.Equal(t, entities.IntentStatusSwapExecuted, f.onlyIntent(t).Status)
}
