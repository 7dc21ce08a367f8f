package usecases_test

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/volatiletech/null/v8"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/pkg/utils"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

// Mock QuoteRepository
type MockQuoteRepository struct {
	mock.Mock
}

func (m *MockQuoteRepository) Create(ctx context.Context, quote *entities.Quote) error {
	args := m.Called(ctx, quote)
	return args.Error(0)
}

func (m *MockQuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Quote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Quote), args.Error(1)
}

func (m *MockQuoteRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*entities.Quote, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Quote), args.Error(1)
}

// Mock TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

// writes fail on a cancelled context the way a database driver does
func (m *MockTransactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByTxHash(ctx context.Context, txHash string) (*entities.Transaction, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByTradeHash(ctx context.Context, tradeHash string) (*entities.Transaction, error) {
	args := m.Called(ctx, tradeHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindBlockingByQuote(ctx context.Context, quoteID uuid.UUID) (*entities.Transaction, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, p utils.PaginationParams) ([]*entities.Transaction, int64, error) {
	args := m.Called(ctx, userID, p)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) ListPending(ctx context.Context, limit int) ([]*entities.Transaction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, txHash string) error {
	args := m.Called(ctx, id, status, txHash)
	return args.Error(0)
}

// Mock FeeRecordRepository
type MockFeeRecordRepository struct {
	mock.Mock
}

func (m *MockFeeRecordRepository) Create(ctx context.Context, record *entities.FeeRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockFeeRecordRepository) ListByQuote(ctx context.Context, quoteID uuid.UUID) ([]*entities.FeeRecord, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.FeeRecord), args.Error(1)
}

// Mock FailedTransactionRepository
type MockFailedTransactionRepository struct {
	mock.Mock
}

func (m *MockFailedTransactionRepository) Create(ctx context.Context, record *entities.FailedTransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockFailedTransactionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*entities.FailedTransactionRecord, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.FailedTransactionRecord), args.Error(1)
}

func (m *MockFailedTransactionRepository) Update(ctx context.Context, record *entities.FailedTransactionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// Mock DeploymentRepository
type MockDeploymentRepository struct {
	mock.Mock
}

func (m *MockDeploymentRepository) Create(ctx context.Context, d *entities.ContractDeployment) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDeploymentRepository) List(ctx context.Context, chainID int64) ([]*entities.ContractDeployment, error) {
	args := m.Called(ctx, chainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ContractDeployment), args.Error(1)
}

func (m *MockDeploymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.DeploymentStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// Mock PriceOracle
type MockPriceOracle struct {
	mock.Mock
}

func (m *MockPriceOracle) GetCurrentPrice(ctx context.Context, asset entities.AssetSymbol) (*entities.PriceQuote, error) {
	args := m.Called(ctx, asset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PriceQuote), args.Error(1)
}

// Mock RouteProvider
type MockRouteProvider struct {
	mock.Mock
}

func (m *MockRouteProvider) GetBestRoute(ctx context.Context, req entities.RouteRequest) ([]*entities.Route, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Route), args.Error(1)
}

func (m *MockRouteProvider) ExecuteRoute(ctx context.Context, route *entities.Route, taker string, slippageBps int, signed []entities.SignedPayload) (*entities.ExecutionResult, error) {
	args := m.Called(ctx, route, taker, slippageBps, signed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ExecutionResult), args.Error(1)
}

func (m *MockRouteProvider) GetStatus(ctx context.Context, provider entities.RouteProviderName, tradeHash string) (*entities.RouteStatus, error) {
	args := m.Called(ctx, provider, tradeHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RouteStatus), args.Error(1)
}

// Mock BridgeProvider
type MockBridgeProvider struct {
	mock.Mock
}

func (m *MockBridgeProvider) Quote(ctx context.Context, input entities.BridgeQuoteInput) (*entities.BridgeRoute, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BridgeRoute), args.Error(1)
}

func (m *MockBridgeProvider) SubmitDeposit(ctx context.Context, depositAddress, txHash string) error {
	args := m.Called(ctx, depositAddress, txHash)
	return args.Error(0)
}

func (m *MockBridgeProvider) Status(ctx context.Context, depositAddress string) (*entities.BridgeStatus, error) {
	args := m.Called(ctx, depositAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BridgeStatus), args.Error(1)
}

// Mock ContractChain
type MockContractChain struct {
	mock.Mock
}

func (m *MockContractChain) ChainID() *big.Int {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*big.Int)
}

func (m *MockContractChain) CodeAt(ctx context.Context, address string) ([]byte, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockContractChain) DeployContract(ctx context.Context, key *ecdsa.PrivateKey, bytecode []byte, gasLimit uint64) (common.Address, common.Hash, error) {
	args := m.Called(ctx, key, bytecode, gasLimit)
	return args.Get(0).(common.Address), args.Get(1).(common.Hash), args.Error(2)
}

// Mock BalanceReader
type MockBalanceReader struct {
	mock.Mock
}

func (m *MockBalanceReader) AssetBalance(ctx context.Context, asset entities.Asset, owner string) (*big.Int, error) {
	args := m.Called(ctx, asset, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

// recordingPublisher keeps published events in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []entities.SwapEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e entities.SwapEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) phases() []entities.SwapPhase {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entities.SwapPhase, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Phase)
	}
	return out
}

// memIntentRepo enforces one active intent per quote and compare-and-swap
// updates the way the database does
type memIntentRepo struct {
	mu      sync.Mutex
	intents map[uuid.UUID]*entities.Intent
	// beforeCreate runs inside Create before the uniqueness check
	beforeCreate func()
}

func newMemIntentRepo() *memIntentRepo {
	return &memIntentRepo{intents: map[uuid.UUID]*entities.Intent{}}
}

func (r *memIntentRepo) Create(_ context.Context, intent *entities.Intent) error {
	if r.beforeCreate != nil {
		r.beforeCreate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.intents {
		if existing.QuoteID == intent.QuoteID && !existing.Status.IsTerminal() {
			return domainerrors.ErrAlreadyInProgress
		}
	}
	cp := *intent
	r.intents[intent.ID] = &cp
	return nil
}

func (r *memIntentRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	cp := *intent
	return &cp, nil
}

func (r *memIntentRepo) GetByIdempotencyKey(_ context.Context, key string) (*entities.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.IdempotencyKey == key {
			cp := *intent
			return &cp, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (r *memIntentRepo) FindActiveByQuote(_ context.Context, quoteID uuid.UUID) (*entities.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.QuoteID == quoteID && !intent.Status.IsTerminal() {
			cp := *intent
			return &cp, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (r *memIntentRepo) HasCompletedForQuote(_ context.Context, quoteID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.QuoteID == quoteID && intent.Status == entities.IntentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *memIntentRepo) UpdateStatus(ctx context.Context, intent *entities.Intent, from entities.IntentStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.intents[intent.ID]
	if !ok {
		return domainerrors.ErrNotFound
	}
	if stored.Status != from {
		return domainerrors.ErrStaleStatus
	}
	cp := *intent
	r.intents[intent.ID] = &cp
	return nil
}

func (r *memIntentRepo) byQuote(quoteID uuid.UUID) []*entities.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Intent
	for _, intent := range r.intents {
		if intent.QuoteID == quoteID {
			cp := *intent
			out = append(out, &cp)
		}
	}
	return out
}

// memWalletStore backs the key vault repositories in memory
type memWalletStore struct {
	mu        sync.Mutex
	keys      []*entities.EncryptedWalletKey
	meta      map[uuid.UUID]*entities.WalletMetadata
	addresses []*entities.OnchainAddress
	events    []*entities.SecurityEvent
}

func newMemWalletStore() *memWalletStore {
	return &memWalletStore{meta: map[uuid.UUID]*entities.WalletMetadata{}}
}

type memKeyRepo struct{ s *memWalletStore }

func (r memKeyRepo) Create(_ context.Context, key *entities.EncryptedWalletKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *key
	r.s.keys = append(r.s.keys, &cp)
	return nil
}

func (r memKeyRepo) GetByAddress(_ context.Context, userID uuid.UUID, address string) (*entities.EncryptedWalletKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	// newest first, like the ORDER BY created_at DESC lookup
	for i := len(r.s.keys) - 1; i >= 0; i-- {
		k := r.s.keys[i]
		if k.UserID == userID && strings.EqualFold(k.Address, address) {
			cp := *k
			return &cp, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (r memKeyRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*entities.EncryptedWalletKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entities.EncryptedWalletKey
	for _, k := range r.s.keys {
		if k.UserID == userID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memMetaRepo struct{ s *memWalletStore }

func (r memMetaRepo) Get(_ context.Context, userID uuid.UUID) (*entities.WalletMetadata, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.meta[userID]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r memMetaRepo) Create(_ context.Context, meta *entities.WalletMetadata) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.meta[meta.UserID]; ok {
		return domainerrors.ErrAlreadyExists
	}
	cp := *meta
	r.s.meta[meta.UserID] = &cp
	return nil
}

type memAddressRepo struct{ s *memWalletStore }

func (r memAddressRepo) Create(_ context.Context, addr *entities.OnchainAddress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *addr
	r.s.addresses = append(r.s.addresses, &cp)
	return nil
}

func (r memAddressRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*entities.OnchainAddress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entities.OnchainAddress
	for _, a := range r.s.addresses {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memAddressRepo) SetPrimary(_ context.Context, userID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.addresses {
		if a.UserID == userID {
			a.IsPrimary = a.ID == id
		}
	}
	return nil
}

func (r memAddressRepo) ClearPrimary(_ context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.addresses {
		if a.UserID == userID {
			a.IsPrimary = false
		}
	}
	return nil
}

func (r memAddressRepo) Archive(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.addresses {
		if a.ID == id {
			a.Status = entities.AddressStatusArchived
			a.IsPrimary = false
			return nil
		}
	}
	return domainerrors.ErrNotFound
}

type memSecurityEventRepo struct{ s *memWalletStore }

func (r memSecurityEventRepo) Create(_ context.Context, e *entities.SecurityEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *e
	r.s.events = append(r.s.events, &cp)
	return nil
}

func (r memSecurityEventRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*entities.SecurityEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entities.SecurityEvent
	for _, e := range r.s.events {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memWalletStore) eventOps() []entities.SecurityOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.SecurityOperation, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Operation)
	}
	return out
}

type passthroughUoW struct{}

func (passthroughUoW) Do(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

func nullTime(t time.Time) null.Time { return null.TimeFrom(t) }
