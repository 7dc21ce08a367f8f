package usecases_test

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/usecases"
	"vaultswap.backend/pkg/crypto"
)

const testPassword = "correct-horse"

func newTestVault(store *memWalletStore, balances usecases.BalanceReader) *usecases.KeyVault {
	return usecases.NewKeyVault(usecases.KeyVaultDeps{
		Keys:      memKeyRepo{store},
		Metadata:  memMetaRepo{store},
		Addresses: memAddressRepo{store},
		Events:    memSecurityEventRepo{store},
		UoW:       passthroughUoW{},
		Balances:  balances,
	})
}

func sampleTypedData() entities.TypedData {
	return entities.TypedData{
		Types: map[string][]entities.TypedDataField{
			"Mail": {
				{Name: "from", Type: "address"},
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Domain: entities.TypedDataDomain{
			Name:              "Ether Mail",
			Version:           "1",
			VerifyingContract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC",
		},
		Message: map[string]any{
			"from":     "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
			"contents": "Hello, Bob!",
		},
	}
}

func TestKeyVault_GenerateWallet_RandomKey(t *testing.T) {
	store := newMemWalletStore()
	vault := newTestVault(store, nil)
	ctx := context.Background()
	userID := uuid.New()

	_, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: "short"})
	assert.ErrorIs(t, err, domainerrors.ErrWeakPassword)

	addr, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword})
	require.NoError(t, err)
	assert.True(t, addr.IsPrimary)
	assert.Equal(t, entities.WalletSetupInstantRandom, addr.SetupMethod)

	require.Len(t, store.keys, 1)
	record := store.keys[0]
	assert.Equal(t, entities.EncryptionPasswordBased, record.Method)
	assert.Len(t, record.IV, crypto.IVLength*2)
	assert.Len(t, record.Salt, crypto.SaltLength*2)

	handle, err := vault.UnlockForSigning(ctx, userID, testPassword)
	require.NoError(t, err)
	assert.Equal(t, addr.Address, handle.Address())
	handle.Close()

	_, err = vault.UnlockForSigning(ctx, userID, "not-the-password")
	assert.ErrorIs(t, err, domainerrors.ErrWrongPassword)

	ops := store.eventOps()
	assert.Contains(t, ops, entities.SecurityOpGenerateWallet)
	assert.Contains(t, ops, entities.SecurityOpUnlock)
	for _, e := range store.events {
		for _, v := range e.Metadata {
			assert.NotContains(t, v, record.Ciphertext)
		}
	}
}

func TestKeyVault_GenerateWallet_Deterministic(t *testing.T) {
	store := newMemWalletStore()
	vault := newTestVault(store, nil)
	ctx := context.Background()
	userID := uuid.New()

	first, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword, Method: entities.WalletSetupUserPassword})
	require.NoError(t, err)
	assert.Empty(t, store.keys)
	require.Contains(t, store.meta, userID)

	again, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword, Method: entities.WalletSetupUserPassword})
	require.NoError(t, err)
	assert.Equal(t, first.Address, again.Address)
	addrs, err := vault.ListAddresses(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, addrs, 1)

	salt, err := hex.DecodeString(store.meta[userID].Salt)
	require.NoError(t, err)
	key, err := ethcrypto.ToECDSA(crypto.DeriveDeterministicKey(userID.String(), testPassword, salt))
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.PubkeyToAddress(key.PublicKey).Hex(), first.Address)

	_, err = vault.UnlockForSigning(ctx, userID, "wrong-password")
	assert.ErrorIs(t, err, domainerrors.ErrWrongPassword)
}

func TestKeyVault_GenerateWallet_FundedBlocksReplacement(t *testing.T) {
	store := newMemWalletStore()
	balances := new(MockBalanceReader)
	vault := newTestVault(store, balances)
	ctx := context.Background()
	userID := uuid.New()

	_, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword})
	require.NoError(t, err)

	balances.On("AssetBalance", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1), nil)
	_, err = vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword})
	assert.ErrorIs(t, err, domainerrors.ErrDuplicateWallet)
}

func TestKeyVault_GenerateWallet_DeterministicReuseWhileFunded(t *testing.T) {
	store := newMemWalletStore()
	balances := new(MockBalanceReader)
	vault := newTestVault(store, balances)
	ctx := context.Background()
	userID := uuid.New()
	input := entities.GenerateWalletInput{Password: testPassword, Method: entities.WalletSetupUserPassword}

	first, err := vault.GenerateWallet(ctx, userID, input)
	require.NoError(t, err)

	balances.On("AssetBalance", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(5), nil)
	again, err := vault.GenerateWallet(ctx, userID, input)
	require.NoError(t, err)
	assert.Equal(t, first.Address, again.Address)
	assert.Len(t, store.addresses, 1)

	// a different password would create a second address next to a funded one
	_, err = vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: "different-password", Method: entities.WalletSetupUserPassword})
	assert.ErrorIs(t, err, domainerrors.ErrDuplicateWallet)
	assert.Len(t, store.addresses, 1)
}

func TestKeyVault_GenerateWallet_BalanceReadFailsClosed(t *testing.T) {
	store := newMemWalletStore()
	balances := new(MockBalanceReader)
	vault := newTestVault(store, balances)
	ctx := context.Background()
	userID := uuid.New()

	_, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword})
	require.NoError(t, err)

	balances.On("AssetBalance", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("rpc down"))
	_, err = vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword})
	assert.Error(t, err)
	assert.Len(t, store.addresses, 1)
}

func TestKeyVault_GenerateWallet_DemotesPreviousPrimary(t *testing.T) {
	store := newMemWalletStore()
	balances := new(MockBalanceReader)
	balances.On("AssetBalance", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(0), nil)
	vault := newTestVault(store, balances)
	ctx := context.Background()
	userID := uuid.New()

	first, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword})
	require.NoError(t, err)
	second, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword})
	require.NoError(t, err)
	assert.NotEqual(t, first.Address, second.Address)

	resolved, err := vault.ResolveAddress(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, second.Address, resolved.Address)

	addrs, err := vault.ListAddresses(ctx, userID)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.False(t, addrs[1].IsPrimary)
	assert.Equal(t, entities.AddressStatusActive, addrs[1].Status)
	assert.Len(t, store.keys, 2)
}

func TestKeyVault_ImportKey(t *testing.T) {
	store := newMemWalletStore()
	vault := newTestVault(store, nil)
	ctx := context.Background()
	userID := uuid.New()

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hexutil.Encode(ethcrypto.FromECDSA(key))

	_, err = vault.ImportKey(ctx, userID, entities.ImportWalletInput{Password: testPassword, PrivateKey: "0xzz"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidPrivateKey)

	addr, err := vault.ImportKey(ctx, userID, entities.ImportWalletInput{Password: testPassword, PrivateKey: keyHex})
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.PubkeyToAddress(key.PublicKey).Hex(), addr.Address)
	assert.Equal(t, entities.WalletSetupImportedKey, addr.SetupMethod)

	revealed, err := vault.RevealPrivateKey(ctx, userID, testPassword)
	require.NoError(t, err)
	assert.Equal(t, keyHex, revealed)

	var reveal *entities.SecurityEvent
	for _, e := range store.events {
		if e.Operation == entities.SecurityOpRevealKey {
			reveal = e
		}
	}
	require.NotNil(t, reveal)
	assert.Equal(t, entities.SecuritySeverityHigh, reveal.Severity)
	assert.NotContains(t, reveal.Metadata, "privateKey")
}

func TestKeyVault_ResolveAddress_Precedence(t *testing.T) {
	store := newMemWalletStore()
	vault := newTestVault(store, nil)
	ctx := context.Background()
	userID := uuid.New()

	_, err := vault.ResolveAddress(ctx, userID)
	assert.ErrorIs(t, err, domainerrors.ErrWalletNotFound)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	add := func(addr string, method entities.WalletSetupMethod, primary bool, status entities.AddressStatus, created time.Time) {
		store.addresses = append(store.addresses, &entities.OnchainAddress{
			ID: uuid.New(), UserID: userID, Address: addr, SetupMethod: method,
			IsPrimary: primary, Status: status, CreatedAt: created,
		})
	}
	add("0x01", entities.WalletSetupInstantRandom, false, entities.AddressStatusActive, base)
	add("0x02", entities.WalletSetupUserPassword, false, entities.AddressStatusActive, base.Add(time.Hour))
	add("0x03", entities.WalletSetupImportedKey, true, entities.AddressStatusArchived, base)

	resolved, err := vault.ResolveAddress(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "0x02", resolved.Address)

	add("0x04", entities.WalletSetupInstantRandom, true, entities.AddressStatusActive, base.Add(2*time.Hour))
	resolved, err = vault.ResolveAddress(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "0x04", resolved.Address)
}

func TestKeyVault_LegacyUserIDRecord(t *testing.T) {
	store := newMemWalletStore()
	vault := newTestVault(store, nil)
	ctx := context.Background()
	userID := uuid.New()

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	sealed, err := crypto.Seal(userID.String(), ethcrypto.FromECDSA(key))
	require.NoError(t, err)
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()

	store.keys = append(store.keys, &entities.EncryptedWalletKey{
		ID: uuid.New(), UserID: userID, Address: address,
		Ciphertext: hex.EncodeToString(sealed.Ciphertext),
		IV:         hex.EncodeToString(sealed.IV),
		Salt:       hex.EncodeToString(sealed.Salt),
		Method:     entities.EncryptionLegacyUserID,
	})
	store.addresses = append(store.addresses, &entities.OnchainAddress{
		ID: uuid.New(), UserID: userID, Address: address,
		SetupMethod: entities.WalletSetupLegacy, Status: entities.AddressStatusActive,
	})

	// no password is bound yet: the key is never revealed
	_, err = vault.RevealPrivateKey(ctx, userID, testPassword)
	assert.ErrorIs(t, err, domainerrors.ErrLegacyKeyUnbound)
	_, err = vault.UnlockForSigning(ctx, userID, "short")
	assert.ErrorIs(t, err, domainerrors.ErrWeakPassword)
	require.Len(t, store.keys, 1)

	// the first signing unlock binds the password as a new record
	handle, err := vault.UnlockForSigning(ctx, userID, testPassword)
	require.NoError(t, err)
	assert.Equal(t, address, handle.Address())
	handle.Close()
	require.Len(t, store.keys, 2)
	assert.Equal(t, entities.EncryptionLegacyUserID, store.keys[0].Method)
	assert.Equal(t, entities.EncryptionPasswordBased, store.keys[1].Method)

	var bound *entities.SecurityEvent
	for _, ev := range store.events {
		if ev.Operation == entities.SecurityOpBindLegacyKey {
			bound = ev
		}
	}
	require.NotNil(t, bound)
	assert.Equal(t, entities.SecuritySeverityHigh, bound.Severity)

	// from here on a wrong password always fails
	_, err = vault.UnlockForSigning(ctx, userID, "another-password")
	assert.ErrorIs(t, err, domainerrors.ErrWrongPassword)
	_, err = vault.SignTypedData(ctx, userID, "another-password", 1, sampleTypedData())
	assert.ErrorIs(t, err, domainerrors.ErrWrongPassword)
	_, err = vault.RevealPrivateKey(ctx, userID, "another-password")
	assert.ErrorIs(t, err, domainerrors.ErrWrongPassword)

	revealed, err := vault.RevealPrivateKey(ctx, userID, testPassword)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(ethcrypto.FromECDSA(key)), revealed)
	require.Len(t, store.keys, 2)
}

func TestKeyVault_SignTypedData(t *testing.T) {
	store := newMemWalletStore()
	vault := newTestVault(store, nil)
	ctx := context.Background()
	userID := uuid.New()

	addr, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword})
	require.NoError(t, err)

	td := sampleTypedData()
	// a caller supplied domain type is replaced, not trusted
	td.Types["EIP712Domain"] = []entities.TypedDataField{{Name: "bogus", Type: "string"}}

	signed, err := vault.SignTypedData(ctx, userID, testPassword, 1, td)
	require.NoError(t, err)
	assert.Contains(t, []uint8{27, 28}, signed.V)

	sig, err := hexutil.Decode(signed.Signature)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Equal(t, signed.V, sig[64])

	clean := sampleTypedData()
	clean.Domain.ChainID = 1
	hash, err := usecases.HashTypedData(clean)
	require.NoError(t, err)

	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, addr.Address, ethcrypto.PubkeyToAddress(*pub).Hex())

	_, err = vault.SignTypedData(ctx, userID, "wrong-password", 1, sampleTypedData())
	assert.ErrorIs(t, err, domainerrors.ErrWrongPassword)
}

func TestHashTypedData_RejectsUndeclaredPrimaryType(t *testing.T) {
	td := sampleTypedData()
	td.PrimaryType = "Order"
	_, err := usecases.HashTypedData(td)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestKeyVault_ArchiveAddress(t *testing.T) {
	store := newMemWalletStore()
	balances := &fixedBalances{}
	vault := newTestVault(store, balances)
	ctx := context.Background()
	userID := uuid.New()

	older, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword})
	require.NoError(t, err)
	newer, err := vault.GenerateWallet(ctx, userID, entities.GenerateWalletInput{Password: testPassword})
	require.NoError(t, err)

	balances.set(5)
	err = vault.ArchiveAddress(ctx, userID, newer.Address, false)
	assert.ErrorIs(t, err, domainerrors.ErrFundedWalletArchive)

	require.NoError(t, vault.ArchiveAddress(ctx, userID, newer.Address, true))

	resolved, err := vault.ResolveAddress(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, older.Address, resolved.Address)
	assert.True(t, resolved.IsPrimary)

	err = vault.ArchiveAddress(ctx, userID, newer.Address, true)
	assert.ErrorIs(t, err, domainerrors.ErrWalletNotFound)
}

type fixedBalances struct {
	mu  sync.Mutex
	bal int64
}

func (f *fixedBalances) set(v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bal = v
}

func (f *fixedBalances) AssetBalance(context.Context, entities.Asset, string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return big.NewInt(f.bal), nil
}
