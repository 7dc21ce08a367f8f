package usecases

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/domain/repositories"
	"vaultswap.backend/pkg/crypto"
	"vaultswap.backend/pkg/logger"
	"vaultswap.backend/pkg/utils"
)

const minPasswordLength = 8

// SigningHandle is an unlocked key. Close zeroes it.
type SigningHandle struct {
	address common.Address
	key     *ecdsa.PrivateKey
}

// NewSigningHandle wraps an already recovered key
func NewSigningHandle(key *ecdsa.PrivateKey) *SigningHandle {
	return &SigningHandle{address: ethcrypto.PubkeyToAddress(key.PublicKey), key: key}
}

func (h *SigningHandle) Address() string {
	return h.address.Hex()
}

// Sign signs one EIP-712 signing request
func (h *SigningHandle) Sign(req entities.SigningRequest) (entities.SignedPayload, error) {
	if h.key == nil {
		return entities.SignedPayload{}, errors.New("signing handle closed")
	}
	sig, err := signTypedData(h.key, req.TypedData)
	if err != nil {
		return entities.SignedPayload{}, err
	}
	return signedPayload(req, sig), nil
}

func (h *SigningHandle) Close() {
	if h.key != nil && h.key.D != nil {
		h.key.D.SetInt64(0)
	}
	h.key = nil
}

// KeyVaultDeps groups the vault's collaborators
type KeyVaultDeps struct {
	Keys      repositories.WalletKeyRepository
	Metadata  repositories.WalletMetadataRepository
	Addresses repositories.OnchainAddressRepository
	Events    repositories.SecurityEventRepository
	UoW       repositories.UnitOfWork
	// Balances may be nil, in which case every wallet reads as unfunded
	Balances BalanceReader
	Assets   *entities.AssetRegistry
	Chain    string
	Metrics  SwapMetrics
}

// KeyVault owns user signing keys: creation, storage, unlock and audit
type KeyVault struct {
	deps KeyVaultDeps
	now  func() time.Time
}

func NewKeyVault(deps KeyVaultDeps) *KeyVault {
	if deps.Metrics == nil {
		deps.Metrics = NoopMetrics()
	}
	if deps.Assets == nil {
		deps.Assets = entities.DefaultAssetRegistry()
	}
	if deps.Chain == "" {
		deps.Chain = "eth"
	}
	return &KeyVault{deps: deps, now: time.Now}
}

// GenerateWallet creates a new signing key for the user and makes its
// address primary
func (v *KeyVault) GenerateWallet(ctx context.Context, userID uuid.UUID, input entities.GenerateWalletInput) (addr *entities.OnchainAddress, err error) {
	method := input.Method
	if method == "" {
		method = entities.WalletSetupInstantRandom
	}
	defer func() {
		v.audit(ctx, userID, entities.SecurityOpGenerateWallet, err, auditAddress(addr), "method", string(method))
	}()

	if len(input.Password) < minPasswordLength {
		return nil, domainerrors.ErrWeakPassword
	}
	if method != entities.WalletSetupInstantRandom && method != entities.WalletSetupUserPassword {
		return nil, fmt.Errorf("%w: unsupported setup method %q", domainerrors.ErrInvalidInput, method)
	}
	if method == entities.WalletSetupUserPassword {
		key, err := v.deterministicKey(ctx, userID, input.Password, true)
		if err != nil {
			return nil, err
		}
		// the same password always yields the same address, funded or not
		if existing, err := v.findActive(ctx, userID, ethcrypto.PubkeyToAddress(key.PublicKey).Hex()); err != nil || existing != nil {
			if err == nil && !existing.IsPrimary {
				err = v.deps.Addresses.SetPrimary(ctx, userID, existing.ID)
				existing.IsPrimary = err == nil
			}
			return existing, err
		}
		if err := v.ensureNoFundedWallet(ctx, userID); err != nil {
			return nil, err
		}
		return v.storeAddress(ctx, userID, key, method, nil)
	}

	if err := v.ensureNoFundedWallet(ctx, userID); err != nil {
		return nil, err
	}
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	sealed, err := crypto.Seal(input.Password, ethcrypto.FromECDSA(key))
	if err != nil {
		return nil, err
	}
	return v.storeAddress(ctx, userID, key, method, v.keyRecord(userID, key, sealed, entities.EncryptionPasswordBased))
}

// ImportKey stores an externally held key under the user's password
func (v *KeyVault) ImportKey(ctx context.Context, userID uuid.UUID, input entities.ImportWalletInput) (addr *entities.OnchainAddress, err error) {
	defer func() { v.audit(ctx, userID, entities.SecurityOpImportKey, err, auditAddress(addr)) }()

	if len(input.Password) < minPasswordLength {
		return nil, domainerrors.ErrWeakPassword
	}
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(input.PrivateKey), "0x"))
	if err != nil {
		return nil, domainerrors.ErrInvalidPrivateKey
	}
	if err := v.ensureNoFundedWallet(ctx, userID); err != nil {
		return nil, err
	}
	sealed, err := crypto.Seal(input.Password, ethcrypto.FromECDSA(key))
	if err != nil {
		return nil, err
	}
	record := v.keyRecord(userID, key, sealed, entities.EncryptionPasswordBased)
	return v.storeAddress(ctx, userID, key, entities.WalletSetupImportedKey, record)
}

// ResolveAddress returns the user's canonical signing address
func (v *KeyVault) ResolveAddress(ctx context.Context, userID uuid.UUID) (*entities.OnchainAddress, error) {
	addrs, err := v.deps.Addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	canonical := entities.CanonicalAddress(addrs)
	if canonical == nil {
		return nil, domainerrors.ErrWalletNotFound
	}
	return canonical, nil
}

// ListAddresses returns active addresses in precedence order followed by archived ones
func (v *KeyVault) ListAddresses(ctx context.Context, userID uuid.UUID) ([]*entities.OnchainAddress, error) {
	addrs, err := v.deps.Addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := entities.RankAddresses(addrs)
	for _, a := range addrs {
		if a.Status == entities.AddressStatusArchived {
			out = append(out, a)
		}
	}
	return out, nil
}

// UnlockForSigning recovers the key behind the canonical address. The
// recovered key must reproduce that address.
func (v *KeyVault) UnlockForSigning(ctx context.Context, userID uuid.UUID, password string) (handle *SigningHandle, err error) {
	defer func() {
		address := ""
		if handle != nil {
			address = handle.Address()
		}
		v.audit(ctx, userID, entities.SecurityOpUnlock, err, address)
	}()
	return v.unlock(ctx, userID, password, true)
}

// SignTypedData signs an EIP-712 payload with the user's canonical key.
// chainID fills the domain when the payload leaves it empty.
func (v *KeyVault) SignTypedData(ctx context.Context, userID uuid.UUID, password string, chainID int64, td entities.TypedData) (payload *entities.SignedPayload, err error) {
	var address string
	defer func() {
		v.audit(ctx, userID, entities.SecurityOpSignTypedData, err, address, "primary_type", td.PrimaryType)
	}()

	if td.Domain.ChainID == 0 {
		td.Domain.ChainID = chainID
	}
	handle, err := v.unlock(ctx, userID, password, true)
	if err != nil {
		return nil, err
	}
	defer handle.Close()
	address = handle.Address()

	signed, err := handle.Sign(entities.SigningRequest{Kind: entities.SigningKindTrade, Type: td.PrimaryType, TypedData: td})
	if err != nil {
		return nil, err
	}
	return &signed, nil
}

// RevealPrivateKey returns the hex private key. The high severity audit
// event is written before the key leaves the vault. A legacy key is never
// revealed before a password has been bound to it.
func (v *KeyVault) RevealPrivateKey(ctx context.Context, userID uuid.UUID, password string) (string, error) {
	handle, err := v.unlock(ctx, userID, password, false)
	if err != nil {
		v.audit(ctx, userID, entities.SecurityOpRevealKey, err, "")
		return "", err
	}
	defer handle.Close()

	v.record(ctx, userID, entities.SecurityOpRevealKey, entities.SecurityOutcomeSuccess, entities.SecuritySeverityHigh,
		map[string]string{"address": handle.Address()})
	return hexutil.Encode(ethcrypto.FromECDSA(handle.key)), nil
}

// ArchiveAddress retires one of the user's addresses. Funded addresses
// need confirmFunded. Archiving the primary promotes the next ranked one.
func (v *KeyVault) ArchiveAddress(ctx context.Context, userID uuid.UUID, address string, confirmFunded bool) (err error) {
	defer func() { v.audit(ctx, userID, entities.SecurityOpArchiveAddress, err, address) }()

	addrs, err := v.deps.Addresses.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	var target *entities.OnchainAddress
	var rest []*entities.OnchainAddress
	for _, a := range addrs {
		if a.Status == entities.AddressStatusActive && strings.EqualFold(a.Address, address) && target == nil {
			target = a
			continue
		}
		rest = append(rest, a)
	}
	if target == nil {
		return domainerrors.ErrWalletNotFound
	}

	funded, err := v.hasBalance(ctx, target.Address)
	if err != nil {
		return err
	}
	if funded && !confirmFunded {
		return domainerrors.ErrFundedWalletArchive
	}

	return v.deps.UoW.Do(ctx, func(ctx context.Context) error {
		if err := v.deps.Addresses.Archive(ctx, target.ID); err != nil {
			return err
		}
		if !target.IsPrimary {
			return nil
		}
		if next := entities.CanonicalAddress(rest); next != nil {
			return v.deps.Addresses.SetPrimary(ctx, userID, next.ID)
		}
		return nil
	})
}

// unlock recovers the canonical key. bindLegacy allows a user-id sealed
// record to be re-sealed under password on this call.
func (v *KeyVault) unlock(ctx context.Context, userID uuid.UUID, password string, bindLegacy bool) (*SigningHandle, error) {
	canonical, err := v.ResolveAddress(ctx, userID)
	if err != nil {
		return nil, err
	}

	var key *ecdsa.PrivateKey
	if canonical.SetupMethod == entities.WalletSetupUserPassword {
		key, err = v.deterministicKey(ctx, userID, password, false)
	} else {
		key, err = v.decryptKey(ctx, userID, canonical.Address, password, bindLegacy)
	}
	if err != nil {
		return nil, err
	}

	derived := ethcrypto.PubkeyToAddress(key.PublicKey)
	if !strings.EqualFold(derived.Hex(), canonical.Address) {
		return nil, domainerrors.ErrWrongPassword
	}
	return &SigningHandle{address: derived, key: key}, nil
}

func (v *KeyVault) decryptKey(ctx context.Context, userID uuid.UUID, address, password string, bindLegacy bool) (*ecdsa.PrivateKey, error) {
	record, err := v.deps.Keys.GetByAddress(ctx, userID, address)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}

	sealed, err := decodeSealed(record)
	if err != nil {
		return nil, err
	}
	if record.Method == entities.EncryptionLegacyUserID {
		return v.bindLegacyKey(ctx, userID, record, sealed, password, bindLegacy)
	}
	plain, err := crypto.Open(password, sealed)
	if errors.Is(err, crypto.ErrDecryptFailed) {
		return nil, domainerrors.ErrWrongPassword
	}
	if err != nil {
		return nil, err
	}
	key, err := ethcrypto.ToECDSA(plain)
	if err != nil {
		return nil, domainerrors.ErrWrongPassword
	}
	return key, nil
}

// bindLegacyKey opens a record sealed under the user id and stores a new
// record sealed under password. GetByAddress returns the newest record, so
// every later unlock verifies that password.
func (v *KeyVault) bindLegacyKey(ctx context.Context, userID uuid.UUID, record *entities.EncryptedWalletKey, sealed *crypto.Sealed, password string, allowed bool) (*ecdsa.PrivateKey, error) {
	if !allowed {
		return nil, domainerrors.ErrLegacyKeyUnbound
	}
	if len(password) < minPasswordLength {
		return nil, domainerrors.ErrWeakPassword
	}
	plain, err := crypto.Open(userID.String(), sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy key: %w", err)
	}
	key, err := ethcrypto.ToECDSA(plain)
	if err != nil {
		return nil, fmt.Errorf("corrupt legacy key: %w", err)
	}
	if !strings.EqualFold(ethcrypto.PubkeyToAddress(key.PublicKey).Hex(), record.Address) {
		return nil, fmt.Errorf("legacy key does not match address %s", record.Address)
	}
	resealed, err := crypto.Seal(password, plain)
	if err != nil {
		return nil, err
	}
	if err := v.deps.Keys.Create(ctx, v.keyRecord(userID, key, resealed, entities.EncryptionPasswordBased)); err != nil {
		return nil, err
	}
	v.record(ctx, userID, entities.SecurityOpBindLegacyKey, entities.SecurityOutcomeSuccess, entities.SecuritySeverityHigh,
		map[string]string{"address": record.Address, "superseded_key": record.ID.String()})
	return key, nil
}

// deterministicKey derives the user_password key. The salt is created on
// first use when create is set.
func (v *KeyVault) deterministicKey(ctx context.Context, userID uuid.UUID, password string, create bool) (*ecdsa.PrivateKey, error) {
	meta, err := v.deps.Metadata.Get(ctx, userID)
	switch {
	case errors.Is(err, domainerrors.ErrNotFound) && create:
		salt, randErr := crypto.RandomBytes(crypto.SaltLength)
		if randErr != nil {
			return nil, randErr
		}
		meta = &entities.WalletMetadata{UserID: userID, Salt: hex.EncodeToString(salt), CreatedAt: v.now()}
		if err := v.deps.Metadata.Create(ctx, meta); err != nil {
			if !errors.Is(err, domainerrors.ErrAlreadyExists) {
				return nil, err
			}
			if meta, err = v.deps.Metadata.Get(ctx, userID); err != nil {
				return nil, err
			}
		}
	case errors.Is(err, domainerrors.ErrNotFound):
		return nil, domainerrors.ErrWalletNotFound
	case err != nil:
		return nil, err
	}

	salt, err := hex.DecodeString(meta.Salt)
	if err != nil {
		return nil, fmt.Errorf("corrupt wallet salt: %w", err)
	}
	key, err := ethcrypto.ToECDSA(crypto.DeriveDeterministicKey(userID.String(), password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

func (v *KeyVault) findActive(ctx context.Context, userID uuid.UUID, address string) (*entities.OnchainAddress, error) {
	addrs, err := v.deps.Addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, a := range entities.RankAddresses(addrs) {
		if strings.EqualFold(a.Address, address) {
			return a, nil
		}
	}
	return nil, nil
}

func (v *KeyVault) storeAddress(ctx context.Context, userID uuid.UUID, key *ecdsa.PrivateKey, method entities.WalletSetupMethod, record *entities.EncryptedWalletKey) (*entities.OnchainAddress, error) {
	addr := &entities.OnchainAddress{
		ID:          utils.GenerateUUIDv7(),
		UserID:      userID,
		Address:     ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		Chain:       v.deps.Chain,
		AssetScope:  "all",
		SetupMethod: method,
		IsPrimary:   true,
		Status:      entities.AddressStatusActive,
		CreatedAt:   v.now(),
	}
	err := v.deps.UoW.Do(ctx, func(ctx context.Context) error {
		if record != nil {
			if err := v.deps.Keys.Create(ctx, record); err != nil {
				return err
			}
		}
		if err := v.deps.Addresses.ClearPrimary(ctx, userID); err != nil {
			return err
		}
		return v.deps.Addresses.Create(ctx, addr)
	})
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func (v *KeyVault) keyRecord(userID uuid.UUID, key *ecdsa.PrivateKey, sealed *crypto.Sealed, method entities.EncryptionMethod) *entities.EncryptedWalletKey {
	return &entities.EncryptedWalletKey{
		ID:         utils.GenerateUUIDv7(),
		UserID:     userID,
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		Ciphertext: hex.EncodeToString(sealed.Ciphertext),
		IV:         hex.EncodeToString(sealed.IV),
		Salt:       hex.EncodeToString(sealed.Salt),
		Method:     method,
		CreatedAt:  v.now(),
	}
}

func decodeSealed(record *entities.EncryptedWalletKey) (*crypto.Sealed, error) {
	ct, err1 := hex.DecodeString(record.Ciphertext)
	iv, err2 := hex.DecodeString(record.IV)
	salt, err3 := hex.DecodeString(record.Salt)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("corrupt wallet key record: %w", err)
	}
	return &crypto.Sealed{Ciphertext: ct, IV: iv, Salt: salt}, nil
}

func (v *KeyVault) ensureNoFundedWallet(ctx context.Context, userID uuid.UUID) error {
	addrs, err := v.deps.Addresses.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, a := range entities.RankAddresses(addrs) {
		funded, err := v.hasBalance(ctx, a.Address)
		if err != nil {
			return err
		}
		if funded {
			return domainerrors.ErrDuplicateWallet
		}
	}
	return nil
}

// hasBalance fails closed: a read error is returned, not treated as empty
func (v *KeyVault) hasBalance(ctx context.Context, address string) (bool, error) {
	if v.deps.Balances == nil {
		return false, nil
	}
	for _, asset := range v.deps.Assets.Assets() {
		if !asset.IsNative() && asset.Address == "" {
			continue
		}
		bal, err := v.deps.Balances.AssetBalance(ctx, asset, address)
		if err != nil {
			return false, fmt.Errorf("failed to read %s balance: %w", asset.Symbol, err)
		}
		if bal != nil && bal.Cmp(big.NewInt(0)) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (v *KeyVault) audit(ctx context.Context, userID uuid.UUID, op entities.SecurityOperation, err error, address string, kv ...string) {
	meta := map[string]string{}
	if address != "" {
		meta["address"] = address
	}
	for i := 0; i+1 < len(kv); i += 2 {
		meta[kv[i]] = kv[i+1]
	}
	outcome, severity := entities.SecurityOutcomeSuccess, entities.SecuritySeverityInfo
	if err != nil {
		outcome, severity = entities.SecurityOutcomeFailure, entities.SecuritySeverityWarning
		meta["error"] = err.Error()
	}
	v.record(ctx, userID, op, outcome, severity, meta)
}

func (v *KeyVault) record(ctx context.Context, userID uuid.UUID, op entities.SecurityOperation, outcome entities.SecurityOutcome, severity entities.SecuritySeverity, meta map[string]string) {
	fields := []zap.Field{zap.String("user_id", userID.String())}
	for k, val := range meta {
		fields = append(fields, zap.String(k, val))
	}
	logger.Security(ctx, string(op), string(outcome), string(severity), fields...)
	v.deps.Metrics.SecurityEvent(string(op), string(outcome))

	if v.deps.Events == nil {
		return
	}
	event := &entities.SecurityEvent{
		ID:        utils.GenerateUUIDv7(),
		UserID:    userID,
		Operation: op,
		Outcome:   outcome,
		Severity:  severity,
		Metadata:  meta,
		CreatedAt: v.now(),
	}
	if err := v.deps.Events.Create(ctx, event); err != nil {
		logger.Warn(ctx, "failed to persist security event", zap.String("operation", string(op)), zap.Error(err))
	}
}

func auditAddress(addr *entities.OnchainAddress) string {
	if addr == nil {
		return ""
	}
	return addr.Address
}
