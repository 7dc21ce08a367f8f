package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
)

type walletServiceStub struct {
	generateFn func(ctx context.Context, userID uuid.UUID, input entities.GenerateWalletInput) (*entities.OnchainAddress, error)
	importFn   func(ctx context.Context, userID uuid.UUID, input entities.ImportWalletInput) (*entities.OnchainAddress, error)
	listFn     func(ctx context.Context, userID uuid.UUID) ([]*entities.OnchainAddress, error)
	archiveFn  func(ctx context.Context, userID uuid.UUID, address string, confirmFunded bool) error
	revealFn   func(ctx context.Context, userID uuid.UUID, password string) (string, error)
	signFn     func(ctx context.Context, userID uuid.UUID, password string, chainID int64, td entities.TypedData) (*entities.SignedPayload, error)
}

func (s walletServiceStub) GenerateWallet(ctx context.Context, userID uuid.UUID, input entities.GenerateWalletInput) (*entities.OnchainAddress, error) {
	return s.generateFn(ctx, userID, input)
}
func (s walletServiceStub) ImportKey(ctx context.Context, userID uuid.UUID, input entities.ImportWalletInput) (*entities.OnchainAddress, error) {
	return s.importFn(ctx, userID, input)
}
func (s walletServiceStub) ListAddresses(ctx context.Context, userID uuid.UUID) ([]*entities.OnchainAddress, error) {
	return s.listFn(ctx, userID)
}
func (s walletServiceStub) ArchiveAddress(ctx context.Context, userID uuid.UUID, address string, confirmFunded bool) error {
	return s.archiveFn(ctx, userID, address, confirmFunded)
}
func (s walletServiceStub) RevealPrivateKey(ctx context.Context, userID uuid.UUID, password string) (string, error) {
	return s.revealFn(ctx, userID, password)
}
func (s walletServiceStub) SignTypedData(ctx context.Context, userID uuid.UUID, password string, chainID int64, td entities.TypedData) (*entities.SignedPayload, error) {
	return s.signFn(ctx, userID, password, chainID, td)
}

const testAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

func TestWalletHandler_GenerateAndImport(t *testing.T) {
	userID := uuid.New()
	h := NewWalletHandler(walletServiceStub{
		generateFn: func(_ context.Context, _ uuid.UUID, input entities.GenerateWalletInput) (*entities.OnchainAddress, error) {
			if input.Password == "short" {
				return nil, domainerrors.ErrWeakPassword
			}
			return &entities.OnchainAddress{Address: testAddress, SetupMethod: input.Method, Status: entities.AddressStatusActive}, nil
		},
		importFn: func(_ context.Context, _ uuid.UUID, input entities.ImportWalletInput) (*entities.OnchainAddress, error) {
			if input.PrivateKey == "zz" {
				return nil, domainerrors.ErrInvalidPrivateKey
			}
			return nil, domainerrors.ErrDuplicateWallet
		},
	})
	r := newRouter(&userID)
	r.POST("/wallets", h.GenerateWallet)
	r.POST("/wallets/import", h.ImportWallet)

	w := doJSON(r, http.MethodPost, "/wallets", map[string]any{"password": "long enough pass", "method": "user_password"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "user_password")

	w = doJSON(r, http.MethodPost, "/wallets", map[string]any{"password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domainerrors.CodeWeakPassword, decode(w)["code"])

	w = doJSON(r, http.MethodPost, "/wallets/import", map[string]any{"password": "pw", "privateKey": "zz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/wallets/import", map[string]any{"password": "pw", "privateKey": "0x01"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domainerrors.CodeDuplicateWallet, decode(w)["code"])
}

func TestWalletHandler_ListArchiveReveal(t *testing.T) {
	userID := uuid.New()
	var archivedConfirm bool
	h := NewWalletHandler(walletServiceStub{
		listFn: func(context.Context, uuid.UUID) ([]*entities.OnchainAddress, error) {
			return []*entities.OnchainAddress{{Address: testAddress, IsPrimary: true}}, nil
		},
		archiveFn: func(_ context.Context, _ uuid.UUID, address string, confirm bool) error {
			archivedConfirm = confirm
			if !confirm {
				return domainerrors.ErrFundedWalletArchive
			}
			return nil
		},
		revealFn: func(_ context.Context, _ uuid.UUID, password string) (string, error) {
			if password != "right" {
				return "", domainerrors.ErrWrongPassword
			}
			return "0xkey", nil
		},
	})
	r := newRouter(&userID)
	r.GET("/wallets", h.ListWallets)
	r.POST("/wallets/archive", h.ArchiveWallet)
	r.POST("/wallets/reveal", h.RevealPrivateKey)

	w := doJSON(r, http.MethodGet, "/wallets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testAddress)

	w = doJSON(r, http.MethodPost, "/wallets/archive", map[string]any{"address": testAddress})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domainerrors.CodeFundedWalletArchive, decode(w)["code"])

	w = doJSON(r, http.MethodPost, "/wallets/archive", map[string]any{"address": testAddress, "confirmFunded": true})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, archivedConfirm)

	w = doJSON(r, http.MethodPost, "/wallets/reveal", map[string]any{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/wallets/reveal", map[string]any{"password": "right"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "0xkey", decode(w)["privateKey"])
}

func TestWalletHandler_SignTypedData(t *testing.T) {
	userID := uuid.New()
	h := NewWalletHandler(walletServiceStub{
		signFn: func(_ context.Context, _ uuid.UUID, _ string, chainID int64, td entities.TypedData) (*entities.SignedPayload, error) {
			assert.Equal(t, int64(8453), chainID)
			assert.Equal(t, "Permit", td.PrimaryType)
			return &entities.SignedPayload{Signature: "0xsig", V: 27}, nil
		},
	})
	r := newRouter(&userID)
	r.POST("/wallets/sign-typed-data", h.SignTypedData)

	w := doJSON(r, http.MethodPost, "/wallets/sign-typed-data", map[string]any{
		"password": "pw",
		"chainId":  8453,
		"typedData": map[string]any{
			"primaryType": "Permit",
			"types":       map[string]any{},
			"domain":      map[string]any{"name": "USDC"},
			"message":     map[string]any{},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0xsig")

	w = doJSON(r, http.MethodPost, "/wallets/sign-typed-data", map[string]any{"chainId": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
