package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/interfaces/http/middleware"
	"vaultswap.backend/internal/interfaces/http/response"
)

type WalletService interface {
	GenerateWallet(ctx context.Context, userID uuid.UUID, input entities.GenerateWalletInput) (*entities.OnchainAddress, error)
	ImportKey(ctx context.Context, userID uuid.UUID, input entities.ImportWalletInput) (*entities.OnchainAddress, error)
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]*entities.OnchainAddress, error)
	ArchiveAddress(ctx context.Context, userID uuid.UUID, address string, confirmFunded bool) error
	RevealPrivateKey(ctx context.Context, userID uuid.UUID, password string) (string, error)
	SignTypedData(ctx context.Context, userID uuid.UUID, password string, chainID int64, td entities.TypedData) (*entities.SignedPayload, error)
}

// WalletHandler handles custodial wallet endpoints
type WalletHandler struct {
	wallets WalletService
}

func NewWalletHandler(wallets WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

type archiveWalletRequest struct {
	Address       string `json:"address" binding:"required"`
	ConfirmFunded bool   `json:"confirmFunded"`
}

type revealKeyRequest struct {
	Password string `json:"password" binding:"required"`
}

type signTypedDataRequest struct {
	Password  string             `json:"password" binding:"required"`
	ChainID   int64              `json:"chainId"`
	TypedData entities.TypedData `json:"typedData"`
}

// GenerateWallet creates a custodial wallet
// POST /api/v1/wallets
func (h *WalletHandler) GenerateWallet(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	var input entities.GenerateWalletInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	addr, err := h.wallets.GenerateWallet(c.Request.Context(), userID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"wallet": addr})
}

// ImportWallet stores an externally held private key
// POST /api/v1/wallets/import
func (h *WalletHandler) ImportWallet(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	var input entities.ImportWalletInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	addr, err := h.wallets.ImportKey(c.Request.Context(), userID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"wallet": addr})
}

// ListWallets lists the caller's active addresses, best first
// GET /api/v1/wallets
func (h *WalletHandler) ListWallets(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	addrs, err := h.wallets.ListAddresses(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"wallets": addrs})
}

// ArchiveWallet retires an address
// POST /api/v1/wallets/archive
func (h *WalletHandler) ArchiveWallet(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	var req archiveWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.wallets.ArchiveAddress(c.Request.Context(), userID, req.Address, req.ConfirmFunded); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Wallet archived"})
}

// RevealPrivateKey returns the decrypted key for export
// POST /api/v1/wallets/reveal
func (h *WalletHandler) RevealPrivateKey(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	var req revealKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	key, err := h.wallets.RevealPrivateKey(c.Request.Context(), userID, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	response.Success(c, http.StatusOK, gin.H{"privateKey": key})
}

// SignTypedData signs an EIP-712 payload with the caller's wallet
// POST /api/v1/wallets/sign-typed-data
func (h *WalletHandler) SignTypedData(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	var req signTypedDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	signed, err := h.wallets.SignTypedData(c.Request.Context(), userID, req.Password, req.ChainID, req.TypedData)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"signature": signed})
}
