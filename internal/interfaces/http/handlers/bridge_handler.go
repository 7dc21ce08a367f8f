package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/interfaces/http/response"
)

type BridgeService interface {
	Quote(ctx context.Context, input entities.BridgeQuoteInput) (*entities.BridgeRoute, error)
	SubmitDeposit(ctx context.Context, depositAddress, txHash string) error
	Status(ctx context.Context, depositAddress string) (*entities.BridgeStatus, error)
}

// BridgeHandler exposes cross-chain deposits
type BridgeHandler struct {
	bridge BridgeService
}

func NewBridgeHandler(bridge BridgeService) *BridgeHandler {
	return &BridgeHandler{bridge: bridge}
}

type bridgeDepositRequest struct {
	DepositAddress string `json:"depositAddress" binding:"required"`
	TxHash         string `json:"txHash" binding:"required"`
}

// POST /api/v1/bridge/quote
func (h *BridgeHandler) Quote(c *gin.Context) {
	var input entities.BridgeQuoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	route, err := h.bridge.Quote(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"route": route})
}

// POST /api/v1/bridge/deposit
func (h *BridgeHandler) SubmitDeposit(c *gin.Context) {
	var req bridgeDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.bridge.SubmitDeposit(c.Request.Context(), req.DepositAddress, req.TxHash); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"depositAddress": req.DepositAddress})
}

// GET /api/v1/bridge/status/:depositAddress
func (h *BridgeHandler) Status(c *gin.Context) {
	status, err := h.bridge.Status(c.Request.Context(), c.Param("depositAddress"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": status})
}
