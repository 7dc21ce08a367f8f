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

type SwapService interface {
	ExecuteSwap(ctx context.Context, input entities.ExecuteSwapInput) (*entities.SwapResult, error)
}

// SwapHandler handles swap execution
type SwapHandler struct {
	swaps SwapService
}

func NewSwapHandler(swaps SwapService) *SwapHandler {
	return &SwapHandler{swaps: swaps}
}

type executeSwapRequest struct {
	QuoteID  string `json:"quoteId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ExecuteSwap runs a quoted swap end to end. A polling timeout answers 202
// with the partial result; other failures carry the result alongside the error.
// POST /api/v1/swaps
func (h *SwapHandler) ExecuteSwap(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	var req executeSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	quoteID, err := uuid.Parse(req.QuoteID)
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid quote ID"))
		return
	}

	result, err := h.swaps.ExecuteSwap(c.Request.Context(), entities.ExecuteSwapInput{
		QuoteID:  quoteID,
		UserID:   userID,
		Password: req.Password,
	})
	if err != nil {
		if result != nil {
			response.ErrorWithResult(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
