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
	"vaultswap.backend/pkg/utils"
)

type TransactionService interface {
	ListTransactions(ctx context.Context, userID uuid.UUID, pagination utils.PaginationParams) ([]*entities.Transaction, utils.PaginationMeta, error)
	GetTransaction(ctx context.Context, userID, id uuid.UUID) (*entities.Transaction, error)
}

// TransactionHandler serves swap history
type TransactionHandler struct {
	transactions TransactionService
}

func NewTransactionHandler(transactions TransactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// ListTransactions lists the caller's swaps, newest first
// GET /api/v1/transactions?page=&limit=
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	var pagination utils.PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid pagination"))
		return
	}

	txs, meta, err := h.transactions.ListTransactions(c.Request.Context(), userID, pagination)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"transactions": txs,
		"pagination":   meta,
	})
}

// GET /api/v1/transactions/:id
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid transaction ID"))
		return
	}

	tx, err := h.transactions.GetTransaction(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"transaction": tx})
}
