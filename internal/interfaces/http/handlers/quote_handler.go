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

type QuoteService interface {
	GenerateQuote(ctx context.Context, input *entities.GenerateQuoteInput) (*entities.Quote, error)
	GetQuote(ctx context.Context, userID, quoteID uuid.UUID) (*entities.Quote, error)
}

// QuoteHandler handles quote endpoints
type QuoteHandler struct {
	quotes QuoteService
}

func NewQuoteHandler(quotes QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

// CreateQuote prices a swap and stores a binding quote for the caller
// POST /api/v1/quotes
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	var input entities.GenerateQuoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	input.UserID = &userID
	input.Indicative = false

	quote, err := h.quotes.GenerateQuote(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quote": quote})
}

// CreateIndicativeQuote prices a swap without storing anything
// POST /api/v1/quotes/indicative
func (h *QuoteHandler) CreateIndicativeQuote(c *gin.Context) {
	var input entities.GenerateQuoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	input.UserID = nil
	input.Indicative = true

	quote, err := h.quotes.GenerateQuote(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quote": quote})
}

// GetQuote returns one of the caller's quotes
// GET /api/v1/quotes/:id
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	quoteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid quote ID"))
		return
	}

	quote, err := h.quotes.GetQuote(c.Request.Context(), userID, quoteID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quote": quote})
}
