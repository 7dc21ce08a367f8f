package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
)

type bridgeServiceStub struct {
	quoteFn  func(ctx context.Context, input entities.BridgeQuoteInput) (*entities.BridgeRoute, error)
	submitFn func(ctx context.Context, depositAddress, txHash string) error
	statusFn func(ctx context.Context, depositAddress string) (*entities.BridgeStatus, error)
}

func (s bridgeServiceStub) Quote(ctx context.Context, input entities.BridgeQuoteInput) (*entities.BridgeRoute, error) {
	return s.quoteFn(ctx, input)
}
func (s bridgeServiceStub) SubmitDeposit(ctx context.Context, depositAddress, txHash string) error {
	return s.submitFn(ctx, depositAddress, txHash)
}
func (s bridgeServiceStub) Status(ctx context.Context, depositAddress string) (*entities.BridgeStatus, error) {
	return s.statusFn(ctx, depositAddress)
}

func TestBridgeHandler(t *testing.T) {
	h := NewBridgeHandler(bridgeServiceStub{
		quoteFn: func(_ context.Context, input entities.BridgeQuoteInput) (*entities.BridgeRoute, error) {
			if input.Amount <= 0 {
				return nil, domainerrors.ErrInvalidAmount
			}
			return &entities.BridgeRoute{DepositAddress: "0xdeposit", AmountIn: fmt.Sprint(input.Amount)}, nil
		},
		submitFn: func(_ context.Context, _, txHash string) error {
			if txHash == "0xbad" {
				return fmt.Errorf("%w: rejected", domainerrors.ErrBridgeFailure)
			}
			return nil
		},
		statusFn: func(_ context.Context, depositAddress string) (*entities.BridgeStatus, error) {
			return &entities.BridgeStatus{DepositAddress: depositAddress, State: entities.BridgeStateSuccess}, nil
		},
	})
	r := newRouter(nil)
	r.POST("/bridge/quote", h.Quote)
	r.POST("/bridge/deposit", h.SubmitDeposit)
	r.GET("/bridge/status/:depositAddress", h.Status)

	w := doJSON(r, http.MethodPost, "/bridge/quote", map[string]any{"originAsset": "USDC", "destinationAsset": "USDC", "amount": 25, "recipient": "0xme"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0xdeposit")

	w = doJSON(r, http.MethodPost, "/bridge/quote", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/bridge/deposit", map[string]any{"depositAddress": "0xdeposit", "txHash": "0xok"})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(r, http.MethodPost, "/bridge/deposit", map[string]any{"depositAddress": "0xdeposit", "txHash": "0xbad"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = doJSON(r, http.MethodPost, "/bridge/deposit", map[string]any{"depositAddress": "0xdeposit"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/bridge/status/0xdeposit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(entities.BridgeStateSuccess))
}
