package usecases

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/pkg/logger"
)

// BridgeUsecase quotes and tracks cross-chain transfers
type BridgeUsecase struct {
	provider     BridgeProvider
	defaultChain string
	slippageBps  int
}

func NewBridgeUsecase(provider BridgeProvider, defaultChain string, slippageBps int) *BridgeUsecase {
	if defaultChain == "" {
		defaultChain = "eth"
	}
	if slippageBps <= 0 {
		slippageBps = 100
	}
	return &BridgeUsecase{provider: provider, defaultChain: defaultChain, slippageBps: slippageBps}
}

func (u *BridgeUsecase) Quote(ctx context.Context, input entities.BridgeQuoteInput) (*entities.BridgeRoute, error) {
	if u.provider == nil {
		return nil, fmt.Errorf("%w: bridge not configured", domainerrors.ErrBridgeFailure)
	}
	if input.Amount <= 0 {
		return nil, domainerrors.ErrInvalidAmount
	}
	if strings.TrimSpace(input.OriginAsset) == "" || strings.TrimSpace(input.DestinationAsset) == "" || strings.TrimSpace(input.Recipient) == "" {
		return nil, domainerrors.NewError("origin asset, destination asset and recipient are required", domainerrors.ErrInvalidInput)
	}
	if input.OriginChain == "" {
		input.OriginChain = u.defaultChain
	}
	if input.DestinationChain == "" {
		input.DestinationChain = u.defaultChain
	}
	if input.RefundTo == "" {
		input.RefundTo = input.Recipient
	}
	if input.SlippageBps <= 0 {
		input.SlippageBps = u.slippageBps
	}

	route, err := u.provider.Quote(ctx, input)
	if err != nil {
		logger.Warn(ctx, "bridge quote failed",
			zap.String("origin", input.OriginAsset),
			zap.String("destination", input.DestinationAsset),
			zap.Error(err),
		)
		return nil, err
	}
	return route, nil
}

// SubmitDeposit notifies the bridge of a deposit transaction to speed up processing
func (u *BridgeUsecase) SubmitDeposit(ctx context.Context, depositAddress, txHash string) error {
	if u.provider == nil {
		return fmt.Errorf("%w: bridge not configured", domainerrors.ErrBridgeFailure)
	}
	if depositAddress == "" || txHash == "" {
		return domainerrors.NewError("depositAddress and txHash are required", domainerrors.ErrInvalidInput)
	}
	return u.provider.SubmitDeposit(ctx, depositAddress, txHash)
}

func (u *BridgeUsecase) Status(ctx context.Context, depositAddress string) (*entities.BridgeStatus, error) {
	if u.provider == nil {
		return nil, fmt.Errorf("%w: bridge not configured", domainerrors.ErrBridgeFailure)
	}
	if depositAddress == "" {
		return nil, domainerrors.NewError("depositAddress is required", domainerrors.ErrInvalidInput)
	}
	return u.provider.Status(ctx, depositAddress)
}
