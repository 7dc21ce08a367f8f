package usecases

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/domain/repositories"
	"vaultswap.backend/pkg/logger"
	"vaultswap.backend/pkg/utils"
)

// DeploymentUsecase deploys the treasury contracts and checks what is on chain
type DeploymentUsecase struct {
	repo     repositories.DeploymentRepository
	chain    ContractChain
	ownerKey *ecdsa.PrivateKey
	now      func() time.Time
}

// NewDeploymentUsecase creates the usecase. ownerKeyHex may be empty, in
// which case DeployContracts is refused.
func NewDeploymentUsecase(repo repositories.DeploymentRepository, chain ContractChain, ownerKeyHex string) (*DeploymentUsecase, error) {
	u := &DeploymentUsecase{repo: repo, chain: chain, now: time.Now}
	if ownerKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(ownerKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid operator key: %w", err)
		}
		u.ownerKey = key
	}
	return u, nil
}

func (u *DeploymentUsecase) chainID() int64 {
	if u.chain == nil || u.chain.ChainID() == nil {
		return 0
	}
	return u.chain.ChainID().Int64()
}

// GetDeploymentStatus lists recorded deployments with live code presence
func (u *DeploymentUsecase) GetDeploymentStatus(ctx context.Context) ([]*entities.ContractDeployment, error) {
	deployments, err := u.repo.List(ctx, u.chainID())
	if err != nil {
		return nil, err
	}
	if u.chain == nil {
		return deployments, nil
	}
	for _, d := range deployments {
		code, err := u.chain.CodeAt(ctx, d.Address)
		if err != nil {
			logger.Warn(ctx, "code lookup failed", zap.String("address", d.Address), zap.Error(err))
			continue
		}
		d.HasCode = len(code) > 0
	}
	return deployments, nil
}

// DeployContracts sends one contract-creation transaction per artifact and
// records each as pending
func (u *DeploymentUsecase) DeployContracts(ctx context.Context, artifacts []entities.ContractArtifact) ([]*entities.ContractDeployment, error) {
	if u.chain == nil || u.ownerKey == nil {
		return nil, domainerrors.NewError("operator key or chain not configured", domainerrors.ErrBadRequest)
	}
	if len(artifacts) == 0 {
		return nil, domainerrors.NewError("no artifacts", domainerrors.ErrInvalidInput)
	}
	for _, a := range artifacts {
		if a.Name == "" || len(common.FromHex(a.Bytecode)) == 0 {
			return nil, domainerrors.NewError("artifact name and bytecode are required", domainerrors.ErrInvalidInput)
		}
	}

	out := make([]*entities.ContractDeployment, 0, len(artifacts))
	for _, a := range artifacts {
		address, txHash, err := u.chain.DeployContract(ctx, u.ownerKey, common.FromHex(a.Bytecode), a.GasLimit)
		if err != nil {
			return out, fmt.Errorf("deploy %s: %w", a.Name, err)
		}
		d := &entities.ContractDeployment{
			ID:              utils.GenerateUUIDv7(),
			Name:            a.Name,
			ChainID:         u.chainID(),
			Address:         address.Hex(),
			TxHash:          txHash.Hex(),
			RuntimeCodeHash: normalizeHash(a.RuntimeCodeHash),
			Status:          entities.DeploymentStatusPending,
			DeployedAt:      u.now(),
		}
		if err := u.repo.Create(ctx, d); err != nil {
			logger.Error(ctx, "deployment sent but not recorded",
				zap.String("name", a.Name),
				zap.String("address", d.Address),
				zap.String("tx_hash", d.TxHash),
				zap.Error(err),
			)
			return out, err
		}
		logger.Info(ctx, "contract deployment sent", zap.String("name", a.Name), zap.String("address", d.Address))
		out = append(out, d)
	}
	return out, nil
}

// VerifyContracts compares the keccak256 of on-chain code with the
// expected runtime hash. Deployments without code yet stay as they are.
func (u *DeploymentUsecase) VerifyContracts(ctx context.Context) ([]*entities.ContractDeployment, error) {
	if u.chain == nil {
		return nil, domainerrors.NewError("chain not configured", domainerrors.ErrBadRequest)
	}
	deployments, err := u.repo.List(ctx, u.chainID())
	if err != nil {
		return nil, err
	}
	for _, d := range deployments {
		code, err := u.chain.CodeAt(ctx, d.Address)
		if err != nil {
			return nil, fmt.Errorf("code lookup for %s: %w", d.Name, err)
		}
		d.HasCode = len(code) > 0
		if !d.HasCode {
			continue
		}

		status := entities.DeploymentStatusVerified
		if d.RuntimeCodeHash != "" && !strings.EqualFold(crypto.Keccak256Hash(code).Hex(), d.RuntimeCodeHash) {
			status = entities.DeploymentStatusMismatch
		}
		if status == d.Status {
			continue
		}
		if err := u.repo.UpdateStatus(ctx, d.ID, status); err != nil {
			return nil, err
		}
		d.Status = status
		if status == entities.DeploymentStatusMismatch {
			logger.Warn(ctx, "deployed code does not match artifact", zap.String("name", d.Name), zap.String("address", d.Address))
		}
	}
	return deployments, nil
}

func normalizeHash(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return ""
	}
	return common.HexToHash(h).Hex()
}
