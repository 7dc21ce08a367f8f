package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"vaultswap.backend/internal/domain/entities"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/interfaces/http/response"
)

type DeploymentService interface {
	GetDeploymentStatus(ctx context.Context) ([]*entities.ContractDeployment, error)
	DeployContracts(ctx context.Context, artifacts []entities.ContractArtifact) ([]*entities.ContractDeployment, error)
	VerifyContracts(ctx context.Context) ([]*entities.ContractDeployment, error)
}

// DeploymentHandler is the admin surface for contract deployments
type DeploymentHandler struct {
	deployments DeploymentService
}

func NewDeploymentHandler(deployments DeploymentService) *DeploymentHandler {
	return &DeploymentHandler{deployments: deployments}
}

type deployContractsRequest struct {
	Contracts []entities.ContractArtifact `json:"contracts" binding:"required,min=1"`
}

// GET /api/v1/admin/deployments
func (h *DeploymentHandler) List(c *gin.Context) {
	items, err := h.deployments.GetDeploymentStatus(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deployments": items})
}

// POST /api/v1/admin/deployments
func (h *DeploymentHandler) Deploy(c *gin.Context) {
	var req deployContractsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	items, err := h.deployments.DeployContracts(c.Request.Context(), req.Contracts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"deployments": items})
}

// POST /api/v1/admin/deployments/verify
func (h *DeploymentHandler) Verify(c *gin.Context) {
	items, err := h.deployments.VerifyContracts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deployments": items})
}
