package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

type DeploymentStatus string

const (
	DeploymentStatusPending  DeploymentStatus = "pending"
	DeploymentStatusDeployed DeploymentStatus = "deployed"
	DeploymentStatusVerified DeploymentStatus = "verified"
	DeploymentStatusMismatch DeploymentStatus = "mismatch"
)

// ContractArtifact is compiled contract output to deploy
type ContractArtifact struct {
	Name string `json:"name"`
	// Bytecode is the creation code, hex encoded
	Bytecode string `json:"bytecode"`
	// RuntimeCodeHash is keccak256 of the expected deployed code, hex encoded
	RuntimeCodeHash string `json:"runtimeCodeHash"`
	GasLimit        uint64 `json:"gasLimit,omitempty"`
}

// ContractDeployment tracks one deployed contract
type ContractDeployment struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	ChainID         int64            `json:"chainId"`
	Address         string           `json:"address"`
	TxHash          string           `json:"txHash"`
	RuntimeCodeHash string           `json:"runtimeCodeHash"`
	Status          DeploymentStatus `json:"status"`
	HasCode         bool             `json:"hasCode"`
	DeployedAt      time.Time        `json:"deployedAt"`
	VerifiedAt      null.Time        `json:"verifiedAt"`
}
