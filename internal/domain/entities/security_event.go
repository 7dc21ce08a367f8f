package entities

import (
	"time"

	"github.com/google/uuid"
)

// SecurityOperation names an audited key-vault operation
type SecurityOperation string

const (
	SecurityOpGenerateWallet SecurityOperation = "generate_wallet"
	SecurityOpImportKey      SecurityOperation = "import_key"
	SecurityOpUnlock         SecurityOperation = "unlock_for_signing"
	SecurityOpSignTypedData  SecurityOperation = "sign_typed_data"
	SecurityOpRevealKey      SecurityOperation = "reveal_private_key"
	SecurityOpArchiveAddress SecurityOperation = "archive_address"
	SecurityOpBindLegacyKey  SecurityOperation = "bind_legacy_key"
)

type SecurityOutcome string

const (
	SecurityOutcomeSuccess SecurityOutcome = "success"
	SecurityOutcomeFailure SecurityOutcome = "failure"
)

type SecuritySeverity string

const (
	SecuritySeverityInfo    SecuritySeverity = "info"
	SecuritySeverityWarning SecuritySeverity = "warning"
	SecuritySeverityHigh    SecuritySeverity = "high"
)

// SecurityEvent is an audit record. Metadata never carries key material.
type SecurityEvent struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"userId"`
	Operation SecurityOperation `json:"operation"`
	Outcome   SecurityOutcome   `json:"outcome"`
	Severity  SecuritySeverity  `json:"severity"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
