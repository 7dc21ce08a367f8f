package entities

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// WalletSetupMethod records how a wallet's key came to exist
type WalletSetupMethod string

const (
	WalletSetupInstantRandom WalletSetupMethod = "instant_random"
	WalletSetupUserPassword  WalletSetupMethod = "user_password"
	WalletSetupImportedKey   WalletSetupMethod = "imported_key"
	WalletSetupLegacy        WalletSetupMethod = "legacy"
)

// precedence rank, lower wins
var setupMethodRank = map[WalletSetupMethod]int{
	WalletSetupImportedKey:   0,
	WalletSetupLegacy:        1,
	WalletSetupUserPassword:  2,
	WalletSetupInstantRandom: 3,
}

// Rank orders setup methods for canonical address resolution
func (m WalletSetupMethod) Rank() int {
	if r, ok := setupMethodRank[m]; ok {
		return r
	}
	return len(setupMethodRank)
}

// Valid reports whether m is a known setup method
func (m WalletSetupMethod) Valid() bool {
	_, ok := setupMethodRank[m]
	return ok
}

// EncryptionMethod tags what secret protects an EncryptedWalletKey
type EncryptionMethod string

const (
	EncryptionPasswordBased EncryptionMethod = "password_based"
	EncryptionLegacyUserID  EncryptionMethod = "legacy_userid"
)

// AddressStatus is the lifecycle of an on-chain address record
type AddressStatus string

const (
	AddressStatusActive   AddressStatus = "active"
	AddressStatusArchived AddressStatus = "archived"
)

// EncryptedWalletKey is the at-rest form of a signing key. Binary fields are hex.
type EncryptedWalletKey struct {
	ID         uuid.UUID        `json:"id"`
	UserID     uuid.UUID        `json:"userId"`
	Address    string           `json:"address"`
	Ciphertext string           `json:"-"`
	IV         string           `json:"-"`
	Salt       string           `json:"-"`
	Method     EncryptionMethod `json:"method"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// WalletMetadata holds the per-user salt for deterministic derivation
type WalletMetadata struct {
	UserID    uuid.UUID `json:"userId"`
	Salt      string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// OnchainAddress is a user's public wallet identity
type OnchainAddress struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"userId"`
	Address     string            `json:"address"`
	Chain       string            `json:"chain"`
	AssetScope  string            `json:"assetScope"`
	SetupMethod WalletSetupMethod `json:"setupMethod"`
	IsPrimary   bool              `json:"isPrimary"`
	Status      AddressStatus     `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	ArchivedAt  null.Time         `json:"archivedAt"`
}

// RankAddresses returns active addresses ordered by precedence: primary
// first, then setup method rank, then earliest created.
func RankAddresses(addresses []*OnchainAddress) []*OnchainAddress {
	var active []*OnchainAddress
	for _, a := range addresses {
		if a != nil && a.Status == AddressStatusActive {
			active = append(active, a)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.IsPrimary != b.IsPrimary {
			return a.IsPrimary
		}
		if a.SetupMethod.Rank() != b.SetupMethod.Rank() {
			return a.SetupMethod.Rank() < b.SetupMethod.Rank()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return active
}

// CanonicalAddress picks the single address a user signs with, or nil
func CanonicalAddress(addresses []*OnchainAddress) *OnchainAddress {
	ranked := RankAddresses(addresses)
	if len(ranked) == 0 {
		return nil
	}
	return ranked[0]
}

// GenerateWalletInput is the request to create a wallet
type GenerateWalletInput struct {
	Password string            `json:"password"`
	Method   WalletSetupMethod `json:"method"`
}

// ImportWalletInput is the request to import an externally held key
type ImportWalletInput struct {
	Password   string `json:"password"`
	PrivateKey string `json:"privateKey"`
}
