package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KDFIterations is the PBKDF2 work factor for every wallet derivation
	KDFIterations = 100_000
	// KeyLength is the derived key size in bytes (256 bits)
	KeyLength = 32
	// SaltLength is the per-record salt size in bytes
	SaltLength = 16
	// IVLength is the AES-GCM nonce size in bytes
	IVLength = 12
)

// DeriveKey runs PBKDF2-HMAC-SHA256 over secret and salt.
func DeriveKey(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, KDFIterations, KeyLength, sha256.New)
}

// DeriveDeterministicKey derives the legacy deterministic signing key
// material from "userId:password".
func DeriveDeterministicKey(userID, password string, salt []byte) []byte {
	return DeriveKey(userID+":"+password, salt)
}
