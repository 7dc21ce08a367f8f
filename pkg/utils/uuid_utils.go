package utils

import (
	"github.com/google/uuid"
)

var newUUIDv7 = uuid.NewV7

// GenerateUUIDv7 generates a new time-ordered UUID v7
func GenerateUUIDv7() uuid.UUID {
	id, err := newUUIDv7()
	if err != nil {
		// Fallback to v4 if v7 fails (highly unlikely)
		return uuid.New()
	}
	return id
}

// NewScopedKey builds "<prefix>_<scope>_<random uuid>"
func NewScopedKey(prefix, scope string) string {
	return prefix + "_" + scope + "_" + uuid.NewString()
}
