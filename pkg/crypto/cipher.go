package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// ErrDecryptFailed is returned when AES-GCM authentication fails, which for
// password based records means the password is wrong.
var ErrDecryptFailed = errors.New("decryption failed")

// Sealed is the at-rest form of an encrypted secret.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
}

// Seal encrypts plaintext with a key derived from secret using a fresh salt
// and IV.
func Seal(secret string, plaintext []byte) (*Sealed, error) {
	salt, err := RandomBytes(SaltLength)
	if err != nil {
		return nil, err
	}
	iv, err := RandomBytes(IVLength)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(DeriveKey(secret, salt))
	if err != nil {
		return nil, err
	}

	return &Sealed{
		Ciphertext: gcm.Seal(nil, iv, plaintext, nil),
		IV:         iv,
		Salt:       salt,
	}, nil
}

// Open reverses Seal.
func Open(secret string, sealed *Sealed) ([]byte, error) {
	if sealed == nil || len(sealed.IV) != IVLength || len(sealed.Salt) == 0 {
		return nil, fmt.Errorf("%w: malformed record", ErrDecryptFailed)
	}

	gcm, err := newGCM(DeriveKey(secret, sealed.Salt))
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, sealed.IV, sealed.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
