package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// EncryptKeyEnv names the variable holding the 64-hex-char AES-256 key
// used for integration tokens at rest.
const EncryptKeyEnv = "SKILLGATE_ENCRYPT_KEY"

// encryptKey returns the 32-byte AES key from the environment.
func encryptKey() ([]byte, error) {
	keyHex := os.Getenv(EncryptKeyEnv)
	if keyHex == "" {
		return nil, fmt.Errorf("%s not set", EncryptKeyEnv)
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", EncryptKeyEnv, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must be 64 hex chars (32 bytes), got %d bytes", EncryptKeyEnv, len(key))
	}
	return key, nil
}

func newGCM() (cipher.AEAD, error) {
	key, err := encryptKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}

// tokenAAD binds a sealed token to the integration row it belongs to, so a
// ciphertext copied onto another user's row fails to open.
func tokenAAD(userID, provider string) []byte {
	return []byte(userID + "\x00" + provider)
}

// encrypt uses AES-256-GCM with aad as additional data; the nonce is
// prepended to the ciphertext.
func encrypt(plaintext string, aad []byte) ([]byte, error) {
	if plaintext == "" {
		return nil, nil
	}
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, []byte(plaintext), aad), nil
}

// decrypt reverses encrypt. aad must match the value used to seal.
func decrypt(ciphertext, aad []byte) (string, error) {
	if len(ciphertext) == 0 {
		return "", nil
	}
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ct, aad)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
