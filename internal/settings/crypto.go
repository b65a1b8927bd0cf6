package settings

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32 // AES-256
	iterations = 100000
)

var errCiphertextTooShort = errors.New("ciphertext too short")

// Crypto seals the settings file with AES-256-GCM under a PBKDF2 key.
// The file layout is salt | nonce | sealed payload.
type Crypto struct {
	passphrase string
}

// NewCrypto creates a new Crypto instance. An empty passphrase selects the
// built-in default.
func NewCrypto(passphrase string) (*Crypto, error) {
	if passphrase == "" {
		passphrase = getDefaultPassphrase()
	}
	return &Crypto{passphrase: passphrase}, nil
}

// getDefaultPassphrase returns the passphrase used when SETTINGS_PASSPHRASE
// is unset. It only obfuscates the file.
func getDefaultPassphrase() string {
	return "ai-exchange-local-settings"
}

// aead derives the key for salt and returns the GCM cipher for it
func (c *Crypto) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(c.passphrase), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts plaintext with a fresh salt and nonce
func (c *Crypto) Encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt decrypts data produced by Encrypt
func (c *Crypto) Decrypt(data []byte) ([]byte, error) {
	if len(data) < saltSize {
		return nil, errCiphertextTooShort
	}

	gcm, err := c.aead(data[:saltSize])
	if err != nil {
		return nil, err
	}

	sealed := data[saltSize:]
	if len(sealed) < gcm.NonceSize() {
		return nil, errCiphertextTooShort
	}

	nonce, sealed := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.New("decryption failed: invalid passphrase or corrupted data")
	}

	return plaintext, nil
}
