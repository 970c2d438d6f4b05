package aead

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	MinMasterKeyBytes = 32
	hkdfInfoPrefix    = "legal-intake/document-key/"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Cipher encrypts with XChaCha20-Poly1305. Each key ID gets its own subkey
// derived from the master key with HKDF-SHA256, and the key ID is bound as
// additional data so a blob cannot be decrypted under another ID.
type Cipher struct {
	master []byte
	rand   io.Reader
}

func New(masterKey []byte) (*Cipher, error) {
	if len(masterKey) < MinMasterKeyBytes {
		return nil, fmt.Errorf("master key must be at least %d bytes, got %d", MinMasterKeyBytes, len(masterKey))
	}
	key := make([]byte, len(masterKey))
	copy(key, masterKey)
	return &Cipher{master: key, rand: rand.Reader}, nil
}

// ParseMasterKey accepts standard base64 or hex encodings.
func ParseMasterKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errors.New("master key is empty")
	}
	if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return raw, nil
	}
	if raw, err := hex.DecodeString(encoded); err == nil {
		return raw, nil
	}
	return nil, errors.New("master key must be base64 or hex encoded")
}

func (c *Cipher) Encrypt(plaintext []byte, keyID string) ([]byte, error) {
	aead, err := c.aeadFor(keyID)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, []byte(keyID)), nil
}

func (c *Cipher) Decrypt(ciphertext []byte, keyID string) ([]byte, error) {
	aead, err := c.aeadFor(keyID)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(keyID))
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}
	return plaintext, nil
}

// Hash returns the hex SHA-256 digest of value.
func (c *Cipher) Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func (c *Cipher) aeadFor(keyID string) (cipher.AEAD, error) {
	if strings.TrimSpace(keyID) == "" {
		return nil, errors.New("key id is required")
	}
	subkey := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, c.master, nil, []byte(hkdfInfoPrefix+keyID))
	if _, err := io.ReadFull(kdf, subkey); err != nil {
		return nil, fmt.Errorf("derive subkey: %w", err)
	}
	aead, err := chacha20poly1305.NewX(subkey)
	if err != nil {
		return nil, fmt.Errorf("init xchacha20poly1305: %w", err)
	}
	return aead, nil
}
