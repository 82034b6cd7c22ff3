package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Salt              = "justone-salt-v1"
	DefaultIterations = 100000
	keyLen            = 32
	nonceSize         = 12
)

var (
	ErrNoSecret           = errors.New("encryption secret not configured")
	ErrUnknownKey         = errors.New("unknown key id")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// Cipher seals with the current secret and opens with any configured secret.
// Keys are derived once per secret and kept by key id.
type Cipher struct {
	current string
	keys    map[string][]byte
	order   []string
}

// NewCipher derives keys for secret and every non-empty previous secret.
func NewCipher(secret string, previous []string, iterations int) (*Cipher, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	c := &Cipher{keys: make(map[string][]byte)}
	c.current = c.add(secret, iterations)
	for _, p := range previous {
		if p != "" {
			c.add(p, iterations)
		}
	}
	return c, nil
}

func (c *Cipher) add(secret string, iterations int) string {
	id := KeyID(secret)
	if _, ok := c.keys[id]; !ok {
		c.keys[id] = DeriveKey(secret, iterations)
		c.order = append(c.order, id)
	}
	return id
}

// KeyID fingerprints a secret: hex of the first 8 bytes of its SHA-256.
func KeyID(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}

// DeriveKey runs PBKDF2-HMAC-SHA256 over secret with the fixed salt.
func DeriveKey(secret string, iterations int) []byte {
	return pbkdf2.Key([]byte(secret), []byte(Salt), iterations, keyLen, sha256.New)
}

// CurrentKeyID is the key id new ciphertexts are sealed with.
func (c *Cipher) CurrentKeyID() string { return c.current }

// Encrypt seals plaintext with AES-256-GCM under a fresh 12-byte nonce and
// returns base64(nonce||ciphertext) with the key id used.
func (c *Cipher) Encrypt(plaintext []byte) (string, string, error) {
	gcm, err := newGCM(c.keys[c.current])
	if err != nil {
		return "", "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), c.current, nil
}

// Decrypt opens a value produced by Encrypt. An empty keyID tries every
// configured key, current first.
func (c *Cipher) Decrypt(encoded, keyID string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	if keyID != "" {
		key, ok := c.keys[keyID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, keyID)
		}
		return open(key, raw)
	}
	var lastErr error
	for _, id := range c.order {
		pt, err := open(c.keys[id], raw)
		if err == nil {
			return pt, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func open(key, raw []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce, ct := raw[:nonceSize], raw[nonceSize:]
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("open ciphertext: %w", err)
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
