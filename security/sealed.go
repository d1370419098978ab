package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// SealedPrefix marks a configuration value sealed by a SecretBox.
const SealedPrefix = "topup.secret.v1:"

type sealedEnvelope struct {
	KeyID      string `json:"kid"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type SecretBoxOption func(*SecretBox)

func WithKeyID(id string) SecretBoxOption {
	return func(box *SecretBox) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			box.keyID = trimmed
		}
	}
}

// SecretBox seals configuration secrets (payment secret, provider API key)
// with AES-GCM under an application key, so they can be stored sealed in the
// environment or a config file.
type SecretBox struct {
	key   []byte
	keyID string
}

func NewSecretBox(keyMaterial []byte, opts ...SecretBoxOption) (*SecretBox, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: app key is required")
	}
	box := &SecretBox{key: normalizeKey(key), keyID: "app-key"}
	for _, opt := range opts {
		if opt != nil {
			opt(box)
		}
	}
	return box, nil
}

func IsSealed(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), SealedPrefix)
}

func (b *SecretBox) Seal(plaintext string) (string, error) {
	if b == nil {
		return "", fmt.Errorf("security: secret box is nil")
	}
	if plaintext == "" {
		return "", fmt.Errorf("security: plaintext is required")
	}
	gcm, err := b.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("security: nonce generation failed: %w", err)
	}
	data, err := json.Marshal(sealedEnvelope{
		KeyID:      b.keyID,
		Algorithm:  "aes-256-gcm",
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, []byte(plaintext), nil)),
	})
	if err != nil {
		return "", fmt.Errorf("security: encode envelope: %w", err)
	}
	return SealedPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// Open returns the plaintext of a sealed value. Values without SealedPrefix
// are returned unchanged.
func (b *SecretBox) Open(value string) (string, error) {
	value = strings.TrimSpace(value)
	if !IsSealed(value) {
		return value, nil
	}
	if b == nil {
		return "", fmt.Errorf("security: sealed value requires an app key")
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("security: decode sealed value: %w", err)
	}
	var parsed sealedEnvelope
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("security: decode envelope: %w", err)
	}
	if parsed.KeyID != "" && parsed.KeyID != b.keyID {
		return "", fmt.Errorf("security: key id mismatch: got %q want %q", parsed.KeyID, b.keyID)
	}
	nonce, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	if err != nil {
		return "", fmt.Errorf("security: decode nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("security: decode ciphertext: %w", err)
	}
	gcm, err := b.gcm()
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("security: open sealed value: %w", err)
	}
	return string(plaintext), nil
}

func (b *SecretBox) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

// normalizeKey keeps AES-sized keys and hashes anything else to 32 bytes.
func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		return bytes.Clone(value)
	}
	sum := sha256.Sum256(value)
	return sum[:]
}
