package security

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HMACVerifier checks gateway notification signatures: lowercase or uppercase
// hex of HMAC-SHA256(secret, payload).
type HMACVerifier struct{}

func (HMACVerifier) Verify(payload []byte, providedSignature string, secret string) bool {
	return Verify(payload, providedSignature, secret)
}

// Verify fails closed. An empty secret or a signature that is empty or not
// valid hex never verifies.
func Verify(payload []byte, providedSignature string, secret string) bool {
	if secret == "" {
		return false
	}
	provided := strings.TrimSpace(providedSignature)
	if provided == "" {
		return false
	}
	decoded, err := hex.DecodeString(provided)
	if err != nil || len(decoded) != sha256.Size {
		return false
	}
	expected := digest(payload, secret)
	return subtle.ConstantTimeCompare(decoded, expected) == 1
}

// Sign returns the hex HMAC-SHA256 digest Verify accepts for payload.
func Sign(payload []byte, secret string) string {
	return hex.EncodeToString(digest(payload, secret))
}

func digest(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}

// MD5RequestSigner produces the provisioning provider's request signature.
type MD5RequestSigner struct{}

func (MD5RequestSigner) Sign(username string, apiKey string, reference string) string {
	return ProviderSign(username, apiKey, reference)
}

// ProviderSign is hex(md5(username + apiKey + reference)).
func ProviderSign(username string, apiKey string, reference string) string {
	sum := md5.Sum([]byte(username + apiKey + reference))
	return hex.EncodeToString(sum[:])
}
