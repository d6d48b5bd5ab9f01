package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// TokenPrefix marks raw API tokens so they are recognizable in logs and
// support tickets without revealing the secret part.
const TokenPrefix = "bn_"

// NewAPIToken returns a fresh raw API token. Only its hash is persisted;
// the raw value is shown to the user once.
func NewAPIToken() (string, error) {
	b, err := RandBytes(32)
	if err != nil {
		return "", err
	}
	return TokenPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashAPIToken derives the storage hash of a raw token using an
// HMAC-SHA256 keyed by the server pepper.
func HashAPIToken(raw string, pepper []byte) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(raw))
	return mac.Sum(nil)
}
