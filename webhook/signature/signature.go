package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// MinSecretBytes is the minimum generated secret size (192 bits)
	MinSecretBytes = 24

	// MaxSecretBytes is the maximum generated secret size (512 bits)
	MaxSecretBytes = 64
)

/* Scheme is one provider signing convention
 * Verify never fails loudly: malformed or missing input is simply not valid
 */
type Scheme interface {
	// Header is the request header carrying the signature
	Header() string
	// Sign computes the header value a sender would attach
	Sign(payload []byte, secret string) string
	// Verify compares the received header value against the expected one in constant time
	Verify(payload []byte, signature, secret string) bool
}

// HexDigest signs with sha256(secret + payload), hex encoded
type HexDigest struct {
	HeaderName string
}

func (s HexDigest) Header() string { return s.HeaderName }

func (s HexDigest) Sign(payload []byte, secret string) string {
	sum := sha256.Sum256(append([]byte(secret), payload...))
	return hex.EncodeToString(sum[:])
}

func (s HexDigest) Verify(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return equal(strings.ToLower(strings.TrimSpace(signature)), s.Sign(payload, secret))
}

// HMACBase64 signs with HMAC-SHA256 keyed by the secret, base64 encoded
type HMACBase64 struct {
	HeaderName string
}

func (s HMACBase64) Header() string { return s.HeaderName }

func (s HMACBase64) Sign(payload []byte, secret string) string {
	return base64.StdEncoding.EncodeToString(mac(payload, secret))
}

func (s HMACBase64) Verify(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, mac(payload, secret)) == 1
}

// HMACHex signs with HMAC-SHA256, hex encoded behind an optional prefix such as "sha256="
type HMACHex struct {
	HeaderName string
	Prefix     string
}

func (s HMACHex) Header() string { return s.HeaderName }

func (s HMACHex) Sign(payload []byte, secret string) string {
	return s.Prefix + hex.EncodeToString(mac(payload, secret))
}

func (s HMACHex) Verify(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimSpace(signature)
	if s.Prefix != "" {
		if !strings.HasPrefix(signature, s.Prefix) {
			return false
		}
		signature = strings.TrimPrefix(signature, s.Prefix)
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, mac(payload, secret)) == 1
}

// Token compares a shared bearer token carried in the Authorization header
type Token struct{}

func (Token) Header() string { return "Authorization" }

func (Token) Sign(payload []byte, secret string) string {
	return "Bearer " + secret
}

func (Token) Verify(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	token := strings.TrimSpace(signature)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return equal(token, secret)
}

func mac(payload []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return h.Sum(nil)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateSecret returns a random base64 secret of the given size, for provisioning providers
func GenerateSecret(size int) (string, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return "", fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
