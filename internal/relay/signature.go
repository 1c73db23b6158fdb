package relay

import (
	"crypto/hmac"
	"crypto/sha256"
)

// VerifySignature checks that signature is a valid URL-safe-base64-encoded
// HMAC-SHA256 of body under secret. It returns false, never an error, for
// absent or malformed input. The comparison is constant-time over
// equal-length digests; a length mismatch fails immediately since digest
// length is not secret.
func VerifySignature(signature string, body []byte, secret string) bool {
	if signature == "" || len(body) == 0 || secret == "" {
		return false
	}

	provided, err := DecodeBase64URL(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if len(provided) != len(expected) {
		return false
	}
	return hmac.Equal(provided, expected)
}

// SignBody computes the URL-safe-base64 HMAC-SHA256 signature the push
// provider attaches to a delivery. Used by tests and the watch tool.
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return EncodeBase64URL(mac.Sum(nil))
}
