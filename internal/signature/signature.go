// Package signature computes and verifies the keyed HMAC carried on every
// outbound webhook request.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header is the HTTP header carrying the payload signature.
const Header = "X-Signature"

// Compute returns the hex-encoded HMAC-SHA256 of payload under secret.
// The signature must be computed over the exact bytes transmitted; retries
// reuse the stored payload verbatim so repeated attempts are byte-identical
// and signature-stable.
func Compute(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// HeaderValue formats the signature for the X-Signature header:
// "sha256=<hex>".
func HeaderValue(payload []byte, secret string) string {
	return "sha256=" + Compute(payload, secret)
}

// Verify checks a hex signature against the payload using a constant-time
// comparison. Intended for receivers validating inbound callbacks.
func Verify(payload []byte, secret, signature string) bool {
	expected := Compute(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
