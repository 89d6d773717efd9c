package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"

	"github.com/pkg/errors"
)

// ErrSignatureInvalid marks a webhook whose signature does not match the
// payload. Malformed input is simply invalid; the check never errors.
var ErrSignatureInvalid = errors.New("invalid webhook signature")

// SignatureHeader is the HTTP header carrying the provider signature
const SignatureHeader = "X-Paystack-Signature"

// VerifySignature recomputes the HMAC-SHA512 of the raw request body with
// the secret key and compares it to the claimed signature in constant time.
// The payload must be the exact bytes as received; re-serializing a parsed
// structure can change the byte content and break correctly-signed requests.
func VerifySignature(secretKey string, payload []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
