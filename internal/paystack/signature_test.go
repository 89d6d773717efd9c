package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureValid(t *testing.T) {
	secret := "sk_test_abc123"
	payload := []byte(`{"event":"charge.success","data":{"reference":"EVT_ABC123"}}`)

	assert.True(t, VerifySignature(secret, payload, sign(secret, payload)))
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)

	assert.False(t, VerifySignature("sk_test_abc123", payload, sign("sk_test_other", payload)))
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	secret := "sk_test_abc123"
	signature := sign(secret, []byte(`{"amount":500000}`))

	assert.False(t, VerifySignature(secret, []byte(`{"amount":100}`), signature))
}

func TestVerifySignatureMissing(t *testing.T) {
	assert.False(t, VerifySignature("sk_test_abc123", []byte(`{}`), ""))
}

func TestVerifySignatureGarbage(t *testing.T) {
	assert.False(t, VerifySignature("sk_test_abc123", []byte(`{}`), "not-a-hex-digest"))
}

func TestVerifySignatureByteExactness(t *testing.T) {
	secret := "sk_test_abc123"
	payload := []byte(`{"a": 1, "b": 2}`)
	reserialized := []byte(`{"a":1,"b":2}`)

	signature := sign(secret, payload)
	assert.True(t, VerifySignature(secret, payload, signature))
	// Whitespace differences from re-serialization must not pass
	assert.False(t, VerifySignature(secret, reserialized, signature))
}
