package services

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// GenerateReference produces a payment reference that is unique with
// overwhelming probability: a millisecond timestamp in base36 plus four
// crypto-random bytes. The unique index on registrations.paystack_reference
// is the authoritative backstop.
func GenerateReference() string {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 36)

	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to nanosecond jitter rather than panic mid-request.
		return strings.ToUpper("EVT_" + timestamp + strconv.FormatInt(time.Now().UnixNano(), 36))
	}

	return strings.ToUpper("EVT_" + timestamp + hex.EncodeToString(random))
}
