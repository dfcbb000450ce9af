package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// validateHMACSHA256 checks whether sigHeader ("sha256=<hex>") matches the
// HMAC-SHA256 signature of body computed with secret, using a
// constant-time comparison. Grounded on bdobrica-Ruriko's
// gateway.ValidateHMACSHA256.
func validateHMACSHA256(secret, body []byte, sigHeader string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(sigHeader, prefix) {
		return false
	}
	expected, err := hex.DecodeString(sigHeader[len(prefix):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// validateHMACSHA1Base64 checks the Twilio X-Twilio-Signature scheme: a
// base64-encoded HMAC-SHA1 over authToken and the request URL concatenated
// with sorted form parameters.
func validateHMACSHA1Base64(secret []byte, signedPayload []byte, sigHeader string) bool {
	if sigHeader == "" {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(sigHeader)
	if err != nil {
		return false
	}
	mac := hmac.New(sha1.New, secret)
	mac.Write(signedPayload)
	return hmac.Equal(mac.Sum(nil), expected)
}
