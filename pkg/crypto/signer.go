// Package crypto signs and verifies execution plans using HMAC-SHA256 over
// their canonical JSON representation.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/canonicalize"
)

// ErrNoSecret is returned when signing is attempted with no configured secret.
var ErrNoSecret = errors.New("crypto: no HMAC secret configured")

// SignatureField is the key excluded from every canonicalization before
// hashing or verifying — it cannot be part of its own pre-image.
const SignatureField = "hmac_signature"

// Signer signs and verifies arbitrary JSON-marshalable payloads with a
// configured HMAC-SHA256 secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer from a raw secret. An empty secret disables
// signing: Sign returns ErrNoSecret, allowing callers to treat "unsigned" as
// a deliberate configuration state rather than failure (spec.md §3
// Invariant 1: signing is conditional on secret availability).
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Configured reports whether a non-empty secret is set.
func (s *Signer) Configured() bool {
	return len(s.secret) > 0
}

// Sign computes the hex-encoded HMAC-SHA256 digest of the canonical JSON
// representation of v, excluding SignatureField from the pre-image.
func (s *Signer) Sign(v any) (string, error) {
	if !s.Configured() {
		return "", ErrNoSecret
	}
	canonical, err := canonicalize.CanonicalJSON(v, SignatureField)
	if err != nil {
		return "", fmt.Errorf("crypto: canonicalization failed: %w", err)
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the HMAC over v (minus SignatureField) and compares it,
// in constant time, against signature. An empty signature never verifies.
func (s *Signer) Verify(v any, signature string) (bool, error) {
	if signature == "" {
		return false, nil
	}
	if !s.Configured() {
		return false, ErrNoSecret
	}
	expected, err := s.Sign(v)
	if err != nil {
		return false, err
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false, fmt.Errorf("crypto: invalid expected digest: %w", err)
	}
	actualBytes, err := hex.DecodeString(signature)
	if err != nil {
		// Not valid hex, so it cannot possibly match; not an error condition.
		return false, nil
	}
	return subtle.ConstantTimeCompare(expectedBytes, actualBytes) == 1, nil
}
