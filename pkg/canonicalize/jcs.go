// Package canonicalize provides deterministic JSON serialization used as the
// HMAC pre-image for execution plans. It excludes a caller-supplied key set (always the signature field
// itself) and sorts keys recursively, so nested maps never leak serialization
// order into the digest.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// CanonicalJSON returns the canonical (RFC 8785-style) JSON representation of
// v, after stripping every key named in exclude from every object level.
func CanonicalJSON(v any, exclude ...string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal failed: %w", err)
	}

	if len(exclude) > 0 {
		raw, err = stripKeys(raw, exclude)
		if err != nil {
			return nil, fmt.Errorf("canonicalize: key exclusion failed: %w", err)
		}
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}
	return canonical, nil
}

// stripKeys removes every named key from every object encountered at any
// nesting depth, then re-marshals through the standard encoder.
// jcs.Transform then applies the full RFC 8785 rules (key ordering and
// number formatting) downstream.
func stripKeys(raw []byte, exclude []string) ([]byte, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	excludeSet := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		excludeSet[k] = struct{}{}
	}
	stripped := stripRecursive(generic, excludeSet)
	return json.Marshal(stripped)
}

func stripRecursive(v any, exclude map[string]struct{}) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if _, skip := exclude[k]; skip {
				continue
			}
			out[k] = stripRecursive(val, exclude)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stripRecursive(val, exclude)
		}
		return out
	default:
		return v
	}
}

// Hash returns the lowercase-hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalHash is a convenience wrapper: canonicalize then hash.
func CanonicalHash(v any, exclude ...string) (string, error) {
	b, err := CanonicalJSON(v, exclude...)
	if err != nil {
		return "", err
	}
	return Hash(b), nil
}
