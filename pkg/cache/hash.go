package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashLen is the number of hex characters kept from the SHA-256 digest.
// The result is an opaque comparison token, not an integrity check.
const hashLen = 16

// Encode serializes v the way cached responses are served: compact JSON,
// no HTML escaping, no trailing newline. Map keys are emitted in sorted
// order, so equal values always encode to equal bytes.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ContentHash returns the ETag for a serialized payload.
func ContentHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:hashLen]
}

// HashValue encodes v and returns both the body and its content hash.
func HashValue(v any) ([]byte, string, error) {
	body, err := Encode(v)
	if err != nil {
		return nil, "", err
	}
	return body, ContentHash(body), nil
}
