// Package canonical produces deterministic digests of structured values.
// Values are serialized with RFC 8785 JSON Canonicalization (JCS) before
// hashing, so logically identical decisions always hash identically
// regardless of map ordering or encoder quirks.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Marshal returns the canonical JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	canonicalBytes, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical transform: %w", err)
	}
	return canonicalBytes, nil
}

// Digest returns the SHA-256 multihash of the canonical encoding of v.
func Digest(v any) (string, error) {
	canonicalBytes, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonicalBytes)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
