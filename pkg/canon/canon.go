// Package canon implements the single canonical-JSON and hashing path used
// everywhere an artifact's bytes must hash the same way twice: the evidence
// store, the audit chain, the report signer, the audit pack, and replay.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// JSON returns the RFC 8785 canonical JSON encoding of v: sorted object
// keys, no insignificant whitespace, shortest round-trip numeric form.
func JSON(v interface{}) ([]byte, error) {
	// jcs.Transform operates on already-marshaled JSON bytes; round-trip
	// through the standard marshaler first so struct tags are honored.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canon: transform: %w", err)
	}
	return out, nil
}

// NormalizeText returns s in NFC form, so that two byte-distinct but
// visually identical strings become equal. JSON and Hash do not apply it,
// and evidence is hashed without it.
func NormalizeText(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Hash returns the lowercase hex SHA-256 digest of the canonical JSON
// encoding of v.
func Hash(v interface{}) (string, error) {
	b, err := JSON(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// EvidenceID builds the "evidence:<hex-sha256>" identifier form from §4.2.
func EvidenceID(sha256Hex string) string {
	return "evidence:" + sha256Hex
}

// Equal reports whether two canonical JSON encodings of a and b are
// byte-identical, used by tests asserting determinism across permutations.
func Equal(a, b interface{}) (bool, error) {
	ab, err := JSON(a)
	if err != nil {
		return false, err
	}
	bb, err := JSON(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}
