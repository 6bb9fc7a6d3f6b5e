// Package signer implements Component G: HMAC-SHA256 report signing and
// constant-time verification, keyed from a process-wide secret with an
// HKDF-derived, per-run subkey so a single long-lived secret never signs
// two runs with the identical key material.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/hkdf"
)

// EnvKeyVar is the environment variable report signing reads its
// process-wide secret from.
const EnvKeyVar = "WARDEN_REPORT_KEY"

// DevDefaultKey is the documented, insecure default used only when
// EnvKeyVar is unset — development and test convenience, never meant to
// protect a production report.
const DevDefaultKey = "warden-dev-default-key-do-not-use-in-production"

// Report is the small, stable shape §4.7 signs.
type Report struct {
	Credence     float64 `json:"credence"`
	PromiseID    string  `json:"promise_id"`
	RunID        string  `json:"run_id"`
	TimestampUTC string  `json:"timestamp_utc"`
	Verdict      string  `json:"verdict"`
}

// Marshal serialises r with sorted keys and two-space indentation, the
// exact byte form §4.7 signs.
func Marshal(r Report) ([]byte, error) {
	// json.MarshalIndent on a struct emits keys in field-declaration order
	// with fixed indentation; Report's fields are declared in lexicographic
	// order of their JSON keys, so the output keys are sorted.
	return json.MarshalIndent(r, "", "  ")
}

// LoadKey resolves the signing key from the environment, falling back to
// the documented development default.
func LoadKey() []byte {
	if v := os.Getenv(EnvKeyVar); v != "" {
		return []byte(v)
	}
	return []byte(DevDefaultKey)
}

// DeriveRunKey derives a per-run signing subkey from the process-wide
// secret via HKDF-SHA256, salted with runID so no two runs share key
// material even under key reuse.
func DeriveRunKey(secret []byte, runID string) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, []byte(runID), []byte("warden-report-signer"))
	sub := make([]byte, 32)
	if _, err := io.ReadFull(reader, sub); err != nil {
		return nil, fmt.Errorf("signer: hkdf derive: %w", err)
	}
	return sub, nil
}

// Sign returns the hex-encoded HMAC-SHA256 signature of data under key.
func Sign(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sigHex is a valid HMAC-SHA256 signature of data
// under key, using a constant-time comparison (§4.7).
func Verify(key, data []byte, sigHex string) bool {
	want, err := hex.DecodeString(Sign(key, data))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want, got) == 1
}

// SignReport builds and signs a Report, returning the marshaled bytes and
// hex signature ready for report.json/report.sig.
func SignReport(secret []byte, r Report) (reportBytes []byte, signatureHex string, err error) {
	reportBytes, err = Marshal(r)
	if err != nil {
		return nil, "", fmt.Errorf("signer: marshal report: %w", err)
	}
	runKey, err := DeriveRunKey(secret, r.RunID)
	if err != nil {
		return nil, "", err
	}
	return reportBytes, Sign(runKey, reportBytes), nil
}

// VerifyReport re-derives the per-run key from secret and r.RunID and
// verifies sigHex against reportBytes.
func VerifyReport(secret []byte, r Report, reportBytes []byte, sigHex string) (bool, error) {
	runKey, err := DeriveRunKey(secret, r.RunID)
	if err != nil {
		return false, err
	}
	return Verify(runKey, reportBytes, sigHex), nil
}

// NowUTC formats t as the report's timestamp_utc field.
func NowUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
