package evidencestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wardenlabs/warden/pkg/canon"
)

// Metadata is the manifest's non-artifact half (§3 Manifest).
type Metadata struct {
	RunID                 string            `json:"run_id"`
	TimestampUTC          string            `json:"timestamp_utc"`
	EngineVersion         string            `json:"engine_version"`
	SessionParameters     interface{}       `json:"session_parameters"`
	ToolchainFingerprint  interface{}       `json:"toolchain_fingerprint"`
	EgressPolicy          string            `json:"egress_policy"`
	RetentionClass        string            `json:"retention_class"`
	HypothesisLibraryID   string            `json:"hypothesis_library_id,omitempty"`
	HypothesisLibraryHash string            `json:"hypothesis_library_checksum,omitempty"`
}

// Manifest is the full on-disk manifest.json payload.
type Manifest struct {
	Metadata  Metadata   `json:"metadata"`
	Artifacts []Artifact `json:"artifacts"`
}

// WriteManifest serialises metadata plus the store's sorted artifact list
// to <runDir>/manifest.json with two-space indentation and no trailing
// newline, and returns the manifest's own SHA-256 (computed over the
// canonical form, not the indented on-disk bytes, per §9 "Canonical JSON").
// The manifest is not self-referential: this hash is only recorded in the
// decision record, never inside the manifest itself.
func (s *Store) WriteManifest(runDir string, metadata Metadata) (pointer, sha256Hex string, err error) {
	m := Manifest{Metadata: metadata, Artifacts: s.Artifacts()}

	canonicalBytes, err := canon.JSON(m)
	if err != nil {
		return "", "", fmt.Errorf("evidencestore: canonicalize manifest: %w", err)
	}
	sha256Hex = canon.HashBytes(canonicalBytes)

	indented, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("evidencestore: marshal manifest: %w", err)
	}

	abs := filepath.Join(runDir, "manifest.json")
	if err := os.WriteFile(abs, indented, 0o644); err != nil {
		return "", "", fmt.Errorf("evidencestore: write manifest: %w", err)
	}

	return "manifest.json", sha256Hex, nil
}

// ReadManifest loads and parses a manifest.json from disk.
func ReadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("evidencestore: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("evidencestore: parse manifest: %w", err)
	}
	return &m, nil
}

// VerifyArtifacts checks that every manifest artifact's SHA-256 matches the
// bytes at its pointer relative to runDir. Audit-pack verify and replay
// run their own checks and do not call it.
func VerifyArtifacts(runDir string, m *Manifest) error {
	for _, a := range m.Artifacts {
		abs := filepath.Join(runDir, filepath.FromSlash(a.Pointer))
		data, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("missing artifact: %s", a.Pointer)
		}
		if got := canon.HashBytes(data); got != a.SHA256 {
			return fmt.Errorf("hash mismatch for %s: expected %s, got %s", a.Pointer, a.SHA256, got)
		}
	}
	return nil
}
