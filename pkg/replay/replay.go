// Package replay implements Component K: reconstructing a run's ledger
// from its audit log alone, without re-invoking probes or the abductive
// engine, and cross-checking the toolchain fingerprint embedded at run
// time against the current one (§4.11).
package replay

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wardenlabs/warden/pkg/auditchain"
	"github.com/wardenlabs/warden/pkg/evidencestore"
	"github.com/wardenlabs/warden/pkg/promise"
	"github.com/wardenlabs/warden/pkg/toolchain"
)

// CredenceTolerance is the maximum allowed absolute difference between a
// replayed credence and the one recorded in the decision record (§8
// Testable Property 4).
const CredenceTolerance = 1e-6

// RootOutcome is one root's reconstructed ledger/support entry.
type RootOutcome struct {
	Credence float64
	SupportK float64
}

// Result is everything Replay reconstructs from the audit log.
type Result struct {
	Ledger          map[string]RootOutcome
	ToolchainMatch  bool
	ToolchainWarning string
}

// Replay parses auditPath, validates the chain, and reconstructs the
// ledger purely from the "root_aggregated" events it contains — the
// abductive engine's replay mode never re-runs slot evaluation.
func Replay(auditPath string) (Result, error) {
	data, err := os.ReadFile(auditPath)
	if err != nil {
		return Result{}, fmt.Errorf("replay: read audit: %w", err)
	}
	entries, err := auditchain.FromJSON(data)
	if err != nil {
		return Result{}, fmt.Errorf("replay: parse audit: %w", err)
	}
	if err := auditchain.Validate(entries); err != nil {
		return Result{}, fmt.Errorf("replay: %w", err)
	}

	ledger := make(map[string]RootOutcome)
	for _, e := range entries {
		if e.EventType != "root_aggregated" {
			continue
		}
		payload, ok := e.Payload.Data.(map[string]interface{})
		if !ok {
			continue
		}
		rootID, _ := payload["root_id"].(string)
		credence, _ := payload["credence"].(float64)
		kRoot, _ := payload["k_root"].(float64)
		if rootID == "" {
			continue
		}
		ledger[rootID] = RootOutcome{Credence: credence, SupportK: kRoot}
	}

	return Result{Ledger: ledger}, nil
}

// CheckToolchain compares embedded against current. Under strict
// determinism a mismatch is an error; otherwise it is reported as a
// warning and replay proceeds (§4.11).
func CheckToolchain(embedded, current toolchain.Fingerprint, strict bool) (Result, error) {
	if embedded.Matches(current) {
		return Result{ToolchainMatch: true}, nil
	}
	if strict {
		return Result{ToolchainMatch: false}, fmt.Errorf("replay: toolchain mismatch")
	}
	return Result{ToolchainMatch: false, ToolchainWarning: "toolchain mismatch: replay proceeding under non-strict determinism mode"}, nil
}

// CheckHashOnlyEvidence verifies every manifest artifact is present
// before replay when the run used hash-only retention (§4.11). The first
// missing artifact fails with "missing evidence artifact: <pointer>".
func CheckHashOnlyEvidence(runDir string, manifest *evidencestore.Manifest, retention promise.Retention) error {
	if retention != promise.RetentionHashOnly {
		return nil
	}
	for _, a := range manifest.Artifacts {
		if _, err := os.Stat(filepath.Join(runDir, filepath.FromSlash(a.Pointer))); err != nil {
			return fmt.Errorf("missing evidence artifact: %s", a.Pointer)
		}
	}
	return nil
}

// CredenceMatches reports whether replayed and decision-recorded
// credence agree within CredenceTolerance (§8 Testable Property 4).
func CredenceMatches(replayed, decided float64) bool {
	diff := replayed - decided
	if diff < 0 {
		diff = -diff
	}
	return diff < CredenceTolerance
}
