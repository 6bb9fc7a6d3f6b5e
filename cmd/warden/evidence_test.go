package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/warden/pkg/evidencestore"
	"github.com/wardenlabs/warden/pkg/promise"
)

// buildFakeRun writes a minimal run directory (evidence + manifest) the
// evidence command can read, without going through a full engine.Run.
func buildFakeRun(t *testing.T, runsDir, runID string) {
	t.Helper()
	root := filepath.Join(runsDir, runID)
	require.NoError(t, os.MkdirAll(root, 0o755))

	store := evidencestore.New(root, promise.RetentionStandard)
	_, err := store.WriteBytes("test", "pytest.json", []byte(`{"test_error":"failed for user@example.com"}`))
	require.NoError(t, err)

	_, _, err = store.WriteManifest(root, evidencestore.Metadata{RunID: runID, EngineVersion: "test"})
	require.NoError(t, err)
}

func TestEvidence_BundleGrantedForAnalyst(t *testing.T) {
	runsDir := t.TempDir()
	buildFakeRun(t, runsDir, "run-1")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"warden", "evidence", "run-1", "bundle", "--role", "analyst", "--runs-dir", runsDir}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Contains(t, stdout.String(), "granted")
}

func TestEvidence_BundleDeniedForCounsel(t *testing.T) {
	runsDir := t.TempDir()
	buildFakeRun(t, runsDir, "run-2")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"warden", "evidence", "run-2", "bundle", "--role", "counsel", "--runs-dir", runsDir}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "insufficient_role")
}

func TestEvidence_ExcerptsGrantedForCounselAndRedacted(t *testing.T) {
	runsDir := t.TempDir()
	buildFakeRun(t, runsDir, "run-3")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"warden", "evidence", "run-3", "excerpts", "--role", "counsel", "--runs-dir", runsDir}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.NotContains(t, stdout.String(), "user@example.com")
}

func TestEvidence_UsageErrorWithoutRole(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"warden", "evidence", "run-1", "bundle"}, &stdout, &stderr)
	require.Equal(t, 2, code)
}
