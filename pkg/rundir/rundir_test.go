package rundir

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_CreatesEvidenceSubdir(t *testing.T) {
	base := t.TempDir()
	d, err := New(base, "run-1")
	require.NoError(t, err)

	info, err := os.Stat(d.EvidencePath())
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestPaths_AreRootedUnderRunDir(t *testing.T) {
	base := t.TempDir()
	d, err := New(base, "run-1")
	require.NoError(t, err)

	require.Contains(t, d.ManifestPath(), "run-1")
	require.Contains(t, d.AuditPath(), "run-1")
	require.Contains(t, d.ReportPath(), "run-1")
	require.Contains(t, d.SignaturePath(), "run-1")
	require.Contains(t, d.DecisionPath(), "run-1")
}

func TestWriteFrozen_MakesFileReadOnly(t *testing.T) {
	base := t.TempDir()
	d, err := New(base, "run-1")
	require.NoError(t, err)

	require.NoError(t, d.WriteFrozen("decision.json", []byte(`{}`)))

	info, err := os.Stat(d.DecisionPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm())
}
