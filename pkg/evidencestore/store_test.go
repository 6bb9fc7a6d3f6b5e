package evidencestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/warden/pkg/promise"
)

func TestWriteBytesAndRead(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, promise.RetentionStandard)

	id, err := s.WriteBytes("test", "pytest.json", []byte(`{"ok":true}`))
	require.NoError(t, err)
	require.Contains(t, id, "evidence:")

	back, err := s.Read("pytest.json")
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(back))
}

func TestHashOnlyRetention_ElidesBytes(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, promise.RetentionHashOnly)

	_, err := s.WriteBytes("test", "pytest.json", []byte(`{"ok":true}`))
	require.NoError(t, err)

	_, err = s.Read("pytest.json")
	require.ErrorIs(t, err, ErrMissing)
}

func TestArtifactsSorted(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, promise.RetentionStandard)
	_, err := s.WriteBytes("z", "z.json", []byte(`{}`))
	require.NoError(t, err)
	_, err = s.WriteBytes("a", "a.json", []byte(`{}`))
	require.NoError(t, err)

	arts := s.Artifacts()
	require.Len(t, arts, 2)
	require.Equal(t, "a", arts[0].Kind)
	require.Equal(t, "z", arts[1].Kind)
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, promise.RetentionStandard)
	_, err := s.WriteBytes("test", "pytest.json", []byte(`{"ok":true}`))
	require.NoError(t, err)

	pointer, sha, err := s.WriteManifest(dir, Metadata{RunID: "run-1", EngineVersion: "1.0.0"})
	require.NoError(t, err)
	require.Equal(t, "manifest.json", pointer)
	require.NotEmpty(t, sha)

	m, err := ReadManifest(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	require.Equal(t, "run-1", m.Metadata.RunID)
	require.Len(t, m.Artifacts, 1)

	require.NoError(t, VerifyArtifacts(dir, m))
}

func TestVerifyArtifacts_DetectsTamper(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, promise.RetentionStandard)
	_, err := s.WriteBytes("test", "pytest.json", []byte(`{"ok":true}`))
	require.NoError(t, err)
	_, _, err = s.WriteManifest(dir, Metadata{RunID: "run-1"})
	require.NoError(t, err)

	m, err := ReadManifest(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	// Tamper with the artifact bytes.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evidence", "pytest.json"), []byte(`{"ok":false}`), 0o644))

	err = VerifyArtifacts(dir, m)
	require.Error(t, err)
}
