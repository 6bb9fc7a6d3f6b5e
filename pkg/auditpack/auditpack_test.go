package auditpack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/warden/pkg/auditchain"
	"github.com/wardenlabs/warden/pkg/evidencestore"
	"github.com/wardenlabs/warden/pkg/promise"
	"github.com/wardenlabs/warden/pkg/signer"
)

func buildRun(t *testing.T) (RunDir, *evidencestore.Manifest, []byte) {
	t.Helper()
	runDir := t.TempDir()

	store := evidencestore.New(runDir, promise.RetentionStandard)
	_, err := store.WriteBytes("test", "pytest.json", []byte(`{"exit_code":0}`))
	require.NoError(t, err)

	entries, err := auditchain.Chain([]auditchain.RawEvent{
		{EventType: "session_completed", Payload: map[string]interface{}{"root_count": 1}},
	})
	require.NoError(t, err)
	auditJSON, err := auditchain.CanonicalJSON(entries)
	require.NoError(t, err)
	auditPath := filepath.Join(runDir, "audit.json")
	require.NoError(t, os.WriteFile(auditPath, auditJSON, 0o644))

	secret := []byte("test-secret")
	report := signer.Report{RunID: "run-1", PromiseID: "promise.x", Credence: 0.9, Verdict: "green"}
	reportBytes, sig, err := signer.SignReport(secret, report)
	require.NoError(t, err)
	reportPath := filepath.Join(runDir, "report.json")
	sigPath := filepath.Join(runDir, "report.sig")
	require.NoError(t, os.WriteFile(reportPath, reportBytes, 0o644))
	require.NoError(t, os.WriteFile(sigPath, []byte(sig), 0o644))

	_, manifestHash, err := store.WriteManifest(runDir, evidencestore.Metadata{RunID: "run-1"})
	require.NoError(t, err)
	_ = manifestHash
	manifestPath := filepath.Join(runDir, "manifest.json")
	manifest, err := evidencestore.ReadManifest(manifestPath)
	require.NoError(t, err)

	return RunDir{
		Manifest:  manifestPath,
		Audit:     auditPath,
		Report:    reportPath,
		Signature: sigPath,
		Root:      runDir,
	}, manifest, secret
}

func TestExportAndVerify_RoundTrip(t *testing.T) {
	dir, manifest, secret := buildRun(t)
	zipData, err := Export(dir, manifest)
	require.NoError(t, err)
	require.NotEmpty(t, zipData)

	scratch := t.TempDir()
	err = Verify(zipData, scratch, secret)
	require.NoError(t, err)
}

func TestVerify_DetectsTamperedArtifact(t *testing.T) {
	dir, manifest, secret := buildRun(t)

	// Corrupt the evidence bytes on disk after the manifest recorded their
	// original hash, simulating tampering before export.
	tamperedPath := filepath.Join(dir.Root, "evidence", "pytest.json")
	require.NoError(t, os.WriteFile(tamperedPath, []byte(`{"exit_code":1}`), 0o644))

	zipData, err := Export(dir, manifest)
	require.NoError(t, err)

	err = Verify(zipData, t.TempDir(), secret)
	require.Error(t, err)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, FailureHashMismatch, verr.Kind)
}

func TestVerify_RejectsWrongSigningKey(t *testing.T) {
	dir, manifest, _ := buildRun(t)
	zipData, err := Export(dir, manifest)
	require.NoError(t, err)

	err = Verify(zipData, t.TempDir(), []byte("wrong-key"))
	require.Error(t, err)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, FailureSignature, verr.Kind)
}

func TestVerify_RejectsCorruptZip(t *testing.T) {
	err := Verify([]byte("not a zip"), t.TempDir(), []byte("secret"))
	require.Error(t, err)
}
