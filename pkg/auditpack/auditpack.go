// Package auditpack implements Component J: exporting a run directory
// into a single deterministic ZIP artifact, and verifying one (§4.10).
package auditpack

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wardenlabs/warden/pkg/auditchain"
	"github.com/wardenlabs/warden/pkg/canon"
	"github.com/wardenlabs/warden/pkg/evidencestore"
	"github.com/wardenlabs/warden/pkg/signer"
)

// RunDir names the fixed files a run directory holds that an audit pack
// bundles alongside the manifest's listed artifacts.
type RunDir struct {
	Manifest string // path to manifest.json
	Audit    string // path to audit.json
	Report   string // path to report.json
	Signature string // path to report.sig
	Root     string // run directory root, artifacts resolve relative to this
}

// Export bundles manifest, audit (re-encoded as audit.jsonl), report,
// signature, and every manifest artifact into a deterministic ZIP: entries
// are written in manifest order after the four fixed files, so two
// exports of an unchanged run produce byte-identical archives modulo zip
// timestamps (left at the zero value for this reason).
func Export(dir RunDir, manifest *evidencestore.Manifest) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	if err := copyFileInto(w, "manifest.json", dir.Manifest); err != nil {
		return nil, err
	}

	auditBytes, err := os.ReadFile(dir.Audit)
	if err != nil {
		return nil, fmt.Errorf("auditpack: read audit: %w", err)
	}
	entries, err := auditchain.FromJSON(auditBytes)
	if err != nil {
		return nil, fmt.Errorf("auditpack: parse audit: %w", err)
	}
	lines, err := auditchain.JSONLLines(entries)
	if err != nil {
		return nil, fmt.Errorf("auditpack: render audit.jsonl: %w", err)
	}
	if err := writeBytesInto(w, "audit.jsonl", jsonlBody(lines)); err != nil {
		return nil, err
	}

	if err := copyFileInto(w, "report.json", dir.Report); err != nil {
		return nil, err
	}
	if err := copyFileInto(w, "report.sig", dir.Signature); err != nil {
		return nil, err
	}

	for _, a := range manifest.Artifacts {
		abs := filepath.Join(dir.Root, a.Pointer)
		if err := copyFileInto(w, a.Pointer, abs); err != nil {
			return nil, fmt.Errorf("auditpack: artifact %s: %w", a.Pointer, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("auditpack: close zip: %w", err)
	}
	return buf.Bytes(), nil
}

func jsonlBody(lines [][]byte) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.Write(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func copyFileInto(w *zip.Writer, name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("auditpack: read %s: %w", name, err)
	}
	return writeBytesInto(w, name, data)
}

func writeBytesInto(w *zip.Writer, name string, data []byte) error {
	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	f, err := w.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("auditpack: create entry %s: %w", name, err)
	}
	_, err = f.Write(data)
	return err
}

// Failure classifies a verify failure into the closed set §4.10 names.
type Failure string

const (
	FailureMissingArtifact Failure = "missing artifact"
	FailureHashMismatch    Failure = "hash mismatch"
	FailureHashChain       Failure = "hash chain"
	FailureSignature       Failure = "signature"
)

// VerifyError carries a classified failure plus its detail message.
type VerifyError struct {
	Kind   Failure
	Detail string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("auditpack: %s: %s", e.Kind, e.Detail)
}

// Verify extracts zipData to scratchDir and checks, in order: manifest
// present, audit chain valid, report signature valid, every manifest
// artifact present with matching SHA-256. The first failure found is
// returned classified (§4.10).
func Verify(zipData []byte, scratchDir string, signingKey []byte) error {
	r, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return &VerifyError{Kind: FailureHashMismatch, Detail: "not a valid zip archive"}
	}

	if err := extractAll(r, scratchDir); err != nil {
		return &VerifyError{Kind: FailureMissingArtifact, Detail: err.Error()}
	}

	manifestPath := filepath.Join(scratchDir, "manifest.json")
	manifest, err := evidencestore.ReadManifest(manifestPath)
	if err != nil {
		return &VerifyError{Kind: FailureMissingArtifact, Detail: "manifest.json not present or unparseable in pack"}
	}

	auditPath := filepath.Join(scratchDir, "audit.jsonl")
	entries, err := entriesFromJSONL(auditPath)
	if err != nil {
		return &VerifyError{Kind: FailureHashChain, Detail: err.Error()}
	}
	if err := auditchain.Validate(entries); err != nil {
		return &VerifyError{Kind: FailureHashChain, Detail: err.Error()}
	}

	reportPath := filepath.Join(scratchDir, "report.json")
	sigPath := filepath.Join(scratchDir, "report.sig")
	reportBytes, err := os.ReadFile(reportPath)
	if err != nil {
		return &VerifyError{Kind: FailureMissingArtifact, Detail: "report.json not present in pack"}
	}
	sigBytes, err := os.ReadFile(sigPath)
	if err != nil {
		return &VerifyError{Kind: FailureMissingArtifact, Detail: "report.sig not present in pack"}
	}
	var report signer.Report
	if err := json.Unmarshal(reportBytes, &report); err != nil {
		return &VerifyError{Kind: FailureSignature, Detail: "report.json unparseable"}
	}
	ok, err := signer.VerifyReport(signingKey, report, reportBytes, string(sigBytes))
	if err != nil || !ok {
		return &VerifyError{Kind: FailureSignature, Detail: "report signature invalid"}
	}

	for _, a := range manifest.Artifacts {
		abs := filepath.Join(scratchDir, a.Pointer)
		data, err := os.ReadFile(abs)
		if err != nil {
			return &VerifyError{Kind: FailureMissingArtifact, Detail: a.Pointer}
		}
		if got := canon.HashBytes(data); got != a.SHA256 {
			return &VerifyError{Kind: FailureHashMismatch, Detail: fmt.Sprintf("%s: expected %s, got %s", a.Pointer, a.SHA256, got)}
		}
	}

	return nil
}

// entriesFromJSONL parses the audit-pack's one-canonical-JSON-entry-per-line
// form back into auditchain.Entry values.
func entriesFromJSONL(path string) ([]auditchain.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit.jsonl not present in pack")
	}
	defer f.Close()

	var entries []auditchain.Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e auditchain.Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("audit.jsonl line unparseable: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit.jsonl read error: %w", err)
	}
	return entries, nil
}

func extractAll(r *zip.Reader, dest string) error {
	for _, f := range r.File {
		target := filepath.Join(dest, f.Name)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}
