// Package rundir manages the on-disk layout of one run directory: where
// the manifest, audit log, report, signature, and decision record live,
// and the invariant that none of them is mutated after being written.
package rundir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir is a run directory rooted at Root.
type Dir struct {
	Root string
}

// New creates runDir/<runID> and its evidence subdirectory, returning a
// Dir rooted there.
func New(baseDir, runID string) (Dir, error) {
	root := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(filepath.Join(root, "evidence"), 0o755); err != nil {
		return Dir{}, fmt.Errorf("rundir: create %s: %w", root, err)
	}
	return Dir{Root: root}, nil
}

func (d Dir) path(name string) string { return filepath.Join(d.Root, name) }

// ManifestPath, AuditPath, ReportPath, SignaturePath, DecisionPath return
// the fixed file locations §6 names for a run directory.
func (d Dir) ManifestPath() string  { return d.path("manifest.json") }
func (d Dir) AuditPath() string     { return d.path("audit.json") }
func (d Dir) ReportPath() string    { return d.path("report.json") }
func (d Dir) SignaturePath() string { return d.path("report.sig") }
func (d Dir) DecisionPath() string  { return d.path("decision.json") }
func (d Dir) EvidencePath() string  { return d.path("evidence") }

// WriteFrozen writes data to name within the run directory and then
// marks the file read-only, enforcing the "append-frozen after write"
// invariant (§3 Invariants) at the filesystem level. Callers that need to
// write the same logical file in stages (e.g. the evidence store writing
// multiple artifacts) should call this only for the final, one-shot
// files: manifest, audit, report, signature, decision.
func (d Dir) WriteFrozen(name string, data []byte) error {
	abs := d.path(name)
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("rundir: write %s: %w", name, err)
	}
	if err := os.Chmod(abs, 0o444); err != nil {
		return fmt.Errorf("rundir: freeze %s: %w", name, err)
	}
	return nil
}
