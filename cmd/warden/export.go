package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wardenlabs/warden/pkg/auditpack"
	"github.com/wardenlabs/warden/pkg/evidencestore"
)

// runExport implements `export --run <id> --out <file>` (§6, §4.10).
//
// Exit codes:
//
//	0 = export written
//	2 = usage/configuration/I-O error
func runExport(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		runID   string
		outFile string
		runsDir string
	)
	cmd.StringVar(&runID, "run", "", "run id to export (REQUIRED)")
	cmd.StringVar(&outFile, "out", "", "output ZIP path (REQUIRED)")
	cmd.StringVar(&runsDir, "runs-dir", "", "directory runs are written under")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if runID == "" || outFile == "" {
		fmt.Fprintln(stderr, "usage: warden export --run <id> --out <file> [--runs-dir D]")
		return 2
	}

	root := filepath.Join(resolveRunsDir(runsDir), runID)
	manifest, err := evidencestore.ReadManifest(filepath.Join(root, "manifest.json"))
	if err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}

	dir := auditpack.RunDir{
		Manifest:  filepath.Join(root, "manifest.json"),
		Audit:     filepath.Join(root, "audit.json"),
		Report:    filepath.Join(root, "report.json"),
		Signature: filepath.Join(root, "report.sig"),
		Root:      root,
	}
	zipBytes, err := auditpack.Export(dir, manifest)
	if err != nil {
		fmt.Fprintf(stderr, "warden: export: %v\n", err)
		return 2
	}
	if err := os.WriteFile(outFile, zipBytes, 0o644); err != nil {
		fmt.Fprintf(stderr, "warden: write bundle: %v\n", err)
		return 2
	}

	fmt.Fprintf(stdout, "%sexported%s %s -> %s (%d bytes)\n", colorGreen, colorReset, runID, outFile, len(zipBytes))
	return 0
}
