package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wardenlabs/warden/pkg/evidencestore"
	"github.com/wardenlabs/warden/pkg/promise"
	"github.com/wardenlabs/warden/pkg/toolchain"
)

// runIngest implements `ingest <src> --into <dst>` (§6): hashes every file
// under src into dst's evidence store and writes a manifest over it, so a
// vendor/external evidence directory (a VDR drop) gets the same
// content-addressed, hash-verifiable shape a run directory has.
//
// Exit codes:
//
//	0 = manifest written
//	2 = usage/I-O error
func runIngest(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("ingest", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var into string
	cmd.StringVar(&into, "into", "", "destination directory (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 1 || into == "" {
		fmt.Fprintln(stderr, "usage: warden ingest <src> --into <dst>")
		return 2
	}
	src := cmd.Arg(0)

	if err := os.MkdirAll(into, 0o755); err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}
	store := evidencestore.New(into, promise.RetentionStandard)

	count := 0
	walkErr := filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(src, p)
		if relErr != nil {
			return relErr
		}
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return readErr
		}
		if _, writeErr := store.WriteBytes("vendor", rel, data); writeErr != nil {
			return writeErr
		}
		count++
		return nil
	})
	if walkErr != nil {
		fmt.Fprintf(stderr, "warden: ingest: %v\n", walkErr)
		return 2
	}

	metadata := evidencestore.Metadata{
		EngineVersion:        "",
		ToolchainFingerprint: toolchain.Record(nil),
		EgressPolicy:         "unrestricted",
		RetentionClass:       string(promise.RetentionStandard),
	}
	_, _, err := store.WriteManifest(into, metadata)
	if err != nil {
		fmt.Fprintf(stderr, "warden: write manifest: %v\n", err)
		return 2
	}

	fmt.Fprintf(stdout, "%singested%s %d file(s) from %s into %s\n", colorGreen, colorReset, count, src, into)
	return 0
}
