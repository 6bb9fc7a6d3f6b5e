package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/wardenlabs/warden/pkg/evidencestore"
	"github.com/wardenlabs/warden/pkg/rbac"
)

// runEvidence implements `evidence <run-id> bundle|raw|excerpts --role
// <role>`: a role-gated read path over an already-completed run's
// evidence, separate from the evaluation path itself.
//
// Exit codes:
//
//	0 = access granted
//	1 = access denied
//	2 = usage/configuration error
func runEvidence(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evidence", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		role    string
		runsDir string
		jsonOut bool
	)
	cmd.StringVar(&role, "role", "", "requesting role: analyst or counsel (REQUIRED)")
	cmd.StringVar(&runsDir, "runs-dir", "", "directory runs are written under")
	cmd.BoolVar(&jsonOut, "json", false, "print the granted response as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 2 || role == "" {
		fmt.Fprintln(stderr, "usage: warden evidence <run-id> bundle|raw|excerpts --role <role> [--runs-dir D] [--json]")
		return 2
	}
	runID := cmd.Arg(0)
	resource := cmd.Arg(1)

	root := filepath.Join(resolveRunsDir(runsDir), runID)
	manifest, err := evidencestore.ReadManifest(filepath.Join(root, "manifest.json"))
	if err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}

	artifacts := make(map[string][]byte, len(manifest.Artifacts))
	for _, a := range manifest.Artifacts {
		data, err := os.ReadFile(filepath.Join(root, a.Pointer))
		if err != nil {
			// Hash-only retention elides evidence bytes by design; skip
			// rather than fail the whole request.
			continue
		}
		artifacts[a.Pointer] = data
	}

	svc := rbac.NewEvidenceAccessService()
	user := rbac.Role(role)

	switch resource {
	case "bundle":
		resp := svc.RequestEvidenceBundle(user, artifacts)
		if !resp.Granted {
			fmt.Fprintf(stderr, "%sdenied%s %s\n", colorRed, colorReset, resp.Reason)
			return 1
		}
		printPointers(stdout, resp.Files, jsonOut)
		return 0
	case "raw":
		resp := svc.RequestRawEvidence(user, artifacts)
		if !resp.Granted {
			fmt.Fprintf(stderr, "%sdenied%s %s\n", colorRed, colorReset, resp.Reason)
			return 1
		}
		printPointers(stdout, resp.Files, jsonOut)
		return 0
	case "excerpts":
		resp := svc.RequestEvidenceExcerpts(user, artifacts)
		if !resp.Granted {
			fmt.Fprintf(stderr, "%sdenied%s %s\n", colorRed, colorReset, resp.Reason)
			return 1
		}
		if jsonOut {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(resp)
		} else {
			for _, e := range resp.Excerpts {
				fmt.Fprintln(stdout, e)
			}
		}
		return 0
	default:
		fmt.Fprintf(stderr, "warden: unknown evidence resource %q\n", resource)
		return 2
	}
}

func printPointers(w io.Writer, files map[string][]byte, jsonOut bool) {
	pointers := make([]string, 0, len(files))
	for p := range files {
		pointers = append(pointers, p)
	}
	sort.Strings(pointers)
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(pointers)
		return
	}
	fmt.Fprintf(w, "%sgranted%s %d artifact(s)\n", colorGreen, colorReset, len(pointers))
	for _, p := range pointers {
		fmt.Fprintf(w, "  %s\n", p)
	}
}
