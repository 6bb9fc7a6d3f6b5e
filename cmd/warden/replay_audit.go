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
	"github.com/wardenlabs/warden/pkg/promise"
	"github.com/wardenlabs/warden/pkg/replay"
	"github.com/wardenlabs/warden/pkg/toolchain"
)

// runReplayAudit implements `replay-audit` (§6, §4.11).
//
// Exit codes:
//
//	0 = replay clean (or toolchain mismatch under non-strict mode, with a
//	    warning)
//	1 = chain invalid, or toolchain mismatch under --strict-determinism
//	2 = usage/configuration error
func runReplayAudit(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay-audit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		latest     bool
		runsDir    string
		strict     bool
		jsonOutput bool
	)
	cmd.BoolVar(&latest, "latest", false, "replay the most recently written run under --runs-dir")
	cmd.StringVar(&runsDir, "runs-dir", "", "directory runs are written under")
	cmd.BoolVar(&strict, "strict-determinism", false, "fail on any toolchain fingerprint mismatch")
	cmd.BoolVar(&jsonOutput, "json", false, "print the replay result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	runDir := ""
	auditPath := ""
	if latest {
		dir, err := latestRunDir(resolveRunsDir(runsDir))
		if err != nil {
			fmt.Fprintf(stderr, "warden: %v\n", err)
			return 2
		}
		runDir = dir
		auditPath = filepath.Join(dir, "audit.json")
	} else if cmd.NArg() > 0 {
		arg := cmd.Arg(0)
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			runDir = arg
			auditPath = filepath.Join(arg, "audit.json")
		} else {
			auditPath = arg
			runDir = filepath.Dir(arg)
		}
	} else {
		fmt.Fprintln(stderr, "usage: warden replay-audit [<audit>] [--latest] [--runs-dir D] [--strict-determinism] [--json]")
		return 2
	}

	result, err := replay.Replay(auditPath)
	if err != nil {
		fmt.Fprintf(stderr, "warden: hash chain: %v\n", err)
		return 1
	}

	manifest, mErr := evidencestore.ReadManifest(filepath.Join(runDir, "manifest.json"))
	toolchainWarning := ""
	if mErr == nil {
		embedded, err := decodeFingerprint(manifest.Metadata.ToolchainFingerprint)
		if err == nil {
			current := toolchain.Record(nil)
			tResult, tErr := replay.CheckToolchain(embedded, current, strict)
			if tErr != nil {
				fmt.Fprintf(stderr, "warden: toolchain mismatch: %v\n", tErr)
				return 1
			}
			toolchainWarning = tResult.ToolchainWarning
		}
	}

	credenceMismatch := false
	if dec, dErr := readDecision(filepath.Join(runDir, "decision.json")); dErr == nil {
		for _, r := range dec.PromiseResults {
			if r.Credence == nil {
				continue
			}
			outcome, ok := result.Ledger[dec.Policy]
			if !ok {
				continue
			}
			if !replay.CredenceMatches(outcome.Credence, *r.Credence) {
				credenceMismatch = true
			}
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]interface{}{
			"ledger":            result.Ledger,
			"toolchain_warning": toolchainWarning,
			"credence_mismatch": credenceMismatch,
		})
	} else {
		fmt.Fprintf(stdout, "%sreplay ok%s: %d root(s) reconstructed\n", colorGreen, colorReset, len(result.Ledger))
		if toolchainWarning != "" {
			fmt.Fprintf(stdout, "%swarning%s: %s\n", colorYellow, colorReset, toolchainWarning)
		}
		if credenceMismatch {
			fmt.Fprintf(stderr, "%swarning%s: replayed credence diverges from the recorded decision\n", colorYellow, colorReset)
		}
	}
	return 0
}

func latestRunDir(runsDir string) (string, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return "", fmt.Errorf("read runs dir %s: %w", runsDir, err)
	}
	var dirs []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("no runs found under %s", runsDir)
	}
	sort.Slice(dirs, func(i, j int) bool {
		ii, _ := dirs[i].Info()
		jj, _ := dirs[j].Info()
		if ii == nil || jj == nil {
			return dirs[i].Name() < dirs[j].Name()
		}
		return ii.ModTime().Before(jj.ModTime())
	})
	return filepath.Join(runsDir, dirs[len(dirs)-1].Name()), nil
}

func decodeFingerprint(v interface{}) (toolchain.Fingerprint, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolchain.Fingerprint{}, err
	}
	var fp toolchain.Fingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return toolchain.Fingerprint{}, err
	}
	return fp, nil
}

func readDecision(path string) (*promise.DecisionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d promise.DecisionRecord
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
