package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/wardenlabs/warden/pkg/engine"
	"github.com/wardenlabs/warden/pkg/promise"
)

// runEvaluateCommit implements `evaluate-commit <path>` (§6).
//
// Exit codes:
//
//	0 = green or n/a
//	1 = red or error
//	2 = usage/configuration error
func runEvaluateCommit(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evaluate-commit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath   string
		threshold    float64
		offline      bool
		jsonOutput   bool
		runsDir      string
		wasmAnalyzer string
	)
	cmd.StringVar(&configPath, "config", "", "path to an evaluation config YAML")
	cmd.Float64Var(&threshold, "threshold", 0, "override the promise's credence threshold")
	cmd.BoolVar(&offline, "offline", false, "enforce offline egress during the run")
	cmd.BoolVar(&jsonOutput, "json", false, "print the decision record as JSON")
	cmd.StringVar(&runsDir, "runs-dir", "", "directory runs are written under")
	cmd.StringVar(&wasmAnalyzer, "wasm-analyzer", "", "path to a compiled WASM static-analyzer module; runs the analyzer as a sandboxed wazero guest instead of the native in-process one")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: warden evaluate-commit <path> [--config F] [--threshold X] [--offline] [--json]")
		return 2
	}
	path := cmd.Arg(0)

	p, cfg, err := loadPromiseAndConfig(configPath, threshold)
	if err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}
	if offline {
		cfg.Offline = true
	}
	if wasmAnalyzer != "" {
		cfg.WASMAnalyzerPath = wasmAnalyzer
	}

	e, cleanup, err := buildEngine(cfg, defaultRunIndexPath)
	if err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}
	defer cleanup()

	out, runErr := e.Run(engine.RunInput{
		Promise: p,
		Config:  cfg,
		Path:    path,
		RunsDir: resolveRunsDir(runsDir),
		Mode:    "evaluate-commit",
	})
	if out == nil {
		fmt.Fprintf(stderr, "warden: %v\n", runErr)
		return 2
	}

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out.Decision)
	} else {
		printDecisionSummary(stdout, out.Decision)
	}

	if out.Decision.EgressError != "" {
		fmt.Fprintf(stderr, "warden: egress violation: %s\n", out.Decision.EgressError)
	}

	switch out.Decision.OverallVerdict {
	case promise.VerdictGreen, promise.VerdictNA:
		return 0
	default:
		return 1
	}
}

func printDecisionSummary(w io.Writer, d promise.DecisionRecord) {
	color := verdictColor(string(d.OverallVerdict))
	fmt.Fprintf(w, "%srun %s: %s%s\n", colorGray, d.RunID, string(d.OverallVerdict), colorReset)
	for _, r := range d.PromiseResults {
		credence := "n/a"
		if r.Credence != nil {
			credence = fmt.Sprintf("%.3f", *r.Credence)
		}
		fmt.Fprintf(w, "  %s%-8s%s %-24s credence=%s threshold=%.3f\n", color, string(r.Verdict), colorReset, r.PromiseID, credence, r.Threshold)
		for _, rc := range r.ReasonCodes {
			fmt.Fprintf(w, "    - %s\n", rc)
		}
	}
	if d.Notification != nil {
		fmt.Fprintf(w, "  %s\n", d.Notification.Summary)
	}
}
