package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/wardenlabs/warden/pkg/canon"
	"github.com/wardenlabs/warden/pkg/engine"
	"github.com/wardenlabs/warden/pkg/promise"
)

// ciGateReport is the multi-promise shape §6 describes for `ci-gate`; a
// single-promise run instead writes a one-element JSON array of
// promise.PromiseResult.
type ciGateReport struct {
	OverallVerdict promise.Verdict        `json:"overall_verdict"`
	PolicyID       string                 `json:"policy_id"`
	Results        []promise.PromiseResult `json:"results"`
}

// policyID computes §6's `policy_id = SHA256(canonical({promises, severity,
// threshold, thresholds, fail_on_violation}))`.
func policyID(cfg *promise.EvaluationConfig, sev promise.Severity) (string, error) {
	shape := map[string]interface{}{
		"promises":          []string{cfg.PromiseID},
		"severity":          sev,
		"threshold":         cfg.Threshold,
		"thresholds":        cfg.SeverityThresholds,
		"fail_on_violation": cfg.FailOnViolation,
	}
	data, err := canon.JSON(shape)
	if err != nil {
		return "", err
	}
	return canon.HashBytes(data), nil
}

// runCIGate implements `ci-gate <path>` (§6): a stricter gate meant for CI,
// writing its decision to --output instead of (only) stdout.
//
// Exit codes:
//
//	0 = pass
//	1 = fail or error
//	2 = usage/configuration error
func runCIGate(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("ci-gate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		severity   string
		enforce    bool
		output     string
		configPath string
		offline    bool
	)
	cmd.StringVar(&severity, "severity", "", "severity override applied to every gated promise")
	cmd.BoolVar(&enforce, "enforce", false, "fail the gate on any detected policy violation")
	cmd.StringVar(&output, "output", "", "file to write the gate report to (default stdout)")
	cmd.StringVar(&configPath, "config", "", "path to an evaluation config YAML")
	cmd.BoolVar(&offline, "offline", false, "enforce offline egress during the run")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: warden ci-gate <path> [--severity S] [--enforce] [--output F] [--config F] [--offline]")
		return 2
	}
	path := cmd.Arg(0)

	p, cfg, err := loadPromiseAndConfig(configPath, 0)
	if err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}
	if severity != "" {
		cfg.SeverityOverride = promise.Severity(severity)
	}
	if enforce {
		cfg.FailOnViolation = true
	}
	if offline {
		cfg.Offline = true
	}

	e, cleanup, err := buildEngine(cfg, defaultRunIndexPath)
	if err != nil {
		fmt.Fprintf(stderr, "warden: %v\n", err)
		return 2
	}
	defer cleanup()

	out, _ := e.Run(engine.RunInput{
		Promise: p,
		Config:  cfg,
		Path:    path,
		RunsDir: defaultRunsDir,
		Mode:    "ci-gate",
	})
	if out == nil {
		fmt.Fprintln(stderr, "warden: ci-gate could not start a run")
		return 2
	}

	sev := cfg.SeverityOverride
	if sev == "" {
		sev = p.Severity
	}
	id, err := policyID(cfg, sev)
	if err != nil {
		fmt.Fprintf(stderr, "warden: compute policy id: %v\n", err)
		return 2
	}

	var reportBytes []byte
	if len(out.Decision.PromiseResults) == 1 {
		reportBytes, err = json.MarshalIndent(out.Decision.PromiseResults, "", "  ")
	} else {
		reportBytes, err = json.MarshalIndent(ciGateReport{
			OverallVerdict: out.Decision.OverallVerdict,
			PolicyID:       id,
			Results:        out.Decision.PromiseResults,
		}, "", "  ")
	}
	if err != nil {
		fmt.Fprintf(stderr, "warden: marshal report: %v\n", err)
		return 2
	}

	if output != "" {
		if err := os.WriteFile(output, reportBytes, 0o644); err != nil {
			fmt.Fprintf(stderr, "warden: write report: %v\n", err)
			return 2
		}
	} else {
		fmt.Fprintln(stdout, string(reportBytes))
	}

	switch out.Decision.OverallVerdict {
	case promise.VerdictGreen, promise.VerdictNA:
		return 0
	default:
		return 1
	}
}
