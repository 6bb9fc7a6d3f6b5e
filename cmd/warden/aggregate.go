package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wardenlabs/warden/pkg/panel"
	"github.com/wardenlabs/warden/pkg/promise"
	"github.com/wardenlabs/warden/pkg/signer"
)

// runAggregate implements `aggregate --panel --runs name1:runID1,...`
// (§6): combines multiple independently-run assessments of the same
// promise into one signed, auditable panel verdict.
//
// Exit codes:
//
//	0 = aggregate green
//	1 = aggregate red (including flagged assessor disagreement)
//	2 = usage/configuration error
func runAggregate(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		panelMode bool
		runsList  string
		threshold float64
		jsonOut   bool
		runsDir   string
	)
	cmd.BoolVar(&panelMode, "panel", false, "run in multi-assessor panel mode (REQUIRED)")
	cmd.StringVar(&runsList, "runs", "", "comma-separated assessor:run-id pairs (REQUIRED)")
	cmd.Float64Var(&threshold, "threshold", panel.DefaultDisagreementThreshold, "max credence spread before assessor_disagreement is flagged")
	cmd.BoolVar(&jsonOut, "json", false, "print the aggregate result as JSON")
	cmd.StringVar(&runsDir, "runs-dir", "", "directory runs are written under")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if !panelMode || runsList == "" {
		fmt.Fprintln(stderr, "usage: warden aggregate --panel --runs name1:runID1,name2:runID2 [--threshold X] [--json] [--runs-dir D]")
		return 2
	}

	pairs := strings.Split(runsList, ",")
	secret := signer.LoadKey()
	var signed []panel.Signed
	for _, pair := range pairs {
		name, runID, ok := strings.Cut(pair, ":")
		if !ok {
			fmt.Fprintf(stderr, "warden: malformed --runs entry %q, want assessor:run-id\n", pair)
			return 2
		}
		decisionPath := filepath.Join(resolveRunsDir(runsDir), runID, "decision.json")
		data, err := os.ReadFile(decisionPath)
		if err != nil {
			fmt.Fprintf(stderr, "warden: read decision for %s: %v\n", name, err)
			return 2
		}
		var decision promise.DecisionRecord
		if err := json.Unmarshal(data, &decision); err != nil {
			fmt.Fprintf(stderr, "warden: parse decision for %s: %v\n", name, err)
			return 2
		}
		vector := make(map[string]float64, len(decision.PromiseResults))
		for _, r := range decision.PromiseResults {
			if r.Credence != nil {
				vector[r.PromiseID] = *r.Credence
			}
		}
		s, err := panel.Sign(secret, panel.Assessment{Assessor: name, CredenceVector: vector})
		if err != nil {
			fmt.Fprintf(stderr, "warden: sign assessment for %s: %v\n", name, err)
			return 2
		}
		signed = append(signed, s)
	}

	result := panel.Aggregate(signed, threshold)

	if jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		color := verdictColor(result.Verdict)
		fmt.Fprintf(stdout, "%spanel %s%s  rule=%s assessors=%d\n", color, result.Verdict, colorReset, result.Rule, len(signed))
		for k, v := range result.CredenceVector {
			fmt.Fprintf(stdout, "  %-24s %.3f\n", k, v)
		}
		for _, a := range result.Anomalies {
			fmt.Fprintf(stdout, "  anomaly: %s -> %s\n", a, result.AnomalyActions[a])
		}
	}

	if result.Verdict == "red" {
		return 1
	}
	return 0
}
