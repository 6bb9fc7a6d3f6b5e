package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/warden/pkg/promise"
)

func writeFakeDecision(t *testing.T, runsDir, runID string, credence float64) {
	t.Helper()
	dir := filepath.Join(runsDir, runID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	c := credence
	decision := promise.DecisionRecord{
		SchemaVersion:  "1.0",
		RunID:          runID,
		Policy:         "promise.x",
		PromiseResults: []promise.PromiseResult{{PromiseID: "promise.x", Credence: &c, Verdict: promise.VerdictGreen}},
		OverallVerdict: promise.VerdictGreen,
	}
	data, err := json.Marshal(decision)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "decision.json"), data, 0o644))
}

func TestAggregate_AgreeingAssessorsGreen(t *testing.T) {
	runsDir := t.TempDir()
	writeFakeDecision(t, runsDir, "run-a", 0.80)
	writeFakeDecision(t, runsDir, "run-b", 0.84)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"warden", "aggregate", "--panel", "--runs", "alice:run-a,bob:run-b", "--runs-dir", runsDir, "--json"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Contains(t, stdout.String(), `"rule": "mean"`)
}

func TestAggregate_DisagreeingAssessorsRed(t *testing.T) {
	runsDir := t.TempDir()
	writeFakeDecision(t, runsDir, "run-a", 0.95)
	writeFakeDecision(t, runsDir, "run-b", 0.20)

	var stdout, stderr bytes.Buffer
	code := Run([]string{"warden", "aggregate", "--panel", "--runs", "alice:run-a,bob:run-b", "--runs-dir", runsDir, "--json"}, &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stdout.String(), "assessor_disagreement")
}

func TestAggregate_UsageErrorWithoutRunsFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"warden", "aggregate", "--panel"}, &stdout, &stderr)
	require.Equal(t, 2, code)
}
