// Package collector implements Component D: the evidence collector that
// drives probes under a seeded, deterministic regime, hashes payloads, and
// detects nondeterminism across repeats.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/wardenlabs/warden/pkg/canon"
	"github.com/wardenlabs/warden/pkg/evidencestore"
	"github.com/wardenlabs/warden/pkg/probes"
	"github.com/wardenlabs/warden/pkg/promise"
	"github.com/wardenlabs/warden/pkg/redact"
)

// Result is the compact evidence dict §4.4 step 5 describes, plus the
// anomalies and evidence ids the rest of the pipeline needs.
type Result struct {
	Passing        bool     `json:"passing"`
	Coverage       float64  `json:"coverage"`
	CallSites      int      `json:"call_sites"`
	Violations     int      `json:"violations"`
	TestError      string   `json:"test_error,omitempty"`
	SemgrepError   string   `json:"semgrep_error,omitempty"`
	TestsSkipped   bool     `json:"tests_skipped,omitempty"`
	NoCallSites    bool     `json:"no_call_sites,omitempty"`
	EvidenceIDs    []string `json:"-"`
	Nondeterministic bool   `json:"-"`

	// Redactions counts PII/secret replacements made to probe free-text
	// (test_error, semgrep_error, finding messages) before it was hashed
	// into evidence. Keyed by redact.Kind.
	Redactions map[redact.Kind]int `json:"-"`
}

// Collector drives TestRunner and StaticAnalyzer under a seed.
type Collector struct {
	Tests    probes.TestRunner
	Analyzer probes.StaticAnalyzer
	Store    *evidencestore.Store
	Limiter  *rate.Limiter

	// Redactor scrubs probe free-text before it is written to evidence
	// or hashed into the audit chain. Defaults to redact.New() when nil.
	Redactor redact.Redactor
}

// New builds a Collector. A nil Limiter disables pacing.
func New(tests probes.TestRunner, analyzer probes.StaticAnalyzer, store *evidencestore.Store) *Collector {
	return &Collector{
		Tests:    tests,
		Analyzer: analyzer,
		Store:    store,
		Limiter:  rate.NewLimiter(rate.Limit(50), 1), // generous default, paces repeats only
		Redactor: redact.New(),
	}
}

// perProbePayload is the canonicalised union hashed across determinism
// repeats (§4.4 step 4).
type perProbePayload struct {
	Pytest  probes.TestResult   `json:"pytest_payload"`
	Semgrep probes.StaticResult `json:"semgrep_payload"`
}

// Run executes the configured determinism regime and returns the compact
// evidence dict plus any anomaly detected.
func (c *Collector) Run(cfg *promise.EvaluationConfig, path string) (Result, []string, error) {
	restoreRNG := seedRNG(cfg.Seed)
	defer restoreRNG()

	runs := cfg.DeterminismRuns
	if runs < 1 {
		runs = 1
	}

	var anomalies []string
	var lastTest probes.TestResult
	var lastStatic probes.StaticResult
	var firstHash string
	nondeterministic := false

	for i := 0; i < runs; i++ {
		if c.Limiter != nil && i > 0 {
			_ = c.Limiter.Wait(context.Background())
		}

		lastTest = c.Tests.Run(path, cfg.ProbeTargets)
		lastStatic = c.Analyzer.Analyze(path, cfg.StaticAnalyzerRules)

		h, err := canon.Hash(perProbePayload{Pytest: lastTest, Semgrep: lastStatic})
		if err != nil {
			return Result{}, nil, fmt.Errorf("collector: hash repeat %d: %w", i, err)
		}
		if i == 0 {
			firstHash = h
		} else if h != firstHash {
			nondeterministic = true
		}
	}

	if nondeterministic {
		anomalies = append(anomalies, "toolchain_nondeterminism")
		if cfg.DeterminismMode == promise.DeterminismStrict {
			return Result{Nondeterministic: true}, anomalies, fmt.Errorf("collector: nondeterministic probe output under strict determinism mode")
		}
	}

	redactions := c.redactProbeText(&lastTest, &lastStatic)

	var evidenceIDs []string
	testBytes, err := json.Marshal(sortedJSON(lastTest))
	if err != nil {
		return Result{}, anomalies, fmt.Errorf("collector: marshal test payload: %w", err)
	}
	testID, err := c.Store.WriteBytes("test", "pytest.json", testBytes)
	if err != nil {
		return Result{}, anomalies, fmt.Errorf("collector: write test evidence: %w", err)
	}
	evidenceIDs = append(evidenceIDs, testID)

	staticBytes, err := json.Marshal(sortedJSON(lastStatic))
	if err != nil {
		return Result{}, anomalies, fmt.Errorf("collector: marshal static payload: %w", err)
	}
	staticID, err := c.Store.WriteBytes("static", "semgrep.json", staticBytes)
	if err != nil {
		return Result{}, anomalies, fmt.Errorf("collector: write static evidence: %w", err)
	}
	evidenceIDs = append(evidenceIDs, staticID)

	res := Result{
		Passing:      lastTest.Passing(),
		Coverage:     lastStatic.Coverage,
		CallSites:    lastStatic.TotalCallSites,
		Violations:   lastStatic.Violations,
		TestError:    lastTest.TestError,
		SemgrepError: lastStatic.SemgrepError,
		TestsSkipped: lastTest.Skipped,
		NoCallSites:  lastStatic.TotalCallSites == 0,
		EvidenceIDs:  evidenceIDs,
		Nondeterministic: nondeterministic,
		Redactions:   redactions,
	}
	return res, anomalies, nil
}

// redactProbeText scrubs the free-text fields a probe can return before
// they are marshaled to evidence bytes or surfaced anywhere downstream.
// Test failure output and static-analyzer messages routinely echo back
// fixture data, which can carry real PII or secrets from the repo under
// evaluation.
func (c *Collector) redactProbeText(test *probes.TestResult, static *probes.StaticResult) map[redact.Kind]int {
	r := c.Redactor
	if r == nil {
		r = redact.New()
	}
	ctx := context.Background()
	summary := redact.Summary{}

	if test.TestError != "" {
		scrubbed, s := r.Redact(ctx, test.TestError)
		test.TestError = scrubbed
		summary = summary.Merge(s)
	}
	if static.SemgrepError != "" {
		scrubbed, s := r.Redact(ctx, static.SemgrepError)
		static.SemgrepError = scrubbed
		summary = summary.Merge(s)
	}
	for i := range static.Findings {
		if static.Findings[i].Message == "" {
			continue
		}
		scrubbed, s := r.Redact(ctx, static.Findings[i].Message)
		static.Findings[i].Message = scrubbed
		summary = summary.Merge(s)
	}
	return summary.Counts
}

// sortedJSON round-trips v through canon to get a stable, sorted-key
// representation before the final evidence write (distinct from the
// determinism hash, which hashes the raw struct union).
func sortedJSON(v interface{}) interface{} {
	b, err := canon.JSON(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// seedRNG seeds the process-wide math/rand source per §4.4 step 1 and
// returns a restore function. math/rand's global source has no "get
// current seed" accessor, so restoration re-seeds from the current time.
// The one process-wide resource this package touches gets restored on
// exit the same way every other injected dependency here does.
func seedRNG(seed *int64) func() {
	if seed == nil {
		return func() {}
	}
	rand.Seed(*seed) //nolint:staticcheck // process-wide seed is the documented contract here
	return func() {
		rand.Seed(time.Now().UnixNano()) //nolint:staticcheck
	}
}
