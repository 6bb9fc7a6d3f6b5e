package collector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/warden/pkg/evidencestore"
	"github.com/wardenlabs/warden/pkg/probes"
	"github.com/wardenlabs/warden/pkg/promise"
)

type fakeTestRunner struct {
	results []probes.TestResult
	i       int
}

func (f *fakeTestRunner) Run(path string, args []string) probes.TestResult {
	r := f.results[f.i%len(f.results)]
	f.i++
	return r
}
func (f *fakeTestRunner) Version() string { return "fake-1.0.0" }

type fakeAnalyzer struct {
	results []probes.StaticResult
	i       int
}

func (f *fakeAnalyzer) Analyze(path string, rules []string) probes.StaticResult {
	r := f.results[f.i%len(f.results)]
	f.i++
	return r
}
func (f *fakeAnalyzer) Version() string { return "fake-1.0.0" }

func baseConfig() *promise.EvaluationConfig {
	return &promise.EvaluationConfig{
		PromiseID:       "promise.test",
		DeterminismRuns: 1,
		DeterminismMode: promise.DeterminismWarn,
		Retention:       promise.RetentionStandard,
	}
}

func TestCollector_SingleRun(t *testing.T) {
	store := evidencestore.New(t.TempDir(), promise.RetentionStandard)
	c := New(
		&fakeTestRunner{results: []probes.TestResult{{ExitCode: 0}}},
		&fakeAnalyzer{results: []probes.StaticResult{{TotalCallSites: 4, Violations: 1, Coverage: 0.75}}},
		store,
	)
	res, anomalies, err := c.Run(baseConfig(), t.TempDir())
	require.NoError(t, err)
	require.Empty(t, anomalies)
	require.True(t, res.Passing)
	require.Equal(t, 0.75, res.Coverage)
	require.Len(t, res.EvidenceIDs, 2)
}

func TestCollector_NondeterministicWarn(t *testing.T) {
	store := evidencestore.New(t.TempDir(), promise.RetentionStandard)
	cfg := baseConfig()
	cfg.DeterminismRuns = 2
	cfg.DeterminismMode = promise.DeterminismWarn
	c := New(
		&fakeTestRunner{results: []probes.TestResult{{ExitCode: 0}, {ExitCode: 1}}},
		&fakeAnalyzer{results: []probes.StaticResult{{TotalCallSites: 1}}},
		store,
	)
	res, anomalies, err := c.Run(cfg, t.TempDir())
	require.NoError(t, err)
	require.Contains(t, anomalies, "toolchain_nondeterminism")
	require.True(t, res.Nondeterministic)
}

func TestCollector_NondeterministicStrictFails(t *testing.T) {
	store := evidencestore.New(t.TempDir(), promise.RetentionStandard)
	cfg := baseConfig()
	cfg.DeterminismRuns = 2
	cfg.DeterminismMode = promise.DeterminismStrict
	c := New(
		&fakeTestRunner{results: []probes.TestResult{{ExitCode: 0}, {ExitCode: 1}}},
		&fakeAnalyzer{results: []probes.StaticResult{{TotalCallSites: 1}}},
		store,
	)
	_, anomalies, err := c.Run(cfg, t.TempDir())
	require.Error(t, err)
	require.Contains(t, anomalies, "toolchain_nondeterminism")
}

func TestCollector_DeterministicRepeatsPass(t *testing.T) {
	store := evidencestore.New(t.TempDir(), promise.RetentionStandard)
	cfg := baseConfig()
	cfg.DeterminismRuns = 3
	c := New(
		&fakeTestRunner{results: []probes.TestResult{{ExitCode: 0}}},
		&fakeAnalyzer{results: []probes.StaticResult{{TotalCallSites: 1}}},
		store,
	)
	res, anomalies, err := c.Run(cfg, t.TempDir())
	require.NoError(t, err)
	require.Empty(t, anomalies)
	require.False(t, res.Nondeterministic)
}

func TestCollector_RedactsProbeFreeText(t *testing.T) {
	store := evidencestore.New(t.TempDir(), promise.RetentionStandard)
	c := New(
		&fakeTestRunner{results: []probes.TestResult{{ExitCode: 1, TestError: "failed for owner@example.com"}}},
		&fakeAnalyzer{results: []probes.StaticResult{{
			TotalCallSites: 2,
			Violations:     1,
			SemgrepError:   "token=abc123def456 invalid",
			Findings:       []probes.Finding{{RuleID: "r1", Path: "a.go", Line: 3, Message: "leaked email jane@example.com"}},
		}}},
		store,
	)
	res, _, err := c.Run(baseConfig(), t.TempDir())
	require.NoError(t, err)
	require.NotContains(t, res.TestError, "owner@example.com")
	require.Contains(t, res.TestError, "[REDACTED_EMAIL]")
	require.NotContains(t, res.SemgrepError, "abc123def456")
	require.Equal(t, 2, res.Redactions["email"])
	require.Equal(t, 1, res.Redactions["secret"])
}

func TestCollector_RunWithSeed(t *testing.T) {
	store := evidencestore.New(t.TempDir(), promise.RetentionStandard)
	cfg := baseConfig()
	seed := int64(42)
	cfg.Seed = &seed
	c := New(
		&fakeTestRunner{results: []probes.TestResult{{ExitCode: 0}}},
		&fakeAnalyzer{results: []probes.StaticResult{{TotalCallSites: 1}}},
		store,
	)
	_, _, err := c.Run(cfg, t.TempDir())
	require.NoError(t, err)
}
