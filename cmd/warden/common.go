package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wardenlabs/warden/pkg/engine"
	"github.com/wardenlabs/warden/pkg/policyconfig"
	"github.com/wardenlabs/warden/pkg/probes"
	"github.com/wardenlabs/warden/pkg/promise"
	"github.com/wardenlabs/warden/pkg/runindex"
)

// wasmAnalyzerVersion tags every WASM-backed analysis run regardless of
// which guest module was loaded, since the guest module itself carries no
// version the host can introspect without running it.
const wasmAnalyzerVersion = "wazero-guest-1.0"

const defaultRunsDir = ".warden/runs"
const defaultRunIndexPath = ".warden/runs.db"

// loadPromiseAndConfig resolves the promise/config pair a subcommand needs:
// a --config file pointing at an EvaluationConfig YAML (which names its own
// promise_id), or, absent that, a bare default config wrapping a synthetic
// single promise so `pre-commit` has a sane zero-config path.
func loadPromiseAndConfig(configPath string, threshold float64) (promise.Promise, *promise.EvaluationConfig, error) {
	if configPath == "" {
		p := promise.Promise{ID: "promise.default", Statement: "the change does not regress tests or static checks", Severity: promise.SeverityMedium, Threshold: threshold}
		cfg := policyconfig.DefaultEvaluationConfig(p.ID, threshold)
		cfg.RequiredSlots = []promise.RequiredSlot{
			{SlotKey: engine.SlotTestsPass, Role: "NEC"},
			{SlotKey: engine.SlotNoViolations, Role: "NEC"},
			{SlotKey: engine.SlotStaticCoverage, Role: "SUFF"},
		}
		return p, cfg, nil
	}

	cfg, err := policyconfig.LoadEvaluationConfig(configPath)
	if err != nil {
		return promise.Promise{}, nil, fmt.Errorf("load config: %w", err)
	}
	promisePath := filepath.Join(filepath.Dir(configPath), cfg.PromiseID+".promise.yaml")
	p, err := policyconfig.LoadPromise(promisePath)
	if err != nil {
		// Fall back to a promise synthesized from the config itself — a
		// config file is sometimes the only artifact an orchestrator ships.
		p = &promise.Promise{ID: cfg.PromiseID, Threshold: cfg.Threshold, Severity: promise.SeverityMedium}
	}
	if threshold > 0 {
		cfg.Threshold = threshold
	}
	return *p, cfg, nil
}

// buildEngine wires the default probe adapters (shell test runner, plus
// either the native or the wazero-sandboxed static analyzer depending on
// cfg.WASMAnalyzerPath) and, when runIndexPath is non-empty, a local run
// registry. Offline enforcement is not set here: engine.Run reads
// cfg.Offline and runs inside an EgressGuard scope when it is true.
func buildEngine(cfg *promise.EvaluationConfig, runIndexPath string) (*engine.Engine, func(), error) {
	var analyzer probes.StaticAnalyzer
	if cfg.WASMAnalyzerPath != "" {
		moduleBytes, err := os.ReadFile(cfg.WASMAnalyzerPath)
		if err != nil {
			return nil, func() {}, fmt.Errorf("read wasm analyzer module: %w", err)
		}
		analyzer = probes.NewWazeroStaticAnalyzer(moduleBytes, wasmAnalyzerVersion)
	} else {
		analyzer = probes.NewNativeStaticAnalyzer("native-1.0")
	}

	e := &engine.Engine{
		Tests:    probes.NewShellTestRunner([]string{"go", "test", "./..."}, "go-test"),
		Analyzer: analyzer,
	}

	cleanup := func() {}
	if runIndexPath != "" {
		if err := os.MkdirAll(filepath.Dir(runIndexPath), 0o755); err != nil {
			return nil, cleanup, fmt.Errorf("create run index directory: %w", err)
		}
		idx, err := runindex.Open(runIndexPath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open run index: %w", err)
		}
		e.RunIndex = idx
		cleanup = func() { _ = idx.Close() }
	}
	return e, cleanup, nil
}

func resolveRunsDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return defaultRunsDir
}
