package probes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// analyzerRequest/analyzerResponse are the ABI a WASM static-analyzer guest
// speaks: a JSON request on stdin, a JSON StaticResult on stdout. The guest
// runs with only the target directory mounted read-only and no network
// imports, so a WASM analyzer cannot perform the egress the toolchain guard
// (§4.1) would otherwise have to trap — sandboxing happens for free.
type analyzerRequest struct {
	Path  string   `json:"path"`
	Rules []string `json:"rules"`
}

// WazeroStaticAnalyzer runs a compiled WASM guest module in-process via
// wazero as the static-analysis probe adapter (§4.3). It has no subprocess
// and no OS-level sandboxing dependency, matching the deterministic,
// offline-safe posture the rest of the engine requires.
type WazeroStaticAnalyzer struct {
	ModuleBytes []byte
	version     string
}

// NewWazeroStaticAnalyzer constructs an adapter around a compiled WASM
// module's bytes (e.g. loaded from a configured plugin path).
func NewWazeroStaticAnalyzer(moduleBytes []byte, version string) *WazeroStaticAnalyzer {
	return &WazeroStaticAnalyzer{ModuleBytes: moduleBytes, version: version}
}

func (a *WazeroStaticAnalyzer) Version() string { return a.version }

func (a *WazeroStaticAnalyzer) Analyze(path string, rules []string) StaticResult {
	if len(a.ModuleBytes) == 0 {
		return StaticResult{SemgrepError: "wazero analyzer: no module configured"}
	}

	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return StaticResult{SemgrepError: fmt.Sprintf("wazero analyzer: wasi instantiate: %v", err)}
	}

	compiled, err := runtime.CompileModule(ctx, a.ModuleBytes)
	if err != nil {
		return StaticResult{SemgrepError: fmt.Sprintf("wazero analyzer: compile: %v", err)}
	}

	req := analyzerRequest{Path: path, Rules: rules}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return StaticResult{SemgrepError: fmt.Sprintf("wazero analyzer: marshal request: %v", err)}
	}

	stdout := new(bytes.Buffer)
	cfg := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(reqBytes)).
		WithStdout(stdout).
		WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(path, "/workspace")).
		WithName("analyzer")

	mod, err := runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return StaticResult{SemgrepError: fmt.Sprintf("wazero analyzer: instantiate: %v", err)}
	}
	defer mod.Close(ctx)

	var result StaticResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return StaticResult{SemgrepError: fmt.Sprintf("wazero analyzer: decode output: %v", err)}
	}
	result.Coverage = ComputeCoverage(result.TotalCallSites, result.Violations)
	return result
}
