package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/warden/pkg/probes"
	"github.com/wardenlabs/warden/pkg/promise"
)

func TestBuildEngine_DefaultsToNativeAnalyzer(t *testing.T) {
	cfg := &promise.EvaluationConfig{PromiseID: "p", DeterminismRuns: 1}
	e, cleanup, err := buildEngine(cfg, "")
	require.NoError(t, err)
	defer cleanup()
	_, ok := e.Analyzer.(*probes.NativeStaticAnalyzer)
	require.True(t, ok)
}

func TestBuildEngine_SelectsWazeroAnalyzerWhenConfigured(t *testing.T) {
	modulePath := filepath.Join(t.TempDir(), "analyzer.wasm")
	require.NoError(t, os.WriteFile(modulePath, []byte("not a real module, only wiring is under test"), 0o644))

	cfg := &promise.EvaluationConfig{PromiseID: "p", DeterminismRuns: 1, WASMAnalyzerPath: modulePath}
	e, cleanup, err := buildEngine(cfg, "")
	require.NoError(t, err)
	defer cleanup()
	_, ok := e.Analyzer.(*probes.WazeroStaticAnalyzer)
	require.True(t, ok)
}

func TestBuildEngine_MissingWasmModuleErrors(t *testing.T) {
	cfg := &promise.EvaluationConfig{PromiseID: "p", DeterminismRuns: 1, WASMAnalyzerPath: filepath.Join(t.TempDir(), "missing.wasm")}
	_, _, err := buildEngine(cfg, "")
	require.Error(t, err)
}
