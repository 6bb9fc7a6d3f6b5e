package probes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeCoverage(t *testing.T) {
	require.Equal(t, 0.0, ComputeCoverage(0, 0))
	require.Equal(t, 1.0, ComputeCoverage(10, 0))
	require.Equal(t, 0.8, ComputeCoverage(10, 2))
}

func TestTestResultPassing(t *testing.T) {
	require.True(t, TestResult{ExitCode: 0}.Passing())
	require.False(t, TestResult{ExitCode: 1}.Passing())
	require.False(t, TestResult{ExitCode: 0, TestError: "boom"}.Passing())
}

func TestShellTestRunner_Success(t *testing.T) {
	r := NewShellTestRunner([]string{"true"}, "1.0.0")
	res := r.Run(t.TempDir(), nil)
	require.True(t, res.Passing())
}

func TestShellTestRunner_Failure(t *testing.T) {
	r := NewShellTestRunner([]string{"false"}, "1.0.0")
	res := r.Run(t.TempDir(), nil)
	require.False(t, res.Passing())
	require.Equal(t, 1, res.ExitCode)
}

func TestShellTestRunner_SpawnError(t *testing.T) {
	r := NewShellTestRunner([]string{"/no/such/binary"}, "1.0.0")
	res := r.Run(t.TempDir(), nil)
	require.NotEmpty(t, res.TestError)
}

func TestNativeStaticAnalyzer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(`package main

import "os/exec"

func run() {
	exec.Command("ls")
}
`), 0o644))

	a := NewNativeStaticAnalyzer("1.0.0")
	res := a.Analyze(dir, []string{"exec.Command"})
	require.Equal(t, 1, res.TotalCallSites)
	require.Equal(t, 1, res.Violations)
	require.InDelta(t, 0.0, res.Coverage, 1e-9)
}

func TestNativeStaticAnalyzer_NoRules(t *testing.T) {
	a := NewNativeStaticAnalyzer("1.0.0")
	res := a.Analyze(t.TempDir(), nil)
	require.Equal(t, 0, res.TotalCallSites)
	require.Equal(t, 0.0, res.Coverage)
}

func TestWazeroStaticAnalyzer_NoModuleConfigured(t *testing.T) {
	a := NewWazeroStaticAnalyzer(nil, "1.0.0")
	res := a.Analyze(t.TempDir(), nil)
	require.NotEmpty(t, res.SemgrepError)
}
