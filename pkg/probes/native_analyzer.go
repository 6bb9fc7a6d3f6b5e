package probes

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// NativeStaticAnalyzer is the in-process default static-analysis adapter:
// it walks the tree under path and counts occurrences of each configured
// rule (a bare function/call pattern, e.g. "exec.Command") as a call site,
// flagging every occurrence as a violation. It exists so the engine has a
// working analyzer without a configured WASM plugin; see WazeroStaticAnalyzer
// for the sandboxed alternative.
type NativeStaticAnalyzer struct {
	version string
}

func NewNativeStaticAnalyzer(version string) *NativeStaticAnalyzer {
	return &NativeStaticAnalyzer{version: version}
}

func (a *NativeStaticAnalyzer) Version() string { return a.version }

func (a *NativeStaticAnalyzer) Analyze(path string, rules []string) StaticResult {
	if len(rules) == 0 {
		return StaticResult{TotalCallSites: 0, Violations: 0, Coverage: 0}
	}

	patterns := make([]*regexp.Regexp, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(regexp.QuoteMeta(r))
		if err != nil {
			return StaticResult{SemgrepError: "native analyzer: bad rule pattern: " + err.Error()}
		}
		patterns = append(patterns, re)
	}

	var totalCallSites, violations int
	var findings []Finding

	walkErr := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".go") {
			return nil
		}
		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return readErr
		}
		lines := strings.Split(string(data), "\n")
		for i, line := range lines {
			for ri, re := range patterns {
				if re.MatchString(line) {
					totalCallSites++
					violations++
					findings = append(findings, Finding{
						RuleID:  rules[ri],
						Path:    p,
						Line:    i + 1,
						Message: "forbidden pattern: " + rules[ri],
					})
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return StaticResult{SemgrepError: "native analyzer: " + walkErr.Error()}
	}

	return StaticResult{
		TotalCallSites: totalCallSites,
		Violations:     violations,
		Coverage:       ComputeCoverage(totalCallSites, violations),
		Findings:       findings,
	}
}
