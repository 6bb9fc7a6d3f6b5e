// Package promise holds the data model shared by every component: the
// Promise a policy declares, the EvaluationConfig that makes it concrete for
// one run, and the Decision record the engine ultimately emits (spec §3).
package promise

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Severity is the closed set of promise severities.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Verdict is the closed set of per-promise verdicts.
type Verdict string

const (
	VerdictGreen Verdict = "green"
	VerdictRed   Verdict = "red"
	VerdictNA    Verdict = "n/a"
	VerdictError Verdict = "error"
)

// DeterminismMode controls how a repeat mismatch is handled (§3, §7).
type DeterminismMode string

const (
	DeterminismWarn   DeterminismMode = "warn"
	DeterminismStrict DeterminismMode = "strict"
)

// Retention controls whether evidence bytes are kept after hashing (§4.2).
type Retention string

const (
	RetentionStandard Retention = "standard"
	RetentionHashOnly Retention = "hash-only"
)

// WorldMode selects the abductive session's closed/open-world posture.
type WorldMode string

const (
	WorldClosed WorldMode = "closed"
	WorldOpen   WorldMode = "open"
)

// Promise is an addressable policy obligation, immutable within a run.
type Promise struct {
	ID              string   `json:"id" yaml:"id"`
	Statement       string   `json:"statement" yaml:"statement"`
	Version         string   `json:"version" yaml:"version"`
	Domain          string   `json:"domain" yaml:"domain"`
	Severity        Severity `json:"severity" yaml:"severity"`
	Threshold       float64  `json:"threshold" yaml:"threshold"`
	Applicability   string   `json:"applicability,omitempty" yaml:"applicability,omitempty"`
	ControlMappings []string `json:"control_mappings,omitempty" yaml:"control_mappings,omitempty"`
}

// Validate checks the closed-set and semver constraints on Promise.
func (p *Promise) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("promise: empty id")
	}
	if !p.Severity.Valid() {
		return fmt.Errorf("promise %s: invalid severity %q", p.ID, p.Severity)
	}
	if p.Version != "" {
		if _, err := semver.NewVersion(p.Version); err != nil {
			return fmt.Errorf("promise %s: invalid version %q: %w", p.ID, p.Version, err)
		}
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return fmt.Errorf("promise %s: threshold %v out of [0,1]", p.ID, p.Threshold)
	}
	return nil
}

// AbductionParams carries the abductive session's numeric knobs (§3).
type AbductionParams struct {
	Tau          float64   `json:"tau" yaml:"tau"`                     // support threshold τ
	Epsilon      float64   `json:"epsilon" yaml:"epsilon"`             // ε
	GammaNOA     float64   `json:"gamma_noa" yaml:"gamma_noa"`         // γ_NOA
	GammaUND     float64   `json:"gamma_und" yaml:"gamma_und"`         // γ_UND
	Gamma        float64   `json:"gamma" yaml:"gamma"`                 // γ
	Alpha        float64   `json:"alpha" yaml:"alpha"`                 // α
	Beta         float64   `json:"beta" yaml:"beta"`                   // β
	WeightCap    float64   `json:"weight_cap" yaml:"weight_cap"`       // W
	LambdaVOI    float64   `json:"lambda_voi" yaml:"lambda_voi"`       // λ_voi
	WorldMode    WorldMode `json:"world_mode" yaml:"world_mode"`
	CreditBudget int       `json:"credit_budget" yaml:"credit_budget"`
	// TerminationCEL is an optional CEL expression over {p, k, credits_spent}
	// evaluated after each slot to allow early, policy-driven termination.
	TerminationCEL string `json:"termination_cel,omitempty" yaml:"termination_cel,omitempty"`
}

// RequiredSlot is one entry of the required-slot roster (§4.5).
type RequiredSlot struct {
	SlotKey string `json:"slot_key" yaml:"slot_key"`
	Role    string `json:"role" yaml:"role"` // "NEC" | "SUFF"
}

// EvaluationConfig is the effective policy for one run (§3).
type EvaluationConfig struct {
	PromiseID             string             `json:"promise_id" yaml:"promise_id"`
	Threshold             float64            `json:"threshold" yaml:"threshold"`
	SeverityOverride       Severity           `json:"severity_override,omitempty" yaml:"severity_override,omitempty"`
	SeverityThresholds     map[Severity]float64 `json:"severity_thresholds,omitempty" yaml:"severity_thresholds,omitempty"`
	ProbeTargets           []string           `json:"probe_targets" yaml:"probe_targets"`
	StaticAnalyzerRules    []string           `json:"static_analyzer_rules,omitempty" yaml:"static_analyzer_rules,omitempty"`
	// WASMAnalyzerPath, when set, selects the wazero-sandboxed static
	// analyzer adapter over the in-process native one: the path to a
	// compiled WASM guest module implementing the analyzerRequest ABI.
	WASMAnalyzerPath       string             `json:"wasm_analyzer_path,omitempty" yaml:"wasm_analyzer_path,omitempty"`
	Abduction              AbductionParams    `json:"abduction" yaml:"abduction"`
	RequiredSlots          []RequiredSlot     `json:"required_slots" yaml:"required_slots"`
	DeterminismMode        DeterminismMode    `json:"determinism_mode" yaml:"determinism_mode"`
	DeterminismRuns        int                `json:"determinism_runs" yaml:"determinism_runs"`
	Seed                   *int64             `json:"seed,omitempty" yaml:"seed,omitempty"`
	Retention              Retention          `json:"retention" yaml:"retention"`
	Offline                bool               `json:"offline" yaml:"offline"`
	FailOnViolation        bool               `json:"fail_on_violation" yaml:"fail_on_violation"`
	// StagedDisclosure, when true, runs the abductive session in two
	// phases: raw test-pass evidence only, then (once that phase is
	// locked) the static analyzer's derived coverage/violation evidence.
	// A config author turns this on when the static-analyzer evidence for
	// a promise shouldn't be allowed to influence reasoning about the
	// raw observation until the observation phase is explicitly closed.
	StagedDisclosure       bool               `json:"staged_disclosure,omitempty" yaml:"staged_disclosure,omitempty"`
}

// EffectiveThreshold resolves the threshold to use for sev, honoring the
// severity→threshold table and override before falling back to Threshold.
func (c *EvaluationConfig) EffectiveThreshold(sev Severity) float64 {
	if c.SeverityThresholds != nil {
		if t, ok := c.SeverityThresholds[sev]; ok {
			return t
		}
	}
	return c.Threshold
}

// Validate enforces the invariants EvaluationConfig must hold before a run
// starts (determinism runs ≥ 1, known enums).
func (c *EvaluationConfig) Validate() error {
	if c.PromiseID == "" {
		return fmt.Errorf("evaluation config: empty promise_id")
	}
	if c.DeterminismRuns < 1 {
		return fmt.Errorf("evaluation config: determinism_runs must be >= 1, got %d", c.DeterminismRuns)
	}
	switch c.DeterminismMode {
	case DeterminismWarn, DeterminismStrict, "":
	default:
		return fmt.Errorf("evaluation config: invalid determinism_mode %q", c.DeterminismMode)
	}
	switch c.Retention {
	case RetentionStandard, RetentionHashOnly, "":
	default:
		return fmt.Errorf("evaluation config: invalid retention %q", c.Retention)
	}
	seen := make(map[string]bool, len(c.RequiredSlots))
	for _, s := range c.RequiredSlots {
		if s.Role != "NEC" && s.Role != "SUFF" {
			return fmt.Errorf("evaluation config: slot %q has invalid role %q", s.SlotKey, s.Role)
		}
		key := s.SlotKey + "|" + s.Role
		if seen[key] {
			return fmt.Errorf("evaluation config: duplicate required slot %q/%s", s.SlotKey, s.Role)
		}
		seen[key] = true
	}
	return nil
}
