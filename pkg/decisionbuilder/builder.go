// Package decisionbuilder implements Component H: turning a session
// result, the effective evaluation config, and an enforcement context
// into the final PromiseResult / DecisionRecord (§4.8).
package decisionbuilder

import (
	"fmt"

	"github.com/wardenlabs/warden/pkg/abduction"
	"github.com/wardenlabs/warden/pkg/collector"
	"github.com/wardenlabs/warden/pkg/promise"
)

// EnforcementContext carries the run's enforcement posture (§4.8, §4.9).
type EnforcementContext struct {
	Mode            string
	FailOnViolation bool
}

// Input bundles everything BuildPromiseResult needs from upstream
// components.
type Input struct {
	Promise       promise.Promise
	Config        *promise.EvaluationConfig
	RootID        string
	Session       abduction.Result
	Collected     collector.Result
	Anomalies     []string // e.g. "toolchain_nondeterminism"
	ToolingError  string   // set when a probe/config error short-circuits the run
	Enforcement   EnforcementContext
	OverrideApplied bool
}

// BuildPromiseResult applies the gates and derives the verdict, reason
// codes, and evidence refs for one promise (§4.8). Mechanisms and
// residuals come from BuildMechanisms and BuildResiduals.
func BuildPromiseResult(in Input) promise.PromiseResult {
	sev := in.Config.SeverityOverride
	if sev == "" {
		sev = in.Promise.Severity
	}
	threshold := in.Config.EffectiveThreshold(sev)

	result := promise.PromiseResult{
		PromiseID:  in.Promise.ID,
		Threshold:  threshold,
		Applicable: true,
		Severity:   sev,
	}

	if in.ToolingError != "" {
		result.Verdict = promise.VerdictError
		result.ReasonCodes = append(result.ReasonCodes, promise.ReasonToolingError)
		return result
	}

	credence, hasCredence := in.Session.Ledger[in.RootID]
	diagnostics, hasDiagnostics := in.Session.Roots[in.RootID]

	var mechanisms []promise.Mechanism
	seen := make(map[promise.Mechanism]bool)
	addMechanism := func(m promise.Mechanism) {
		if !seen[m] {
			seen[m] = true
			mechanisms = append(mechanisms, m)
		}
	}

	violationDetected := in.Collected.Violations > 0

	if !hasCredence || !hasDiagnostics {
		result.Verdict = promise.VerdictNA
		result.ReasonCodes = append(result.ReasonCodes, promise.ReasonNotApplicable)
		result.Applicable = false
		return result
	}

	credenceCopy := credence
	supportCopy := diagnostics.SupportK
	result.Credence = &credenceCopy
	result.Support = &supportCopy
	result.EvidenceRefs = in.Collected.EvidenceIDs

	credencePass := credence >= threshold
	supportPass := diagnostics.SupportK >= in.Config.Abduction.Tau

	if credencePass {
		addMechanism(promise.MechanismCredenceGatePass)
	} else {
		result.ReasonCodes = append(result.ReasonCodes, promise.ReasonCredenceBelowThreshold)
	}
	if supportPass {
		addMechanism(promise.MechanismSupportGatePass)
	} else {
		result.ReasonCodes = append(result.ReasonCodes, promise.ReasonInsufficientSupport)
	}
	if violationDetected {
		result.ReasonCodes = append(result.ReasonCodes, promise.ReasonViolationDetected)
		result.ViolationEvidenceRefs = in.Collected.EvidenceIDs
	}
	for _, rc := range result.ReasonCodes {
		addMechanism(promise.Mechanism(rc))
	}

	blocking := violationDetected && in.Enforcement.FailOnViolation
	gateFail := !credencePass || !supportPass

	switch {
	case gateFail || (blocking && !in.OverrideApplied):
		result.Verdict = promise.VerdictRed
	default:
		result.Verdict = promise.VerdictGreen
	}

	if in.OverrideApplied {
		result.OverrideApplied = true
		if result.Verdict == promise.VerdictRed && blocking {
			result.Verdict = promise.VerdictGreen
		}
	}

	return result
}

// BuildMechanisms re-derives the decision-level mechanisms list for in —
// the same gate-pass markers and reason codes BuildPromiseResult computes
// internally to decide the verdict, surfaced separately for callers
// assembling the top-level DecisionRecord (mechanisms live there, not on
// PromiseResult).
func BuildMechanisms(in Input) []promise.Mechanism {
	result := BuildPromiseResult(in)

	var mechanisms []promise.Mechanism
	seen := make(map[promise.Mechanism]bool)
	add := func(m promise.Mechanism) {
		if !seen[m] {
			seen[m] = true
			mechanisms = append(mechanisms, m)
		}
	}

	if in.ToolingError != "" {
		add(promise.Mechanism(promise.ReasonToolingError))
		return mechanisms
	}
	if !result.Applicable {
		add(promise.Mechanism(promise.ReasonNotApplicable))
		return mechanisms
	}

	diagnostics := in.Session.Roots[in.RootID]
	credencePass := result.Credence != nil && *result.Credence >= result.Threshold
	supportPass := result.Support != nil && diagnostics.SupportK >= in.Config.Abduction.Tau
	if credencePass {
		add(promise.MechanismCredenceGatePass)
	}
	if supportPass {
		add(promise.MechanismSupportGatePass)
	}
	for _, rc := range result.ReasonCodes {
		add(promise.Mechanism(rc))
	}
	return mechanisms
}

// BuildResiduals converts the session's H_NOA/H_UND into the optional
// Residuals shape (§4.8).
func BuildResiduals(session abduction.Result) promise.Residuals {
	noa := session.HNOA
	und := session.HUND
	return promise.Residuals{NOAMass: &noa, UNDMass: &und}
}

// BuildAnomalies maps raw anomaly kinds (e.g. "toolchain_nondeterminism")
// into the decision's typed Anomaly list with a remediation hint.
func BuildAnomalies(kinds []string) []promise.Anomaly {
	out := make([]promise.Anomaly, 0, len(kinds))
	for _, k := range kinds {
		a := promise.Anomaly{Kind: k}
		switch k {
		case "toolchain_nondeterminism":
			a.Detail = "probe output differed across determinism repeats"
			a.Remediation = "pin toolchain versions or increase determinism_runs"
		case "egress_enforcement":
			a.Detail = "an attempted network egress was blocked during the offline scope"
			a.Remediation = "remove network calls from probes or disable offline mode for this run"
		}
		out = append(out, a)
	}
	return out
}

// BuildNextActions derives next_actions from a promise result's reason
// codes and the session's anomalies (§4.8).
func BuildNextActions(result promise.PromiseResult, anomalies []promise.Anomaly) []promise.NextAction {
	var actions []promise.NextAction
	for _, rc := range result.ReasonCodes {
		switch rc {
		case promise.ReasonCredenceBelowThreshold:
			actions = append(actions, promise.NextAction{
				Title:          "Increase corroborating evidence",
				Rationale:      fmt.Sprintf("credence below threshold %.3f", result.Threshold),
				ExpectedImpact: "raises credence toward the configured threshold",
				EvidenceRefs:   result.EvidenceRefs,
			})
		case promise.ReasonInsufficientSupport:
			actions = append(actions, promise.NextAction{
				Title:          "Cover remaining necessary slots",
				Rationale:      "support (k_root) below the configured τ",
				ExpectedImpact: "raises support toward τ",
				EvidenceRefs:   result.EvidenceRefs,
			})
		case promise.ReasonViolationDetected:
			actions = append(actions, promise.NextAction{
				Title:          "Resolve flagged violations",
				Rationale:      "static analysis reported one or more violations",
				ExpectedImpact: "clears the policy_violation gate",
				EvidenceRefs:   result.ViolationEvidenceRefs,
			})
		}
	}
	for _, a := range anomalies {
		if a.Remediation == "" {
			continue
		}
		actions = append(actions, promise.NextAction{
			Title:          "Address anomaly: " + a.Kind,
			Rationale:      a.Detail,
			ExpectedImpact: a.Remediation,
			MissingEvidence: nil,
		})
	}
	return actions
}

// BuildNotification maps overall_verdict, severity, credence, and k_root
// into the notification summary per §4.8's banding rules.
func BuildNotification(overall promise.Verdict, sev promise.Severity, credence, support *float64) promise.Notification {
	n := promise.Notification{}
	if overall == promise.VerdictRed || overall == promise.VerdictError {
		n.Action = promise.ActionChangeBlocked
	} else {
		n.Action = promise.ActionChangeAllowed
	}

	switch sev {
	case promise.SeverityLow:
		n.Impact = promise.ImpactLow
	case promise.SeverityMedium:
		n.Impact = promise.ImpactMedium
	case promise.SeverityHigh:
		n.Impact = promise.ImpactHigh
	case promise.SeverityCritical:
		n.Impact = promise.ImpactCritical
	default:
		n.Impact = promise.ImpactMedium
	}

	switch {
	case credence == nil:
		n.Likelihood = promise.LikelihoodPossible
	case *credence >= 0.9:
		n.Likelihood = promise.LikelihoodNearCertain
	case *credence >= 0.66:
		n.Likelihood = promise.LikelihoodLikely
	case *credence >= 0.33:
		n.Likelihood = promise.LikelihoodPossible
	default:
		n.Likelihood = promise.LikelihoodUnlikely
	}

	switch {
	case support == nil:
		n.Confidence = promise.ConfidenceMedium
	case *support >= 0.8:
		n.Confidence = promise.ConfidenceHigh
	case *support >= 0.5:
		n.Confidence = promise.ConfidenceMedium
	default:
		n.Confidence = promise.ConfidenceLow
	}

	n.Summary = fmt.Sprintf("%s: change %s (impact %s, likelihood %s, confidence %s)",
		overall, n.Action, n.Impact, n.Likelihood, n.Confidence)
	return n
}
