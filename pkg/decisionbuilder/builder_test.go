package decisionbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/warden/pkg/abduction"
	"github.com/wardenlabs/warden/pkg/collector"
	"github.com/wardenlabs/warden/pkg/promise"
)

func baseInput() Input {
	return Input{
		Promise: promise.Promise{ID: "promise.x", Severity: promise.SeverityMedium},
		Config: &promise.EvaluationConfig{
			PromiseID: "promise.x",
			Threshold: 0.5,
			Abduction: promise.AbductionParams{Tau: 0.5},
		},
		RootID: "root.x",
		Session: abduction.Result{
			Ledger: abduction.Ledger{"root.x": 0.9},
			Roots:  map[string]abduction.RootDiagnostics{"root.x": {SupportK: 0.8}},
		},
		Collected:   collector.Result{EvidenceIDs: []string{"evidence:aaa"}},
		Enforcement: EnforcementContext{FailOnViolation: true},
	}
}

func TestBuildPromiseResult_Green(t *testing.T) {
	r := BuildPromiseResult(baseInput())
	require.Equal(t, promise.VerdictGreen, r.Verdict)
	require.Empty(t, r.ReasonCodes)
	require.True(t, r.Applicable)
}

func TestBuildPromiseResult_CredenceBelowThreshold(t *testing.T) {
	in := baseInput()
	in.Session.Ledger["root.x"] = 0.1
	r := BuildPromiseResult(in)
	require.Equal(t, promise.VerdictRed, r.Verdict)
	require.Contains(t, r.ReasonCodes, promise.ReasonCredenceBelowThreshold)
}

func TestBuildPromiseResult_InsufficientSupport(t *testing.T) {
	in := baseInput()
	in.Session.Roots["root.x"] = abduction.RootDiagnostics{SupportK: 0.1}
	r := BuildPromiseResult(in)
	require.Equal(t, promise.VerdictRed, r.Verdict)
	require.Contains(t, r.ReasonCodes, promise.ReasonInsufficientSupport)
}

func TestBuildPromiseResult_ViolationBlocks(t *testing.T) {
	in := baseInput()
	in.Collected.Violations = 1
	r := BuildPromiseResult(in)
	require.Equal(t, promise.VerdictRed, r.Verdict)
	require.Contains(t, r.ReasonCodes, promise.ReasonViolationDetected)
	require.NotEmpty(t, r.ViolationEvidenceRefs)
}

func TestBuildPromiseResult_OverrideUnblocksViolation(t *testing.T) {
	in := baseInput()
	in.Collected.Violations = 1
	in.OverrideApplied = true
	r := BuildPromiseResult(in)
	require.Equal(t, promise.VerdictGreen, r.Verdict)
	require.True(t, r.OverrideApplied)
}

func TestBuildPromiseResult_ToolingError(t *testing.T) {
	in := baseInput()
	in.ToolingError = "pytest binary not found"
	r := BuildPromiseResult(in)
	require.Equal(t, promise.VerdictError, r.Verdict)
	require.Contains(t, r.ReasonCodes, promise.ReasonToolingError)
}

func TestBuildPromiseResult_NotApplicableWhenRootMissing(t *testing.T) {
	in := baseInput()
	in.RootID = "root.missing"
	r := BuildPromiseResult(in)
	require.Equal(t, promise.VerdictNA, r.Verdict)
	require.False(t, r.Applicable)
}

func TestBuildNotification_Bands(t *testing.T) {
	c := 0.95
	s := 0.85
	n := BuildNotification(promise.VerdictGreen, promise.SeverityCritical, &c, &s)
	require.Equal(t, promise.ActionChangeAllowed, n.Action)
	require.Equal(t, promise.ImpactCritical, n.Impact)
	require.Equal(t, promise.LikelihoodNearCertain, n.Likelihood)
	require.Equal(t, promise.ConfidenceHigh, n.Confidence)
}

func TestBuildNotification_BlockedOnRed(t *testing.T) {
	n := BuildNotification(promise.VerdictRed, promise.SeverityLow, nil, nil)
	require.Equal(t, promise.ActionChangeBlocked, n.Action)
	require.Equal(t, promise.LikelihoodPossible, n.Likelihood)
	require.Equal(t, promise.ConfidenceMedium, n.Confidence)
}

func TestBuildAnomalies_KnownKind(t *testing.T) {
	anomalies := BuildAnomalies([]string{"toolchain_nondeterminism"})
	require.Len(t, anomalies, 1)
	require.NotEmpty(t, anomalies[0].Remediation)
}

func TestBuildMechanisms_GreenHasBothGatePasses(t *testing.T) {
	m := BuildMechanisms(baseInput())
	require.Contains(t, m, promise.MechanismCredenceGatePass)
	require.Contains(t, m, promise.MechanismSupportGatePass)
}

func TestBuildMechanisms_ToolingErrorShortCircuits(t *testing.T) {
	in := baseInput()
	in.ToolingError = "pytest binary not found"
	m := BuildMechanisms(in)
	require.Equal(t, []promise.Mechanism{promise.Mechanism(promise.ReasonToolingError)}, m)
}

func TestBuildMechanisms_NotApplicable(t *testing.T) {
	in := baseInput()
	in.RootID = "root.missing"
	m := BuildMechanisms(in)
	require.Equal(t, []promise.Mechanism{promise.Mechanism(promise.ReasonNotApplicable)}, m)
}

func TestBuildResiduals(t *testing.T) {
	session := abduction.Result{HNOA: 0.1, HUND: 0.05}
	residuals := BuildResiduals(session)
	require.NotNil(t, residuals.NOAMass)
	require.InDelta(t, 0.1, *residuals.NOAMass, 1e-9)
}
