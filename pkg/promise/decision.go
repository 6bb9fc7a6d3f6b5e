package promise

// ReasonCode is the closed set from §4.8.
type ReasonCode string

const (
	ReasonNotApplicable           ReasonCode = "not_applicable"
	ReasonToolingError            ReasonCode = "tooling_error"
	ReasonCredenceBelowThreshold  ReasonCode = "credence_below_threshold"
	ReasonInsufficientSupport     ReasonCode = "insufficient_support"
	ReasonViolationDetected       ReasonCode = "violation_detected"
)

// Mechanism is the closed set of gate-pass markers plus reason codes,
// de-duplicated and insertion-ordered (§4.8).
type Mechanism string

const (
	MechanismCredenceGatePass Mechanism = "credence_gate_pass"
	MechanismSupportGatePass  Mechanism = "support_gate_pass"
)

// Residuals carries the optional NOA/UND residual masses.
type Residuals struct {
	NOAMass *float64 `json:"NOA_mass,omitempty"`
	UNDMass *float64 `json:"UND_mass,omitempty"`
}

// Anomaly is a session-reported irregularity surfaced to the decision.
type Anomaly struct {
	Kind       string `json:"kind"`
	Detail     string `json:"detail,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

// NextAction is one concrete remediation item derived from reason codes and
// anomalies (§4.8).
type NextAction struct {
	Title            string   `json:"title"`
	Rationale        string   `json:"rationale"`
	ExpectedImpact   string   `json:"expected_impact"`
	EvidenceRefs     []string `json:"evidence_refs,omitempty"`
	MissingEvidence  []string `json:"missing_evidence,omitempty"`
}

// NotificationAction is the closed set for Notification.Action.
type NotificationAction string

const (
	ActionChangeBlocked NotificationAction = "change_blocked"
	ActionChangeAllowed NotificationAction = "change_allowed"
)

// Impact, Likelihood, Confidence are the closed bands used by Notification.
type Impact string
type Likelihood string
type Confidence string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactCritical Impact = "critical"

	LikelihoodUnlikely    Likelihood = "unlikely"
	LikelihoodPossible    Likelihood = "possible"
	LikelihoodLikely      Likelihood = "likely"
	LikelihoodNearCertain Likelihood = "near_certain"

	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Notification is the externally-facing summary of a decision (§4.8).
type Notification struct {
	Action     NotificationAction `json:"action"`
	Impact     Impact             `json:"impact"`
	Likelihood Likelihood         `json:"likelihood"`
	Confidence Confidence         `json:"confidence"`
	Summary    string             `json:"summary"`
}

// PromiseResult is one promise's outcome within a decision record (§3).
type PromiseResult struct {
	PromiseID              string       `json:"promise_id"`
	Threshold              float64      `json:"threshold"`
	Credence               *float64     `json:"credence"`
	Verdict                Verdict      `json:"verdict"`
	Support                *float64     `json:"support"`
	Applicable             bool         `json:"applicable"`
	Severity               Severity     `json:"severity"`
	ReasonCodes            []ReasonCode `json:"reason_codes,omitempty"`
	EvidenceRefs           []string     `json:"evidence_refs,omitempty"`
	ViolationEvidenceRefs  []string     `json:"violation_evidence_refs,omitempty"`
	OverrideApplied        bool         `json:"override_applied,omitempty"`
}

// DecisionRecord is the top-level artifact emitted at the end of a run (§3).
type DecisionRecord struct {
	SchemaVersion  string          `json:"schema_version"`
	RunID          string          `json:"run_id"`
	TimestampUTC   string          `json:"timestamp_utc"`
	Policy         string          `json:"policy"`
	PromiseResults []PromiseResult `json:"promise_results"`
	OverallVerdict Verdict         `json:"overall_verdict"`
	AuditSHA256    string          `json:"audit_sha256"`
	ManifestSHA256 string          `json:"manifest_sha256"`
	Mechanisms     []Mechanism     `json:"mechanisms,omitempty"`
	Residuals      Residuals       `json:"residuals"`
	Anomalies      []Anomaly       `json:"anomalies,omitempty"`
	NextActions    []NextAction    `json:"next_actions,omitempty"`
	Notification   *Notification   `json:"notification,omitempty"`
	EgressError    string          `json:"egress_error,omitempty"`

	// RedactionSummary counts PII/secret redactions applied to probe
	// output before it reached this record, keyed by redact.Kind (e.g.
	// "email", "secret"). Omitted entirely when nothing was redacted.
	RedactionSummary map[string]int `json:"redaction_summary,omitempty"`
}

// OverallVerdict derives the precedence rule of §3: error > red > n/a > green.
func OverallVerdict(results []PromiseResult) Verdict {
	sawNA := false
	sawRed := false
	sawAll := len(results) > 0
	for _, r := range results {
		switch r.Verdict {
		case VerdictError:
			return VerdictError
		case VerdictRed:
			sawRed = true
		case VerdictNA:
			sawNA = true
		}
	}
	if sawRed {
		return VerdictRed
	}
	if sawAll && sawNA {
		allNA := true
		for _, r := range results {
			if r.Verdict != VerdictNA {
				allNA = false
				break
			}
		}
		if allNA {
			return VerdictNA
		}
	}
	return VerdictGreen
}
