// Package engine implements the state machine of §4.12: the single entry
// point that drives one evaluation run from a promise and an effective
// config through evidence collection, abductive reasoning, audit
// chaining, report signing, and decision assembly, honoring the egress
// and determinism escape paths along the way.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/wardenlabs/warden/pkg/abduction"
	"github.com/wardenlabs/warden/pkg/auditchain"
	"github.com/wardenlabs/warden/pkg/canon"
	"github.com/wardenlabs/warden/pkg/chainofcustody"
	"github.com/wardenlabs/warden/pkg/clock"
	"github.com/wardenlabs/warden/pkg/collector"
	"github.com/wardenlabs/warden/pkg/decisionbuilder"
	"github.com/wardenlabs/warden/pkg/evidencestore"
	"github.com/wardenlabs/warden/pkg/override"
	"github.com/wardenlabs/warden/pkg/probes"
	"github.com/wardenlabs/warden/pkg/promise"
	"github.com/wardenlabs/warden/pkg/redact"
	"github.com/wardenlabs/warden/pkg/rundir"
	"github.com/wardenlabs/warden/pkg/runindex"
	"github.com/wardenlabs/warden/pkg/signer"
	"github.com/wardenlabs/warden/pkg/staged"
	"github.com/wardenlabs/warden/pkg/toolchain"
)

// SchemaVersion is the decision record's schema_version field.
const SchemaVersion = "1.0"

// DefaultEngineVersion is used when Engine.Version is unset.
const DefaultEngineVersion = "warden/0.1.0"

// Engine wires the probe adapters, signing key, clock, egress guard, and
// run registry that every evaluation run shares; Run executes one run
// over a promise and its effective config.
type Engine struct {
	Tests    probes.TestRunner
	Analyzer probes.StaticAnalyzer

	// SigningKey overrides the environment-sourced report signing key
	// (mainly for tests). When nil, signer.LoadKey() is used.
	SigningKey []byte

	// Egress, when set, is reused across runs instead of constructing a
	// fresh *toolchain.EgressGuard per call — tests that want to observe
	// Attempted() after the fact inject one here.
	Egress *toolchain.EgressGuard

	// RunIndex, when set, receives one record per run once decision.json
	// is written; an insert error is ignored. Optional: a nil index simply
	// skips registration.
	RunIndex *runindex.Index

	// Clock supplies "now"; defaults to clock.Real.
	Clock clock.Clock

	// Version is recorded as the manifest's engine_version. Defaults to
	// DefaultEngineVersion.
	Version string

	// Logger receives one structured line per state transition. Defaults
	// to slog.Default().
	Logger *slog.Logger
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// RunInput is everything one evaluation run needs beyond the Engine's own
// wiring.
type RunInput struct {
	Promise promise.Promise
	Config  *promise.EvaluationConfig
	Path    string
	RunsDir string

	// Mode labels the caller's enforcement posture (e.g. "pre-commit",
	// "ci-gate") and is passed to the decision builder's enforcement
	// context; it is not written to the decision record and does not change
	// gating behavior.
	Mode string

	// OverrideToken, when non-empty, is evaluated against §4.9's
	// acceptance rule whenever a violation would otherwise block.
	OverrideToken string
	// OverrideAcceptanceCEL optionally tightens the override acceptance
	// rule beyond the base severity/compensating-controls check.
	OverrideAcceptanceCEL string
}

// RunOutcome is everything a caller (CLI, tests) needs after a run: where
// it lives, what state it reached, and its decision record.
type RunOutcome struct {
	RunID       string
	State       State
	Dir         rundir.Dir
	Decision    promise.DecisionRecord
	Manifest    *evidencestore.Manifest
	EgressError string
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return clock.Real()
}

func (e *Engine) engineVersion() string {
	if e.Version != "" {
		return e.Version
	}
	return DefaultEngineVersion
}

func (e *Engine) signingKey() []byte {
	if len(e.SigningKey) > 0 {
		return e.SigningKey
	}
	return signer.LoadKey()
}

// Run drives one evaluation run to completion. It never returns a nil
// *RunOutcome once a run directory has been created: even a run that
// finishes with verdict "error" yields an outcome pointing at a
// fully-written manifest, audit, report, and decision, per §5's
// "obviously incomplete or fully consistent up to the last state"
// contract. The returned error is non-nil exactly when the run's own
// overall_verdict is "error"; callers that only care about green/red/n-a
// vs. error should branch on out.Decision.OverallVerdict instead of the
// error value when they need the full decision record regardless.
func (e *Engine) Run(in RunInput) (*RunOutcome, error) {
	if in.Config == nil {
		return nil, fmt.Errorf("engine: nil evaluation config")
	}
	if err := in.Config.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid evaluation config: %w", err)
	}

	runID := uuid.NewString()
	now := e.now()
	rootID := in.Promise.ID

	dir, err := rundir.New(in.RunsDir, runID)
	if err != nil {
		return nil, fmt.Errorf("engine: create run directory: %w", err)
	}
	out := &RunOutcome{RunID: runID, State: StateInit, Dir: dir}

	log := e.logger().With("run_id", runID, "promise_id", rootID)
	setState := func(s State) {
		out.State = s
		log.Info("state transition", "state", string(s))
	}

	store := evidencestore.New(dir.Root, in.Config.Retention)
	custody := chainofcustody.New().WithClock(e.Clock)
	store.Custody = custody

	probeVersions := map[string]string{}
	if e.Tests != nil {
		probeVersions["tests"] = e.Tests.Version()
	}
	if e.Analyzer != nil {
		probeVersions["static"] = e.Analyzer.Version()
	}
	fingerprint := toolchain.Record(probeVersions)
	setState(StateToolchainRecorded)

	var (
		toolingError string
		anomalies    []string
		collected    collector.Result
		sessionRes   abduction.Result
		stagedEvents []staged.Event
	)

	redactor := redact.New()
	body := func() error {
		setState(StateEvidenceCollecting)
		res, anoms, cerr := collector.New(e.Tests, e.Analyzer, store).Run(in.Config, in.Path)
		anomalies = append(anomalies, anoms...)
		collected = res
		if cerr != nil {
			// Probe/determinism failures are captured into the run, not
			// raised to the caller (propagation policy, §7). The error
			// text can itself echo probe output, so it is scrubbed
			// before it reaches the log line below.
			scrubbed, _ := redactor.Redact(context.Background(), cerr.Error())
			toolingError = scrubbed
			log.Warn("evidence collection reported a tooling error", "error", scrubbed)
			return nil
		}
		setState(StateEvidenceWritten)

		setState(StateSessionRunning)
		roots := []abduction.Root{{ID: rootID, Statement: in.Promise.Statement}}
		evidence := deriveEvidence(collected)
		if in.Config.StagedDisclosure {
			gate := staged.NewGate([]string{SlotTestsPass}, []string{SlotStaticCoverage, SlotNoViolations})
			observations := gate.RequestObservations(evidence)
			gate.Unlock()
			conclusions, _ := gate.RequestConclusions(evidence)
			evidence = append(observations, conclusions...)
			stagedEvents = gate.Events()
		}
		sess := abduction.New(nil, nil, nil, nil)
		sr, serr := sess.Run(roots, in.Config.Abduction, in.Config.RequiredSlots, evidence)
		if serr != nil {
			scrubbed, _ := redactor.Redact(context.Background(), serr.Error())
			toolingError = scrubbed
			log.Warn("abductive session reported a tooling error", "error", scrubbed)
			return nil
		}
		sessionRes = sr
		setState(StateSessionWritten)
		return nil
	}

	var attempted bool
	if in.Config.Offline {
		guard := e.Egress
		if guard == nil {
			guard = toolchain.NewEgressGuard()
		}
		attempted, _ = guard.Scope(body)
	} else {
		_ = body()
	}

	egressErr := ""
	if attempted {
		anomalies = append(anomalies, "egress_enforcement")
		egressErr = "egress blocked during offline scope"
		if toolingError == "" {
			toolingError = egressErr
		}
	}
	if toolingError != "" {
		setState(StateErrorFinalising)
	}

	// Audit chain: always built, even on error, so the run directory is
	// never left without its append-frozen artifacts (§5).
	custodyEntries := custody.Entries()
	rawEvents := make([]auditchain.RawEvent, 0, len(sessionRes.Events)+len(custodyEntries)+1)
	for _, ev := range sessionRes.Events {
		rawEvents = append(rawEvents, auditchain.RawEvent{EventType: ev.Type, Payload: ev.Payload})
	}
	for _, ce := range custodyEntries {
		rawEvents = append(rawEvents, auditchain.RawEvent{EventType: string(ce.EventType), Payload: ce})
	}
	for _, se := range stagedEvents {
		rawEvents = append(rawEvents, auditchain.RawEvent{EventType: se.Type, Payload: se.Payload})
	}
	if attempted {
		rawEvents = append(rawEvents, auditchain.RawEvent{
			EventType: "egress_enforcement",
			Payload:   map[string]interface{}{"outcome": "blocked_or_none_attempted"},
		})
	}
	redactionSummary := redactionCounts(collected.Redactions)
	if len(redactionSummary) > 0 {
		rawEvents = append(rawEvents, auditchain.RawEvent{
			EventType: "redaction_summary",
			Payload:   map[string]interface{}{"counts": redactionSummary},
		})
	}
	entries, err := auditchain.Chain(rawEvents)
	if err != nil {
		return out, fmt.Errorf("engine: chain audit: %w", err)
	}
	auditBytes, err := auditchain.CanonicalJSON(entries)
	if err != nil {
		return out, fmt.Errorf("engine: canonicalize audit: %w", err)
	}
	if err := dir.WriteFrozen("audit.json", auditBytes); err != nil {
		return out, fmt.Errorf("engine: write audit: %w", err)
	}
	auditSHA := canon.HashBytes(auditBytes)
	store.RecordExternal("audit", "audit.json", auditSHA)
	if out.State != StateErrorFinalising {
		setState(StateAuditChained)
	}

	// Override evaluation: decisionbuilder only lets this flip a verdict
	// when a violation was actually blocking, so it is safe to evaluate
	// unconditionally whenever a token was presented.
	var overrideApplied bool
	if in.OverrideToken != "" {
		ov := &override.Evaluator{Key: e.signingKey(), AcceptanceCEL: in.OverrideAcceptanceCEL}
		overrideApplied = ov.Evaluate(in.OverrideToken, in.Promise.ID, now).Accepted
	}

	bInput := decisionbuilder.Input{
		Promise:      in.Promise,
		Config:       in.Config,
		RootID:       rootID,
		Session:      sessionRes,
		Collected:    collected,
		Anomalies:    anomalies,
		ToolingError: toolingError,
		Enforcement: decisionbuilder.EnforcementContext{
			Mode:            in.Mode,
			FailOnViolation: in.Config.FailOnViolation,
		},
		OverrideApplied: overrideApplied,
	}
	promiseResult := decisionbuilder.BuildPromiseResult(bInput)
	mechanisms := decisionbuilder.BuildMechanisms(bInput)
	residuals := decisionbuilder.BuildResiduals(sessionRes)
	anomalyRecords := decisionbuilder.BuildAnomalies(anomalies)
	nextActions := decisionbuilder.BuildNextActions(promiseResult, anomalyRecords)
	overall := promise.OverallVerdict([]promise.PromiseResult{promiseResult})
	notification := decisionbuilder.BuildNotification(overall, promiseResult.Severity, promiseResult.Credence, promiseResult.Support)

	credenceForReport := 0.0
	if promiseResult.Credence != nil {
		credenceForReport = *promiseResult.Credence
	}
	secret := e.signingKey()
	report := signer.Report{
		RunID:        runID,
		PromiseID:    in.Promise.ID,
		Credence:     credenceForReport,
		Verdict:      string(promiseResult.Verdict),
		TimestampUTC: signer.NowUTC(now),
	}
	reportBytes, sigHex, err := signer.SignReport(secret, report)
	if err != nil {
		return out, fmt.Errorf("engine: sign report: %w", err)
	}
	if err := dir.WriteFrozen("report.json", reportBytes); err != nil {
		return out, fmt.Errorf("engine: write report: %w", err)
	}
	if err := dir.WriteFrozen("report.sig", []byte(sigHex)); err != nil {
		return out, fmt.Errorf("engine: write signature: %w", err)
	}
	store.RecordExternal("report", "report.json", canon.HashBytes(reportBytes))
	store.RecordExternal("signature", "report.sig", canon.HashBytes([]byte(sigHex)))
	if out.State != StateErrorFinalising {
		setState(StateReportSigned)
	}

	metadata := evidencestore.Metadata{
		RunID:                runID,
		TimestampUTC:         signer.NowUTC(now),
		EngineVersion:        e.engineVersion(),
		SessionParameters:    in.Config.Abduction,
		ToolchainFingerprint: fingerprint,
		EgressPolicy:         egressPolicyLabel(in.Config.Offline),
		RetentionClass:       string(in.Config.Retention),
	}
	_, manifestSHA, err := store.WriteManifest(dir.Root, metadata)
	if err != nil {
		return out, fmt.Errorf("engine: write manifest: %w", err)
	}
	if err := os.Chmod(dir.ManifestPath(), 0o444); err != nil {
		return out, fmt.Errorf("engine: freeze manifest: %w", err)
	}
	if out.State != StateErrorFinalising {
		setState(StateManifestWritten)
	}

	decision := promise.DecisionRecord{
		SchemaVersion:  SchemaVersion,
		RunID:          runID,
		TimestampUTC:   signer.NowUTC(now),
		Policy:         in.Promise.ID,
		PromiseResults: []promise.PromiseResult{promiseResult},
		OverallVerdict: overall,
		AuditSHA256:    auditSHA,
		ManifestSHA256: manifestSHA,
		Mechanisms:     mechanisms,
		Residuals:      residuals,
		Anomalies:      anomalyRecords,
		NextActions:    nextActions,
		Notification:   &notification,
		EgressError:    egressErr,
		RedactionSummary: redactionSummary,
	}
	decisionBytes, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return out, fmt.Errorf("engine: marshal decision: %w", err)
	}
	if err := dir.WriteFrozen("decision.json", decisionBytes); err != nil {
		return out, fmt.Errorf("engine: write decision: %w", err)
	}
	setState(StateDecisionWritten)

	out.Decision = decision
	out.Manifest = &evidencestore.Manifest{Metadata: metadata, Artifacts: store.Artifacts()}
	out.EgressError = egressErr
	setState(StateDone)
	log.Info("run finished", "overall_verdict", string(overall))

	if e.RunIndex != nil {
		_ = e.RunIndex.Insert(context.Background(), runindex.Record{
			RunID:        runID,
			PromiseID:    in.Promise.ID,
			Verdict:      string(overall),
			Credence:     credenceForReport,
			TimestampUTC: now,
			RunDir:       dir.Root,
		})
	}

	if overall == promise.VerdictError {
		return out, fmt.Errorf("engine: run finished with verdict error: %s", toolingError)
	}
	return out, nil
}

// redactionCounts converts a collector's redact.Kind-keyed count map into
// the plain string-keyed map DecisionRecord.RedactionSummary carries, nil
// when nothing was redacted.
func redactionCounts(counts map[redact.Kind]int) map[string]int {
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[string(k)] = v
	}
	return out
}

func egressPolicyLabel(offline bool) string {
	if offline {
		return "offline"
	}
	return "unrestricted"
}
