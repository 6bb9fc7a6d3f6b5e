// Package rbac gates access to a run's evidence by the requesting role:
// the manifest's artifact list is cheap to hand out, but the raw bytes
// behind it (and the bundle as a whole) carry whatever the probes
// collected, so access is restricted to the roles that actually need it.
package rbac

import (
	"context"
	"fmt"
	"sync"

	"github.com/wardenlabs/warden/pkg/redact"
)

// Role is the closed set of requester roles this package recognizes.
type Role string

const (
	RoleAnalyst Role = "analyst"
	RoleCounsel Role = "counsel"
)

// Resource is what was requested, for the denial log.
type Resource string

const (
	ResourceBundle   Resource = "evidence_bundle"
	ResourceRaw      Resource = "raw_evidence"
	ResourceExcerpts Resource = "evidence_excerpts"
)

// Denial is one recorded access refusal.
type Denial struct {
	User     Role     `json:"user"`
	Action   Resource `json:"action"`
	Reason   string   `json:"reason"`
}

// DenialLog accumulates denials for later audit inspection.
type DenialLog struct {
	mu       sync.Mutex
	denials  []Denial
}

func (l *DenialLog) record(user Role, action Resource, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.denials = append(l.denials, Denial{User: user, Action: action, Reason: reason})
}

// Denials returns a defensive copy of every denial recorded so far.
func (l *DenialLog) Denials() []Denial {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Denial, len(l.denials))
	copy(out, l.denials)
	return out
}

// BundleResponse is what a granted bundle or raw-evidence request returns.
type BundleResponse struct {
	Granted bool              `json:"granted"`
	Reason  string            `json:"reason,omitempty"`
	Files   map[string][]byte `json:"-"`
}

// ExcerptResponse is what a granted excerpt request returns: redacted
// text, never the raw artifact bytes.
type ExcerptResponse struct {
	Granted          bool           `json:"granted"`
	Reason           string         `json:"reason,omitempty"`
	Excerpts         []string       `json:"excerpts,omitempty"`
	RedactionSummary map[string]int `json:"redaction_summary,omitempty"`
}

// EvidenceAccessService gates evidence-bundle, raw-evidence, and excerpt
// requests by role: only RoleAnalyst gets the bundle or raw bytes, only
// RoleCounsel gets excerpts, and every refusal is logged.
type EvidenceAccessService struct {
	Log      *DenialLog
	Redactor redact.Redactor
}

// NewEvidenceAccessService builds a service with its own denial log and a
// default redactor.
func NewEvidenceAccessService() *EvidenceAccessService {
	return &EvidenceAccessService{Log: &DenialLog{}, Redactor: redact.New()}
}

// RequestEvidenceBundle returns every artifact's bytes keyed by pointer,
// granted only to RoleAnalyst.
func (s *EvidenceAccessService) RequestEvidenceBundle(user Role, artifacts map[string][]byte) BundleResponse {
	if user != RoleAnalyst {
		s.Log.record(user, ResourceBundle, "insufficient_role")
		return BundleResponse{Granted: false, Reason: "insufficient_role"}
	}
	return BundleResponse{Granted: true, Files: artifacts}
}

// RequestRawEvidence is the same gate as RequestEvidenceBundle, named
// separately because the original system distinguished "the bundle" from
// "the raw bytes of one artifact" even though both are analyst-only here.
func (s *EvidenceAccessService) RequestRawEvidence(user Role, artifacts map[string][]byte) BundleResponse {
	if user != RoleAnalyst {
		s.Log.record(user, ResourceRaw, "insufficient_role")
		return BundleResponse{Granted: false, Reason: "insufficient_role"}
	}
	return BundleResponse{Granted: true, Files: artifacts}
}

// RequestEvidenceExcerpts returns a redacted textual excerpt of each
// artifact, granted only to RoleCounsel.
func (s *EvidenceAccessService) RequestEvidenceExcerpts(user Role, artifacts map[string][]byte) ExcerptResponse {
	if user != RoleCounsel {
		s.Log.record(user, ResourceExcerpts, "insufficient_role")
		return ExcerptResponse{Granted: false, Reason: "insufficient_role"}
	}

	var excerpts []string
	summary := redact.Summary{}
	ctx := context.Background()
	for pointer, data := range artifacts {
		scrubbed, s2 := s.Redactor.Redact(ctx, string(data))
		excerpts = append(excerpts, fmt.Sprintf("%s: %s", pointer, scrubbed))
		summary = summary.Merge(s2)
	}
	return ExcerptResponse{Granted: true, Excerpts: excerpts, RedactionSummary: toStringCounts(summary)}
}

func toStringCounts(s redact.Summary) map[string]int {
	if len(s.Counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(s.Counts))
	for k, v := range s.Counts {
		out[string(k)] = v
	}
	return out
}
