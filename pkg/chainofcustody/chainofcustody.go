// Package chainofcustody records who touched a piece of evidence, when,
// and (for transforms) what it turned into. It is an append-only log
// that feeds the same hash-chained audit trail every other run event
// does, rather than living in a side file an auditor has to
// cross-reference by hand.
package chainofcustody

import (
	"sync"
	"time"

	"github.com/wardenlabs/warden/pkg/clock"
)

// EventType is the closed set of custody events.
type EventType string

const (
	EventAccess    EventType = "evidence_access"
	EventTransform EventType = "evidence_transform"
)

// Entry is one custody event. Transform-only fields are empty on access
// entries.
type Entry struct {
	EventType    EventType `json:"event_type"`
	EvidenceID   string    `json:"evidence_id"`
	Actor        string    `json:"actor"`
	Purpose      string    `json:"purpose"`
	TimestampUTC string    `json:"timestamp_utc"`

	Transform    string `json:"transform,omitempty"`
	InputSHA256  string `json:"input_sha256,omitempty"`
	OutputSHA256 string `json:"output_sha256,omitempty"`
	ToolVersion  string `json:"tool_version,omitempty"`
}

// Log accumulates custody entries for one run. The zero value is usable
// and timestamps with clock.Real, as a Log from New does.
type Log struct {
	mu    sync.Mutex
	clock clock.Clock
	entries []Entry
}

// New builds a Log using clock.Real for timestamps. Tests inject a fixed
// clock with WithClock.
func New() *Log {
	return &Log{clock: clock.Real}
}

// WithClock overrides the log's time source (tests only).
func (l *Log) WithClock(c clock.Clock) *Log {
	l.clock = c
	return l
}

func (l *Log) now() string {
	c := l.clock
	if c == nil {
		c = clock.Real
	}
	return c().UTC().Format(time.RFC3339Nano)
}

// RecordAccess appends an access entry for evidenceID.
func (l *Log) RecordAccess(evidenceID, actor, purpose string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		EventType:    EventAccess,
		EvidenceID:   evidenceID,
		Actor:        actor,
		Purpose:      purpose,
		TimestampUTC: l.now(),
	})
}

// RecordTransform appends a transform entry for evidenceID: the write (or
// derivation) of one evidence artifact from another, or from raw probe
// output.
func (l *Log) RecordTransform(evidenceID, transform, inputSHA256, outputSHA256, toolVersion, actor, purpose string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		EventType:    EventTransform,
		EvidenceID:   evidenceID,
		Actor:        actor,
		Purpose:      purpose,
		TimestampUTC: l.now(),
		Transform:    transform,
		InputSHA256:  inputSHA256,
		OutputSHA256: outputSHA256,
		ToolVersion:  toolVersion,
	})
}

// Entries returns a defensive copy of every entry recorded so far, in
// append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
