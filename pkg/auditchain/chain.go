// Package auditchain implements Component F: hash-chaining the session's
// event trace into a tamper-evident append-only log, and validating a
// chain read back from disk or an audit pack.
package auditchain

import (
	"encoding/json"
	"fmt"

	"github.com/wardenlabs/warden/pkg/canon"
)

// Genesis is the sentinel prev_hash of the first entry in a chain.
const Genesis = "GENESIS"

// Entry is one chained audit log record (§4.6).
type Entry struct {
	EventType string      `json:"event_type"`
	Payload   EntryPayload `json:"payload"`
}

// EntryPayload carries the original event payload plus the two chain
// fields. PrevHash and EntryHash are always present once chained;
// EntryHash is excluded from the hash computation that derives it, while
// PrevHash is part of the hashed payload.
type EntryPayload struct {
	Data      interface{} `json:"data"`
	PrevHash  string      `json:"prev_hash"`
	EntryHash string      `json:"entry_hash"`
}

// RawEvent is the pre-chained shape the abductive session (or any other
// event source) hands to Chain: just a type tag and an opaque payload.
type RawEvent struct {
	EventType string
	Payload   interface{}
}

// hashable is the exact shape entry_hash commits to: event_type and
// payload with entry_hash removed, prev_hash already populated.
type hashable struct {
	EventType string      `json:"event_type"`
	Payload   hashablePayload `json:"payload"`
}

type hashablePayload struct {
	Data     interface{} `json:"data"`
	PrevHash string      `json:"prev_hash"`
}

// Chain computes prev_hash/entry_hash over events in order, in a single
// pass, and returns the resulting audit log (§4.6).
func Chain(events []RawEvent) ([]Entry, error) {
	entries := make([]Entry, 0, len(events))
	prevHash := Genesis

	for i, ev := range events {
		h := hashable{
			EventType: ev.EventType,
			Payload:   hashablePayload{Data: ev.Payload, PrevHash: prevHash},
		}
		entryHash, err := canon.Hash(h)
		if err != nil {
			return nil, fmt.Errorf("auditchain: hash entry %d: %w", i, err)
		}

		entries = append(entries, Entry{
			EventType: ev.EventType,
			Payload: EntryPayload{
				Data:      ev.Payload,
				PrevHash:  prevHash,
				EntryHash: entryHash,
			},
		})
		prevHash = entryHash
	}

	return entries, nil
}

// ValidationError classifies a chain validation failure so callers (CLI,
// audit-pack verify) can report a distinguishable message (§4.6, §8).
type ValidationError struct {
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("auditchain: entry %d: %s", e.Index, e.Message)
}

// Validate traverses entries checking that every entry_hash recomputes
// and every prev_hash agrees with the previous entry's entry_hash (or
// GENESIS for the first). Returns the first violation found.
func Validate(entries []Entry) error {
	prevHash := Genesis
	for i, e := range entries {
		if e.Payload.PrevHash == "" || e.Payload.EntryHash == "" {
			return &ValidationError{Index: i, Message: "missing prev_hash or entry_hash"}
		}
		if e.Payload.PrevHash != prevHash {
			return &ValidationError{Index: i, Message: fmt.Sprintf("prev_hash mismatch: expected %s, got %s", prevHash, e.Payload.PrevHash)}
		}

		h := hashable{
			EventType: e.EventType,
			Payload:   hashablePayload{Data: e.Payload.Data, PrevHash: e.Payload.PrevHash},
		}
		want, err := canon.Hash(h)
		if err != nil {
			return fmt.Errorf("auditchain: recompute entry %d: %w", i, err)
		}
		if want != e.Payload.EntryHash {
			return &ValidationError{Index: i, Message: fmt.Sprintf("entry_hash mismatch: expected %s, got %s", want, e.Payload.EntryHash)}
		}

		prevHash = e.Payload.EntryHash
	}
	return nil
}

// CanonicalJSON returns the chain as the canonical `{"events": [...]}`
// form §3 specifies for audit.json.
func CanonicalJSON(entries []Entry) ([]byte, error) {
	return canon.JSON(struct {
		Events []Entry `json:"events"`
	}{Events: entries})
}

// JSONLLines renders each entry as one canonical-JSON line for the
// audit-pack export format (audit.jsonl, §4.8).
func JSONLLines(entries []Entry) ([][]byte, error) {
	lines := make([][]byte, 0, len(entries))
	for i, e := range entries {
		b, err := canon.JSON(e)
		if err != nil {
			return nil, fmt.Errorf("auditchain: jsonl line %d: %w", i, err)
		}
		lines = append(lines, b)
	}
	return lines, nil
}

// FromJSON parses the `{"events": [...]}` form back into entries, used
// by replay and audit-pack verify.
func FromJSON(data []byte) ([]Entry, error) {
	var wrapper struct {
		Events []Entry `json:"events"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("auditchain: parse: %w", err)
	}
	return wrapper.Events, nil
}
