// Package evidencestore implements Component B: a content-addressed
// directory rooted at the run directory, plus the in-memory manifest
// builder that accumulates the artifact list written once at run end.
package evidencestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/wardenlabs/warden/pkg/canon"
	"github.com/wardenlabs/warden/pkg/chainofcustody"
	"github.com/wardenlabs/warden/pkg/promise"
)

// Artifact is one manifest entry (§3 Manifest).
type Artifact struct {
	Kind       string `json:"kind"`
	Pointer    string `json:"pointer"`
	SHA256     string `json:"sha256"`
	EvidenceID string `json:"evidence_id,omitempty"`
}

// Store is the content-addressed evidence directory for one run.
type Store struct {
	mu        sync.Mutex
	root      string
	retention promise.Retention
	artifacts []Artifact
	bytes     map[string][]byte // pointer -> bytes, only populated for standard retention

	// Custody, when set, receives a transform entry for every WriteBytes
	// call and an access entry for every Read call. Nil disables custody
	// logging entirely (most tests don't need it).
	Custody *chainofcustody.Log
}

// New creates a Store rooted at runDir/evidence.
func New(runDir string, retention promise.Retention) *Store {
	return &Store{
		root:      filepath.Join(runDir, "evidence"),
		retention: retention,
		bytes:     make(map[string][]byte),
	}
}

// WriteBytes writes data at relpath (relative to the evidence root; kind
// labels the artifact and is not part of the path), returning its
// evidence id of the form "evidence:<hex-sha256>".
func (s *Store) WriteBytes(kind, relpath string, data []byte) (string, error) {
	sum := canon.HashBytes(data)
	id := canon.EvidenceID(sum)

	abs := filepath.Join(s.root, relpath)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("evidencestore: mkdir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.retention {
	case promise.RetentionHashOnly:
		// Bytes are never persisted; the pointer records where they would
		// have lived, readers get "missing" until rehydrated.
	default:
		if err := os.WriteFile(abs, data, 0o644); err != nil {
			return "", fmt.Errorf("evidencestore: write: %w", err)
		}
		s.bytes[relpath] = data
	}

	s.artifacts = append(s.artifacts, Artifact{
		Kind:       kind,
		Pointer:    filepath.ToSlash(filepath.Join("evidence", relpath)),
		SHA256:     sum,
		EvidenceID: id,
	})
	if s.Custody != nil {
		s.Custody.RecordTransform(id, "probe_collection", "", sum, kind, "collector", "evidence_write")
	}
	return id, nil
}

// RecordExternal records an artifact written outside the store (audit,
// report) so it still appears in the manifest.
func (s *Store) RecordExternal(kind, pointer, sha256Hex string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, Artifact{Kind: kind, Pointer: pointer, SHA256: sha256Hex})
}

// Read returns the bytes at relpath, or ErrMissing in hash-only mode.
func (s *Store) Read(relpath string) ([]byte, error) {
	s.mu.Lock()
	custody := s.Custody
	if s.retention == promise.RetentionHashOnly {
		if _, ok := s.bytes[relpath]; !ok {
			s.mu.Unlock()
			return nil, ErrMissing
		}
	}
	s.mu.Unlock()
	if custody != nil {
		custody.RecordAccess(relpath, "engine", "evidence_read")
	}
	abs := filepath.Join(s.root, relpath)
	return os.ReadFile(abs)
}

// ErrMissing is returned by Read when hash-only retention elided the bytes.
var ErrMissing = fmt.Errorf("evidencestore: evidence bytes not retained (hash-only mode)")

// Artifacts returns a defensive copy of the artifacts recorded so far,
// sorted by (kind, pointer) as §4.2 requires for the manifest.
func (s *Store) Artifacts() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Pointer < out[j].Pointer
	})
	return out
}
