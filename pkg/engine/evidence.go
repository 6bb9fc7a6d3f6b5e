package engine

import (
	"github.com/wardenlabs/warden/pkg/abduction"
	"github.com/wardenlabs/warden/pkg/collector"
)

// Canonical slot keys the engine derives from a collector run. A policy's
// required_slots roster names these keys directly (§4.5's roster is an
// input the policy author controls; these are the signals the core can
// actually produce from the two built-in probes).
const (
	SlotTestsPass      = "tests_pass"
	SlotStaticCoverage = "static_coverage"
	SlotNoViolations   = "no_violations"
)

// deriveEvidence turns one collector run into the evidence items the
// abductive session consumes: a boolean test-pass signal, the static
// analyzer's coverage ratio, and a violations-as-defeater signal. Each
// item carries the evidence id the collector already wrote to the store,
// so a slot's evidence_refs point at the same artifact replay re-hashes.
func deriveEvidence(c collector.Result) []abduction.EvidenceItem {
	var testID, staticID string
	if len(c.EvidenceIDs) > 0 {
		testID = c.EvidenceIDs[0]
	}
	if len(c.EvidenceIDs) > 1 {
		staticID = c.EvidenceIDs[1]
	}

	items := []abduction.EvidenceItem{
		{EvidenceID: testID, SlotKey: SlotTestsPass, Value: boolToFloat(c.Passing), Weight: 1.0},
		{EvidenceID: staticID, SlotKey: SlotStaticCoverage, Value: c.Coverage, Weight: 1.0},
	}
	if c.Violations > 0 {
		items = append(items, abduction.EvidenceItem{
			EvidenceID: staticID,
			SlotKey:    SlotNoViolations,
			Value:      0.0,
			Weight:     1.0,
			Defeats:    true,
		})
	} else {
		items = append(items, abduction.EvidenceItem{
			EvidenceID: staticID,
			SlotKey:    SlotNoViolations,
			Value:      1.0,
			Weight:     1.0,
		})
	}
	return items
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
