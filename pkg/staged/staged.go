// Package staged gates which evidence slots an abductive session may draw
// on during two sequential phases: an observations-only phase that can
// run against raw probe signal alone, and a later oracle-comparison phase
// that may also draw on slots derived by judgment (coverage ratios,
// violation counts) rather than direct observation. A request for a
// later-phase slot before the gate unlocks is refused and logged, not
// silently served.
package staged

import (
	"errors"
	"sync"

	"github.com/wardenlabs/warden/pkg/abduction"
)

// Stage labels one of the two disclosure phases.
type Stage string

const (
	StageObservationsOnly Stage = "observations_only"
	StageOracleComparison Stage = "oracle_comparison"
)

// Event is one stage-transition or access-violation record, shaped to
// feed directly into the run's audit chain alongside the session's own
// events.
type Event struct {
	Type    string
	Payload map[string]interface{}
}

// ErrLocked is returned by RequestConclusions before Unlock has been
// called.
var ErrLocked = errors.New("staged: conclusions requested before phase A lock was released")

// Gate partitions evidence into an observations set (always available)
// and a conclusions set (available only once unlocked), keyed by slot.
type Gate struct {
	mu               sync.Mutex
	observationSlots map[string]bool
	conclusionSlots  map[string]bool
	unlocked         bool
	events           []Event
}

// NewGate builds a Gate over the given observation and conclusion slot
// keys. The two sets are expected to be disjoint; a slot absent from both
// is simply never returned by either request method.
func NewGate(observationSlots, conclusionSlots []string) *Gate {
	g := &Gate{
		observationSlots: make(map[string]bool, len(observationSlots)),
		conclusionSlots:  make(map[string]bool, len(conclusionSlots)),
	}
	for _, s := range observationSlots {
		g.observationSlots[s] = true
	}
	for _, s := range conclusionSlots {
		g.conclusionSlots[s] = true
	}
	return g
}

// RequestObservations returns the subset of evidence whose slot is an
// observation slot. Always permitted; records a phase-A stage event.
func (g *Gate) RequestObservations(evidence []abduction.EvidenceItem) []abduction.EvidenceItem {
	g.mu.Lock()
	g.events = append(g.events, Event{Type: "evidence_stage", Payload: map[string]interface{}{"stage": string(StageObservationsOnly)}})
	g.mu.Unlock()
	return filterBySlot(evidence, g.observationSlots)
}

// Unlock releases the phase-A lock, permitting RequestConclusions.
func (g *Gate) Unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlocked = true
}

// RequestConclusions returns the subset of evidence whose slot is a
// conclusion slot, or ErrLocked if Unlock has not yet been called. In
// that case an evidence_access_violation event is recorded instead of
// the phase-B stage event.
func (g *Gate) RequestConclusions(evidence []abduction.EvidenceItem) ([]abduction.EvidenceItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.unlocked {
		g.events = append(g.events, Event{Type: "evidence_access_violation", Payload: map[string]interface{}{"resource": "conclusions"}})
		return nil, ErrLocked
	}
	g.events = append(g.events, Event{Type: "evidence_stage", Payload: map[string]interface{}{"stage": string(StageOracleComparison)}})
	return filterBySlot(evidence, g.conclusionSlots), nil
}

// Events returns a defensive copy of every stage/violation event recorded
// so far, in order.
func (g *Gate) Events() []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Event, len(g.events))
	copy(out, g.events)
	return out
}

func filterBySlot(evidence []abduction.EvidenceItem, slots map[string]bool) []abduction.EvidenceItem {
	var out []abduction.EvidenceItem
	for _, e := range evidence {
		if slots[e.SlotKey] {
			out = append(out, e)
		}
	}
	return out
}
