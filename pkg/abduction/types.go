// Package abduction implements Component E: the abductive reasoning
// session that fuses evidence into a per-root credence ledger and support
// measure. The exact aggregation function over slots is left open by the
// governing contract (monotone, bounded, symmetric under permutation); this
// package supplies one concrete, original implementation of that contract
// behind the Decomposer/Evaluator/Searcher/AuditSink seam so an alternative
// engine can be swapped in without touching the rest of the pipeline.
package abduction

// Root is one root hypothesis a promise can be explained by.
type Root struct {
	ID        string `json:"id"`
	Statement string `json:"statement"`
	Exclusion string `json:"exclusion,omitempty"`
}

// EvidenceItem is one piece of evidence offered to the session: a signal
// value in [0,1] tagged to the slot it speaks to, with a confidence weight
// and an optional defeater flag marking it as contradicting rather than
// corroborating.
type EvidenceItem struct {
	EvidenceID string  `json:"evidence_id"`
	SlotKey    string  `json:"slot_key"`
	Value      float64 `json:"value"`
	Weight     float64 `json:"weight"`
	Defeats    bool    `json:"defeats,omitempty"`
}

// SlotClaim is a single decomposed obligation of a root, dispatched to an
// Evaluator as node_key.
type SlotClaim struct {
	SlotKey  string
	Role     string // "NEC" | "SUFF"
	NodeKey  string
}

// SlotRecord is the full per-slot evaluation record (§4.5).
type SlotRecord struct {
	SlotKey      string   `json:"slot_key"`
	Role         string   `json:"role"`
	P            float64  `json:"p"`
	K            float64  `json:"k"`
	A            float64  `json:"a"`
	B            float64  `json:"b"`
	C            float64  `json:"c"`
	D            float64  `json:"d"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

// WeakestSlot names the lowest-probability slot contributing to a root,
// per §4.5's per-root diagnostics.
type WeakestSlot struct {
	SlotKey      string   `json:"slot_key"`
	P            float64  `json:"p"`
	K            float64  `json:"k"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

// RootDiagnostics is the per-root entry of the roots map (§3 Session
// artifacts).
type RootDiagnostics struct {
	SupportK    float64      `json:"k_root"`
	WeakestSlot *WeakestSlot `json:"weakest_slot,omitempty"`
	// Defeaters lists evidence ids that reduced credence, or the single
	// literal "underdetermined" when no defeating evidence was found.
	Defeaters []string `json:"defeaters"`
}

// Ledger maps root id to credence in [0,1].
type Ledger map[string]float64

// Event is one type-tagged entry of the session's ordered event trace.
type Event struct {
	Seq     int         `json:"seq"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Result is everything the session produces for one promise evaluation.
type Result struct {
	Ledger    Ledger                     `json:"ledger"`
	Roots     map[string]RootDiagnostics `json:"roots"`
	HNOA      float64                    `json:"h_noa"`
	HUND      float64                    `json:"h_und"`
	Events    []Event                    `json:"events"`
	SlotTrace map[string][]SlotRecord    `json:"slot_trace"` // root id -> evaluated slots
}
