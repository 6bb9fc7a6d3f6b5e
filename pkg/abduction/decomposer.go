package abduction

import "github.com/wardenlabs/warden/pkg/promise"

// Decomposer yields the slot claims a root must satisfy, given the
// configured required-slot roster. The default decomposer treats the
// roster as already root-agnostic (every root is decomposed against the
// same roster), which is the common case for a single-promise run;
// per-root decomposition is a seam for a more elaborate engine.
type Decomposer interface {
	Decompose(root Root, slots []promise.RequiredSlot) []SlotClaim
}

// DefaultDecomposer maps each required slot to a node key of the form
// "<root_id>:<slot_key>" so the same slot definition can be evaluated
// independently per root.
type DefaultDecomposer struct{}

func (DefaultDecomposer) Decompose(root Root, slots []promise.RequiredSlot) []SlotClaim {
	claims := make([]SlotClaim, 0, len(slots))
	for _, s := range slots {
		claims = append(claims, SlotClaim{
			SlotKey: s.SlotKey,
			Role:    s.Role,
			NodeKey: root.ID + ":" + s.SlotKey,
		})
	}
	return claims
}
