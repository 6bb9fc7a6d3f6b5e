package staged

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/warden/pkg/abduction"
)

func sampleEvidence() []abduction.EvidenceItem {
	return []abduction.EvidenceItem{
		{EvidenceID: "evidence:1", SlotKey: "tests_pass", Value: 1.0, Weight: 1.0},
		{EvidenceID: "evidence:2", SlotKey: "static_coverage", Value: 0.8, Weight: 1.0},
		{EvidenceID: "evidence:2", SlotKey: "no_violations", Value: 1.0, Weight: 1.0},
	}
}

func TestGate_ObservationsAlwaysAvailable(t *testing.T) {
	g := NewGate([]string{"tests_pass"}, []string{"static_coverage", "no_violations"})
	obs := g.RequestObservations(sampleEvidence())
	require.Len(t, obs, 1)
	require.Equal(t, "tests_pass", obs[0].SlotKey)

	events := g.Events()
	require.Len(t, events, 1)
	require.Equal(t, "evidence_stage", events[0].Type)
	require.Equal(t, "observations_only", events[0].Payload["stage"])
}

func TestGate_ConclusionsDeniedBeforeUnlock(t *testing.T) {
	g := NewGate([]string{"tests_pass"}, []string{"static_coverage", "no_violations"})
	_, err := g.RequestConclusions(sampleEvidence())
	require.ErrorIs(t, err, ErrLocked)

	events := g.Events()
	require.Len(t, events, 1)
	require.Equal(t, "evidence_access_violation", events[0].Type)
	require.Equal(t, "conclusions", events[0].Payload["resource"])
}

func TestGate_ConclusionsGrantedAfterUnlock(t *testing.T) {
	g := NewGate([]string{"tests_pass"}, []string{"static_coverage", "no_violations"})
	g.Unlock()
	conclusions, err := g.RequestConclusions(sampleEvidence())
	require.NoError(t, err)
	require.Len(t, conclusions, 2)
}
