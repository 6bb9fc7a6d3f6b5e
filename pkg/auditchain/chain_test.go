package auditchain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleEvents() []RawEvent {
	return []RawEvent{
		{EventType: "slot_evaluated", Payload: map[string]interface{}{"slot_key": "s1", "p": 0.9}},
		{EventType: "root_aggregated", Payload: map[string]interface{}{"root_id": "root.a", "credence": 0.9}},
		{EventType: "session_completed", Payload: map[string]interface{}{"root_count": 1}},
	}
}

func TestChain_FirstEntryIsGenesis(t *testing.T) {
	entries, err := Chain(sampleEvents())
	require.NoError(t, err)
	require.Equal(t, Genesis, entries[0].Payload.PrevHash)
}

func TestChain_LinksPrevHash(t *testing.T) {
	entries, err := Chain(sampleEvents())
	require.NoError(t, err)
	for i := 1; i < len(entries); i++ {
		require.Equal(t, entries[i-1].Payload.EntryHash, entries[i].Payload.PrevHash)
	}
}

func TestValidate_AcceptsValidChain(t *testing.T) {
	entries, err := Chain(sampleEvents())
	require.NoError(t, err)
	require.NoError(t, Validate(entries))
}

func TestValidate_DetectsTamperedPayload(t *testing.T) {
	entries, err := Chain(sampleEvents())
	require.NoError(t, err)
	entries[1].Payload.Data = map[string]interface{}{"root_id": "root.TAMPERED", "credence": 0.9}
	err = Validate(entries)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, 1, verr.Index)
}

func TestValidate_DetectsBrokenPrevHash(t *testing.T) {
	entries, err := Chain(sampleEvents())
	require.NoError(t, err)
	entries[2].Payload.PrevHash = "deadbeef"
	err = Validate(entries)
	require.Error(t, err)
}

func TestValidate_DetectsMissingFields(t *testing.T) {
	entries, err := Chain(sampleEvents())
	require.NoError(t, err)
	entries[0].Payload.EntryHash = ""
	require.Error(t, Validate(entries))
}

func TestJSONRoundTrip(t *testing.T) {
	entries, err := Chain(sampleEvents())
	require.NoError(t, err)
	b, err := CanonicalJSON(entries)
	require.NoError(t, err)
	back, err := FromJSON(b)
	require.NoError(t, err)
	require.NoError(t, Validate(back))
	require.Len(t, back, len(entries))
}

func TestJSONLLines_OnePerEntry(t *testing.T) {
	entries, err := Chain(sampleEvents())
	require.NoError(t, err)
	lines, err := JSONLLines(entries)
	require.NoError(t, err)
	require.Len(t, lines, len(entries))
}
