package canon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSON_SortsKeys(t *testing.T) {
	out, err := JSON(map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	require.Equal(t, `{"a":1,"b":2}`, string(out))
}

func TestJSON_NestedSort(t *testing.T) {
	out, err := JSON(map[string]interface{}{"x": map[string]interface{}{"z": 10, "y": 5}})
	require.NoError(t, err)
	require.Equal(t, `{"x":{"y":5,"z":10}}`, string(out))
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash(map[string]interface{}{"a": 1, "b": 2})
	require.NoError(t, err)
	h2, err := Hash(map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestEvidenceID(t *testing.T) {
	id := EvidenceID("abc123")
	require.Equal(t, "evidence:abc123", id)
}

func TestNormalizeText(t *testing.T) {
	// "é" (e + combining acute) should normalize to "é" (é)
	decomposed := "é"
	require.Equal(t, "é", NormalizeText(decomposed))
}
