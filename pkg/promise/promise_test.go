package promise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPromiseValidate(t *testing.T) {
	p := Promise{ID: "p1", Severity: SeverityHigh, Version: "1.2.3", Threshold: 0.8}
	require.NoError(t, p.Validate())

	bad := Promise{ID: "p2", Severity: "extreme"}
	require.Error(t, bad.Validate())

	badVersion := Promise{ID: "p3", Severity: SeverityLow, Version: "not-a-semver"}
	require.Error(t, badVersion.Validate())
}

func TestEvaluationConfigValidate(t *testing.T) {
	cfg := EvaluationConfig{
		PromiseID:       "p1",
		DeterminismRuns: 1,
		RequiredSlots: []RequiredSlot{
			{SlotKey: "feasibility", Role: "NEC"},
			{SlotKey: "fit", Role: "SUFF"},
		},
	}
	require.NoError(t, cfg.Validate())

	cfg.DeterminismRuns = 0
	require.Error(t, cfg.Validate())
}

func TestEvaluationConfig_DuplicateSlotRejected(t *testing.T) {
	cfg := EvaluationConfig{
		PromiseID:       "p1",
		DeterminismRuns: 1,
		RequiredSlots: []RequiredSlot{
			{SlotKey: "feasibility", Role: "NEC"},
			{SlotKey: "feasibility", Role: "NEC"},
		},
	}
	require.Error(t, cfg.Validate())
}

func TestEffectiveThreshold(t *testing.T) {
	cfg := EvaluationConfig{
		Threshold: 0.5,
		SeverityThresholds: map[Severity]float64{
			SeverityCritical: 0.95,
		},
	}
	require.Equal(t, 0.95, cfg.EffectiveThreshold(SeverityCritical))
	require.Equal(t, 0.5, cfg.EffectiveThreshold(SeverityLow))
}
