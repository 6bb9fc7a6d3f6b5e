// Package panel aggregates multiple independent assessors' credence
// judgments over the same promise into a single reviewable verdict,
// signing each assessor's input so the aggregate can be traced back to
// exactly what was submitted. Disagreement beyond a configured spread is
// surfaced as an anomaly rather than averaged away silently.
package panel

import (
	"fmt"
	"sort"

	"github.com/wardenlabs/warden/pkg/canon"
	"github.com/wardenlabs/warden/pkg/signer"
)

// DefaultDisagreementThreshold is used when a caller doesn't configure
// one: a spread greater than this between any two assessors' credence
// for the same key is flagged.
const DefaultDisagreementThreshold = 0.15

// Assessment is one assessor's credence judgment across whatever promise
// keys they evaluated.
type Assessment struct {
	Assessor       string             `json:"assessor"`
	CredenceVector map[string]float64 `json:"credence_vector"`
}

// Signed pairs an Assessment with its signature and the canonical hash of
// what was signed, so Aggregate's InputHashes can cite exactly what each
// assessor submitted.
type Signed struct {
	Assessment
	InputSHA256  string `json:"input_sha256"`
	SignatureHex string `json:"signature_hex"`
}

// Sign canonicalizes a and signs it with a per-assessor subkey derived
// from secret via signer.DeriveRunKey, reusing the report-signing scheme
// rather than inventing new crypto for a second kind of artifact.
func Sign(secret []byte, a Assessment) (Signed, error) {
	data, err := canon.JSON(a)
	if err != nil {
		return Signed{}, fmt.Errorf("panel: canonicalize assessment: %w", err)
	}
	key, err := signer.DeriveRunKey(secret, a.Assessor)
	if err != nil {
		return Signed{}, fmt.Errorf("panel: derive assessor key: %w", err)
	}
	return Signed{
		Assessment:   a,
		InputSHA256:  canon.HashBytes(data),
		SignatureHex: signer.Sign(key, data),
	}, nil
}

// Verify re-derives the assessor's subkey and checks sa's signature
// against its own canonical form.
func Verify(secret []byte, sa Signed) (bool, error) {
	data, err := canon.JSON(sa.Assessment)
	if err != nil {
		return false, fmt.Errorf("panel: canonicalize assessment: %w", err)
	}
	key, err := signer.DeriveRunKey(secret, sa.Assessor)
	if err != nil {
		return false, fmt.Errorf("panel: derive assessor key: %w", err)
	}
	return signer.Verify(key, data, sa.SignatureHex), nil
}

// Result is the aggregate verdict over a panel of signed assessments.
type Result struct {
	CredenceVector map[string]float64 `json:"credence_vector"`
	Rule           string             `json:"rule"`
	InputHashes    []string           `json:"input_hashes"`
	Anomalies      []string           `json:"anomalies,omitempty"`
	AnomalyActions map[string]string  `json:"anomaly_actions,omitempty"`
	Verdict        string             `json:"verdict"`
	Credence       float64            `json:"credence"`
}

// Aggregate averages each promise key's credence across assessments
// ("rule": "mean") and flags "assessor_disagreement" whenever any key's
// max-min spread exceeds threshold (DefaultDisagreementThreshold when
// threshold <= 0). A flagged panel always resolves to a red, 0.5-credence
// verdict pending human adjudication rather than trusting the mean.
func Aggregate(assessments []Signed, threshold float64) Result {
	if threshold <= 0 {
		threshold = DefaultDisagreementThreshold
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	mins := map[string]float64{}
	maxs := map[string]float64{}
	for _, a := range assessments {
		for k, v := range a.CredenceVector {
			sums[k] += v
			counts[k]++
			if cur, ok := mins[k]; !ok || v < cur {
				mins[k] = v
			}
			if cur, ok := maxs[k]; !ok || v > cur {
				maxs[k] = v
			}
		}
	}

	mean := make(map[string]float64, len(sums))
	disagreement := false
	for k, sum := range sums {
		mean[k] = sum / float64(counts[k])
		if maxs[k]-mins[k] > threshold {
			disagreement = true
		}
	}

	hashes := make([]string, len(assessments))
	for i, a := range assessments {
		hashes[i] = a.InputSHA256
	}
	sort.Strings(hashes)

	result := Result{CredenceVector: mean, Rule: "mean", InputHashes: hashes}
	if disagreement {
		result.Anomalies = []string{"assessor_disagreement"}
		result.AnomalyActions = map[string]string{"assessor_disagreement": "Escalate to a human adjudicator."}
		result.Verdict = "red"
		result.Credence = 0.5
		return result
	}

	result.Verdict = "green"
	result.Credence = meanOf(mean)
	if result.Credence < 0.5 {
		result.Verdict = "red"
	}
	return result
}

func meanOf(m map[string]float64) float64 {
	if len(m) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m {
		sum += v
	}
	return sum / float64(len(m))
}
