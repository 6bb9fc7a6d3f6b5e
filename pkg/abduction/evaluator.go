package abduction

// Evaluator computes a slot's {p, A, B, C, D, evidence_refs} record from
// the evidence a Searcher has already narrowed to that node_key (§4.5).
type Evaluator interface {
	Evaluate(nodeKey string, evidence []EvidenceItem) SlotRecord
}

// DefaultEvaluator combines weighted supporting and defeating evidence
// into a single probability. A is the corroboration mass, B the
// contradiction mass, C the count of corroborating items (coverage), D a
// defeater-present flag — the four components §4.5 names without
// prescribing their derivation.
type DefaultEvaluator struct {
	// DefeatDiscount scales how much contradiction mass subtracts from
	// corroboration mass when computing p. Defaults to 1.0 (full weight)
	// when zero.
	DefeatDiscount float64
}

func (e DefaultEvaluator) Evaluate(nodeKey string, evidence []EvidenceItem) SlotRecord {
	discount := e.DefeatDiscount
	if discount == 0 {
		discount = 1.0
	}

	var supportSum, supportWeight, defeatSum, defeatWeight float64
	var supportCount, defeatCount int
	refs := make([]string, 0, len(evidence))

	for _, item := range evidence {
		refs = append(refs, item.EvidenceID)
		w := item.Weight
		if w <= 0 {
			w = 1
		}
		if item.Defeats {
			defeatSum += item.Value * w
			defeatWeight += w
			defeatCount++
		} else {
			supportSum += item.Value * w
			supportWeight += w
			supportCount++
		}
	}

	var a, b float64
	if supportWeight > 0 {
		a = supportSum / supportWeight
	}
	if defeatWeight > 0 {
		b = defeatSum / defeatWeight
	}

	p := clamp01(a - b*discount)
	c := float64(supportCount)
	d := 0.0
	if defeatCount > 0 {
		d = 1.0
	}

	// k (slot support) approaches p as corroborating coverage grows and is
	// zero with no corroborating evidence at all, regardless of p.
	k := p * (1 - 1/(1+c))

	return SlotRecord{
		P:            p,
		K:            k,
		A:            a,
		B:            b,
		C:            c,
		D:            d,
		EvidenceRefs: refs,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
