package abduction

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"

	"github.com/wardenlabs/warden/pkg/promise"
)

// Session runs the abductive reasoning contract of §4.5 over a set of
// roots, a required-slot roster, and an evidence set.
type Session struct {
	Decomposer Decomposer
	Evaluator  Evaluator
	Searcher   Searcher
	Sink       AuditSink

	terminationEnv *cel.Env
}

// New builds a Session with the supplied collaborators. Passing nil for
// any of Decomposer/Evaluator/Searcher/AuditSink installs the default
// implementation.
func New(d Decomposer, e Evaluator, s Searcher, sink AuditSink) *Session {
	if d == nil {
		d = DefaultDecomposer{}
	}
	if e == nil {
		e = DefaultEvaluator{}
	}
	if s == nil {
		s = DefaultSearcher{}
	}
	if sink == nil {
		sink = &InMemorySink{}
	}
	return &Session{Decomposer: d, Evaluator: e, Searcher: s, Sink: sink}
}

// Run evaluates every root against the slot roster and evidence set,
// producing the ledger, per-root diagnostics, and residual masses.
// Slots and evidence are processed in a canonical sort order so that
// reordering either input before the call never changes the result
// (Testable Property "permutation invariance", §8).
func (s *Session) Run(roots []Root, params promise.AbductionParams, slots []promise.RequiredSlot, evidence []EvidenceItem) (Result, error) {
	sortedRoots := append([]Root(nil), roots...)
	sort.Slice(sortedRoots, func(i, j int) bool { return sortedRoots[i].ID < sortedRoots[j].ID })

	sortedSlots := append([]promise.RequiredSlot(nil), slots...)
	sort.Slice(sortedSlots, func(i, j int) bool {
		if sortedSlots[i].SlotKey != sortedSlots[j].SlotKey {
			return sortedSlots[i].SlotKey < sortedSlots[j].SlotKey
		}
		return sortedSlots[i].Role < sortedSlots[j].Role
	})

	sortedEvidence := append([]EvidenceItem(nil), evidence...)
	sort.Slice(sortedEvidence, func(i, j int) bool { return sortedEvidence[i].EvidenceID < sortedEvidence[j].EvidenceID })

	if params.TerminationCEL != "" {
		env, err := cel.NewEnv(
			cel.Variable("p", cel.DoubleType),
			cel.Variable("k", cel.DoubleType),
			cel.Variable("credits_spent", cel.IntType),
		)
		if err != nil {
			return Result{}, fmt.Errorf("abduction: build termination env: %w", err)
		}
		s.terminationEnv = env
	}

	ledger := make(Ledger, len(sortedRoots))
	roots2 := make(map[string]RootDiagnostics, len(sortedRoots))
	slotTrace := make(map[string][]SlotRecord, len(sortedRoots))
	var events []Event
	seq := 0
	emit := func(eventType string, payload interface{}) {
		e := Event{Seq: seq, Type: eventType, Payload: payload}
		seq++
		events = append(events, e)
		s.Sink.Emit(e)
	}

	var hNOASum, hUNDSum float64

	for _, root := range sortedRoots {
		claims := s.Decomposer.Decompose(root, sortedSlots)
		// A zero or negative CreditBudget means the policy left the knob
		// unconfigured, not "terminate immediately" — only a positive budget
		// enforces the credit-exhaustion cutoff below.
		credits := params.CreditBudget
		creditLimited := credits > 0

		var records []SlotRecord
		terminated := false
		for _, claim := range claims {
			if terminated {
				break
			}
			relevant := s.Searcher.Search(claim.NodeKey, sortedEvidence)
			rec := s.Evaluator.Evaluate(claim.NodeKey, relevant)
			rec.SlotKey = claim.SlotKey
			rec.Role = claim.Role
			records = append(records, rec)
			if creditLimited {
				credits--
			}

			emit("slot_evaluated", map[string]interface{}{
				"root_id":  root.ID,
				"slot_key": rec.SlotKey,
				"role":     rec.Role,
				"p":        rec.P,
				"k":        rec.K,
			})

			if creditLimited && credits <= 0 {
				terminated = true
			}

			if !terminated && s.terminationEnv != nil {
				stop, err := s.evaluateTermination(params.TerminationCEL, rec.P, rec.K, len(records))
				if err != nil {
					return Result{}, fmt.Errorf("abduction: termination predicate: %w", err)
				}
				if stop {
					terminated = true
				}
			}
		}

		credence := aggregateCredence(records, params)
		kRoot := aggregateSupport(records, params)
		weakest := weakestSlot(records)
		defeaters := defeaterRefs(records, sortedEvidence)

		ledger[root.ID] = credence
		roots2[root.ID] = RootDiagnostics{
			SupportK:    kRoot,
			WeakestSlot: weakest,
			Defeaters:   defeaters,
		}
		slotTrace[root.ID] = records

		emit("root_aggregated", map[string]interface{}{
			"root_id":  root.ID,
			"credence": credence,
			"k_root":   kRoot,
		})

		noa, und := residualMasses(records, credence, params)
		hNOASum += noa
		hUNDSum += und
	}

	if n := float64(len(sortedRoots)); n > 0 {
		hNOASum /= n
		hUNDSum /= n
	}

	emit("session_completed", map[string]interface{}{
		"root_count": len(sortedRoots),
		"h_noa":      hNOASum,
		"h_und":      hUNDSum,
	})

	return Result{
		Ledger:    ledger,
		Roots:     roots2,
		HNOA:      hNOASum,
		HUND:      hUNDSum,
		Events:    events,
		SlotTrace: slotTrace,
	}, nil
}

func (s *Session) evaluateTermination(expr string, p, k float64, creditsSpent int) (bool, error) {
	ast, issues := s.terminationEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := s.terminationEnv.Program(ast)
	if err != nil {
		return false, fmt.Errorf("program: %w", err)
	}
	out, _, err := prg.Eval(map[string]interface{}{
		"p":             p,
		"k":             k,
		"credits_spent": creditsSpent,
	})
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("termination predicate did not return bool")
	}
	return val, nil
}

// aggregateCredence combines per-slot p values into a root credence: NEC
// slots multiply in (any weak necessary slot drags credence down sharply),
// SUFF slots raise an additive ceiling toward 1 via Alpha as the baseline
// weight. The result is commutative and monotone in every slot's p, and
// symmetric under any permutation of same-role slots since it only uses
// product and max.
func aggregateCredence(records []SlotRecord, params promise.AbductionParams) float64 {
	if len(records) == 0 {
		return 0
	}
	necProduct := 1.0
	hasNEC := false
	suffMax := 0.0
	hasSUFF := false
	for _, r := range records {
		switch r.Role {
		case "NEC":
			necProduct *= r.P
			hasNEC = true
		case "SUFF":
			if r.P > suffMax {
				suffMax = r.P
			}
			hasSUFF = true
		}
	}
	if !hasNEC {
		necProduct = 1.0
	}
	alpha := params.Alpha
	if alpha <= 0 {
		alpha = 0.5
	}
	ceiling := 1.0
	if hasSUFF {
		ceiling = alpha + (1-alpha)*suffMax
	}
	return clamp01(necProduct * ceiling)
}

// aggregateSupport mirrors aggregateCredence over the per-slot k values,
// weighted by Beta, and capped at WeightCap (W) per §4.5.
func aggregateSupport(records []SlotRecord, params promise.AbductionParams) float64 {
	if len(records) == 0 {
		return 0
	}
	necProduct := 1.0
	hasNEC := false
	suffMax := 0.0
	hasSUFF := false
	for _, r := range records {
		switch r.Role {
		case "NEC":
			necProduct *= r.K
			hasNEC = true
		case "SUFF":
			if r.K > suffMax {
				suffMax = r.K
			}
			hasSUFF = true
		}
	}
	if !hasNEC {
		necProduct = 1.0
	}
	beta := params.Beta
	if beta <= 0 {
		beta = 0.5
	}
	ceiling := 1.0
	if hasSUFF {
		ceiling = beta + (1-beta)*suffMax
	}
	k := necProduct * ceiling
	if cap := params.WeightCap; cap > 0 && k > cap {
		k = cap
	}
	return clamp01(k)
}

func weakestSlot(records []SlotRecord) *WeakestSlot {
	if len(records) == 0 {
		return nil
	}
	min := records[0]
	for _, r := range records[1:] {
		if r.P < min.P {
			min = r
		}
	}
	return &WeakestSlot{SlotKey: min.SlotKey, P: min.P, K: min.K, EvidenceRefs: min.EvidenceRefs}
}

// defeaterRefs collects, from slots whose evaluator reported contradiction
// mass (D > 0), the refs of evidence items marked Defeats, or the literal
// "underdetermined" sentinel when no slot carried a defeater.
func defeaterRefs(records []SlotRecord, evidence []EvidenceItem) []string {
	defeating := make(map[string]bool)
	for _, e := range evidence {
		if e.Defeats {
			defeating[e.EvidenceID] = true
		}
	}
	var refs []string
	for _, r := range records {
		if r.D > 0 {
			for _, ref := range r.EvidenceRefs {
				if defeating[ref] {
					refs = append(refs, ref)
				}
			}
		}
	}
	sort.Strings(refs)
	if len(refs) == 0 {
		return []string{"underdetermined"}
	}
	return refs
}

// residualMasses derives H_NOA and H_UND from the unclaimed credence mass
// (1 - credence), split between "none of the above" (scaled by GammaNOA)
// and "underdetermined" (scaled by GammaUND, weighted toward the weakest
// slot's proximity to p=0.5, the point of maximal uncertainty), always
// kept so ledger + H_NOA + H_UND <= 1.
func residualMasses(records []SlotRecord, credence float64, params promise.AbductionParams) (noa, und float64) {
	unclaimed := clamp01(1 - credence)
	if unclaimed == 0 {
		return 0, 0
	}
	weakest := weakestSlot(records)
	uncertainty := 0.0
	if weakest != nil {
		uncertainty = 1 - absFloat(2*weakest.P-1)
	}
	gammaNOA := params.GammaNOA
	gammaUND := params.GammaUND
	if gammaNOA == 0 && gammaUND == 0 {
		gammaNOA, gammaUND = 0.5, 0.5
	}
	total := gammaNOA + gammaUND*uncertainty
	if total <= 0 {
		return unclaimed, 0
	}
	if total > 1 {
		total = 1
	}
	noa = unclaimed * (gammaNOA / (gammaNOA + gammaUND*uncertainty + 1e-12)) * total
	und = unclaimed*total - noa
	return clamp01(noa), clamp01(und)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
