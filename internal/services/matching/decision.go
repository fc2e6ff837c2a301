package matching

const (
	DecisionNone      = "none"
	DecisionAuto      = "auto"
	DecisionSuggest   = "suggest"
	DecisionAmbiguous = "ambiguous"
)

type Decision struct {
	Kind       string
	Candidates []Candidate
}

// Decide picks the outcome for candidates ranked best first. Two close
// candidates at or above the suggest threshold are never auto-applied.
func (c Config) Decide(ranked []Candidate) Decision {
	if len(ranked) == 0 {
		return Decision{Kind: DecisionNone}
	}
	top := ranked[0]

	if len(ranked) > 1 {
		second := ranked[1]
		if top.Confidence >= c.SuggestThreshold && second.Confidence >= c.SuggestThreshold &&
			top.Confidence-second.Confidence < c.AmbiguityDelta {
			return Decision{Kind: DecisionAmbiguous, Candidates: []Candidate{top, second}}
		}
	}

	switch {
	case top.Confidence >= c.AutoThreshold:
		return Decision{Kind: DecisionAuto, Candidates: []Candidate{top}}
	case top.Confidence >= c.SuggestThreshold:
		return Decision{Kind: DecisionSuggest, Candidates: []Candidate{top}}
	}
	return Decision{Kind: DecisionNone}
}
