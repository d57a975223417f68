package sync

import "testing"

func sp(s string) *string { return &s }

func TestClassify(t *testing.T) {
	tests := []struct {
		name                string
		base, local, remote *string
		want                Decision
	}{
		{"all equal", sp("a"), sp("a"), sp("a"), DecisionNoOp},
		{"converged edit", sp("a"), sp("b"), sp("b"), DecisionNoOp},
		{"both deleted", sp("a"), nil, nil, DecisionNoOp},
		{"remote changed only", sp("a"), sp("a"), sp("b"), DecisionApplyRemote},
		{"remote deleted only", sp("a"), sp("a"), nil, DecisionApplyRemote},
		{"remote added", nil, nil, sp("b"), DecisionApplyRemote},
		{"local changed only", sp("a"), sp("b"), sp("a"), DecisionKeepLocal},
		{"local deleted only", sp("a"), nil, sp("a"), DecisionKeepLocal},
		{"local added", nil, sp("b"), nil, DecisionKeepLocal},
		{"both changed differently", sp("a"), sp("b"), sp("c"), DecisionConflict},
		{"local deleted remote changed", sp("a"), nil, sp("b"), DecisionConflict},
		{"remote deleted local changed", sp("a"), sp("b"), nil, DecisionConflict},
		{"no ancestor divergent", nil, sp("b"), sp("c"), DecisionConflict},
		{"no ancestor identical", nil, sp("b"), sp("b"), DecisionNoOp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.base, tt.local, tt.remote); got != tt.want {
				t.Errorf("Classify(%v, %v, %v) = %v, want %v",
					strOrNil(tt.base), strOrNil(tt.local), strOrNil(tt.remote), got, tt.want)
			}
		})
	}
}

// The classifier must never guess a winner: a divergent pair without a
// common ancestor is a conflict even when one side deleted.
func TestClassifyNoAncestorNeverGuesses(t *testing.T) {
	if got := Classify(nil, sp("local"), sp("remote")); got != DecisionConflict {
		t.Errorf("divergent pair without base = %v, want conflict", got)
	}
}

func strOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
