package sync

// Decision is the outcome of the three-way classifier.
type Decision string

const (
	// DecisionNoOp means local and remote already converged; the base
	// record is updated silently and nothing else happens.
	DecisionNoOp Decision = "noop"

	// DecisionApplyRemote means the local side is unchanged since the
	// last sync, so the remote change applies cleanly.
	DecisionApplyRemote Decision = "apply-remote"

	// DecisionKeepLocal means the remote side is unchanged since the
	// last sync, so the local change stands (and may push normally).
	DecisionKeepLocal Decision = "keep-local"

	// DecisionConflict means base, local and remote all differ: a true
	// conflict that is never resolved silently.
	DecisionConflict Decision = "conflict"
)

// Classify runs the canonical three-way merge decision table over one
// tracked value. Arguments are content hashes (or any equality-faithful
// encoding of content); nil represents an absent or deleted value, so
// deletions flow through the same table as modifications.
//
// Without a common ancestor (base == nil) a divergent pair is always a
// true conflict; no winner is guessed.
func Classify(base, local, remote *string) Decision {
	switch {
	case eq(local, remote):
		return DecisionNoOp
	case base == nil:
		return DecisionConflict
	case eq(local, base):
		return DecisionApplyRemote
	case eq(remote, base):
		return DecisionKeepLocal
	default:
		return DecisionConflict
	}
}

func eq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
