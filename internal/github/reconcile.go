// Package github reconciles GitHub file contents at a commit against
// the cloud store. Per tuple it keeps a "last known GitHub value"
// baseline and runs the three-way table over (baseline, cloud, GitHub):
// clean GitHub edits auto-apply, divergent ones become pending
// conflicts that block the tuple until a human resolves them.
package github

import (
	"context"
	"sort"

	"github.com/locforge/locforge/internal/hash"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/store"
	"github.com/locforge/locforge/internal/sync"
)

// EntryState is the reconciliation state of one tuple.
type EntryState string

const (
	StateInSync      EntryState = "in-sync"
	StateGitHubAhead EntryState = "github-ahead"
	StateCloudAhead  EntryState = "cloud-ahead"
	StateConflicted  EntryState = "conflicted"
)

// Reconciler drives reconciliation passes against the cloud store.
type Reconciler struct {
	store *store.Store
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(st *store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// Plan computes the reconciliation decisions for one commit. It is a
// pure function over its snapshot inputs: the GitHub-side entries of
// the changed files, the languages those files cover (tuples outside
// them are never treated as deleted), the cloud's current values, the
// stored GitHub baselines, and the set of tuples already conflicted.
func Plan(commitSHA string, ghEntries []store.GitHubWrite, coveredLanguages map[string]bool,
	cloud map[sync.EntryRef]sync.RemoteEntry, states map[sync.EntryRef]store.GitHubState,
	pending map[sync.EntryRef]bool) *store.GitHubPlan {

	plan := &store.GitHubPlan{CommitSHA: commitSHA}
	seen := make(map[sync.EntryRef]bool, len(ghEntries))

	sorted := make([]store.GitHubWrite, len(ghEntries))
	copy(sorted, ghEntries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ref.Less(sorted[j].Ref) })

	for _, w := range sorted {
		if seen[w.Ref] {
			continue
		}
		seen[w.Ref] = true

		ghHash := hash.Content(w.Value, w.Comment)
		base := baseHash(states, w.Ref)
		local := cloudHash(cloud, w.Ref)

		if pending[w.Ref] {
			// A conflicted tuple is never auto-applied; it is
			// reevaluated against the new commit and the current cloud
			// value. Convergence dissolves the conflict.
			if local != nil && *local == ghHash {
				plan.Resolved = append(plan.Resolved, w.Ref)
				plan.Converged = append(plan.Converged, w)
				continue
			}
			plan.Conflicts = append(plan.Conflicts, pendingConflict(w.Ref, &w.Value, cloud, states))
			continue
		}

		switch sync.Classify(base, local, &ghHash) {
		case sync.DecisionNoOp:
			plan.Converged = append(plan.Converged, w)
		case sync.DecisionApplyRemote:
			plan.Applies = append(plan.Applies, w)
		case sync.DecisionKeepLocal:
			// GitHub unchanged, cloud ahead; the export path catches up.
		case sync.DecisionConflict:
			plan.Conflicts = append(plan.Conflicts, pendingConflict(w.Ref, &w.Value, cloud, states))
		}
	}

	// Baseline tuples missing from the commit's files were deleted on
	// GitHub.
	for _, ref := range sortedStateRefs(states) {
		if seen[ref] || !coveredLanguages[ref.Language] {
			continue
		}
		st := states[ref]
		base := st.Hash
		local := cloudHash(cloud, ref)

		if pending[ref] {
			if local == nil {
				// Both sides deleted; the disagreement is gone.
				plan.Resolved = append(plan.Resolved, ref)
				plan.Deletes = append(plan.Deletes, ref)
				continue
			}
			plan.Conflicts = append(plan.Conflicts, pendingConflict(ref, nil, cloud, states))
			continue
		}

		switch sync.Classify(&base, local, nil) {
		case sync.DecisionNoOp, sync.DecisionApplyRemote:
			plan.Deletes = append(plan.Deletes, ref)
		case sync.DecisionConflict:
			plan.Conflicts = append(plan.Conflicts, pendingConflict(ref, nil, cloud, states))
		}
	}

	return plan
}

func pendingConflict(ref sync.EntryRef, ghValue *string,
	cloud map[sync.EntryRef]sync.RemoteEntry, states map[sync.EntryRef]store.GitHubState) store.PendingConflict {

	c := store.PendingConflict{Ref: ref, GitHubValue: ghValue}
	if re, ok := cloud[ref]; ok {
		v := re.Value
		c.CloudValue = &v
		c.CloudModifiedAt = re.UpdatedAt
		c.CloudModifiedBy = re.UpdatedBy
	}
	if st, ok := states[ref]; ok {
		v := st.Value
		c.BaseValue = &v
	}
	switch {
	case ghValue == nil:
		c.Kind = sync.ConflictDeletedRemotely
	case c.CloudValue == nil:
		c.Kind = sync.ConflictDeletedLocally
	default:
		c.Kind = sync.ConflictBothModified
	}
	return c
}

// Reconcile loads the store's view of the project, plans against the
// given GitHub entries and applies the plan in one transaction.
func (r *Reconciler) Reconcile(ctx context.Context, projectID, commitSHA string, ghEntries []store.GitHubWrite, coveredLanguages map[string]bool) (*store.GitHubSyncResult, error) {
	cloud, err := r.cloudByRef(ctx, projectID)
	if err != nil {
		return nil, err
	}
	states, err := r.store.GitHubStates(ctx, projectID)
	if err != nil {
		return nil, err
	}
	pending, err := r.pendingByRef(ctx, projectID)
	if err != nil {
		return nil, err
	}

	plan := Plan(commitSHA, ghEntries, coveredLanguages, cloud, states, pending)
	if plan.Empty() {
		logging.Debug("reconciliation is a no-op",
			logging.Project(projectID),
			logging.Source("github"),
		)
		return &store.GitHubSyncResult{}, nil
	}
	return r.store.ApplyGitHubSync(ctx, projectID, plan, "github")
}

// EntryStatus pairs a tuple with its reconciliation state.
type EntryStatus struct {
	Ref   sync.EntryRef `json:"ref"`
	State EntryState    `json:"state"`
}

// States classifies every tuple known to either side without mutating
// anything, for status reporting.
func States(ghEntries []store.GitHubWrite, coveredLanguages map[string]bool,
	cloud map[sync.EntryRef]sync.RemoteEntry, states map[sync.EntryRef]store.GitHubState,
	pending map[sync.EntryRef]bool) []EntryStatus {

	plan := Plan("", ghEntries, coveredLanguages, cloud, states, pending)

	byRef := make(map[sync.EntryRef]EntryState)
	for _, w := range ghEntries {
		byRef[w.Ref] = StateInSync
	}
	for ref := range states {
		if coveredLanguages[ref.Language] {
			byRef[ref] = StateInSync
		}
	}
	for ref := range cloud {
		if coveredLanguages[ref.Language] {
			if _, ok := byRef[ref]; !ok {
				byRef[ref] = StateCloudAhead
			}
		}
	}
	for _, w := range plan.Applies {
		byRef[w.Ref] = StateGitHubAhead
	}
	for _, ref := range plan.Deletes {
		byRef[ref] = StateGitHubAhead
	}
	for _, c := range plan.Conflicts {
		byRef[c.Ref] = StateConflicted
	}

	out := make([]EntryStatus, 0, len(byRef))
	for ref, st := range byRef {
		out = append(out, EntryStatus{Ref: ref, State: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.Less(out[j].Ref) })
	return out
}

func (r *Reconciler) cloudByRef(ctx context.Context, projectID string) (map[sync.EntryRef]sync.RemoteEntry, error) {
	entries, err := r.store.ListTranslations(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make(map[sync.EntryRef]sync.RemoteEntry, len(entries))
	for _, e := range entries {
		out[e.Ref] = e
	}
	return out, nil
}

func (r *Reconciler) pendingByRef(ctx context.Context, projectID string) (map[sync.EntryRef]bool, error) {
	conflicts, err := r.store.ListPendingConflicts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make(map[sync.EntryRef]bool, len(conflicts))
	for _, c := range conflicts {
		out[c.Ref] = true
	}
	return out, nil
}

func baseHash(states map[sync.EntryRef]store.GitHubState, ref sync.EntryRef) *string {
	st, ok := states[ref]
	if !ok {
		return nil
	}
	h := st.Hash
	return &h
}

func cloudHash(cloud map[sync.EntryRef]sync.RemoteEntry, ref sync.EntryRef) *string {
	re, ok := cloud[ref]
	if !ok {
		return nil
	}
	h := re.Hash
	return &h
}

func sortedStateRefs(states map[sync.EntryRef]store.GitHubState) []sync.EntryRef {
	refs := make([]sync.EntryRef, 0, len(states))
	for ref := range states {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs
}

// WritesFromFile flattens a parsed resource file into per-form GitHub
// writes for reconciliation.
func WritesFromFile(f *model.ResourceFile) []store.GitHubWrite {
	var out []store.GitHubWrite
	seen := make(map[sync.EntryRef]bool)
	for _, e := range f.Entries {
		for _, form := range e.Forms() {
			ref := sync.EntryRef{Key: e.Key, Language: f.Language.Code, PluralForm: form.Category}
			if seen[ref] {
				continue
			}
			seen[ref] = true
			out = append(out, store.GitHubWrite{Ref: ref, Value: form.Value, Comment: e.Comment})
		}
	}
	return out
}
