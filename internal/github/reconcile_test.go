package github

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/locforge/locforge/internal/hash"
	"github.com/locforge/locforge/internal/store"
	"github.com/locforge/locforge/internal/sync"
)

func hashOf(value string) string {
	return hash.Content(value, "")
}

func newTestReconciler(t *testing.T) (*Reconciler, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "locforge.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return NewReconciler(s), s
}

func ref(key, lang string) sync.EntryRef {
	return sync.EntryRef{Key: key, Language: lang}
}

func seedCloud(t *testing.T, s *store.Store, key, lang, value string) {
	t.Helper()
	_, err := s.ApplyPush(context.Background(), &sync.ChangeSet{
		ProjectID: "proj", Source: sync.SourceCLI,
		Changes: []sync.EntryChange{{Kind: sync.ChangeAdded, Ref: ref(key, lang), Value: value}},
	}, "seeder")
	if err != nil {
		t.Fatalf("seed push error = %v", err)
	}
}

func reconcile(t *testing.T, r *Reconciler, sha string, writes ...store.GitHubWrite) *store.GitHubSyncResult {
	t.Helper()
	langs := map[string]bool{"": true, "en": true, "de": true}
	res, err := r.Reconcile(context.Background(), "proj", sha, writes, langs)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	return res
}

func cloudEntry(t *testing.T, s *store.Store, r sync.EntryRef) *sync.RemoteEntry {
	t.Helper()
	re, err := s.GetTranslation(context.Background(), "proj", r)
	if err != nil {
		t.Fatalf("GetTranslation() error = %v", err)
	}
	return re
}

// GitHub changes Welcome to "Hello" while the cloud still holds the
// last agreed "Hi": the edit clean-applies with a version bump and no
// pending conflict.
func TestReconcileCleanApply(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()
	seedCloud(t, s, "Welcome", "en", "Hi")

	// First pass establishes the GitHub baseline at "Hi".
	first := reconcile(t, r, "sha-1", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Hi"})
	if first.Converged != 1 || first.Applied != 0 {
		t.Fatalf("baseline pass = %+v, want 1 converged", first)
	}

	res := reconcile(t, r, "sha-2", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Hello"})
	if res.Applied != 1 {
		t.Fatalf("Applied = %d, want 1", res.Applied)
	}
	if res.Conflicts != 0 {
		t.Fatalf("Conflicts = %d, want 0", res.Conflicts)
	}
	if res.HistoryID == "" {
		t.Error("an applied GitHub change must record history")
	}

	re := cloudEntry(t, s, ref("Welcome", "en"))
	if re == nil || re.Value != "Hello" {
		t.Fatalf("cloud = %+v, want Hello", re)
	}
	if re.Version != 2 {
		t.Errorf("version = %d, want 2", re.Version)
	}

	entry, err := s.GetHistory(ctx, "proj", res.HistoryID)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if entry.Source != sync.SourceGitHub {
		t.Errorf("history source = %v, want github", entry.Source)
	}

	conflicts, _ := s.ListPendingConflicts(ctx, "proj")
	if len(conflicts) != 0 {
		t.Errorf("pending conflicts = %d, want 0", len(conflicts))
	}
}

// GitHub and the cloud both diverge from the last agreed value: the
// cloud value stays untouched and a pending conflict carries all three
// versions.
func TestReconcileBothModified(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()
	seedCloud(t, s, "Welcome", "en", "Welcome")
	reconcile(t, r, "sha-1", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Welcome"})

	// Cloud moves to "Hi" through a normal push.
	if _, err := s.ApplyPush(ctx, &sync.ChangeSet{
		ProjectID: "proj", Source: sync.SourceWeb,
		Changes: []sync.EntryChange{{
			Kind: sync.ChangeModified, Ref: ref("Welcome", "en"), Value: "Hi", BaseVersion: 1,
		}},
	}, "editor"); err != nil {
		t.Fatalf("cloud edit error = %v", err)
	}

	res := reconcile(t, r, "sha-2", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Hello"})
	if res.Applied != 0 || res.Conflicts != 1 {
		t.Fatalf("result = %+v, want 0 applied, 1 conflict", res)
	}

	if re := cloudEntry(t, s, ref("Welcome", "en")); re.Value != "Hi" {
		t.Errorf("cloud = %q, want Hi (true conflicts are never auto-resolved)", re.Value)
	}

	conflicts, _ := s.ListPendingConflicts(ctx, "proj")
	if len(conflicts) != 1 {
		t.Fatalf("pending conflicts = %d, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.Kind != sync.ConflictBothModified {
		t.Errorf("Kind = %v, want both-modified", c.Kind)
	}
	if c.GitHubValue == nil || *c.GitHubValue != "Hello" {
		t.Errorf("GitHubValue = %v, want Hello", c.GitHubValue)
	}
	if c.CloudValue == nil || *c.CloudValue != "Hi" {
		t.Errorf("CloudValue = %v, want Hi", c.CloudValue)
	}
	if c.BaseValue == nil || *c.BaseValue != "Welcome" {
		t.Errorf("BaseValue = %v, want Welcome", c.BaseValue)
	}
	if c.CommitSHA != "sha-2" {
		t.Errorf("CommitSHA = %q, want sha-2", c.CommitSHA)
	}
}

// A tuple with no GitHub baseline (first-ever sync) where both sides
// hold different values is always a true conflict: there is no common
// ancestor to arbitrate.
func TestReconcileNoBaseIsConflict(t *testing.T) {
	r, s := newTestReconciler(t)
	seedCloud(t, s, "Welcome", "en", "Hi")

	res := reconcile(t, r, "sha-1", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Hello"})
	if res.Conflicts != 1 || res.Applied != 0 {
		t.Fatalf("result = %+v, want 1 conflict", res)
	}
	conflicts, _ := s.ListPendingConflicts(context.Background(), "proj")
	if len(conflicts) != 1 || conflicts[0].BaseValue != nil {
		t.Errorf("conflict = %+v, want nil base value", conflicts)
	}
}

// A GitHub-only addition with no cloud counterpart clean-applies.
func TestReconcileGitHubAddition(t *testing.T) {
	r, s := newTestReconciler(t)

	res := reconcile(t, r, "sha-1", store.GitHubWrite{Ref: ref("NewKey", "en"), Value: "fresh"})
	if res.Applied != 1 {
		t.Fatalf("Applied = %d, want 1", res.Applied)
	}
	re := cloudEntry(t, s, ref("NewKey", "en"))
	if re == nil || re.Value != "fresh" || re.Version != 1 {
		t.Errorf("cloud = %+v, want (fresh, 1)", re)
	}
}

func TestReconcileDeletion(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()
	seedCloud(t, s, "Old", "en", "value")
	reconcile(t, r, "sha-1", store.GitHubWrite{Ref: ref("Old", "en"), Value: "value"})

	// The next commit no longer contains the key.
	res := reconcile(t, r, "sha-2")
	if res.Deleted != 1 {
		t.Fatalf("Deleted = %d, want 1", res.Deleted)
	}
	if re := cloudEntry(t, s, ref("Old", "en")); re != nil {
		t.Errorf("cloud entry survives GitHub deletion: %+v", re)
	}

	states, _ := s.GitHubStates(ctx, "proj")
	if len(states) != 0 {
		t.Errorf("github baselines = %d, want 0", len(states))
	}
}

func TestReconcileDeletedRemotelyModifiedLocally(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()
	seedCloud(t, s, "Old", "en", "value")
	reconcile(t, r, "sha-1", store.GitHubWrite{Ref: ref("Old", "en"), Value: "value"})

	if _, err := s.ApplyPush(ctx, &sync.ChangeSet{
		ProjectID: "proj", Source: sync.SourceCLI,
		Changes: []sync.EntryChange{{
			Kind: sync.ChangeModified, Ref: ref("Old", "en"), Value: "edited", BaseVersion: 1,
		}},
	}, "editor"); err != nil {
		t.Fatalf("cloud edit error = %v", err)
	}

	res := reconcile(t, r, "sha-2")
	if res.Conflicts != 1 || res.Deleted != 0 {
		t.Fatalf("result = %+v, want 1 conflict, 0 deleted", res)
	}
	conflicts, _ := s.ListPendingConflicts(ctx, "proj")
	if len(conflicts) != 1 || conflicts[0].Kind != sync.ConflictDeletedRemotely {
		t.Fatalf("conflicts = %+v, want deleted-remotely", conflicts)
	}
	if re := cloudEntry(t, s, ref("Old", "en")); re == nil || re.Value != "edited" {
		t.Errorf("cloud = %+v, want edited (untouched)", re)
	}
}

// A conflicted tuple is reevaluated on the next pass: if the cloud
// value meanwhile converged with GitHub, the conflict dissolves;
// otherwise it is refreshed, never auto-applied.
func TestReconcileReevaluatesPendingConflict(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()
	seedCloud(t, s, "Welcome", "en", "Hi")
	reconcile(t, r, "sha-1", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Welcome"})

	conflicts, _ := s.ListPendingConflicts(ctx, "proj")
	if len(conflicts) != 1 {
		t.Fatalf("setup: pending conflicts = %d, want 1", len(conflicts))
	}

	// Cloud unchanged, GitHub still different: the conflict is
	// refreshed with the new commit, not applied.
	res := reconcile(t, r, "sha-2", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Hey"})
	if res.Applied != 0 || res.Conflicts != 1 {
		t.Fatalf("refresh pass = %+v, want only a conflict", res)
	}
	conflicts, _ = s.ListPendingConflicts(ctx, "proj")
	if len(conflicts) != 1 || *conflicts[0].GitHubValue != "Hey" {
		t.Fatalf("conflict not refreshed: %+v", conflicts)
	}

	// GitHub converges onto the cloud value: conflict dissolves.
	res = reconcile(t, r, "sha-3", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Hi"})
	if res.Resolved != 1 {
		t.Fatalf("Resolved = %d, want 1", res.Resolved)
	}
	conflicts, _ = s.ListPendingConflicts(ctx, "proj")
	if len(conflicts) != 0 {
		t.Errorf("pending conflicts = %d, want 0", len(conflicts))
	}
}

// Reconciliation is idempotent: delivering the same commit twice makes
// no further changes and records no further history.
func TestReconcileIdempotent(t *testing.T) {
	r, s := newTestReconciler(t)
	ctx := context.Background()
	seedCloud(t, s, "Welcome", "en", "Hi")
	reconcile(t, r, "sha-1", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Hi"})
	reconcile(t, r, "sha-2", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Hello"})

	before, _ := s.ListHistory(ctx, "proj", 0)
	res := reconcile(t, r, "sha-2", store.GitHubWrite{Ref: ref("Welcome", "en"), Value: "Hello"})
	if res.Applied != 0 || res.Conflicts != 0 {
		t.Fatalf("replay = %+v, want no-op", res)
	}
	after, _ := s.ListHistory(ctx, "proj", 0)
	if len(after) != len(before) {
		t.Errorf("history grew on replay: %d -> %d", len(before), len(after))
	}
	if re := cloudEntry(t, s, ref("Welcome", "en")); re.Version != 2 {
		t.Errorf("version = %d, want 2 (no bump on replay)", re.Version)
	}
}

// Tuples in languages not covered by the commit's files must never be
// treated as deleted.
func TestReconcileUncoveredLanguageUntouched(t *testing.T) {
	r, s := newTestReconciler(t)
	seedCloud(t, s, "Welcome", "de", "Willkommen")
	langs := map[string]bool{"de": true}
	if _, err := r.Reconcile(context.Background(), "proj", "sha-1",
		[]store.GitHubWrite{{Ref: ref("Welcome", "de"), Value: "Willkommen"}}, langs); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	// Next commit only touches the English file.
	enOnly := map[string]bool{"en": true}
	res, err := r.Reconcile(context.Background(), "proj", "sha-2", nil, enOnly)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.Deleted != 0 || res.Conflicts != 0 {
		t.Fatalf("result = %+v, want untouched", res)
	}
	if re := cloudEntry(t, s, ref("Welcome", "de")); re == nil {
		t.Error("German entry deleted by an English-only commit")
	}
}

func TestStates(t *testing.T) {
	gh := []store.GitHubWrite{
		{Ref: ref("applied", "en"), Value: "new"},
		{Ref: ref("insync", "en"), Value: "same"},
	}
	langs := map[string]bool{"en": true}
	cloud := map[sync.EntryRef]sync.RemoteEntry{
		ref("insync", "en"):    {Ref: ref("insync", "en"), Value: "same", Hash: hashOf("same")},
		ref("cloudonly", "en"): {Ref: ref("cloudonly", "en"), Value: "local", Hash: hashOf("local")},
	}
	states := map[sync.EntryRef]store.GitHubState{
		ref("insync", "en"): {Ref: ref("insync", "en"), Hash: hashOf("same"), Value: "same"},
	}

	got := States(gh, langs, cloud, states, nil)
	want := map[sync.EntryRef]EntryState{
		ref("applied", "en"):   StateGitHubAhead,
		ref("insync", "en"):    StateInSync,
		ref("cloudonly", "en"): StateCloudAhead,
	}
	if len(got) != len(want) {
		t.Fatalf("States() = %d entries, want %d", len(got), len(want))
	}
	for _, st := range got {
		if want[st.Ref] != st.State {
			t.Errorf("state[%v] = %v, want %v", st.Ref, st.State, want[st.Ref])
		}
	}
}
