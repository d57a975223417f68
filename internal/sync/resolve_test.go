package sync

import (
	"testing"

	"github.com/locforge/locforge/internal/hash"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/state"
)

// conflictedState seeds a store and working copy with one both-modified
// conflict: base "Hallo" (v1), local "Moin", remote "Servus" (v2).
func conflictedState(t *testing.T) (map[string]*model.ResourceFile, *state.Store, state.Conflict) {
	t.Helper()
	st := newTestState(t)
	cloudRecord(st, "Welcome", "de", "Hallo", 1)
	files := filesWith(fileWith("de", model.ResourceEntry{Key: "Welcome", Value: "Moin"}))

	c := state.Conflict{
		Key:           "Welcome",
		Language:      "de",
		Kind:          string(ConflictBothModified),
		LocalValue:    sp("Moin"),
		RemoteValue:   sp("Servus"),
		RemoteVersion: 2,
	}
	st.SetConflict(c)
	return files, st, c
}

func TestResolveLocalKeepLocal(t *testing.T) {
	files, st, c := conflictedState(t)

	if err := ResolveLocal(files, st, c, ResolutionKeepLocal, ""); err != nil {
		t.Fatalf("ResolveLocal() error = %v", err)
	}

	entry, _ := files["de"].First("Welcome")
	if entry.Value != "Moin" {
		t.Errorf("keep-local must not touch the working copy, got %q", entry.Value)
	}
	if st.HasConflict("Welcome", "de", model.PluralNone) {
		t.Error("conflict marker should be cleared")
	}

	// Baseline moves to the remote side so the next push plans an
	// overwrite with the current remote version as its base.
	rec, ok := st.Get("Welcome", "de", model.PluralNone, model.OriginCloud)
	if !ok || rec.Version != 2 || rec.Hash != hash.Content("Servus", "") {
		t.Fatalf("record = %+v, %v", rec, ok)
	}
	cs, blocked := NewPushPlanner().Plan("proj", []*model.ResourceFile{files["de"]}, st)
	if len(blocked) != 0 || len(cs.Changes) != 1 {
		t.Fatalf("plan = %+v blocked = %v", cs.Changes, blocked)
	}
	if cs.Changes[0].Kind != ChangeModified || cs.Changes[0].BaseVersion != 2 {
		t.Errorf("next push = %+v, want modified against version 2", cs.Changes[0])
	}
}

func TestResolveLocalKeepRemote(t *testing.T) {
	files, st, c := conflictedState(t)

	if err := ResolveLocal(files, st, c, ResolutionKeepRemote, ""); err != nil {
		t.Fatalf("ResolveLocal() error = %v", err)
	}

	entry, _ := files["de"].First("Welcome")
	if entry.Value != "Servus" {
		t.Errorf("keep-remote should rewrite the working copy, got %q", entry.Value)
	}
	rec, _ := st.Get("Welcome", "de", model.PluralNone, model.OriginCloud)
	if rec.Version != 2 {
		t.Errorf("baseline version = %d, want 2", rec.Version)
	}

	// Nothing diverges anymore; the next push is empty.
	cs, _ := NewPushPlanner().Plan("proj", []*model.ResourceFile{files["de"]}, st)
	if !cs.Empty() {
		t.Errorf("next push should be empty, got %+v", cs.Changes)
	}
}

func TestResolveLocalManual(t *testing.T) {
	files, st, c := conflictedState(t)

	if err := ResolveLocal(files, st, c, ResolutionManual, "Grüß dich"); err != nil {
		t.Fatalf("ResolveLocal() error = %v", err)
	}

	entry, _ := files["de"].First("Welcome")
	if entry.Value != "Grüß dich" {
		t.Errorf("manual value not written, got %q", entry.Value)
	}

	// Manual behaves like keep-local: baseline at the remote version,
	// working copy diverges, next push carries the manual value.
	cs, _ := NewPushPlanner().Plan("proj", []*model.ResourceFile{files["de"]}, st)
	if len(cs.Changes) != 1 || cs.Changes[0].Value != "Grüß dich" {
		t.Fatalf("plan = %+v", cs.Changes)
	}
}

func TestResolveLocalUsesRemoteComment(t *testing.T) {
	st := newTestState(t)
	st.Set(state.Record{
		Key: "Welcome", Language: "de",
		Hash: hash.Content("Hallo", "alt"), Version: 1, Origin: model.OriginCloud,
	})
	files := filesWith(fileWith("de", model.ResourceEntry{Key: "Welcome", Value: "Moin", Comment: "alt"}))
	c := state.Conflict{
		Key:           "Welcome",
		Language:      "de",
		Kind:          string(ConflictBothModified),
		LocalValue:    sp("Moin"),
		RemoteValue:   sp("Servus"),
		RemoteComment: "neu",
		RemoteVersion: 2,
	}
	st.SetConflict(c)

	if err := ResolveLocal(files, st, c, ResolutionKeepRemote, ""); err != nil {
		t.Fatalf("ResolveLocal() error = %v", err)
	}

	entry, _ := files["de"].First("Welcome")
	if entry.Value != "Servus" || entry.Comment != "neu" {
		t.Errorf("working copy = (%q, %q), want the remote value and comment", entry.Value, entry.Comment)
	}
	// The baseline hash must equal the cloud's stored hash, which covers
	// the remote comment; otherwise the next push re-plans the tuple.
	rec, _ := st.Get("Welcome", "de", model.PluralNone, model.OriginCloud)
	if rec.Hash != hash.Content("Servus", "neu") {
		t.Errorf("baseline hash = %q, want hash of remote value and comment", rec.Hash)
	}
	cs, _ := NewPushPlanner().Plan("proj", []*model.ResourceFile{files["de"]}, st)
	if !cs.Empty() {
		t.Errorf("next push should be empty, got %+v", cs.Changes)
	}
}

func TestResolveLocalKeepLocalBaselinesRemoteComment(t *testing.T) {
	st := newTestState(t)
	st.Set(state.Record{
		Key: "Welcome", Language: "de",
		Hash: hash.Content("Hallo", "alt"), Version: 1, Origin: model.OriginCloud,
	})
	files := filesWith(fileWith("de", model.ResourceEntry{Key: "Welcome", Value: "Moin", Comment: "alt"}))
	c := state.Conflict{
		Key:           "Welcome",
		Language:      "de",
		Kind:          string(ConflictBothModified),
		LocalValue:    sp("Moin"),
		RemoteValue:   sp("Servus"),
		RemoteComment: "neu",
		RemoteVersion: 2,
	}
	st.SetConflict(c)

	if err := ResolveLocal(files, st, c, ResolutionKeepLocal, ""); err != nil {
		t.Fatalf("ResolveLocal() error = %v", err)
	}

	rec, _ := st.Get("Welcome", "de", model.PluralNone, model.OriginCloud)
	if rec.Hash != hash.Content("Servus", "neu") {
		t.Errorf("baseline hash = %q, want the cloud's stored hash", rec.Hash)
	}
	// The local value diverges from that baseline, so the next push
	// carries it against the current remote version.
	cs, _ := NewPushPlanner().Plan("proj", []*model.ResourceFile{files["de"]}, st)
	if len(cs.Changes) != 1 || cs.Changes[0].Kind != ChangeModified || cs.Changes[0].BaseVersion != 2 {
		t.Fatalf("plan = %+v, want one modification against version 2", cs.Changes)
	}
}

func TestResolveLocalKeepRemoteDeletion(t *testing.T) {
	st := newTestState(t)
	cloudRecord(st, "Gone", "de", "Hallo", 1)
	files := filesWith(fileWith("de", model.ResourceEntry{Key: "Gone", Value: "Moin"}))
	c := state.Conflict{
		Key:        "Gone",
		Language:   "de",
		Kind:       string(ConflictDeletedRemotely),
		LocalValue: sp("Moin"),
	}
	st.SetConflict(c)

	if err := ResolveLocal(files, st, c, ResolutionKeepRemote, ""); err != nil {
		t.Fatalf("ResolveLocal() error = %v", err)
	}
	if _, ok := files["de"].First("Gone"); ok {
		t.Error("entry should be deleted from the working copy")
	}
	if _, ok := st.Get("Gone", "de", model.PluralNone, model.OriginCloud); ok {
		t.Error("record should be dropped")
	}
}

func TestResolveLocalKeepLocalAfterRemoteDeletion(t *testing.T) {
	st := newTestState(t)
	cloudRecord(st, "Gone", "de", "Hallo", 1)
	files := filesWith(fileWith("de", model.ResourceEntry{Key: "Gone", Value: "Moin"}))
	c := state.Conflict{
		Key:        "Gone",
		Language:   "de",
		Kind:       string(ConflictDeletedRemotely),
		LocalValue: sp("Moin"),
	}
	st.SetConflict(c)

	if err := ResolveLocal(files, st, c, ResolutionKeepLocal, ""); err != nil {
		t.Fatalf("ResolveLocal() error = %v", err)
	}

	// The record is gone, so the next push re-adds the local value.
	cs, _ := NewPushPlanner().Plan("proj", []*model.ResourceFile{files["de"]}, st)
	if len(cs.Changes) != 1 || cs.Changes[0].Kind != ChangeAdded {
		t.Fatalf("plan = %+v", cs.Changes)
	}
}

func TestResolveLocalRejectsUnknownChoice(t *testing.T) {
	files, st, c := conflictedState(t)
	if err := ResolveLocal(files, st, c, ResolutionChoice("coin-flip"), ""); err == nil {
		t.Fatal("expected an error for an unknown choice")
	}
	if !st.HasConflict("Welcome", "de", model.PluralNone) {
		t.Error("a failed resolution must leave the conflict in place")
	}
}
