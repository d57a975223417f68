package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/locforge/locforge/internal/model"
)

func open(t *testing.T, dir string) *Store {
	t.Helper()
	st, err := Open(dir, "proj")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return st
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := open(t, dir)

	st.Set(Record{Key: "Welcome", Language: "de", Hash: "h1", Version: 3, Origin: model.OriginCloud})
	st.SetConflict(Conflict{Key: "Items", Language: "fr", Kind: "both-modified"})
	if err := st.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	st2 := open(t, dir)
	defer st2.Close()

	rec, ok := st2.Get("Welcome", "de", model.PluralNone, model.OriginCloud)
	if !ok || rec.Hash != "h1" || rec.Version != 3 {
		t.Errorf("record = %+v, %v", rec, ok)
	}
	if !st2.HasConflict("Items", "fr", model.PluralNone) {
		t.Error("conflict should survive a round-trip")
	}
	if rec.LastSyncedAt.IsZero() {
		t.Error("Set should stamp LastSyncedAt")
	}
}

func TestLockContention(t *testing.T) {
	dir := t.TempDir()
	st := open(t, dir)
	defer st.Close()

	if _, err := Open(dir, "proj"); err == nil {
		t.Fatal("a second Open on the same directory should fail while locked")
	}
}

func TestLockReleasedOnClose(t *testing.T) {
	dir := t.TempDir()
	st := open(t, dir)
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	st2 := open(t, dir)
	st2.Close()
}

func TestCorruptStateStartsFresh(t *testing.T) {
	dir := t.TempDir()
	metaDir := filepath.Join(dir, DirName)
	if err := os.MkdirAll(metaDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, stateFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := open(t, dir)
	defer st.Close()
	if st.Len() != 0 {
		t.Errorf("corrupt state should start empty, got %d records", st.Len())
	}
}

func TestDifferentProjectResetsState(t *testing.T) {
	dir := t.TempDir()
	st := open(t, dir)
	st.Set(Record{Key: "Welcome", Language: "de", Hash: "h1", Version: 1, Origin: model.OriginCloud})
	if err := st.Save(); err != nil {
		t.Fatal(err)
	}
	st.Close()

	other, err := Open(dir, "other-proj")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer other.Close()
	if other.Len() != 0 {
		t.Error("records from another project must not leak")
	}
}

func TestRecordsKeyedPerTuple(t *testing.T) {
	st := open(t, t.TempDir())
	defer st.Close()

	st.Set(Record{Key: "items", Language: "de", PluralForm: model.PluralOne, Hash: "a", Origin: model.OriginCloud})
	st.Set(Record{Key: "items", Language: "de", PluralForm: model.PluralOther, Hash: "b", Origin: model.OriginCloud})
	st.Set(Record{Key: "items", Language: "de", Hash: "c", Origin: model.OriginGitHub})

	if st.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", st.Len())
	}
	cloud := st.All(model.OriginCloud)
	if len(cloud) != 2 {
		t.Errorf("All(cloud) = %d records", len(cloud))
	}
	if cloud[0].PluralForm != model.PluralOne {
		t.Errorf("All should order by plural form, got %v first", cloud[0].PluralForm)
	}

	st.Delete("items", "de", model.PluralOne, model.OriginCloud)
	if _, ok := st.Get("items", "de", model.PluralOne, model.OriginCloud); ok {
		t.Error("deleted record still present")
	}
	if _, ok := st.Get("items", "de", model.PluralOther, model.OriginCloud); !ok {
		t.Error("sibling form should survive the delete")
	}
}

func TestConflictLifecycle(t *testing.T) {
	st := open(t, t.TempDir())
	defer st.Close()

	local := "mine"
	st.SetConflict(Conflict{Key: "b", Language: "de", Kind: "both-modified", LocalValue: &local})
	st.SetConflict(Conflict{Key: "a", Language: "de", Kind: "both-modified"})

	conflicts := st.Conflicts()
	if len(conflicts) != 2 || conflicts[0].Key != "a" {
		t.Fatalf("Conflicts() = %+v", conflicts)
	}
	if conflicts[1].DetectedAt.IsZero() {
		t.Error("SetConflict should stamp DetectedAt")
	}

	c, ok := st.GetConflict("b", "de", model.PluralNone)
	if !ok || c.LocalValue == nil || *c.LocalValue != "mine" {
		t.Errorf("GetConflict = %+v, %v", c, ok)
	}

	st.ResolveConflict("b", "de", model.PluralNone)
	if st.HasConflict("b", "de", model.PluralNone) {
		t.Error("resolved conflict still blocks")
	}
	if !st.HasConflict("a", "de", model.PluralNone) {
		t.Error("unrelated conflict was cleared")
	}
}
