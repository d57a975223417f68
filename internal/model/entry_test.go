package model

import (
	"reflect"
	"testing"
)

func TestPluralFormsSetCanonicalOrder(t *testing.T) {
	var pf PluralForms
	pf = pf.Set(PluralOther, "%d items")
	pf = pf.Set(PluralOne, "1 item")
	pf = pf.Set(PluralFew, "%d itemy")

	got := make([]PluralCategory, len(pf))
	for i, f := range pf {
		got[i] = f.Category
	}
	want := []PluralCategory{PluralOne, PluralFew, PluralOther}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestPluralFormsSetReplacesInPlace(t *testing.T) {
	pf := PluralForms{{Category: PluralOne, Value: "old"}}
	pf = pf.Set(PluralOne, "new")
	if len(pf) != 1 {
		t.Fatalf("len = %d", len(pf))
	}
	if v, _ := pf.Get(PluralOne); v != "new" {
		t.Errorf("value = %q", v)
	}
}

func TestPluralFormsUnknownCategoryAppends(t *testing.T) {
	pf := PluralForms{{Category: PluralOne, Value: "1"}}
	pf = pf.Set(PluralCategory("paucal"), "p")
	if pf[len(pf)-1].Category != "paucal" {
		t.Errorf("unknown category should append, got %v", pf)
	}
}

func TestPluralFormsDelete(t *testing.T) {
	pf := PluralForms{
		{Category: PluralOne, Value: "1"},
		{Category: PluralOther, Value: "n"},
	}
	pf = pf.Delete(PluralOne)
	if _, ok := pf.Get(PluralOne); ok {
		t.Error("deleted form still present")
	}
	if v, _ := pf.Get(PluralOther); v != "n" {
		t.Error("sibling form lost")
	}
}

func TestNormalize(t *testing.T) {
	e := ResourceEntry{
		Key:      "items",
		IsPlural: true,
		Plurals: PluralForms{
			{Category: PluralOne, Value: "1 item"},
			{Category: PluralOther, Value: "%d items"},
		},
	}
	e.Normalize()
	if e.Value != "%d items" {
		t.Errorf("display value = %q, want the other form", e.Value)
	}

	empty := ResourceEntry{Key: "x", IsPlural: true}
	empty.Normalize()
	if empty.IsPlural {
		t.Error("a plural entry without forms demotes to non-plural")
	}

	plain := ResourceEntry{Key: "y", Value: "v", Plurals: PluralForms{{Category: PluralOne, Value: "stale"}}}
	plain.Normalize()
	if plain.Plurals != nil {
		t.Error("non-plural entries drop stale forms")
	}
}

func TestFormsView(t *testing.T) {
	plain := ResourceEntry{Key: "x", Value: "v"}
	forms := plain.Forms()
	if len(forms) != 1 || forms[0].Category != PluralNone || forms[0].Value != "v" {
		t.Errorf("Forms() = %+v", forms)
	}

	plural := ResourceEntry{
		Key:      "items",
		IsPlural: true,
		Plurals: PluralForms{
			{Category: PluralOne, Value: "1"},
			{Category: PluralOther, Value: "n"},
		},
	}
	if got := plural.Forms(); len(got) != 2 {
		t.Errorf("Forms() = %+v", got)
	}
}

func TestEntryCloneIsIndependent(t *testing.T) {
	e := ResourceEntry{
		Key:      "items",
		IsPlural: true,
		Plurals:  PluralForms{{Category: PluralOther, Value: "n"}},
	}
	c := e.Clone()
	c.Plurals = c.Plurals.Set(PluralOther, "changed")
	if v, _ := e.Plurals.Get(PluralOther); v != "n" {
		t.Errorf("clone mutation leaked into the original: %q", v)
	}
	if !e.Equal(e.Clone()) {
		t.Error("a fresh clone should compare equal")
	}
}
