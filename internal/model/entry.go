// Package model defines the in-memory representation of localization
// resources shared by the planners, the stores, and the format readers.
package model

// PluralCategory identifies a CLDR plural form.
type PluralCategory string

const (
	PluralZero  PluralCategory = "zero"
	PluralOne   PluralCategory = "one"
	PluralTwo   PluralCategory = "two"
	PluralFew   PluralCategory = "few"
	PluralMany  PluralCategory = "many"
	PluralOther PluralCategory = "other"

	// PluralNone marks a non-plural entry in per-form state records.
	PluralNone PluralCategory = ""
)

// KnownCategories lists the CLDR categories in canonical order.
// Unrecognized categories are carried through verbatim as an escape
// hatch; they sort after the known ones.
func KnownCategories() []PluralCategory {
	return []PluralCategory{PluralZero, PluralOne, PluralTwo, PluralFew, PluralMany, PluralOther}
}

// Known returns true if the category is one of the CLDR set.
func (c PluralCategory) Known() bool {
	switch c {
	case PluralZero, PluralOne, PluralTwo, PluralFew, PluralMany, PluralOther:
		return true
	default:
		return false
	}
}

// rank orders categories canonically; unknown categories keep their
// insertion order after the known set.
func (c PluralCategory) rank() int {
	for i, k := range KnownCategories() {
		if c == k {
			return i
		}
	}
	return len(KnownCategories())
}

// PluralForm is one category/value pair of a plural entry.
type PluralForm struct {
	Category PluralCategory `json:"category"`
	Value    string         `json:"value"`
}

// PluralForms is an ordered category→value map. Order is preserved on
// round-trip; Set keeps known categories in canonical order and appends
// unrecognized ones.
type PluralForms []PluralForm

// Get returns the value for a category.
func (pf PluralForms) Get(c PluralCategory) (string, bool) {
	for _, f := range pf {
		if f.Category == c {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces or inserts the value for a category, keeping canonical
// order for known categories.
func (pf PluralForms) Set(c PluralCategory, value string) PluralForms {
	for i, f := range pf {
		if f.Category == c {
			pf[i].Value = value
			return pf
		}
	}
	insert := len(pf)
	if c.Known() {
		for i, f := range pf {
			if c.rank() < f.Category.rank() {
				insert = i
				break
			}
		}
	}
	out := make(PluralForms, 0, len(pf)+1)
	out = append(out, pf[:insert]...)
	out = append(out, PluralForm{Category: c, Value: value})
	out = append(out, pf[insert:]...)
	return out
}

// Delete removes a category, returning the updated forms.
func (pf PluralForms) Delete(c PluralCategory) PluralForms {
	for i, f := range pf {
		if f.Category == c {
			return append(pf[:i:i], pf[i+1:]...)
		}
	}
	return pf
}

// Equal reports whether two form lists have the same categories and
// values in the same order.
func (pf PluralForms) Equal(other PluralForms) bool {
	if len(pf) != len(other) {
		return false
	}
	for i := range pf {
		if pf[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy safe to mutate independently.
func (pf PluralForms) Clone() PluralForms {
	if pf == nil {
		return nil
	}
	out := make(PluralForms, len(pf))
	copy(out, pf)
	return out
}

// ResourceEntry is one localizable string within a resource file.
type ResourceEntry struct {
	Key      string      `json:"key"`
	Value    string      `json:"value"`
	Comment  string      `json:"comment,omitempty"`
	IsPlural bool        `json:"is_plural,omitempty"`
	Plurals  PluralForms `json:"plurals,omitempty"`
}

// DisplayValue returns the value shown in listings: the "other" plural
// form (or the first available) for plural entries, Value otherwise.
func (e ResourceEntry) DisplayValue() string {
	if !e.IsPlural {
		return e.Value
	}
	if v, ok := e.Plurals.Get(PluralOther); ok {
		return v
	}
	if len(e.Plurals) > 0 {
		return e.Plurals[0].Value
	}
	return e.Value
}

// Normalize enforces the plural invariant: a plural entry has a
// non-empty form map and mirrors its display form into Value.
func (e *ResourceEntry) Normalize() {
	if !e.IsPlural {
		e.Plurals = nil
		return
	}
	if len(e.Plurals) == 0 {
		e.IsPlural = false
		return
	}
	e.Value = e.DisplayValue()
}

// Clone returns a deep copy of the entry.
func (e ResourceEntry) Clone() ResourceEntry {
	out := e
	out.Plurals = e.Plurals.Clone()
	return out
}

// Equal reports full content equality (value, comment, plural forms).
func (e ResourceEntry) Equal(other ResourceEntry) bool {
	return e.Key == other.Key &&
		e.Value == other.Value &&
		e.Comment == other.Comment &&
		e.IsPlural == other.IsPlural &&
		e.Plurals.Equal(other.Plurals)
}

// Forms returns the per-form view of the entry used by the sync
// planners: non-plural entries yield a single PluralNone form.
func (e ResourceEntry) Forms() []PluralForm {
	if !e.IsPlural {
		return []PluralForm{{Category: PluralNone, Value: e.Value}}
	}
	out := make([]PluralForm, len(e.Plurals))
	copy(out, e.Plurals)
	return out
}
