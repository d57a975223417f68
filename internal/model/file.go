package model

import (
	"fmt"
	"strings"
)

// ResourceFile is one language's ordered resource collection. True
// duplicates (same key twice) and case variants are tolerated and
// tracked as countable occurrences rather than collapsed; each
// occurrence is addressable by a 1-based index.
type ResourceFile struct {
	Language LanguageInfo    `json:"language"`
	Entries  []ResourceEntry `json:"entries"`
}

// NewResourceFile creates an empty resource file for a language.
func NewResourceFile(info LanguageInfo) *ResourceFile {
	return &ResourceFile{Language: info}
}

// Occurrences returns the entry indexes (0-based) whose key matches
// exactly.
func (f *ResourceFile) Occurrences(key string) []int {
	var idx []int
	for i, e := range f.Entries {
		if e.Key == key {
			idx = append(idx, i)
		}
	}
	return idx
}

// CaseVariants returns the distinct keys that match case-insensitively
// but are not exact matches.
func (f *ResourceFile) CaseVariants(key string) []string {
	seen := make(map[string]bool)
	var variants []string
	for _, e := range f.Entries {
		if e.Key == key || seen[e.Key] {
			continue
		}
		if strings.EqualFold(e.Key, key) {
			seen[e.Key] = true
			variants = append(variants, e.Key)
		}
	}
	return variants
}

// Lookup returns the nth occurrence (1-based) of key.
func (f *ResourceFile) Lookup(key string, occurrence int) (*ResourceEntry, error) {
	idx := f.Occurrences(key)
	if len(idx) == 0 {
		return nil, fmt.Errorf("key %q not found", key)
	}
	if occurrence < 1 || occurrence > len(idx) {
		return nil, fmt.Errorf("key %q has %d occurrence(s), index %d out of range", key, len(idx), occurrence)
	}
	return &f.Entries[idx[occurrence-1]], nil
}

// First returns the first occurrence of key, if any.
func (f *ResourceFile) First(key string) (*ResourceEntry, bool) {
	idx := f.Occurrences(key)
	if len(idx) == 0 {
		return nil, false
	}
	return &f.Entries[idx[0]], true
}

// Add appends an entry, preserving file order. Duplicate keys are
// allowed; the new entry becomes the next occurrence.
func (f *ResourceFile) Add(entry ResourceEntry) {
	entry.Normalize()
	f.Entries = append(f.Entries, entry)
}

// Set replaces the nth occurrence (1-based) of key in place.
func (f *ResourceFile) Set(key string, occurrence int, entry ResourceEntry) error {
	target, err := f.Lookup(key, occurrence)
	if err != nil {
		return err
	}
	entry.Key = key
	entry.Normalize()
	*target = entry
	return nil
}

// Upsert updates the first occurrence of the entry's key or appends a
// new entry when the key is absent.
func (f *ResourceFile) Upsert(entry ResourceEntry) {
	entry.Normalize()
	if existing, ok := f.First(entry.Key); ok {
		*existing = entry
		return
	}
	f.Entries = append(f.Entries, entry)
}

// Remove deletes the nth occurrence (1-based) of key.
func (f *ResourceFile) Remove(key string, occurrence int) error {
	idx := f.Occurrences(key)
	if len(idx) == 0 {
		return fmt.Errorf("key %q not found", key)
	}
	if occurrence < 1 || occurrence > len(idx) {
		return fmt.Errorf("key %q has %d occurrence(s), index %d out of range", key, len(idx), occurrence)
	}
	i := idx[occurrence-1]
	f.Entries = append(f.Entries[:i], f.Entries[i+1:]...)
	return nil
}

// RemoveAll deletes every occurrence of key, returning the count.
func (f *ResourceFile) RemoveAll(key string) int {
	kept := f.Entries[:0]
	removed := 0
	for _, e := range f.Entries {
		if e.Key == key {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.Entries = kept
	return removed
}

// Keys returns every key in file order, duplicates included.
func (f *ResourceFile) Keys() []string {
	keys := make([]string, len(f.Entries))
	for i, e := range f.Entries {
		keys[i] = e.Key
	}
	return keys
}

// Clone returns a deep copy of the file.
func (f *ResourceFile) Clone() *ResourceFile {
	out := &ResourceFile{Language: f.Language}
	out.Entries = make([]ResourceEntry, len(f.Entries))
	for i, e := range f.Entries {
		out.Entries[i] = e.Clone()
	}
	return out
}
