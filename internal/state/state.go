// Package state persists the per-entry "last known cloud state" cache
// that the push and pull planners diff against. Records live in a JSON
// file under the project's .locforge directory; a file lock keeps two
// CLI invocations from interleaving a push and a pull.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/locforge/locforge/internal/model"
)

const (
	// DirName is the project-local metadata directory.
	DirName = ".locforge"

	stateFileName = "state.json"
	lockFileName  = "state.lock"
	fileVersion   = "1"
)

// Record is one per-entry checkpoint: the last content hash and version
// agreed with an external source. It is created on first successful
// push/pull of the entry and updated on every later reconciliation.
type Record struct {
	Key          string               `json:"key"`
	Language     string               `json:"language"`
	PluralForm   model.PluralCategory `json:"plural_form,omitempty"`
	Hash         string               `json:"hash"`
	Version      int64                `json:"version"`
	Origin       model.Origin         `json:"origin"`
	LastSyncedAt time.Time            `json:"last_synced_at"`
}

// Conflict is an unresolved local/remote divergence for one tuple.
// While present, the tuple is blocked from further push and pull. Nil
// values mean the side deleted the entry.
type Conflict struct {
	Key             string               `json:"key"`
	Language        string               `json:"language"`
	PluralForm      model.PluralCategory `json:"plural_form,omitempty"`
	Kind            string               `json:"kind"`
	LocalValue      *string              `json:"local_value"`
	RemoteValue     *string              `json:"remote_value"`
	RemoteComment   string               `json:"remote_comment,omitempty"`
	RemoteVersion   int64                `json:"remote_version,omitempty"`
	RemoteUpdatedAt time.Time            `json:"remote_updated_at,omitempty"`
	RemoteUpdatedBy string               `json:"remote_updated_by,omitempty"`
	DetectedAt      time.Time            `json:"detected_at"`
}

type fileFormat struct {
	Version   string              `json:"version"`
	Project   string              `json:"project"`
	Records   map[string]Record   `json:"records"`
	Conflicts map[string]Conflict `json:"conflicts,omitempty"`
}

// Store is the local sync state store for one project.
type Store struct {
	path string
	lock *flock.Flock
	file fileFormat
}

// Open loads (or initializes) the state store under dir and acquires
// the project lock. Callers must Close when the sync operation ends.
func Open(dir, projectID string) (*Store, error) {
	metaDir := filepath.Join(dir, DirName)
	if err := os.MkdirAll(metaDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := flock.New(filepath.Join(metaDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire state lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another locforge process holds the lock for %s", dir)
	}

	s := &Store{
		path: filepath.Join(metaDir, stateFileName),
		lock: lock,
		file: fileFormat{
			Version:   fileVersion,
			Project:   projectID,
			Records:   make(map[string]Record),
			Conflicts: make(map[string]Conflict),
		},
	}

	// #nosec G304 - path is constructed from the project directory
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := json.Unmarshal(data, &s.file); err != nil {
		// Corrupted state, start fresh; the next pull rebuilds it.
		s.file.Records = make(map[string]Record)
		s.file.Conflicts = make(map[string]Conflict)
	}
	if s.file.Version != fileVersion || s.file.Project != projectID {
		s.file = fileFormat{
			Version:   fileVersion,
			Project:   projectID,
			Records:   make(map[string]Record),
			Conflicts: make(map[string]Conflict),
		}
	}
	if s.file.Records == nil {
		s.file.Records = make(map[string]Record)
	}
	if s.file.Conflicts == nil {
		s.file.Conflicts = make(map[string]Conflict)
	}
	return s, nil
}

// Close releases the project lock without saving.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

func recordKey(key, language string, form model.PluralCategory, origin model.Origin) string {
	return strings.Join([]string{key, language, string(form), string(origin)}, "\x00")
}

// Get returns the record for a tuple, if present.
func (s *Store) Get(key, language string, form model.PluralCategory, origin model.Origin) (Record, bool) {
	r, ok := s.file.Records[recordKey(key, language, form, origin)]
	return r, ok
}

// Set stores a record, replacing any previous record for its tuple.
func (s *Store) Set(r Record) {
	if r.LastSyncedAt.IsZero() {
		r.LastSyncedAt = time.Now().UTC()
	}
	s.file.Records[recordKey(r.Key, r.Language, r.PluralForm, r.Origin)] = r
}

// Delete removes the record for a tuple.
func (s *Store) Delete(key, language string, form model.PluralCategory, origin model.Origin) {
	delete(s.file.Records, recordKey(key, language, form, origin))
}

// All returns every record for an origin, ordered by key, language,
// plural form.
func (s *Store) All(origin model.Origin) []Record {
	var out []Record
	for _, r := range s.file.Records {
		if r.Origin == origin {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.Language != b.Language {
			return a.Language < b.Language
		}
		return a.PluralForm < b.PluralForm
	})
	return out
}

// Len returns the number of records across all origins.
func (s *Store) Len() int {
	return len(s.file.Records)
}

func conflictKey(key, language string, form model.PluralCategory) string {
	return strings.Join([]string{key, language, string(form)}, "\x00")
}

// SetConflict records an unresolved conflict, blocking the tuple.
func (s *Store) SetConflict(c Conflict) {
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now().UTC()
	}
	s.file.Conflicts[conflictKey(c.Key, c.Language, c.PluralForm)] = c
}

// GetConflict returns the unresolved conflict for a tuple, if any.
func (s *Store) GetConflict(key, language string, form model.PluralCategory) (Conflict, bool) {
	c, ok := s.file.Conflicts[conflictKey(key, language, form)]
	return c, ok
}

// HasConflict reports whether the tuple is blocked by an unresolved
// conflict.
func (s *Store) HasConflict(key, language string, form model.PluralCategory) bool {
	_, ok := s.file.Conflicts[conflictKey(key, language, form)]
	return ok
}

// ResolveConflict removes the conflict marker for a tuple.
func (s *Store) ResolveConflict(key, language string, form model.PluralCategory) {
	delete(s.file.Conflicts, conflictKey(key, language, form))
}

// Conflicts returns every unresolved conflict, ordered by key, then
// language, then plural form.
func (s *Store) Conflicts() []Conflict {
	out := make([]Conflict, 0, len(s.file.Conflicts))
	for _, c := range s.file.Conflicts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.Language != b.Language {
			return a.Language < b.Language
		}
		return a.PluralForm < b.PluralForm
	})
	return out
}

// Save persists the store to disk atomically (write then rename).
func (s *Store) Save() error {
	data, err := json.MarshalIndent(&s.file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	tmp := s.path + ".tmp"
	// #nosec G306 - state file should be readable by the user
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
