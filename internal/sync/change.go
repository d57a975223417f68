package sync

import (
	"sort"
	"time"

	"github.com/locforge/locforge/internal/model"
)

// Source identifies the path a change arrived through.
type Source string

const (
	SourceCLI    Source = "cli"
	SourceWeb    Source = "web"
	SourceGitHub Source = "github"
)

// OpType is the kind of operation recorded in sync history.
type OpType string

const (
	OpPush   OpType = "push"
	OpPull   OpType = "pull"
	OpRevert OpType = "revert"
)

// EntryRef addresses one tracked value: a key in a language, down to
// the plural form. PluralForm is empty for non-plural entries.
type EntryRef struct {
	Key        string               `json:"key"`
	Language   string               `json:"language"`
	PluralForm model.PluralCategory `json:"plural_form,omitempty"`
}

// String renders the ref as key/language, with the plural form
// appended for plural entries.
func (r EntryRef) String() string {
	if r.PluralForm == model.PluralNone {
		return r.Key + "/" + r.Language
	}
	return r.Key + "/" + r.Language + ":" + string(r.PluralForm)
}

// Less orders refs by key, then language, then plural form. This is
// the stable change-set order.
func (r EntryRef) Less(other EntryRef) bool {
	if r.Key != other.Key {
		return r.Key < other.Key
	}
	if r.Language != other.Language {
		return r.Language < other.Language
	}
	return r.PluralForm < other.PluralForm
}

// ChangeKind classifies a change-set element.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// EntryChange is one element of a push change-set.
type EntryChange struct {
	Kind    ChangeKind `json:"kind"`
	Ref     EntryRef   `json:"ref"`
	Value   string     `json:"value,omitempty"`
	Comment string     `json:"comment,omitempty"`

	// BaseVersion is the cloud version this change believes it is
	// updating; zero for added entries. The server's optimistic check
	// compares it against the stored version.
	BaseVersion int64 `json:"base_version,omitempty"`

	// BaseHash is the last-synced content hash, empty for added
	// entries.
	BaseHash string `json:"base_hash,omitempty"`
}

// ChangeSet is an ordered set of local changes sent to the cloud
// boundary.
type ChangeSet struct {
	ProjectID string        `json:"project_id"`
	Source    Source        `json:"source"`
	Changes   []EntryChange `json:"changes"`
}

// Empty reports whether the change-set carries no changes.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Changes) == 0
}

// Counts returns the number of added, modified and deleted elements.
func (cs *ChangeSet) Counts() (added, modified, deleted int) {
	for _, c := range cs.Changes {
		switch c.Kind {
		case ChangeAdded:
			added++
		case ChangeModified:
			modified++
		case ChangeDeleted:
			deleted++
		}
	}
	return
}

// sortChanges fixes the stable order: key, then language, then plural
// form.
func sortChanges(changes []EntryChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Ref.Less(changes[j].Ref)
	})
}

// RemoteEntry is the cloud's current view of one tracked value, as
// returned by the pull endpoint.
type RemoteEntry struct {
	Ref       EntryRef  `json:"ref"`
	Value     string    `json:"value"`
	Comment   string    `json:"comment,omitempty"`
	Version   int64     `json:"version"`
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}
