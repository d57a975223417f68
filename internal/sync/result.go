package sync

import (
	"fmt"
	"strings"
	"time"
)

// OutcomeState is the overall state of a sync operation. Conflicts are
// a normal, always-checked return path, never an error value.
type OutcomeState string

const (
	// StateApplied means every change in the operation committed.
	StateApplied OutcomeState = "applied"

	// StatePartial means some changes committed and others surfaced as
	// conflicts.
	StatePartial OutcomeState = "partial"

	// StateRejected means nothing committed.
	StateRejected OutcomeState = "rejected"
)

// AppliedChange is one change the server accepted, with the version and
// hash that become the new local baseline.
type AppliedChange struct {
	Change     EntryChange `json:"change"`
	NewVersion int64       `json:"new_version"`
	NewHash    string      `json:"new_hash"`
}

// VersionConflict is one change the server rejected because the stored
// version advanced past the pushed base version.
type VersionConflict struct {
	Ref             EntryRef  `json:"ref"`
	PushedValue     *string   `json:"pushed_value"`
	CloudValue      *string   `json:"cloud_value"`
	CloudComment    string    `json:"cloud_comment,omitempty"`
	CloudVersion    int64     `json:"cloud_version"`
	CloudModifiedAt time.Time `json:"cloud_modified_at"`
	CloudModifiedBy string    `json:"cloud_modified_by,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}

// PushOutcome is the cloud boundary's reply to a push: the applied
// subset, the per-entry conflicts, and the history entry recorded for
// the applied part. Partial failure is the norm, not all-or-nothing.
// Converged lists changes whose content the cloud already held (with
// the current version/hash), so the pusher can move its baseline
// without a pull.
type PushOutcome struct {
	Applied   []AppliedChange   `json:"applied"`
	Conflicts []VersionConflict `json:"conflicts"`
	Converged []AppliedChange   `json:"converged,omitempty"`
	Unchanged int               `json:"unchanged,omitempty"`
	HistoryID string            `json:"history_id,omitempty"`
}

// State reduces the outcome to applied / partial / rejected.
func (o *PushOutcome) State() OutcomeState {
	switch {
	case len(o.Conflicts) == 0:
		return StateApplied
	case len(o.Applied) == 0:
		return StateRejected
	default:
		return StatePartial
	}
}

// HasConflicts reports whether any entry was rejected as a conflict.
func (o *PushOutcome) HasConflicts() bool {
	return len(o.Conflicts) > 0
}

// Summary returns a human-readable outcome summary.
func (o *PushOutcome) Summary() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Push %s\n", o.State()))
	sb.WriteString(fmt.Sprintf("  Applied:   %d\n", len(o.Applied)))
	sb.WriteString(fmt.Sprintf("  Conflicts: %d\n", len(o.Conflicts)))
	if o.Unchanged > 0 {
		sb.WriteString(fmt.Sprintf("  Unchanged: %d\n", o.Unchanged))
	}
	if o.HistoryID != "" {
		sb.WriteString(fmt.Sprintf("  History:   %s\n", o.HistoryID))
	}
	if len(o.Conflicts) > 0 {
		sb.WriteString("\nConflicts requiring resolution:\n")
		for _, c := range o.Conflicts {
			sb.WriteString(fmt.Sprintf("  - %s (%s): %s\n", c.Ref.Key, refLang(c.Ref), c.Reason))
		}
	}
	return sb.String()
}

// PullResult is the outcome of applying a pull plan to the working
// copy.
type PullResult struct {
	Updated        []RemoteEntry `json:"updated"`
	Deleted        []EntryRef    `json:"deleted"`
	Conflicts      []Conflict    `json:"conflicts"`
	ConvergedCount int           `json:"converged,omitempty"`
}

// State reduces the result to applied / partial / rejected.
func (r *PullResult) State() OutcomeState {
	switch {
	case len(r.Conflicts) == 0:
		return StateApplied
	case len(r.Updated) == 0 && len(r.Deleted) == 0:
		return StateRejected
	default:
		return StatePartial
	}
}

// HasConflicts reports whether the pull surfaced unresolved conflicts.
func (r *PullResult) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// Changed returns the number of local mutations the pull made.
func (r *PullResult) Changed() int {
	return len(r.Updated) + len(r.Deleted)
}

// Summary returns a human-readable result summary.
func (r *PullResult) Summary() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Pull %s\n", r.State()))
	sb.WriteString(fmt.Sprintf("  Updated:   %d\n", len(r.Updated)))
	sb.WriteString(fmt.Sprintf("  Deleted:   %d\n", len(r.Deleted)))
	sb.WriteString(fmt.Sprintf("  Conflicts: %d\n", len(r.Conflicts)))
	if r.HasConflicts() {
		sb.WriteString("\nConflicts requiring resolution:\n")
		for _, c := range r.Conflicts {
			sb.WriteString(fmt.Sprintf("  - %s (%s): %s\n", c.Ref.Key, refLang(c.Ref), c.Kind))
		}
	}
	return sb.String()
}

func refLang(ref EntryRef) string {
	lang := ref.Language
	if lang == "" {
		lang = "default"
	}
	if ref.PluralForm != "" {
		return lang + "/" + string(ref.PluralForm)
	}
	return lang
}

// ResolutionChoice represents how a surfaced conflict is resolved.
type ResolutionChoice string

const (
	// ResolutionKeepLocal keeps the local value, discarding the remote
	// change.
	ResolutionKeepLocal ResolutionChoice = "keep-local"

	// ResolutionKeepRemote takes the remote value, discarding the local
	// change.
	ResolutionKeepRemote ResolutionChoice = "keep-remote"

	// ResolutionManual supplies an explicit value replacing both sides.
	ResolutionManual ResolutionChoice = "manual"
)

// IsValid returns true if the choice is recognized.
func (rc ResolutionChoice) IsValid() bool {
	switch rc {
	case ResolutionKeepLocal, ResolutionKeepRemote, ResolutionManual:
		return true
	default:
		return false
	}
}
