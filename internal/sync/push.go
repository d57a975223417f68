package sync

import (
	"log/slog"

	"github.com/locforge/locforge/internal/hash"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/state"
)

// PushPlanner computes the diff between the local working copy and the
// last-known-synced state, producing the ordered change-set to send to
// the cloud boundary.
type PushPlanner struct{}

// NewPushPlanner creates a push planner.
func NewPushPlanner() *PushPlanner {
	return &PushPlanner{}
}

// Plan diffs the given resource files against the cached cloud records.
// Tuples with an unresolved local conflict are excluded from the
// change-set and returned separately; they stay blocked until resolved.
//
// Pushing an unchanged working copy yields an empty change-set, which
// makes the push path idempotent end to end.
func (p *PushPlanner) Plan(projectID string, files []*model.ResourceFile, st *state.Store) (*ChangeSet, []EntryRef) {
	defer logging.Timer("push-plan")()

	cs := &ChangeSet{ProjectID: projectID, Source: SourceCLI}
	var blocked []EntryRef

	languages := make(map[string]bool, len(files))
	seen := make(map[EntryRef]bool)

	for _, f := range files {
		lang := f.Language.Code
		languages[lang] = true
		for _, e := range f.Entries {
			for _, form := range e.Forms() {
				ref := EntryRef{Key: e.Key, Language: lang, PluralForm: form.Category}
				if seen[ref] {
					// True duplicates share one sync identity; the
					// first occurrence wins.
					continue
				}
				seen[ref] = true

				if st.HasConflict(e.Key, lang, form.Category) {
					blocked = append(blocked, ref)
					continue
				}

				localHash := hash.Content(form.Value, e.Comment)
				rec, ok := st.Get(e.Key, lang, form.Category, model.OriginCloud)
				switch {
				case !ok:
					cs.Changes = append(cs.Changes, EntryChange{
						Kind:    ChangeAdded,
						Ref:     ref,
						Value:   form.Value,
						Comment: e.Comment,
					})
				case rec.Hash != localHash:
					cs.Changes = append(cs.Changes, EntryChange{
						Kind:        ChangeModified,
						Ref:         ref,
						Value:       form.Value,
						Comment:     e.Comment,
						BaseVersion: rec.Version,
						BaseHash:    rec.Hash,
					})
				}
				// Unchanged tuples are omitted entirely.
			}
		}
	}

	// Records whose tuple no longer exists locally are deletions.
	for _, rec := range st.All(model.OriginCloud) {
		if !languages[rec.Language] {
			continue
		}
		ref := EntryRef{Key: rec.Key, Language: rec.Language, PluralForm: rec.PluralForm}
		if seen[ref] {
			continue
		}
		if st.HasConflict(rec.Key, rec.Language, rec.PluralForm) {
			blocked = append(blocked, ref)
			continue
		}
		cs.Changes = append(cs.Changes, EntryChange{
			Kind:        ChangeDeleted,
			Ref:         ref,
			BaseVersion: rec.Version,
			BaseHash:    rec.Hash,
		})
	}

	sortChanges(cs.Changes)

	added, modified, deleted := cs.Counts()
	logging.Debug("push plan computed",
		logging.Project(projectID),
		logging.Operation("push"),
		slog.Int("added", added),
		slog.Int("modified", modified),
		slog.Int("deleted", deleted),
		slog.Int("blocked", len(blocked)),
	)

	return cs, blocked
}

// Commit updates the local state cache from the server's push outcome:
// applied and converged changes become the new per-entry baseline,
// conflicting ones are materialized as blocking local conflicts.
func Commit(outcome *PushOutcome, st *state.Store) {
	for _, a := range append(outcome.Applied, outcome.Converged...) {
		ref := a.Change.Ref
		if a.Change.Kind == ChangeDeleted {
			st.Delete(ref.Key, ref.Language, ref.PluralForm, model.OriginCloud)
			continue
		}
		st.Set(state.Record{
			Key:        ref.Key,
			Language:   ref.Language,
			PluralForm: ref.PluralForm,
			Hash:       a.NewHash,
			Version:    a.NewVersion,
			Origin:     model.OriginCloud,
		})
	}
	for _, vc := range outcome.Conflicts {
		st.SetConflict(state.Conflict{
			Key:             vc.Ref.Key,
			Language:        vc.Ref.Language,
			PluralForm:      vc.Ref.PluralForm,
			Kind:            string(ConflictBothModified),
			LocalValue:      vc.PushedValue,
			RemoteValue:     vc.CloudValue,
			RemoteComment:   vc.CloudComment,
			RemoteVersion:   vc.CloudVersion,
			RemoteUpdatedAt: vc.CloudModifiedAt,
			RemoteUpdatedBy: vc.CloudModifiedBy,
		})
	}
}
