package sync

import (
	"log/slog"
	"time"

	"github.com/locforge/locforge/internal/hash"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/state"
)

// ConflictKind classifies a surfaced pull conflict.
type ConflictKind string

const (
	// ConflictBothModified means both sides changed the value since the
	// last common ancestor.
	ConflictBothModified ConflictKind = "both-modified"

	// ConflictDeletedLocally means the entry was deleted locally but
	// modified remotely.
	ConflictDeletedLocally ConflictKind = "deleted-locally-modified-remotely"

	// ConflictDeletedRemotely means the entry was deleted remotely but
	// modified locally.
	ConflictDeletedRemotely ConflictKind = "deleted-remotely-modified-locally"
)

// Conflict is one unresolved divergence surfaced by a pull. Nil values
// represent deletion on that side.
type Conflict struct {
	Ref             EntryRef     `json:"ref"`
	Kind            ConflictKind `json:"kind"`
	LocalValue      *string      `json:"local_value"`
	RemoteValue     *string      `json:"remote_value"`
	RemoteComment   string       `json:"remote_comment,omitempty"`
	BaseHash        string       `json:"base_hash,omitempty"`
	RemoteVersion   int64        `json:"remote_version"`
	RemoteUpdatedAt time.Time    `json:"remote_updated_at"`
	RemoteUpdatedBy string       `json:"remote_updated_by,omitempty"`
}

// PullPlan is the pure diff outcome of a pull: what applies cleanly,
// what disappears, what converged on both sides, and what conflicts.
type PullPlan struct {
	Applies   []RemoteEntry
	Deletes   []state.Record
	Converged []RemoteEntry
	Conflicts []Conflict
}

// PullPlanner computes the diff between cloud state, the local cache
// and the local working copy.
type PullPlanner struct{}

// NewPullPlanner creates a pull planner.
func NewPullPlanner() *PullPlanner {
	return &PullPlanner{}
}

// Plan classifies every remote entry (and every cached record the
// remote no longer has) through the three-way table. files is keyed by
// language code; languages with no loaded file (untracked, or dropped
// because the file failed to parse) are out of scope for the pull, so
// their tuples are neither applied nor read as local deletions.
func (p *PullPlanner) Plan(remote []RemoteEntry, files map[string]*model.ResourceFile, st *state.Store) *PullPlan {
	defer logging.Timer("pull-plan")()

	plan := &PullPlan{}
	covered := make(map[string]bool, len(files))
	for lang := range files {
		covered[lang] = true
	}
	remoteSeen := make(map[EntryRef]bool, len(remote))

	for _, re := range remote {
		if !covered[re.Ref.Language] {
			continue
		}
		remoteSeen[re.Ref] = true

		baseHash := basePtr(st, re.Ref)
		localHash := localContentHash(files, re.Ref)
		remoteHash := re.Hash

		switch Classify(baseHash, localHash, &remoteHash) {
		case DecisionNoOp:
			plan.Converged = append(plan.Converged, re)
		case DecisionApplyRemote:
			plan.Applies = append(plan.Applies, re)
		case DecisionKeepLocal:
			// Local-only edit; the next push carries it.
		case DecisionConflict:
			kind := ConflictBothModified
			if localHash == nil {
				kind = ConflictDeletedLocally
			}
			plan.Conflicts = append(plan.Conflicts, Conflict{
				Ref:             re.Ref,
				Kind:            kind,
				LocalValue:      localValue(files, re.Ref),
				RemoteValue:     &re.Value,
				RemoteComment:   re.Comment,
				BaseHash:        deref(baseHash),
				RemoteVersion:   re.Version,
				RemoteUpdatedAt: re.UpdatedAt,
				RemoteUpdatedBy: re.UpdatedBy,
			})
		}
	}

	// Cached tuples the cloud no longer has were deleted remotely.
	for _, rec := range st.All(model.OriginCloud) {
		if !covered[rec.Language] {
			continue
		}
		ref := EntryRef{Key: rec.Key, Language: rec.Language, PluralForm: rec.PluralForm}
		if remoteSeen[ref] {
			continue
		}
		localHash := localContentHash(files, ref)
		base := rec.Hash
		switch Classify(&base, localHash, nil) {
		case DecisionNoOp:
			// Deleted on both sides; drop the record.
			plan.Deletes = append(plan.Deletes, rec)
		case DecisionApplyRemote:
			plan.Deletes = append(plan.Deletes, rec)
		case DecisionKeepLocal:
			// Impossible: remote is nil and base is not.
		case DecisionConflict:
			plan.Conflicts = append(plan.Conflicts, Conflict{
				Ref:         ref,
				Kind:        ConflictDeletedRemotely,
				LocalValue:  localValue(files, ref),
				RemoteValue: nil,
				BaseHash:    rec.Hash,
			})
		}
	}

	logging.Debug("pull plan computed",
		logging.Operation("pull"),
		slog.Int("applies", len(plan.Applies)),
		slog.Int("deletes", len(plan.Deletes)),
		slog.Int("converged", len(plan.Converged)),
		slog.Int("conflicts", len(plan.Conflicts)),
	)

	return plan
}

// Apply mutates the working copy and the state cache according to the
// plan: clean applies overwrite local values, remote deletions remove
// them, converged entries just refresh their baseline, and conflicts
// are recorded as blocking until resolved. Conflicting entries are
// never overwritten.
func Apply(plan *PullPlan, files map[string]*model.ResourceFile, st *state.Store) *PullResult {
	res := &PullResult{}

	for _, re := range plan.Applies {
		applyRemoteForm(files, re)
		setCloudRecord(st, re)
		res.Updated = append(res.Updated, re)
	}

	for _, re := range plan.Converged {
		setCloudRecord(st, re)
	}
	res.ConvergedCount = len(plan.Converged)

	for _, rec := range plan.Deletes {
		ref := EntryRef{Key: rec.Key, Language: rec.Language, PluralForm: rec.PluralForm}
		deleteLocalForm(files, ref)
		st.Delete(rec.Key, rec.Language, rec.PluralForm, model.OriginCloud)
		res.Deleted = append(res.Deleted, ref)
	}

	for _, c := range plan.Conflicts {
		st.SetConflict(state.Conflict{
			Key:             c.Ref.Key,
			Language:        c.Ref.Language,
			PluralForm:      c.Ref.PluralForm,
			Kind:            string(c.Kind),
			LocalValue:      c.LocalValue,
			RemoteValue:     c.RemoteValue,
			RemoteComment:   c.RemoteComment,
			RemoteVersion:   c.RemoteVersion,
			RemoteUpdatedAt: c.RemoteUpdatedAt,
			RemoteUpdatedBy: c.RemoteUpdatedBy,
		})
		res.Conflicts = append(res.Conflicts, c)
	}

	return res
}

// applyRemoteForm writes one remote value into the working copy,
// creating the entry or language file slot as needed.
func applyRemoteForm(files map[string]*model.ResourceFile, re RemoteEntry) {
	f, ok := files[re.Ref.Language]
	if !ok {
		return
	}
	entry, exists := f.First(re.Ref.Key)
	if re.Ref.PluralForm == model.PluralNone {
		if exists {
			entry.Value = re.Value
			entry.Comment = re.Comment
			entry.IsPlural = false
			entry.Plurals = nil
			return
		}
		f.Add(model.ResourceEntry{Key: re.Ref.Key, Value: re.Value, Comment: re.Comment})
		return
	}
	if exists {
		entry.IsPlural = true
		entry.Plurals = entry.Plurals.Set(re.Ref.PluralForm, re.Value)
		entry.Comment = re.Comment
		entry.Normalize()
		return
	}
	e := model.ResourceEntry{
		Key:      re.Ref.Key,
		Comment:  re.Comment,
		IsPlural: true,
		Plurals:  model.PluralForms{}.Set(re.Ref.PluralForm, re.Value),
	}
	e.Normalize()
	f.Add(e)
}

// deleteLocalForm removes one tracked form from the working copy. The
// whole entry goes when its last form goes.
func deleteLocalForm(files map[string]*model.ResourceFile, ref EntryRef) {
	f, ok := files[ref.Language]
	if !ok {
		return
	}
	entry, exists := f.First(ref.Key)
	if !exists {
		return
	}
	if ref.PluralForm == model.PluralNone || !entry.IsPlural {
		f.RemoveAll(ref.Key)
		return
	}
	entry.Plurals = entry.Plurals.Delete(ref.PluralForm)
	if len(entry.Plurals) == 0 {
		f.RemoveAll(ref.Key)
		return
	}
	entry.Normalize()
}

func setCloudRecord(st *state.Store, re RemoteEntry) {
	st.Set(state.Record{
		Key:        re.Ref.Key,
		Language:   re.Ref.Language,
		PluralForm: re.Ref.PluralForm,
		Hash:       re.Hash,
		Version:    re.Version,
		Origin:     model.OriginCloud,
	})
}

// basePtr returns the cached cloud hash for a ref, nil when no record
// exists (first-ever sync of the tuple).
func basePtr(st *state.Store, ref EntryRef) *string {
	rec, ok := st.Get(ref.Key, ref.Language, ref.PluralForm, model.OriginCloud)
	if !ok {
		return nil
	}
	h := rec.Hash
	return &h
}

// localContentHash hashes the working copy's value for a ref, nil when
// the tuple is absent locally.
func localContentHash(files map[string]*model.ResourceFile, ref EntryRef) *string {
	v, comment, ok := lookupLocal(files, ref)
	if !ok {
		return nil
	}
	h := hash.Content(v, comment)
	return &h
}

func localValue(files map[string]*model.ResourceFile, ref EntryRef) *string {
	v, _, ok := lookupLocal(files, ref)
	if !ok {
		return nil
	}
	return &v
}

func lookupLocal(files map[string]*model.ResourceFile, ref EntryRef) (value, comment string, ok bool) {
	f, okf := files[ref.Language]
	if !okf {
		return "", "", false
	}
	entry, exists := f.First(ref.Key)
	if !exists {
		return "", "", false
	}
	if ref.PluralForm == model.PluralNone {
		if entry.IsPlural {
			return "", "", false
		}
		return entry.Value, entry.Comment, true
	}
	v, okForm := entry.Plurals.Get(ref.PluralForm)
	if !okForm {
		return "", "", false
	}
	return v, entry.Comment, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
