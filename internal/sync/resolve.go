package sync

import (
	"fmt"

	"github.com/locforge/locforge/internal/hash"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/state"
)

// ResolveLocal applies a resolution choice to one blocked tuple: the
// working copy and the state cache are updated so the tuple unblocks
// and the next push or pull converges on the chosen value.
//
//   - keep-local leaves the working copy alone and moves the baseline
//     to the remote side, so the next push overwrites the cloud.
//   - keep-remote writes the remote value into the working copy (or
//     deletes the entry when the remote side deleted it).
//   - manual writes the supplied value locally and moves the baseline
//     like keep-local, so the next push carries it.
func ResolveLocal(files map[string]*model.ResourceFile, st *state.Store, c state.Conflict, choice ResolutionChoice, manualValue string) error {
	if !choice.IsValid() {
		return fmt.Errorf("unknown resolution choice %q", choice)
	}

	ref := EntryRef{Key: c.Key, Language: c.Language, PluralForm: c.PluralForm}

	switch choice {
	case ResolutionKeepRemote:
		if c.RemoteValue == nil {
			deleteLocalForm(files, ref)
			st.Delete(c.Key, c.Language, c.PluralForm, model.OriginCloud)
		} else {
			applyRemoteForm(files, RemoteEntry{Ref: ref, Value: *c.RemoteValue, Comment: c.RemoteComment})
			setRemoteBaseline(st, c)
		}

	case ResolutionKeepLocal:
		if c.RemoteValue == nil {
			// Deleted remotely; dropping the record makes the next push
			// re-add the local value.
			st.Delete(c.Key, c.Language, c.PluralForm, model.OriginCloud)
		} else {
			setRemoteBaseline(st, c)
		}

	case ResolutionManual:
		_, comment, _ := lookupLocal(files, ref)
		applyRemoteForm(files, RemoteEntry{Ref: ref, Value: manualValue, Comment: comment})
		if c.RemoteValue == nil {
			st.Delete(c.Key, c.Language, c.PluralForm, model.OriginCloud)
		} else {
			setRemoteBaseline(st, c)
		}
	}

	st.ResolveConflict(c.Key, c.Language, c.PluralForm)

	logging.Debug("conflict resolved",
		logging.Entry(ref.String()),
		logging.Operation("resolve"),
		logging.Source(string(choice)),
	)
	return nil
}

// setRemoteBaseline records the remote side as the agreed baseline, so
// any local divergence from it shows up as a pending modification. The
// baseline hash must match the cloud's stored hash, which covers the
// remote comment, not whatever comment the working copy carries.
func setRemoteBaseline(st *state.Store, c state.Conflict) {
	st.Set(state.Record{
		Key:        c.Key,
		Language:   c.Language,
		PluralForm: c.PluralForm,
		Hash:       hash.Content(*c.RemoteValue, c.RemoteComment),
		Version:    c.RemoteVersion,
		Origin:     model.OriginCloud,
	})
}
