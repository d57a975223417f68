package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/store"
	"github.com/locforge/locforge/internal/sync"
)

func actor(r *http.Request) string {
	if a := r.Header.Get("X-Locforge-Actor"); a != "" {
		return a
	}
	return "api"
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")

	var cs sync.ChangeSet
	if err := decodeJSON(r, &cs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid change-set: "+err.Error())
		return
	}
	cs.ProjectID = project
	if cs.Source == "" {
		cs.Source = sync.SourceCLI
	}

	if err := s.store.EnsureProject(r.Context(), project, project); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	outcome, err := s.store.ApplyPush(r.Context(), &cs, actor(r))
	if err != nil {
		logging.Error("push failed", logging.Project(project), logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListTranslations(r.Context(), r.PathValue("project"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []sync.RemoteEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := s.store.ListPendingConflicts(r.Context(), r.PathValue("project"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conflicts == nil {
		conflicts = []store.PendingConflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

type resolveRequest struct {
	Resolution  sync.ResolutionChoice `json:"resolution"`
	ManualValue string                `json:"manual_value,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conflict id")
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid resolution: "+err.Error())
		return
	}
	if !req.Resolution.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown resolution choice")
		return
	}

	entry, err := s.store.ResolvePendingConflict(r.Context(), project, id, req.Resolution, req.ManualValue, sync.SourceWeb, actor(r))
	if err != nil {
		if errors.Is(err, store.ErrConflictNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		entry = &store.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := s.store.ListHistory(r.Context(), r.PathValue("project"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetHistory(r.Context(), r.PathValue("project"), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrHistoryNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.Revert(r.Context(), r.PathValue("project"), r.PathValue("id"), sync.SourceWeb, actor(r))
	if err != nil {
		if errors.Is(err, store.ErrHistoryNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.store.ListSnapshots(r.Context(), r.PathValue("project"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []store.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

type createSnapshotRequest struct {
	Type        store.SnapshotType `json:"type"`
	Description string             `json:"description,omitempty"`
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")

	var req createSnapshotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot request: "+err.Error())
		return
	}
	if req.Type == "" {
		req.Type = store.SnapshotManual
	}
	if req.Type != store.SnapshotManual && req.Type != store.SnapshotAuto {
		writeError(w, http.StatusBadRequest, "unknown snapshot type")
		return
	}

	snap, err := s.store.CreateSnapshot(r.Context(), project, req.Type, req.Description)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Retention applies to automatic snapshots right after creation.
	if req.Type == store.SnapshotAuto {
		if _, err := s.store.ReapSnapshots(r.Context(), project, store.RetentionPolicy{
			MaxCount: s.cfg.Snapshots.MaxSnapshots,
			MaxAge:   s.cfg.RetentionMaxAge(),
		}); err != nil {
			logging.Warn("snapshot reaping failed", logging.Project(project), logging.Err(err))
		}
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.RestoreSnapshot(r.Context(), r.PathValue("project"), r.PathValue("id"), sync.SourceWeb, actor(r))
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		entry = &store.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteSnapshot(r.Context(), r.PathValue("project"), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
