package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/locforge/locforge/internal/format"
	"github.com/locforge/locforge/internal/github"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/store"
)

// handleWebhook ingests GitHub push events. The URL carries the
// project binding: /webhooks/github?project=<id>&base=<baseName>.
// Signature verification happens before anything reaches the
// reconciler.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if secret := s.cfg.GitHub.WebhookSecret; secret != "" {
		if err := github.VerifySignature([]byte(secret), body, r.Header.Get(github.SignatureHeader)); err != nil {
			logging.Warn("webhook signature rejected", logging.Err(err))
			writeError(w, http.StatusUnauthorized, "signature mismatch")
			return
		}
	}

	if ev := r.Header.Get(github.EventHeader); ev != "" && ev != "push" {
		// Pings and other event classes are acknowledged and dropped.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	project := r.URL.Query().Get("project")
	baseName := r.URL.Query().Get("base")
	if project == "" || baseName == "" {
		writeError(w, http.StatusBadRequest, "project and base query parameters are required")
		return
	}

	event, err := github.ParsePushEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if branch := s.cfg.GitHub.Branch; branch != "" && event.Ref != "refs/heads/"+branch {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "untracked branch"})
		return
	}

	writes, covered, err := s.collectWrites(r, baseName, event)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(covered) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "no resource files changed"})
		return
	}

	if err := s.store.EnsureProject(r.Context(), project, project); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	res, err := s.reconciler.Reconcile(r.Context(), project, event.After, writes, covered)
	if err != nil {
		logging.Error("reconciliation failed",
			logging.Project(project),
			logging.Source("github"),
			logging.Err(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// collectWrites fetches and parses each changed resource file at the
// event's head commit. Removed files contribute only their language,
// so their tuples reconcile as GitHub-side deletions. Files that do
// not follow the base.code.ext convention are skipped.
func (s *Server) collectWrites(r *http.Request, baseName string, event *github.PushEvent) ([]store.GitHubWrite, map[string]bool, error) {
	changed, removed := event.ChangedPaths()
	covered := make(map[string]bool)
	var writes []store.GitHubWrite

	for _, path := range changed {
		code, err := model.ParseLanguageFromPath(baseName, path)
		if err != nil {
			continue
		}
		if s.contents == nil {
			return nil, nil, errors.New("no contents fetcher configured")
		}
		data, err := s.contents.FileContents(r.Context(), event.Repository.FullName, path, event.After)
		if err != nil {
			return nil, nil, err
		}
		f, err := format.ByPath(path)
		if err != nil {
			continue
		}
		info, err := model.NewLanguageInfo(baseName, code, path)
		if err != nil {
			continue
		}
		rf, err := f.Read(info, data)
		if err != nil {
			// A malformed file aborts only its own language.
			logging.Warn("skipping malformed resource file",
				logging.Path(path),
				logging.Err(err),
			)
			continue
		}
		covered[code] = true
		writes = append(writes, github.WritesFromFile(rf)...)
	}

	for _, path := range removed {
		code, err := model.ParseLanguageFromPath(baseName, path)
		if err != nil {
			continue
		}
		covered[code] = true
	}
	return writes, covered, nil
}
