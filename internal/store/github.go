package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/locforge/locforge/internal/hash"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/sync"
)

// GitHubState is the last value of one tuple agreed with GitHub. It is
// the merge base for the next reconciliation of that tuple.
type GitHubState struct {
	Ref       sync.EntryRef `json:"ref"`
	Hash      string        `json:"hash"`
	Value     string        `json:"value"`
	CommitSHA string        `json:"commit_sha,omitempty"`
	SyncedAt  time.Time     `json:"synced_at"`
}

func upsertGitHubState(tx *sql.Tx, projectID string, st GitHubState) error {
	_, err := tx.Exec(`INSERT INTO github_sync_state
            (project_id, key_name, language_code, plural_form,
             github_hash, github_value, commit_sha, synced_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (project_id, key_name, language_code, plural_form) DO UPDATE SET
            github_hash = excluded.github_hash,
            github_value = excluded.github_value,
            commit_sha = excluded.commit_sha,
            synced_at = excluded.synced_at`,
		projectID, st.Ref.Key, st.Ref.Language, string(st.Ref.PluralForm),
		st.Hash, st.Value, st.CommitSHA, nowRFC3339())
	if err != nil {
		return fmt.Errorf("upsert github state: %w", err)
	}
	return nil
}

func deleteGitHubState(tx *sql.Tx, projectID string, ref sync.EntryRef) error {
	if _, err := tx.Exec(`DELETE FROM github_sync_state
        WHERE project_id = ? AND key_name = ? AND language_code = ? AND plural_form = ?`,
		projectID, ref.Key, ref.Language, string(ref.PluralForm)); err != nil {
		return fmt.Errorf("delete github state: %w", err)
	}
	return nil
}

// GitHubStates returns the full GitHub baseline for a project, keyed
// by tuple.
func (s *Store) GitHubStates(ctx context.Context, projectID string) (map[sync.EntryRef]GitHubState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key_name, language_code, plural_form,
            github_hash, github_value, commit_sha, synced_at
        FROM github_sync_state
        WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list github state: %w", err)
	}
	defer rows.Close()

	out := make(map[sync.EntryRef]GitHubState)
	for rows.Next() {
		var st GitHubState
		var form, syncedAt string
		if err := rows.Scan(&st.Ref.Key, &st.Ref.Language, &form,
			&st.Hash, &st.Value, &st.CommitSHA, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan github state: %w", err)
		}
		st.Ref.PluralForm = model.PluralCategory(form)
		st.SyncedAt = parseTime(syncedAt)
		out[st.Ref] = st
	}
	return out, rows.Err()
}

// GitHubWrite is one value taken from a GitHub commit.
type GitHubWrite struct {
	Ref     sync.EntryRef
	Value   string
	Comment string
}

// GitHubPlan is the reconciler's decision set for one commit: clean
// applies and deletions, tuples whose baseline just moves, new or
// refreshed conflicts, and conflicts that converged away.
type GitHubPlan struct {
	CommitSHA string
	Applies   []GitHubWrite
	Deletes   []sync.EntryRef
	Converged []GitHubWrite
	Conflicts []PendingConflict
	Resolved  []sync.EntryRef
}

// Empty reports whether the plan changes nothing.
func (p *GitHubPlan) Empty() bool {
	return len(p.Applies) == 0 && len(p.Deletes) == 0 && len(p.Converged) == 0 &&
		len(p.Conflicts) == 0 && len(p.Resolved) == 0
}

// GitHubSyncResult summarizes an applied reconciliation.
type GitHubSyncResult struct {
	Applied   int    `json:"applied"`
	Deleted   int    `json:"deleted"`
	Converged int    `json:"converged"`
	Conflicts int    `json:"conflicts"`
	Resolved  int    `json:"resolved"`
	HistoryID string `json:"history_id,omitempty"`
}

// ApplyGitHubSync applies a reconciliation plan in one transaction.
// Clean applies bump the cloud version and move the GitHub baseline;
// conflicts only record a pending row and never touch the cloud value.
// Applied changes are logged to sync history with the github source.
func (s *Store) ApplyGitHubSync(ctx context.Context, projectID string, plan *GitHubPlan, actor string) (*GitHubSyncResult, error) {
	res := &GitHubSyncResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var diffs []HistoryChange

		for _, w := range plan.Applies {
			cur, err := getTranslation(tx, projectID, w.Ref)
			if err != nil {
				return err
			}
			version := int64(1)
			kind := sync.ChangeAdded
			var before *EntryValue
			if cur != nil {
				version = cur.Version + 1
				kind = sync.ChangeModified
				before = &EntryValue{Value: cur.Value, Comment: cur.Comment}
			}
			if _, err := upsertTranslation(tx, projectID, w.Ref, w.Value, w.Comment, actor, version); err != nil {
				return err
			}
			if err := upsertGitHubState(tx, projectID, GitHubState{
				Ref:       w.Ref,
				Hash:      hash.Content(w.Value, w.Comment),
				Value:     w.Value,
				CommitSHA: plan.CommitSHA,
			}); err != nil {
				return err
			}
			diffs = append(diffs, HistoryChange{Ref: w.Ref, Kind: kind,
				Before: before,
				After:  &EntryValue{Value: w.Value, Comment: w.Comment}})
			res.Applied++
		}

		for _, ref := range plan.Deletes {
			cur, err := getTranslation(tx, projectID, ref)
			if err != nil {
				return err
			}
			if cur != nil {
				if err := deleteTranslation(tx, projectID, ref); err != nil {
					return err
				}
				diffs = append(diffs, HistoryChange{Ref: ref, Kind: sync.ChangeDeleted,
					Before: &EntryValue{Value: cur.Value, Comment: cur.Comment}})
			}
			if err := deleteGitHubState(tx, projectID, ref); err != nil {
				return err
			}
			res.Deleted++
		}

		for _, w := range plan.Converged {
			if err := upsertGitHubState(tx, projectID, GitHubState{
				Ref:       w.Ref,
				Hash:      hash.Content(w.Value, w.Comment),
				Value:     w.Value,
				CommitSHA: plan.CommitSHA,
			}); err != nil {
				return err
			}
			res.Converged++
		}

		for _, c := range plan.Conflicts {
			c.ProjectID = projectID
			c.CommitSHA = plan.CommitSHA
			if err := upsertPendingConflict(tx, c); err != nil {
				return err
			}
			res.Conflicts++
		}

		for _, ref := range plan.Resolved {
			if err := deletePendingConflict(tx, projectID, ref); err != nil {
				return err
			}
			res.Resolved++
		}

		if len(diffs) > 0 {
			id, err := recordHistory(tx, projectID, sync.OpPull, sync.SourceGitHub, actor, diffs, "")
			if err != nil {
				return err
			}
			res.HistoryID = id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("github sync applied",
		logging.Project(projectID),
		logging.Source(string(sync.SourceGitHub)),
		logging.Count(res.Applied+res.Deleted),
	)
	return res, nil
}
