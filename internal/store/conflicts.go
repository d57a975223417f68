package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/locforge/locforge/internal/hash"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/sync"
)

// ErrConflictNotFound is returned when a pending conflict id does not
// exist.
var ErrConflictNotFound = errors.New("pending conflict not found")

// PendingConflict is one unresolved GitHub/cloud divergence. No
// automated path may overwrite the tuple while the row exists; only an
// explicit resolution removes it.
type PendingConflict struct {
	ID              int64             `json:"id"`
	ProjectID       string            `json:"project_id"`
	Ref             sync.EntryRef     `json:"ref"`
	Kind            sync.ConflictKind `json:"kind"`
	GitHubValue     *string           `json:"github_value"`
	CloudValue      *string           `json:"cloud_value"`
	BaseValue       *string           `json:"base_value"`
	CommitSHA       string            `json:"commit_sha,omitempty"`
	CloudModifiedAt time.Time         `json:"cloud_modified_at,omitempty"`
	CloudModifiedBy string            `json:"cloud_modified_by,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

func upsertPendingConflict(tx *sql.Tx, c PendingConflict) error {
	_, err := tx.Exec(`INSERT INTO pending_conflicts
            (project_id, key_name, language_code, plural_form, conflict_type,
             github_value, cloud_value, base_value, commit_sha,
             cloud_modified_at, cloud_modified_by, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (project_id, key_name, language_code, plural_form) DO UPDATE SET
            conflict_type = excluded.conflict_type,
            github_value = excluded.github_value,
            cloud_value = excluded.cloud_value,
            base_value = excluded.base_value,
            commit_sha = excluded.commit_sha,
            cloud_modified_at = excluded.cloud_modified_at,
            cloud_modified_by = excluded.cloud_modified_by`,
		c.ProjectID, c.Ref.Key, c.Ref.Language, string(c.Ref.PluralForm), string(c.Kind),
		nullable(c.GitHubValue), nullable(c.CloudValue), nullable(c.BaseValue), c.CommitSHA,
		timeString(c.CloudModifiedAt), c.CloudModifiedBy, nowRFC3339())
	if err != nil {
		return fmt.Errorf("upsert pending conflict: %w", err)
	}
	return nil
}

func deletePendingConflict(tx *sql.Tx, projectID string, ref sync.EntryRef) error {
	if _, err := tx.Exec(`DELETE FROM pending_conflicts
        WHERE project_id = ? AND key_name = ? AND language_code = ? AND plural_form = ?`,
		projectID, ref.Key, ref.Language, string(ref.PluralForm)); err != nil {
		return fmt.Errorf("delete pending conflict: %w", err)
	}
	return nil
}

const conflictColumns = `id, project_id, key_name, language_code, plural_form,
    conflict_type, github_value, cloud_value, base_value, commit_sha,
    cloud_modified_at, cloud_modified_by, created_at`

func scanConflict(row interface{ Scan(...interface{}) error }) (PendingConflict, error) {
	var c PendingConflict
	var form, kind, modAt, createdAt string
	var ghVal, cloudVal, baseVal sql.NullString
	err := row.Scan(&c.ID, &c.ProjectID, &c.Ref.Key, &c.Ref.Language, &form,
		&kind, &ghVal, &cloudVal, &baseVal, &c.CommitSHA,
		&modAt, &c.CloudModifiedBy, &createdAt)
	if err != nil {
		return c, err
	}
	c.Ref.PluralForm = model.PluralCategory(form)
	c.Kind = sync.ConflictKind(kind)
	c.GitHubValue = fromNullable(ghVal)
	c.CloudValue = fromNullable(cloudVal)
	c.BaseValue = fromNullable(baseVal)
	c.CloudModifiedAt = parseTime(modAt)
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// ListPendingConflicts returns a project's unresolved conflicts,
// oldest first.
func (s *Store) ListPendingConflicts(ctx context.Context, projectID string) ([]PendingConflict, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+conflictColumns+`
        FROM pending_conflicts
        WHERE project_id = ?
        ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pending conflicts: %w", err)
	}
	defer rows.Close()

	var out []PendingConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending conflict: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetPendingConflict returns one pending conflict by id.
func (s *Store) GetPendingConflict(ctx context.Context, projectID string, id int64) (*PendingConflict, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conflictColumns+`
        FROM pending_conflicts
        WHERE project_id = ? AND id = ?`, projectID, id)
	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, ErrConflictNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending conflict: %w", err)
	}
	return &c, nil
}

// ResolvePendingConflict applies a resolution choice: the chosen value
// becomes the new cloud value (a nil chosen side deletes the tuple),
// the GitHub baseline is moved to the chosen value so the next
// reconciliation sees the tuple as in sync, and the conflict row is
// removed. The write is recorded in sync history.
func (s *Store) ResolvePendingConflict(ctx context.Context, projectID string, id int64, choice sync.ResolutionChoice, manualValue string, source sync.Source, actor string) (*HistoryEntry, error) {
	if !choice.IsValid() {
		return nil, fmt.Errorf("invalid resolution choice %q", choice)
	}
	c, err := s.GetPendingConflict(ctx, projectID, id)
	if err != nil {
		return nil, err
	}

	var chosen *string
	switch choice {
	case sync.ResolutionKeepLocal:
		chosen = c.CloudValue
	case sync.ResolutionKeepRemote:
		chosen = c.GitHubValue
	case sync.ResolutionManual:
		chosen = &manualValue
	}

	var historyID string
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := getTranslation(tx, projectID, c.Ref)
		if err != nil {
			return err
		}

		var diffs []HistoryChange
		switch {
		case chosen == nil && cur != nil:
			if err := deleteTranslation(tx, projectID, c.Ref); err != nil {
				return err
			}
			diffs = append(diffs, HistoryChange{Ref: c.Ref, Kind: sync.ChangeDeleted,
				Before: &EntryValue{Value: cur.Value, Comment: cur.Comment}})

		case chosen != nil:
			comment := ""
			if cur != nil {
				comment = cur.Comment
			}
			if cur == nil {
				if _, err := upsertTranslation(tx, projectID, c.Ref, *chosen, comment, actor, 1); err != nil {
					return err
				}
				diffs = append(diffs, HistoryChange{Ref: c.Ref, Kind: sync.ChangeAdded,
					After: &EntryValue{Value: *chosen, Comment: comment}})
			} else if cur.Value != *chosen {
				if _, err := upsertTranslation(tx, projectID, c.Ref, *chosen, comment, actor, cur.Version+1); err != nil {
					return err
				}
				diffs = append(diffs, HistoryChange{Ref: c.Ref, Kind: sync.ChangeModified,
					Before: &EntryValue{Value: cur.Value, Comment: cur.Comment},
					After:  &EntryValue{Value: *chosen, Comment: comment}})
			}
		}

		// Move the GitHub baseline to the chosen value.
		if chosen == nil {
			if err := deleteGitHubState(tx, projectID, c.Ref); err != nil {
				return err
			}
		} else {
			comment := ""
			if cur != nil {
				comment = cur.Comment
			}
			if err := upsertGitHubState(tx, projectID, GitHubState{
				Ref:       c.Ref,
				Hash:      hash.Content(*chosen, comment),
				Value:     *chosen,
				CommitSHA: c.CommitSHA,
			}); err != nil {
				return err
			}
		}

		if err := deletePendingConflict(tx, projectID, c.Ref); err != nil {
			return err
		}
		if len(diffs) > 0 {
			historyID, err = recordHistory(tx, projectID, sync.OpPush, source, actor, diffs, "")
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("conflict resolved",
		logging.Project(projectID),
		logging.Entry(c.Ref.Key),
		logging.Language(c.Ref.Language),
		logging.Source(string(source)),
	)
	if historyID == "" {
		return nil, nil
	}
	return s.GetHistory(ctx, projectID, historyID)
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func fromNullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
