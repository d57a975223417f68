package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/locforge/locforge/internal/hash"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/sync"
)

// translationRow is the stored form of one tracked value.
type translationRow struct {
	Key         string
	Language    string
	PluralForm  model.PluralCategory
	Value       string
	Comment     string
	ContentHash string
	Version     int64
	UpdatedAt   string
	UpdatedBy   string
}

func getTranslation(tx *sql.Tx, projectID string, ref sync.EntryRef) (*translationRow, error) {
	row := tx.QueryRow(`SELECT key_name, language_code, plural_form, value, comment,
            content_hash, version, updated_at, updated_by
        FROM translations
        WHERE project_id = ? AND key_name = ? AND language_code = ? AND plural_form = ?`,
		projectID, ref.Key, ref.Language, string(ref.PluralForm))
	var t translationRow
	var form string
	err := row.Scan(&t.Key, &t.Language, &form, &t.Value, &t.Comment,
		&t.ContentHash, &t.Version, &t.UpdatedAt, &t.UpdatedBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get translation: %w", err)
	}
	t.PluralForm = model.PluralCategory(form)
	return &t, nil
}

func upsertTranslation(tx *sql.Tx, projectID string, ref sync.EntryRef, value, comment, actor string, version int64) (string, error) {
	h := hash.Content(value, comment)
	_, err := tx.Exec(`INSERT INTO translations
            (project_id, key_name, language_code, plural_form, value, comment,
             content_hash, version, updated_at, updated_by)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (project_id, key_name, language_code, plural_form) DO UPDATE SET
            value = excluded.value,
            comment = excluded.comment,
            content_hash = excluded.content_hash,
            version = excluded.version,
            updated_at = excluded.updated_at,
            updated_by = excluded.updated_by`,
		projectID, ref.Key, ref.Language, string(ref.PluralForm),
		value, comment, h, version, nowRFC3339(), actor)
	if err != nil {
		return "", fmt.Errorf("upsert translation: %w", err)
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO resource_keys (project_id, key_name, comment, created_at)
        VALUES (?, ?, ?, ?)`, projectID, ref.Key, comment, nowRFC3339()); err != nil {
		return "", fmt.Errorf("upsert resource key: %w", err)
	}
	return h, nil
}

func deleteTranslation(tx *sql.Tx, projectID string, ref sync.EntryRef) error {
	if _, err := tx.Exec(`DELETE FROM translations
        WHERE project_id = ? AND key_name = ? AND language_code = ? AND plural_form = ?`,
		projectID, ref.Key, ref.Language, string(ref.PluralForm)); err != nil {
		return fmt.Errorf("delete translation: %w", err)
	}
	// Drop the key row when its last translation is gone.
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM translations WHERE project_id = ? AND key_name = ?`,
		projectID, ref.Key).Scan(&n)
	if err != nil {
		return fmt.Errorf("count translations: %w", err)
	}
	if n == 0 {
		if _, err := tx.Exec(`DELETE FROM resource_keys WHERE project_id = ? AND key_name = ?`,
			projectID, ref.Key); err != nil {
			return fmt.Errorf("delete resource key: %w", err)
		}
	}
	return nil
}

func hasPendingConflict(tx *sql.Tx, projectID string, ref sync.EntryRef) (bool, error) {
	var n int
	err := tx.QueryRow(`SELECT 1 FROM pending_conflicts
        WHERE project_id = ? AND key_name = ? AND language_code = ? AND plural_form = ?`,
		projectID, ref.Key, ref.Language, string(ref.PluralForm)).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check pending conflict: %w", err)
	}
	return true, nil
}

// ApplyPush applies a change-set with per-entry optimistic version
// checks. Entries whose stored version moved past the pushed base
// version come back as conflicts; the rest commit. A change-set that
// ends up applying nothing records no history, so replaying the same
// push is a no-op.
func (s *Store) ApplyPush(ctx context.Context, cs *sync.ChangeSet, actor string) (*sync.PushOutcome, error) {
	outcome := &sync.PushOutcome{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var diffs []HistoryChange
		for _, ch := range cs.Changes {
			blocked, err := hasPendingConflict(tx, cs.ProjectID, ch.Ref)
			if err != nil {
				return err
			}
			cur, err := getTranslation(tx, cs.ProjectID, ch.Ref)
			if err != nil {
				return err
			}
			if blocked {
				outcome.Conflicts = append(outcome.Conflicts, versionConflict(ch, cur, "entry has an unresolved conflict"))
				continue
			}

			switch ch.Kind {
			case sync.ChangeAdded:
				if cur != nil {
					if cur.ContentHash == hash.Content(ch.Value, ch.Comment) {
						outcome.Unchanged++
						outcome.Converged = append(outcome.Converged,
							sync.AppliedChange{Change: ch, NewVersion: cur.Version, NewHash: cur.ContentHash})
						continue
					}
					outcome.Conflicts = append(outcome.Conflicts, versionConflict(ch, cur, "entry already exists with different content"))
					continue
				}
				h, err := upsertTranslation(tx, cs.ProjectID, ch.Ref, ch.Value, ch.Comment, actor, 1)
				if err != nil {
					return err
				}
				outcome.Applied = append(outcome.Applied, sync.AppliedChange{Change: ch, NewVersion: 1, NewHash: h})
				diffs = append(diffs, HistoryChange{Ref: ch.Ref, Kind: ch.Kind,
					After: &EntryValue{Value: ch.Value, Comment: ch.Comment}})

			case sync.ChangeModified:
				if cur == nil {
					outcome.Conflicts = append(outcome.Conflicts, versionConflict(ch, nil, "entry was deleted in the cloud"))
					continue
				}
				if cur.Version != ch.BaseVersion {
					if cur.ContentHash == hash.Content(ch.Value, ch.Comment) {
						// Both sides already hold the same content; report
						// the current version so the pusher can rebase.
						outcome.Unchanged++
						outcome.Converged = append(outcome.Converged,
							sync.AppliedChange{Change: ch, NewVersion: cur.Version, NewHash: cur.ContentHash})
						continue
					}
					outcome.Conflicts = append(outcome.Conflicts, versionConflict(ch, cur,
						fmt.Sprintf("cloud version is %d, push was based on %d", cur.Version, ch.BaseVersion)))
					continue
				}
				newVersion := cur.Version + 1
				h, err := upsertTranslation(tx, cs.ProjectID, ch.Ref, ch.Value, ch.Comment, actor, newVersion)
				if err != nil {
					return err
				}
				outcome.Applied = append(outcome.Applied, sync.AppliedChange{Change: ch, NewVersion: newVersion, NewHash: h})
				diffs = append(diffs, HistoryChange{Ref: ch.Ref, Kind: ch.Kind,
					Before: &EntryValue{Value: cur.Value, Comment: cur.Comment},
					After:  &EntryValue{Value: ch.Value, Comment: ch.Comment}})

			case sync.ChangeDeleted:
				if cur == nil {
					// Already gone; deletion is idempotent. Echo the change
					// so the pusher drops its stale baseline record.
					outcome.Unchanged++
					outcome.Converged = append(outcome.Converged, sync.AppliedChange{Change: ch})
					continue
				}
				if cur.Version != ch.BaseVersion {
					outcome.Conflicts = append(outcome.Conflicts, versionConflict(ch, cur,
						fmt.Sprintf("entry changed in the cloud (version %d) after the deletion was based on %d", cur.Version, ch.BaseVersion)))
					continue
				}
				if err := deleteTranslation(tx, cs.ProjectID, ch.Ref); err != nil {
					return err
				}
				outcome.Applied = append(outcome.Applied, sync.AppliedChange{Change: ch})
				diffs = append(diffs, HistoryChange{Ref: ch.Ref, Kind: ch.Kind,
					Before: &EntryValue{Value: cur.Value, Comment: cur.Comment}})
			}
		}

		if len(outcome.Applied) > 0 {
			id, err := recordHistory(tx, cs.ProjectID, sync.OpPush, cs.Source, actor, diffs, "")
			if err != nil {
				return err
			}
			outcome.HistoryID = id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("push applied",
		logging.Project(cs.ProjectID),
		logging.Operation("push"),
		logging.Count(len(outcome.Applied)),
	)
	return outcome, nil
}

func versionConflict(ch sync.EntryChange, cur *translationRow, reason string) sync.VersionConflict {
	vc := sync.VersionConflict{Ref: ch.Ref, Reason: reason}
	if ch.Kind != sync.ChangeDeleted {
		v := ch.Value
		vc.PushedValue = &v
	}
	if cur != nil {
		cv := cur.Value
		vc.CloudValue = &cv
		vc.CloudComment = cur.Comment
		vc.CloudVersion = cur.Version
		vc.CloudModifiedAt = parseTime(cur.UpdatedAt)
		vc.CloudModifiedBy = cur.UpdatedBy
	}
	return vc
}

// ListTranslations returns every tracked value of a project, ordered by
// key, language, plural form. This is the pull endpoint's payload.
func (s *Store) ListTranslations(ctx context.Context, projectID string) ([]sync.RemoteEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key_name, language_code, plural_form,
            value, comment, content_hash, version, updated_at, updated_by
        FROM translations
        WHERE project_id = ?
        ORDER BY key_name, language_code, plural_form`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list translations: %w", err)
	}
	defer rows.Close()

	var out []sync.RemoteEntry
	for rows.Next() {
		var re sync.RemoteEntry
		var form, updatedAt string
		if err := rows.Scan(&re.Ref.Key, &re.Ref.Language, &form,
			&re.Value, &re.Comment, &re.Hash, &re.Version, &updatedAt, &re.UpdatedBy); err != nil {
			return nil, fmt.Errorf("scan translation: %w", err)
		}
		re.Ref.PluralForm = model.PluralCategory(form)
		re.UpdatedAt = parseTime(updatedAt)
		out = append(out, re)
	}
	return out, rows.Err()
}

// GetTranslation returns the current cloud value for one tuple, nil
// when absent.
func (s *Store) GetTranslation(ctx context.Context, projectID string, ref sync.EntryRef) (*sync.RemoteEntry, error) {
	var re *sync.RemoteEntry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTranslation(tx, projectID, ref)
		if err != nil || t == nil {
			return err
		}
		re = &sync.RemoteEntry{
			Ref:       ref,
			Value:     t.Value,
			Comment:   t.Comment,
			Version:   t.Version,
			Hash:      t.ContentHash,
			UpdatedAt: parseTime(t.UpdatedAt),
			UpdatedBy: t.UpdatedBy,
		}
		return nil
	})
	return re, err
}

// EnsureProject creates the project row if it does not exist yet.
func (s *Store) EnsureProject(ctx context.Context, projectID, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO projects (id, name, created_at)
        VALUES (?, ?, ?)`, projectID, name, nowRFC3339())
	if err != nil {
		return fmt.Errorf("ensure project: %w", err)
	}
	return nil
}
