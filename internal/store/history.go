package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/sync"
)

// ErrHistoryNotFound is returned when a history id does not exist for
// the project.
var ErrHistoryNotFound = errors.New("history entry not found")

// EntryValue is one side of a recorded change: the value and comment a
// tuple held before or after the operation.
type EntryValue struct {
	Value   string `json:"value"`
	Comment string `json:"comment,omitempty"`
}

// HistoryChange is one recorded per-entry change. Before/After carry
// enough state to invert the change on revert: added entries have only
// After, deleted ones only Before.
type HistoryChange struct {
	Ref    sync.EntryRef   `json:"ref"`
	Kind   sync.ChangeKind `json:"kind"`
	Before *EntryValue     `json:"before,omitempty"`
	After  *EntryValue     `json:"after,omitempty"`
}

// HistoryEntry is one row of the append-only sync history ledger.
type HistoryEntry struct {
	ProjectID      string          `json:"project_id"`
	ID             string          `json:"id"`
	Operation      sync.OpType     `json:"operation"`
	Source         sync.Source     `json:"source"`
	Added          int             `json:"added"`
	Modified       int             `json:"modified"`
	Deleted        int             `json:"deleted"`
	Changes        []HistoryChange `json:"changes,omitempty"`
	RevertedFromID string          `json:"reverted_from_id,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// newHistoryID generates a short opaque id, retrying on the (unlikely)
// collision within the project's ledger.
func newHistoryID(tx *sql.Tx, projectID string) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		b := make([]byte, 4)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generate history id: %w", err)
		}
		id := hex.EncodeToString(b)
		var n int
		err := tx.QueryRow(`SELECT 1 FROM sync_history WHERE project_id = ? AND history_id = ?`,
			projectID, id).Scan(&n)
		if err == sql.ErrNoRows {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("check history id: %w", err)
		}
	}
	return "", errors.New("could not generate a unique history id")
}

func recordHistory(tx *sql.Tx, projectID string, op sync.OpType, source sync.Source, actor string, changes []HistoryChange, revertedFromID string) (string, error) {
	id, err := newHistoryID(tx, projectID)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("encode history changes: %w", err)
	}
	var added, modified, deleted int
	for _, c := range changes {
		switch c.Kind {
		case sync.ChangeAdded:
			added++
		case sync.ChangeModified:
			modified++
		case sync.ChangeDeleted:
			deleted++
		}
	}
	var revert interface{}
	if revertedFromID != "" {
		revert = revertedFromID
	}
	if _, err := tx.Exec(`INSERT INTO sync_history
            (project_id, history_id, operation_type, source,
             entries_added, entries_modified, entries_deleted,
             changes_json, reverted_from_id, created_by, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		projectID, id, string(op), string(source),
		added, modified, deleted, string(payload), revert, actor, nowRFC3339()); err != nil {
		return "", fmt.Errorf("record history: %w", err)
	}
	return id, nil
}

// ListHistory returns the project's ledger, newest first.
func (s *Store) ListHistory(ctx context.Context, projectID string, limit int) ([]HistoryEntry, error) {
	q := `SELECT history_id, operation_type, source,
            entries_added, entries_modified, entries_deleted,
            reverted_from_id, created_by, created_at
        FROM sync_history
        WHERE project_id = ?
        ORDER BY created_at DESC, history_id`
	args := []interface{}{projectID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var op, source, createdAt string
		var revert sql.NullString
		if err := rows.Scan(&e.ID, &op, &source,
			&e.Added, &e.Modified, &e.Deleted, &revert, &e.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.ProjectID = projectID
		e.Operation = sync.OpType(op)
		e.Source = sync.Source(source)
		e.RevertedFromID = revert.String
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetHistory returns one ledger entry with its full change list.
func (s *Store) GetHistory(ctx context.Context, projectID, historyID string) (*HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT operation_type, source,
            entries_added, entries_modified, entries_deleted,
            changes_json, reverted_from_id, created_by, created_at
        FROM sync_history
        WHERE project_id = ? AND history_id = ?`, projectID, historyID)
	e := HistoryEntry{ProjectID: projectID, ID: historyID}
	var op, source, changesJSON, createdAt string
	var revert sql.NullString
	err := row.Scan(&op, &source, &e.Added, &e.Modified, &e.Deleted,
		&changesJSON, &revert, &e.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	e.Operation = sync.OpType(op)
	e.Source = sync.Source(source)
	e.RevertedFromID = revert.String
	e.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(changesJSON), &e.Changes); err != nil {
		return nil, fmt.Errorf("decode history changes: %w", err)
	}
	return &e, nil
}

// Revert undoes one history entry by applying the inverse of each of
// its recorded changes as a brand-new operation. The ledger stays
// append-only: the original entry is untouched and the revert is a new
// entry pointing back at it, so a revert can itself be reverted.
func (s *Store) Revert(ctx context.Context, projectID, historyID string, source sync.Source, actor string) (*HistoryEntry, error) {
	target, err := s.GetHistory(ctx, projectID, historyID)
	if err != nil {
		return nil, err
	}

	var newID string
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var diffs []HistoryChange
		for _, ch := range target.Changes {
			cur, err := getTranslation(tx, projectID, ch.Ref)
			if err != nil {
				return err
			}
			switch ch.Kind {
			case sync.ChangeAdded:
				// Inverse of add is delete.
				if cur == nil {
					continue
				}
				if err := deleteTranslation(tx, projectID, ch.Ref); err != nil {
					return err
				}
				diffs = append(diffs, HistoryChange{Ref: ch.Ref, Kind: sync.ChangeDeleted,
					Before: &EntryValue{Value: cur.Value, Comment: cur.Comment}})

			case sync.ChangeModified:
				if ch.Before == nil {
					continue
				}
				if cur != nil && cur.Value == ch.Before.Value && cur.Comment == ch.Before.Comment {
					continue
				}
				version := int64(1)
				kind := sync.ChangeAdded
				var before *EntryValue
				if cur != nil {
					version = cur.Version + 1
					kind = sync.ChangeModified
					before = &EntryValue{Value: cur.Value, Comment: cur.Comment}
				}
				if _, err := upsertTranslation(tx, projectID, ch.Ref, ch.Before.Value, ch.Before.Comment, actor, version); err != nil {
					return err
				}
				diffs = append(diffs, HistoryChange{Ref: ch.Ref, Kind: kind,
					Before: before,
					After:  &EntryValue{Value: ch.Before.Value, Comment: ch.Before.Comment}})

			case sync.ChangeDeleted:
				// Inverse of delete is re-create.
				if ch.Before == nil || cur != nil {
					continue
				}
				if _, err := upsertTranslation(tx, projectID, ch.Ref, ch.Before.Value, ch.Before.Comment, actor, 1); err != nil {
					return err
				}
				diffs = append(diffs, HistoryChange{Ref: ch.Ref, Kind: sync.ChangeAdded,
					After: &EntryValue{Value: ch.Before.Value, Comment: ch.Before.Comment}})
			}
		}
		id, err := recordHistory(tx, projectID, sync.OpRevert, source, actor, diffs, historyID)
		if err != nil {
			return err
		}
		newID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("history entry reverted",
		logging.Project(projectID),
		logging.Operation("revert"),
		logging.Source(string(source)),
	)
	return s.GetHistory(ctx, projectID, newID)
}
