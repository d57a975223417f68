package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/sync"
)

// ErrSnapshotNotFound is returned when a snapshot id does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotType distinguishes user-requested snapshots from the
// automatic ones taken before bulk operations.
type SnapshotType string

const (
	// SnapshotManual is a user-requested snapshot. Manual snapshots are
	// exempt from retention reaping.
	SnapshotManual SnapshotType = "manual"

	// SnapshotAuto is taken automatically before a bulk operation.
	SnapshotAuto SnapshotType = "auto"
)

// Snapshot is a point-in-time copy of a project's tracked values.
type Snapshot struct {
	ProjectID   string       `json:"project_id"`
	ID          string       `json:"id"`
	Type        SnapshotType `json:"type"`
	Description string       `json:"description,omitempty"`
	EntryCount  int          `json:"entry_count"`
	CreatedAt   time.Time    `json:"created_at"`
}

// RetentionPolicy bounds how many automatic snapshots are kept and for
// how long. Zero values disable the corresponding bound.
type RetentionPolicy struct {
	MaxCount int
	MaxAge   time.Duration
}

// CreateSnapshot captures the project's current translations.
func (s *Store) CreateSnapshot(ctx context.Context, projectID string, typ SnapshotType, description string) (*Snapshot, error) {
	entries, err := s.ListTranslations(ctx, projectID)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	snap := &Snapshot{
		ProjectID:   projectID,
		ID:          uuid.NewString(),
		Type:        typ,
		Description: description,
		EntryCount:  len(entries),
		CreatedAt:   time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots
            (project_id, snapshot_id, snapshot_type, description, state_json, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		projectID, snap.ID, string(typ), description, string(payload),
		snap.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	logging.Info("snapshot created",
		logging.Project(projectID),
		logging.Source(string(typ)),
		logging.Count(snap.EntryCount),
	)
	return snap, nil
}

// ListSnapshots returns a project's snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, projectID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT snapshot_id, snapshot_type, description,
            state_json, created_at
        FROM snapshots
        WHERE project_id = ?
        ORDER BY created_at DESC, snapshot_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var typ, stateJSON, createdAt string
		if err := rows.Scan(&snap.ID, &typ, &snap.Description, &stateJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.ProjectID = projectID
		snap.Type = SnapshotType(typ)
		snap.CreatedAt = parseTime(createdAt)
		var entries []sync.RemoteEntry
		if err := json.Unmarshal([]byte(stateJSON), &entries); err == nil {
			snap.EntryCount = len(entries)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// SnapshotEntries returns the captured translations of one snapshot.
func (s *Store) SnapshotEntries(ctx context.Context, projectID, snapshotID string) ([]sync.RemoteEntry, error) {
	var stateJSON string
	err := s.db.QueryRowContext(ctx, `SELECT state_json FROM snapshots
        WHERE project_id = ? AND snapshot_id = ?`, projectID, snapshotID).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var entries []sync.RemoteEntry
	if err := json.Unmarshal([]byte(stateJSON), &entries); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return entries, nil
}

// RestoreSnapshot rewrites the project's translations to the captured
// state. Every differing tuple gets a version bump; the restore is
// recorded in sync history like any other write.
func (s *Store) RestoreSnapshot(ctx context.Context, projectID, snapshotID string, source sync.Source, actor string) (*HistoryEntry, error) {
	entries, err := s.SnapshotEntries(ctx, projectID, snapshotID)
	if err != nil {
		return nil, err
	}
	current, err := s.ListTranslations(ctx, projectID)
	if err != nil {
		return nil, err
	}

	want := make(map[sync.EntryRef]sync.RemoteEntry, len(entries))
	for _, e := range entries {
		want[e.Ref] = e
	}

	var historyID string
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var diffs []HistoryChange

		for _, cur := range current {
			target, keep := want[cur.Ref]
			if keep && target.Value == cur.Value && target.Comment == cur.Comment {
				delete(want, cur.Ref)
				continue
			}
			if !keep {
				if err := deleteTranslation(tx, projectID, cur.Ref); err != nil {
					return err
				}
				diffs = append(diffs, HistoryChange{Ref: cur.Ref, Kind: sync.ChangeDeleted,
					Before: &EntryValue{Value: cur.Value, Comment: cur.Comment}})
				continue
			}
			if _, err := upsertTranslation(tx, projectID, cur.Ref, target.Value, target.Comment, actor, cur.Version+1); err != nil {
				return err
			}
			diffs = append(diffs, HistoryChange{Ref: cur.Ref, Kind: sync.ChangeModified,
				Before: &EntryValue{Value: cur.Value, Comment: cur.Comment},
				After:  &EntryValue{Value: target.Value, Comment: target.Comment}})
			delete(want, cur.Ref)
		}

		// Whatever remains existed in the snapshot but not now.
		for ref, target := range want {
			if _, err := upsertTranslation(tx, projectID, ref, target.Value, target.Comment, actor, 1); err != nil {
				return err
			}
			diffs = append(diffs, HistoryChange{Ref: ref, Kind: sync.ChangeAdded,
				After: &EntryValue{Value: target.Value, Comment: target.Comment}})
		}

		if len(diffs) == 0 {
			return nil
		}
		historyID, err = recordHistory(tx, projectID, sync.OpRevert, source, actor, diffs, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	if historyID == "" {
		return nil, nil
	}
	return s.GetHistory(ctx, projectID, historyID)
}

// DeleteSnapshot removes one snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, projectID, snapshotID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots
        WHERE project_id = ? AND snapshot_id = ?`, projectID, snapshotID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// ReapSnapshots applies the retention policy to automatic snapshots.
// Manual snapshots are never reaped. Returns the number removed.
func (s *Store) ReapSnapshots(ctx context.Context, projectID string, policy RetentionPolicy) (int, error) {
	removed := 0
	if policy.MaxAge > 0 {
		cutoff := time.Now().UTC().Add(-policy.MaxAge).Format(time.RFC3339Nano)
		res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots
            WHERE project_id = ? AND snapshot_type = ? AND created_at < ?`,
			projectID, string(SnapshotAuto), cutoff)
		if err != nil {
			return removed, fmt.Errorf("reap snapshots by age: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	if policy.MaxCount > 0 {
		res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots
            WHERE project_id = ? AND snapshot_type = ? AND snapshot_id NOT IN (
                SELECT snapshot_id FROM snapshots
                WHERE project_id = ? AND snapshot_type = ?
                ORDER BY created_at DESC LIMIT ?
            )`,
			projectID, string(SnapshotAuto), projectID, string(SnapshotAuto), policy.MaxCount)
		if err != nil {
			return removed, fmt.Errorf("reap snapshots by count: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	if removed > 0 {
		logging.Info("snapshots reaped",
			logging.Project(projectID),
			logging.Count(removed),
		)
	}
	return removed, nil
}
