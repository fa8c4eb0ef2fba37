package repo

import (
	"context"
	"database/sql"
	"fmt"
)

// Entity kinds that own an id sequence.
const (
	KindRace       = "race"
	KindStage      = "stage"
	KindCheckpoint = "checkpoint"
	KindTeam       = "team"
	KindRider      = "rider"
)

var Kinds = []string{KindRace, KindStage, KindCheckpoint, KindTeam, KindRider}

// SequenceIDs allocates ids from one counter per entity kind, stored in the
// sequences table so allocation survives restarts and rolls back with its
// transaction.
type SequenceIDs struct{}

func (SequenceIDs) Next(ctx context.Context, tx *sql.Tx, kind string) (int64, error) {
	var v int64
	err := tx.QueryRowContext(ctx, `INSERT INTO sequences(kind,value) VALUES (?,1)
ON CONFLICT(kind) DO UPDATE SET value=value+1 RETURNING value`, kind).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", kind, err)
	}
	return v, nil
}

// Sequences returns the last allocated id per kind.
func (r Repo) Sequences(ctx context.Context) (map[string]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT kind,value FROM sequences`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var kind string
		var v int64
		if err := rows.Scan(&kind, &v); err != nil {
			return nil, err
		}
		out[kind] = v
	}
	return out, rows.Err()
}

func (r Repo) SetSequence(ctx context.Context, tx *sql.Tx, kind string, v int64) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sequences(kind,value) VALUES (?,?)
ON CONFLICT(kind) DO UPDATE SET value=excluded.value`, kind, v)
	return err
}

// Truncate removes every entity, result and sequence. Events are kept.
func (r Repo) Truncate(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"results", "checkpoints", "stages", "races", "riders", "teams", "sequences"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
