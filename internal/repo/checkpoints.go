package repo

import (
	"context"
	"database/sql"

	"peloton/internal/domain"
)

func (r Repo) InsertCheckpoint(ctx context.Context, tx *sql.Tx, cp domain.Checkpoint) error {
	var gradient, length *float64
	if cp.Climb != nil {
		gradient, length = &cp.Climb.AverageGradient, &cp.Climb.Length
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO checkpoints(id,stage_id,type,location_km,average_gradient,climb_length_km) VALUES (?,?,?,?,?,?)`,
		cp.ID, cp.StageID, string(cp.Type), cp.Location, nullableFloatPtr(gradient), nullableFloatPtr(length))
	return err
}

func scanCheckpoint(scan func(dest ...any) error) (domain.Checkpoint, error) {
	var cp domain.Checkpoint
	var typ string
	var gradient, length sql.NullFloat64
	if err := scan(&cp.ID, &cp.StageID, &typ, &cp.Location, &gradient, &length); err != nil {
		return cp, err
	}
	cp.Type = domain.CheckpointType(typ)
	if cp.Type.IsClimb() {
		cp.Climb = &domain.Climb{AverageGradient: gradient.Float64, Length: length.Float64}
	}
	return cp, nil
}

// ListCheckpoints returns a stage's checkpoints in location order.
func (r Repo) ListCheckpoints(ctx context.Context, stageID int64) ([]domain.Checkpoint, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,stage_id,type,location_km,average_gradient,climb_length_km
FROM checkpoints WHERE stage_id=? ORDER BY location_km, id`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Checkpoint{}
	for rows.Next() {
		cp, err := scanCheckpoint(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, cp)
	}
	return res, rows.Err()
}

func (r Repo) GetCheckpoint(ctx context.Context, id int64) (domain.Checkpoint, error) {
	cp, err := scanCheckpoint(r.DB.QueryRowContext(ctx, `SELECT id,stage_id,type,location_km,average_gradient,climb_length_km
FROM checkpoints WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return cp, ErrNotFound
	}
	return cp, err
}

func (r Repo) DeleteCheckpoint(ctx context.Context, tx *sql.Tx, id int64) error {
	return deleted(tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE id=?`, id))
}
