package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"peloton/internal/domain"
)

func (r Repo) InsertResult(ctx context.Context, tx *sql.Tx, res domain.Result, createdAt string) error {
	stamps := make([]string, len(res.Times))
	for i, t := range res.Times {
		stamps[i] = formatTime(t)
	}
	payload, err := json.Marshal(stamps)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO results(stage_id,rider_id,times_json,created_at) VALUES (?,?,?,?)`,
		res.StageID, res.RiderID, string(payload), createdAt)
	return err
}

func decodeTimes(payload string) ([]time.Time, error) {
	var stamps []string
	if err := json.Unmarshal([]byte(payload), &stamps); err != nil {
		return nil, err
	}
	out := make([]time.Time, len(stamps))
	for i, s := range stamps {
		t, err := parseTime(s)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// StageResults maps rider id to timestamps for one stage.
func (r Repo) StageResults(ctx context.Context, stageID int64) (map[int64][]time.Time, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT rider_id,times_json FROM results WHERE stage_id=?`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64][]time.Time{}
	for rows.Next() {
		var riderID int64
		var payload string
		if err := rows.Scan(&riderID, &payload); err != nil {
			return nil, err
		}
		times, err := decodeTimes(payload)
		if err != nil {
			return nil, fmt.Errorf("result stage=%d rider=%d: %w", stageID, riderID, err)
		}
		out[riderID] = times
	}
	return out, rows.Err()
}

// ListResults returns every result ordered by stage and rider.
func (r Repo) ListResults(ctx context.Context) ([]domain.Result, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT stage_id,rider_id,times_json FROM results ORDER BY stage_id, rider_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Result{}
	for rows.Next() {
		var res domain.Result
		var payload string
		if err := rows.Scan(&res.StageID, &res.RiderID, &payload); err != nil {
			return nil, err
		}
		if res.Times, err = decodeTimes(payload); err != nil {
			return nil, fmt.Errorf("result stage=%d rider=%d: %w", res.StageID, res.RiderID, err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// DeleteResult is a no-op when the rider has no result in the stage.
func (r Repo) DeleteResult(ctx context.Context, tx *sql.Tx, stageID, riderID int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM results WHERE stage_id=? AND rider_id=?`, stageID, riderID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
