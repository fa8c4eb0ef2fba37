package repo

import (
	"context"
	"database/sql"
	"fmt"

	"peloton/internal/domain"
)

const stageColumns = `id,race_id,name,COALESCE(description,''),length_km,start_at,type,state,created_at`

func (r Repo) InsertStage(ctx context.Context, tx *sql.Tx, st domain.Stage) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stages(id,race_id,position,name,description,length_km,start_at,type,state,created_at)
VALUES (?,?,(SELECT COALESCE(MAX(position),0)+1 FROM stages WHERE race_id=?),?,?,?,?,?,?,?)`,
		st.ID, st.RaceID, st.RaceID, st.Name, nullable(st.Description), st.Length, formatTime(st.Start),
		string(st.Type), string(st.State), st.CreatedAt)
	return err
}

func scanStage(scan func(dest ...any) error) (domain.Stage, error) {
	var st domain.Stage
	var start, typ, state string
	if err := scan(&st.ID, &st.RaceID, &st.Name, &st.Description, &st.Length, &start, &typ, &state, &st.CreatedAt); err != nil {
		return st, err
	}
	t, err := parseTime(start)
	if err != nil {
		return st, fmt.Errorf("stage %d start: %w", st.ID, err)
	}
	st.Start = t
	st.Type = domain.StageType(typ)
	st.State = domain.StageState(state)
	return st, nil
}

// GetStage loads the full stage aggregate: checkpoints in location order and
// every registered result.
func (r Repo) GetStage(ctx context.Context, id int64) (domain.Stage, error) {
	st, err := scanStage(r.DB.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return st, ErrNotFound
	}
	if err != nil {
		return st, err
	}
	if err := r.fillStage(ctx, &st); err != nil {
		return st, err
	}
	return st, nil
}

// ListStages returns every stage aggregate ordered by race and position.
func (r Repo) ListStages(ctx context.Context) ([]domain.Stage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stageColumns+` FROM stages ORDER BY race_id, position, id`)
	if err != nil {
		return nil, err
	}
	res := []domain.Stage{}
	for rows.Next() {
		st, err := scanStage(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if err := r.fillStage(ctx, &res[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) fillStage(ctx context.Context, st *domain.Stage) error {
	cps, err := r.ListCheckpoints(ctx, st.ID)
	if err != nil {
		return err
	}
	st.Checkpoints = cps
	st.SortCheckpoints()
	results, err := r.StageResults(ctx, st.ID)
	if err != nil {
		return err
	}
	st.Results = results
	return nil
}

func (r Repo) StageNameExists(ctx context.Context, name string) (bool, error) {
	return exists(ctx, r.DB, `SELECT count(*) FROM stages WHERE name=?`, name)
}

func (r Repo) UpdateStageState(ctx context.Context, tx *sql.Tx, id int64, state domain.StageState) error {
	return deleted(tx.ExecContext(ctx, `UPDATE stages SET state=? WHERE id=?`, string(state), id))
}

// DeleteStage removes the stage with its checkpoints and results.
func (r Repo) DeleteStage(ctx context.Context, tx *sql.Tx, id int64) error {
	return deleted(tx.ExecContext(ctx, `DELETE FROM stages WHERE id=?`, id))
}
