package repo

import (
	"context"
	"database/sql"

	"peloton/internal/domain"
)

func (r Repo) InsertRace(ctx context.Context, tx *sql.Tx, race domain.Race) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO races(id,name,description,created_at) VALUES (?,?,?,?)`,
		race.ID, race.Name, nullable(race.Description), race.CreatedAt)
	return err
}

func (r Repo) GetRace(ctx context.Context, id int64) (domain.Race, error) {
	var race domain.Race
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(description,''),created_at FROM races WHERE id=?`, id).
		Scan(&race.ID, &race.Name, &race.Description, &race.CreatedAt)
	if err == sql.ErrNoRows {
		return race, ErrNotFound
	}
	if err != nil {
		return race, err
	}
	race.StageIDs, err = r.RaceStageIDs(ctx, id)
	return race, err
}

// ListRaces returns races in id order, each with its stage ids.
func (r Repo) ListRaces(ctx context.Context) ([]domain.Race, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(description,''),created_at FROM races ORDER BY id`)
	if err != nil {
		return nil, err
	}
	res := []domain.Race{}
	for rows.Next() {
		var race domain.Race
		if err := rows.Scan(&race.ID, &race.Name, &race.Description, &race.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, race)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].StageIDs, err = r.RaceStageIDs(ctx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// RaceStageIDs lists a race's stages in the order they were added.
func (r Repo) RaceStageIDs(ctx context.Context, raceID int64) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM stages WHERE race_id=? ORDER BY position, id`, raceID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (r Repo) RaceNameExists(ctx context.Context, name string) (bool, error) {
	return exists(ctx, r.DB, `SELECT count(*) FROM races WHERE name=?`, name)
}

// DeleteRace removes the race; its stages, checkpoints and results cascade.
func (r Repo) DeleteRace(ctx context.Context, tx *sql.Tx, id int64) error {
	return deleted(tx.ExecContext(ctx, `DELETE FROM races WHERE id=?`, id))
}
