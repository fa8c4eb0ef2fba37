package repo

import (
	"context"
	"database/sql"

	"peloton/internal/domain"
)

func (r Repo) InsertTeam(ctx context.Context, tx *sql.Tx, t domain.Team) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO teams(id,name,description,created_at) VALUES (?,?,?,?)`,
		t.ID, t.Name, nullable(t.Description), t.CreatedAt)
	return err
}

func (r Repo) GetTeam(ctx context.Context, id int64) (domain.Team, error) {
	var t domain.Team
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(description,''),created_at FROM teams WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(description,''),created_at FROM teams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Team{}
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) TeamNameExists(ctx context.Context, name string) (bool, error) {
	return exists(ctx, r.DB, `SELECT count(*) FROM teams WHERE name=?`, name)
}

// DeleteTeam removes the team; its riders and their results cascade.
func (r Repo) DeleteTeam(ctx context.Context, tx *sql.Tx, id int64) error {
	return deleted(tx.ExecContext(ctx, `DELETE FROM teams WHERE id=?`, id))
}

func (r Repo) InsertRider(ctx context.Context, tx *sql.Tx, rd domain.Rider) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO riders(id,team_id,name,year_of_birth,created_at) VALUES (?,?,?,?,?)`,
		rd.ID, rd.TeamID, rd.Name, rd.YearOfBirth, rd.CreatedAt)
	return err
}

func (r Repo) GetRider(ctx context.Context, id int64) (domain.Rider, error) {
	var rd domain.Rider
	err := r.DB.QueryRowContext(ctx, `SELECT id,team_id,name,year_of_birth,created_at FROM riders WHERE id=?`, id).
		Scan(&rd.ID, &rd.TeamID, &rd.Name, &rd.YearOfBirth, &rd.CreatedAt)
	if err == sql.ErrNoRows {
		return rd, ErrNotFound
	}
	return rd, err
}

// ListRiders returns riders in id order; teamID 0 lists every team.
func (r Repo) ListRiders(ctx context.Context, teamID int64) ([]domain.Rider, error) {
	query := `SELECT id,team_id,name,year_of_birth,created_at FROM riders`
	var args []any
	if teamID != 0 {
		query += ` WHERE team_id=?`
		args = append(args, teamID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Rider{}
	for rows.Next() {
		var rd domain.Rider
		if err := rows.Scan(&rd.ID, &rd.TeamID, &rd.Name, &rd.YearOfBirth, &rd.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rd)
	}
	return res, rows.Err()
}

// DeleteRider removes the rider and every result they registered.
func (r Repo) DeleteRider(ctx context.Context, tx *sql.Tx, id int64) error {
	return deleted(tx.ExecContext(ctx, `DELETE FROM riders WHERE id=?`, id))
}
