package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"peloton/internal/domain"
	"peloton/internal/events"
	"peloton/internal/repo"
)

func (e Engine) CreateTeam(ctx context.Context, name, description string) (int64, error) {
	if err := e.checkName(ctx, name, e.Repo.TeamNameExists); err != nil {
		return 0, err
	}
	var id int64
	err := e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		var err error
		if id, err = e.IDs.Next(ctx, tx, repo.KindTeam); err != nil {
			return change{}, err
		}
		if err := e.Repo.InsertTeam(ctx, tx, domain.Team{ID: id, Name: name, Description: description, CreatedAt: e.stamp()}); err != nil {
			return change{}, err
		}
		return change{Type: "team.created", Kind: repo.KindTeam, ID: id, Payload: events.EventPayload{"name": name}}, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (e Engine) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return e.Repo.ListTeams(ctx)
}

func (e Engine) GetTeam(ctx context.Context, id int64) (domain.Team, error) {
	t, err := e.Repo.GetTeam(ctx, id)
	return t, notFound("team", id, err)
}

// RemoveTeam deletes the team, its riders and every result they registered.
func (e Engine) RemoveTeam(ctx context.Context, id int64) error {
	team, err := e.GetTeam(ctx, id)
	if err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		if err := e.Repo.DeleteTeam(ctx, tx, id); err != nil {
			return change{}, notFound("team", id, err)
		}
		return change{Type: "team.removed", Kind: repo.KindTeam, ID: id, Payload: events.EventPayload{"name": team.Name}}, nil
	})
}

func (e Engine) CreateRider(ctx context.Context, teamID int64, name string, yearOfBirth int) (int64, error) {
	if _, err := e.GetTeam(ctx, teamID); err != nil {
		return 0, err
	}
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: name is empty", ErrInvalidRider)
	}
	if minYear := e.rules().MinYearOfBirth; yearOfBirth < minYear {
		return 0, fmt.Errorf("%w: year of birth %d before %d", ErrInvalidRider, yearOfBirth, minYear)
	}
	var id int64
	err := e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		var err error
		if id, err = e.IDs.Next(ctx, tx, repo.KindRider); err != nil {
			return change{}, err
		}
		rd := domain.Rider{ID: id, TeamID: teamID, Name: name, YearOfBirth: yearOfBirth, CreatedAt: e.stamp()}
		if err := e.Repo.InsertRider(ctx, tx, rd); err != nil {
			return change{}, err
		}
		return change{Type: "rider.created", Kind: repo.KindRider, ID: id, Payload: events.EventPayload{"team_id": teamID, "name": name}}, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (e Engine) GetRider(ctx context.Context, id int64) (domain.Rider, error) {
	rd, err := e.Repo.GetRider(ctx, id)
	return rd, notFound("rider", id, err)
}

// TeamRiders returns the team's rider ids in creation order.
func (e Engine) TeamRiders(ctx context.Context, teamID int64) ([]int64, error) {
	if _, err := e.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	riders, err := e.Repo.ListRiders(ctx, teamID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(riders))
	for i, rd := range riders {
		ids[i] = rd.ID
	}
	return ids, nil
}

// RemoveRider deletes the rider together with their results in every stage.
func (e Engine) RemoveRider(ctx context.Context, id int64) error {
	rd, err := e.GetRider(ctx, id)
	if err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		if err := e.Repo.DeleteRider(ctx, tx, id); err != nil {
			return change{}, notFound("rider", id, err)
		}
		return change{Type: "rider.removed", Kind: repo.KindRider, ID: id, Payload: events.EventPayload{"team_id": rd.TeamID, "name": rd.Name}}, nil
	})
}
