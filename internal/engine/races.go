package engine

import (
	"context"
	"database/sql"

	"peloton/internal/domain"
	"peloton/internal/events"
	"peloton/internal/repo"
)

func (e Engine) CreateRace(ctx context.Context, name, description string) (int64, error) {
	if err := e.checkName(ctx, name, e.Repo.RaceNameExists); err != nil {
		return 0, err
	}
	var id int64
	err := e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		var err error
		if id, err = e.IDs.Next(ctx, tx, repo.KindRace); err != nil {
			return change{}, err
		}
		race := domain.Race{ID: id, Name: name, Description: description, CreatedAt: e.stamp()}
		if err := e.Repo.InsertRace(ctx, tx, race); err != nil {
			return change{}, err
		}
		return change{Type: "race.created", Kind: repo.KindRace, ID: id, Payload: events.EventPayload{"name": name}}, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (e Engine) ListRaces(ctx context.Context) ([]domain.Race, error) {
	return e.Repo.ListRaces(ctx)
}

func (e Engine) GetRace(ctx context.Context, id int64) (domain.Race, error) {
	race, err := e.Repo.GetRace(ctx, id)
	return race, notFound("race", id, err)
}

func (e Engine) NumberOfStages(ctx context.Context, raceID int64) (int, error) {
	race, err := e.GetRace(ctx, raceID)
	if err != nil {
		return 0, err
	}
	return len(race.StageIDs), nil
}

// RemoveRace deletes the race with all its stages, checkpoints and results.
func (e Engine) RemoveRace(ctx context.Context, id int64) error {
	race, err := e.GetRace(ctx, id)
	if err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		if err := e.Repo.DeleteRace(ctx, tx, id); err != nil {
			return change{}, notFound("race", id, err)
		}
		return change{Type: "race.removed", Kind: repo.KindRace, ID: id, Payload: events.EventPayload{"name": race.Name, "stages": len(race.StageIDs)}}, nil
	})
}
