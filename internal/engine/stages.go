package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"peloton/internal/domain"
	"peloton/internal/events"
	"peloton/internal/repo"
)

// StageOptions are parameters for adding a stage to a race.
type StageOptions struct {
	RaceID      int64
	Name        string
	Description string
	LengthKm    float64
	Start       time.Time
	Type        domain.StageType
}

// AddStage appends a stage to the race. The stage starts in preparation.
func (e Engine) AddStage(ctx context.Context, opts StageOptions) (int64, error) {
	if _, err := e.GetRace(ctx, opts.RaceID); err != nil {
		return 0, err
	}
	if err := e.checkName(ctx, opts.Name, e.Repo.StageNameExists); err != nil {
		return 0, err
	}
	if minLen := e.rules().MinStageLengthKm; opts.LengthKm < minLen {
		return 0, fmt.Errorf("%w: %.3f km is shorter than %.3f km", ErrInvalidLength, opts.LengthKm, minLen)
	}
	if !opts.Type.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStageType, opts.Type)
	}
	if opts.Start.IsZero() {
		return 0, fmt.Errorf("stage start is required")
	}
	var id int64
	err := e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		var err error
		if id, err = e.IDs.Next(ctx, tx, repo.KindStage); err != nil {
			return change{}, err
		}
		st := domain.Stage{
			ID:          id,
			RaceID:      opts.RaceID,
			Name:        opts.Name,
			Description: opts.Description,
			Length:      opts.LengthKm,
			Start:       opts.Start,
			Type:        opts.Type,
			State:       domain.StateInPreparation,
			CreatedAt:   e.stamp(),
		}
		if err := e.Repo.InsertStage(ctx, tx, st); err != nil {
			return change{}, err
		}
		return change{Type: "stage.created", Kind: repo.KindStage, ID: id, Payload: events.EventPayload{
			"race_id": opts.RaceID, "name": opts.Name, "type": string(opts.Type), "length_km": opts.LengthKm,
		}}, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetStage loads the stage with its checkpoints and results.
func (e Engine) GetStage(ctx context.Context, id int64) (domain.Stage, error) {
	st, err := e.Repo.GetStage(ctx, id)
	return st, notFound("stage", id, err)
}

// RaceStages returns the race's stage ids in the order they were added.
func (e Engine) RaceStages(ctx context.Context, raceID int64) ([]int64, error) {
	race, err := e.GetRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	return race.StageIDs, nil
}

func (e Engine) StageLength(ctx context.Context, stageID int64) (float64, error) {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return 0, err
	}
	return st.Length, nil
}

func (e Engine) RemoveStage(ctx context.Context, stageID int64) error {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		if err := e.Repo.DeleteStage(ctx, tx, stageID); err != nil {
			return change{}, notFound("stage", stageID, err)
		}
		return change{Type: "stage.removed", Kind: repo.KindStage, ID: stageID, Payload: events.EventPayload{
			"race_id": st.RaceID, "name": st.Name, "results": len(st.Results),
		}}, nil
	})
}

// ConcludeStagePreparation freezes the checkpoints and opens the stage for
// results. It fails on a stage that is already open.
func (e Engine) ConcludeStagePreparation(ctx context.Context, stageID int64) error {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return err
	}
	next, err := st.State.Transition(domain.StateResultsOpen)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStageState, err)
	}
	return e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		if err := e.Repo.UpdateStageState(ctx, tx, stageID, next); err != nil {
			return change{}, err
		}
		return change{Type: "stage.prepared", Kind: repo.KindStage, ID: stageID, Payload: events.EventPayload{
			"from": string(st.State), "to": string(next), "checkpoints": len(st.Checkpoints),
		}}, nil
	})
}
