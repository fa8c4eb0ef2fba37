package engine

import (
	"context"
	"database/sql"
	"fmt"

	"peloton/internal/domain"
	"peloton/internal/events"
	"peloton/internal/repo"
)

// AddClimb adds a categorized climb ending at location km.
func (e Engine) AddClimb(ctx context.Context, stageID int64, location float64, category domain.CheckpointType, averageGradient, length float64) (int64, error) {
	if !category.IsClimb() {
		return 0, fmt.Errorf("%w: %q is not a climb category", ErrInvalidCheckpointType, category)
	}
	return e.addCheckpoint(ctx, stageID, domain.Checkpoint{
		Type:     category,
		Location: location,
		Climb:    &domain.Climb{AverageGradient: averageGradient, Length: length},
	})
}

func (e Engine) AddSprint(ctx context.Context, stageID int64, location float64) (int64, error) {
	return e.addCheckpoint(ctx, stageID, domain.Checkpoint{Type: domain.CheckpointSprint, Location: location})
}

func (e Engine) addCheckpoint(ctx context.Context, stageID int64, cp domain.Checkpoint) (int64, error) {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return 0, err
	}
	if cp.Location < 0 || cp.Location > st.Length {
		return 0, fmt.Errorf("%w: %.3f km on a %.3f km stage", ErrInvalidLocation, cp.Location, st.Length)
	}
	if st.State != domain.StateInPreparation {
		return 0, fmt.Errorf("%w: stage %d is %s", ErrInvalidStageState, stageID, st.State)
	}
	if st.IsTimeTrial() {
		return 0, fmt.Errorf("%w: time trials have no checkpoints", ErrInvalidStageType)
	}
	cp.StageID = stageID
	err = e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		var err error
		if cp.ID, err = e.IDs.Next(ctx, tx, repo.KindCheckpoint); err != nil {
			return change{}, err
		}
		if err := e.Repo.InsertCheckpoint(ctx, tx, cp); err != nil {
			return change{}, err
		}
		return change{Type: "checkpoint.created", Kind: repo.KindCheckpoint, ID: cp.ID, Payload: events.EventPayload{
			"stage_id": stageID, "type": string(cp.Type), "location_km": cp.Location,
		}}, nil
	})
	if err != nil {
		return 0, err
	}
	return cp.ID, nil
}

// RemoveCheckpoint is only allowed while the stage is in preparation.
func (e Engine) RemoveCheckpoint(ctx context.Context, checkpointID int64) error {
	cp, err := e.Repo.GetCheckpoint(ctx, checkpointID)
	if err != nil {
		return notFound("checkpoint", checkpointID, err)
	}
	st, err := e.GetStage(ctx, cp.StageID)
	if err != nil {
		return err
	}
	if st.State != domain.StateInPreparation {
		return fmt.Errorf("%w: stage %d is %s", ErrInvalidStageState, st.ID, st.State)
	}
	return e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		if err := e.Repo.DeleteCheckpoint(ctx, tx, checkpointID); err != nil {
			return change{}, notFound("checkpoint", checkpointID, err)
		}
		return change{Type: "checkpoint.removed", Kind: repo.KindCheckpoint, ID: checkpointID, Payload: events.EventPayload{
			"stage_id": st.ID, "type": string(cp.Type),
		}}, nil
	})
}

// StageCheckpoints returns checkpoint ids in location order.
func (e Engine) StageCheckpoints(ctx context.Context, stageID int64) ([]int64, error) {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(st.Checkpoints))
	for i, cp := range st.Checkpoints {
		ids[i] = cp.ID
	}
	return ids, nil
}
