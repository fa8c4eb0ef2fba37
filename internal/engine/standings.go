package engine

import (
	"context"
	"time"

	"peloton/internal/domain"
	"peloton/internal/points"
	"peloton/internal/ranking"
)

// riderStage loads a stage and checks the rider exists.
func (e Engine) riderStage(ctx context.Context, stageID, riderID int64) (domain.Stage, error) {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return st, err
	}
	if _, err := e.GetRider(ctx, riderID); err != nil {
		return st, err
	}
	return st, nil
}

// ElapsedTime reports ok false when the rider has no result in the stage.
func (e Engine) ElapsedTime(ctx context.Context, stageID, riderID int64) (time.Duration, bool, error) {
	st, err := e.riderStage(ctx, stageID, riderID)
	if err != nil {
		return 0, false, err
	}
	d, ok := ranking.ElapsedTime(st, riderID)
	return d, ok, nil
}

// AdjustedElapsedTime is ElapsedTime with the bunch rule applied.
func (e Engine) AdjustedElapsedTime(ctx context.Context, stageID, riderID int64) (time.Duration, bool, error) {
	st, err := e.riderStage(ctx, stageID, riderID)
	if err != nil {
		return 0, false, err
	}
	d, ok := ranking.AdjustedElapsedTime(st, riderID)
	return d, ok, nil
}

// RidersRank returns rider ids in finishing order.
func (e Engine) RidersRank(ctx context.Context, stageID int64) ([]int64, error) {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	return ranking.Rank(st), nil
}

// RankedAdjustedElapsedTimes lists adjusted times in RidersRank order.
func (e Engine) RankedAdjustedElapsedTimes(ctx context.Context, stageID int64) ([]time.Duration, error) {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	return ranking.RankedAdjustedElapsedTimes(st), nil
}

// RidersPoints returns stage finish plus sprint points in rank order.
func (e Engine) RidersPoints(ctx context.Context, stageID int64) ([]int, error) {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	return points.StagePoints(st), nil
}

// RidersMountainPoints returns climb points in rank order.
func (e Engine) RidersMountainPoints(ctx context.Context, stageID int64) ([]int, error) {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	return points.MountainPoints(st), nil
}

// Standing is one row of a stage classification.
type Standing struct {
	Position       int           `json:"position"`
	RiderID        int64         `json:"rider_id"`
	Elapsed        time.Duration `json:"elapsed"`
	Adjusted       time.Duration `json:"adjusted"`
	Points         int           `json:"points"`
	MountainPoints int           `json:"mountain_points"`
}

// Classification joins rank, times and points for every rider in the stage.
func (e Engine) Classification(ctx context.Context, stageID int64) ([]Standing, error) {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	standings := ranking.Standings(st)
	positions := ranking.FinishPositions(standings)
	adjusted := ranking.RankedAdjustedElapsedTimes(st)
	pts := points.StagePoints(st)
	mountain := points.MountainPoints(st)
	out := make([]Standing, len(standings))
	for i, s := range standings {
		out[i] = Standing{
			Position:       positions[i] + 1,
			RiderID:        s.RiderID,
			Elapsed:        s.Elapsed,
			Adjusted:       adjusted[i],
			Points:         pts[i],
			MountainPoints: mountain[i],
		}
	}
	return out, nil
}
