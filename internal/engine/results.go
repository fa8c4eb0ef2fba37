package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"peloton/internal/domain"
	"peloton/internal/events"
	"peloton/internal/ranking"
)

// RegisterResult records a rider's clock times for a stage: start, one per
// checkpoint, finish. Only the time of day of each clock is used.
func (e Engine) RegisterResult(ctx context.Context, stageID, riderID int64, clocks ...time.Time) error {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return err
	}
	if st.State != domain.StateResultsOpen {
		return fmt.Errorf("%w: stage %d is %s", ErrInvalidStageState, stageID, st.State)
	}
	if len(clocks) != st.NumCriticalPoints() {
		return fmt.Errorf("%w: got %d, stage %d needs %d", ErrInvalidCheckpointTimes, len(clocks), stageID, st.NumCriticalPoints())
	}
	if _, err := e.GetRider(ctx, riderID); err != nil {
		return err
	}
	if _, ok := st.Results[riderID]; ok {
		return fmt.Errorf("%w: rider %d stage %d", ErrDuplicatedResult, riderID, stageID)
	}
	times := AnchorClocks(st.Start, clocks)
	return e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		res := domain.Result{StageID: stageID, RiderID: riderID, Times: times}
		if err := e.Repo.InsertResult(ctx, tx, res, e.stamp()); err != nil {
			return change{}, err
		}
		return change{Type: "result.registered", Kind: "stage", ID: stageID, Payload: events.EventPayload{
			"rider_id": riderID, "finish": times[len(times)-1].Format(time.RFC3339Nano),
		}}, nil
	})
}

// AnchorClocks places each clock time on the stage start date, or on the next
// day when it is earlier than the start clock, and returns them sorted.
func AnchorClocks(start time.Time, clocks []time.Time) []time.Time {
	out := make([]time.Time, len(clocks))
	for i, c := range clocks {
		h, m, s := c.Clock()
		t := time.Date(start.Year(), start.Month(), start.Day(), h, m, s, c.Nanosecond(), start.Location())
		if t.Before(start) {
			t = t.AddDate(0, 0, 1)
		}
		out[i] = t
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// RiderResult is a rider's registered passage times at the checkpoints,
// without start and finish, plus their own start-to-finish time.
type RiderResult struct {
	Registered bool          `json:"registered"`
	Passages   []time.Time   `json:"passages"`
	Elapsed    time.Duration `json:"elapsed"`
}

// RiderResults reports Registered false and no passages for a rider with no
// result in the stage.
func (e Engine) RiderResults(ctx context.Context, stageID, riderID int64) (RiderResult, error) {
	st, err := e.GetStage(ctx, stageID)
	if err != nil {
		return RiderResult{}, err
	}
	if _, err := e.GetRider(ctx, riderID); err != nil {
		return RiderResult{}, err
	}
	times, ok := st.Results[riderID]
	if !ok || len(times) < 2 {
		return RiderResult{Passages: []time.Time{}}, nil
	}
	passages := append([]time.Time{}, times[1:len(times)-1]...)
	return RiderResult{
		Registered: true,
		Passages:   passages,
		Elapsed:    ranking.RideTime(times),
	}, nil
}

// DeleteRiderResults removes the rider's result from the stage, if any.
func (e Engine) DeleteRiderResults(ctx context.Context, stageID, riderID int64) error {
	if _, err := e.GetStage(ctx, stageID); err != nil {
		return err
	}
	if _, err := e.GetRider(ctx, riderID); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		removed, err := e.Repo.DeleteResult(ctx, tx, stageID, riderID)
		if err != nil {
			return change{}, err
		}
		return change{Type: "result.deleted", Kind: "stage", ID: stageID, Payload: events.EventPayload{
			"rider_id": riderID, "removed": removed,
		}}, nil
	})
}
