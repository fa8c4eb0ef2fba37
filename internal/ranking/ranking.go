// Package ranking turns a stage's raw per-rider timestamps into elapsed times,
// bunch-adjusted elapsed times and a finishing order.
package ranking

import (
	"sort"
	"time"

	"peloton/internal/domain"
)

// BunchGap is the largest gap between consecutive finishers that still credits
// the later rider with the earlier rider's time.
const BunchGap = time.Second

// bunchTolerance widens BunchGap so a gap of exactly one second still bunches.
const bunchTolerance = time.Nanosecond

const day = 24 * time.Hour

// Standing is one rider's place in the raw elapsed-time order.
type Standing struct {
	RiderID int64         `json:"rider_id"`
	Elapsed time.Duration `json:"elapsed"`
}

// Elapsed measures one result: finish minus the stage start for mass-start
// stages, finish minus the rider's own start for time trials.
func Elapsed(st domain.Stage, times []time.Time) time.Duration {
	if st.IsTimeTrial() {
		return RideTime(times)
	}
	return between(st.Start, finish(times))
}

// RideTime is finish minus the rider's own first timestamp.
func RideTime(times []time.Time) time.Duration {
	return between(times[0], finish(times))
}

// ElapsedTime reports ok=false when the rider has no result in the stage.
func ElapsedTime(st domain.Stage, riderID int64) (time.Duration, bool) {
	times, ok := st.Results[riderID]
	if !ok || len(times) == 0 {
		return 0, false
	}
	return Elapsed(st, times), true
}

// AdjustedElapsedTime credits a mass-start rider with the time of the earliest
// finisher reachable through a chain of gaps no larger than BunchGap. Time
// trials are never adjusted.
func AdjustedElapsedTime(st domain.Stage, riderID int64) (time.Duration, bool) {
	times, ok := st.Results[riderID]
	if !ok || len(times) == 0 {
		return 0, false
	}
	if st.IsTimeTrial() {
		return Elapsed(st, times), true
	}
	return between(st.Start, bunchedFinish(st, finish(times))), true
}

func bunchedFinish(st domain.Stage, end time.Time) time.Time {
	earlier := make([]time.Time, 0, len(st.Results))
	for _, times := range st.Results {
		if len(times) == 0 {
			continue
		}
		if f := finish(times); f.Before(end) {
			earlier = append(earlier, f)
		}
	}
	sort.Slice(earlier, func(i, j int) bool { return earlier[i].After(earlier[j]) })
	for _, f := range earlier {
		if !end.Before(f.Add(BunchGap + bunchTolerance)) {
			break
		}
		end = f
	}
	return end
}

// Standings orders every rider with a result by raw elapsed time. Equal times
// are ordered by rider id.
func Standings(st domain.Stage) []Standing {
	out := make([]Standing, 0, len(st.Results))
	for riderID, times := range st.Results {
		if len(times) == 0 {
			continue
		}
		out = append(out, Standing{RiderID: riderID, Elapsed: Elapsed(st, times)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Elapsed != out[j].Elapsed {
			return out[i].Elapsed < out[j].Elapsed
		}
		return out[i].RiderID < out[j].RiderID
	})
	return out
}

// Rank returns rider ids in finishing order.
func Rank(st domain.Stage) []int64 {
	standings := Standings(st)
	ids := make([]int64, len(standings))
	for i, s := range standings {
		ids[i] = s.RiderID
	}
	return ids
}

// RankedAdjustedElapsedTimes lists adjusted times in Rank order. Adjustment
// never reorders riders.
func RankedAdjustedElapsedTimes(st domain.Stage) []time.Duration {
	ids := Rank(st)
	out := make([]time.Duration, len(ids))
	for i, id := range ids {
		out[i], _ = AdjustedElapsedTime(st, id)
	}
	return out
}

// FinishPositions gives the 0-based finishing position of each standing.
// Riders on equal elapsed time share the better position.
func FinishPositions(standings []Standing) []int {
	pos := make([]int, len(standings))
	for i := range standings {
		if i > 0 && standings[i].Elapsed == standings[i-1].Elapsed {
			pos[i] = pos[i-1]
			continue
		}
		pos[i] = i
	}
	return pos
}

func finish(times []time.Time) time.Time {
	return times[len(times)-1]
}

// between never reports a negative duration: a finish clock that wrapped past
// midnight counts as the next day.
func between(start, end time.Time) time.Duration {
	d := end.Sub(start)
	if d < 0 {
		d += day
	}
	return d
}
