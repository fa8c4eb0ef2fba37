package ranking_test

import (
	"reflect"
	"testing"
	"time"

	"peloton/internal/domain"
	"peloton/internal/ranking"
)

var stageStart = time.Date(2024, 7, 14, 9, 0, 0, 0, time.UTC)

const (
	bouncer int64 = iota + 1
	fluffy
	stormy
	dan
	joel
	marcus
	tim
	annie
)

// bunchStage has two checkpoints and eight finishers clustered around 555 minutes.
func bunchStage(t *testing.T, typ domain.StageType) domain.Stage {
	t.Helper()
	base := stageStart.Add(555 * time.Minute)
	finishes := map[int64]time.Time{
		bouncer: base.Add(time.Second),
		fluffy:  base.Add(2 * time.Second),
		stormy:  base.Add(-4*time.Second - time.Nanosecond),
		dan:     base.Add(-time.Second),
		joel:    base,
		marcus:  base.Add(3 * time.Second),
		tim:     base.Add(-4 * time.Second),
		annie:   base.Add(-2 * time.Second),
	}
	st := domain.Stage{
		ID:      1,
		Start:   stageStart,
		Type:    typ,
		State:   domain.StateResultsOpen,
		Results: map[int64][]time.Time{},
	}
	if typ != domain.StageTimeTrial {
		st.Checkpoints = []domain.Checkpoint{
			{ID: 1, Type: domain.CheckpointC2, Location: 3, Climb: &domain.Climb{AverageGradient: 0.8, Length: 5}},
			{ID: 2, Type: domain.CheckpointSprint, Location: 4},
		}
	}
	for id, f := range finishes {
		if typ == domain.StageTimeTrial {
			st.Results[id] = []time.Time{stageStart, f}
			continue
		}
		st.Results[id] = []time.Time{stageStart, stageStart.Add(230 * time.Minute), stageStart.Add(400 * time.Minute), f}
	}
	return st
}

func TestElapsedMassStartUsesStageStart(t *testing.T) {
	st := bunchStage(t, domain.StageMediumMountain)
	// a late individual start is ignored on mass-start stages
	st.Results[joel][0] = stageStart.Add(10 * time.Minute)
	got, ok := ranking.ElapsedTime(st, joel)
	if !ok {
		t.Fatalf("expected result for joel")
	}
	if want := 555 * time.Minute; got != want {
		t.Fatalf("elapsed = %v, want %v", got, want)
	}
}

func TestElapsedTimeTrialUsesRiderStart(t *testing.T) {
	st := bunchStage(t, domain.StageTimeTrial)
	st.Results[joel][0] = stageStart.Add(10 * time.Minute)
	got, _ := ranking.ElapsedTime(st, joel)
	if want := 545 * time.Minute; got != want {
		t.Fatalf("elapsed = %v, want %v", got, want)
	}
}

func TestElapsedWrapsPastMidnight(t *testing.T) {
	start := time.Date(2024, 7, 14, 23, 30, 0, 0, time.UTC)
	st := domain.Stage{
		Start: start,
		Type:  domain.StageFlat,
		Results: map[int64][]time.Time{
			// clock values recorded without a date roll
			1: {start, time.Date(2024, 7, 14, 0, 15, 0, 0, time.UTC)},
		},
	}
	got, _ := ranking.ElapsedTime(st, 1)
	if want := 45 * time.Minute; got != want {
		t.Fatalf("elapsed = %v, want %v", got, want)
	}
	adj, _ := ranking.AdjustedElapsedTime(st, 1)
	if adj != got {
		t.Fatalf("adjusted = %v, want %v", adj, got)
	}
}

func TestElapsedUnknownRider(t *testing.T) {
	st := bunchStage(t, domain.StageFlat)
	if _, ok := ranking.ElapsedTime(st, 99); ok {
		t.Fatalf("expected ok=false for rider without result")
	}
	if _, ok := ranking.AdjustedElapsedTime(st, 99); ok {
		t.Fatalf("expected ok=false for rider without result")
	}
}

func TestAdjustedElapsedTimeChainsThroughBunch(t *testing.T) {
	st := bunchStage(t, domain.StageMediumMountain)
	elapsed, _ := ranking.ElapsedTime(st, marcus)
	adjusted, ok := ranking.AdjustedElapsedTime(st, marcus)
	if !ok {
		t.Fatalf("expected result")
	}
	if want := elapsed - 5*time.Second; adjusted != want {
		t.Fatalf("adjusted = %v, want %v", adjusted, want)
	}
	// a one nanosecond gap still bunches
	stormyAdj, _ := ranking.AdjustedElapsedTime(st, stormy)
	timAdj, _ := ranking.AdjustedElapsedTime(st, tim)
	if stormyAdj != timAdj {
		t.Fatalf("tim %v should share stormy's time %v", timAdj, stormyAdj)
	}
}

func TestAdjustedElapsedTimeTransitiveSubSecondGaps(t *testing.T) {
	c := stageStart.Add(3 * time.Hour)
	b := c.Add(900 * time.Millisecond)
	a := b.Add(500 * time.Millisecond)
	st := domain.Stage{
		Start: stageStart,
		Type:  domain.StageFlat,
		Results: map[int64][]time.Time{
			1: {stageStart, a},
			2: {stageStart, b},
			3: {stageStart, c},
			4: {stageStart, c.Add(-1500 * time.Millisecond)},
		},
	}
	want := 3 * time.Hour
	for _, id := range []int64{1, 2, 3} {
		got, _ := ranking.AdjustedElapsedTime(st, id)
		if got != want {
			t.Fatalf("rider %d adjusted = %v, want %v", id, got, want)
		}
	}
	got, _ := ranking.AdjustedElapsedTime(st, 4)
	if want := 3*time.Hour - 1500*time.Millisecond; got != want {
		t.Fatalf("leader adjusted = %v, want %v", got, want)
	}
}

func TestAdjustedElapsedTimeStopsAboveOneSecond(t *testing.T) {
	st := domain.Stage{
		Start: stageStart,
		Type:  domain.StageHighMountain,
		Results: map[int64][]time.Time{
			1: {stageStart, stageStart.Add(time.Hour)},
			2: {stageStart, stageStart.Add(time.Hour + time.Second + time.Nanosecond)},
		},
	}
	got, _ := ranking.AdjustedElapsedTime(st, 2)
	if want := time.Hour + time.Second + time.Nanosecond; got != want {
		t.Fatalf("adjusted = %v, want %v", got, want)
	}
}

func TestAdjustedNeverLaterThanElapsed(t *testing.T) {
	st := bunchStage(t, domain.StageFlat)
	for id := range st.Results {
		elapsed, _ := ranking.ElapsedTime(st, id)
		adjusted, _ := ranking.AdjustedElapsedTime(st, id)
		if adjusted > elapsed {
			t.Fatalf("rider %d adjusted %v later than elapsed %v", id, adjusted, elapsed)
		}
	}
}

func TestTimeTrialIsNeverAdjusted(t *testing.T) {
	st := bunchStage(t, domain.StageTimeTrial)
	for id := range st.Results {
		elapsed, _ := ranking.ElapsedTime(st, id)
		adjusted, _ := ranking.AdjustedElapsedTime(st, id)
		if adjusted != elapsed {
			t.Fatalf("rider %d adjusted %v != elapsed %v", id, adjusted, elapsed)
		}
	}
}

func TestRankOrdersByElapsed(t *testing.T) {
	st := bunchStage(t, domain.StageMediumMountain)
	want := []int64{stormy, tim, annie, dan, joel, bouncer, fluffy, marcus}
	if got := ranking.Rank(st); !reflect.DeepEqual(got, want) {
		t.Fatalf("rank = %v, want %v", got, want)
	}
}

func TestRankTieBreaksByRiderID(t *testing.T) {
	f := stageStart.Add(time.Hour)
	st := domain.Stage{
		Start: stageStart,
		Type:  domain.StageFlat,
		Results: map[int64][]time.Time{
			9: {stageStart, f},
			2: {stageStart, f},
			5: {stageStart, f.Add(-time.Minute)},
		},
	}
	want := []int64{5, 2, 9}
	for i := 0; i < 20; i++ {
		if got := ranking.Rank(st); !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: rank = %v, want %v", i, got, want)
		}
	}
}

func TestRankedAdjustedElapsedTimesFollowRank(t *testing.T) {
	st := bunchStage(t, domain.StageMediumMountain)
	marcusAdj, _ := ranking.AdjustedElapsedTime(st, marcus)
	lead := marcusAdj - 2*time.Second - time.Nanosecond
	want := []time.Duration{lead, lead, marcusAdj, marcusAdj, marcusAdj, marcusAdj, marcusAdj, marcusAdj}
	if got := ranking.RankedAdjustedElapsedTimes(st); !reflect.DeepEqual(got, want) {
		t.Fatalf("ranked adjusted = %v, want %v", got, want)
	}
}

func TestEmptyStage(t *testing.T) {
	st := domain.Stage{Start: stageStart, Type: domain.StageFlat, Results: map[int64][]time.Time{}}
	if got := ranking.Rank(st); got == nil || len(got) != 0 {
		t.Fatalf("rank = %#v, want empty slice", got)
	}
	if got := ranking.RankedAdjustedElapsedTimes(st); got == nil || len(got) != 0 {
		t.Fatalf("ranked adjusted = %#v, want empty slice", got)
	}
}

func TestFinishPositionsShareTies(t *testing.T) {
	standings := []ranking.Standing{
		{RiderID: 1, Elapsed: time.Minute},
		{RiderID: 2, Elapsed: 2 * time.Minute},
		{RiderID: 3, Elapsed: 2 * time.Minute},
		{RiderID: 4, Elapsed: 3 * time.Minute},
	}
	want := []int{0, 1, 1, 3}
	if got := ranking.FinishPositions(standings); !reflect.DeepEqual(got, want) {
		t.Fatalf("positions = %v, want %v", got, want)
	}
}
