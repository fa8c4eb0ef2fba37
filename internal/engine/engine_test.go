package engine_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"peloton/internal/config"
	"peloton/internal/db"
	"peloton/internal/domain"
	"peloton/internal/engine"
	"peloton/internal/migrate"
	"peloton/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Dir    string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	eng.ActorID = "tester"
	return testEnv{Engine: eng, Ctx: context.Background(), Dir: dir}
}

var start = time.Date(2024, 7, 14, 9, 0, 0, 0, time.UTC)

func at(minutes int, offset time.Duration) time.Time {
	return start.Add(time.Duration(minutes)*time.Minute + offset)
}

var riderNames = []string{"Bouncer", "Fluffy", "Stormy", "Daniel", "Joel", "Marcus", "Tim", "Annie"}

// passages at the 1.25 km sprint, the 3 km climb, the 4 km sprint, then the finish
var splits = map[string][]time.Time{
	"Bouncer": {at(237, 0), at(400, 0), at(557, 0), at(600, 2*time.Second)},
	"Fluffy":  {at(236, 0), at(415, 0), at(556, 0), at(600, 2*time.Second)},
	"Stormy":  {at(235, 0), at(385, 0), at(555, 0), at(600, -6*time.Second)},
	"Tim":     {at(234, 0), at(400, 0), at(554, 0), at(600, -4*time.Second)},
	"Annie":   {at(233, 0), at(400, 0), at(553, 0), at(600, -2*time.Second)},
	"Daniel":  {at(232, 0), at(400, 0), at(552, 0), at(600, -time.Second)},
	"Joel":    {at(231, 0), at(400, 0), at(551, 0), at(600, 0)},
	"Marcus":  {at(229, 0), at(400, 0), at(551, 0), at(600, 3*time.Second)},
}

type fixture struct {
	RaceID  int64
	StageID int64
	TeamID  int64
	Riders  map[string]int64
}

// must unwraps an (id, error) pair, failing the test on error.
func must(t *testing.T) func(int64, error) int64 {
	return func(id int64, err error) int64 {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
}

// seedStage builds a medium mountain stage with two sprints and a C2 climb
// and registers all eight riders.
func seedStage(t *testing.T, env testEnv) fixture {
	t.Helper()
	e, ctx := env.Engine, env.Ctx
	f := fixture{Riders: map[string]int64{}}
	f.RaceID = must(t)(e.CreateRace(ctx, "Egg&Spoon", "...on a bike"))
	f.StageID = must(t)(e.AddStage(ctx, engine.StageOptions{
		RaceID: f.RaceID, Name: "Egg", Description: "Carry an egg", LengthKm: 6.141, Start: start, Type: domain.StageMediumMountain,
	}))
	must(t)(e.AddClimb(ctx, f.StageID, 3.0, domain.CheckpointC2, 0.8, 5.0))
	must(t)(e.AddSprint(ctx, f.StageID, 4))
	must(t)(e.AddSprint(ctx, f.StageID, 1.25))
	f.TeamID = must(t)(e.CreateTeam(ctx, "Apes", "Zoo escapees"))
	for _, name := range riderNames {
		f.Riders[name] = must(t)(e.CreateRider(ctx, f.TeamID, name, 1990))
	}
	if err := e.ConcludeStagePreparation(ctx, f.StageID); err != nil {
		t.Fatalf("conclude: %v", err)
	}
	for _, name := range riderNames {
		clocks := append([]time.Time{start}, splits[name]...)
		if err := e.RegisterResult(ctx, f.StageID, f.Riders[name], clocks...); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	return f
}

func (f fixture) ids(names ...string) []int64 {
	out := make([]int64, len(names))
	for i, n := range names {
		out[i] = f.Riders[n]
	}
	return out
}

var rankOrder = []string{"Stormy", "Tim", "Annie", "Daniel", "Joel", "Bouncer", "Fluffy", "Marcus"}

func TestStageStandings(t *testing.T) {
	env := newTestEnv(t)
	f := seedStage(t, env)
	e, ctx := env.Engine, env.Ctx

	rank, err := e.RidersRank(ctx, f.StageID)
	if err != nil {
		t.Fatal(err)
	}
	if want := f.ids(rankOrder...); !reflect.DeepEqual(rank, want) {
		t.Fatalf("rank = %v, want %v", rank, want)
	}
	pts, err := e.RidersPoints(ctx, f.StageID)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{50, 47, 48, 49, 54, 31, 33, 51}; !reflect.DeepEqual(pts, want) {
		t.Fatalf("points = %v, want %v", pts, want)
	}
	mountain, err := e.RidersMountainPoints(ctx, f.StageID)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{5, 3, 3, 3, 3, 3, 0, 3}; !reflect.DeepEqual(mountain, want) {
		t.Fatalf("mountain = %v, want %v", mountain, want)
	}
	adjusted, err := e.RankedAdjustedElapsedTimes(ctx, f.StageID)
	if err != nil {
		t.Fatal(err)
	}
	base := 600 * time.Minute
	want := []time.Duration{base - 6*time.Second, base - 4*time.Second, base - 2*time.Second, base - 2*time.Second,
		base - 2*time.Second, base + 2*time.Second, base + 2*time.Second, base + 2*time.Second}
	if !reflect.DeepEqual(adjusted, want) {
		t.Fatalf("adjusted = %v, want %v", adjusted, want)
	}
	d, ok, err := e.ElapsedTime(ctx, f.StageID, f.Riders["Marcus"])
	if err != nil || !ok || d != base+3*time.Second {
		t.Fatalf("elapsed marcus = %v %v %v", d, ok, err)
	}
	d, ok, err = e.AdjustedElapsedTime(ctx, f.StageID, f.Riders["Marcus"])
	if err != nil || !ok || d != base+2*time.Second {
		t.Fatalf("adjusted marcus = %v %v %v", d, ok, err)
	}
	rows, err := e.Classification(ctx, f.StageID)
	if err != nil {
		t.Fatal(err)
	}
	if rows[6].Position != 6 || rows[5].Position != 6 || rows[7].Position != 8 {
		t.Fatalf("tied finishers should share a position: %+v", rows)
	}
}

func TestRiderResults(t *testing.T) {
	env := newTestEnv(t)
	f := seedStage(t, env)
	res, err := env.Engine.RiderResults(env.Ctx, f.StageID, f.Riders["Marcus"])
	if err != nil {
		t.Fatal(err)
	}
	if !res.Registered || len(res.Passages) != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.Passages[0].Equal(at(229, 0)) || !res.Passages[2].Equal(at(551, 0)) {
		t.Fatalf("passages = %v", res.Passages)
	}
	if res.Elapsed != 600*time.Minute+3*time.Second {
		t.Fatalf("elapsed = %v", res.Elapsed)
	}
	if err := env.Engine.DeleteRiderResults(env.Ctx, f.StageID, f.Riders["Marcus"]); err != nil {
		t.Fatal(err)
	}
	res, err = env.Engine.RiderResults(env.Ctx, f.StageID, f.Riders["Marcus"])
	if err != nil {
		t.Fatal(err)
	}
	if res.Registered || len(res.Passages) != 0 {
		t.Fatalf("expected no result after delete: %+v", res)
	}
	if _, ok, err := env.Engine.ElapsedTime(env.Ctx, f.StageID, f.Riders["Marcus"]); err != nil || ok {
		t.Fatalf("expected ok=false, got %v %v", ok, err)
	}
	// deleting again is a no-op
	if err := env.Engine.DeleteRiderResults(env.Ctx, f.StageID, f.Riders["Marcus"]); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestResultRegistrationChecks(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	raceID := must(t)(e.CreateRace(ctx, "Tour", ""))
	stageID := must(t)(e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: "Flat1", LengthKm: 150, Start: start, Type: domain.StageFlat}))
	must(t)(e.AddSprint(ctx, stageID, 80))
	teamID := must(t)(e.CreateTeam(ctx, "Apes", ""))
	riderID := must(t)(e.CreateRider(ctx, teamID, "Joel", 2001))
	clocks := []time.Time{start, at(100, 0), at(200, 0)}

	if err := e.RegisterResult(ctx, stageID, riderID, clocks...); !errors.Is(err, engine.ErrInvalidStageState) {
		t.Fatalf("expected ErrInvalidStageState before conclusion, got %v", err)
	}
	if err := e.ConcludeStagePreparation(ctx, stageID); err != nil {
		t.Fatal(err)
	}
	err := e.ConcludeStagePreparation(ctx, stageID)
	if !errors.Is(err, engine.ErrInvalidStageState) || !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected state error on second conclusion, got %v", err)
	}
	if _, err := e.AddSprint(ctx, stageID, 90); !errors.Is(err, engine.ErrInvalidStageState) {
		t.Fatalf("expected ErrInvalidStageState adding checkpoint, got %v", err)
	}
	if err := e.RegisterResult(ctx, stageID, riderID, clocks[:2]...); !errors.Is(err, engine.ErrInvalidCheckpointTimes) {
		t.Fatalf("expected ErrInvalidCheckpointTimes, got %v", err)
	}
	if err := e.RegisterResult(ctx, stageID, 99, clocks...); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown rider, got %v", err)
	}
	if err := e.RegisterResult(ctx, stageID, riderID, clocks...); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := e.RegisterResult(ctx, stageID, riderID, clocks...); !errors.Is(err, engine.ErrDuplicatedResult) {
		t.Fatalf("expected ErrDuplicatedResult, got %v", err)
	}
	if _, err := e.RidersRank(ctx, 42); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown stage, got %v", err)
	}
}

func TestRegisterResultAcrossMidnight(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	late := time.Date(2024, 7, 14, 23, 30, 0, 0, time.UTC)
	raceID := must(t)(e.CreateRace(ctx, "Nocturne", ""))
	stageID := must(t)(e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: "Night", LengthKm: 20, Start: late, Type: domain.StageFlat}))
	teamID := must(t)(e.CreateTeam(ctx, "Owls", ""))
	riderID := must(t)(e.CreateRider(ctx, teamID, "Hoot", 1999))
	if err := e.ConcludeStagePreparation(ctx, stageID); err != nil {
		t.Fatal(err)
	}
	// the finish clock is given before the start clock and is past midnight
	finish := time.Date(0, 1, 1, 0, 10, 0, 0, time.UTC)
	startClock := time.Date(0, 1, 1, 23, 30, 0, 0, time.UTC)
	if err := e.RegisterResult(ctx, stageID, riderID, finish, startClock); err != nil {
		t.Fatal(err)
	}
	d, ok, err := e.ElapsedTime(ctx, stageID, riderID)
	if err != nil || !ok || d != 40*time.Minute {
		t.Fatalf("elapsed = %v %v %v", d, ok, err)
	}
}

func TestRegisterResultInStageZone(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	raceID := must(t)(e.CreateRace(ctx, "Zones", ""))
	teamID := must(t)(e.CreateTeam(ctx, "Drifters", ""))
	riderID := must(t)(e.CreateRider(ctx, teamID, "Ana", 1995))
	clock := func(h, m int) time.Time { return time.Date(0, 1, 1, h, m, 0, 0, time.UTC) }
	cases := []struct {
		name   string
		start  time.Time
		clocks []time.Time
		want   time.Duration
	}{
		{"East", time.Date(2024, 7, 14, 9, 0, 0, 0, time.FixedZone("", 2*3600)), []time.Time{clock(9, 0), clock(9, 30)}, 30 * time.Minute},
		{"West", time.Date(2024, 7, 14, 20, 0, 0, 0, time.FixedZone("", -5*3600)), []time.Time{clock(20, 0), clock(21, 15)}, 75 * time.Minute},
	}
	for _, tc := range cases {
		stageID := must(t)(e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: tc.name, LengthKm: 20, Start: tc.start, Type: domain.StageFlat}))
		if err := e.ConcludeStagePreparation(ctx, stageID); err != nil {
			t.Fatal(err)
		}
		st, err := e.GetStage(ctx, stageID)
		if err != nil {
			t.Fatal(err)
		}
		_, gotOff := st.Start.Zone()
		_, wantOff := tc.start.Zone()
		if !st.Start.Equal(tc.start) || gotOff != wantOff {
			t.Fatalf("%s: stored start %v, want %v", tc.name, st.Start, tc.start)
		}
		if err := e.RegisterResult(ctx, stageID, riderID, tc.clocks...); err != nil {
			t.Fatal(err)
		}
		d, ok, err := e.ElapsedTime(ctx, stageID, riderID)
		if err != nil || !ok || d != tc.want {
			t.Fatalf("%s: elapsed = %v %v %v, want %v", tc.name, d, ok, err, tc.want)
		}
	}
}

func TestAnchorClocks(t *testing.T) {
	got := engine.AnchorClocks(start, []time.Time{
		time.Date(2000, 3, 3, 8, 59, 0, 0, time.UTC),
		time.Date(2000, 3, 3, 9, 0, 0, 0, time.UTC),
		time.Date(2000, 3, 3, 12, 0, 0, 0, time.UTC),
	})
	want := []time.Time{start, start.Add(3 * time.Hour), start.Add(24*time.Hour - time.Minute)}
	if len(got) != len(want) {
		t.Fatalf("anchored = %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("anchored = %v, want %v", got, want)
		}
	}
}

func TestTimeTrialRejectsCheckpoints(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	raceID := must(t)(e.CreateRace(ctx, "Tour", ""))
	ttID := must(t)(e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: "Chrono", LengthKm: 30, Start: start, Type: domain.StageTimeTrial}))
	if _, err := e.AddSprint(ctx, ttID, 10); !errors.Is(err, engine.ErrInvalidStageType) {
		t.Fatalf("expected ErrInvalidStageType, got %v", err)
	}
	if _, err := e.AddClimb(ctx, ttID, 10, domain.CheckpointC1, 5, 3); !errors.Is(err, engine.ErrInvalidStageType) {
		t.Fatalf("expected ErrInvalidStageType, got %v", err)
	}
}

func TestCheckpointValidation(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	raceID := must(t)(e.CreateRace(ctx, "Tour", ""))
	stageID := must(t)(e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: "Hills", LengthKm: 100, Start: start, Type: domain.StageHighMountain}))
	if _, err := e.AddSprint(ctx, stageID, 100.5); !errors.Is(err, engine.ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
	if _, err := e.AddClimb(ctx, stageID, 50, domain.CheckpointSprint, 5, 3); !errors.Is(err, engine.ErrInvalidCheckpointType) {
		t.Fatalf("expected ErrInvalidCheckpointType, got %v", err)
	}
	late := must(t)(e.AddClimb(ctx, stageID, 90, domain.CheckpointHC, 7.5, 12))
	early := must(t)(e.AddSprint(ctx, stageID, 30))
	ids, err := e.StageCheckpoints(ctx, stageID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []int64{early, late}) {
		t.Fatalf("checkpoints not in location order: %v", ids)
	}
	if err := e.RemoveCheckpoint(ctx, late); err != nil {
		t.Fatal(err)
	}
	if ids, _ := e.StageCheckpoints(ctx, stageID); !reflect.DeepEqual(ids, []int64{early}) {
		t.Fatalf("checkpoint not removed: %v", ids)
	}
	if err := e.RemoveCheckpoint(ctx, late); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := e.ConcludeStagePreparation(ctx, stageID); err != nil {
		t.Fatal(err)
	}
	if err := e.RemoveCheckpoint(ctx, early); !errors.Is(err, engine.ErrInvalidStageState) {
		t.Fatalf("expected ErrInvalidStageState, got %v", err)
	}
}

func TestNameValidation(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	for _, name := range []string{"", "Tour de France", strings.Repeat("x", 31)} {
		if _, err := e.CreateRace(ctx, name, ""); !errors.Is(err, engine.ErrInvalidName) {
			t.Fatalf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
	raceID := must(t)(e.CreateRace(ctx, strings.Repeat("x", 30), ""))
	if _, err := e.CreateRace(ctx, strings.Repeat("x", 30), ""); !errors.Is(err, engine.ErrIllegalName) {
		t.Fatalf("expected ErrIllegalName, got %v", err)
	}
	if _, err := e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: "Short", LengthKm: 4.99, Start: start, Type: domain.StageFlat}); !errors.Is(err, engine.ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	if _, err := e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: "Crit", LengthKm: 50, Start: start, Type: "CRIT"}); !errors.Is(err, engine.ErrInvalidStageType) {
		t.Fatalf("expected ErrInvalidStageType, got %v", err)
	}
	if _, err := e.AddStage(ctx, engine.StageOptions{RaceID: 77, Name: "Lost", LengthKm: 50, Start: start, Type: domain.StageFlat}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	teamID := must(t)(e.CreateTeam(ctx, "Apes", ""))
	if _, err := e.CreateTeam(ctx, "Apes", ""); !errors.Is(err, engine.ErrIllegalName) {
		t.Fatalf("expected ErrIllegalName for team, got %v", err)
	}
	if _, err := e.CreateRider(ctx, teamID, "", 1990); !errors.Is(err, engine.ErrInvalidRider) {
		t.Fatalf("expected ErrInvalidRider for empty name, got %v", err)
	}
	if _, err := e.CreateRider(ctx, teamID, "Old", 1899); !errors.Is(err, engine.ErrInvalidRider) {
		t.Fatalf("expected ErrInvalidRider for year, got %v", err)
	}
	// rider names may repeat and contain spaces
	must(t)(e.CreateRider(ctx, teamID, "Joel Smith", 1990))
	must(t)(e.CreateRider(ctx, teamID, "Joel Smith", 1991))
}

func TestIDsArePerKind(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	raceID := must(t)(e.CreateRace(ctx, "Tour", ""))
	teamID := must(t)(e.CreateTeam(ctx, "Apes", ""))
	stageID := must(t)(e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: "S1", LengthKm: 10, Start: start, Type: domain.StageFlat}))
	riderID := must(t)(e.CreateRider(ctx, teamID, "Joel", 2001))
	if raceID != 1 || teamID != 1 || stageID != 1 || riderID != 1 {
		t.Fatalf("expected first id of each kind to be 1: race=%d team=%d stage=%d rider=%d", raceID, teamID, stageID, riderID)
	}
	second := must(t)(e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: "S2", LengthKm: 10, Start: start, Type: domain.StageFlat}))
	if second != 2 {
		t.Fatalf("second stage id = %d", second)
	}
	if n, err := e.NumberOfStages(ctx, raceID); err != nil || n != 2 {
		t.Fatalf("stages = %d %v", n, err)
	}
}

func TestCascadingRemovals(t *testing.T) {
	env := newTestEnv(t)
	f := seedStage(t, env)
	e, ctx := env.Engine, env.Ctx

	if err := e.RemoveRider(ctx, f.Riders["Stormy"]); err != nil {
		t.Fatal(err)
	}
	rank, err := e.RidersRank(ctx, f.StageID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rank) != 7 || rank[0] != f.Riders["Tim"] {
		t.Fatalf("rank after rider removal = %v", rank)
	}
	if err := e.RemoveTeam(ctx, f.TeamID); err != nil {
		t.Fatal(err)
	}
	rank, err = e.RidersRank(ctx, f.StageID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rank) != 0 {
		t.Fatalf("expected no results after team removal, got %v", rank)
	}
	if pts, err := e.RidersPoints(ctx, f.StageID); err != nil || pts == nil || len(pts) != 0 {
		t.Fatalf("expected empty points, got %v %v", pts, err)
	}
	if err := e.RemoveRace(ctx, f.RaceID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.StageLength(ctx, f.StageID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected stage gone with race, got %v", err)
	}
	if err := e.RemoveRace(ctx, f.RaceID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveStageKeepsOrder(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	raceID := must(t)(e.CreateRace(ctx, "Tour", ""))
	var ids []int64
	for _, name := range []string{"S1", "S2", "S3"} {
		ids = append(ids, must(t)(e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: name, LengthKm: 10, Start: start, Type: domain.StageFlat})))
	}
	if err := e.RemoveStage(ctx, ids[1]); err != nil {
		t.Fatal(err)
	}
	got, err := e.RaceStages(ctx, raceID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int64{ids[0], ids[2]}) {
		t.Fatalf("race stages = %v", got)
	}
	if length, err := e.StageLength(ctx, ids[0]); err != nil || length != 10 {
		t.Fatalf("stage length = %v %v", length, err)
	}
}

func TestEraseResetsEverything(t *testing.T) {
	env := newTestEnv(t)
	seedStage(t, env)
	e, ctx := env.Engine, env.Ctx
	if err := e.Erase(ctx); err != nil {
		t.Fatal(err)
	}
	races, err := e.ListRaces(ctx)
	if err != nil || len(races) != 0 {
		t.Fatalf("races after erase: %v %v", races, err)
	}
	teams, err := e.ListTeams(ctx)
	if err != nil || len(teams) != 0 {
		t.Fatalf("teams after erase: %v %v", teams, err)
	}
	if id := must(t)(e.CreateRace(ctx, "Egg&Spoon", "")); id != 1 {
		t.Fatalf("ids should restart after erase, got %d", id)
	}
	evts, err := e.Repo.LatestEvents(ctx, repo.EventFilters{Type: "portal.erased"})
	if err != nil || len(evts) != 1 || evts[0].ActorID != "tester" {
		t.Fatalf("erase event = %v %v", evts, err)
	}
}

func TestSaveEraseLoad(t *testing.T) {
	env := newTestEnv(t)
	f := seedStage(t, env)
	e, ctx := env.Engine, env.Ctx
	before, err := e.RidersPoints(ctx, f.StageID)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(env.Dir, "portal.yml")
	doc, err := e.Save(ctx, path)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("snapshot without id")
	}
	if err := e.Erase(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Load(ctx, path); err != nil {
		t.Fatalf("load: %v", err)
	}
	after, err := e.RidersPoints(ctx, f.StageID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("points changed across save/load: %v vs %v", before, after)
	}
	st, err := e.GetStage(ctx, f.StageID)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != domain.StateResultsOpen || len(st.Checkpoints) != 3 || st.Checkpoints[0].Location != 1.25 {
		t.Fatalf("stage not restored: %+v", st)
	}
	if next := must(t)(e.CreateRace(ctx, "Another", "")); next != f.RaceID+1 {
		t.Fatalf("sequence not restored: next race id %d", next)
	}
	if next := must(t)(e.CreateRider(ctx, f.TeamID, "Newbie", 2005)); next != int64(len(riderNames)+1) {
		t.Fatalf("sequence not restored: next rider id %d", next)
	}
}

func TestLoadMissingFileLeavesStore(t *testing.T) {
	env := newTestEnv(t)
	f := seedStage(t, env)
	if _, err := env.Engine.Load(env.Ctx, filepath.Join(env.Dir, "nope.yml")); err == nil {
		t.Fatalf("expected load error")
	}
	if rank, err := env.Engine.RidersRank(env.Ctx, f.StageID); err != nil || len(rank) != len(riderNames) {
		t.Fatalf("store changed by failed load: %v %v", rank, err)
	}
}

func TestEmptyStageQueries(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	raceID := must(t)(e.CreateRace(ctx, "Tour", ""))
	stageID := must(t)(e.AddStage(ctx, engine.StageOptions{RaceID: raceID, Name: "Empty", LengthKm: 10, Start: start, Type: domain.StageFlat}))
	rank, err := e.RidersRank(ctx, stageID)
	if err != nil || rank == nil || len(rank) != 0 {
		t.Fatalf("rank = %v %v", rank, err)
	}
	adjusted, err := e.RankedAdjustedElapsedTimes(ctx, stageID)
	if err != nil || adjusted == nil || len(adjusted) != 0 {
		t.Fatalf("adjusted = %v %v", adjusted, err)
	}
	mountain, err := e.RidersMountainPoints(ctx, stageID)
	if err != nil || mountain == nil || len(mountain) != 0 {
		t.Fatalf("mountain = %v %v", mountain, err)
	}
}
