// Package points allocates stage-finish, intermediate-sprint and mountain
// points for a stage. Every result is aligned with ranking.Rank.
package points

import (
	"sort"
	"time"

	"peloton/internal/domain"
	"peloton/internal/ranking"
)

// StagePoints sums finish points and, outside time trials, the points won at
// every intermediate sprint.
func StagePoints(st domain.Stage) []int {
	standings := ranking.Standings(st)
	out := make([]int, len(standings))
	if len(standings) == 0 {
		return out
	}
	table := stageFinish[st.Type]
	for i, pos := range ranking.FinishPositions(standings) {
		out[i] = table.At(pos)
	}
	if st.IsTimeTrial() {
		return out
	}
	for idx, cp := range st.Checkpoints {
		if cp.Type != domain.CheckpointSprint {
			continue
		}
		award(out, st, standings, idx, intermediateSprint)
	}
	return out
}

// MountainPoints sums the points won at every categorized climb. Time trials
// pay none.
func MountainPoints(st domain.Stage) []int {
	standings := ranking.Standings(st)
	out := make([]int, len(standings))
	if len(standings) == 0 || st.IsTimeTrial() {
		return out
	}
	for idx, cp := range st.Checkpoints {
		if !cp.Type.IsClimb() {
			continue
		}
		award(out, st, standings, idx, mountain[cp.Type])
	}
	return out
}

// award ranks riders by their passage at checkpoint idx and adds the table's
// points to totals, which is indexed like standings.
func award(totals []int, st domain.Stage, standings []ranking.Standing, idx int, table Table) {
	passages := make([]time.Time, len(standings))
	for i, s := range standings {
		passages[i] = st.Results[s.RiderID][idx+1]
	}
	for i, pos := range positions(passages) {
		totals[i] += table.At(pos)
	}
}

// positions maps each passage to its 0-based place. Equal passages share the
// better place and the next rider skips past all of them.
func positions(passages []time.Time) []int {
	sorted := append([]time.Time(nil), passages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	out := make([]int, len(passages))
	for i, p := range passages {
		out[i] = sort.Search(len(sorted), func(j int) bool { return !sorted[j].Before(p) })
	}
	return out
}
