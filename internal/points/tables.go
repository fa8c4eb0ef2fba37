package points

import "peloton/internal/domain"

// Table lists the points paid by position, index 0 being first place.
type Table []int

// At returns the points for a 0-based position, 0 past the paying places.
func (t Table) At(pos int) int {
	if pos < 0 || pos >= len(t) {
		return 0
	}
	return t[pos]
}

var stageFinish = map[domain.StageType]Table{
	domain.StageFlat:           {50, 30, 20, 18, 16, 14, 12, 10, 8, 7, 6, 5, 4, 3, 2},
	domain.StageMediumMountain: {30, 25, 22, 19, 17, 15, 13, 11, 9, 7, 6, 5, 4, 3, 2},
	domain.StageHighMountain:   {20, 17, 15, 13, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
	domain.StageTimeTrial:      {20, 17, 15, 13, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
}

var intermediateSprint = Table{20, 17, 15, 13, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}

var mountain = map[domain.CheckpointType]Table{
	domain.CheckpointHC: {20, 15, 12, 10, 8, 6, 4, 2},
	domain.CheckpointC1: {10, 8, 6, 4, 2, 1},
	domain.CheckpointC2: {5, 3, 2, 1},
	domain.CheckpointC3: {2, 1},
	domain.CheckpointC4: {1},
}

// StageFinishTable returns a copy of the finish table for a stage type.
func StageFinishTable(t domain.StageType) Table {
	return append(Table(nil), stageFinish[t]...)
}

// IntermediateSprintTable returns a copy of the table paid at every sprint.
func IntermediateSprintTable() Table {
	return append(Table(nil), intermediateSprint...)
}

// MountainTable returns a copy of the table for a climb category; nil for sprints.
func MountainTable(c domain.CheckpointType) Table {
	return append(Table(nil), mountain[c]...)
}
