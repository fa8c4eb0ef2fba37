package domain

import (
	"sort"
	"time"
)

type Race struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	StageIDs    []int64 `json:"stage_ids"`
	CreatedAt   string  `json:"created_at"`
}

// Stage is the aggregate the ranking and points engines read. Checkpoints are
// kept in location order and every results entry holds len(Checkpoints)+2
// timestamps: start, one per checkpoint, finish.
type Stage struct {
	ID          int64                 `json:"id"`
	RaceID      int64                 `json:"race_id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Length      float64               `json:"length_km"`
	Start       time.Time             `json:"start"`
	Type        StageType             `json:"type"`
	State       StageState            `json:"state"`
	Checkpoints []Checkpoint          `json:"checkpoints"`
	Results     map[int64][]time.Time `json:"-"`
	CreatedAt   string                `json:"created_at"`
}

// NumCriticalPoints is the number of timestamps a result must carry.
func (s Stage) NumCriticalPoints() int {
	return len(s.Checkpoints) + 2
}

func (s Stage) IsTimeTrial() bool {
	return s.Type == StageTimeTrial
}

// SortCheckpoints restores location order, ties broken by id.
func (s *Stage) SortCheckpoints() {
	sort.SliceStable(s.Checkpoints, func(i, j int) bool {
		a, b := s.Checkpoints[i], s.Checkpoints[j]
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.ID < b.ID
	})
}

// Checkpoint is a sprint or a categorized climb. Climb is set only for climb
// categories.
type Checkpoint struct {
	ID       int64          `json:"id"`
	StageID  int64          `json:"stage_id"`
	Type     CheckpointType `json:"type"`
	Location float64        `json:"location_km"`
	Climb    *Climb         `json:"climb,omitempty"`
}

type Climb struct {
	AverageGradient float64 `json:"average_gradient"`
	Length          float64 `json:"length_km"`
}

type Team struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type Rider struct {
	ID          int64  `json:"id"`
	TeamID      int64  `json:"team_id"`
	Name        string `json:"name"`
	YearOfBirth int    `json:"year_of_birth"`
	CreatedAt   string `json:"created_at"`
}

// Result is one rider's registered timestamps in one stage.
type Result struct {
	StageID int64       `json:"stage_id"`
	RiderID int64       `json:"rider_id"`
	Times   []time.Time `json:"times"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   int64  `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
