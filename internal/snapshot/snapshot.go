// Package snapshot encodes the whole entity graph as a versioned YAML
// document.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"peloton/internal/domain"
)

// Version is the document version written by Encode.
const Version = 1

var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

const timeLayout = time.RFC3339Nano

type Document struct {
	Version   int              `yaml:"version"`
	ID        string           `yaml:"id"`
	CreatedAt string           `yaml:"created_at"`
	Sequences map[string]int64 `yaml:"sequences"`
	Races     []Race           `yaml:"races"`
	Teams     []Team           `yaml:"teams"`
	Results   []Result         `yaml:"results"`
}

type Race struct {
	ID          int64   `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	CreatedAt   string  `yaml:"created_at"`
	Stages      []Stage `yaml:"stages"`
}

type Stage struct {
	ID          int64        `yaml:"id"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	LengthKm    float64      `yaml:"length_km"`
	Start       string       `yaml:"start"`
	Type        string       `yaml:"type"`
	State       string       `yaml:"state"`
	CreatedAt   string       `yaml:"created_at"`
	Checkpoints []Checkpoint `yaml:"checkpoints,omitempty"`
}

type Checkpoint struct {
	ID              int64    `yaml:"id"`
	Type            string   `yaml:"type"`
	LocationKm      float64  `yaml:"location_km"`
	AverageGradient *float64 `yaml:"average_gradient,omitempty"`
	ClimbLengthKm   *float64 `yaml:"climb_length_km,omitempty"`
}

type Team struct {
	ID          int64   `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	CreatedAt   string  `yaml:"created_at"`
	Riders      []Rider `yaml:"riders"`
}

type Rider struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	YearOfBirth int    `yaml:"year_of_birth"`
	CreatedAt   string `yaml:"created_at"`
}

type Result struct {
	StageID int64    `yaml:"stage_id"`
	RiderID int64    `yaml:"rider_id"`
	Times   []string `yaml:"times"`
}

// State is the decoded entity graph in store order.
type State struct {
	Sequences map[string]int64
	Races     []domain.Race
	Stages    []domain.Stage
	Teams     []domain.Team
	Riders    []domain.Rider
	Results   []domain.Result
}

// New builds a document from the store contents. Stages are grouped under
// their race in the order given.
func New(s State, now time.Time) Document {
	doc := Document{
		Version:   Version,
		ID:        uuid.NewString(),
		CreatedAt: now.UTC().Format(time.RFC3339),
		Sequences: map[string]int64{},
		Races:     []Race{},
		Teams:     []Team{},
		Results:   []Result{},
	}
	for k, v := range s.Sequences {
		doc.Sequences[k] = v
	}
	raceIdx := map[int64]int{}
	for _, r := range s.Races {
		raceIdx[r.ID] = len(doc.Races)
		doc.Races = append(doc.Races, Race{ID: r.ID, Name: r.Name, Description: r.Description, CreatedAt: r.CreatedAt, Stages: []Stage{}})
	}
	for _, st := range s.Stages {
		i, ok := raceIdx[st.RaceID]
		if !ok {
			continue
		}
		doc.Races[i].Stages = append(doc.Races[i].Stages, encodeStage(st))
	}
	teamIdx := map[int64]int{}
	for _, t := range s.Teams {
		teamIdx[t.ID] = len(doc.Teams)
		doc.Teams = append(doc.Teams, Team{ID: t.ID, Name: t.Name, Description: t.Description, CreatedAt: t.CreatedAt, Riders: []Rider{}})
	}
	for _, rd := range s.Riders {
		i, ok := teamIdx[rd.TeamID]
		if !ok {
			continue
		}
		doc.Teams[i].Riders = append(doc.Teams[i].Riders, Rider{ID: rd.ID, Name: rd.Name, YearOfBirth: rd.YearOfBirth, CreatedAt: rd.CreatedAt})
	}
	for _, res := range s.Results {
		times := make([]string, len(res.Times))
		for i, t := range res.Times {
			times[i] = t.Format(timeLayout)
		}
		doc.Results = append(doc.Results, Result{StageID: res.StageID, RiderID: res.RiderID, Times: times})
	}
	return doc
}

func encodeStage(st domain.Stage) Stage {
	out := Stage{
		ID:          st.ID,
		Name:        st.Name,
		Description: st.Description,
		LengthKm:    st.Length,
		Start:       st.Start.Format(timeLayout),
		Type:        string(st.Type),
		State:       string(st.State),
		CreatedAt:   st.CreatedAt,
	}
	for _, cp := range st.Checkpoints {
		c := Checkpoint{ID: cp.ID, Type: string(cp.Type), LocationKm: cp.Location}
		if cp.Climb != nil {
			gradient, length := cp.Climb.AverageGradient, cp.Climb.Length
			c.AverageGradient, c.ClimbLengthKm = &gradient, &length
		}
		out.Checkpoints = append(out.Checkpoints, c)
	}
	return out
}

// State converts the document back into domain entities, validating enums
// and timestamps on the way.
func (d Document) State() (State, error) {
	s := State{Sequences: map[string]int64{}}
	for k, v := range d.Sequences {
		s.Sequences[k] = v
	}
	for _, r := range d.Races {
		race := domain.Race{ID: r.ID, Name: r.Name, Description: r.Description, CreatedAt: r.CreatedAt, StageIDs: []int64{}}
		for _, st := range r.Stages {
			stage, err := decodeStage(r.ID, st)
			if err != nil {
				return State{}, err
			}
			race.StageIDs = append(race.StageIDs, stage.ID)
			s.Stages = append(s.Stages, stage)
		}
		s.Races = append(s.Races, race)
	}
	for _, t := range d.Teams {
		s.Teams = append(s.Teams, domain.Team{ID: t.ID, Name: t.Name, Description: t.Description, CreatedAt: t.CreatedAt})
		for _, rd := range t.Riders {
			s.Riders = append(s.Riders, domain.Rider{ID: rd.ID, TeamID: t.ID, Name: rd.Name, YearOfBirth: rd.YearOfBirth, CreatedAt: rd.CreatedAt})
		}
	}
	for _, res := range d.Results {
		times := make([]time.Time, len(res.Times))
		for i, raw := range res.Times {
			t, err := time.Parse(timeLayout, raw)
			if err != nil {
				return State{}, fmt.Errorf("result stage=%d rider=%d: %w", res.StageID, res.RiderID, err)
			}
			times[i] = t
		}
		s.Results = append(s.Results, domain.Result{StageID: res.StageID, RiderID: res.RiderID, Times: times})
	}
	return s, nil
}

func decodeStage(raceID int64, st Stage) (domain.Stage, error) {
	start, err := time.Parse(timeLayout, st.Start)
	if err != nil {
		return domain.Stage{}, fmt.Errorf("stage %d start: %w", st.ID, err)
	}
	typ, err := domain.ParseStageType(st.Type)
	if err != nil {
		return domain.Stage{}, fmt.Errorf("stage %d: %w", st.ID, err)
	}
	state := domain.StageState(st.State)
	if !state.Valid() {
		return domain.Stage{}, fmt.Errorf("stage %d: unknown state %q", st.ID, st.State)
	}
	out := domain.Stage{
		ID:          st.ID,
		RaceID:      raceID,
		Name:        st.Name,
		Description: st.Description,
		Length:      st.LengthKm,
		Start:       start,
		Type:        typ,
		State:       state,
		CreatedAt:   st.CreatedAt,
		Checkpoints: []domain.Checkpoint{},
	}
	for _, c := range st.Checkpoints {
		ct, err := domain.ParseCheckpointType(c.Type)
		if err != nil {
			return domain.Stage{}, fmt.Errorf("checkpoint %d: %w", c.ID, err)
		}
		cp := domain.Checkpoint{ID: c.ID, StageID: st.ID, Type: ct, Location: c.LocationKm}
		if ct.IsClimb() {
			cp.Climb = &domain.Climb{}
			if c.AverageGradient != nil {
				cp.Climb.AverageGradient = *c.AverageGradient
			}
			if c.ClimbLengthKm != nil {
				cp.Climb.Length = *c.ClimbLengthKm
			}
		}
		out.Checkpoints = append(out.Checkpoints, cp)
	}
	out.SortCheckpoints()
	return out, nil
}

func Encode(w io.Writer, d Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// Decode reads a document and rejects versions newer than Version.
func Decode(r io.Reader) (Document, error) {
	var d Document
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return Document{}, fmt.Errorf("invalid snapshot yaml: %w", err)
	}
	switch {
	case d.Version == 0:
		return Document{}, errors.New("snapshot version is required")
	case d.Version > Version:
		return Document{}, fmt.Errorf("%w: %d (latest %d)", ErrUnsupportedVersion, d.Version, Version)
	}
	return d, nil
}

func WriteFile(path string, d Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	return Decode(f)
}
