package engine

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"peloton/internal/events"
	"peloton/internal/repo"
	"peloton/internal/snapshot"
)

// Erase removes every race, team, rider and result and resets the id
// sequences. The event log is kept.
func (e Engine) Erase(ctx context.Context) error {
	return e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		if err := e.Repo.Truncate(ctx, tx); err != nil {
			return change{}, err
		}
		return change{Type: "portal.erased", Kind: "portal"}, nil
	})
}

// Snapshot captures the full store as a document.
func (e Engine) Snapshot(ctx context.Context) (snapshot.Document, error) {
	var s snapshot.State
	var err error
	if s.Sequences, err = e.Repo.Sequences(ctx); err != nil {
		return snapshot.Document{}, err
	}
	if s.Races, err = e.Repo.ListRaces(ctx); err != nil {
		return snapshot.Document{}, err
	}
	if s.Stages, err = e.Repo.ListStages(ctx); err != nil {
		return snapshot.Document{}, err
	}
	if s.Teams, err = e.Repo.ListTeams(ctx); err != nil {
		return snapshot.Document{}, err
	}
	if s.Riders, err = e.Repo.ListRiders(ctx, 0); err != nil {
		return snapshot.Document{}, err
	}
	if s.Results, err = e.Repo.ListResults(ctx); err != nil {
		return snapshot.Document{}, err
	}
	return snapshot.New(s, e.now()), nil
}

// Save writes the full store to path as a YAML snapshot.
func (e Engine) Save(ctx context.Context, path string) (snapshot.Document, error) {
	doc, err := e.Snapshot(ctx)
	if err != nil {
		return doc, err
	}
	if err := snapshot.WriteFile(path, doc); err != nil {
		return doc, fmt.Errorf("save %s: %w", path, err)
	}
	e.log().Info("portal.saved", zap.String("path", path), zap.String("snapshot_id", doc.ID))
	return doc, nil
}

// Load replaces the whole store with the snapshot at path. On any error the
// store is left as it was.
func (e Engine) Load(ctx context.Context, path string) (snapshot.Document, error) {
	doc, err := snapshot.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("load %s: %w", path, err)
	}
	if err := e.Restore(ctx, doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// Restore replaces the whole store with doc in one transaction.
func (e Engine) Restore(ctx context.Context, doc snapshot.Document) error {
	s, err := doc.State()
	if err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx) (change, error) {
		if err := e.Repo.Truncate(ctx, tx); err != nil {
			return change{}, err
		}
		seq := map[string]int64{}
		bump := func(kind string, id int64) {
			if id > seq[kind] {
				seq[kind] = id
			}
		}
		for _, r := range s.Races {
			if err := e.Repo.InsertRace(ctx, tx, r); err != nil {
				return change{}, fmt.Errorf("race %d: %w", r.ID, err)
			}
			bump(repo.KindRace, r.ID)
		}
		for _, st := range s.Stages {
			if err := e.Repo.InsertStage(ctx, tx, st); err != nil {
				return change{}, fmt.Errorf("stage %d: %w", st.ID, err)
			}
			bump(repo.KindStage, st.ID)
			for _, cp := range st.Checkpoints {
				if err := e.Repo.InsertCheckpoint(ctx, tx, cp); err != nil {
					return change{}, fmt.Errorf("checkpoint %d: %w", cp.ID, err)
				}
				bump(repo.KindCheckpoint, cp.ID)
			}
		}
		for _, t := range s.Teams {
			if err := e.Repo.InsertTeam(ctx, tx, t); err != nil {
				return change{}, fmt.Errorf("team %d: %w", t.ID, err)
			}
			bump(repo.KindTeam, t.ID)
		}
		for _, rd := range s.Riders {
			if err := e.Repo.InsertRider(ctx, tx, rd); err != nil {
				return change{}, fmt.Errorf("rider %d: %w", rd.ID, err)
			}
			bump(repo.KindRider, rd.ID)
		}
		for _, res := range s.Results {
			if err := e.Repo.InsertResult(ctx, tx, res, e.stamp()); err != nil {
				return change{}, fmt.Errorf("result stage=%d rider=%d: %w", res.StageID, res.RiderID, err)
			}
		}
		for _, kind := range repo.Kinds {
			v := s.Sequences[kind]
			if seq[kind] > v {
				v = seq[kind]
			}
			if v == 0 {
				continue
			}
			if err := e.Repo.SetSequence(ctx, tx, kind, v); err != nil {
				return change{}, err
			}
		}
		return change{Type: "portal.loaded", Kind: "portal", Payload: events.EventPayload{
			"snapshot_id": doc.ID, "races": len(s.Races), "teams": len(s.Teams), "results": len(s.Results),
		}}, nil
	})
}
