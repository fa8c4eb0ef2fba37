package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"peloton/internal/config"
	"peloton/internal/events"
	"peloton/internal/repo"
)

// IDGenerator hands out ids per entity kind inside the creating transaction.
type IDGenerator interface {
	Next(ctx context.Context, tx *sql.Tx, kind string) (int64, error)
}

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	IDs     IDGenerator
	Log     *zap.Logger
	ActorID string
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{Now: time.Now},
		Config: cfg,
		IDs:    repo.SequenceIDs{},
		Log:    zap.NewNop(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

func (e Engine) rules() config.Rules {
	if e.Config != nil {
		return e.Config.Rules
	}
	return config.Default().Rules
}

// inTx runs fn in a transaction, appends one event for the change and
// commits. Nothing is written when fn or the event append fails.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) (change, error)) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	c, err := fn(tx)
	if err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, c.Type, c.Kind, c.ID, e.ActorID, c.Payload); err != nil {
		return fmt.Errorf("append %s event: %w", c.Type, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.log().Info(c.Type, zap.String("entity_kind", c.Kind), zap.Int64("entity_id", c.ID), zap.String("actor_id", e.ActorID))
	return nil
}

// change describes the event recorded for one mutation.
type change struct {
	Type    string
	Kind    string
	ID      int64
	Payload events.EventPayload
}

// checkName enforces the naming rules shared by races, stages and teams.
func (e Engine) checkName(ctx context.Context, name string, taken func(context.Context, string) (bool, error)) error {
	limit := e.rules().MaxNameLength
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case len([]rune(name)) > limit:
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, limit)
	case strings.IndexFunc(name, unicode.IsSpace) >= 0:
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}
	dup, err := taken(ctx, name)
	if err != nil {
		return err
	}
	if dup {
		return fmt.Errorf("%w: %q already in use", ErrIllegalName, name)
	}
	return nil
}

func notFound(kind string, id int64, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, repo.ErrNotFound)
	}
	return err
}
