// Package app wires a workspace directory into a ready engine: database,
// migrations, config and logger.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"peloton/internal/config"
	"peloton/internal/db"
	"peloton/internal/engine"
	"peloton/internal/logger"
	"peloton/internal/migrate"
)

var ErrSchemaTooNew = errors.New("workspace schema is newer than this binary")

type Options struct {
	Workspace string
	ActorID   string
	Debug     bool
}

// Workspace holds the open resources for one command invocation.
type Workspace struct {
	DB     *sql.DB
	Config *config.Config
	Log    *zap.Logger
	Engine engine.Engine
	// SchemaVersion is the database schema version after migration.
	SchemaVersion int
}

// Open opens and migrates the workspace database and loads peloton.yml,
// falling back to defaults when the file is absent.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(opts.Debug || cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	version, err := checkSchema(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	e := engine.New(conn, cfg)
	e.Log = log.With(zap.String("workspace", opts.Workspace))
	e.ActorID = opts.ActorID
	log.Debug("workspace opened", zap.String("db", db.Path(opts.Workspace)), zap.Int("schema", version))
	return &Workspace{DB: conn, Config: cfg, Log: log, Engine: e, SchemaVersion: version}, nil
}

// checkSchema refuses a database written by a newer binary, then migrates.
func checkSchema(ctx context.Context, conn *sql.DB) (int, error) {
	latest, err := migrate.Latest()
	if err != nil {
		return 0, err
	}
	current, err := migrate.Version(ctx, conn)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if current > latest {
		return 0, fmt.Errorf("%w: database at %d, binary supports %d", ErrSchemaTooNew, current, latest)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	return latest, nil
}

func (w *Workspace) Close() error {
	_ = w.Log.Sync()
	return w.DB.Close()
}
