package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"taskgen/internal/config"
	"taskgen/internal/db"
	"taskgen/internal/engine"
	"taskgen/internal/metrics"
	"taskgen/internal/migrate"
)

// Env is an opened workspace: the run ledger connection, the resolved config and an
// engine wired to both. Close releases the connection.
type Env struct {
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

// Options tune how a workspace is opened.
type Options struct {
	// ConfigPath overrides <workspace>/taskgen.yml.
	ConfigPath string
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// ResolveConfig loads the workspace config (defaults when the file is missing) and makes
// its paths absolute against workspace.
func ResolveConfig(workspace, configPath string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.FromFile(configPath)
	} else {
		cfg, err = config.LoadOptional(workspace)
	}
	if err != nil {
		return nil, err
	}
	cfg.Resolve(workspace)
	return cfg, nil
}

// Open resolves the config, opens and migrates the ledger and builds the engine.
func Open(ctx context.Context, workspace string, opts Options) (*Env, error) {
	cfg, err := ResolveConfig(workspace, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	applied, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", db.Path(workspace), err)
	}
	e := engine.New(conn, cfg)
	e.Logger = opts.Logger
	e.Metrics = opts.Metrics
	if applied > 0 && opts.Logger != nil {
		opts.Logger.Debug("ledger migrated", slog.Int("migrations", applied), slog.String("path", db.Path(workspace)))
	}
	return &Env{DB: conn, Config: cfg, Engine: e}, nil
}

func (e *Env) Close() error {
	if e == nil || e.DB == nil {
		return nil
	}
	return e.DB.Close()
}

// NewLogger returns a text logger on w at the named level (debug, info, warn, error).
func NewLogger(w io.Writer, level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
