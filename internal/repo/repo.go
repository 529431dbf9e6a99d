package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"taskgen/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const runColumns = `id,task_id,seed,params_json,status,output_dir,COALESCE(archive_path,''),COALESCE(dataset_path,''),COALESCE(digest,''),COALESCE(target,''),rows,shortfall,COALESCE(error,''),actor_id,replay_of,created_at,finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (domain.Run, error) {
	var (
		run      domain.Run
		params   string
		replayOf sql.NullString
		finished sql.NullString
	)
	err := s.Scan(&run.ID, &run.TaskID, &run.Seed, &params, &run.Status, &run.OutputDir, &run.ArchivePath,
		&run.DatasetPath, &run.Digest, &run.Target, &run.Rows, &run.Shortfall, &run.Error, &run.ActorID,
		&replayOf, &run.CreatedAt, &finished)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	if err != nil {
		return run, err
	}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return run, fmt.Errorf("run %s params: %w", run.ID, err)
	}
	if replayOf.Valid {
		run.ReplayOf = &replayOf.String
	}
	if finished.Valid {
		run.FinishedAt = &finished.String
	}
	return run, nil
}

// InsertRun records a run in the running state.
func (r Repo) InsertRun(ctx context.Context, tx *sql.Tx, run domain.Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal run params: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO runs(id,task_id,seed,params_json,status,output_dir,actor_id,replay_of,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, run.TaskID, run.Seed, string(params), run.Status, run.OutputDir, run.ActorID, nullableStringPtr(run.ReplayOf), run.CreatedAt)
	return err
}

// FinishRun stores the outcome of a run. Only running runs can be finished.
func (r Repo) FinishRun(ctx context.Context, tx *sql.Tx, run domain.Run) error {
	res, err := tx.ExecContext(ctx, `UPDATE runs SET status=?,archive_path=?,dataset_path=?,digest=?,target=?,rows=?,shortfall=?,error=?,finished_at=? WHERE id=? AND status='running'`,
		run.Status, nullable(run.ArchivePath), nullable(run.DatasetPath), nullable(run.Digest), nullable(run.Target),
		run.Rows, run.Shortfall, nullable(run.Error), nullableStringPtr(run.FinishedAt), run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetRun(ctx context.Context, id string) (domain.Run, error) {
	return scanRun(r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, id))
}

type RunFilters struct {
	TaskID string
	Status string
	Limit  int
}

// ListRuns returns runs newest first.
func (r Repo) ListRuns(ctx context.Context, f RunFilters) ([]domain.Run, error) {
	var clauses []string
	var args []any
	if f.TaskID != "" {
		clauses = append(clauses, "task_id=?")
		args = append(args, f.TaskID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM runs %s ORDER BY created_at DESC, id DESC LIMIT ?`, runColumns, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}

// LatestEvents returns events newest first, optionally narrowed by type and entity.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if limit <= 0 {
		limit = 100
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns events with IDs greater than cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID, 0 when there are none.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
