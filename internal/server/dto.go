package server

import (
	"encoding/json"

	"taskgen/internal/domain"
	"taskgen/internal/engine"
	"taskgen/internal/recipe"
)

// Request payloads

type GenerateRunRequest struct {
	Seed               *int64   `json:"seed,omitempty" example:"1729"`
	NumSamples         *int     `json:"num_samples,omitempty" minimum:"1" example:"10000"`
	DistanceConstraint *float64 `json:"distance_constraint,omitempty" exclusiveMinimum:"0" example:"10"`
}

// Response payloads

type TaskResponse struct {
	ID          string `json:"id" example:"coding-task-4"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Synthetic   bool   `json:"synthetic"`
}

type RunResponse struct {
	ID          string           `json:"id"`
	TaskID      string           `json:"task_id"`
	Seed        int64            `json:"seed"`
	Params      domain.RunParams `json:"parameters"`
	Status      string           `json:"status" enum:"running,completed,failed"`
	ArchivePath string           `json:"archive_path,omitempty"`
	Digest      string           `json:"digest,omitempty"`
	Target      string           `json:"target,omitempty"`
	Rows        int              `json:"rows"`
	Shortfall   int              `json:"shortfall"`
	Error       string           `json:"error,omitempty"`
	ActorID     string           `json:"actor_id"`
	ReplayOf    *string          `json:"replay_of,omitempty"`
	CreatedAt   string           `json:"created_at" format:"date-time"`
	FinishedAt  *string          `json:"finished_at,omitempty" format:"date-time"`
}

type ReplayResponse struct {
	RunID    string `json:"run_id"`
	ReplayOf string `json:"replay_of"`
	Digest   string `json:"digest"`
	Expected string `json:"expected_digest"`
	Matches  bool   `json:"matches"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type listRuns struct {
	Items []RunResponse `json:"items"`
}

type listEvents struct {
	Items []EventResponse `json:"items"`
}

// Conversion helpers

func taskResponse(info recipe.Info) TaskResponse {
	return TaskResponse(info)
}

func runResponse(r domain.Run) RunResponse {
	return RunResponse{
		ID:          r.ID,
		TaskID:      r.TaskID,
		Seed:        r.Seed,
		Params:      r.Params,
		Status:      r.Status,
		ArchivePath: r.ArchivePath,
		Digest:      r.Digest,
		Target:      r.Target,
		Rows:        r.Rows,
		Shortfall:   r.Shortfall,
		Error:       r.Error,
		ActorID:     r.ActorID,
		ReplayOf:    r.ReplayOf,
		CreatedAt:   r.CreatedAt,
		FinishedAt:  r.FinishedAt,
	}
}

func replayResponse(res engine.ReplayResult) ReplayResponse {
	return ReplayResponse{
		RunID:    res.Run.ID,
		ReplayOf: res.Original.ID,
		Digest:   res.Run.Digest,
		Expected: res.Original.Digest,
		Matches:  res.Matches,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}
