package domain

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunParams are the generation inputs recorded with a run so it can be replayed.
type RunParams struct {
	Seed               int64   `json:"seed"`
	NumSamples         int     `json:"num_samples"`
	DistanceConstraint float64 `json:"distance_constraint"`
	PlacementRetries   int     `json:"placement_retries"`
	ClusterAttempts    int     `json:"cluster_attempts"`
	QuotaAttempts      int     `json:"quota_attempts"`
}

type Run struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Seed        int64     `json:"seed"`
	Params      RunParams `json:"parameters"`
	Status      string    `json:"status" enum:"running,completed,failed"`
	OutputDir   string    `json:"output_dir"`
	ArchivePath string    `json:"archive_path,omitempty"`
	DatasetPath string    `json:"dataset_path,omitempty"`
	Digest      string    `json:"digest,omitempty"`
	Target      string    `json:"target,omitempty"`
	Rows        int       `json:"rows"`
	Shortfall   int       `json:"shortfall"`
	Error       string    `json:"error,omitempty"`
	ActorID     string    `json:"actor_id"`
	ReplayOf    *string   `json:"replay_of,omitempty"`
	CreatedAt   string    `json:"created_at" format:"date-time"`
	FinishedAt  *string   `json:"finished_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
