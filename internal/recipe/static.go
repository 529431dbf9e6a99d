package recipe

import "context"

func init() {
	register(recipe{
		Info: Info{
			ID:          "coding-task-1",
			Title:       "Reference notebook",
			Description: "Static notebook only; no synthesized data.",
		},
		build: func(ctx context.Context, r *run) error {
			// the notebook copied by the orchestrator is the whole artifact
			return nil
		},
	})
}
