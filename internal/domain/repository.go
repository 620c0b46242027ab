package domain

import "context"

// JobRepository defines persistence for generation jobs. Implementations
// must make a single Save atomic at job granularity; the orchestrator
// provides all higher-level serialization.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	Delete(ctx context.Context, jobID string) error
	List(ctx context.Context) ([]*Job, error)
}
