// Package orchestrator owns the generation job lifecycle: it creates jobs,
// drives sequential submission to the compute backend, polls outstanding
// tasks on demand and aggregates per-task state into the job-level status.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"previz/internal/catalog"
	"previz/internal/comfy"
	"previz/internal/domain"
	"previz/internal/storage"
	"previz/internal/workflow"
)

// MaxConsecutivePollFailures is the number of consecutive transport
// failures after which a submitted task is escalated to failed.
const MaxConsecutivePollFailures = 3

// Backend is the compute-backend surface the orchestrator depends on.
type Backend interface {
	Probe(ctx context.Context) bool
	UploadAsset(ctx context.Context, data []byte, name string) (string, error)
	Submit(ctx context.Context, graph workflow.Graph) (string, error)
	PollStatus(ctx context.Context, externalTaskID string) (comfy.TaskStatus, error)
	FetchArtifact(ctx context.Context, artifact comfy.Artifact) ([]byte, error)
}

// SourceResolver turns a source image reference into uploadable bytes.
type SourceResolver interface {
	Resolve(ctx context.Context, ref string) ([]byte, string, error)
}

// ArtifactStore persists fetched artifacts.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, keyPrefix string) error
}

type Orchestrator struct {
	repo        domain.JobRepository
	backend     Backend
	resolver    SourceResolver
	store       ArtifactStore
	catalog     *catalog.Catalog
	logger      zerolog.Logger
	submitDelay time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(repo domain.JobRepository, backend Backend, resolver SourceResolver, store ArtifactStore, cat *catalog.Catalog, logger zerolog.Logger, submitDelay time.Duration) *Orchestrator {
	return &Orchestrator{
		repo:        repo,
		backend:     backend,
		resolver:    resolver,
		store:       store,
		catalog:     cat,
		logger:      logger,
		submitDelay: submitDelay,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockFor returns the single-writer mutex for one job id. All mutations of
// a job and the whole read-poll-update-persist sequence of GetJobStatus run
// under this lock.
func (o *Orchestrator) lockFor(jobID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[jobID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[jobID] = lock
	}
	return lock
}

// CreateJob validates the request, persists a job with one pending task per
// pose and starts submission in the background. It returns as soon as the
// job exists; callers never block on submission. Validation failures leave
// no job behind.
func (o *Orchestrator) CreateJob(ctx context.Context, sourceImageRef, presetID string, explicitPoses []domain.CameraPose, opts domain.GenerationOptions) (*domain.Job, error) {
	poses, err := o.catalog.Resolve(presetID, explicitPoses)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Seed == nil {
		// Assigned here, before anything is compiled, so the persisted job
		// alone reproduces every task.
		seed := rand.Int64()
		opts.Seed = &seed
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:             uuid.NewString(),
		SourceImageRef: sourceImageRef,
		Options:        opts,
		Tasks:          make([]domain.Task, 0, len(poses)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, pose := range poses {
		job.Tasks = append(job.Tasks, domain.Task{Pose: pose, State: domain.TaskStatePending})
	}
	job.Refresh()

	if err := o.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	go o.submitJob(context.WithoutCancel(ctx), job.ID)

	o.logger.Info().Str("job_id", job.ID).Int("tasks", len(job.Tasks)).Msg("generation job created")
	return job, nil
}

// submitJob runs the submission sequence for one job exactly once. Tasks go
// out strictly one at a time with a politeness delay between submissions.
func (o *Orchestrator) submitJob(ctx context.Context, jobID string) {
	log := o.logger.With().Str("job_id", jobID).Logger()

	job, err := o.repo.Get(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Msg("submission aborted: job not loadable")
		return
	}

	source, name, err := o.resolver.Resolve(ctx, job.SourceImageRef)
	if err != nil {
		log.Warn().Err(err).Msg("submission aborted: source unavailable")
		o.failAllPending(ctx, jobID, fmt.Sprintf("source unavailable: %v", err))
		return
	}

	if !o.backend.Probe(ctx) {
		log.Warn().Msg("submission aborted: backend unavailable")
		o.failAllPending(ctx, jobID, "backend unavailable")
		return
	}

	assetRef, err := o.backend.UploadAsset(ctx, source, name)
	if err != nil {
		log.Warn().Err(err).Msg("submission aborted: source upload failed")
		o.failAllPending(ctx, jobID, fmt.Sprintf("source upload failed: %v", err))
		return
	}

	for i := range job.Tasks {
		if i > 0 && !o.waitSubmitDelay(ctx) {
			log.Warn().Msg("submission cancelled")
			return
		}
		pose := job.Tasks[i].Pose
		graph := workflow.Compile(assetRef, pose, job.Options)
		externalID, err := o.backend.Submit(ctx, graph)
		if err != nil {
			log.Warn().Err(err).Str("pose", pose.Key()).Msg("task submission rejected")
			o.mutateTask(ctx, jobID, i, func(t *domain.Task) {
				t.State = domain.TaskStateFailed
				t.Error = err.Error()
			})
			continue
		}
		submittedAt := time.Now().UTC()
		o.mutateTask(ctx, jobID, i, func(t *domain.Task) {
			t.State = domain.TaskStateSubmitted
			t.ExternalTaskID = externalID
			t.SubmittedAt = &submittedAt
		})
		log.Debug().Str("pose", pose.Key()).Str("external_task_id", externalID).Msg("task submitted")
	}
}

func (o *Orchestrator) waitSubmitDelay(ctx context.Context) bool {
	if o.submitDelay <= 0 {
		return true
	}
	timer := time.NewTimer(o.submitDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// failAllPending marks every not-yet-submitted task failed with one shared
// reason. Used when a whole-batch precondition (source, probe, upload) fails
// before any submission is attempted.
func (o *Orchestrator) failAllPending(ctx context.Context, jobID, reason string) {
	lock := o.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := o.repo.Get(ctx, jobID)
	if err != nil {
		return
	}
	for i := range job.Tasks {
		if job.Tasks[i].State == domain.TaskStatePending {
			job.Tasks[i].State = domain.TaskStateFailed
			job.Tasks[i].Error = reason
		}
	}
	job.Refresh()
	job.UpdatedAt = time.Now().UTC()
	if err := o.repo.Save(ctx, job); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("persist batch failure")
	}
}

// mutateTask applies one task transition under the job lock and persists.
func (o *Orchestrator) mutateTask(ctx context.Context, jobID string, index int, apply func(*domain.Task)) {
	lock := o.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := o.repo.Get(ctx, jobID)
	if err != nil {
		return
	}
	if index < 0 || index >= len(job.Tasks) {
		return
	}
	apply(&job.Tasks[index])
	job.Refresh()
	job.UpdatedAt = time.Now().UTC()
	if err := o.repo.Save(ctx, job); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("persist task transition")
	}
}

type pollOutcome struct {
	index       int
	status      comfy.TaskStatus
	artifactKey string
	err         error
}

// GetJobStatus polls every still-submitted task, applies the resulting
// transitions, recomputes the aggregate state and returns the snapshot.
// The whole sequence runs under the per-job lock, so overlapping calls are
// serialized: a finished task is observed, fetched and persisted exactly
// once. The call is idempotent and never re-submits work.
func (o *Orchestrator) GetJobStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	lock := o.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := o.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State.Terminal() {
		return job, nil
	}

	var outstanding []int
	for i := range job.Tasks {
		if job.Tasks[i].State == domain.TaskStateSubmitted {
			outstanding = append(outstanding, i)
		}
	}
	if len(outstanding) == 0 {
		// Submission still in flight; nothing to poll yet.
		return job, nil
	}

	// Polls are read-only and independent, so they run concurrently and
	// join before any state is touched. Concurrency is bounded by the job
	// size by construction.
	outcomes := make([]pollOutcome, len(outstanding))
	var group errgroup.Group
	for slot, index := range outstanding {
		task := job.Tasks[index]
		group.Go(func() error {
			outcomes[slot] = o.pollTask(ctx, job.ID, index, task)
			return nil
		})
	}
	_ = group.Wait()

	now := time.Now().UTC()
	changed := false
	for _, outcome := range outcomes {
		task := &job.Tasks[outcome.index]
		task.LastPolledAt = &now
		if outcome.err != nil {
			task.PollFailures++
			if task.PollFailures >= MaxConsecutivePollFailures {
				task.State = domain.TaskStateFailed
				task.Error = fmt.Sprintf("backend unresponsive after %d consecutive polls: %v", task.PollFailures, outcome.err)
				changed = true
			}
			continue
		}
		if task.PollFailures != 0 {
			task.PollFailures = 0
		}
		switch outcome.status.Phase {
		case comfy.PhaseSucceeded:
			task.State = domain.TaskStateReady
			task.ArtifactKey = outcome.artifactKey
			changed = true
		case comfy.PhaseFailed:
			task.State = domain.TaskStateFailed
			task.Error = outcome.status.Message
			changed = true
		}
	}

	job.Refresh()
	if changed {
		job.UpdatedAt = now
	}
	if err := o.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("persist poll results: %w", err)
	}
	return job, nil
}

// pollTask asks the backend about one task and, on success, downloads and
// stores its artifact. It mutates nothing; results feed the locked apply
// phase in GetJobStatus.
func (o *Orchestrator) pollTask(ctx context.Context, jobID string, index int, task domain.Task) pollOutcome {
	status, err := o.backend.PollStatus(ctx, task.ExternalTaskID)
	if err != nil {
		return pollOutcome{index: index, err: err}
	}
	if status.Phase != comfy.PhaseSucceeded {
		return pollOutcome{index: index, status: status}
	}
	data, err := o.backend.FetchArtifact(ctx, status.Artifact)
	if err != nil {
		return pollOutcome{index: index, err: err}
	}
	key, err := o.store.Write(ctx, storage.ArtifactKey(jobID, task.Pose.Key()), data)
	if err != nil {
		return pollOutcome{index: index, err: err}
	}
	return pollOutcome{index: index, status: status, artifactKey: key}
}

// DeleteJob removes the job record and its stored artifacts. In-flight
// backend tasks are not cancelled; the protocol has no cancel operation.
func (o *Orchestrator) DeleteJob(ctx context.Context, jobID string) error {
	lock := o.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	if err := o.repo.Delete(ctx, jobID); err != nil {
		return err
	}
	if o.store != nil {
		_ = o.store.Delete(ctx, "generated/"+jobID)
	}
	o.mu.Lock()
	delete(o.locks, jobID)
	o.mu.Unlock()
	o.logger.Info().Str("job_id", jobID).Msg("generation job deleted")
	return nil
}

// ListJobs returns all persisted jobs, newest first.
func (o *Orchestrator) ListJobs(ctx context.Context) ([]*domain.Job, error) {
	return o.repo.List(ctx)
}
