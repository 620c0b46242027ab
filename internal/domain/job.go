package domain

import "time"

// TaskState enumerates the lifecycle of one per-pose task. The progression
// is strict: pending → submitted → ready|failed, or pending → failed when
// submission itself never succeeds.
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateSubmitted TaskState = "submitted"
	TaskStateReady     TaskState = "ready"
	TaskStateFailed    TaskState = "failed"
)

// JobState enumerates the derived, job-level aggregate states.
type JobState string

const (
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStatePartial    JobState = "partial"
	JobStateFailed     JobState = "failed"
)

// Terminal reports whether no further backend work is pending for the job.
// Partial counts as terminal: every task has reached ready or failed.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStatePartial || s == JobStateFailed
}

// Task is the unit of work for one camera pose within one job. Tasks are
// owned exclusively by their parent job and never shared.
type Task struct {
	Pose           CameraPose `json:"pose"`
	State          TaskState  `json:"state"`
	ExternalTaskID string     `json:"external_task_id,omitempty"`
	ArtifactKey    string     `json:"artifact_key,omitempty"`
	Error          string     `json:"error,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	LastPolledAt   *time.Time `json:"last_polled_at,omitempty"`
	// PollFailures counts consecutive transport failures while polling or
	// fetching; it resets on any successful backend answer.
	PollFailures int `json:"poll_failures,omitempty"`
}

// Job is the aggregate root for one batch generation request: one source
// image, one options value, one task per requested pose in request order.
type Job struct {
	ID             string            `json:"id"`
	SourceImageRef string            `json:"source_image_ref"`
	Options        GenerationOptions `json:"options"`
	Tasks          []Task            `json:"tasks"`
	State          JobState          `json:"state"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Refresh recomputes the derived aggregate state. It is the only way job
// state is ever written.
func (j *Job) Refresh() {
	j.State = DeriveJobState(j.Tasks)
}

// DeriveJobState reduces the task-state multiset to the job-level state.
// It is a pure function and invariant to task order.
func DeriveJobState(tasks []Task) JobState {
	var ready, failed, outstanding int
	for _, t := range tasks {
		switch t.State {
		case TaskStateReady:
			ready++
		case TaskStateFailed:
			failed++
		default:
			outstanding++
		}
	}
	switch {
	case outstanding > 0:
		return JobStateProcessing
	case failed == 0:
		return JobStateCompleted
	case ready == 0:
		return JobStateFailed
	default:
		return JobStatePartial
	}
}
