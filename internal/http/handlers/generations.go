package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"previz/internal/domain"
)

type generateRequest struct {
	SourceImageRef string                    `json:"source_image_ref"`
	PresetID       string                    `json:"preset_id"`
	Poses          []domain.CameraPose       `json:"poses"`
	Options        *domain.GenerationOptions `json:"options"`
}

type generateResponse struct {
	JobID string          `json:"job_id"`
	State domain.JobState `json:"state"`
}

// Generate creates a generation job and returns as soon as it exists;
// submission to the compute backend continues in the background.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.SourceImageRef == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "source_image_ref required")
		return
	}
	opts := domain.DefaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	job, err := a.Orchestrator.CreateJob(r.Context(), req.SourceImageRef, req.PresetID, req.Poses, opts)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownPreset),
			errors.Is(err, domain.ErrInvalidPose),
			errors.Is(err, domain.ErrInvalidOptions):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		default:
			a.Logger.Error().Err(err).Msg("create job failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		}
		return
	}
	a.json(w, http.StatusAccepted, generateResponse{JobID: job.ID, State: job.State})
}

// JobStatus returns the current job snapshot, refreshing every outstanding
// task against the compute backend first.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Orchestrator.GetJobStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job status failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, viewJob(job))
}

// ListJobs returns summaries of all jobs, newest first.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Orchestrator.ListJobs(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("list jobs failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	items := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, viewJob(job))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// DeleteJob removes a job and its stored artifacts. In-flight backend work
// is not cancelled.
func (a *App) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	if err := a.Orchestrator.DeleteJob(r.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("delete job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TaskArtifact streams the generated image for one ready task, addressed
// by its pose key.
func (a *App) TaskArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	poseKey := chi.URLParam(r, "pose_key")
	job, err := a.Orchestrator.GetJobStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job status failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	for _, task := range job.Tasks {
		if task.Pose.Key() != poseKey {
			continue
		}
		if task.State != domain.TaskStateReady {
			a.error(w, http.StatusConflict, "not_ready", "task has no artifact yet")
			return
		}
		data, err := a.Store.Read(r.Context(), task.ArtifactKey)
		if err != nil {
			a.Logger.Error().Err(err).Str("artifact_key", task.ArtifactKey).Msg("artifact read failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to read artifact")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	a.error(w, http.StatusNotFound, "not_found", "no task for pose "+poseKey)
}
