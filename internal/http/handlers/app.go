package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"previz/internal/catalog"
	"previz/internal/domain"
	"previz/internal/orchestrator"
	"previz/internal/storage"
)

// App carries the dependencies shared by all HTTP handlers.
type App struct {
	Logger       zerolog.Logger
	Orchestrator *orchestrator.Orchestrator
	Catalog      *catalog.Catalog
	Store        *storage.FileStore
	Backend      backendProber
}

type backendProber interface {
	Probe(ctx context.Context) bool
}

func NewApp(logger zerolog.Logger, orch *orchestrator.Orchestrator, cat *catalog.Catalog, store *storage.FileStore, backend backendProber) *App {
	return &App{Logger: logger, Orchestrator: orch, Catalog: cat, Store: store, Backend: backend}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}

// jobView shapes a job snapshot for API responses.
type jobView struct {
	ID             string                   `json:"id"`
	SourceImageRef string                   `json:"source_image_ref"`
	State          domain.JobState          `json:"state"`
	Options        domain.GenerationOptions `json:"options"`
	Tasks          []taskView               `json:"tasks"`
	CreatedAt      string                   `json:"created_at"`
	UpdatedAt      string                   `json:"updated_at"`
}

type taskView struct {
	Pose        domain.CameraPose `json:"pose"`
	PoseKey     string            `json:"pose_key"`
	State       domain.TaskState  `json:"state"`
	ArtifactKey string            `json:"artifact_key,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func viewJob(job *domain.Job) jobView {
	view := jobView{
		ID:             job.ID,
		SourceImageRef: job.SourceImageRef,
		State:          job.State,
		Options:        job.Options,
		Tasks:          make([]taskView, 0, len(job.Tasks)),
		CreatedAt:      job.CreatedAt.Format(timeFormat),
		UpdatedAt:      job.UpdatedAt.Format(timeFormat),
	}
	for _, task := range job.Tasks {
		view.Tasks = append(view.Tasks, taskView{
			Pose:        task.Pose,
			PoseKey:     task.Pose.Key(),
			State:       task.State,
			ArtifactKey: task.ArtifactKey,
			Error:       task.Error,
		})
	}
	return view
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"
