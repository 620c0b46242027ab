package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"previz/internal/catalog"
	"previz/internal/comfy"
	"previz/internal/domain"
	"previz/internal/http/handlers"
	"previz/internal/http/httpapi"
	"previz/internal/orchestrator"
	"previz/internal/storage"
	"previz/internal/workflow"
)

// memoryRepo keeps jobs as JSON documents so stored state is isolated from
// caller pointers, like the real document store.
type memoryRepo struct {
	mu   sync.Mutex
	jobs map[string][]byte
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{jobs: make(map[string][]byte)}
}

func (r *memoryRepo) Create(ctx context.Context, job *domain.Job) error {
	return r.put(job)
}

func (r *memoryRepo) Save(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	_, ok := r.jobs[job.ID]
	r.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	return r.put(job)
}

func (r *memoryRepo) put(job *domain.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = doc
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var job domain.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *memoryRepo) Delete(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[jobID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.jobs, jobID)
	return nil
}

func (r *memoryRepo) List(ctx context.Context) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Job, 0, len(r.jobs))
	for _, doc := range r.jobs {
		var job domain.Job
		if err := json.Unmarshal(doc, &job); err != nil {
			return nil, err
		}
		out = append(out, &job)
	}
	return out, nil
}

// fakeBackend always succeeds: every submitted prompt completes on the
// first poll with a one-pixel artifact.
type fakeBackend struct {
	mu      sync.Mutex
	submits int
}

var pngBytes = []byte("\x89PNG fake image body")

func (b *fakeBackend) Probe(ctx context.Context) bool { return true }

func (b *fakeBackend) UploadAsset(ctx context.Context, data []byte, name string) (string, error) {
	return name, nil
}

func (b *fakeBackend) Submit(ctx context.Context, graph workflow.Graph) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits++
	return fmt.Sprintf("prompt-%d", b.submits), nil
}

func (b *fakeBackend) PollStatus(ctx context.Context, externalTaskID string) (comfy.TaskStatus, error) {
	return comfy.TaskStatus{
		Phase:    comfy.PhaseSucceeded,
		Artifact: comfy.Artifact{Filename: externalTaskID + ".png", Kind: "output"},
	}, nil
}

func (b *fakeBackend) FetchArtifact(ctx context.Context, artifact comfy.Artifact) ([]byte, error) {
	return pngBytes, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, ref string) ([]byte, string, error) {
	if strings.HasPrefix(ref, "missing") {
		return nil, "", fmt.Errorf("%w: asset %q", domain.ErrSourceUnavailable, ref)
	}
	return []byte("source image"), "source.png", nil
}

type fixture struct {
	handler http.Handler
	repo    *memoryRepo
	store   *storage.FileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	repo := newMemoryRepo()
	orch := orchestrator.New(repo, &fakeBackend{}, fakeResolver{}, store, catalog.New(), zerolog.Nop(), 0)
	app := handlers.NewApp(zerolog.Nop(), orch, catalog.New(), store, &fakeBackend{})
	return &fixture{
		handler: httpapi.NewRouter(app, httpapi.RouterOptions{RateLimitPerMin: 1000}),
		repo:    repo,
		store:   store,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// waitCompleted polls the status endpoint until the job reaches a terminal
// state or the deadline passes.
func (f *fixture) waitCompleted(t *testing.T, jobID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := f.do(t, http.MethodGet, "/v1/generations/"+jobID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status code = %d, body %s", rec.Code, rec.Body.String())
		}
		var view map[string]any
		decodeJSON(t, rec, &view)
		switch view["state"] {
		case "completed", "partial", "failed":
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", jobID)
	return nil
}

func TestGenerateAccepted(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{
		"source_image_ref": "library/hero.png",
		"preset_id":        "character-ortho",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID string `json:"job_id"`
		State string `json:"state"`
	}
	decodeJSON(t, rec, &resp)
	if resp.JobID == "" {
		t.Fatal("job_id is empty")
	}
	if resp.State != "processing" {
		t.Fatalf("state = %q, want processing", resp.State)
	}

	view := f.waitCompleted(t, resp.JobID)
	if view["state"] != "completed" {
		t.Fatalf("final state = %v, want completed", view["state"])
	}
	tasks := view["tasks"].([]any)
	if len(tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(tasks))
	}
	for _, raw := range tasks {
		task := raw.(map[string]any)
		if task["state"] != "ready" {
			t.Fatalf("task %v state = %v, want ready", task["pose_key"], task["state"])
		}
	}
}

func TestGenerateUnknownPreset(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{
		"source_image_ref": "library/hero.png",
		"preset_id":        "no-such-preset",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if resp["error"] != "bad_request" {
		t.Fatalf("error = %q, want bad_request", resp["error"])
	}
}

func TestGenerateInvalidOptions(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{
		"source_image_ref": "library/hero.png",
		"preset_id":        "character-ortho",
		"options":          map[string]any{"strength": 2.0, "steps": 20, "cfg": 7.0},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateMissingSource(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{
		"preset_id": "character-ortho",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}

func TestJobStatusNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/generations/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
}

func TestListJobs(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{
			"source_image_ref": "library/hero.png",
			"preset_id":        "character-ortho",
		})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("code = %d", rec.Code)
		}
	}

	rec := f.do(t, http.MethodGet, "/v1/generations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp struct {
		Items []map[string]any `json:"items"`
	}
	decodeJSON(t, rec, &resp)
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
}

func TestDeleteJob(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{
		"source_image_ref": "library/hero.png",
		"preset_id":        "character-ortho",
	})
	var resp struct {
		JobID string `json:"job_id"`
	}
	decodeJSON(t, rec, &resp)
	f.waitCompleted(t, resp.JobID)

	if rec := f.do(t, http.MethodDelete, "/v1/generations/"+resp.JobID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete code = %d, want 204", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/generations/"+resp.JobID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/v1/generations/"+resp.JobID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d, want 404", rec.Code)
	}
}

func TestTaskArtifact(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{
		"source_image_ref": "library/hero.png",
		"preset_id":        "character-ortho",
	})
	var resp struct {
		JobID string `json:"job_id"`
	}
	decodeJSON(t, rec, &resp)
	f.waitCompleted(t, resp.JobID)

	got := f.do(t, http.MethodGet, "/v1/generations/"+resp.JobID+"/artifacts/front-eye-medium", nil)
	if got.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", got.Code, got.Body.String())
	}
	if ct := got.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.Equal(got.Body.Bytes(), pngBytes) {
		t.Fatalf("artifact bytes differ")
	}

	missing := f.do(t, http.MethodGet, "/v1/generations/"+resp.JobID+"/artifacts/left-eye-medium", nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("unknown pose code = %d, want 404", missing.Code)
	}
}

func TestPresets(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/presets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp struct {
		Items []struct {
			ID        string `json:"id"`
			Label     string `json:"label"`
			PoseCount int    `json:"pose_count"`
		} `json:"items"`
	}
	decodeJSON(t, rec, &resp)
	found := false
	for _, item := range resp.Items {
		if item.ID == "character-ortho" {
			found = true
			if item.PoseCount != 3 {
				t.Fatalf("character-ortho pose_count = %d, want 3", item.PoseCount)
			}
		}
	}
	if !found {
		t.Fatal("character-ortho missing from preset list")
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if resp["status"] != "ok" || resp["backend"] != "ok" {
		t.Fatalf("body = %v", resp)
	}
}
