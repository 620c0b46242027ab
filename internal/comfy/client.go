// Package comfy is a thin protocol client for the node-graph compute
// backend. It keeps no state between calls, applies one fixed timeout per
// call and never retries; retry policy belongs to the orchestrator.
package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"previz/internal/workflow"
)

var (
	ErrUploadFailed = errors.New("asset upload failed")
	ErrSubmitFailed = errors.New("task submission failed")
	ErrPollFailed   = errors.New("status poll failed")
	ErrFetchFailed  = errors.New("artifact fetch failed")
)

// Phase is the backend-reported state of one external task.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Artifact locates one generated output on the backend.
type Artifact struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Kind      string `json:"type"`
}

// TaskStatus is the result of one status poll. Message is set only for
// failed tasks; Artifact only for succeeded ones.
type TaskStatus struct {
	Phase    Phase
	Artifact Artifact
	Message  string
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8188"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		clientID:   uuid.NewString(),
	}
}

// Probe reports whether the backend answers its stats endpoint. A false
// answer is a hard precondition failure for a whole submission batch.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/system_stats", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type uploadResponse struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
}

// UploadAsset stores the source image on the backend and returns the
// backend-side reference used by LoadImage nodes.
func (c *Client) UploadAsset(ctx context.Context, data []byte, name string) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image", name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := form.WriteField("overwrite", "true"); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: http %d", ErrUploadFailed, resp.StatusCode)
	}
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if out.Name == "" {
		return "", fmt.Errorf("%w: empty asset name in response", ErrUploadFailed)
	}
	if out.Subfolder != "" {
		return out.Subfolder + "/" + out.Name, nil
	}
	return out.Name, nil
}

type submitRequest struct {
	Prompt   workflow.Graph `json:"prompt"`
	ClientID string         `json:"client_id"`
}

type submitResponse struct {
	PromptID string `json:"prompt_id"`
	Error    *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit queues one task graph and returns the external task id.
func (c *Client) Submit(ctx context.Context, graph workflow.Graph) (string, error) {
	payload, err := json.Marshal(submitRequest{Prompt: graph, ClientID: c.clientID})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer resp.Body.Close()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: http %d", ErrSubmitFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("%w: %s (%s)", ErrSubmitFailed, out.Error.Message, out.Error.Type)
		}
		return "", fmt.Errorf("%w: http %d", ErrSubmitFailed, resp.StatusCode)
	}
	if out.PromptID == "" {
		return "", fmt.Errorf("%w: missing prompt id in response", ErrSubmitFailed)
	}
	return out.PromptID, nil
}

type historyEntry struct {
	Status struct {
		StatusStr string `json:"status_str"`
		Completed bool   `json:"completed"`
	} `json:"status"`
	Outputs map[string]struct {
		Images []Artifact `json:"images"`
	} `json:"outputs"`
}

// PollStatus asks the backend for the state of one external task. A task the
// backend has not finished yet is reported as running, never as an error;
// ErrPollFailed covers transport and protocol problems only.
func (c *Client) PollStatus(ctx context.Context, externalTaskID string) (TaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+url.PathEscape(externalTaskID), nil)
	if err != nil {
		return TaskStatus{}, fmt.Errorf("%w: %v", ErrPollFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TaskStatus{}, fmt.Errorf("%w: %v", ErrPollFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return TaskStatus{}, fmt.Errorf("%w: http %d", ErrPollFailed, resp.StatusCode)
	}

	history := map[string]historyEntry{}
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return TaskStatus{}, fmt.Errorf("%w: %v", ErrPollFailed, err)
	}
	entry, ok := history[externalTaskID]
	if !ok {
		// The backend only records finished tasks in its history.
		return TaskStatus{Phase: PhaseRunning}, nil
	}
	if entry.Status.StatusStr == "error" {
		return TaskStatus{Phase: PhaseFailed, Message: "backend reported execution error"}, nil
	}
	if !entry.Status.Completed {
		return TaskStatus{Phase: PhaseRunning}, nil
	}
	for _, output := range entry.Outputs {
		if len(output.Images) > 0 {
			return TaskStatus{Phase: PhaseSucceeded, Artifact: output.Images[0]}, nil
		}
	}
	return TaskStatus{Phase: PhaseFailed, Message: "task finished without outputs"}, nil
}

// FetchArtifact downloads one generated output.
func (c *Client) FetchArtifact(ctx context.Context, artifact Artifact) ([]byte, error) {
	query := url.Values{}
	query.Set("filename", artifact.Filename)
	query.Set("subfolder", artifact.Subfolder)
	query.Set("type", artifact.Kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/view?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d", ErrFetchFailed, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty artifact body", ErrFetchFailed)
	}
	return data, nil
}
