// Package resolver turns a source image reference into bytes ready for
// upload. A reference is either a raw URL or a key into the asset library.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"previz/internal/domain"
	"previz/internal/storage"
)

const maxSourceBytes = 32 << 20

type Resolver struct {
	httpClient *http.Client
	store      *storage.FileStore
}

func New(store *storage.FileStore, httpClient *http.Client) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Resolver{httpClient: httpClient, store: store}
}

// Resolve returns the image bytes and a filename for the given reference.
// Failures wrap domain.ErrSourceUnavailable.
func (r *Resolver) Resolve(ctx context.Context, ref string) ([]byte, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, "", fmt.Errorf("%w: empty reference", domain.ErrSourceUnavailable)
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return r.fetchURL(ctx, ref)
	}
	data, err := r.store.Read(ctx, ref)
	if err != nil {
		return nil, "", fmt.Errorf("%w: asset %q: %v", domain.ErrSourceUnavailable, ref, err)
	}
	return data, path.Base(ref), nil
}

func (r *Resolver) fetchURL(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: http %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty body", domain.ErrSourceUnavailable)
	}
	return data, filenameFromURL(rawURL), nil
}

func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "source.png"
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "source.png"
	}
	return name
}
