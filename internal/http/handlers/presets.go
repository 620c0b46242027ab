package handlers

import "net/http"

type presetSummary struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	PoseCount int    `json:"pose_count"`
}

// Presets lists every registered angle preset with its resolved pose count.
func (a *App) Presets(w http.ResponseWriter, r *http.Request) {
	presets := a.Catalog.Presets()
	items := make([]presetSummary, 0, len(presets))
	for _, p := range presets {
		items = append(items, presetSummary{ID: p.ID, Label: p.Label, PoseCount: len(p.Poses)})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
