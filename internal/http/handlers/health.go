package handlers

import "net/http"

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	backend := "unreachable"
	if a.Backend != nil && a.Backend.Probe(r.Context()) {
		backend = "ok"
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "backend": backend})
}
