package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SWAI-Ltd/multipass/client"
	"github.com/SWAI-Ltd/multipass/internal/roster"
)

type rosterEntry struct {
	ID    string `json:"id"`
	Local bool   `json:"local"`
}

// newRouter serves the engine metrics and the current roster.
func newRouter(c *client.Client, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/roster", func(w http.ResponseWriter, _ *http.Request) {
		entries := c.Entries()
		out := make([]rosterEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, rosterEntry{ID: e.Participant.String(), Local: e.Kind == roster.KindManaged})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	return r
}
