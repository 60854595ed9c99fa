// Package api exposes a playback session over HTTP: status, control and a
// websocket stream of status updates.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hlsengine/internal/logger"
	"hlsengine/internal/metrics"
	"hlsengine/internal/playback"
)

type API struct {
	session *playback.Session
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New returns the control router for sess. A nil m disables /metrics.
func New(sess *playback.Session, log logger.Logger, m *metrics.Metrics) http.Handler {
	api := &API{
		session: sess,
		logger:  log,
		metrics: m,
	}

	r := chi.NewRouter()
	r.Use(RequestLogger(log))
	if m != nil {
		r.Use(metrics.RequestMiddleware(m))
		r.Method(http.MethodGet, "/metrics", m.Handler(sess.UpdateGauges))
	}

	r.Get("/healthz", api.handleHealth)
	r.Get("/status", api.handleStatus)
	r.Get("/events", api.handleEvents)

	r.Route("/player", func(r chi.Router) {
		r.Post("/load", api.handleLoad)
		r.Post("/play", api.handlePlay)
		r.Post("/seek", api.handleSeek)
		r.Post("/time", api.handleTime)
		r.Post("/preload", api.handlePreload)
		r.Post("/captions", api.handleCaptions)
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.session.Status())
}

func (a *API) handleLoad(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	a.session.Load(body.URL)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	a.session.Play()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

type timeBody struct {
	Time *float64 `json:"time"`
}

func (a *API) handleSeek(w http.ResponseWriter, r *http.Request) {
	var body timeBody
	if !decode(w, r, &body) {
		return
	}
	if body.Time == nil || *body.Time < 0 {
		http.Error(w, "time must be a non-negative number", http.StatusBadRequest)
		return
	}
	a.session.Seek(*body.Time)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) handleTime(w http.ResponseWriter, r *http.Request) {
	var body timeBody
	if !decode(w, r, &body) {
		return
	}
	if body.Time == nil || *body.Time < 0 {
		http.Error(w, "time must be a non-negative number", http.StatusBadRequest)
		return
	}
	a.session.UpdateTime(*body.Time)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) handlePreload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Preload string `json:"preload"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := a.session.SetPreload(body.Preload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) handleCaptions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TrackID string `json:"trackId"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := a.session.SelectTextTrack(body.TrackID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, playback.ErrUnknownTrack) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
