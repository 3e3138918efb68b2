// Package server exposes the center query endpoints over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/smpapa/mentalmap-cli/internal/config"
	"github.com/smpapa/mentalmap-cli/internal/model"
	"github.com/smpapa/mentalmap-cli/internal/store"
)

// Server answers nearby and lookup queries against the center store.
type Server struct {
	store          store.Store
	apiKey         string
	defaultRadiusM float64
}

// New creates a Server backed by the given store.
func New(st store.Store, cfg config.ServerConfig) *Server {
	radius := cfg.DefaultRadiusM
	if radius <= 0 {
		radius = 10000
	}
	return &Server{
		store:          st,
		apiKey:         cfg.APIKey,
		defaultRadiusM: radius,
	}
}

// Router builds the chi router: a public health endpoint plus the
// key-gated center endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(apiKeyMiddleware(s.apiKey))
		r.Get("/centers", s.handleNearby)
		r.Get("/centers/{id}", s.handleGetCenter)
	})

	return r
}

// handleHealth reports liveness plus store reachability. It stays public so
// load balancers can probe without the api key.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.CountCenters(r.Context())
	if err != nil {
		zap.L().Warn("health check: store unreachable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "centers": n})
}

// handleNearby serves GET /centers?lat&lng&radius.
func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat is required and must be a number")
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lng is required and must be a number")
		return
	}
	if err := model.ValidateCoordinates(lat, lng); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	radius := s.defaultRadiusM
	if raw := q.Get("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			writeError(w, http.StatusBadRequest, "radius must be a positive number")
			return
		}
	}

	centers, err := s.store.FindNearby(r.Context(), lat, lng, radius)
	if err != nil {
		zap.L().Error("nearby query failed",
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if centers == nil {
		centers = []model.CenterSummary{}
	}
	writeJSON(w, http.StatusOK, centers)
}

// handleGetCenter serves GET /centers/{id}.
func (s *Server) handleGetCenter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	center, err := s.store.GetCenter(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "center not found")
		return
	}
	if err != nil {
		zap.L().Error("get center failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, center)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
