package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-ops-console/internal/auth"
	"github.com/example/ride-ops-console/internal/geocode"
	"github.com/example/ride-ops-console/internal/ingest"
	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/payments"
	"github.com/example/ride-ops-console/internal/session"
	"github.com/example/ride-ops-console/internal/storage"
)

// Deps is the wiring for the console API. Events, Geocoder and Payments
// are optional; the corresponding operations degrade gracefully without
// them.
type Deps struct {
	Hub      *session.Hub
	Rides    storage.RideStore
	Messages storage.MessageStore
	Auth     *auth.Manager
	Geocoder geocode.Client
	Events   ingest.EventPublisher
	Payments *payments.StripeClient
	Logger   *slog.Logger
}

type Server struct {
	hub      *session.Hub
	rides    storage.RideStore
	messages storage.MessageStore
	auth     *auth.Manager
	geocoder geocode.Client
	events   ingest.EventPublisher
	payments *payments.StripeClient
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(d Deps) *Server {
	s := &Server{
		hub:      d.Hub,
		rides:    d.Rides,
		messages: d.Messages,
		auth:     d.Auth,
		geocoder: d.Geocoder,
		events:   d.Events,
		payments: d.Payments,
		logger:   d.Logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/session/login", s.handleLogin).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/in-progress", s.handleRidesInProgress).Methods("GET")
	s.mux.HandleFunc("/ws/widget", s.handleWidgetWS)

	s.mux.HandleFunc("/admin/rides", s.handleCreateRide).Methods("POST")
	s.mux.HandleFunc("/admin/rides/{id}", s.handleUpdateRide).Methods("PATCH")
	s.mux.HandleFunc("/admin/rides/{id}", s.handleDeleteRide).Methods("DELETE")
	s.mux.HandleFunc("/admin/rides/{id}/refund", s.handleRefundRide).Methods("POST")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActorID   string `json:"actor_id"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.ActorID == "" {
		http.Error(w, "actor_id required", http.StatusBadRequest)
		return
	}
	actor := models.Actor{ID: body.ActorID, Name: body.Name, AvatarURL: body.AvatarURL, Authenticated: true}
	token, err := s.auth.IssueToken(actor)
	if err != nil {
		http.Error(w, "could not issue session", http.StatusInternalServerError)
		return
	}
	s.auth.SetCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"actor_id": actor.ID})
}

// handleRidesInProgress serves the poll endpoint the ride feed consumes:
// the actor's current in-progress rides as a full-replacement snapshot.
func (s *Server) handleRidesInProgress(w http.ResponseWriter, r *http.Request) {
	actor := s.auth.ActorFromRequest(r)
	if !actor.Authenticated {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	set, err := s.rides.InProgress(r.Context(), actor.ID)
	if err != nil {
		s.logger.Error("in-progress query failed", "actor", actor.ID, "error", err)
		http.Error(w, "ride query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
