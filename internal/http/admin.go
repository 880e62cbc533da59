package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/storage"
)

// Admin mutation handlers. Every successful mutation publishes a ride
// event and nudges live chat sessions so their next poll happens now
// instead of up to one interval later.

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	if !s.requireActor(w, r) {
		return
	}
	var body struct {
		RiderID  string `json:"rider_id"`
		DriverID string `json:"driver_id"`
		Pickup   string `json:"pickup"`
		Dropoff  string `json:"dropoff"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.RiderID == "" || body.Pickup == "" || body.Dropoff == "" {
		http.Error(w, "rider_id, pickup and dropoff are required", http.StatusBadRequest)
		return
	}

	ride := &models.Ride{
		RiderID:  body.RiderID,
		DriverID: body.DriverID,
		Pickup:   body.Pickup,
		Dropoff:  body.Dropoff,
		Status:   models.RideStatus(lo.CoalesceOrEmpty(body.Status, string(models.RideRequested))),
	}
	s.resolveCoords(r.Context(), ride)

	if err := s.rides.SaveRide(r.Context(), ride); err != nil {
		s.logger.Error("ride create failed", "error", err)
		http.Error(w, "could not create ride", http.StatusInternalServerError)
		return
	}
	s.publishRideEvent(r.Context(), "created", ride.ID)
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleUpdateRide(w http.ResponseWriter, r *http.Request) {
	if !s.requireActor(w, r) {
		return
	}
	id, ok := rideID(w, r)
	if !ok {
		return
	}
	ride, err := s.rides.GetRide(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "ride not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "could not load ride", http.StatusInternalServerError)
		return
	}

	var body struct {
		DriverID *string `json:"driver_id"`
		Pickup   *string `json:"pickup"`
		Dropoff  *string `json:"dropoff"`
		Status   *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.DriverID != nil {
		ride.DriverID = *body.DriverID
	}
	relocated := false
	if body.Pickup != nil {
		ride.Pickup = *body.Pickup
		relocated = true
	}
	if body.Dropoff != nil {
		ride.Dropoff = *body.Dropoff
		relocated = true
	}
	if body.Status != nil {
		ride.Status = models.RideStatus(*body.Status)
	}
	if relocated {
		s.resolveCoords(r.Context(), ride)
	}

	if err := s.rides.UpdateRide(r.Context(), ride); err != nil {
		http.Error(w, "could not update ride", http.StatusInternalServerError)
		return
	}
	s.publishRideEvent(r.Context(), "updated", ride.ID)
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleDeleteRide(w http.ResponseWriter, r *http.Request) {
	if !s.requireActor(w, r) {
		return
	}
	id, ok := rideID(w, r)
	if !ok {
		return
	}
	if err := s.rides.DeleteRide(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "ride not found", http.StatusNotFound)
			return
		}
		http.Error(w, "could not delete ride", http.StatusInternalServerError)
		return
	}
	s.publishRideEvent(r.Context(), "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleRefundRide releases the fare hold and cancels the ride.
func (s *Server) handleRefundRide(w http.ResponseWriter, r *http.Request) {
	if !s.requireActor(w, r) {
		return
	}
	id, ok := rideID(w, r)
	if !ok {
		return
	}
	ride, err := s.rides.GetRide(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "ride not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "could not load ride", http.StatusInternalServerError)
		return
	}
	if s.payments == nil || ride.PaymentIntentID == "" {
		http.Error(w, "no fare hold to release", http.StatusConflict)
		return
	}
	if err := s.payments.ReleaseFare(r.Context(), ride.PaymentIntentID); err != nil {
		s.logger.Error("fare release failed", "ride", id, "error", err)
		http.Error(w, "refund failed", http.StatusBadGateway)
		return
	}
	ride.Status = models.RideCanceled
	if err := s.rides.UpdateRide(r.Context(), ride); err != nil {
		http.Error(w, "could not update ride", http.StatusInternalServerError)
		return
	}
	s.publishRideEvent(r.Context(), "updated", ride.ID)
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) requireActor(w http.ResponseWriter, r *http.Request) bool {
	if actor := s.auth.ActorFromRequest(r); actor.Authenticated {
		return true
	}
	http.Error(w, "unauthenticated", http.StatusUnauthorized)
	return false
}

func rideID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid ride id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// resolveCoords geocodes pickup and dropoff best-effort; a provider
// failure never blocks the mutation.
func (s *Server) resolveCoords(ctx context.Context, ride *models.Ride) {
	if s.geocoder == nil {
		return
	}
	if c, err := s.geocoder.Forward(ctx, ride.Pickup); err == nil {
		ride.PickupCoord = c
	} else {
		s.logger.Warn("pickup geocode failed", "address", ride.Pickup, "error", err)
	}
	if c, err := s.geocoder.Forward(ctx, ride.Dropoff); err == nil {
		ride.DropoffCoord = c
	} else {
		s.logger.Warn("dropoff geocode failed", "address", ride.Dropoff, "error", err)
	}
}

// publishRideEvent fans the mutation out: the local hub is invalidated
// directly, other replicas hear about it through Kafka.
func (s *Server) publishRideEvent(ctx context.Context, kind string, rideID int64) {
	if s.hub != nil {
		s.hub.InvalidateAll()
	}
	if s.events == nil {
		return
	}
	if err := s.events.PublishRideEvent(ctx, models.RideEvent{Type: kind, RideID: rideID}); err != nil {
		s.logger.Warn("ride event publish failed", "type", kind, "ride", rideID, "error", err)
	}
}
