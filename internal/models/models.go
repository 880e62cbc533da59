package models

import "time"

// RideSummary is the immutable per-poll snapshot of one in-progress ride.
// The id is assigned by the ride service; summaries are replaced wholesale
// each poll cycle, never merged field by field.
type RideSummary struct {
	ID      int64  `json:"id"`
	Pickup  string `json:"pickupLocation"`
	Dropoff string `json:"dropoffLocation"`
}

// RideSet is the ordered set of rides returned by one poll. Order is the
// order the ride service returned them; ids are unique within a set.
type RideSet []RideSummary

// Contains reports whether id is present in the set.
func (s RideSet) Contains(id int64) bool {
	for _, r := range s {
		if r.ID == id {
			return true
		}
	}
	return false
}

// ChatMessage is one immutable message in a ride's chat stream.
type ChatMessage struct {
	ID           string    `json:"id"`
	RideID       int64     `json:"ride_id"`
	Text         string    `json:"text"`
	SenderID     string    `json:"sender_id"`
	SenderName   string    `json:"sender_name"`
	SenderAvatar string    `json:"sender_avatar"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor identifies the authenticated session on whose behalf rides and
// messages are scoped.
type Actor struct {
	ID            string
	Name          string
	AvatarURL     string
	Authenticated bool
}

// Coord is a WGS84 point resolved by the geocoder.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type RideStatus string

const (
	RideRequested  RideStatus = "requested"
	RideInProgress RideStatus = "in_progress"
	RideCompleted  RideStatus = "completed"
	RideCanceled   RideStatus = "canceled"
)

// Ride is the full admin-side record behind a RideSummary.
type Ride struct {
	ID              int64
	RiderID         string
	DriverID        string
	Pickup          string
	Dropoff         string
	PickupCoord     Coord
	DropoffCoord    Coord
	Status          RideStatus
	PaymentIntentID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Summary projects the ride into its poll-cycle snapshot shape.
func (r Ride) Summary() RideSummary {
	return RideSummary{ID: r.ID, Pickup: r.Pickup, Dropoff: r.Dropoff}
}

// RideEvent is published to Kafka whenever the admin panel mutates a ride.
// Consumers only need enough to know the in-progress set may have changed.
type RideEvent struct {
	Type   string    `json:"type"` // created, updated, deleted
	RideID int64     `json:"ride_id"`
	At     time.Time `json:"at"`
}
