package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/example/ride-ops-console/internal/models"
)

// PostgresStore implements both RideStore and MessageStore on one
// connection pool.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Append(ctx context.Context, m *models.ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO chat_messages(id, ride_id, text, sender_id, sender_name, sender_avatar, created_at) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.RideID, m.Text, m.SenderID, m.SenderName, m.SenderAvatar, m.CreatedAt)
	return err
}

// Window selects the newest `limit` messages and reverses them so the
// caller always sees ascending creation time with the oldest rows dropped.
func (p *PostgresStore) Window(ctx context.Context, rideID int64, limit int) ([]models.ChatMessage, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, ride_id, text, sender_id, sender_name, sender_avatar, created_at
		 FROM chat_messages WHERE ride_id=$1 ORDER BY created_at DESC LIMIT $2`, rideID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var newestFirst []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.RideID, &m.Text, &m.SenderID, &m.SenderName, &m.SenderAvatar, &m.CreatedAt); err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]models.ChatMessage, len(newestFirst))
	for i, m := range newestFirst {
		out[len(newestFirst)-1-i] = m
	}
	return out, nil
}

func (p *PostgresStore) SaveRide(ctx context.Context, r *models.Ride) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return p.db.QueryRowContext(ctx,
		`INSERT INTO rides(rider_id, driver_id, pickup, dropoff, pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, status, payment_intent_id, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		r.RiderID, r.DriverID, r.Pickup, r.Dropoff,
		r.PickupCoord.Lat, r.PickupCoord.Lon, r.DropoffCoord.Lat, r.DropoffCoord.Lon,
		r.Status, r.PaymentIntentID, r.CreatedAt, r.UpdatedAt).Scan(&r.ID)
}

func (p *PostgresStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	r.UpdatedAt = time.Now().UTC()
	res, err := p.db.ExecContext(ctx,
		`UPDATE rides SET driver_id=$1, pickup=$2, dropoff=$3, status=$4, payment_intent_id=$5, updated_at=$6 WHERE id=$7`,
		r.DriverID, r.Pickup, r.Dropoff, r.Status, r.PaymentIntentID, r.UpdatedAt, r.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteRide(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM rides WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) GetRide(ctx context.Context, id int64) (*models.Ride, error) {
	var r models.Ride
	err := p.db.QueryRowContext(ctx,
		`SELECT id, rider_id, driver_id, pickup, dropoff, pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, status, payment_intent_id, created_at, updated_at
		 FROM rides WHERE id=$1`, id).
		Scan(&r.ID, &r.RiderID, &r.DriverID, &r.Pickup, &r.Dropoff,
			&r.PickupCoord.Lat, &r.PickupCoord.Lon, &r.DropoffCoord.Lat, &r.DropoffCoord.Lon,
			&r.Status, &r.PaymentIntentID, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *PostgresStore) InProgress(ctx context.Context, actorID string) ([]models.RideSummary, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, pickup, dropoff FROM rides
		 WHERE status='in_progress' AND ($1 = '' OR rider_id=$1 OR driver_id=$1)
		 ORDER BY id`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RideSummary
	for rows.Next() {
		var s models.RideSummary
		if err := rows.Scan(&s.ID, &s.Pickup, &s.Dropoff); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
