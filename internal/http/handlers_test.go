package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-ops-console/internal/auth"
	"github.com/example/ride-ops-console/internal/feed"
	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/session"
	"github.com/example/ride-ops-console/internal/storage"
	"github.com/example/ride-ops-console/internal/stream"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

type recordingPublisher struct {
	events []models.RideEvent
}

func (p *recordingPublisher) PublishRideEvent(ctx context.Context, ev models.RideEvent) error {
	p.events = append(p.events, ev)
	return nil
}

type fixedGeocoder struct{}

func (fixedGeocoder) Forward(ctx context.Context, address string) (models.Coord, error) {
	return models.Coord{Lat: 40.71, Lon: -74.0}, nil
}

type testEnv struct {
	server    *httptest.Server
	rides     *storage.MemoryRideStore
	messages  *storage.MemoryMessageStore
	auth      *auth.Manager
	publisher *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))

	rides := storage.NewMemoryRideStore()
	messages := storage.NewMemoryMessageStore()
	source := stream.NewMemorySource(messages, 10)
	mgr := auth.NewManager("test-secret", time.Hour)
	pub := &recordingPublisher{}

	hub := session.NewHub(&feed.StoreQuerier{Store: rides}, source, messages, source, session.Config{
		PollInterval: 10 * time.Millisecond,
		WindowSize:   10,
	}, logger)

	srv := NewServer(Deps{
		Hub:      hub,
		Rides:    rides,
		Messages: messages,
		Auth:     mgr,
		Geocoder: fixedGeocoder{},
		Events:   pub,
		Logger:   logger,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, rides: rides, messages: messages, auth: mgr, publisher: pub}
}

func (e *testEnv) sessionCookie(t *testing.T, actorID string) *http.Cookie {
	t.Helper()
	token, err := e.auth.IssueToken(models.Actor{ID: actorID, Name: "Ada"})
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	e := newTestEnv(t)

	body := bytes.NewBufferString(`{"actor_id":"u-1","name":"Ada"}`)
	resp, err := http.Post(e.server.URL+"/api/v1/session/login", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)

	actor, err := e.auth.Validate(sessionCookie.Value)
	require.NoError(t, err)
	require.Equal(t, "u-1", actor.ID)
}

func TestRidesInProgressRequiresSession(t *testing.T) {
	e := newTestEnv(t)

	resp, err := http.Get(e.server.URL + "/api/v1/rides/in-progress")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRidesInProgressScopedToActor(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, e.rides.SaveRide(ctx, &models.Ride{RiderID: "u-1", Pickup: "A", Dropoff: "B", Status: models.RideInProgress}))
	require.NoError(t, e.rides.SaveRide(ctx, &models.Ride{RiderID: "u-2", Pickup: "C", Dropoff: "D", Status: models.RideInProgress}))
	require.NoError(t, e.rides.SaveRide(ctx, &models.Ride{RiderID: "u-1", Pickup: "E", Dropoff: "F", Status: models.RideCompleted}))

	req, _ := http.NewRequest(http.MethodGet, e.server.URL+"/api/v1/rides/in-progress", nil)
	req.AddCookie(e.sessionCookie(t, "u-1"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var set models.RideSet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&set))
	require.Len(t, set, 1)
	require.Equal(t, "A", set[0].Pickup)
}

func TestAdminCreateRideGeocodesAndPublishes(t *testing.T) {
	e := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodPost, e.server.URL+"/admin/rides",
		strings.NewReader(`{"rider_id":"u-1","pickup":"14 Main St","dropoff":"Airport","status":"in_progress"}`))
	req.AddCookie(e.sessionCookie(t, "ops-1"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var ride models.Ride
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ride))
	require.NotZero(t, ride.ID)
	require.Equal(t, 40.71, ride.PickupCoord.Lat)

	require.Len(t, e.publisher.events, 1)
	require.Equal(t, "created", e.publisher.events[0].Type)
	require.Equal(t, ride.ID, e.publisher.events[0].RideID)
}

func TestAdminMutationsRequireSession(t *testing.T) {
	e := newTestEnv(t)

	resp, err := http.Post(e.server.URL+"/admin/rides", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func dialWidget(t *testing.T, e *testEnv, actorID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/widget"
	header := http.Header{}
	header.Add("Cookie", e.sessionCookie(t, actorID).String())
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, match func(serverFrame) bool) serverFrame {
	t.Helper()
	for i := 0; i < 200; i++ {
		var f serverFrame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
	t.Fatal("expected frame never arrived")
	return serverFrame{}
}

func TestWidgetWebSocketFlow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.rides.SaveRide(ctx, &models.Ride{RiderID: "u-1", Pickup: "A", Dropoff: "B", Status: models.RideInProgress}))

	conn := dialWidget(t, e, "u-1")

	// the feed's first poll produces a render with the ride selected
	f := readFrame(t, conn, func(f serverFrame) bool {
		return f.Type == "render" && f.Render.SelectedRideID != nil
	})
	require.Equal(t, session.Closed, f.Render.State)
	require.True(t, f.Render.ToggleVisible)

	require.NoError(t, conn.WriteJSON(clientFrame{Op: "toggle"}))
	f = readFrame(t, conn, func(f serverFrame) bool {
		return f.Type == "render" && f.Render.State == session.OpenWithSelection
	})

	rideID := *f.Render.SelectedRideID
	require.NoError(t, conn.WriteJSON(clientFrame{Op: "send", RideID: rideID, Text: "hello there"}))
	f = readFrame(t, conn, func(f serverFrame) bool {
		return f.Type == "render" && len(f.Render.Window) == 1
	})
	require.Equal(t, "hello there", f.Render.Window[0].Text)

	require.NoError(t, conn.WriteJSON(clientFrame{Op: "close"}))
	readFrame(t, conn, func(f serverFrame) bool {
		return f.Type == "render" && f.Render.State == session.Closed
	})
}

func TestWidgetWebSocketRejectsAnonymous(t *testing.T) {
	e := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/widget"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
