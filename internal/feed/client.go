package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-ops-console/internal/models"
	"github.com/example/ride-ops-console/internal/storage"
)

// HTTPQuerier talks to the external ride query service.
type HTTPQuerier struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPQuerier(baseURL string) *HTTPQuerier {
	return &HTTPQuerier{BaseURL: baseURL, Client: &http.Client{Timeout: 2 * time.Second}}
}

// RidesInProgress issues GET {base}/rides/in-progress. A non-2xx response
// is never parsed as data; 401/403 map to ErrUnauthenticated so the feed
// can stop cleanly when the session expires mid-poll.
func (q *HTTPQuerier) RidesInProgress(ctx context.Context, actorID string) (models.RideSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.BaseURL+"/rides/in-progress", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Actor-ID", actorID)

	resp, err := q.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthenticated
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("ride query: unexpected status %d", resp.StatusCode)
	}

	var set models.RideSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("ride query: decode: %w", err)
	}
	return set, nil
}

// StoreQuerier serves the feed straight from the local ride store when the
// console is self-hosting the ride service.
type StoreQuerier struct {
	Store storage.RideStore
}

func (q *StoreQuerier) RidesInProgress(ctx context.Context, actorID string) (models.RideSet, error) {
	return q.Store.InProgress(ctx, actorID)
}
