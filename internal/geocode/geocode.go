// Package geocode resolves free-form pickup/dropoff strings to
// coordinates. Accuracy is the provider's problem; this is plumbing for
// the admin ride form, with a small TTL cache in front of the provider.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/example/ride-ops-console/internal/models"
)

// Client is the interface the admin handlers use.
type Client interface {
	Forward(ctx context.Context, address string) (models.Coord, error)
}

// HTTPClient queries a Nominatim-compatible search endpoint.
type HTTPClient struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

func (c *HTTPClient) Forward(ctx context.Context, address string) (models.Coord, error) {
	u := fmt.Sprintf("%s/search?format=json&limit=1&q=%s", c.Endpoint, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Coord{}, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return models.Coord{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Coord{}, fmt.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}
	var out []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Coord{}, err
	}
	if len(out) == 0 {
		return models.Coord{}, fmt.Errorf("geocode: no result for %q", address)
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return models.Coord{}, err
	}
	lon, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return models.Coord{}, err
	}
	return models.Coord{Lat: lat, Lon: lon}, nil
}

// Cached wraps a Client with a TTL cache keyed by the address string.
type Cached struct {
	inner Client
	ttl   time.Duration

	mu    sync.RWMutex
	store map[string]cacheEntry
}

type cacheEntry struct {
	coord models.Coord
	ts    time.Time
}

func NewCached(inner Client, ttl time.Duration) *Cached {
	return &Cached{inner: inner, ttl: ttl, store: make(map[string]cacheEntry)}
}

func (c *Cached) Forward(ctx context.Context, address string) (models.Coord, error) {
	c.mu.RLock()
	e, ok := c.store[address]
	c.mu.RUnlock()
	if ok && time.Since(e.ts) <= c.ttl {
		return e.coord, nil
	}

	coord, err := c.inner.Forward(ctx, address)
	if err != nil {
		return models.Coord{}, err
	}
	c.mu.Lock()
	c.store[address] = cacheEntry{coord: coord, ts: time.Now()}
	c.mu.Unlock()
	return coord, nil
}
