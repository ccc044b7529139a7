// Package steward implements the autonomous policy steward.
// It observes a running blob world over HTTP, asks the narrator model
// whether a policy would help, and acts through the control endpoints.
package steward

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/blob-world/internal/world"
)

// WorldSnapshot holds all data collected during an observation cycle.
type WorldSnapshot struct {
	Status    WorldStatus   `json:"status"`
	Metrics   MetricsData   `json:"metrics"`
	Relations RelationsData `json:"relations"`
}

// WorldStatus mirrors GET /status.
type WorldStatus struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	WorldID     string `json:"world_id"`
	CurrentYear int    `json:"current_year"`
	Blobs       int    `json:"blobs"`
	Societies   int    `json:"societies"`
	Events      int    `json:"events"`
	Ticks       uint64 `json:"ticks"`
	Skipped     uint64 `json:"skipped"`
}

// Ready reports whether the server has a world to steer.
func (s WorldStatus) Ready() bool {
	return s.State == "ready"
}

// MetricsData mirrors GET /world_metrics.
type MetricsData struct {
	Metrics []world.MetricValue  `json:"metrics"`
	History map[string][]float64 `json:"history"`
	Summary string               `json:"summary"`
}

// RelationPair mirrors items of GET /relations.
type RelationPair struct {
	Key      string  `json:"key"`
	Society1 int     `json:"society1"`
	Society2 int     `json:"society2"`
	Score    float64 `json:"score"`
	Label    string  `json:"label"`
}

// RelationsData mirrors GET /relations.
type RelationsData struct {
	Report string         `json:"report"`
	Pairs  []RelationPair `json:"pairs"`
}

// Observer fetches world state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Observe fetches status, metrics and relations. Before a world exists only
// the status is filled in.
func (o *Observer) Observe(ctx context.Context) (*WorldSnapshot, error) {
	snap := &WorldSnapshot{}

	if err := o.fetchJSON(ctx, "/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if !snap.Status.Ready() {
		return snap, nil
	}
	if err := o.fetchJSON(ctx, "/world_metrics", &snap.Metrics); err != nil {
		return nil, fmt.Errorf("fetch metrics: %w", err)
	}
	if err := o.fetchJSON(ctx, "/relations", &snap.Relations); err != nil {
		return nil, fmt.Errorf("fetch relations: %w", err)
	}
	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
