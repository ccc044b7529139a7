package steward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ActResult is the server's answer to an advance or a policy.
type ActResult struct {
	Status string `json:"status"` // "ok" or "skipped"
	Index  int    `json:"index"`
	Year   int    `json:"year"`
	Reason string `json:"reason,omitempty"`
	Event  *struct {
		Headline string `json:"headline"`
	} `json:"event,omitempty"`
}

// Headline returns the new event's headline, if one was written.
func (r *ActResult) Headline() string {
	if r.Event == nil {
		return ""
	}
	return r.Event.Headline
}

// Actor executes decisions via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
// Narrator calls are slow, so the timeout is generous.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:    baseURL,
		AdminKey:   adminKey,
		HTTPClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

// Act carries out d. A "none" decision makes no request and returns nil.
func (a *Actor) Act(ctx context.Context, d *Decision) (*ActResult, error) {
	switch d.Action {
	case ActionNone:
		return nil, nil
	case ActionAdvance:
		return a.post(ctx, "/run_iteration", nil)
	case ActionPolicy:
		return a.post(ctx, "/propose_policy", map[string]any{
			"proposal":    d.Proposal,
			"temperature": d.Temperature,
		})
	}
	return nil, fmt.Errorf("unknown action %q", d.Action)
}

// post sends payload as JSON. A skipped turn (422) is a result, not an error.
func (a *Actor) post(ctx context.Context, path string, payload any) (*ActResult, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.AdminKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.AdminKey)
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("POST %s failed (%d): %s", path, resp.StatusCode, string(respBody))
	}

	var result ActResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
