package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/falconmesh/falconmesh/pkg/mission"
)

// Mission retrieves the current mission document
func (c *Hub) Mission(ctx context.Context) (*mission.Mission, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/mission", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	var m mission.Mission
	if err := decodeResponse(resp, &m); err != nil {
		return nil, fmt.Errorf("failed to decode mission response: %w", err)
	}
	return &m, nil
}

// SetMission applies a partial mission update and returns the stored
// document
func (c *Hub) SetMission(ctx context.Context, patch mission.Patch) (*mission.Mission, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/mission", patch)
	if err != nil {
		return nil, fmt.Errorf("failed to set mission: %w", err)
	}

	var m mission.Mission
	if err := decodeResponse(resp, &m); err != nil {
		return nil, fmt.Errorf("failed to decode mission response: %w", err)
	}
	return &m, nil
}

// ClearMission resets the mission geometry while keeping battery policy
func (c *Hub) ClearMission(ctx context.Context) (*mission.Mission, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/mission/clear", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to clear mission: %w", err)
	}

	var m mission.Mission
	if err := decodeResponse(resp, &m); err != nil {
		return nil, fmt.Errorf("failed to decode mission response: %w", err)
	}
	return &m, nil
}
