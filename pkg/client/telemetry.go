package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/falconmesh/falconmesh/pkg/telemetry"
)

// Ingest reports one telemetry record to the hub
func (c *Hub) Ingest(ctx context.Context, rec telemetry.Record) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/ingest", rec)
	if err != nil {
		return fmt.Errorf("failed to ingest telemetry: %w", err)
	}
	return decodeResponse(resp, nil)
}

// NodesResponse wraps the fleet snapshot
type NodesResponse struct {
	TS    string             `json:"ts"`
	Nodes []telemetry.Record `json:"nodes"`
}

// Nodes retrieves the last-known record for every node the hub has seen
func (c *Hub) Nodes(ctx context.Context) (*NodesResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/nodes", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	var result NodesResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode nodes response: %w", err)
	}
	return &result, nil
}
