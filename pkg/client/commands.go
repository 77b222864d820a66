package client

import (
	"context"
	"fmt"
	"net/http"
)

// CommandRequest addresses a command to one node or the whole fleet
type CommandRequest struct {
	Target  string                 `json:"target"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// CommandResponse reports how many nodes received the command
type CommandResponse struct {
	OK        bool   `json:"ok"`
	TS        string `json:"ts"`
	Delivered int    `json:"delivered"`
}

// Command dispatches a fleet command through the hub
func (c *Hub) Command(ctx context.Context, req CommandRequest) (*CommandResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/command", req)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch command: %w", err)
	}

	var result CommandResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode command response: %w", err)
	}
	return &result, nil
}
