package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// wsURL rewrites the hub's HTTP base URL to the websocket scheme and
// appends the channel path.
func (c *Hub) wsURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// DialCommands opens the node's command channel. The hub pushes command
// events; the caller owns the connection.
func (c *Hub) DialCommands(ctx context.Context, nodeID string) (*websocket.Conn, error) {
	q := url.Values{}
	q.Set("node_id", nodeID)
	target, err := c.wsURL("/ws/uav", q)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial command channel: %w", err)
	}
	return ws, nil
}

// DialTelemetry opens the telemetry feed. The hub pushes a snapshot and
// the current mission first, then live records.
func (c *Hub) DialTelemetry(ctx context.Context) (*websocket.Conn, error) {
	target, err := c.wsURL("/ws/telemetry", nil)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial telemetry feed: %w", err)
	}
	return ws, nil
}
