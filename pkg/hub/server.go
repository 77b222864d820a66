package hub

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/falconmesh/falconmesh/pkg/logger"
	"github.com/falconmesh/falconmesh/pkg/mission"
	"github.com/falconmesh/falconmesh/pkg/telemetry"
)

const wsWriteTimeout = 5 * time.Second

// Server exposes the hub over HTTP and websocket.
type Server struct {
	hub      *Hub
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewServer wraps the hub with its transport layer.
func NewServer(h *Hub, log logger.Logger) *Server {
	return &Server{
		hub: h,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the hub's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/api/nodes", s.handleNodes)
	mux.HandleFunc("/api/mission", s.handleMission)
	mux.HandleFunc("/api/mission/clear", s.handleMissionClear)
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/ws/telemetry", s.handleTelemetryWS)
	mux.HandleFunc("/ws/uav", s.handleNodeWS)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.hub.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"ts":       mission.Timestamp(time.Now()),
		"nodes":    stats.Nodes,
		"ws_telem": stats.TelemetrySubs,
		"ws_uav":   stats.CommandConns,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var rec telemetry.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "malformed telemetry record")
		return
	}

	if err := s.hub.Ingest(rec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true,
		"ts": mission.Timestamp(time.Now()),
	})
}

func (s *Server) handleNodes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ts":    mission.Timestamp(time.Now()),
		"nodes": s.hub.Nodes(),
	})
}

func (s *Server) handleMission(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.hub.Mission())

	case http.MethodPost, http.MethodPut:
		var patch mission.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "malformed mission document")
			return
		}
		m, err := s.hub.SetMission(patch)
		if err != nil {
			var verr *mission.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, m)

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST required")
	}
}

func (s *Server) handleMissionClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	writeJSON(w, http.StatusOK, s.hub.ClearMission())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req struct {
		Target  string                 `json:"target"`
		Command string                 `json:"command"`
		Params  map[string]interface{} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed command")
		return
	}

	delivered, err := s.hub.DispatchCommand(req.Target, req.Command, req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"ts":        mission.Timestamp(time.Now()),
		"delivered": delivered,
	})
}

func (s *Server) handleTelemetryWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("telemetry ws upgrade failed: %v", err)
		return
	}

	conn := newWSConn(ws)
	s.hub.AddTelemetrySubscriber(conn)

	// Inbound frames on this channel are keepalives, not commands.
	go s.drain(conn)
}

func (s *Server) handleNodeWS(w http.ResponseWriter, r *http.Request) {
	nodeID := r.URL.Query().Get("node_id")

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("node ws upgrade failed: %v", err)
		return
	}

	conn := newWSConn(ws)
	if nodeID == "" {
		_ = conn.Send(map[string]interface{}{"ok": false, "err": ErrMissingNodeID.Error()})
		_ = conn.Close()
		return
	}

	if err := s.hub.AddCommandConn(conn, nodeID); err != nil {
		_ = conn.Close()
		return
	}
	go s.drain(conn)
}

// drain reads and discards inbound frames until the peer goes away, then
// unregisters the connection.
func (s *Server) drain(conn *wsConn) {
	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.Remove(conn)
	_ = conn.Close()
}

// wsConn adapts a websocket connection to the hub's Conn interface,
// serializing writes and applying a write deadline.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.ws.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"ok": false, "err": msg})
}
