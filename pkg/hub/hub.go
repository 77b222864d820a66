package hub

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/falconmesh/falconmesh/pkg/logger"
	"github.com/falconmesh/falconmesh/pkg/mission"
	"github.com/falconmesh/falconmesh/pkg/telemetry"
)

// NodeIDPrefix is the fleet naming convention commands may address.
const NodeIDPrefix = "uav-"

var (
	// ErrInvalidRecord rejects telemetry without a node id.
	ErrInvalidRecord = errors.New("missing node_id")
	// ErrInvalidTarget rejects command targets that are neither "all"
	// nor a fleet node id.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrInvalidCommand rejects commands outside the known set.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrMissingNodeID rejects command-channel registration without an
	// identity.
	ErrMissingNodeID = errors.New("missing node_id")
)

// Commands the hub will dispatch.
var validCommands = map[string]bool{
	"HOLD":    true,
	"RTB":     true,
	"FORM_UP": true,
	"RESUME":  true,
}

// Conn is one subscriber connection. Send failures mark the connection
// dead; the hub prunes it and never retries.
type Conn interface {
	Send(v interface{}) error
	Close() error
}

// Hub is the fleet's rendezvous point: last-known telemetry per node,
// the current mission, and the two broadcast groups. One mutex guards
// everything; each broadcast pass completes before the next request
// mutates state, so per-node delivery order matches ingest order.
type Hub struct {
	mu sync.Mutex

	last      map[string]telemetry.Record
	mission   *mission.Mission
	telemSubs map[Conn]string // conn -> subscriber id, for log lines
	cmdConns  map[Conn]string // conn -> node id
	store     mission.Store
	log       logger.Logger
}

// New constructs the hub, seeding the mission from the store when one is
// persisted. A failed load falls back to mission defaults and logs; it
// never fails startup.
func New(store mission.Store, log logger.Logger) *Hub {
	h := &Hub{
		last:      make(map[string]telemetry.Record),
		mission:   mission.Default(),
		telemSubs: make(map[Conn]string),
		cmdConns:  make(map[Conn]string),
		store:     store,
		log:       log,
	}

	if store != nil {
		m, err := store.Load()
		if err != nil {
			log.Warnf("could not load persisted mission, using defaults: %v", err)
		} else if m != nil {
			h.mission = m
			log.Infof("loaded persisted mission %s", m.ID)
		}
	}
	return h
}

// Ingest stores the record as the node's last-known telemetry and
// broadcasts it to every telemetry subscriber. Broadcast is best-effort:
// a failed send prunes that subscriber and delivery continues.
func (h *Hub) Ingest(rec telemetry.Record) error {
	if rec.NodeID == "" {
		return ErrInvalidRecord
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last[rec.NodeID] = rec
	h.broadcastLocked(rec)
	return nil
}

// Nodes returns a snapshot of the last-known record per node, in
// unspecified order.
func (h *Hub) Nodes() []telemetry.Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]telemetry.Record, 0, len(h.last))
	for _, rec := range h.last {
		out = append(out, rec)
	}
	return out
}

// Mission returns a copy of the current mission document.
func (h *Hub) Mission() *mission.Mission {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mission.Clone()
}

// SetMission validates and applies a partial mission update. Validation
// failure leaves the stored document untouched. On success the hub
// assigns a timestamp-derived id when absent, preserves created_ts,
// refreshes updated_ts, persists best-effort, and broadcasts a
// mission_update event.
func (h *Hub) SetMission(p mission.Patch) (*mission.Mission, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := p.Apply(h.mission)
	if err := next.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	if next.ID == "" {
		next.ID = mission.DeriveID(now)
	}
	if next.CreatedTS == "" {
		next.CreatedTS = mission.Timestamp(now)
	}
	next.UpdatedTS = mission.Timestamp(now)

	h.mission = next
	h.persistLocked()
	h.broadcastLocked(missionUpdate(h.mission))
	h.log.Infof("mission %s updated", next.ID)
	return next.Clone(), nil
}

// ClearMission resets waypoints, base, target and staging to empty while
// preserving the battery policy, then persists and broadcasts the
// cleared document.
func (h *Hub) ClearMission() *mission.Mission {
	h.mu.Lock()
	defer h.mu.Unlock()

	cleared := mission.Default()
	cleared.BatteryPolicy = h.mission.BatteryPolicy
	cleared.CreatedTS = h.mission.CreatedTS
	cleared.UpdatedTS = mission.Timestamp(time.Now())

	h.mission = cleared
	h.persistLocked()
	h.broadcastLocked(missionUpdate(h.mission))
	h.log.Info("mission cleared")
	return cleared.Clone()
}

// DispatchCommand delivers a command to every command connection whose
// node id matches target, or to all of them when target is "all". It
// returns the number of successful deliveries; zero matches is not an
// error. Failed connections are pruned from both registries.
func (h *Hub) DispatchCommand(target, command string, params map[string]interface{}) (int, error) {
	if target != "all" && !strings.HasPrefix(target, NodeIDPrefix) {
		return 0, ErrInvalidTarget
	}
	if !validCommands[command] {
		return 0, ErrInvalidCommand
	}

	msg := commandEvent(target, command, params)

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	var dead []Conn
	for conn, node := range h.cmdConns {
		if target != "all" && node != target {
			continue
		}
		if err := conn.Send(msg); err != nil {
			h.log.Debugf("command delivery to %s failed, pruning: %v", node, err)
			dead = append(dead, conn)
			continue
		}
		delivered++
	}
	for _, conn := range dead {
		delete(h.cmdConns, conn)
		_ = conn.Close()
	}

	h.log.Infof("command %s -> %s delivered to %d node(s)", command, target, delivered)
	return delivered, nil
}

// AddTelemetrySubscriber registers a telemetry subscriber and
// immediately pushes the full node snapshot and the current mission, so
// late joiners see current state rather than only future deltas.
func (h *Hub) AddTelemetrySubscriber(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := conn.Send(h.snapshotLocked()); err != nil {
		_ = conn.Close()
		return
	}
	if err := conn.Send(missionUpdate(h.mission)); err != nil {
		_ = conn.Close()
		return
	}

	id := uuid.NewString()
	h.telemSubs[conn] = id
	h.log.Debugf("telemetry subscriber %s connected (%d total)", id, len(h.telemSubs))
}

// AddCommandConn registers a node's command connection. The node id is
// required.
func (h *Hub) AddCommandConn(conn Conn, nodeID string) error {
	if nodeID == "" {
		return ErrMissingNodeID
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.cmdConns[conn] = nodeID
	h.log.Debugf("command channel for %s connected (%d total)", nodeID, len(h.cmdConns))
	return nil
}

// Remove drops the connection from whichever registries contain it.
// Safe to call repeatedly.
func (h *Hub) Remove(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.telemSubs, conn)
	delete(h.cmdConns, conn)
}

// Stats describes hub occupancy for the health endpoint.
type Stats struct {
	Nodes         int `json:"nodes"`
	TelemetrySubs int `json:"ws_telem"`
	CommandConns  int `json:"ws_uav"`
}

// Stats returns current counts.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Nodes:         len(h.last),
		TelemetrySubs: len(h.telemSubs),
		CommandConns:  len(h.cmdConns),
	}
}

// broadcastLocked sends v to every telemetry subscriber, pruning the
// ones whose send fails. Caller holds h.mu.
func (h *Hub) broadcastLocked(v interface{}) {
	var dead []Conn
	for conn, id := range h.telemSubs {
		if err := conn.Send(v); err != nil {
			h.log.Debugf("telemetry subscriber %s dropped: %v", id, err)
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		delete(h.telemSubs, conn)
		_ = conn.Close()
	}
}

// persistLocked saves the mission best-effort; the in-memory document
// stays authoritative on failure. Caller holds h.mu.
func (h *Hub) persistLocked() {
	if h.store == nil {
		return
	}
	if err := h.store.Save(h.mission); err != nil {
		h.log.Warnf("failed to persist mission: %v", err)
	}
}

func (h *Hub) snapshotLocked() map[string]interface{} {
	nodes := make([]telemetry.Record, 0, len(h.last))
	for _, rec := range h.last {
		nodes = append(nodes, rec)
	}
	return map[string]interface{}{
		"type":  "snapshot",
		"ts":    mission.Timestamp(time.Now()),
		"nodes": nodes,
	}
}

func missionUpdate(m *mission.Mission) map[string]interface{} {
	return map[string]interface{}{
		"type":    "mission_update",
		"ts":      mission.Timestamp(time.Now()),
		"mission": m.Clone(),
	}
}

func commandEvent(target, command string, params map[string]interface{}) map[string]interface{} {
	if params == nil {
		params = map[string]interface{}{}
	}
	return map[string]interface{}{
		"type":    "command",
		"ts":      mission.Timestamp(time.Now()),
		"target":  target,
		"command": command,
		"params":  params,
	}
}

// ValidTarget reports whether target follows the addressing convention.
func ValidTarget(target string) bool {
	return target == "all" || strings.HasPrefix(target, NodeIDPrefix)
}
