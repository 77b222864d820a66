package hub

import (
	"errors"
	"io"
	"testing"

	"github.com/falconmesh/falconmesh/pkg/logger"
	"github.com/falconmesh/falconmesh/pkg/mission"
	"github.com/falconmesh/falconmesh/pkg/telemetry"
)

// fakeConn records everything sent to it and can be told to fail.
type fakeConn struct {
	sent   []interface{}
	fail   bool
	closed bool
}

func (c *fakeConn) Send(v interface{}) error {
	if c.fail {
		return errors.New("send failed")
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func quietLogger() logger.Logger {
	return logger.NewWithConfig(logger.Config{
		Level:   logger.FatalLevel,
		Writer:  io.Discard,
		NoColor: true,
	})
}

func newTestHub() *Hub {
	return New(nil, quietLogger())
}

func record(nodeID string) telemetry.Record {
	return telemetry.Record{
		TS:         "2025-06-01T12:00:00Z",
		NodeID:     nodeID,
		State:      "IDLE",
		BatteryPct: 90,
	}
}

func TestIngestRejectsMissingNodeID(t *testing.T) {
	h := newTestHub()
	if err := h.Ingest(telemetry.Record{}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Ingest() = %v, want ErrInvalidRecord", err)
	}
}

func TestIngestReplacesLastKnown(t *testing.T) {
	h := newTestHub()
	first := record("uav-1")
	second := record("uav-1")
	second.BatteryPct = 42

	if err := h.Ingest(first); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}
	if err := h.Ingest(second); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}

	nodes := h.Nodes()
	if len(nodes) != 1 {
		t.Fatalf("len(nodes) = %d, want 1", len(nodes))
	}
	if nodes[0].BatteryPct != 42 {
		t.Errorf("battery = %f, want newest record retained", nodes[0].BatteryPct)
	}
}

func TestBroadcastPrunesFailedSubscriber(t *testing.T) {
	h := newTestHub()
	good1 := &fakeConn{}
	bad := &fakeConn{fail: true}
	good2 := &fakeConn{}

	h.AddTelemetrySubscriber(good1)
	h.AddTelemetrySubscriber(good2)
	h.mu.Lock()
	h.telemSubs[bad] = "bad"
	h.mu.Unlock()

	if err := h.Ingest(record("uav-1")); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}

	// good subscribers got snapshot + mission on join plus the record.
	if len(good1.sent) != 3 || len(good2.sent) != 3 {
		t.Errorf("deliveries = %d/%d, want 3 each", len(good1.sent), len(good2.sent))
	}
	if !bad.closed {
		t.Errorf("failed subscriber not closed")
	}
	if got := h.Stats().TelemetrySubs; got != 2 {
		t.Errorf("subscribers after prune = %d, want 2", got)
	}

	// Next broadcast reaches only survivors.
	if err := h.Ingest(record("uav-2")); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}
	if len(good1.sent) != 4 {
		t.Errorf("deliveries after second ingest = %d, want 4", len(good1.sent))
	}
}

func TestSubscriberGetsSnapshotAndMission(t *testing.T) {
	h := newTestHub()
	if err := h.Ingest(record("uav-1")); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}

	conn := &fakeConn{}
	h.AddTelemetrySubscriber(conn)

	if len(conn.sent) != 2 {
		t.Fatalf("initial pushes = %d, want snapshot + mission", len(conn.sent))
	}
	snap, ok := conn.sent[0].(map[string]interface{})
	if !ok || snap["type"] != "snapshot" {
		t.Errorf("first push = %v, want snapshot", conn.sent[0])
	}
	nodes, ok := snap["nodes"].([]telemetry.Record)
	if !ok || len(nodes) != 1 {
		t.Errorf("snapshot nodes = %v, want the ingested record", snap["nodes"])
	}
	mu, ok := conn.sent[1].(map[string]interface{})
	if !ok || mu["type"] != "mission_update" {
		t.Errorf("second push = %v, want mission_update", conn.sent[1])
	}
}

func TestSetMissionAssignsIDAndTimestamps(t *testing.T) {
	h := newTestHub()
	target := &mission.Point{X: 100, Y: 0, RadiusM: 10}
	m, err := h.SetMission(mission.Patch{Target: target})
	if err != nil {
		t.Fatalf("SetMission() failed: %v", err)
	}
	if m.ID == "" {
		t.Errorf("mission id not assigned")
	}
	if m.CreatedTS == "" || m.UpdatedTS == "" {
		t.Errorf("timestamps not set: created=%q updated=%q", m.CreatedTS, m.UpdatedTS)
	}
	if m.UpdatedTS < m.CreatedTS {
		t.Errorf("updated_ts %q precedes created_ts %q", m.UpdatedTS, m.CreatedTS)
	}

	// A later update must preserve created_ts and the assigned id.
	m2, err := h.SetMission(mission.Patch{Target: &mission.Point{X: 200, Y: 0, RadiusM: 10}})
	if err != nil {
		t.Fatalf("SetMission() failed: %v", err)
	}
	if m2.ID != m.ID {
		t.Errorf("id changed on update: %q -> %q", m.ID, m2.ID)
	}
	if m2.CreatedTS != m.CreatedTS {
		t.Errorf("created_ts changed on update: %q -> %q", m.CreatedTS, m2.CreatedTS)
	}
}

func TestSetMissionValidationLeavesStateUntouched(t *testing.T) {
	h := newTestHub()
	if _, err := h.SetMission(mission.Patch{Target: &mission.Point{X: 1, Y: 1, RadiusM: 5}}); err != nil {
		t.Fatalf("setup SetMission() failed: %v", err)
	}
	before := h.Mission()

	bad := mission.Patch{BatteryPolicy: &mission.BatteryPolicy{RTBBelowPct: 80, ResumeAbovePct: 20}}
	if _, err := h.SetMission(bad); err == nil {
		t.Fatalf("SetMission() accepted invalid battery policy")
	}

	after := h.Mission()
	if after.UpdatedTS != before.UpdatedTS || after.BatteryPolicy != before.BatteryPolicy {
		t.Errorf("stored mission mutated by rejected update")
	}
}

func TestSetMissionBroadcastsUpdate(t *testing.T) {
	h := newTestHub()
	conn := &fakeConn{}
	h.AddTelemetrySubscriber(conn)
	joined := len(conn.sent)

	if _, err := h.SetMission(mission.Patch{Target: &mission.Point{X: 5, Y: 5, RadiusM: 5}}); err != nil {
		t.Fatalf("SetMission() failed: %v", err)
	}
	if len(conn.sent) != joined+1 {
		t.Fatalf("no mission_update broadcast")
	}
	msg := conn.sent[len(conn.sent)-1].(map[string]interface{})
	if msg["type"] != "mission_update" {
		t.Errorf("broadcast type = %v, want mission_update", msg["type"])
	}
}

func TestClearMissionPreservesPolicy(t *testing.T) {
	h := newTestHub()
	policy := &mission.BatteryPolicy{RTBBelowPct: 30, ResumeAbovePct: 70}
	if _, err := h.SetMission(mission.Patch{
		Target:        &mission.Point{X: 5, Y: 5, RadiusM: 5},
		BatteryPolicy: policy,
	}); err != nil {
		t.Fatalf("setup SetMission() failed: %v", err)
	}

	cleared := h.ClearMission()
	if cleared.Available() {
		t.Errorf("cleared mission still available")
	}
	if cleared.Target != nil || len(cleared.StagingPoints) != 0 || len(cleared.Waypoints) != 0 {
		t.Errorf("cleared mission retains geometry: %+v", cleared)
	}
	if cleared.BatteryPolicy != *policy {
		t.Errorf("battery policy = %+v, want preserved %+v", cleared.BatteryPolicy, policy)
	}
}

func TestDispatchCommandFiltersByTarget(t *testing.T) {
	h := newTestHub()
	c1 := &fakeConn{}
	c2 := &fakeConn{}
	if err := h.AddCommandConn(c1, "uav-1"); err != nil {
		t.Fatalf("AddCommandConn() failed: %v", err)
	}
	if err := h.AddCommandConn(c2, "uav-2"); err != nil {
		t.Fatalf("AddCommandConn() failed: %v", err)
	}

	n, err := h.DispatchCommand("uav-1", "HOLD", nil)
	if err != nil {
		t.Fatalf("DispatchCommand() failed: %v", err)
	}
	if n != 1 || len(c1.sent) != 1 || len(c2.sent) != 0 {
		t.Errorf("targeted dispatch reached %d conns (c1=%d c2=%d), want only uav-1",
			n, len(c1.sent), len(c2.sent))
	}

	n, err = h.DispatchCommand("all", "RESUME", nil)
	if err != nil {
		t.Fatalf("DispatchCommand() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("broadcast dispatch delivered %d, want 2", n)
	}

	msg := c1.sent[0].(map[string]interface{})
	if msg["command"] != "HOLD" || msg["target"] != "uav-1" {
		t.Errorf("command event = %v", msg)
	}
	if _, ok := msg["params"].(map[string]interface{}); !ok {
		t.Errorf("nil params not normalized to empty object")
	}
}

func TestDispatchCommandValidation(t *testing.T) {
	h := newTestHub()
	if _, err := h.DispatchCommand("ground-station", "HOLD", nil); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("bad target error = %v, want ErrInvalidTarget", err)
	}
	if _, err := h.DispatchCommand("all", "DANCE", nil); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("bad command error = %v, want ErrInvalidCommand", err)
	}
}

func TestDispatchCommandToNobody(t *testing.T) {
	h := newTestHub()
	n, err := h.DispatchCommand("uav-9", "RTB", nil)
	if err != nil {
		t.Fatalf("DispatchCommand() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}
}

func TestDispatchPrunesDeadCommandConn(t *testing.T) {
	h := newTestHub()
	dead := &fakeConn{fail: true}
	live := &fakeConn{}
	if err := h.AddCommandConn(dead, "uav-1"); err != nil {
		t.Fatalf("AddCommandConn() failed: %v", err)
	}
	if err := h.AddCommandConn(live, "uav-2"); err != nil {
		t.Fatalf("AddCommandConn() failed: %v", err)
	}

	n, err := h.DispatchCommand("all", "HOLD", nil)
	if err != nil {
		t.Fatalf("DispatchCommand() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if got := h.Stats().CommandConns; got != 1 {
		t.Errorf("command conns after prune = %d, want 1", got)
	}
	if !dead.closed {
		t.Errorf("dead conn not closed")
	}
}

func TestAddCommandConnRequiresNodeID(t *testing.T) {
	h := newTestHub()
	if err := h.AddCommandConn(&fakeConn{}, ""); !errors.Is(err, ErrMissingNodeID) {
		t.Errorf("AddCommandConn() = %v, want ErrMissingNodeID", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	h := newTestHub()
	conn := &fakeConn{}
	h.AddTelemetrySubscriber(conn)
	h.Remove(conn)
	h.Remove(conn)
	if got := h.Stats().TelemetrySubs; got != 0 {
		t.Errorf("subscribers = %d, want 0", got)
	}
}

func TestValidTarget(t *testing.T) {
	cases := []struct {
		target string
		want   bool
	}{
		{"all", true},
		{"uav-7", true},
		{"rover-1", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidTarget(tc.target); got != tc.want {
			t.Errorf("ValidTarget(%q) = %v, want %v", tc.target, got, tc.want)
		}
	}
}
