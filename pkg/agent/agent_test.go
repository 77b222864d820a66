package agent

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/falconmesh/falconmesh/pkg/autopilot"
	"github.com/falconmesh/falconmesh/pkg/client"
	"github.com/falconmesh/falconmesh/pkg/config"
	"github.com/falconmesh/falconmesh/pkg/hub"
	"github.com/falconmesh/falconmesh/pkg/logger"
	"github.com/falconmesh/falconmesh/pkg/mission"
)

type agentHarness struct {
	hub    *hub.Hub
	engine *autopilot.Engine
}

func startAgent(t *testing.T, nodeID string) *agentHarness {
	t.Helper()

	log := logger.NewWithConfig(logger.Config{
		Level:   logger.FatalLevel,
		Writer:  io.Discard,
		NoColor: true,
	})

	h := hub.New(nil, log)
	srv := httptest.NewServer(hub.NewServer(h, log).Handler())
	t.Cleanup(srv.Close)

	c, err := client.NewClient(client.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	engine := autopilot.New(nodeID, "scout", 1)
	cfg := config.AgentConfig{
		HubURL:       srv.URL,
		TickInterval: 20 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a := New(nodeID, engine, c, cfg, log)
	go func() {
		a.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &agentHarness{hub: h, engine: engine}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAgentReportsTelemetry(t *testing.T) {
	ah := startAgent(t, "uav-1")
	waitFor(t, "telemetry to arrive", func() bool {
		return ah.hub.Stats().Nodes == 1
	})

	nodes := ah.hub.Nodes()
	if nodes[0].NodeID != "uav-1" {
		t.Errorf("node id = %q, want uav-1", nodes[0].NodeID)
	}
}

func TestAgentPicksUpMission(t *testing.T) {
	ah := startAgent(t, "uav-1")

	if _, err := ah.hub.SetMission(mission.Patch{
		Base:   &mission.Point{X: 0, Y: 0, RadiusM: 20},
		Target: &mission.Point{X: 5000, Y: 0, RadiusM: 15},
	}); err != nil {
		t.Fatalf("SetMission() failed: %v", err)
	}

	waitFor(t, "engine to leave IDLE", func() bool {
		return ah.engine.State() == autopilot.StateEnrouteTarget
	})
}

func TestAgentObeysCommands(t *testing.T) {
	ah := startAgent(t, "uav-1")
	waitFor(t, "command channel", func() bool {
		return ah.hub.Stats().CommandConns == 1
	})

	if _, err := ah.hub.DispatchCommand("all", "HOLD", nil); err != nil {
		t.Fatalf("DispatchCommand() failed: %v", err)
	}
	waitFor(t, "HOLD override", func() bool {
		return ah.engine.Override() == autopilot.OverrideHold
	})

	// A command addressed to another node is ignored.
	if _, err := ah.hub.DispatchCommand("uav-2", "RESUME", nil); err != nil {
		t.Fatalf("DispatchCommand() failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if ah.engine.Override() != autopilot.OverrideHold {
		t.Errorf("override cleared by a command for a different node")
	}

	if _, err := ah.hub.DispatchCommand("uav-1", "RESUME", nil); err != nil {
		t.Fatalf("DispatchCommand() failed: %v", err)
	}
	waitFor(t, "override cleared", func() bool {
		return ah.engine.Override() == autopilot.OverrideNone
	})
}
