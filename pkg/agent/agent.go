package agent

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/falconmesh/falconmesh/pkg/autopilot"
	"github.com/falconmesh/falconmesh/pkg/client"
	"github.com/falconmesh/falconmesh/pkg/config"
	"github.com/falconmesh/falconmesh/pkg/logger"
)

const (
	requestTimeout    = 2 * time.Second
	reconnectInterval = 2 * time.Second
	keepaliveInterval = 10 * time.Second
)

// Agent runs one node: the autopilot engine plus the three hub-facing
// loops (telemetry ticks, mission polling, command listening). Any
// transport failure is logged and the loop carries on; the node keeps
// flying on its last-known mission while the hub is unreachable.
type Agent struct {
	nodeID string
	engine *autopilot.Engine
	hub    *client.Hub
	cfg    config.AgentConfig
	log    logger.Logger
}

// New creates an agent for one node
func New(nodeID string, engine *autopilot.Engine, hub *client.Hub, cfg config.AgentConfig, log logger.Logger) *Agent {
	return &Agent{
		nodeID: nodeID,
		engine: engine,
		hub:    hub,
		cfg:    cfg,
		log:    log.WithPrefix(nodeID),
	}
}

// Run starts the agent's loops and blocks until ctx is canceled.
func (a *Agent) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		a.tickLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		a.pollLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		a.commandLoop(ctx)
	}()

	wg.Wait()
	a.log.Info("agent stopped")
}

// tickLoop advances the autopilot and reports telemetry once per tick.
// dt is wall-clock time since the previous tick, so a stalled process
// catches up in one large step rather than drifting.
func (a *Agent) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			rec := a.engine.Tick(now, dt)

			reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			err := a.hub.Ingest(reqCtx, rec)
			cancel()
			if err != nil {
				a.log.Debugf("telemetry ingest failed: %v", err)
			}
		}
	}
}

// pollLoop refreshes the mission snapshot. The engine decides whether
// the snapshot is actually new.
func (a *Agent) pollLoop(ctx context.Context) {
	a.pollOnce(ctx)

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pollOnce(ctx)
		}
	}
}

func (a *Agent) pollOnce(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	m, err := a.hub.Mission(reqCtx)
	if err != nil {
		a.log.Debugf("mission poll failed: %v", err)
		return
	}
	a.engine.SetMission(m)
}

// commandLoop keeps a command channel open to the hub, reconnecting
// every 2s while it is down.
func (a *Agent) commandLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		ws, err := a.hub.DialCommands(ctx, a.nodeID)
		if err != nil {
			a.log.Debugf("command channel dial failed: %v", err)
			if !sleepCtx(ctx, reconnectInterval) {
				return
			}
			continue
		}

		a.log.Debug("command channel connected")
		a.readCommands(ctx, ws)

		if !sleepCtx(ctx, reconnectInterval) {
			return
		}
	}
}

// commandEvent is the wire shape of a hub command push
type commandEvent struct {
	Type    string                 `json:"type"`
	Target  string                 `json:"target"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params"`
}

// readCommands consumes the command channel until it breaks. A
// keepalive ping goes out every 10s so idle connections survive
// intermediaries.
func (a *Agent) readCommands(ctx context.Context, ws *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(keepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = ws.Close()
				return
			case <-ticker.C:
				deadline := time.Now().Add(requestTimeout)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		var ev commandEvent
		if err := ws.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil {
				a.log.Debugf("command channel closed: %v", err)
			}
			_ = ws.Close()
			return
		}

		if ev.Type != "command" {
			continue
		}
		if ev.Target != "all" && ev.Target != a.nodeID {
			continue
		}

		a.log.Infof("command received: %s", ev.Command)
		if err := a.engine.Command(ev.Command); err != nil {
			a.log.Warnf("command %s rejected: %v", ev.Command, err)
		}
	}
}

// sleepCtx waits for d unless ctx finishes first. It reports whether
// the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
