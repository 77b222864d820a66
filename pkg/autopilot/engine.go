package autopilot

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/falconmesh/falconmesh/pkg/kinematics"
	"github.com/falconmesh/falconmesh/pkg/mission"
	"github.com/falconmesh/falconmesh/pkg/telemetry"
)

// State is a flight state of the autopilot state machine.
type State string

const (
	StateIdle          State = "IDLE"
	StateEnrouteStage  State = "ENROUTE_STAGE"
	StateHolding       State = "HOLDING"
	StateEnrouteTarget State = "ENROUTE_TARGET"
	StateOnTarget      State = "ON_TARGET"
	StateRTB           State = "RTB"
	StateLanding       State = "LANDING"
	StateCharging      State = "CHARGING"
)

// Override is an operator-issued manual directive. It supersedes the
// state machine until a RESUME clears it.
type Override string

const (
	OverrideNone   Override = ""
	OverrideHold   Override = "HOLD"
	OverrideRTB    Override = "RTB"
	OverrideFormUp Override = "FORM_UP"
)

// Motion and energy constants.
const (
	DefaultEnrouteSpeed = 16.0 // m/s, staging legs without a configured speed
	RTBSpeed            = 18.0 // m/s
	FormUpSpeed         = 12.0 // m/s
	FormUpRadius        = 35.0 // m, ring around base for FORM_UP
	IdleDriftSpeed      = 6.0  // m/s, drift toward base while idle

	CruiseAltitude = 60.0 // m
	AltitudeFloor  = 1.0  // m, below this a flight state restores cruise
	DescentRate    = 5.0  // m/s while landing
	ChargeRate     = 2.0  // battery %/s while charging

	BaseDrainRate   = 0.02  // battery %/s at zero speed
	SpeedDrainCoeff = 0.001 // extra %/s per m/s of speed

	DefaultBaseRadius = 20.0 // m, when no base is defined (origin fallback)
)

// Engine runs one node's autopilot. It owns the node's kinematic state
// and mission progress. Tick is called from the agent's tick loop while
// SetMission and Command arrive from the poll and command-listener loops,
// so all state lives behind one mutex.
type Engine struct {
	mu sync.Mutex

	nodeID string
	role   string

	x          float64
	y          float64
	heading    float64
	altitude   float64
	batteryPct float64

	state        State
	stageIndex   int
	holdingUntil time.Time
	override     Override

	mission     *mission.Mission
	lastID      string
	lastUpdated string

	rng *rand.Rand
}

// New creates an engine for the given node, spawned at a random position
// near the origin with a healthy battery, the way fresh fleet members
// report in.
func New(nodeID, role string, seed int64) *Engine {
	rng := rand.New(rand.NewSource(seed))
	return &Engine{
		nodeID:     nodeID,
		role:       role,
		x:          rng.Float64()*120 - 60,
		y:          rng.Float64()*120 - 60,
		heading:    rng.Float64() * 360,
		altitude:   CruiseAltitude,
		batteryPct: 60 + rng.Float64()*35,
		state:      StateIdle,
		rng:        rng,
	}
}

// State returns the current flight state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// StageIndex returns the current staging progress.
func (e *Engine) StageIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stageIndex
}

// Battery returns the current battery percentage.
func (e *Engine) Battery() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batteryPct
}

// SetBattery overrides the battery level, clamped to [0, 100].
func (e *Engine) SetBattery(pct float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batteryPct = kinematics.Clamp(pct, 0, 100)
}

// SetMission installs a new mission snapshot. Mission progress
// (stage index, hold deadline) resets only when the mission identity —
// the (id, updated_ts) pair — differs from the last observed one; a
// value-equal re-poll leaves progress untouched.
func (e *Engine) SetMission(m *mission.Mission) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var id, updated string
	if m != nil {
		id = m.ID
		updated = m.UpdatedTS
	}
	if id != e.lastID || updated != e.lastUpdated {
		e.stageIndex = 0
		e.holdingUntil = time.Time{}
		e.lastID = id
		e.lastUpdated = updated
	}
	e.mission = m
}

// Command applies a manual override. HOLD, RTB and FORM_UP set the
// override; RESUME clears it and the state machine continues from
// wherever it left off. Unknown commands are rejected.
func (e *Engine) Command(cmd string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch cmd {
	case "HOLD":
		e.override = OverrideHold
	case "RTB":
		e.override = OverrideRTB
	case "FORM_UP":
		e.override = OverrideFormUp
	case "RESUME":
		e.override = OverrideNone
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// Override returns the active manual override, if any.
func (e *Engine) Override() Override {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.override
}

// Tick advances the node by dt seconds and emits a telemetry record
// reflecting post-tick state.
func (e *Engine) Tick(now time.Time, dt float64) telemetry.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.mission
	if m != nil && !m.Available() {
		m = nil
	}

	var speed float64
	var goal string
	var goalDist float64

	if e.override != OverrideNone {
		speed, goal, goalDist = e.tickOverride(m, dt)
	} else {
		if m != nil && e.batteryPct <= m.BatteryPolicy.RTBBelowPct &&
			e.state != StateRTB && e.state != StateLanding && e.state != StateCharging {
			e.state = StateRTB
		}
		speed, goal, goalDist = e.tickMission(m, now, dt)
	}

	// Battery integrates every tick except while charging or frozen by a
	// HOLD override.
	if e.state != StateCharging && e.override != OverrideHold {
		e.batteryPct = kinematics.Clamp(
			e.batteryPct-(BaseDrainRate+SpeedDrainCoeff*speed)*dt, 0, 100)
	}

	// Guard against stale zero altitude after a state re-entry that
	// bypassed the landing path.
	if e.flightImplying() && e.altitude < AltitudeFloor {
		e.altitude = CruiseAltitude
	}

	bx, by, _ := e.basePoint(m)

	rec := telemetry.Record{
		TS:         now.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z"),
		NodeID:     e.nodeID,
		Role:       e.role,
		State:      string(e.state),
		Pos:        telemetry.Position{X: round2(e.x), Y: round2(e.y), Alt: round2(e.altitude)},
		Vel:        telemetry.Velocity{SpeedMps: round1(speed), HeadingDeg: round1(e.heading)},
		BatteryPct: round1(e.batteryPct),
		Nav: telemetry.Nav{
			ActiveGoal:  goal,
			StageIndex:  e.stageIndex,
			DistToGoalM: round1(goalDist),
			DistToBaseM: round1(kinematics.Distance(e.x, e.y, bx, by)),
		},
	}
	if m != nil {
		rec.MissionID = m.ID
	}
	return rec
}

// tickOverride integrates motion under a manual override. The state
// machine does not advance; position and battery still do.
func (e *Engine) tickOverride(m *mission.Mission, dt float64) (speed float64, goal string, goalDist float64) {
	bx, by, br := e.basePoint(m)

	switch e.override {
	case OverrideHold:
		return 0, string(OverrideHold), 0

	case OverrideRTB:
		dist := kinematics.Distance(e.x, e.y, bx, by)
		if dist > br {
			e.heading = kinematics.Bearing(e.x, e.y, bx, by)
			e.x, e.y, _ = kinematics.Step(e.x, e.y, bx, by, RTBSpeed, dt, br)
			return RTBSpeed, string(OverrideRTB), dist
		}
		return 0, string(OverrideRTB), dist

	case OverrideFormUp:
		// Radial convergence toward a ring around base, with forward
		// motion along a slowly wandering heading.
		dx := e.x - bx
		dy := e.y - by
		r := kinematics.Distance(e.x, e.y, bx, by)
		if r > 1e-6 {
			dr := (FormUpRadius - r) * 0.2 * dt
			e.x += dx / r * dr
			e.y += dy / r * dr
		}
		e.heading += e.rng.Float64()*16 - 8
		e.heading = normalizeHeading(e.heading)
		e.advance(FormUpSpeed, dt)
		ringDist := r - FormUpRadius
		if ringDist < 0 {
			ringDist = -ringDist
		}
		return FormUpSpeed, string(OverrideFormUp), ringDist
	}
	return 0, "", 0
}

// tickMission advances the flight state machine by one step.
func (e *Engine) tickMission(m *mission.Mission, now time.Time, dt float64) (speed float64, goal string, goalDist float64) {
	bx, by, br := e.basePoint(m)

	switch e.state {
	case StateIdle:
		if m != nil && m.Base != nil && m.Target != nil {
			e.enroute(m)
			return 0, e.enrouteGoal(m), 0
		}
		if m != nil && m.Base != nil {
			dist := kinematics.Distance(e.x, e.y, bx, by)
			if dist > br {
				e.heading = kinematics.Bearing(e.x, e.y, bx, by)
				e.x, e.y, _ = kinematics.Step(e.x, e.y, bx, by, IdleDriftSpeed, dt, br)
				return IdleDriftSpeed, "BASE", dist
			}
			return 0, "BASE", dist
		}
		return 0, "", 0

	case StateEnrouteStage:
		if m == nil {
			e.state = StateIdle
			return 0, "", 0
		}
		if e.stageIndex >= len(m.StagingPoints) {
			e.state = StateEnrouteTarget
			return 0, "TARGET", 0
		}
		sp := m.StagingPoints[e.stageIndex]
		spd := sp.SpeedMps
		if spd <= 0 {
			spd = DefaultEnrouteSpeed
		}
		dist := kinematics.Distance(e.x, e.y, sp.X, sp.Y)
		e.heading = kinematics.Bearing(e.x, e.y, sp.X, sp.Y)
		var arrived bool
		e.x, e.y, arrived = kinematics.Step(e.x, e.y, sp.X, sp.Y, spd, dt, sp.RadiusM)
		if arrived {
			if sp.HoldS > 0 {
				e.state = StateHolding
				e.holdingUntil = now.Add(time.Duration(sp.HoldS * float64(time.Second)))
			} else {
				e.stageIndex++
				if e.stageIndex >= len(m.StagingPoints) {
					e.state = StateEnrouteTarget
				}
			}
		}
		return spd, fmt.Sprintf("STAGE[%d]", e.stageIndex), dist

	case StateHolding:
		if m == nil {
			e.state = StateIdle
			return 0, "", 0
		}
		if !now.Before(e.holdingUntil) {
			e.stageIndex++
			e.holdingUntil = time.Time{}
			if e.stageIndex < len(m.StagingPoints) {
				e.state = StateEnrouteStage
			} else {
				e.state = StateEnrouteTarget
			}
		}
		return 0, fmt.Sprintf("HOLD[%d]", e.stageIndex), 0

	case StateEnrouteTarget:
		if m == nil || m.Target == nil {
			e.state = StateIdle
			return 0, "", 0
		}
		tgt := m.Target
		spd := DefaultEnrouteSpeed
		if len(m.Waypoints) > 0 && m.Waypoints[0].SpeedMps > 0 {
			spd = m.Waypoints[0].SpeedMps
		}
		dist := kinematics.Distance(e.x, e.y, tgt.X, tgt.Y)
		e.heading = kinematics.Bearing(e.x, e.y, tgt.X, tgt.Y)
		var arrived bool
		e.x, e.y, arrived = kinematics.Step(e.x, e.y, tgt.X, tgt.Y, spd, dt, tgt.RadiusM)
		if arrived {
			e.state = StateOnTarget
		}
		return spd, "TARGET", dist

	case StateOnTarget:
		// Hold station until an override, a mission change, or the
		// battery threshold intervenes.
		dist := 0.0
		if m != nil && m.Target != nil {
			dist = kinematics.Distance(e.x, e.y, m.Target.X, m.Target.Y)
		}
		return 0, "ON_TARGET", dist

	case StateRTB:
		dist := kinematics.Distance(e.x, e.y, bx, by)
		e.heading = kinematics.Bearing(e.x, e.y, bx, by)
		var arrived bool
		e.x, e.y, arrived = kinematics.Step(e.x, e.y, bx, by, RTBSpeed, dt, br)
		if arrived {
			e.state = StateLanding
		}
		return RTBSpeed, "RTB", dist

	case StateLanding:
		e.altitude -= DescentRate * dt
		if e.altitude <= 0.5 {
			e.altitude = 0
			e.state = StateCharging
		}
		return 0, "LANDING", e.altitude

	case StateCharging:
		e.batteryPct = kinematics.Clamp(e.batteryPct+ChargeRate*dt, 0, 100)
		if m != nil && e.batteryPct >= m.BatteryPolicy.ResumeAbovePct &&
			m.Base != nil && m.Target != nil {
			e.altitude = CruiseAltitude
			e.enroute(m)
		}
		return 0, "CHARGING", 0
	}
	return 0, "", 0
}

// enroute picks the movement state for resuming the mission. The stage
// index is deliberately left alone: only a mission identity change
// resets progress.
func (e *Engine) enroute(m *mission.Mission) {
	if e.stageIndex < len(m.StagingPoints) {
		e.state = StateEnrouteStage
	} else {
		e.state = StateEnrouteTarget
	}
}

func (e *Engine) enrouteGoal(m *mission.Mission) string {
	if e.stageIndex < len(m.StagingPoints) {
		return fmt.Sprintf("STAGE[%d]", e.stageIndex)
	}
	return "TARGET"
}

// basePoint resolves the base location, falling back to the origin with a
// default radius when the mission has none.
func (e *Engine) basePoint(m *mission.Mission) (x, y, radius float64) {
	if m != nil && m.Base != nil {
		return m.Base.X, m.Base.Y, m.Base.RadiusM
	}
	return 0, 0, DefaultBaseRadius
}

// advance moves along the current heading.
func (e *Engine) advance(speed, dt float64) {
	rad := e.heading * math.Pi / 180
	e.x += speed * dt * math.Cos(rad)
	e.y += speed * dt * math.Sin(rad)
}

func (e *Engine) flightImplying() bool {
	switch e.state {
	case StateLanding, StateCharging:
		return false
	}
	return true
}

func normalizeHeading(h float64) float64 {
	for h < 0 {
		h += 360
	}
	for h >= 360 {
		h -= 360
	}
	return h
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
