package telemetry

// Position is a planar position with altitude in meters.
type Position struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Alt float64 `json:"alt"`
}

// Velocity is speed in m/s plus heading in degrees.
type Velocity struct {
	SpeedMps   float64 `json:"speed_mps"`
	HeadingDeg float64 `json:"heading_deg"`
}

// Nav describes what the autopilot is currently steering toward.
type Nav struct {
	ActiveGoal  string  `json:"active_goal,omitempty"`
	StageIndex  int     `json:"stage_index"`
	DistToGoalM float64 `json:"dist_to_goal_m"`
	DistToBaseM float64 `json:"dist_to_base_m"`
}

// Record is one telemetry report, produced exactly once per autopilot
// tick. Records are immutable once emitted; the hub keeps only the most
// recent record per node.
type Record struct {
	TS         string   `json:"ts"`
	NodeID     string   `json:"node_id"`
	Role       string   `json:"role,omitempty"`
	State      string   `json:"state"`
	Pos        Position `json:"pos"`
	Vel        Velocity `json:"vel"`
	BatteryPct float64  `json:"battery_pct"`
	Nav        Nav      `json:"nav"`
	MissionID  string   `json:"mission_id,omitempty"`
}
