package mission

import (
	"time"
)

// Default battery policy bounds, used when a document omits them.
const (
	DefaultRTBBelowPct    = 25.0
	DefaultResumeAbovePct = 60.0
)

// Waypoint is one leg of the mission route.
type Waypoint struct {
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	AltM     float64 `json:"alt_m" yaml:"alt_m"`
	SpeedMps float64 `json:"speed_mps" yaml:"speed_mps"`
}

// Point is a location with an arrival radius, used for base and target.
type Point struct {
	X       float64 `json:"x" yaml:"x"`
	Y       float64 `json:"y" yaml:"y"`
	RadiusM float64 `json:"radius_m" yaml:"radius_m"`
}

// StagingPoint is an intermediate rally location. HoldS > 0 makes nodes
// loiter there before continuing; SpeedMps of 0 means the default
// enroute speed.
type StagingPoint struct {
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	RadiusM  float64 `json:"radius_m" yaml:"radius_m"`
	HoldS    float64 `json:"hold_s,omitempty" yaml:"hold_s,omitempty"`
	SpeedMps float64 `json:"speed_mps,omitempty" yaml:"speed_mps,omitempty"`
}

// BatteryPolicy sets the thresholds for autonomous return-to-base and
// post-charge resumption. Invariant: 0 <= RTBBelowPct < ResumeAbovePct <= 100.
type BatteryPolicy struct {
	RTBBelowPct    float64 `json:"rtb_below_pct" yaml:"rtb_below_pct"`
	ResumeAbovePct float64 `json:"resume_above_pct" yaml:"resume_above_pct"`
}

// Mission is the declarative navigation goal set shared by the fleet.
// A version is identified by the (ID, UpdatedTS) pair.
type Mission struct {
	ID            string         `json:"id,omitempty" yaml:"id,omitempty"`
	CreatedTS     string         `json:"created_ts,omitempty" yaml:"created_ts,omitempty"`
	UpdatedTS     string         `json:"updated_ts,omitempty" yaml:"updated_ts,omitempty"`
	Waypoints     []Waypoint     `json:"waypoints" yaml:"waypoints"`
	Base          *Point         `json:"base,omitempty" yaml:"base,omitempty"`
	StagingPoints []StagingPoint `json:"staging_points" yaml:"staging_points"`
	Target        *Point         `json:"target,omitempty" yaml:"target,omitempty"`
	BatteryPolicy BatteryPolicy  `json:"battery_policy" yaml:"battery_policy"`
}

// Default returns an empty mission with the default battery policy.
func Default() *Mission {
	return &Mission{
		Waypoints:     []Waypoint{},
		StagingPoints: []StagingPoint{},
		BatteryPolicy: BatteryPolicy{
			RTBBelowPct:    DefaultRTBBelowPct,
			ResumeAbovePct: DefaultResumeAbovePct,
		},
	}
}

// Available reports whether the mission carries anything for an autopilot
// to act on. A document with no id, no base and no target is treated as
// absent.
func (m *Mission) Available() bool {
	if m == nil {
		return false
	}
	return m.ID != "" || m.Base != nil || m.Target != nil
}

// Clone returns a deep copy of the mission.
func (m *Mission) Clone() *Mission {
	if m == nil {
		return nil
	}
	out := *m
	out.Waypoints = append([]Waypoint(nil), m.Waypoints...)
	out.StagingPoints = append([]StagingPoint(nil), m.StagingPoints...)
	if m.Base != nil {
		b := *m.Base
		out.Base = &b
	}
	if m.Target != nil {
		tg := *m.Target
		out.Target = &tg
	}
	return &out
}

// Patch is a partial mission update. Nil fields retain the stored value;
// Waypoints and StagingPoints, when present, replace the stored lists
// entirely.
type Patch struct {
	ID            *string         `json:"id,omitempty" yaml:"id,omitempty"`
	Waypoints     *[]Waypoint     `json:"waypoints,omitempty" yaml:"waypoints,omitempty"`
	Base          *Point          `json:"base,omitempty" yaml:"base,omitempty"`
	StagingPoints *[]StagingPoint `json:"staging_points,omitempty" yaml:"staging_points,omitempty"`
	Target        *Point          `json:"target,omitempty" yaml:"target,omitempty"`
	BatteryPolicy *BatteryPolicy  `json:"battery_policy,omitempty" yaml:"battery_policy,omitempty"`
}

// Apply merges the patch into a copy of m and returns it. Timestamps and
// id assignment are the caller's concern.
func (p *Patch) Apply(m *Mission) *Mission {
	out := m.Clone()
	if out == nil {
		out = Default()
	}
	if p.ID != nil {
		out.ID = *p.ID
	}
	if p.Waypoints != nil {
		out.Waypoints = append([]Waypoint(nil), (*p.Waypoints)...)
	}
	if p.Base != nil {
		b := *p.Base
		out.Base = &b
	}
	if p.StagingPoints != nil {
		out.StagingPoints = append([]StagingPoint(nil), (*p.StagingPoints)...)
	}
	if p.Target != nil {
		tg := *p.Target
		out.Target = &tg
	}
	if p.BatteryPolicy != nil {
		out.BatteryPolicy = *p.BatteryPolicy
	}
	return out
}

// Timestamp formats t the way mission documents carry time: UTC, second
// precision, trailing Z.
func Timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// DeriveID builds a mission id from a timestamp, used when a submitted
// document has none.
func DeriveID(t time.Time) string {
	return "m-" + t.UTC().Format("20060102T150405Z")
}
