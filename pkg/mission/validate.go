package mission

import (
	"fmt"
	"math"
)

// ValidationError reports the first field that failed validation,
// qualified by its path within the document.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func invalid(path, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateWaypoints checks numeric completeness of a waypoint list.
func ValidateWaypoints(wps []Waypoint) *ValidationError {
	for i, wp := range wps {
		path := fmt.Sprintf("waypoints[%d]", i)
		if !finite(wp.X) || !finite(wp.Y) {
			return invalid(path, "x and y must be finite numbers")
		}
		if !finite(wp.AltM) || wp.AltM < 0 {
			return invalid(path+".alt_m", "must be a non-negative number")
		}
		if !finite(wp.SpeedMps) || wp.SpeedMps < 0 {
			return invalid(path+".speed_mps", "must be a non-negative number")
		}
	}
	return nil
}

// ValidatePoint checks a base or target point.
func ValidatePoint(path string, p *Point) *ValidationError {
	if p == nil {
		return nil
	}
	if !finite(p.X) || !finite(p.Y) {
		return invalid(path, "x and y must be finite numbers")
	}
	if !finite(p.RadiusM) || p.RadiusM <= 0 {
		return invalid(path+".radius_m", "must be a positive number")
	}
	return nil
}

// ValidateStagingPoints checks shape of the staging point list.
func ValidateStagingPoints(sps []StagingPoint) *ValidationError {
	for i, sp := range sps {
		path := fmt.Sprintf("staging_points[%d]", i)
		if !finite(sp.X) || !finite(sp.Y) {
			return invalid(path, "x and y must be finite numbers")
		}
		if !finite(sp.RadiusM) || sp.RadiusM <= 0 {
			return invalid(path+".radius_m", "must be a positive number")
		}
		if !finite(sp.HoldS) || sp.HoldS < 0 {
			return invalid(path+".hold_s", "must be a non-negative number")
		}
		if !finite(sp.SpeedMps) || sp.SpeedMps < 0 {
			return invalid(path+".speed_mps", "must be a non-negative number")
		}
	}
	return nil
}

// ValidateBatteryPolicy enforces 0 <= rtb_below_pct < resume_above_pct <= 100.
func ValidateBatteryPolicy(bp BatteryPolicy) *ValidationError {
	if !finite(bp.RTBBelowPct) || bp.RTBBelowPct < 0 || bp.RTBBelowPct > 100 {
		return invalid("battery_policy.rtb_below_pct", "must be within [0, 100]")
	}
	if !finite(bp.ResumeAbovePct) || bp.ResumeAbovePct < 0 || bp.ResumeAbovePct > 100 {
		return invalid("battery_policy.resume_above_pct", "must be within [0, 100]")
	}
	if bp.RTBBelowPct >= bp.ResumeAbovePct {
		return invalid("battery_policy", "rtb_below_pct must be below resume_above_pct")
	}
	return nil
}

// Validate checks every sub-structure of the mission and returns the
// first violation found.
func (m *Mission) Validate() *ValidationError {
	if err := ValidateWaypoints(m.Waypoints); err != nil {
		return err
	}
	if err := ValidatePoint("base", m.Base); err != nil {
		return err
	}
	if err := ValidateStagingPoints(m.StagingPoints); err != nil {
		return err
	}
	if err := ValidatePoint("target", m.Target); err != nil {
		return err
	}
	return ValidateBatteryPolicy(m.BatteryPolicy)
}
