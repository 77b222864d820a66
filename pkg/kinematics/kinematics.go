package kinematics

import "math"

// Distance returns the planar distance in meters between two points.
func Distance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}

// Bearing returns the heading in degrees from (x1,y1) toward (x2,y2),
// normalized to [0, 360).
func Bearing(x1, y1, x2, y2 float64) float64 {
	deg := math.Atan2(y2-y1, x2-x1) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Step advances a point toward a goal at the given speed for dt seconds.
// Movement is bounded: the point never overshoots the goal. It returns the
// new position and whether the point is within radius of the goal after
// the step.
func Step(x, y, goalX, goalY, speed, dt, radius float64) (nx, ny float64, arrived bool) {
	dist := Distance(x, y, goalX, goalY)
	if dist <= radius {
		return x, y, true
	}

	travel := speed * dt
	if travel >= dist {
		return goalX, goalY, true
	}

	nx = x + (goalX-x)/dist*travel
	ny = y + (goalY-y)/dist*travel
	return nx, ny, Distance(nx, ny, goalX, goalY) <= radius
}

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
