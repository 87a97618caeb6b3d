package robot

import "math"

// Position is the robot's 2D pose. Rotation is in degrees, normalized to [0, 360).
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// Limits is the rectangular area the robot may occupy.
type Limits struct {
	XMin float64 `json:"xMin"`
	XMax float64 `json:"xMax"`
	YMin float64 `json:"yMin"`
	YMax float64 `json:"yMax"`
}

// DefaultLimits returns the ±100 square around the origin.
func DefaultLimits() Limits {
	return Limits{XMin: -100, XMax: 100, YMin: -100, YMax: 100}
}

// Clamp returns p with x and y truncated to the limits. Rotation is untouched.
func (l Limits) Clamp(p Position) Position {
	return Position{
		X:        clamp(p.X, l.XMin, l.XMax),
		Y:        clamp(p.Y, l.YMin, l.YMax),
		Rotation: p.Rotation,
	}
}

// Contains reports whether p lies inside the limits.
func (l Limits) Contains(p Position) bool {
	return p.X >= l.XMin && p.X <= l.XMax && p.Y >= l.YMin && p.Y <= l.YMax
}

// NormalizeRotation maps any angle in degrees into [0, 360).
func NormalizeRotation(deg float64) float64 {
	r := math.Mod(math.Mod(deg, 360)+360, 360)
	if r >= 360 {
		return 0
	}
	return r
}

// displace moves p by distance along the heading-relative direction d.
// Forward follows (sin θ, cos θ); right follows (cos θ, -sin θ).
func displace(p Position, d Direction, distance float64) Position {
	sin, cos := math.Sincos(p.Rotation * math.Pi / 180)
	switch d {
	case DirectionForward:
		p.X += distance * sin
		p.Y += distance * cos
	case DirectionBackward:
		p.X -= distance * sin
		p.Y -= distance * cos
	case DirectionRight:
		p.X += distance * cos
		p.Y -= distance * sin
	case DirectionLeft:
		p.X -= distance * cos
		p.Y += distance * sin
	}
	return p
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
