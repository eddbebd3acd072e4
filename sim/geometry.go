package sim

import "math"

// Vec3 is a point or vector in the 3-D simulation volume, meters.
// Kept as a plain struct over stdlib math rather than a vendored
// geometry type: see DESIGN.md's stdlib-only justification.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v+w.
func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z} }

// Sub returns v-w.
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z} }

// Scale returns v*s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dist returns the Euclidean distance between v and w.
func (v Vec3) Dist(w Vec3) float64 {
	return v.Sub(w).Norm()
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Clamp confines v to the axis-aligned box [0,length]x[0,width]x[0,height],
// reflecting components that fall outside back into range. Used by
// GaussMarkov3D to keep drones inside the simulated map.
func (v Vec3) Clamp(length, width, height float64) Vec3 {
	clamp1 := func(x, max float64) float64 {
		if x < 0 {
			return -x
		}
		if x > max {
			return 2*max - x
		}
		return x
	}
	return Vec3{clamp1(v.X, length), clamp1(v.Y, width), clamp1(v.Z, height)}
}
