package sim

import (
	"math"
	"math/rand"
)

// Mobility advances a Node's kinematic state by dt microseconds,
// returning its new position and velocity. Advance is called by the
// node's periodic mobility activity, never concurrently with anything
// else touching the Node (the scheduler's single-activity-at-a-time
// rule makes this safe without locking).
type Mobility interface {
	Advance(n *Node, dt Time) (pos, vel Vec3)
}

// EnergyModel converts a Node's current speed (m/s) into instantaneous
// power draw (watts).
type EnergyModel interface {
	Power(speed float64) float64
}

// GaussMarkov3D is the default Mobility: a mean-reverting random walk
// in direction, pitch and speed, confined to the map box by rebound at
// a configurable margin. Ported from
// original_source/mobility/gauss_markov_3d.py; STATIC_CASE is honored
// by the Simulator never invoking Advance when it is set, rather than
// a branch here.
type GaussMarkov3D struct {
	MapLength, MapWidth, MapHeight float64
	Alpha                          float64 // memory coefficient, 0 < alpha < 1
	BoundaryMarginXY               float64
	BoundaryMarginZ                float64
	DirectionUpdateInterval        Time

	rng *rand.Rand

	direction, pitch         float64
	directionMean, pitchMean float64
	velocityMean             float64
	sinceDirectionUpdate     Time
}

// NewGaussMarkov3D builds a GaussMarkov3D mobility model seeded
// deterministically from seed and the owning node's id, so repeated
// runs with the same Config reproduce identical trajectories.
func NewGaussMarkov3D(seed int64, nodeID NodeID, mapLength, mapWidth, mapHeight float64, initVel Vec3) *GaussMarkov3D {
	g := &GaussMarkov3D{
		MapLength:               mapLength,
		MapWidth:                mapWidth,
		MapHeight:               mapHeight,
		Alpha:                   0.85,
		BoundaryMarginXY:        50,
		BoundaryMarginZ:         10,
		DirectionUpdateInterval: 500000,
		rng:                     rand.New(rand.NewSource(seed + int64(nodeID)*7919)),
	}
	g.velocityMean = initVel.Norm()
	g.direction = math.Atan2(initVel.Y, initVel.X)
	g.directionMean = g.direction
	horiz := math.Hypot(initVel.X, initVel.Y)
	g.pitch = math.Atan2(initVel.Z, horiz)
	g.pitchMean = g.pitch
	return g
}

// Advance implements Mobility.
func (g *GaussMarkov3D) Advance(n *Node, dt Time) (Vec3, Vec3) {
	curSpeed := n.Velocity.Norm()
	next := n.Position.Add(n.Velocity.Scale(float64(dt) / 1e6))

	g.sinceDirectionUpdate += dt
	if g.sinceDirectionUpdate >= g.DirectionUpdateInterval {
		g.sinceDirectionUpdate = 0
		a1 := g.Alpha
		a2 := 1 - a1
		a3 := math.Sqrt(1 - a1*a1)

		nextSpeed := a1*curSpeed + a2*g.velocityMean + a3*g.rng.NormFloat64()
		nextDirection := a1*g.direction + a2*g.directionMean + a3*g.rng.NormFloat64()
		nextPitch := a1*g.pitch + a2*g.pitchMean + a3*0.1*g.rng.NormFloat64()

		if nextSpeed < 0 {
			nextSpeed = -nextSpeed
		}

		nextVel := Vec3{
			X: nextSpeed * math.Cos(nextDirection) * math.Cos(nextPitch),
			Y: nextSpeed * math.Sin(nextDirection) * math.Cos(nextPitch),
			Z: nextSpeed * math.Sin(nextPitch),
		}

		next, nextVel, nextDirection, nextPitch = g.reboundAt(next, nextVel, nextDirection, nextPitch)

		g.direction = nextDirection
		g.pitch = nextPitch
		return next, nextVel
	}

	return g.reboundPositionOnly(next, n.Velocity)
}

func (g *GaussMarkov3D) reboundAt(pos, vel Vec3, direction, pitch float64) (Vec3, Vec3, float64, float64) {
	if pos.X < g.BoundaryMarginXY || pos.X > g.MapLength-g.BoundaryMarginXY {
		vel.X = -vel.X
		g.directionMean = math.Pi - g.directionMean
	}
	if pos.Y < g.BoundaryMarginXY || pos.Y > g.MapWidth-g.BoundaryMarginXY {
		vel.Y = -vel.Y
		g.directionMean = -g.directionMean
	}
	if pos.Z < g.BoundaryMarginZ || pos.Z > g.MapHeight-g.BoundaryMarginZ {
		vel.Z = -vel.Z
		g.pitchMean = -g.pitchMean
	}
	margin := Vec3{g.BoundaryMarginXY, g.BoundaryMarginXY, g.BoundaryMarginZ}
	pos = pos.Sub(margin).
		Clamp(g.MapLength-2*g.BoundaryMarginXY, g.MapWidth-2*g.BoundaryMarginXY, g.MapHeight-2*g.BoundaryMarginZ).
		Add(margin)
	return pos, vel, g.directionMean, g.pitchMean
}

func (g *GaussMarkov3D) reboundPositionOnly(pos, vel Vec3) (Vec3, Vec3) {
	p, v, _, _ := g.reboundAt(pos, vel, g.direction, g.pitch)
	return p, v
}

// RotaryWingEnergyModel implements EnergyModel with the blade-profile +
// induced + parasite power terms of Y. Zeng et al. 2019, ported from
// original_source/energy/energy_model.py.
type RotaryWingEnergyModel struct {
	ProfileDragCoefficient    float64
	AirDensity                float64
	RotorSolidity             float64
	RotorDiscArea             float64
	BladeAngularVelocity      float64
	RotorRadius               float64
	IncrementalCorrection     float64
	AircraftWeight            float64
	RotorBladeTipSpeed        float64
	MeanRotorInducedVelocity  float64
	FuselageDragRatio         float64
}

// Power implements EnergyModel.
func (m RotaryWingEnergyModel) Power(speed float64) float64 {
	p0 := (m.ProfileDragCoefficient / 8) * m.AirDensity * m.RotorSolidity * m.RotorDiscArea *
		math.Pow(m.BladeAngularVelocity, 3) * math.Pow(m.RotorRadius, 3)
	pi := (1 + m.IncrementalCorrection) * math.Pow(m.AircraftWeight, 1.5) /
		math.Sqrt(2*m.AirDensity*m.RotorDiscArea)

	bladeProfile := p0 * (1 + (3*speed*speed)/(m.RotorBladeTipSpeed*m.RotorBladeTipSpeed))
	induced := pi * math.Sqrt(math.Sqrt(1+math.Pow(speed, 4)/(4*math.Pow(m.MeanRotorInducedVelocity, 4)))-
		(speed*speed)/(2*m.MeanRotorInducedVelocity*m.MeanRotorInducedVelocity))
	parasite := 0.5 * m.FuselageDragRatio * m.AirDensity * m.RotorSolidity * m.RotorDiscArea * math.Pow(speed, 3)

	return bladeProfile + induced + parasite
}
