// Package rocket owns the per-rocket stateful object: current and previous
// kinematic state, one integration step per tick, and reset/export.
package rocket

import (
	"math"
	"sync"

	"github.com/adimail/rocket-landing-rl/internal/physics"
)

// State is the full exported rocket state, including the derived fields
// computed only on export.
type State struct {
	X, Y                       float64
	Vx, Vy                     float64
	Ax, Ay                     float64
	Angle                      float64
	AngularVelocity            float64
	AngularAcceleration        float64
	Mass, FuelMass             float64

	// Derived, populated only by State().
	Speed         float64
	RelativeAngle float64
	TotalMass     float64
}

// Action is a clamped operator/policy control input.
type Action struct {
	Throttle float64 // [0, 1]
	ColdGas  float64 // [-1, 1]
}

// Clamp returns a copy of a with both fields clamped to their valid ranges.
func (a Action) Clamp() Action {
	return Action{
		Throttle: clamp(a.Throttle, 0, 1),
		ColdGas:  clamp(a.ColdGas, -1, 1),
	}
}

// Rocket is a single rigid body integrated by the shared physics engine.
// It is owned exclusively by one Controller tick loop; State/Reset/Step
// mutate only in-place, and external callers must serialize access (the
// simulation controller already guarantees sequential, index-ordered
// stepping per spec §5).
type Rocket struct {
	mu sync.Mutex

	cfg     physics.Config
	sampler *physics.Sampler
	dt      float64

	current   physics.VerletInput
	prev      physics.VerletInput
	vx, vy    float64
	prevVx    float64
	prevVy    float64
	angVel    float64
	prevAngVel float64
	mass      float64
	fuelMass  float64
	firstStep bool
}

// New constructs a Rocket, sampling its initial state and back-integrating
// a consistent previous state so the first Verlet step behaves like one
// Euler step (spec §3's bootstrap).
func New(cfg physics.Config, sampler *physics.Sampler, dt float64) *Rocket {
	r := &Rocket{cfg: cfg, sampler: sampler, dt: dt}
	r.Reset()
	return r
}

// Reset re-samples the initial state from the configured sampler and
// re-synthesizes the previous state via back-integration.
func (r *Rocket) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	init := r.sampler.Sample()
	r.mass = init.Mass
	r.fuelMass = init.FuelMass
	r.vx, r.vy = init.Vx, init.Vy
	r.angVel = init.AngularVelocity

	r.current = physics.VerletInput{X: init.X, Y: init.Y, Angle: init.Angle}
	r.firstStep = true

	r.prev = r.backIntegrate(r.current)
	r.prevVx = r.vx
	r.prevVy = r.vy
	r.prevAngVel = r.angVel
}

// backIntegrate synthesizes a previous state assuming zero control input
// at t=0, per spec §3: x_prev = x - v*dt + ½a*dt², angle_prev analogously.
func (r *Rocket) backIntegrate(cur physics.VerletInput) physics.VerletInput {
	totalMass := r.mass + r.fuelMass

	var ax, ay, alpha float64
	if totalMass > 1e-6 {
		f := physics.NetForce(r.cfg, totalMass, 0, cur.Angle, r.vx, r.vy)
		a := physics.LinearAccel(f, totalMass)
		ax, ay = a.X, a.Y
		alpha = physics.AngularAccel(r.cfg, 0, totalMass)
	}

	prev := physics.VerletInput{
		X:                   cur.X - r.vx*r.dt + 0.5*ax*r.dt*r.dt,
		Y:                   cur.Y - r.vy*r.dt + 0.5*ay*r.dt*r.dt,
		Angle:               physics.NormalizeAngle(cur.Angle - r.angVel*r.dt + 0.5*alpha*r.dt*r.dt),
		Ax:                  ax,
		Ay:                  ay,
		AngularAcceleration: alpha,
	}

	r.prevVx = r.vx - ax*r.dt
	r.prevVy = r.vy - ay*r.dt
	r.prevAngVel = r.angVel - alpha*r.dt

	return prev
}

// Step applies one integration tick for the given action, following spec
// §4.2's eight-step contract.
func (r *Rocket) Step(action Action) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	action = action.Clamp()

	if r.fuelMass <= 0 {
		action.Throttle = 0
		r.fuelMass = 0
	}

	totalMass := r.mass + r.fuelMass
	if totalMass <= 1e-6 {
		// Degenerate guard: preserve state unchanged.
		return r.stateLocked()
	}

	f := physics.NetForce(r.cfg, totalMass, action.Throttle, r.current.Angle, r.vx, r.vy)
	a := physics.LinearAccel(f, totalMass)
	r.current.Ax, r.current.Ay = a.X, a.Y
	r.current.AngularAcceleration = physics.AngularAccel(r.cfg, action.ColdGas, totalMass)

	out := physics.StepVerlet(r.cfg, r.current, r.prev, r.dt)

	r.prev = r.current
	r.prevVx, r.prevVy, r.prevAngVel = r.vx, r.vy, r.angVel

	r.current = physics.VerletInput{
		X: out.X, Y: out.Y, Angle: out.Angle,
		Ax: r.prev.Ax, Ay: r.prev.Ay, AngularAcceleration: r.prev.AngularAcceleration,
	}
	r.vx, r.vy = out.Vx, out.Vy
	r.angVel = out.AngularVelocity

	r.fuelMass = math.Max(0, r.fuelMass-physics.FuelConsumed(r.cfg, action.Throttle, r.dt))
	r.firstStep = false

	return r.stateLocked()
}

// State returns a copy of the current rocket state with derived fields
// populated and every float rounded to 3 decimals for export.
func (r *Rocket) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Rocket) stateLocked() State {
	s := State{
		X: r.current.X, Y: r.current.Y,
		Vx: r.vx, Vy: r.vy,
		Ax: r.current.Ax, Ay: r.current.Ay,
		Angle:               r.current.Angle,
		AngularVelocity:     r.angVel,
		AngularAcceleration: r.current.AngularAcceleration,
		Mass:                r.mass,
		FuelMass:            r.fuelMass,
	}
	s.Speed = math.Sqrt(s.Vx*s.Vx + s.Vy*s.Vy)
	s.RelativeAngle = math.Abs(s.Angle)
	s.TotalMass = s.Mass + s.FuelMass
	return round3(s)
}

func round3(s State) State {
	r := func(v float64) float64 { return math.Round(v*1000) / 1000 }
	s.X, s.Y = r(s.X), r(s.Y)
	s.Vx, s.Vy = r(s.Vx), r(s.Vy)
	s.Ax, s.Ay = r(s.Ax), r(s.Ay)
	s.Angle = r(s.Angle)
	s.AngularVelocity = r(s.AngularVelocity)
	s.AngularAcceleration = r(s.AngularAcceleration)
	s.Mass, s.FuelMass = r(s.Mass), r(s.FuelMass)
	s.Speed, s.RelativeAngle, s.TotalMass = r(s.Speed), r(s.RelativeAngle), r(s.TotalMass)
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
