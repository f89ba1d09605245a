package physics

import "math/rand"

// Range is an inclusive [min, max] sampling bound.
type Range [2]float64

// sample draws a uniform value in [r[0], r[1]] using rng.
func (r Range) sample(rng *rand.Rand) float64 {
	if r[1] <= r[0] {
		return r[0]
	}
	return r[0] + rng.Float64()*(r[1]-r[0])
}

// SamplerConfig holds the bounded ranges initial states are drawn from,
// one pair per RocketState field group, mirroring spec §6's
// rocket.*_limits keys.
type SamplerConfig struct {
	Position    [2]Range // x, y
	Velocity    [2]Range // vx, vy
	Accel       [2]Range // ax, ay (not sampled: the engine computes accelerations on each step)
	Attitude    [2]Range // angle, angularVelocity
	Mass        [2]Range // dryMass, fuelMass
}

// Sampler produces randomized but bounded initial rocket states.
type Sampler struct {
	cfg SamplerConfig
	rng *rand.Rand
}

// NewSampler builds a Sampler seeded from src. Callers that need
// reproducible episodes (tests, scenario 1/2/3/4 in spec §8) pass a
// rand.NewSource(seed).
func NewSampler(cfg SamplerConfig, src rand.Source) *Sampler {
	return &Sampler{cfg: cfg, rng: rand.New(src)}
}

// Sample draws one bounded initial state.
func (s *Sampler) Sample() InitialState {
	return InitialState{
		X:               s.cfg.Position[0].sample(s.rng),
		Y:               s.cfg.Position[1].sample(s.rng),
		Vx:              s.cfg.Velocity[0].sample(s.rng),
		Vy:              s.cfg.Velocity[1].sample(s.rng),
		Angle:           s.cfg.Attitude[0].sample(s.rng),
		AngularVelocity: s.cfg.Attitude[1].sample(s.rng),
		Mass:            s.cfg.Mass[0].sample(s.rng),
		FuelMass:        s.cfg.Mass[1].sample(s.rng),
	}
}

// InitialState is the subset of RocketState the sampler is responsible
// for; accelerations are left to the physics engine on the first step.
type InitialState struct {
	X, Y            float64
	Vx, Vy          float64
	Angle           float64
	AngularVelocity float64
	Mass            float64
	FuelMass        float64
}
