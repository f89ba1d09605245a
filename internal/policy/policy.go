// Package policy adapts rocket state to the trained RL policy's
// observation space, normalizes with saved running statistics, and
// batches inference across every agent-controlled rocket in a tick. The
// actual model invocation is delegated to a Backend, built either against
// the real TFLite interpreter (-tags=tflite) or a deterministic fallback
// (internal/policy/tflite_stub.go) when the native library is unavailable.
package policy

import "math"

// obsWidth is the fixed observation width, in the field order spec §4.4
// fixes: x, y, vx, vy, ax, ay, angle, angularVelocity.
const obsWidth = 8

// Observation is one rocket's raw state, prior to normalization.
type Observation struct {
	X, Y, Vx, Vy, Ax, Ay, Angle, AngularVelocity float64
}

func (o Observation) vector() [obsWidth]float64 {
	return [obsWidth]float64{o.X, o.Y, o.Vx, o.Vy, o.Ax, o.Ay, o.Angle, o.AngularVelocity}
}

// Action is a policy-predicted control input, clamped to its valid range.
type Action struct {
	Throttle float64
	ColdGas  float64
}

// NormStats is the running observation normalization statistics saved
// alongside the trained policy weights.
type NormStats struct {
	Mean [obsWidth]float64
	Var  [obsWidth]float64
}

// Backend performs the actual batched forward pass over a normalized,
// clipped [N][8]float32 observation matrix, returning one {throttle,
// coldGas} pair per row. Implementations must be safe for reentrant or
// serialized concurrent use (spec §5: "must be reentrant or serialized by
// the adapter").
type Backend interface {
	PredictBatch(obs [][obsWidth]float32) ([][2]float32, error)
	Close() error
}

// Policy is the opaque collaborator interface the simulation controller
// depends on (spec §1, §4.4): batch prediction from raw states.
type Policy interface {
	PredictBatch(states []Observation) ([]Action, error)
}

const epsilon = 1e-8

// Adapter implements Policy over a Backend, applying the normalize/clip
// pipeline spec §4.4 fixes before every call. It never mutates caller
// state.
type Adapter struct {
	backend Backend
	stats   NormStats
	clipObs float64
}

// NewAdapter binds a backend to its saved normalization statistics.
// clipObs bounds the normalized observation to [-clipObs, clipObs].
func NewAdapter(backend Backend, stats NormStats, clipObs float64) *Adapter {
	return &Adapter{backend: backend, stats: stats, clipObs: clipObs}
}

// PredictBatch builds the dense observation matrix, normalizes and clips
// it, invokes the backend once, and returns clamped actions in the same
// order as states.
func (a *Adapter) PredictBatch(states []Observation) ([]Action, error) {
	if len(states) == 0 {
		return nil, nil
	}

	batch := make([][obsWidth]float32, len(states))
	for i, s := range states {
		raw := s.vector()
		for j := 0; j < obsWidth; j++ {
			normalized := (raw[j] - a.stats.Mean[j]) / math.Sqrt(a.stats.Var[j]+epsilon)
			batch[i][j] = float32(clamp(normalized, -a.clipObs, a.clipObs))
		}
	}

	raw, err := a.backend.PredictBatch(batch)
	if err != nil {
		return nil, err
	}

	actions := make([]Action, len(raw))
	for i, pair := range raw {
		actions[i] = Action{
			Throttle: clamp(float64(pair[0]), 0, 1),
			ColdGas:  clamp(float64(pair[1]), -1, 1),
		}
	}
	return actions, nil
}

// Close releases the underlying backend's resources.
func (a *Adapter) Close() error {
	return a.backend.Close()
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
