//go:build !tflite

package policy

// TFLiteBackend falls back to a deterministic heuristic when the native
// TFLite interpreter is unavailable. It still honors the Backend
// contract (batched, normalized observations in, clamped actions out) so
// the controller never has to know which backend it was handed.
type TFLiteBackend struct {
	modelPath string
}

// NewTFLiteBackend ignores modelPath and always succeeds: the fallback
// has no artifact to load.
func NewTFLiteBackend(modelPath string) (*TFLiteBackend, error) {
	return &TFLiteBackend{modelPath: modelPath}, nil
}

// PredictBatch applies a simple proportional attitude/descent controller
// to each (already normalized) observation row: brake descent with
// throttle, counter-steer angle with cold gas. It is not a trained
// policy, but it is deterministic and exercises the full batch pipeline
// identically to the real backend.
func (b *TFLiteBackend) PredictBatch(obs [][obsWidth]float32) ([][2]float32, error) {
	actions := make([][2]float32, len(obs))
	for i, row := range obs {
		vy := row[3]    // normalized vy
		angle := row[6] // normalized angle

		throttle := float32(0)
		if vy < 0 {
			throttle = clampFloat32(-vy*0.5, 0, 1)
		}
		coldGas := clampFloat32(-angle*0.3, -1, 1)

		actions[i] = [2]float32{throttle, coldGas}
	}
	return actions, nil
}

// Close is a no-op: the fallback holds no native resources.
func (b *TFLiteBackend) Close() error {
	return nil
}

func clampFloat32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
