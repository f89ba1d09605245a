//go:build tflite

package policy

import (
	"fmt"

	"github.com/mattn/go-tflite"
)

// TFLiteBackend is the real batched-inference backend, built only with
// -tags=tflite (the cgo-linked native TFLite interpreter).
type TFLiteBackend struct {
	model       *tflite.Model
	interpreter *tflite.Interpreter
}

// NewTFLiteBackend loads a policy graph from modelPath.
func NewTFLiteBackend(modelPath string) (*TFLiteBackend, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("policy: failed to load tflite model: %s", modelPath)
	}
	interpreter := tflite.NewInterpreter(model, nil)
	if interpreter == nil {
		model.Delete()
		return nil, fmt.Errorf("policy: failed to create tflite interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("policy: failed to allocate tensors")
	}
	return &TFLiteBackend{model: model, interpreter: interpreter}, nil
}

// PredictBatch copies the flattened observation matrix into the input
// tensor, invokes the graph once, and reads back one {throttle, coldGas}
// pair per row.
func (b *TFLiteBackend) PredictBatch(obs [][obsWidth]float32) ([][2]float32, error) {
	inputTensor := b.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, fmt.Errorf("policy: missing input tensor")
	}

	flat := make([]float32, 0, len(obs)*obsWidth)
	for _, row := range obs {
		flat = append(flat, row[:]...)
	}
	if status := inputTensor.CopyFromBuffer(&flat[0]); status != tflite.OK {
		return nil, fmt.Errorf("policy: failed to copy observation batch into input tensor")
	}

	if status := b.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("policy: tflite invoke failed")
	}

	outputTensor := b.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return nil, fmt.Errorf("policy: missing output tensor")
	}
	out := make([]float32, len(obs)*2)
	if status := outputTensor.CopyToBuffer(&out[0]); status != tflite.OK {
		return nil, fmt.Errorf("policy: failed to read output tensor")
	}

	actions := make([][2]float32, len(obs))
	for i := range obs {
		actions[i] = [2]float32{out[i*2], out[i*2+1]}
	}
	return actions, nil
}

// Close releases the interpreter and model.
func (b *TFLiteBackend) Close() error {
	if b.interpreter != nil {
		b.interpreter.Delete()
	}
	if b.model != nil {
		b.model.Delete()
	}
	return nil
}
