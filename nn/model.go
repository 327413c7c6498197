package nn

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/owulveryck/onnx-go"
	"github.com/owulveryck/onnx-go/backend/x/gorgonnx"
	"github.com/rs/zerolog/log"
	"gorgonia.org/tensor"

	"github.com/gdicarlo/damasco/game"
)

var ErrNoModel = errors.New("no model configured")

// inputPool recycles encoder buffers between forward passes.
var inputPool = sync.Pool{
	New: func() interface{} {
		v := make([]float32, InputLen)
		return &v
	},
}

// ModelTemplate holds the raw ONNX model bytes. The gorgonnx graph is not
// safe for concurrent Run, so each search worker instantiates its own
// Model from the template.
type ModelTemplate struct {
	data []byte
}

// LoadModelTemplate reads an ONNX model file.
func LoadModelTemplate(path string) (*ModelTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ONNX model: %w", err)
	}
	log.Debug().Str("path", path).Int("model-size", len(data)).Msg("loaded-onnx-model")
	return &ModelTemplate{data: data}, nil
}

// NewInstance builds a runnable model from the template.
func (t *ModelTemplate) NewInstance() (*Model, error) {
	start := time.Now()
	defer func() {
		log.Debug().Int64("onnx-model-init-ms", time.Since(start).Milliseconds()).
			Msg("onnx model instance created")
	}()
	backend := gorgonnx.NewGraph()
	model := onnx.NewModel(backend)
	if err := model.UnmarshalBinary(t.data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ONNX model: %w", err)
	}
	return &Model{backend: backend, model: model}, nil
}

// Model is an Evaluator backed by an ONNX graph. Not safe for concurrent
// use; one per worker.
type Model struct {
	backend *gorgonnx.Graph
	model   *onnx.Model
}

// Infer encodes the position, runs the graph and returns the softmaxed
// 512-wide policy and the scalar value head.
func (m *Model) Infer(pos *game.Position, history []*game.Position) ([]float32, float32, error) {
	bufp := inputPool.Get().(*[]float32)
	defer inputPool.Put(bufp)
	EncodePosition(*bufp, pos, history)

	in := tensor.New(
		tensor.WithShape(1, Channels, 8, 8),
		tensor.WithBacking(*bufp),
	)
	if err := m.model.SetInput(0, in); err != nil {
		return nil, 0, fmt.Errorf("failed to set model input: %w", err)
	}
	if err := m.backend.Run(); err != nil {
		return nil, 0, fmt.Errorf("model forward pass failed: %w", err)
	}
	outputs, err := m.model.GetOutputTensors()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read model outputs: %w", err)
	}
	if len(outputs) < 2 {
		return nil, 0, fmt.Errorf("model returned %d outputs, want 2", len(outputs))
	}

	rawPolicy, ok := outputs[0].Data().([]float32)
	if !ok || len(rawPolicy) != PolicySize {
		return nil, 0, fmt.Errorf("bad policy output: %v", outputs[0].Shape())
	}
	policy := make([]float32, PolicySize)
	copy(policy, rawPolicy)
	Softmax(policy)

	var value float32
	switch v := outputs[1].Data().(type) {
	case []float32:
		if len(v) == 0 {
			return nil, 0, errors.New("empty value output")
		}
		value = v[0]
	case float32:
		value = v
	default:
		return nil, 0, fmt.Errorf("bad value output type %T", v)
	}
	return policy, value, nil
}

// Softmax converts logits to a distribution in place, with the usual
// max-subtraction for stability.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - max))
		x[i] = float32(e)
		sum += e
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / sum)
	}
}
