package quant

import (
	"github.com/heliosml/helios/internal/safetensors"
)

// safetensorsSource adapts an open safetensors file to the pipeline Source.
type safetensorsSource struct {
	f *safetensors.File
}

// NewSafetensorsSource wraps f as a tensor source. The caller keeps
// ownership of f and must close it after the run.
func NewSafetensorsSource(f *safetensors.File) Source {
	return safetensorsSource{f: f}
}

func (s safetensorsSource) Names() []string {
	return s.f.Names()
}

func (s safetensorsSource) Info(name string) (TensorInfo, error) {
	t, ok := s.f.Tensor(name)
	if !ok {
		return TensorInfo{}, safetensors.ErrTensorNotFound
	}
	// Scalars (empty shape) report zero elements and fall below the
	// policy's size gate rather than failing the run.
	elements, err := t.Elements()
	if err != nil {
		elements = 0
	}
	return TensorInfo{
		DType:       t.DType,
		Float:       t.IsFloat(),
		Shape:       t.Shape,
		Elements:    elements,
		ElementSize: t.ElementSize(),
	}, nil
}

func (s safetensorsSource) Values(name string) ([]float32, error) {
	return s.f.Values(name)
}
