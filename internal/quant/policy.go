package quant

import "strings"

// minQuantizeElements is the smallest tensor worth quantizing. Smaller
// tensors are typically biases or norm weights and stay in float.
const minQuantizeElements = 16

// TensorInfo is the source metadata the policy decides on.
type TensorInfo struct {
	DType       string // source dtype tag, eg "F32"
	Float       bool   // true when DType is a quantizable floating-point kind
	Shape       []int
	Elements    int
	ElementSize int // bytes per source element
}

// Decision is the policy outcome for one tensor.
type Decision struct {
	Quantize bool
	Format   Format
}

// Policy gates tensors and selects their fixed-point format.
//
// Floor raises the format of every eligible tensor: with Floor == Q8 the
// whole model is quantized at 8 bits. Embedding and output-projection
// tensors are never quantized below Q8 regardless of Floor.
type Policy struct {
	Floor Format
}

// Decide returns Skip (Quantize == false) for non-float dtypes and tensors
// below the size threshold, Q8 for embedding / lm_head tensors, and the
// policy floor (Q4 by default) for everything else. Pure function of the
// tensor metadata.
func (p Policy) Decide(name string, info TensorInfo) Decision {
	if !info.Float || info.Elements < minQuantizeElements {
		return Decision{}
	}
	f := p.Floor
	if highPrecisionName(name) && f < Q8 {
		f = Q8
	}
	return Decision{Quantize: true, Format: f}
}

// highPrecisionName matches tensors that keep the higher-precision path:
// token embeddings and the output projection.
func highPrecisionName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "embed") || strings.Contains(lower, "lm_head")
}
