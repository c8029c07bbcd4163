package quant

import "sync"

// Stats is the finalized outcome of one quantization run.
type Stats struct {
	TotalWeights     int
	QuantizedWeights int
	CompressionRatio float64
	Scales           map[string]float32
}

// Aggregator accumulates per-tensor results across a run. It is the only
// shared mutable state in the pipeline and is safe for concurrent use by
// the worker pool. Skipped tensors never touch it.
type Aggregator struct {
	mu               sync.Mutex
	totalWeights     int
	quantizedWeights int
	originalBytes    int64
	quantizedBytes   int64
	scales           map[string]float32
}

func NewAggregator() *Aggregator {
	return &Aggregator{scales: make(map[string]float32)}
}

// Record accounts for one quantized tensor.
func (a *Aggregator) Record(name string, scale float32, originalBytes, quantizedBytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalWeights++
	a.quantizedWeights++
	a.scales[name] = scale
	a.originalBytes += int64(originalBytes)
	a.quantizedBytes += int64(quantizedBytes)
}

// Finalize computes the compression ratio and returns a snapshot. The ratio
// is quantized bytes over original bytes, or 0.0 when nothing was recorded.
func (a *Aggregator) Finalize() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := Stats{
		TotalWeights:     a.totalWeights,
		QuantizedWeights: a.quantizedWeights,
		Scales:           make(map[string]float32, len(a.scales)),
	}
	for name, scale := range a.scales {
		st.Scales[name] = scale
	}
	if a.originalBytes > 0 {
		st.CompressionRatio = float64(a.quantizedBytes) / float64(a.originalBytes)
	}
	return st
}
