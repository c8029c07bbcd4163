package quant

import (
	"sync"
	"testing"
)

func TestAggregatorCounts(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	agg.Record("a.weight", 0.5, 1024, 128)
	agg.Record("b.weight", 0.25, 2048, 256)

	st := agg.Finalize()
	if st.TotalWeights != 2 || st.QuantizedWeights != 2 {
		t.Fatalf("counts = %d/%d, want 2/2", st.TotalWeights, st.QuantizedWeights)
	}
	if st.Scales["a.weight"] != 0.5 || st.Scales["b.weight"] != 0.25 {
		t.Fatalf("scales = %v", st.Scales)
	}
	if want := float64(128+256) / float64(1024+2048); st.CompressionRatio != want {
		t.Fatalf("compression ratio = %v, want %v", st.CompressionRatio, want)
	}
}

func TestAggregatorEmptyRunRatioIsZero(t *testing.T) {
	t.Parallel()

	st := NewAggregator().Finalize()
	if st.CompressionRatio != 0.0 {
		t.Fatalf("empty run ratio = %v, want 0.0", st.CompressionRatio)
	}
	if st.TotalWeights != 0 || st.QuantizedWeights != 0 {
		t.Fatalf("empty run counts = %d/%d", st.TotalWeights, st.QuantizedWeights)
	}
}

// Q4 tensors with even element counts and 4-byte source floats pack to
// exactly 1/8 of the original bytes.
func TestAggregatorQ4CompressionRatioIsOneEighth(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	for i, n := range []int{64, 256, 1024} {
		name := string(rune('a'+i)) + ".weight"
		agg.Record(name, 1.0, n*4, Q4.PackedSize(n))
	}
	if got := agg.Finalize().CompressionRatio; got != 0.125 {
		t.Fatalf("compression ratio = %v, want 0.125", got)
	}
}

func TestAggregatorConcurrentRecords(t *testing.T) {
	t.Parallel()

	agg := NewAggregator()
	const n = 64

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Record(string(rune('a'+i%26))+string(rune('a'+i/26)), 1.0, 400, 50)
		}()
	}
	wg.Wait()

	st := agg.Finalize()
	if st.QuantizedWeights != n {
		t.Fatalf("quantized weights = %d, want %d (lost updates)", st.QuantizedWeights, n)
	}
	if st.CompressionRatio != 0.125 {
		t.Fatalf("compression ratio = %v, want 0.125", st.CompressionRatio)
	}
}
