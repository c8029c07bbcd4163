package quant

import (
	"context"
	"errors"
	"sort"
	"testing"
)

// memSource is an in-memory Source for pipeline tests.
type memSource struct {
	tensors map[string]memTensor
	valsErr map[string]error
}

type memTensor struct {
	dtype  string
	shape  []int
	values []float32
}

func (s memSource) Names() []string {
	names := make([]string, 0, len(s.tensors))
	for name := range s.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s memSource) Info(name string) (TensorInfo, error) {
	t, ok := s.tensors[name]
	if !ok {
		return TensorInfo{}, errors.New("not found")
	}
	elements := 1
	for _, d := range t.shape {
		elements *= d
	}
	size := 4
	float := t.dtype == "F32"
	if !float {
		size = 8
	}
	return TensorInfo{
		DType:       t.dtype,
		Float:       float,
		Shape:       t.shape,
		Elements:    elements,
		ElementSize: size,
	}, nil
}

func (s memSource) Values(name string) ([]float32, error) {
	if err := s.valsErr[name]; err != nil {
		return nil, err
	}
	return s.tensors[name].values, nil
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%17) - 8.0
	}
	return out
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	src := memSource{tensors: map[string]memTensor{
		"embed_tokens.weight": {dtype: "F32", shape: []int{1000, 64}, values: ramp(1000 * 64)},
		"fc1.weight":          {dtype: "F32", shape: []int{256, 64}, values: ramp(256 * 64)},
		"fc1.bias":            {dtype: "F32", shape: []int{8}, values: ramp(8)},
		"token_ids":           {dtype: "I64", shape: []int{4096}},
	}}

	out, stats, err := Run(context.Background(), src, Options{Workers: 4})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.TotalWeights != 2 || stats.QuantizedWeights != 2 {
		t.Fatalf("stats counts = %d/%d, want 2/2", stats.TotalWeights, stats.QuantizedWeights)
	}
	if len(out) != 2 {
		t.Fatalf("got %d quantized tensors, want 2", len(out))
	}
	if _, ok := out["fc1.bias"]; ok {
		t.Fatal("small tensor must not appear in output")
	}
	if _, ok := out["token_ids"]; ok {
		t.Fatal("non-float tensor must not appear in output")
	}

	embed := out["embed_tokens.weight"]
	if embed.Format != Q8 {
		t.Fatalf("embed format = %v, want Q8", embed.Format)
	}
	if embed.Elements != 1000*64 || len(embed.Data) != 1000*64 {
		t.Fatalf("embed sizes: elements=%d data=%d", embed.Elements, len(embed.Data))
	}

	fc1 := out["fc1.weight"]
	if fc1.Format != Q4 {
		t.Fatalf("fc1 format = %v, want Q4", fc1.Format)
	}
	if fc1.Elements != 256*64 || len(fc1.Data) != 256*64/2 {
		t.Fatalf("fc1 sizes: elements=%d data=%d", fc1.Elements, len(fc1.Data))
	}
	if fc1.Scale <= 0 || embed.Scale <= 0 {
		t.Fatalf("scales must be positive: %v, %v", fc1.Scale, embed.Scale)
	}

	for name, scale := range stats.Scales {
		qt, ok := out[name]
		if !ok {
			t.Fatalf("stats scale %s has no tensor", name)
		}
		if qt.Scale != scale {
			t.Fatalf("scale mismatch for %s: %v vs %v", name, qt.Scale, scale)
		}
	}

	// Q4 fc1 packs 8x, Q8 embed packs 4x against 4-byte floats.
	wantRatio := float64(1000*64+256*64/2) / float64((1000*64+256*64)*4)
	if stats.CompressionRatio != wantRatio {
		t.Fatalf("compression ratio = %v, want %v", stats.CompressionRatio, wantRatio)
	}
}

func TestRunQ8Floor(t *testing.T) {
	t.Parallel()

	src := memSource{tensors: map[string]memTensor{
		"fc1.weight": {dtype: "F32", shape: []int{64, 64}, values: ramp(64 * 64)},
	}}
	out, _, err := Run(context.Background(), src, Options{Floor: Q8, Workers: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out["fc1.weight"].Format != Q8 {
		t.Fatalf("format = %v, want Q8 under q8 floor", out["fc1.weight"].Format)
	}
}

func TestRunSourceErrorIsFatal(t *testing.T) {
	t.Parallel()

	readErr := errors.New("disk gone")
	src := memSource{
		tensors: map[string]memTensor{
			"fc1.weight": {dtype: "F32", shape: []int{64, 64}, values: ramp(64 * 64)},
			"fc2.weight": {dtype: "F32", shape: []int{64, 64}, values: ramp(64 * 64)},
		},
		valsErr: map[string]error{"fc2.weight": readErr},
	}

	_, _, err := Run(context.Background(), src, Options{Workers: 2})
	if !errors.Is(err, readErr) {
		t.Fatalf("Run error = %v, want wrapped %v", err, readErr)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := memSource{tensors: map[string]memTensor{
		"fc1.weight": {dtype: "F32", shape: []int{64, 64}, values: ramp(64 * 64)},
	}}
	out, _, err := Run(ctx, src, Options{Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if out != nil {
		t.Fatal("cancelled run must discard produced tensors")
	}
}
