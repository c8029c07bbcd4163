package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeSafetensors creates a safetensors file with the given headers and
// data region for testing.
func writeSafetensors(t *testing.T, path string, tensors map[string]tensorHeader, data []byte) {
	t.Helper()
	headerBytes, err := json.Marshal(tensors)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer func() { _ = f.Close() }()

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerBytes)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		t.Fatalf("write header len: %v", err)
	}
	if _, err := f.Write(headerBytes); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("write data: %v", err)
	}
}

func f32Bytes(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func TestOpenAndDecodeF32(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model.safetensors")
	values := []float32{0.5, -1.25, 3.0, 0, -0.0625, 2}
	writeSafetensors(t, path, map[string]tensorHeader{
		"weight": {
			DType:       "F32",
			Shape:       []int{2, 3},
			DataOffsets: []int64{0, 24},
		},
	}, f32Bytes(values...))

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = f.Close() }()

	if got := f.Names(); len(got) != 1 || got[0] != "weight" {
		t.Fatalf("Names = %v", got)
	}

	info, ok := f.Tensor("weight")
	if !ok {
		t.Fatal("tensor 'weight' not found")
	}
	if info.DType != "F32" || !info.IsFloat() || info.ElementSize() != 4 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if n, err := info.Elements(); err != nil || n != 6 {
		t.Fatalf("Elements = %d, %v", n, err)
	}

	got, err := f.Values("weight")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	for i := range values {
		if got[i] != values[i] {
			t.Fatalf("value[%d] = %v, want %v", i, got[i], values[i])
		}
	}
}

func TestDecodeF16AndBF16(t *testing.T) {
	t.Parallel()

	// f16 1.0 = 0x3C00, -2.0 = 0xC000; bf16 1.0 = 0x3F80, -2.0 = 0xC000.
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:], 0x3C00)
	binary.LittleEndian.PutUint16(data[2:], 0xC000)
	binary.LittleEndian.PutUint16(data[4:], 0x3F80)
	binary.LittleEndian.PutUint16(data[6:], 0xC000)

	path := filepath.Join(t.TempDir(), "model.safetensors")
	writeSafetensors(t, path, map[string]tensorHeader{
		"half":  {DType: "F16", Shape: []int{2}, DataOffsets: []int64{0, 4}},
		"brain": {DType: "BF16", Shape: []int{2}, DataOffsets: []int64{4, 8}},
	}, data)

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = f.Close() }()

	for _, name := range []string{"half", "brain"} {
		got, err := f.Values(name)
		if err != nil {
			t.Fatalf("Values(%s): %v", name, err)
		}
		if got[0] != 1.0 || got[1] != -2.0 {
			t.Fatalf("%s = %v, want [1 -2]", name, got)
		}
	}
}

func TestValuesRejectsNonFloatDType(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model.safetensors")
	writeSafetensors(t, path, map[string]tensorHeader{
		"ids": {DType: "I64", Shape: []int{2}, DataOffsets: []int64{0, 16}},
	}, make([]byte, 16))

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = f.Close() }()

	info, _ := f.Tensor("ids")
	if info.IsFloat() {
		t.Fatal("I64 must not be a float kind")
	}
	if info.ElementSize() != 8 {
		t.Fatalf("I64 element size = %d, want 8", info.ElementSize())
	}
	if _, err := f.Values("ids"); err == nil {
		t.Fatal("expected dtype error")
	}
}

func TestOpenRejectsCorruptFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	short := filepath.Join(dir, "short.safetensors")
	if err := os.WriteFile(short, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(short); err == nil {
		t.Fatal("expected error for truncated file")
	}

	// Header length pointing past EOF.
	bad := filepath.Join(dir, "bad.safetensors")
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf, 1<<32)
	if err := os.WriteFile(bad, buf, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(bad); err == nil {
		t.Fatal("expected error for oversized header length")
	}

	// Tensor data offsets outside the data region.
	oob := filepath.Join(dir, "oob.safetensors")
	writeSafetensors(t, oob, map[string]tensorHeader{
		"w": {DType: "F32", Shape: []int{4}, DataOffsets: []int64{0, 1 << 20}},
	}, make([]byte, 4))
	if _, err := Open(oob); err == nil {
		t.Fatal("expected error for out-of-bounds tensor")
	}
}

func TestTensorNotFound(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model.safetensors")
	writeSafetensors(t, path, map[string]tensorHeader{
		"w": {DType: "F32", Shape: []int{1, 4}, DataOffsets: []int64{0, 16}},
	}, make([]byte, 16))

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = f.Close() }()

	if _, _, err := f.Raw("missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}
