package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

var (
	ErrTensorNotFound = errors.New("safetensors: tensor not found")
	ErrCorruptFile    = errors.New("safetensors: corrupt file")
)

// TensorInfo describes one tensor as declared in the safetensors header.
type TensorInfo struct {
	DType string
	Shape []int
	Start int64 // byte offsets relative to the data region
	End   int64
}

// Elements returns the product of the shape dimensions.
func (t TensorInfo) Elements() (int, error) {
	return numElements(t.Shape)
}

// ElementSize returns the per-element byte size for the dtype, or 0 when
// the dtype is unknown.
func (t TensorInfo) ElementSize() int {
	switch t.DType {
	case "F64", "I64", "U64":
		return 8
	case "F32", "I32", "U32":
		return 4
	case "F16", "BF16", "I16", "U16":
		return 2
	case "I8", "U8", "BOOL":
		return 1
	default:
		return 0
	}
}

// IsFloat reports whether the dtype is a floating-point kind we can decode
// to float32 for quantization.
func (t TensorInfo) IsFloat() bool {
	switch t.DType {
	case "F32", "F16", "BF16":
		return true
	default:
		return false
	}
}

// File is an open safetensors file. The file is mmapped read-only where
// available, with a whole-file read fallback, so Raw slices are zero-copy
// views that must not be retained after Close.
type File struct {
	Path string

	data      []byte // entire file
	dataStart int64
	tensors   map[string]TensorInfo
	names     []string
	mmapped   bool
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// Open maps a safetensors file and parses its header.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < 8 {
		return nil, ErrCorruptFile
	}
	if size64 > int64(int(^uint(0)>>1)) {
		// cannot index this file safely as []byte on this architecture.
		return nil, ErrCorruptFile
	}
	size := int(size64)

	// Prefer mmap where available for zero-copy tensor slices.
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	mmapped := err == nil
	if !mmapped {
		data = make([]byte, size)
		if _, rerr := f.ReadAt(data, 0); rerr != nil {
			return nil, rerr
		}
	}

	sf, perr := parseFileData(path, data, mmapped)
	if perr != nil {
		if mmapped {
			_ = unix.Munmap(data)
		}
		return nil, perr
	}
	return sf, nil
}

func parseFileData(path string, data []byte, mmapped bool) (*File, error) {
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, ErrCorruptFile
	}
	headerBytes := data[8 : 8+headerLen]

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, fmt.Errorf("safetensors: parse header: %w", err)
	}
	delete(raw, "__metadata__")

	dataStart := int64(8) + int64(headerLen)
	dataLen := int64(len(data)) - dataStart

	tensors := make(map[string]TensorInfo, len(raw))
	names := make([]string, 0, len(raw))
	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("safetensors: parse tensor %s: %w", name, err)
		}
		if len(th.DataOffsets) != 2 || th.DataOffsets[0] < 0 || th.DataOffsets[1] < th.DataOffsets[0] {
			return nil, fmt.Errorf("safetensors: tensor %s: invalid data_offsets", name)
		}
		if th.DataOffsets[1] > dataLen {
			return nil, fmt.Errorf("safetensors: tensor %s: data out of bounds", name)
		}
		tensors[name] = TensorInfo{
			DType: th.DType,
			Shape: th.Shape,
			Start: th.DataOffsets[0],
			End:   th.DataOffsets[1],
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return &File{
		Path:      path,
		data:      data,
		dataStart: dataStart,
		tensors:   tensors,
		names:     names,
		mmapped:   mmapped,
	}, nil
}

// Close releases the mapping. Raw slices become invalid.
func (f *File) Close() error {
	if f == nil || f.data == nil {
		return nil
	}
	data := f.data
	f.data = nil
	f.tensors = nil
	f.names = nil
	if f.mmapped {
		return unix.Munmap(data)
	}
	return nil
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	return f.names
}

// Tensor returns the header metadata for a tensor.
func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.tensors[name]
	return t, ok
}

// Raw returns the tensor's data bytes as a view into the mapped file.
func (f *File) Raw(name string) ([]byte, TensorInfo, error) {
	t, ok := f.tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	if f.data == nil {
		return nil, TensorInfo{}, errors.New("safetensors: file closed")
	}
	return f.data[f.dataStart+t.Start : f.dataStart+t.End], t, nil
}

// Values decodes a tensor to float32. F32, F16 and BF16 are supported; any
// other dtype is an error (callers gate on IsFloat first).
func (f *File) Values(name string) ([]float32, error) {
	raw, info, err := f.Raw(name)
	if err != nil {
		return nil, err
	}
	n, err := numElements(info.Shape)
	if err != nil {
		return nil, fmt.Errorf("safetensors: tensor %s: %w", name, err)
	}

	switch info.DType {
	case "F32":
		if len(raw) != n*4 {
			return nil, fmt.Errorf("safetensors: tensor %s: invalid f32 data size", name)
		}
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	case "BF16":
		if len(raw) != n*2 {
			return nil, fmt.Errorf("safetensors: tensor %s: invalid bf16 data size", name)
		}
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = bf16ToF32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		return out, nil
	case "F16":
		if len(raw) != n*2 {
			return nil, fmt.Errorf("safetensors: tensor %s: invalid f16 data size", name)
		}
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = fp16ToF32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("safetensors: tensor %s: unsupported dtype %s", name, info.DType)
	}
}

func numElements(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("invalid dim %d", d)
		}
		if n > (int(^uint(0)>>1))/d {
			return 0, fmt.Errorf("tensor too large")
		}
		n *= d
	}
	return n, nil
}

func bf16ToF32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}

func fp16ToF32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h & 0x3FF)
	var f uint32
	switch exp {
	case 0:
		if frac == 0 {
			f = sign << 31
		} else {
			e := uint32(127 - 15 + 1)
			for (frac & 0x400) == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3FF
			f = (sign << 31) | (e << 23) | (frac << 13)
		}
	case 0x1F:
		f = (sign << 31) | 0x7F800000 | (frac << 13)
	default:
		e := exp + (127 - 15)
		f = (sign << 31) | (e << 23) | (frac << 13)
	}
	return math.Float32frombits(f)
}
