package quant

import "fmt"

// Pack serializes codes into the format's byte representation.
//
// Q8 codes are stored one per byte as their two's-complement bits. Q4 codes
// are packed two per byte in original order: the first code of each pair
// occupies bits 0-3 (low nibble), the second bits 4-7. When the count is
// odd the final byte's high nibble is zero padding; Unpack needs the true
// element count to tell that padding apart from a trailing zero code.
func Pack(codes []int8, f Format) []byte {
	if f == Q8 {
		out := make([]byte, len(codes))
		for i, c := range codes {
			out[i] = byte(c)
		}
		return out
	}

	out := make([]byte, (len(codes)+1)/2)
	for i := 0; i < len(codes); i += 2 {
		b := byte(codes[i]) & 0x0F
		if i+1 < len(codes) {
			b |= (byte(codes[i+1]) & 0x0F) << 4
		}
		out[i/2] = b
	}
	return out
}

// Unpack reverses Pack. elements is the authoritative code count (stored in
// the tensor metadata); the packed stream alone cannot encode it for Q4.
func Unpack(data []byte, elements int, f Format) ([]int8, error) {
	if elements < 0 {
		return nil, fmt.Errorf("quant: invalid element count %d", elements)
	}
	if want := f.PackedSize(elements); len(data) != want {
		return nil, fmt.Errorf("quant: %s packed size mismatch: got %d bytes, want %d for %d elements",
			f, len(data), want, elements)
	}

	codes := make([]int8, elements)
	if f == Q8 {
		for i, b := range data {
			codes[i] = int8(b)
		}
		return codes, nil
	}

	for i := range codes {
		nib := data[i/2]
		if i%2 == 1 {
			nib >>= 4
		}
		codes[i] = signExtend4(nib & 0x0F)
	}
	return codes, nil
}

// signExtend4 widens a two's-complement nibble to int8 (eg 0xF -> -1).
func signExtend4(n byte) int8 {
	if n >= 8 {
		return int8(n) - 16
	}
	return int8(n)
}
