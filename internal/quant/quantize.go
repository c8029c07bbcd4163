package quant

import "math"

// Codes maps values to bounded integer codes: round(v/scale) with ties
// rounded away from zero (math.Round semantics, not ties-to-even), then
// clamped into the format's representable range. Clamping is the defined
// overflow policy, never an error. len(codes) == len(values).
func Codes(values []float32, scale float32, f Format) []int8 {
	minCode, maxCode := f.Bounds()
	codes := make([]int8, len(values))
	inv := 1 / float64(scale)
	for i, v := range values {
		c := math.Round(float64(v) * inv)
		switch {
		case math.IsNaN(c):
			codes[i] = 0
		case c < float64(minCode):
			codes[i] = int8(minCode)
		case c > float64(maxCode):
			codes[i] = int8(maxCode)
		default:
			codes[i] = int8(c)
		}
	}
	return codes
}

// Dequantize reconstructs approximate values as code*scale. The absolute
// error of a round trip is bounded by scale/2 for values inside the
// representable range.
func Dequantize(codes []int8, scale float32) []float32 {
	out := make([]float32, len(codes))
	for i, c := range codes {
		out[i] = float32(c) * scale
	}
	return out
}
