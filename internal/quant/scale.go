package quant

// Scale computes the per-tensor scale factor for the given format.
//
// The scale maps the largest-magnitude value exactly onto the format's
// maximum positive code (max_abs/7 for Q4, max_abs/127 for Q8), so clamping
// only ever engages due to rounding. An all-zero tensor gets scale 1.0:
// every code divides cleanly to zero and reconstruction stays exact.
// The returned scale is always strictly positive.
func Scale(values []float32, f Format) float32 {
	var maxAbs float32
	for _, v := range values {
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}
	if maxAbs == 0 {
		return 1.0
	}
	_, maxCode := f.Bounds()
	return maxAbs / float32(maxCode)
}
