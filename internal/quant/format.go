package quant

import "fmt"

// Format selects the fixed-point encoding for a tensor's codes.
type Format uint8

const (
	// Q4 stores signed 4-bit codes in [-8, 7], two per byte.
	Q4 Format = iota
	// Q8 stores signed 8-bit codes in [-128, 127], one per byte.
	Q8
)

func (f Format) String() string {
	switch f {
	case Q4:
		return "q4"
	case Q8:
		return "q8"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat parses "q4" or "q8".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "q4":
		return Q4, nil
	case "q8":
		return Q8, nil
	default:
		return 0, fmt.Errorf("quant: unknown format %q (want q4 or q8)", s)
	}
}

// Bounds returns the closed representable code range for the format.
func (f Format) Bounds() (minCode, maxCode int32) {
	if f == Q4 {
		return -8, 7
	}
	return -128, 127
}

// PackedSize returns the byte length of the packed code stream for the
// given element count.
func (f Format) PackedSize(elements int) int {
	if f == Q4 {
		return (elements + 1) / 2
	}
	return elements
}
