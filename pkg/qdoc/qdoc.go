// Package qdoc defines the quantized-model document: the single persisted
// artifact of a quantization run, holding every quantized tensor plus the
// run's aggregate stats.
package qdoc

import (
	"errors"
	"fmt"
)

// FormatTag identifies this document schema version.
const FormatTag = "helios-q4"

// Ext is the conventional file extension for quantized documents.
const Ext = ".helios.json"

var (
	ErrBadFormat    = errors.New("qdoc: unsupported document format")
	ErrInconsistent = errors.New("qdoc: inconsistent document")
)

// Weight is one quantized tensor record. Elements is authoritative for
// unpacking: a q4 data stream alone cannot distinguish a trailing zero code
// from odd-count padding.
type Weight struct {
	DType    string  `json:"dtype"` // "q4" or "q8"
	Scale    float32 `json:"scale"`
	Shape    []int   `json:"shape,omitempty"`
	Elements int     `json:"elements"`
	Data     []byte  `json:"data"`
}

// Stats is the run's aggregate accounting.
type Stats struct {
	TotalWeights     int                `json:"total_weights"`
	QuantizedWeights int                `json:"quantized_weights"`
	CompressionRatio float64            `json:"compression_ratio"`
	Scales           map[string]float32 `json:"scales"`
}

// Document is the persisted quantized model.
type Document struct {
	Format  string            `json:"format"`
	Weights map[string]Weight `json:"weights"`
	Stats   Stats             `json:"stats"`
}

// New assembles a document with the current format tag.
func New(weights map[string]Weight, stats Stats) *Document {
	return &Document{
		Format:  FormatTag,
		Weights: weights,
		Stats:   stats,
	}
}

// Validate checks internal consistency: the format tag, per-weight packed
// sizes and scales, and that the stats scale map and the weights map cover
// exactly the same tensors.
func (d *Document) Validate() error {
	if d.Format != FormatTag {
		return fmt.Errorf("%w: %q", ErrBadFormat, d.Format)
	}
	for name, w := range d.Weights {
		if err := w.validate(); err != nil {
			return fmt.Errorf("qdoc: weight %s: %w", name, err)
		}
		if _, ok := d.Stats.Scales[name]; !ok {
			return fmt.Errorf("%w: weight %s missing from stats scales", ErrInconsistent, name)
		}
	}
	for name := range d.Stats.Scales {
		if _, ok := d.Weights[name]; !ok {
			return fmt.Errorf("%w: stats scale %s has no weight entry", ErrInconsistent, name)
		}
	}
	return nil
}

func (w Weight) validate() error {
	if w.Scale <= 0 {
		return fmt.Errorf("non-positive scale %v", w.Scale)
	}
	if w.Elements <= 0 {
		return fmt.Errorf("invalid element count %d", w.Elements)
	}
	if len(w.Shape) > 0 {
		n := 1
		for _, dim := range w.Shape {
			if dim <= 0 {
				return fmt.Errorf("invalid shape dim %d", dim)
			}
			n *= dim
		}
		if n != w.Elements {
			return fmt.Errorf("shape product %d != elements %d", n, w.Elements)
		}
	}
	var want int
	switch w.DType {
	case "q4":
		want = (w.Elements + 1) / 2
	case "q8":
		want = w.Elements
	default:
		return fmt.Errorf("unknown dtype %q", w.DType)
	}
	if len(w.Data) != want {
		return fmt.Errorf("%s data size %d, want %d for %d elements", w.DType, len(w.Data), want, w.Elements)
	}
	return nil
}
