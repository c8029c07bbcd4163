package quant

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/heliosml/helios/internal/logger"
)

// Source supplies named floating-point tensors to the pipeline. Info must be
// cheap (metadata only); Values is the I/O-bound decode and is only called
// for tensors that pass the policy gate.
type Source interface {
	Names() []string
	Info(name string) (TensorInfo, error)
	Values(name string) ([]float32, error)
}

// QuantizedTensor is one tensor's quantized representation.
type QuantizedTensor struct {
	Name     string
	Format   Format
	Scale    float32
	Shape    []int
	Elements int
	Data     []byte
}

// Options configures a pipeline run.
type Options struct {
	// Floor raises the format of eligible tensors, see Policy.
	Floor Format
	// Workers is the quantization worker count; <= 0 means GOMAXPROCS.
	Workers int
}

// work is a decoded tensor ready for the CPU-bound stage.
type work struct {
	name   string
	format Format
	info   TensorInfo
	values []float32
}

// Run quantizes every eligible tensor from src across a worker pool and
// returns the quantized tensors plus finalized stats.
//
// Tensor decode stays on the feeding goroutine so workers never block on
// I/O. Cancellation is honored at tensor boundaries: a cancelled run
// returns ctx.Err() and discards everything produced so far. A source read
// failure is fatal and aborts the run.
func Run(ctx context.Context, src Source, opts Options) (map[string]QuantizedTensor, Stats, error) {
	log := logger.FromContext(ctx)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	names := src.Names()
	if workers > len(names) && len(names) > 0 {
		workers = len(names)
	}

	policy := Policy{Floor: opts.Floor}
	agg := NewAggregator()

	var (
		mu  sync.Mutex
		out = make(map[string]QuantizedTensor, len(names))
	)

	jobs := make(chan work)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range jobs {
				qt := quantizeOne(w)
				agg.Record(w.name, qt.Scale, w.info.Elements*w.info.ElementSize, len(qt.Data))
				mu.Lock()
				out[w.name] = qt
				mu.Unlock()
			}
		}()
	}

	feedErr := func() error {
		for _, name := range names {
			info, err := src.Info(name)
			if err != nil {
				return fmt.Errorf("quant: read tensor %s: %w", name, err)
			}
			d := policy.Decide(name, info)
			if !d.Quantize {
				log.Debug("skipping tensor", "name", name, "dtype", info.DType, "elements", info.Elements)
				continue
			}
			values, err := src.Values(name)
			if err != nil {
				return fmt.Errorf("quant: read tensor %s: %w", name, err)
			}
			select {
			case jobs <- work{name: name, format: d.Format, info: info, values: values}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}()
	close(jobs)
	wg.Wait()

	if feedErr != nil {
		return nil, Stats{}, feedErr
	}
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	stats := agg.Finalize()
	log.Info("quantization complete",
		"tensors", stats.QuantizedWeights,
		"compression_ratio", stats.CompressionRatio,
	)
	return out, stats, nil
}

func quantizeOne(w work) QuantizedTensor {
	scale := Scale(w.values, w.format)
	codes := Codes(w.values, scale, w.format)
	return QuantizedTensor{
		Name:     w.name,
		Format:   w.format,
		Scale:    scale,
		Shape:    w.info.Shape,
		Elements: len(w.values),
		Data:     Pack(codes, w.format),
	}
}
