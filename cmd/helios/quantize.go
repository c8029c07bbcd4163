package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/heliosml/helios/internal/logger"
	"github.com/heliosml/helios/internal/quant"
	"github.com/heliosml/helios/internal/safetensors"
	"github.com/heliosml/helios/pkg/qdoc"
)

func quantizeCmd() *cli.Command {
	var (
		modelPath string
		output    string
		outputDir string
		format    string
		workers   int64
	)

	return &cli.Command{
		Name:  "quantize",
		Usage: "Quantize a safetensors model into a helios quantized document",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "path to .safetensors file",
				Required:    true,
				Destination: &modelPath,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"out"},
				Usage:       "output document path (default: <output-dir>/<model>" + qdoc.Ext + ")",
				Destination: &output,
			},
			&cli.StringFlag{
				Name:        "output-dir",
				Usage:       "output directory used when --output is not set",
				Destination: &outputDir,
			},
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "quantization format floor (q4, q8)",
				Value:       "q4",
				Destination: &format,
			},
			&cli.Int64Flag{
				Name:        "workers",
				Aliases:     []string{"w"},
				Usage:       "quantization worker count (0 = all CPUs)",
				Destination: &workers,
			},
		}, loggingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyQuantizeConfig(cmd, LoadConfig(), &outputDir, &format, &workers)

			log := newLogger(os.Stderr)
			ctx = logger.WithContext(ctx, log)

			floor, err := quant.ParseFormat(format)
			if err != nil {
				return err
			}
			outPath, err := resolveQuantizeOut(modelPath, output, outputDir)
			if err != nil {
				return err
			}

			src, err := safetensors.Open(modelPath)
			if err != nil {
				return fmt.Errorf("open model %s: %w", modelPath, err)
			}
			defer func() { _ = src.Close() }()

			log.Info("quantizing model", "model", modelPath, "format", floor.String(), "output", outPath)

			tensors, stats, err := quant.Run(ctx, quant.NewSafetensorsSource(src), quant.Options{
				Floor:   floor,
				Workers: int(workers),
			})
			if err != nil {
				return err
			}

			doc := qdoc.New(toWeights(tensors), qdoc.Stats{
				TotalWeights:     stats.TotalWeights,
				QuantizedWeights: stats.QuantizedWeights,
				CompressionRatio: stats.CompressionRatio,
				Scales:           stats.Scales,
			})
			if err := qdoc.Write(outPath, doc); err != nil {
				return err
			}

			fmt.Printf("Quantized %d tensor(s) -> %s (compression ratio %.3f)\n",
				stats.QuantizedWeights, outPath, stats.CompressionRatio)
			return nil
		},
	}
}

func toWeights(tensors map[string]quant.QuantizedTensor) map[string]qdoc.Weight {
	weights := make(map[string]qdoc.Weight, len(tensors))
	for name, t := range tensors {
		weights[name] = qdoc.Weight{
			DType:    t.Format.String(),
			Scale:    t.Scale,
			Shape:    t.Shape,
			Elements: t.Elements,
			Data:     t.Data,
		}
	}
	return weights
}
