package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/heliosml/helios/pkg/qdoc"
)

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the contents of a quantized model document",
		ArgsUsage: "<document" + qdoc.Ext + ">",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("usage: helios inspect <document>", 1)
			}
			path := cmd.Args().First()

			doc, err := qdoc.Read(path)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(doc.Weights))
			for name := range doc.Weights {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Printf("format: %s\n\n", doc.Format)
			for _, name := range names {
				w := doc.Weights[name]
				fmt.Printf("  %-48s %-3s scale=%-12g shape=%v bytes=%d\n",
					name, w.DType, w.Scale, w.Shape, len(w.Data))
			}
			fmt.Printf("\ntotal weights:     %d\n", doc.Stats.TotalWeights)
			fmt.Printf("quantized weights: %d\n", doc.Stats.QuantizedWeights)
			fmt.Printf("compression ratio: %.3f\n", doc.Stats.CompressionRatio)
			return nil
		},
	}
}
