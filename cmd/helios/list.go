package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/heliosml/helios/internal/logger"
	"github.com/heliosml/helios/pkg/qdoc"
)

func listCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List quantized model documents",
		Flags:   []cli.Flag{modelsPathFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			dir := resolveModelsDir()
			if dir == "" {
				return cli.Exit("error: --models-path is required unless "+envHeliosModelsDir+" is set", 1)
			}

			docs, err := discoverDocuments(dir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(docs) == 0 {
				log.Info("no quantized documents found", "path", dir)
				return nil
			}

			fmt.Printf("Quantized models in %s:\n\n", dir)
			for _, path := range docs {
				name := filepath.Base(path)
				info, statErr := os.Stat(path)
				doc, readErr := qdoc.Read(path)
				switch {
				case readErr != nil || statErr != nil:
					fmt.Printf("  %s\n", name)
				default:
					fmt.Printf("  %-48s %8s  %d weight(s), ratio %.3f\n",
						name, formatDocSize(info.Size()), doc.Stats.QuantizedWeights, doc.Stats.CompressionRatio)
				}
			}
			fmt.Printf("\n%d document(s) found\n", len(docs))
			return nil
		},
	}
}

func formatDocSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
