package main

import (
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/heliosml/helios/internal/logger"
)

var (
	modelsPath string
	logLevel   string
	logFormat  string
	debug      bool
)

func modelsPathFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "models-path",
		Aliases:     []string{"path"},
		Usage:       "path to directory containing quantized model documents",
		Destination: &modelsPath,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// newLogger builds the command logger from the logging flags.
func newLogger(w io.Writer) logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	switch logFormat {
	case "json":
		return logger.JSON(w, level)
	case "text":
		return logger.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	default:
		return logger.Pretty(w, level)
	}
}
