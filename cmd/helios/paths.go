package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/heliosml/helios/pkg/qdoc"
)

const (
	envHeliosOutDir    = "HELIOS_OUT_DIR"
	envHeliosModelsDir = "HELIOS_MODELS_DIR"
)

// resolveQuantizeOut picks the output document path. An explicit --output
// wins; otherwise the document lands in --output-dir (or HELIOS_OUT_DIR,
// or ./quantized) named after the model file. Only the path is computed
// here; the directory is created when the document is written, so a run
// that fails before producing output leaves nothing behind.
func resolveQuantizeOut(modelPath, outFlag, outDirFlag string) (string, error) {
	outFlag = strings.TrimSpace(outFlag)
	if outFlag != "" {
		return filepath.Clean(outFlag), nil
	}

	base := filepath.Base(filepath.Clean(modelPath))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid model path: %q", modelPath)
	}

	outDir := strings.TrimSpace(outDirFlag)
	if outDir == "" {
		outDir = strings.TrimSpace(os.Getenv(envHeliosOutDir))
	}
	if outDir == "" {
		outDir = filepath.Join(".", "quantized")
	}
	return filepath.Join(outDir, base+qdoc.Ext), nil
}

// discoverDocuments lists quantized documents in dir, sorted by path.
func discoverDocuments(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("models directory is empty")
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	docs := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), qdoc.Ext) {
			continue
		}
		docs = append(docs, filepath.Join(dir, e.Name()))
	}
	sort.Strings(docs)
	return docs, nil
}

func resolveModelsDir() string {
	dir := strings.TrimSpace(modelsPath)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv(envHeliosModelsDir))
	}
	return dir
}
