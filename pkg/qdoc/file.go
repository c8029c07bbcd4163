package qdoc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// Write persists the document atomically: the JSON is staged in a temporary
// file next to the destination, synced, and renamed into place, so a crash
// or cancellation never leaves a truncated document visible to readers.
func Write(path string, d *Document) error {
	if err := d.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("qdoc: encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("qdoc: write %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".qdoc-*.tmp")
	if err != nil {
		return fmt.Errorf("qdoc: write %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("qdoc: write %s: %w", path, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("qdoc: write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("qdoc: write %s: %w", path, err)
	}
	return nil
}

// Read loads and validates a quantized-model document.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("qdoc: decode %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("qdoc: %s: %w", path, err)
	}
	return &d, nil
}
