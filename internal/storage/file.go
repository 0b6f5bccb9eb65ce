package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/IshaanNene/skoolstalk/internal/types"
)

// File backends buffer every record in memory and write the whole output at
// Close, to a temp file renamed over the destination. A truncated JSON array
// or a half-written CSV is never visible: either the full file appears or
// nothing does, and any failure is a fatal ExportError.

// --- JSON Storage ---

// JSONStorage writes records as an indented JSON array.
type JSONStorage struct {
	path    string
	records []types.PostRecord
	logger  *slog.Logger
}

// NewJSONStorage creates a JSON file backend.
func NewJSONStorage(outputPath string, logger *slog.Logger) (*JSONStorage, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, &types.ExportError{Backend: "json", Path: outputPath, Err: fmt.Errorf("create output dir: %w", err)}
	}
	return &JSONStorage{
		path:   outputPath,
		logger: logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

func (s *JSONStorage) Store(records []types.PostRecord) error {
	s.records = append(s.records, records...)
	return nil
}

func (s *JSONStorage) Close() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	// An empty run still produces a valid, parseable array.
	out := s.records
	if out == nil {
		out = []types.PostRecord{}
	}
	if err := enc.Encode(out); err != nil {
		return &types.ExportError{Backend: "json", Path: s.path, Err: fmt.Errorf("encode JSON: %w", err)}
	}

	if err := writeAtomic(s.path, buf.Bytes()); err != nil {
		return &types.ExportError{Backend: "json", Path: s.path, Err: err}
	}

	s.logger.Info("JSON written", "path", s.path, "records", len(s.records))
	return nil
}

// --- CSV Storage ---

// CSVStorage writes records as CSV with a fixed header order.
type CSVStorage struct {
	path    string
	records []types.PostRecord
	logger  *slog.Logger
}

// NewCSVStorage creates a CSV file backend.
func NewCSVStorage(outputPath string, logger *slog.Logger) (*CSVStorage, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, &types.ExportError{Backend: "csv", Path: outputPath, Err: fmt.Errorf("create output dir: %w", err)}
	}
	return &CSVStorage{
		path:   outputPath,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

func (s *CSVStorage) Store(records []types.PostRecord) error {
	s.records = append(s.records, records...)
	return nil
}

func (s *CSVStorage) Close() error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(types.CSVHeader()); err != nil {
		return &types.ExportError{Backend: "csv", Path: s.path, Err: fmt.Errorf("write CSV header: %w", err)}
	}
	for _, rec := range s.records {
		if err := w.Write(rec.CSVRow()); err != nil {
			return &types.ExportError{Backend: "csv", Path: s.path, Err: fmt.Errorf("write CSV row: %w", err)}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &types.ExportError{Backend: "csv", Path: s.path, Err: err}
	}

	if err := writeAtomic(s.path, buf.Bytes()); err != nil {
		return &types.ExportError{Backend: "csv", Path: s.path, Err: err}
	}

	s.logger.Info("CSV written", "path", s.path, "records", len(s.records))
	return nil
}

// writeAtomic writes data to path via a sibling temp file and rename, so a
// failure partway through leaves the destination untouched.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize output: %w", err)
	}
	return nil
}
