package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/IshaanNene/skoolstalk/internal/config"
	"github.com/IshaanNene/skoolstalk/internal/types"
)

// Storage is the interface for all export backends.
type Storage interface {
	// Store buffers or persists a batch of records.
	Store(records []types.PostRecord) error

	// Close flushes pending writes and releases resources. File backends
	// write their output here, atomically.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

// Open builds the configured export backends behind one fan-out Storage.
// Every backend receives the identical record slice, so the JSON and CSV
// files from a run always agree on record set and order. Paths returns the
// files the fan-out will write.
func Open(cfg *config.OutputConfig, logger *slog.Logger) (Storage, []string, error) {
	base := cfg.Basename
	if base == "" {
		base = "skool_posts_" + time.Now().Format("20060102_150405")
	}

	var (
		backends []Storage
		paths    []string
	)
	for _, format := range cfg.Formats {
		switch format {
		case "json":
			path := filepath.Join(cfg.Dir, base+".json")
			s, err := NewJSONStorage(path, logger)
			if err != nil {
				return nil, nil, err
			}
			backends = append(backends, s)
			paths = append(paths, path)
		case "csv":
			path := filepath.Join(cfg.Dir, base+".csv")
			s, err := NewCSVStorage(path, logger)
			if err != nil {
				return nil, nil, err
			}
			backends = append(backends, s)
			paths = append(paths, path)
		case "mongodb":
			s, err := NewMongoStorage(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
			if err != nil {
				return nil, nil, err
			}
			backends = append(backends, s)
		default:
			return nil, nil, fmt.Errorf("unsupported output format: %s", format)
		}
	}

	return NewMultiStorage(backends, logger), paths, nil
}
