// Package artifact manages the two on-disk staging areas for uploaded
// originals and converted outputs. Every staged file is addressed by a
// collision-free storage key of the form <uuid>_<sanitizedName>; nothing
// else in the service touches the staging directories directly.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category identifies which staging area owns an artifact
type Category string

const (
	// CategoryUpload is the staging area for uploaded originals
	CategoryUpload Category = "upload"
	// CategoryConverted is the staging area for conversion outputs
	CategoryConverted Category = "converted"
)

var (
	// ErrNotFound is returned when a storage key does not resolve to a file
	ErrNotFound = errors.New("artifact not found")
)

// Artifact describes one staged file
type Artifact struct {
	Key         string
	Path        string
	DisplayName string
	SizeBytes   int64
	CreatedAt   time.Time
}

// Store owns the upload and converted staging directories
type Store struct {
	uploadDir    string
	convertedDir string
	logger       *slog.Logger
}

// Config holds artifact store configuration
type Config struct {
	UploadDir    string
	ConvertedDir string
	Logger       *slog.Logger
}

// NewStore creates the staging directories and returns a store over them
func NewStore(cfg *Config) (*Store, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ConvertedDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create converted dir: %w", err)
	}

	return &Store{
		uploadDir:    cfg.UploadDir,
		convertedDir: cfg.ConvertedDir,
		logger:       cfg.Logger,
	}, nil
}

func (s *Store) dir(category Category) string {
	if category == CategoryConverted {
		return s.convertedDir
	}
	return s.uploadDir
}

// NewKey generates a collision-free storage key for a display name.
// Concurrent writers need no coordination: the uuid prefix makes keys
// unique regardless of the display name.
func NewKey(displayName string) string {
	return uuid.New().String() + "_" + SanitizeName(displayName)
}

// SanitizeName strips path components and any character that is not safe
// in a filename, so a hostile display name cannot escape the staging dir
func SanitizeName(name string) string {
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	sanitized := b.String()
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		return "file"
	}
	return sanitized
}

// Store writes bytes into the category's staging area under a fresh
// storage key and returns the artifact descriptor
func (s *Store) Store(category Category, displayName string, r io.Reader) (Artifact, error) {
	key := NewKey(displayName)
	path := filepath.Join(s.dir(category), key)

	f, err := os.Create(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to create artifact %s: %w", key, err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return Artifact{}, fmt.Errorf("failed to write artifact %s: %w", key, err)
	}

	return Artifact{
		Key:         key,
		Path:        path,
		DisplayName: SanitizeName(displayName),
		SizeBytes:   size,
		CreatedAt:   time.Now(),
	}, nil
}

// Placeholder reserves a path in the category's staging area without
// creating the file. Converters write their output there directly.
func (s *Store) Placeholder(category Category, key string) string {
	return filepath.Join(s.dir(category), key)
}

// Resolve maps a storage key back to an on-disk path for reading
func (s *Store) Resolve(category Category, key string) (string, error) {
	// A key is a single path element; reject anything that is not
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", ErrNotFound
	}

	path := filepath.Join(s.dir(category), key)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}

	return path, nil
}

// SizeOf returns the size of a staged file in bytes
func (s *Store) SizeOf(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, ErrNotFound
	}
	return info.Size(), nil
}

// Remove deletes a single artifact by key. A missing file is not an error.
func (s *Store) Remove(category Category, key string) error {
	path, err := s.Resolve(category, key)
	if err != nil {
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact %s: %w", key, err)
	}
	return nil
}

// EvictOlderThan deletes every artifact in the category older than age and
// returns the number removed. Individual deletion failures are logged and
// skipped so one bad entry never aborts the sweep.
func (s *Store) EvictOlderThan(category Category, age time.Duration) int {
	cutoff := time.Now().Add(-age)
	dir := s.dir(category)

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("Failed to read staging directory",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("Failed to evict artifact",
					slog.String("key", entry.Name()),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		removed++
	}

	return removed
}
