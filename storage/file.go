package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// ErrInvalidKey is returned for keys that cannot be mapped to a single file.
var ErrInvalidKey = errors.New("invalid storage key")

// FileBackend stores each item in its own file under a base directory.
// Files are created with owner-only permissions since items may hold
// decryption keys.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates the base directory if needed.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// GetItem reads the item stored under key.
func (b *FileBackend) GetItem(ctx context.Context, key string) (string, error) {
	filePath, err := b.getFilePath(key)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", interfaces.ErrItemNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched item from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return string(data), nil
}

// SetItem writes value through a temporary file so readers never see a
// partial item.
func (b *FileBackend) SetItem(ctx context.Context, key string, value string) error {
	filePath, err := b.getFilePath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.baseDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	b.log.Debug("Stored item in file", slog.String("path", filePath))
	return nil
}

// RemoveItem deletes the file for key.
func (b *FileBackend) RemoveItem(ctx context.Context, key string) error {
	filePath, err := b.getFilePath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// Available checks that the base directory still exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) getFilePath(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".tmp-") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(b.baseDir, key), nil
}
