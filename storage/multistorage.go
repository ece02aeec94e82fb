package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// MultiStorageBackend fans writes out to every available backend and reads
// from the first backend that has the item.
type MultiStorageBackend struct {
	backends []interfaces.KeyValueStorage
	log      *slog.Logger
}

func NewMultiStorageBackend(backends []interfaces.KeyValueStorage, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// GetItem returns ErrItemNotFound only when every reachable backend reports
// the item missing.
func (m *MultiStorageBackend) GetItem(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		value, err := backend.GetItem(ctx, key)
		if err == nil {
			m.log.Debug("Fetched item",
				slog.String("backend_name", backend.Name()),
				slog.Duration("duration", time.Since(start)))
			return value, nil
		}

		if errors.Is(err, interfaces.ErrItemNotFound) {
			notFound++
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			"err", err)
	}

	if len(errs) == 0 {
		if notFound > 0 {
			return "", interfaces.ErrItemNotFound
		}
		return "", interfaces.ErrBackendUnavailable
	}

	m.log.Warn("All backends failed to fetch item",
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return "", fmt.Errorf("%w: %w", interfaces.ErrBackendUnavailable, errors.Join(errs...))
}

// SetItem succeeds if at least one backend stored the value.
func (m *MultiStorageBackend) SetItem(ctx context.Context, key string, value string) error {
	start := time.Now()
	var errs []error
	stored := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if err := backend.SetItem(ctx, key, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}
		stored++
	}

	if stored == 0 {
		m.log.Error("All backends failed to store item",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("%w: all backends failed to store item: %w", interfaces.ErrBackendUnavailable, errors.Join(errs...))
	}
	return nil
}

// RemoveItem removes key from every available backend.
func (m *MultiStorageBackend) RemoveItem(ctx context.Context, key string) error {
	var errs []error
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}
		if err := backend.RemoveItem(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
