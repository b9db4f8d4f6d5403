// Package cache looks beatmaps up in the local snapshot database and falls
// back to the remote API, persisting whatever the API returns.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/himanishpuri/circleguard/pkg/circleguard/osuapi"
	"github.com/himanishpuri/circleguard/pkg/circleguard/retry"
	"github.com/himanishpuri/circleguard/pkg/circleguard/storage"
	"github.com/himanishpuri/circleguard/pkg/logger"
	"github.com/himanishpuri/circleguard/pkg/models"
	"github.com/himanishpuri/circleguard/pkg/utils"
)

// ErrUnavailable is the marker returned when the remote API could not be
// reached after every retry. It also matches retry.ErrExhausted.
var ErrUnavailable = errors.New("cache: beatmap data unavailable")

// Source fetches one beatmap from the network.
type Source interface {
	GetBeatmap(ctx context.Context, beatmapID int) (*osuapi.Beatmap, error)
}

// Store is the local snapshot table.
type Store interface {
	GetBeatmap(ctx context.Context, beatmapID int) (*models.Beatmap, error)
	InsertBeatmap(ctx context.Context, b *models.Beatmap) (bool, error)
	CountBeatmaps(ctx context.Context) (int64, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

type Config struct {
	SnapshotPath string
	Source       Source
	// Retry defaults to retry.Fixed(osuapi.IsConnectionError) field by field.
	Retry retry.Policy
	Log   Logger
	// Open opens the snapshot once it exists. Defaults to storage.Open.
	Open func(path string) (Store, error)
}

type Cache struct {
	cfg Config

	mu    sync.Mutex
	store Store
}

func New(cfg Config) *Cache {
	if cfg.Log == nil {
		cfg.Log = logger.GetLogger()
	}
	if cfg.Open == nil {
		cfg.Open = func(path string) (Store, error) { return storage.Open(path) }
	}
	// Unset policy fields fall back to retry.Fixed; Sleep and OnRetry are kept.
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = retry.DefaultAttempts
		if cfg.Retry.Interval == 0 {
			cfg.Retry.Interval = retry.DefaultInterval
		}
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = osuapi.IsConnectionError
	}
	if cfg.Retry.OnRetry == nil {
		log := cfg.Log
		interval := cfg.Retry.Interval
		cfg.Retry.OnRetry = func(attempt int, err error) {
			log.Warnf("beatmap API unreachable (attempt %d): %v; retrying in %s", attempt, err, interval)
		}
	}
	return &Cache{cfg: cfg}
}

// SnapshotReady reports whether the snapshot database has been installed.
func (c *Cache) SnapshotReady() bool {
	return utils.FileExists(c.cfg.SnapshotPath)
}

// Lookup returns metadata for beatmapID. A cached row is returned as is; a
// miss is fetched remotely, inserted and returned. Without a snapshot the
// remote result is returned without being stored.
func (c *Cache) Lookup(ctx context.Context, beatmapID int) (*models.Beatmap, error) {
	if !c.SnapshotReady() {
		c.cfg.Log.Debugf("no snapshot yet, fetching beatmap %d remotely", beatmapID)
		return c.fetch(ctx, beatmapID)
	}

	store, err := c.openStore()
	if err != nil {
		return nil, err
	}

	b, err := store.GetBeatmap(ctx, beatmapID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, storage.ErrBeatmapNotFound) {
		return nil, err
	}

	b, err = c.fetch(ctx, beatmapID)
	if err != nil {
		return nil, err
	}
	inserted, err := store.InsertBeatmap(ctx, b)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// another caller stored it first; rows never change, so prefer theirs
		return store.GetBeatmap(ctx, beatmapID)
	}
	c.cfg.Log.Debugf("cached beatmap %d", beatmapID)
	return b, nil
}

// Count returns the number of cached rows, or 0 when no snapshot exists.
func (c *Cache) Count(ctx context.Context) (int64, error) {
	if !c.SnapshotReady() {
		return 0, nil
	}
	store, err := c.openStore()
	if err != nil {
		return 0, err
	}
	return store.CountBeatmaps(ctx)
}

func (c *Cache) fetch(ctx context.Context, beatmapID int) (*models.Beatmap, error) {
	if c.cfg.Source == nil {
		return nil, fmt.Errorf("%w: no remote source configured", ErrUnavailable)
	}
	raw, err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) (*osuapi.Beatmap, error) {
		return c.cfg.Source.GetBeatmap(ctx, beatmapID)
	})
	if errors.Is(err, retry.ErrExhausted) {
		c.cfg.Log.Warnf("giving up on beatmap %d: %v", beatmapID, err)
		return nil, errors.Join(ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return osuapi.ToModel(raw)
}

func (c *Cache) openStore() (Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store, nil
	}
	s, err := c.cfg.Open(c.cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("cache: opening snapshot: %w", err)
	}
	c.store = s
	return s, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
