package circleguard

import (
	"context"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/circleguard/pkg/circleguard/cache"
	"github.com/himanishpuri/circleguard/pkg/circleguard/storage"
	"github.com/himanishpuri/circleguard/pkg/models"
)

// storageAdapter wraps the snapshot DBClient so the service sees inserts
// made on behalf of the cache.
type storageAdapter struct {
	db  *storage.DBClient
	log Logger
}

// newSnapshotOpener returns the cache's Open hook: it opens the installed
// snapshot and logs what it holds.
func newSnapshotOpener(log Logger) func(path string) (cache.Store, error) {
	return func(path string) (cache.Store, error) {
		db, err := storage.Open(path)
		if err != nil {
			return nil, err
		}
		s := &storageAdapter{db: db, log: log}
		if n, err := db.CountBeatmaps(context.Background()); err == nil {
			log.Infof("Opened beatmap snapshot %s with %s beatmaps", path, humanize.Comma(n))
		}
		return s, nil
	}
}

func (s *storageAdapter) GetBeatmap(ctx context.Context, beatmapID int) (*models.Beatmap, error) {
	return s.db.GetBeatmap(ctx, beatmapID)
}

func (s *storageAdapter) InsertBeatmap(ctx context.Context, b *models.Beatmap) (bool, error) {
	inserted, err := s.db.InsertBeatmap(ctx, b)
	if err != nil {
		s.log.Errorf("Failed to cache beatmap %d: %v", b.BeatmapID, err)
		return false, err
	}
	if inserted {
		s.log.Debugf("Stored beatmap %d (%s)", b.BeatmapID, b.Filename)
	}
	return inserted, nil
}

func (s *storageAdapter) CountBeatmaps(ctx context.Context) (int64, error) {
	return s.db.CountBeatmaps(ctx)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

// fileSize returns the size of path, 0 if it cannot be read.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
