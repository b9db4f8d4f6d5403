package circleguard

import (
	"context"

	"github.com/himanishpuri/circleguard/pkg/circleguard/mods"
	"github.com/himanishpuri/circleguard/pkg/circleguard/replay"
	"github.com/himanishpuri/circleguard/pkg/circleguard/runs"
	"github.com/himanishpuri/circleguard/pkg/circleguard/settings"
	"github.com/himanishpuri/circleguard/pkg/models"
)

type Service interface {
	LookupBeatmap(ctx context.Context, beatmapID int) (*models.Beatmap, error)
	// BootstrapSnapshot downloads the snapshot if needed and waits for it.
	BootstrapSnapshot(ctx context.Context) error
	SnapshotReady() bool
	CacheStats(ctx context.Context) (CacheStats, error)
	ParseMods(s string) (mods.Mod, error)
	Accuracy(misses, c50, c100, c300 int) float64
	LoadPlayers(ctx context.Context, paths []string) ([]*replay.Player, error)
	SubmitRun(checks []runs.Check) (*runs.Run, error)
	CancelRun(id int) error
	GetRun(id int) (*runs.Run, error)
	RunStatus(id int) (runs.Status, error)
	RunUpdates() <-chan runs.Update
	Settings() *settings.Store
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
