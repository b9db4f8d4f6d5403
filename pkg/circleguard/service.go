package circleguard

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/circleguard/pkg/circleguard/cache"
	"github.com/himanishpuri/circleguard/pkg/circleguard/mods"
	"github.com/himanishpuri/circleguard/pkg/circleguard/osuapi"
	"github.com/himanishpuri/circleguard/pkg/circleguard/replay"
	"github.com/himanishpuri/circleguard/pkg/circleguard/retry"
	"github.com/himanishpuri/circleguard/pkg/circleguard/runs"
	"github.com/himanishpuri/circleguard/pkg/circleguard/settings"
	"github.com/himanishpuri/circleguard/pkg/circleguard/snapshot"
	"github.com/himanishpuri/circleguard/pkg/logger"
	"github.com/himanishpuri/circleguard/pkg/models"
)

// ErrNoReplayParser is returned when replay files are given but no parser
// was configured with WithReplayParser.
var ErrNoReplayParser = errors.New("no replay parser configured")

// circleguardService is the default implementation of the Service interface.
type circleguardService struct {
	config   *Config
	log      Logger
	settings *settings.Store
	cache    *cache.Cache
	snapshot *snapshot.Downloader
	queue    *runs.Queue

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	task *snapshot.Task
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.Settings
	if store == nil {
		var err error
		store, err = settings.Open(cfg.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open settings: %w", err)
		}
	}
	if err := store.EnsureDefaults(); err != nil {
		return nil, fmt.Errorf("failed to populate default settings: %w", err)
	}

	// Settings drive the shared logger unless the caller brought their own
	if cfg.Logger == nil {
		cfg.Logger = configureLogger(store)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = store.String(settings.KeyAPIKey)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = store.String(settings.KeyCacheDir)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "."
	}
	snapshotPath := filepath.Join(cfg.CacheDir, SnapshotFile)

	api := osuapi.NewClient(cfg.APIKey)
	if cfg.APIBaseURL != "" {
		api.BaseURL = cfg.APIBaseURL
	}
	if cfg.HTTPClient != nil {
		api.HTTP = cfg.HTTPClient
	}

	var policy retry.Policy
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}

	dl := snapshot.New(cfg.SnapshotURL, snapshotPath)
	dl.SHA256 = cfg.SnapshotSHA256
	dl.Log = cfg.Logger
	if cfg.HTTPClient != nil {
		dl.HTTP = cfg.HTTPClient
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &circleguardService{
		config:   cfg,
		log:      cfg.Logger,
		settings: store,
		cache: cache.New(cache.Config{
			SnapshotPath: snapshotPath,
			Source:       api,
			Retry:        policy,
			Log:          cfg.Logger,
			Open:         newSnapshotOpener(cfg.Logger),
		}),
		snapshot: dl,
		ctx:      ctx,
		cancel:   cancel,
	}

	if !cfg.SkipBootstrap {
		s.startBootstrap()
	}

	exec := cfg.Executor
	if exec == nil {
		exec = s.execute
	}
	s.queue = runs.NewQueue(exec, cfg.Logger)

	s.log.Debugf("circleguard service ready (cache dir %s)", cfg.CacheDir)
	return s, nil
}

func configureLogger(store *settings.Store) *logger.Logger {
	l := logger.GetLogger()
	l.SetLevel(logger.LevelFromMode(store.Int(settings.KeyLogMode)))
	if store.Bool(settings.KeyLogSave) {
		f, err := logger.OpenLogFile(store.String(settings.KeyLogDir))
		if err != nil {
			l.Warnf("Could not open log file: %v", err)
		} else {
			l.AddFileOutput(f)
		}
	}
	l.Debugf("Log level %s", l.Level())
	return l
}

// startBootstrap begins a snapshot download unless one is running or done.
// A failed download is retried by the next call.
func (s *circleguardService) startBootstrap() *snapshot.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil {
		select {
		case <-s.task.Done():
			if s.task.Err() == nil {
				return s.task
			}
		default:
			return s.task
		}
	}
	s.task = s.snapshot.Start(s.ctx)
	return s.task
}

func (s *circleguardService) BootstrapSnapshot(ctx context.Context) error {
	return s.startBootstrap().Wait(ctx)
}

func (s *circleguardService) SnapshotReady() bool {
	return s.cache.SnapshotReady()
}

// LookupBeatmap returns metadata for beatmapID from the local cache, falling
// back to the osu! API.
func (s *circleguardService) LookupBeatmap(ctx context.Context, beatmapID int) (*models.Beatmap, error) {
	if beatmapID <= 0 {
		return nil, fmt.Errorf("invalid beatmap id %d", beatmapID)
	}
	return s.cache.Lookup(ctx, beatmapID)
}

func (s *circleguardService) CacheStats(ctx context.Context) (CacheStats, error) {
	stats := CacheStats{
		SnapshotPath:  s.snapshot.Path,
		SnapshotReady: s.cache.SnapshotReady(),
	}
	if !stats.SnapshotReady {
		return stats, nil
	}
	n, err := s.cache.Count(ctx)
	if err != nil {
		return stats, err
	}
	stats.Beatmaps = n
	stats.SizeBytes = fileSize(stats.SnapshotPath)
	stats.Size = humanize.Bytes(uint64(stats.SizeBytes))
	return stats, nil
}

func (s *circleguardService) ParseMods(str string) (mods.Mod, error) {
	return mods.Parse(str)
}

func (s *circleguardService) Accuracy(misses, c50, c100, c300 int) float64 {
	return replay.Accuracy(misses, c50, c100, c300)
}

// LoadPlayers parses every replay file concurrently and prepares them for
// display, in input order.
func (s *circleguardService) LoadPlayers(ctx context.Context, paths []string) ([]*replay.Player, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if s.config.ReplayParser == nil {
		return nil, ErrNoReplayParser
	}
	loader := &replay.Loader{Parse: s.config.ReplayParser, Workers: s.config.LoadWorkers}
	replays, err := loader.Load(ctx, paths)
	if err != nil {
		return nil, err
	}
	return replay.NewPlayers(replays), nil
}

func (s *circleguardService) SubmitRun(checks []runs.Check) (*runs.Run, error) {
	return s.queue.Submit(checks)
}

func (s *circleguardService) CancelRun(id int) error {
	return s.queue.Cancel(id)
}

func (s *circleguardService) GetRun(id int) (*runs.Run, error) {
	return s.queue.Get(id)
}

func (s *circleguardService) RunStatus(id int) (runs.Status, error) {
	return s.queue.Status(id)
}

func (s *circleguardService) RunUpdates() <-chan runs.Update {
	return s.queue.Updates()
}

func (s *circleguardService) Settings() *settings.Store {
	return s.settings
}

// Close stops the snapshot download and every run, then releases the cache.
func (s *circleguardService) Close() error {
	s.cancel()
	s.queue.Close()
	return s.cache.Close()
}

// execute is the default run executor. It resolves every check's beatmap and
// replays, reporting progress through the configured message templates.
func (s *circleguardService) execute(ctx context.Context, run *runs.Run, report func(runs.Status)) error {
	if len(run.Checks) == 0 {
		return fmt.Errorf("%w: run %d has no checks", runs.ErrInvalidArguments, run.ID)
	}

	for _, check := range run.Checks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if check.BeatmapID == 0 && len(check.ReplayPaths) == 0 {
			return fmt.Errorf("%w: %s check needs a beatmap or replays", runs.ErrInvalidArguments, check.Kind)
		}

		s.message(settings.KeyMessageLoadingInfo, map[string]any{
			"ts":         time.Now(),
			"check_type": string(check.Kind),
		})
		if check.BeatmapID != 0 {
			b, err := s.LookupBeatmap(ctx, check.BeatmapID)
			if err != nil {
				return fmt.Errorf("loading beatmap %d: %w", check.BeatmapID, err)
			}
			s.log.Debugf("run %d: %s check on %s", run.ID, check.Kind, b.Filename)
		}

		s.message(settings.KeyMessageLoadingReplays, map[string]any{
			"ts":          time.Now(),
			"num_replays": len(check.ReplayPaths),
		})
		players, err := s.LoadPlayers(ctx, check.ReplayPaths)
		if errors.Is(err, ErrNoReplayParser) {
			return fmt.Errorf("%w: %w", runs.ErrInvalidArguments, err)
		}
		if err != nil {
			return err
		}

		report(runs.StatusInvestigating)
		key := settings.KeyMessageStartingInvestigation
		if check.Kind == runs.CheckVisualize {
			key = settings.KeyMessageStartingVisualization
		}
		s.message(key, map[string]any{
			"ts":          time.Now(),
			"check_type":  string(check.Kind),
			"num_replays": len(players),
		})
		s.log.Debugf("run %d: %s threshold %.2f", run.ID, check.Kind, s.threshold(check))
	}

	s.message(settings.KeyMessageFinishedInvestigation, map[string]any{"ts": time.Now()})
	return nil
}

// threshold returns the check's own limit or the user's default for its kind.
func (s *circleguardService) threshold(check runs.Check) float64 {
	if check.Threshold > 0 {
		return check.Threshold
	}
	switch check.Kind {
	case runs.CheckSteal:
		return s.settings.Float(settings.KeyStealMaxSim)
	case runs.CheckRelax:
		return s.settings.Float(settings.KeyRelaxMaxUR)
	case runs.CheckCorrection:
		return s.settings.Float(settings.KeyCorrectionMaxAng)
	}
	return 0
}

// message renders a settings template and logs it. A broken user template
// is reported but never fails the run.
func (s *circleguardService) message(key string, fields map[string]any) {
	tmpl := s.settings.String(key)
	if tmpl == "" {
		return
	}
	out, err := settings.Format(tmpl, fields)
	if err != nil {
		s.log.Warnf("Bad %s template: %v", key, err)
		return
	}
	s.log.Infof("%s", out)
}
