package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/circleguard/pkg/models"
	"github.com/himanishpuri/circleguard/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "online.db"
const errDBClientNil = "db client is nil"

// timeLayout is how last_update is stored in the snapshot.
const timeLayout = "2006-01-02 15:04:05"

var (
	// ErrSnapshotMissing is returned by Open when the snapshot file is absent.
	ErrSnapshotMissing = errors.New("storage: snapshot database does not exist")
	// ErrBeatmapNotFound is returned when no row matches the beatmap id.
	ErrBeatmapNotFound = errors.New("storage: beatmap not found")
)

type DBClient struct {
	DB *gorm.DB
	db *sql.DB

	// single writer
	writeMu sync.Mutex
}

// Beatmap is the row layout of the snapshot's beatmaps table.
type Beatmap struct {
	BeatmapID    int     `gorm:"column:beatmap_id;primaryKey;autoIncrement:false"`
	BeatmapsetID int     `gorm:"column:beatmapset_id;index:idx_beatmapset"`
	UserID       int     `gorm:"column:user_id"`
	Filename     string  `gorm:"column:filename"`
	Checksum     string  `gorm:"column:checksum;index:idx_checksum"`
	Version      string  `gorm:"column:version"`
	CountTotal   int     `gorm:"column:count_total"`
	CountNormal  int     `gorm:"column:count_normal"`
	CountSlider  int     `gorm:"column:count_slider"`
	CountSpinner int     `gorm:"column:count_spinner"`
	Playmode     int     `gorm:"column:playmode"`
	Approved     int     `gorm:"column:approved"`
	TotalLength  int     `gorm:"column:total_length"`
	HitLength    int     `gorm:"column:hit_length"`
	DiffSize     float64 `gorm:"column:diff_size"`
	DiffOverall  float64 `gorm:"column:diff_overall"`
	DiffApproach float64 `gorm:"column:diff_approach"`
	DiffDrain    float64 `gorm:"column:diff_drain"`
	LastUpdate   string  `gorm:"column:last_update"`
}

func (Beatmap) TableName() string { return "beatmaps" }

// Open opens an existing snapshot database. It never creates one: a missing
// file means the snapshot has not been downloaded yet.
func Open(dbPath string) (*DBClient, error) {
	if !utils.FileExists(dbPath) {
		return nil, ErrSnapshotMissing
	}
	return open(dbPath)
}

// Create opens dbPath, creating the file and its directory when needed.
func Create(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}
	return open(dbPath)
}

func open(dbPath string) (*DBClient, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(10000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Beatmap{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// GetBeatmap returns the cached row for beatmapID or ErrBeatmapNotFound.
func (c *DBClient) GetBeatmap(ctx context.Context, beatmapID int) (*models.Beatmap, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var row Beatmap
	err := c.DB.WithContext(ctx).Where("beatmap_id = ?", beatmapID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBeatmapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying beatmap %d: %w", beatmapID, err)
	}
	return row.toModel()
}

// InsertBeatmap stores b unless a row with the same id already exists.
// It reports whether a new row was written.
func (c *DBClient) InsertBeatmap(ctx context.Context, b *models.Beatmap) (bool, error) {
	if c == nil || c.DB == nil {
		return false, errors.New(errDBClientNil)
	}

	row := fromModel(b)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	res := c.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("inserting beatmap %d: %w", b.BeatmapID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CountBeatmaps returns the number of cached rows.
func (c *DBClient) CountBeatmaps(ctx context.Context) (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.WithContext(ctx).Model(&Beatmap{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting beatmaps: %w", err)
	}
	return count, nil
}

func (r *Beatmap) toModel() (*models.Beatmap, error) {
	b := &models.Beatmap{
		BeatmapID:    r.BeatmapID,
		BeatmapsetID: r.BeatmapsetID,
		CreatorID:    r.UserID,
		Filename:     r.Filename,
		Checksum:     r.Checksum,
		Version:      r.Version,
		CountTotal:   r.CountTotal,
		CountNormal:  r.CountNormal,
		CountSlider:  r.CountSlider,
		CountSpinner: r.CountSpinner,
		Mode:         models.GameMode(r.Playmode),
		Approved:     r.Approved,
		TotalLength:  r.TotalLength,
		HitLength:    r.HitLength,
		DiffSize:     r.DiffSize,
		DiffOverall:  r.DiffOverall,
		DiffApproach: r.DiffApproach,
		DiffDrain:    r.DiffDrain,
	}
	if r.LastUpdate != "" {
		t, err := time.Parse(timeLayout, r.LastUpdate)
		if err != nil {
			return nil, fmt.Errorf("beatmap %d: bad last_update %q: %w", r.BeatmapID, r.LastUpdate, err)
		}
		b.LastUpdate = t
	}
	return b, nil
}

func fromModel(b *models.Beatmap) Beatmap {
	row := Beatmap{
		BeatmapID:    b.BeatmapID,
		BeatmapsetID: b.BeatmapsetID,
		UserID:       b.CreatorID,
		Filename:     b.Filename,
		Checksum:     b.Checksum,
		Version:      b.Version,
		CountTotal:   b.CountTotal,
		CountNormal:  b.CountNormal,
		CountSlider:  b.CountSlider,
		CountSpinner: b.CountSpinner,
		Playmode:     int(b.Mode),
		Approved:     b.Approved,
		TotalLength:  b.TotalLength,
		HitLength:    b.HitLength,
		DiffSize:     b.DiffSize,
		DiffOverall:  b.DiffOverall,
		DiffApproach: b.DiffApproach,
		DiffDrain:    b.DiffDrain,
	}
	if !b.LastUpdate.IsZero() {
		row.LastUpdate = b.LastUpdate.UTC().Format(timeLayout)
	}
	return row
}
