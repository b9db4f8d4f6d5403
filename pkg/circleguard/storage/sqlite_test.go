package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/circleguard/pkg/models"
)

// Helper function to create a temporary snapshot database
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "cache", DefaultDBFile)
	client, err := Create(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client, dbPath
}

func sampleBeatmap() *models.Beatmap {
	return &models.Beatmap{
		BeatmapID:    221777,
		BeatmapsetID: 39804,
		CreatorID:    2,
		Filename:     "xi - FREEDOM DiVE (Nakagawa-Kanon) [FOUR DIMENSIONS].osu",
		Checksum:     "da8aae79c8f3306b5d65ec951874a7fb",
		Version:      "FOUR DIMENSIONS",
		CountNormal:  1231,
		CountSlider:  744,
		CountSpinner: 8,
		CountTotal:   models.TotalObjects(1231, 744, 8),
		Mode:         models.ModeStandard,
		Approved:     1,
		TotalLength:  263,
		HitLength:    257,
		DiffSize:     4,
		DiffOverall:  8,
		DiffApproach: 9,
		DiffDrain:    6,
		LastUpdate:   time.Date(2014, 5, 18, 17, 16, 38, 0, time.UTC),
	}
}

// TestOpenMissingSnapshot verifies Open never creates an empty snapshot
func TestOpenMissingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDBFile)

	_, err := Open(path)
	if !errors.Is(err, ErrSnapshotMissing) {
		t.Fatalf("Expected ErrSnapshotMissing, got %v", err)
	}
}

// TestInsertAndGetBeatmap tests the insert/lookup round trip
func TestInsertAndGetBeatmap(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()
	want := sampleBeatmap()

	inserted, err := client.InsertBeatmap(ctx, want)
	if err != nil {
		t.Fatalf("Failed to insert beatmap: %v", err)
	}
	if !inserted {
		t.Fatal("Expected first insert to write a row")
	}

	got, err := client.GetBeatmap(ctx, want.BeatmapID)
	if err != nil {
		t.Fatalf("Failed to get beatmap: %v", err)
	}
	if *got != *want {
		t.Errorf("Round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

// TestInsertIsImmutable tests that a second insert never overwrites a row
func TestInsertIsImmutable(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()

	first := sampleBeatmap()
	if _, err := client.InsertBeatmap(ctx, first); err != nil {
		t.Fatalf("Failed to insert beatmap: %v", err)
	}

	second := sampleBeatmap()
	second.Version = "changed"
	inserted, err := client.InsertBeatmap(ctx, second)
	if err != nil {
		t.Fatalf("Second insert returned error: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate insert to be ignored")
	}

	got, err := client.GetBeatmap(ctx, first.BeatmapID)
	if err != nil {
		t.Fatalf("Failed to get beatmap: %v", err)
	}
	if got.Version != first.Version {
		t.Errorf("Expected version %q, got %q", first.Version, got.Version)
	}
}

// TestGetBeatmapMiss tests the not-found sentinel
func TestGetBeatmapMiss(t *testing.T) {
	client, _ := setupTestDB(t)

	_, err := client.GetBeatmap(context.Background(), 1)
	if !errors.Is(err, ErrBeatmapNotFound) {
		t.Fatalf("Expected ErrBeatmapNotFound, got %v", err)
	}
}

// TestReopenSnapshot tests that Open reads rows written by an earlier client
func TestReopenSnapshot(t *testing.T) {
	client, path := setupTestDB(t)
	ctx := context.Background()

	if _, err := client.InsertBeatmap(ctx, sampleBeatmap()); err != nil {
		t.Fatalf("Failed to insert beatmap: %v", err)
	}
	client.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen snapshot: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.CountBeatmaps(ctx)
	if err != nil {
		t.Fatalf("Failed to count beatmaps: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 row, got %d", count)
	}
}

// TestNilClient tests the nil guard
func TestNilClient(t *testing.T) {
	var client *DBClient
	if _, err := client.GetBeatmap(context.Background(), 1); err == nil {
		t.Error("Expected error from nil client")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Expected nil from Close on nil client, got %v", err)
	}
}
