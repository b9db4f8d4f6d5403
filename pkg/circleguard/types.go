package circleguard

// CacheStats describes the local beatmap cache.
type CacheStats struct {
	SnapshotPath  string `json:"snapshot_path"`
	SnapshotReady bool   `json:"snapshot_ready"`
	Beatmaps      int64  `json:"beatmaps"`      // Rows in the snapshot, 0 without one
	SizeBytes     int64  `json:"size_bytes"`    // Snapshot file size on disk
	Size          string `json:"size,omitempty"` // Human readable SizeBytes
}
