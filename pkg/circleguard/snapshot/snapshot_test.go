package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/himanishpuri/circleguard/pkg/logger"
	"github.com/ulikunitz/xz"
)

var payload = bytes.Repeat([]byte("SQLite format 3\x00beatmaps"), 4096)

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("xz write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("xz close: %v", err)
	}
	return buf.Bytes()
}

func quietLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Output = io.Discard
	return logger.New(cfg)
}

func newDownloader(t *testing.T, body []byte, hits *int32) *Downloader {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	d := New(srv.URL+"/online.db.xz", filepath.Join(t.TempDir(), "cache", "online.db"))
	d.Log = quietLogger()
	return d
}

// assertNoTempFiles checks that no partial download is left next to the snapshot.
func assertNoTempFiles(t *testing.T, d *Downloader) {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(d.Path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != filepath.Base(d.Path) {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}
}

func TestFetchInstallsSnapshot(t *testing.T) {
	d := newDownloader(t, compress(t, payload), nil)

	if d.Exists() {
		t.Fatal("snapshot should not exist before Fetch")
	}
	if err := d.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !d.Exists() {
		t.Fatal("snapshot should exist after Fetch")
	}

	got, err := os.ReadFile(d.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("installed snapshot does not match decompressed payload")
	}
	assertNoTempFiles(t, d)
}

func TestFetchSkipsExistingSnapshot(t *testing.T) {
	var hits int32
	d := newDownloader(t, compress(t, payload), &hits)

	if err := os.MkdirAll(filepath.Dir(d.Path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(d.Path, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := d.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("Fetch should not download when the snapshot exists")
	}
}

func TestSnapshotInvisibleUntilRename(t *testing.T) {
	d := newDownloader(t, compress(t, payload), nil)

	var sawTemp bool
	d.afterWrite = func(tmpPath string) error {
		info, err := os.Stat(tmpPath)
		if err != nil {
			t.Fatalf("temp file missing before rename: %v", err)
		}
		sawTemp = info.Size() == int64(len(payload))
		if d.Exists() {
			t.Error("snapshot reported present before rename")
		}
		return nil
	}

	if err := d.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !sawTemp {
		t.Error("expected a fully written temp file before rename")
	}
	if !d.Exists() {
		t.Error("snapshot should be present after rename")
	}
}

func TestInterruptedDownloadLeavesNothing(t *testing.T) {
	full := compress(t, payload)
	d := newDownloader(t, full[:len(full)/2], nil)

	err := d.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected an error for a truncated stream")
	}
	if d.Exists() {
		t.Error("truncated download must not be visible")
	}
	assertNoTempFiles(t, d)
}

func TestInterruptBeforeRename(t *testing.T) {
	d := newDownloader(t, compress(t, payload), nil)
	crash := errors.New("process killed")
	d.afterWrite = func(string) error { return crash }

	if err := d.Fetch(context.Background()); !errors.Is(err, crash) {
		t.Fatalf("expected simulated crash, got %v", err)
	}
	if d.Exists() {
		t.Error("snapshot must stay absent when the rename never happened")
	}
	assertNoTempFiles(t, d)
}

func TestChecksumVerification(t *testing.T) {
	sum := sha256.Sum256(payload)

	t.Run("match", func(t *testing.T) {
		d := newDownloader(t, compress(t, payload), nil)
		d.SHA256 = hex.EncodeToString(sum[:])
		if err := d.Fetch(context.Background()); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if !d.Exists() {
			t.Error("verified snapshot should be installed")
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		d := newDownloader(t, compress(t, payload), nil)
		d.SHA256 = "00"
		err := d.Fetch(context.Background())
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
		if d.Exists() {
			t.Error("mismatched snapshot must not be installed")
		}
		assertNoTempFiles(t, d)
	})
}

func TestFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := New(srv.URL, filepath.Join(t.TempDir(), "online.db"))
	d.Log = quietLogger()
	if err := d.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 404")
	}
	if d.Exists() {
		t.Error("no snapshot should be installed after 404")
	}
}

func TestStartRunsInBackground(t *testing.T) {
	d := newDownloader(t, compress(t, payload), nil)

	task := d.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := task.Wait(ctx); err != nil {
		t.Fatalf("task failed: %v", err)
	}
	if task.Err() != nil {
		t.Errorf("Err() = %v after success", task.Err())
	}
	if !d.Exists() {
		t.Error("snapshot should exist after task completes")
	}
}

func TestStartCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	d := New(srv.URL, filepath.Join(t.TempDir(), "online.db"))
	d.Log = quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	task := d.Start(ctx)
	cancel()

	select {
	case <-task.Done():
		if task.Err() == nil {
			t.Error("expected an error from a cancelled download")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled task did not finish")
	}
	if d.Exists() {
		t.Error("cancelled download must not install a snapshot")
	}
}
