// Package snapshot downloads the compressed beatmap snapshot database and
// installs it atomically: readers either see no file or a complete one.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/circleguard/pkg/logger"
	"github.com/himanishpuri/circleguard/pkg/utils"
	"github.com/ulikunitz/xz"
)

// DefaultURL serves the periodically published xz-compressed online.db.
const DefaultURL = "https://cdn.circleguard.dev/online.db.xz"

// ErrChecksumMismatch is returned when a configured SHA-256 does not match
// the decompressed snapshot.
var ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

type Downloader struct {
	URL  string
	Path string
	HTTP *http.Client
	// SHA256 is the expected hex digest of the decompressed file. Empty
	// disables verification.
	SHA256 string
	Log    Logger

	// afterWrite runs between writing the temp file and renaming it.
	afterWrite func(tmpPath string) error
}

func New(url, path string) *Downloader {
	return &Downloader{
		URL:  url,
		Path: path,
		HTTP: &http.Client{Timeout: 10 * time.Minute},
		Log:  logger.GetLogger(),
	}
}

// Exists reports whether a complete snapshot is installed at Path.
func (d *Downloader) Exists() bool {
	return utils.FileExists(d.Path)
}

// Fetch downloads and installs the snapshot unless one already exists.
func (d *Downloader) Fetch(ctx context.Context) error {
	if d.Exists() {
		d.Log.Debugf("snapshot already present at %s", d.Path)
		return nil
	}
	if err := utils.MakeDir(filepath.Dir(d.Path)); err != nil {
		return fmt.Errorf("snapshot: creating cache dir: %w", err)
	}

	d.Log.Infof("Downloading beatmap snapshot from %s", d.URL)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return fmt.Errorf("snapshot: building request: %w", err)
	}
	httpClient := d.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot: fetching %s: %w", d.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("snapshot: fetching %s: unexpected status %s", d.URL, resp.Status)
	}

	n, err := d.install(resp.Body)
	if err != nil {
		return err
	}
	d.Log.Infof("Installed beatmap snapshot (%s) in %s", humanize.Bytes(uint64(n)), time.Since(start).Round(time.Millisecond))
	return nil
}

// install decompresses r into a temp sibling of Path and renames it into
// place. The temp file is removed on every failure path.
func (d *Downloader) install(r io.Reader) (n int64, err error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("snapshot: reading xz header: %w", err)
	}

	tmpPath := utils.TempSibling(d.Path)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("snapshot: creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			if rmErr := utils.RemoveIfExists(tmpPath); rmErr != nil {
				d.Log.Warnf("could not remove partial snapshot %s: %v", tmpPath, rmErr)
			}
		}
	}()

	var h hash.Hash
	w := io.Writer(f)
	if d.SHA256 != "" {
		h = sha256.New()
		w = io.MultiWriter(f, h)
	}

	n, err = io.Copy(w, zr)
	if err != nil {
		return n, fmt.Errorf("snapshot: decompressing: %w", err)
	}
	if err = f.Sync(); err != nil {
		return n, fmt.Errorf("snapshot: syncing temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return n, fmt.Errorf("snapshot: closing temp file: %w", err)
	}

	if h != nil {
		got := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(got, d.SHA256) {
			err = fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, d.SHA256)
			return n, err
		}
	}

	if d.afterWrite != nil {
		if err = d.afterWrite(tmpPath); err != nil {
			return n, err
		}
	}

	if err = utils.MoveFile(tmpPath, d.Path); err != nil {
		return n, fmt.Errorf("snapshot: %w", err)
	}
	utils.SyncDir(filepath.Dir(d.Path))
	return n, nil
}

// Task is a snapshot download running in the background.
type Task struct {
	done chan struct{}
	once sync.Once
	err  error
}

// Done is closed when the download finishes, fails, or is cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the outcome once Done is closed, nil before that.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Start runs Fetch in its own goroutine. Cancel ctx to abort it.
func (d *Downloader) Start(ctx context.Context) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		err := d.Fetch(ctx)
		if err != nil {
			d.Log.Warnf("beatmap snapshot download failed: %v", err)
		}
		t.finish(err)
	}()
	return t
}
