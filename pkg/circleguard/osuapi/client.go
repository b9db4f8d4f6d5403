// Package osuapi fetches single beatmap records from the osu! v1 API.
package osuapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/himanishpuri/circleguard/pkg/models"
)

const DefaultBaseURL = "https://osu.ppy.sh"

// ErrNoBeatmap is returned when the API answers with an empty result.
var ErrNoBeatmap = errors.New("osuapi: no beatmap with that id")

// ConnectionError marks a failure to reach the API at all (dial, reset,
// timeout, truncated body). Only these are worth retrying.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("osuapi: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is connection-class.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// StatusError is a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("osuapi: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Beatmap mirrors a get_beatmaps entry. The API encodes every value as a
// string, nullable ones as JSON null.
type Beatmap struct {
	BeatmapID    string  `json:"beatmap_id"`
	BeatmapsetID string  `json:"beatmapset_id"`
	CreatorID    string  `json:"creator_id"`
	Creator      string  `json:"creator"`
	Artist       string  `json:"artist"`
	Title        string  `json:"title"`
	Version      string  `json:"version"`
	FileMD5      string  `json:"file_md5"`
	CountNormal  string  `json:"count_normal"`
	CountSlider  string  `json:"count_slider"`
	CountSpinner string  `json:"count_spinner"`
	Mode         string  `json:"mode"`
	Approved     string  `json:"approved"`
	TotalLength  string  `json:"total_length"`
	HitLength    string  `json:"hit_length"`
	DiffSize     string  `json:"diff_size"`
	DiffOverall  string  `json:"diff_overall"`
	DiffApproach string  `json:"diff_approach"`
	DiffDrain    string  `json:"diff_drain"`
	LastUpdate   *string `json:"last_update"`
}

type Client struct {
	BaseURL string
	Key     string
	HTTP    *http.Client
}

func NewClient(key string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		Key:     key,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetBeatmap performs one request for beatmapID. It does not retry.
func (c *Client) GetBeatmap(ctx context.Context, beatmapID int) (*Beatmap, error) {
	q := url.Values{}
	q.Set("k", c.Key)
	q.Set("b", strconv.Itoa(beatmapID))
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/api/get_beatmaps?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("osuapi: building request: %w", err)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectionError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTransportFailure(err) {
			return nil, &ConnectionError{Op: "read body", Err: err}
		}
		return nil, fmt.Errorf("osuapi: reading body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var beatmaps []Beatmap
	if err := json.Unmarshal(body, &beatmaps); err != nil {
		return nil, fmt.Errorf("osuapi: decoding response: %w", err)
	}
	if len(beatmaps) == 0 {
		return nil, ErrNoBeatmap
	}
	return &beatmaps[0], nil
}

func isTransportFailure(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ToModel maps an API record onto the cache schema field by field.
func ToModel(b *Beatmap) (*models.Beatmap, error) {
	p := parser{}
	out := &models.Beatmap{
		BeatmapID:    p.int("beatmap_id", b.BeatmapID),
		BeatmapsetID: p.int("beatmapset_id", b.BeatmapsetID),
		CreatorID:    p.int("creator_id", b.CreatorID),
		Filename:     Filename(b.Artist, b.Title, b.Creator, b.Version),
		Checksum:     b.FileMD5,
		Version:      b.Version,
		CountNormal:  p.int("count_normal", b.CountNormal),
		CountSlider:  p.int("count_slider", b.CountSlider),
		CountSpinner: p.int("count_spinner", b.CountSpinner),
		Mode:         models.GameMode(p.int("mode", b.Mode)),
		Approved:     p.int("approved", b.Approved),
		TotalLength:  p.int("total_length", b.TotalLength),
		HitLength:    p.int("hit_length", b.HitLength),
		DiffSize:     p.float("diff_size", b.DiffSize),
		DiffOverall:  p.float("diff_overall", b.DiffOverall),
		DiffApproach: p.float("diff_approach", b.DiffApproach),
		DiffDrain:    p.float("diff_drain", b.DiffDrain),
	}
	if b.LastUpdate != nil && *b.LastUpdate != "" {
		t, err := time.Parse("2006-01-02 15:04:05", *b.LastUpdate)
		if err != nil && p.err == nil {
			p.err = fmt.Errorf("osuapi: field last_update: %w", err)
		}
		out.LastUpdate = t
	}
	if p.err != nil {
		return nil, p.err
	}
	out.CountTotal = models.TotalObjects(out.CountNormal, out.CountSlider, out.CountSpinner)
	return out, nil
}

// Filename builds the conventional .osu file name, dropping characters that
// are not allowed in file names.
func Filename(artist, title, creator, version string) string {
	name := fmt.Sprintf("%s - %s (%s) [%s].osu", artist, title, creator, version)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name)
}

// parser keeps the first conversion failure so ToModel reads as a flat list.
type parser struct {
	err error
}

func (p *parser) int(field, v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("osuapi: field %s: %w", field, err)
	}
	return n
}

func (p *parser) float(field, v string) float64 {
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("osuapi: field %s: %w", field, err)
	}
	return f
}
