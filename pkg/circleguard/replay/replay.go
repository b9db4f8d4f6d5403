// Package replay holds parsed replays, the per-replay Player view used for
// rendering, and helpers to load many replay files at once.
package replay

import (
	"math"

	"github.com/himanishpuri/circleguard/pkg/circleguard/mods"
)

// Frame is one cursor sample: time in ms since start, position in osu!pixels
// and the pressed-key bit set.
type Frame struct {
	Time int
	X    float64
	Y    float64
	Keys int
}

// Replay is a parsed replay. Parsing itself lives outside this module.
type Replay struct {
	Username  string
	UserID    int
	BeatmapID int
	Mods      mods.Mod
	Frames    []Frame

	Count300  int
	Count100  int
	Count50   int
	CountMiss int
}

// Accuracy returns the replay's accuracy as a percentage.
func (r *Replay) Accuracy() float64 {
	return Accuracy(r.CountMiss, r.Count50, r.Count100, r.Count300)
}

// Accuracy computes osu!standard accuracy in percent, rounded to two
// decimals. No judgements at all yields 0.
func Accuracy(misses, c50, c100, c300 int) float64 {
	total := misses + c50 + c100 + c300
	if total <= 0 {
		return 0
	}
	points := 50*c50 + 100*c100 + 300*c300
	acc := float64(points) / float64(300*total) * 100
	return math.Round(acc*100) / 100
}
