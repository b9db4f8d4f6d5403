package replay

import (
	"github.com/himanishpuri/circleguard/pkg/circleguard/mods"
	"github.com/lucasb-eyer/go-colorful"
)

// PlayfieldHeight is the osu! playfield height; HR replays are mirrored
// vertically across it.
const PlayfieldHeight = 384

const (
	cursorSaturation = 0.75
	cursorLightness  = 0.5
)

// Player is a replay prepared for display. It is never modified after
// NewPlayers returns it.
type Player struct {
	username string
	mods     string
	color    colorful.Color
	frames   []Frame
	replay   *Replay
}

// NewPlayers builds one Player per replay. Colours are spread evenly around
// the hue circle in input order; HR replays get their Y axis flipped so all
// cursors share the same orientation.
func NewPlayers(replays []*Replay) []*Player {
	players := make([]*Player, 0, len(replays))
	n := len(replays)
	for i, r := range replays {
		frames := make([]Frame, len(r.Frames))
		copy(frames, r.Frames)
		if r.Mods.Has(mods.HardRock) {
			for j := range frames {
				frames[j].Y = PlayfieldHeight - frames[j].Y
			}
		}
		hue := float64(i) / float64(n) * 360
		players = append(players, &Player{
			username: r.Username,
			mods:     r.Mods.ShortName(),
			color:    colorful.Hsl(hue, cursorSaturation, cursorLightness),
			frames:   frames,
			replay:   r,
		})
	}
	return players
}

func (p *Player) Username() string { return p.username }
func (p *Player) Mods() string     { return p.mods }
func (p *Player) Replay() *Replay  { return p.replay }

// Color returns the cursor colour as #rrggbb.
func (p *Player) Color() string { return p.color.Hex() }

// Frames returns a copy of the (possibly flipped) cursor data.
func (p *Player) Frames() []Frame {
	out := make([]Frame, len(p.frames))
	copy(out, p.frames)
	return out
}

// FrameAt returns the index of the first frame strictly after t.
func (p *Player) FrameAt(t int) int {
	lo, hi := 0, len(p.frames)
	for lo < hi {
		mid := (lo + hi) / 2
		if p.frames[mid].Time <= t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// PlaybackLength is the latest frame time across players, 0 if none.
func PlaybackLength(players []*Player) int {
	longest := 0
	for _, p := range players {
		if n := len(p.frames); n > 0 && p.frames[n-1].Time > longest {
			longest = p.frames[n-1].Time
		}
	}
	return longest
}
