package models

import "time"

// GameMode is the ruleset a beatmap was made for.
type GameMode int

const (
	ModeStandard GameMode = 0
	ModeTaiko    GameMode = 1
	ModeCatch    GameMode = 2
	ModeMania    GameMode = 3
)

func (m GameMode) String() string {
	switch m {
	case ModeStandard:
		return "osu"
	case ModeTaiko:
		return "taiko"
	case ModeCatch:
		return "fruits"
	case ModeMania:
		return "mania"
	default:
		return "unknown"
	}
}

// Beatmap is one row of the local beatmap cache. Rows are keyed by
// BeatmapID and never change once stored.
type Beatmap struct {
	BeatmapID    int       `json:"beatmap_id"`
	BeatmapsetID int       `json:"beatmapset_id"`
	CreatorID    int       `json:"user_id"`
	Filename     string    `json:"filename"`
	Checksum     string    `json:"checksum"`
	Version      string    `json:"version"`
	CountTotal   int       `json:"count_total"`
	CountNormal  int       `json:"count_normal"`
	CountSlider  int       `json:"count_slider"`
	CountSpinner int       `json:"count_spinner"`
	Mode         GameMode  `json:"playmode"`
	Approved     int       `json:"approved"`
	TotalLength  int       `json:"total_length"`
	HitLength    int       `json:"hit_length"`
	DiffSize     float64   `json:"diff_size"`
	DiffOverall  float64   `json:"diff_overall"`
	DiffApproach float64   `json:"diff_approach"`
	DiffDrain    float64   `json:"diff_drain"`
	LastUpdate   time.Time `json:"last_update"`
}

// TotalObjects weighs hit objects the way the snapshot's count_total column
// does: circles count once, sliders twice, spinners three times.
func TotalObjects(normal, slider, spinner int) int {
	return normal + 2*slider + 3*spinner
}
