// Package mods models osu! gameplay modifiers as a bit set and converts
// between that set and the two-letter mod strings users type.
package mods

import (
	"errors"
	"fmt"
	"strings"
)

type Mod uint32

const NoMod Mod = 0

const (
	NoFail Mod = 1 << iota
	Easy
	TouchDevice
	Hidden
	HardRock
	suddenDeath
	doubleTime
	Relax
	HalfTime
	nightcore
	Flashlight
	Autoplay
	SpunOut
	Autopilot
	perfect
	Key4
	Key5
	Key6
	Key7
	Key8
	FadeIn
	Random
	Cinema
	Target
	Key9
	KeyCoop
	Key1
	Key3
	Key2
	ScoreV2
	Mirror
)

// Nightcore and Perfect always carry the mod they extend, matching what the
// game writes into replays.
const (
	SuddenDeath = suddenDeath
	DoubleTime  = doubleTime
	Nightcore   = nightcore | doubleTime
	Perfect     = perfect | suddenDeath
)

var codes = map[string]Mod{
	"NM": NoMod,
	"NF": NoFail,
	"EZ": Easy,
	"TD": TouchDevice,
	"HD": Hidden,
	"HR": HardRock,
	"SD": SuddenDeath,
	"DT": DoubleTime,
	"RX": Relax,
	"HT": HalfTime,
	"NC": Nightcore,
	"FL": Flashlight,
	"AT": Autoplay,
	"SO": SpunOut,
	"AP": Autopilot,
	"PF": Perfect,
	"K4": Key4,
	"K5": Key5,
	"K6": Key6,
	"K7": Key7,
	"K8": Key8,
	"FI": FadeIn,
	"RD": Random,
	"CN": Cinema,
	"TP": Target,
	"K9": Key9,
	"CO": KeyCoop,
	"K1": Key1,
	"K3": Key3,
	"K2": Key2,
	"V2": ScoreV2,
	"MR": Mirror,
}

// order is the display order used by ShortName.
var order = []struct {
	code string
	mod  Mod
}{
	{"AT", Autoplay}, {"CN", Cinema}, {"RX", Relax}, {"AP", Autopilot},
	{"SO", SpunOut}, {"EZ", Easy}, {"NF", NoFail}, {"HT", HalfTime},
	{"HD", Hidden}, {"FI", FadeIn}, {"HR", HardRock}, {"NC", Nightcore},
	{"DT", DoubleTime}, {"FL", Flashlight}, {"PF", Perfect},
	{"SD", SuddenDeath}, {"TD", TouchDevice}, {"TP", Target},
	{"RD", Random}, {"MR", Mirror}, {"CO", KeyCoop}, {"K1", Key1},
	{"K2", Key2}, {"K3", Key3}, {"K4", Key4}, {"K5", Key5}, {"K6", Key6},
	{"K7", Key7}, {"K8", Key8}, {"K9", Key9}, {"V2", ScoreV2},
}

// ErrInvalidMod is matched by every InvalidModError.
var ErrInvalidMod = errors.New("invalid mod string")

type Reason int

const (
	ReasonOddLength Reason = iota
	ReasonUnknownCode
)

type InvalidModError struct {
	Input  string
	Reason Reason
	// Code is the unrecognised pair for ReasonUnknownCode.
	Code string
}

func (e *InvalidModError) Error() string {
	switch e.Reason {
	case ReasonOddLength:
		return fmt.Sprintf("invalid mod string %s (not of even length)", e.Input)
	default:
		return fmt.Sprintf("invalid mod string %s (no matching mod found for %s)", e.Input, e.Code)
	}
}

func (e *InvalidModError) Is(target error) bool { return target == ErrInvalidMod }

// Parse combines a string of two-letter codes such as "HDDT" into a Mod.
// Codes are case-insensitive; "" and "NM" mean no mods.
func Parse(s string) (Mod, error) {
	if len(s)%2 != 0 {
		return NoMod, &InvalidModError{Input: s, Reason: ReasonOddLength}
	}
	m := NoMod
	for i := 0; i < len(s); i += 2 {
		// Upper-case pair by pair: case mapping can change the byte length
		// of non-ASCII input.
		v, ok := codes[strings.ToUpper(s[i:i+2])]
		if !ok {
			return NoMod, &InvalidModError{Input: s, Reason: ReasonUnknownCode, Code: s[i : i+2]}
		}
		m |= v
	}
	return m, nil
}

// ParseOptional is Parse, except an empty string returns nil ("any mods").
func ParseOptional(s string) (*Mod, error) {
	if s == "" {
		return nil, nil
	}
	m, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Has reports whether every bit of other is set in m.
func (m Mod) Has(other Mod) bool {
	return m&other == other
}

// ShortName renders m as concatenated codes, e.g. "HDNC". NC hides DT and PF
// hides SD.
func (m Mod) ShortName() string {
	if m == NoMod {
		return "NM"
	}
	var b strings.Builder
	remaining := m
	for _, o := range order {
		if remaining&o.mod == o.mod && remaining&o.mod != 0 {
			b.WriteString(o.code)
			remaining &^= o.mod
		}
	}
	return b.String()
}

func (m Mod) String() string { return m.ShortName() }
