package mods

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Mod
	}{
		{"", NoMod},
		{"NM", NoMod},
		{"HD", Hidden},
		{"HDHR", Hidden | HardRock},
		{"hddt", Hidden | DoubleTime},
		{"NC", Nightcore},
		{"HDNC", Hidden | DoubleTime | 512},
		{"PF", SuddenDeath | 16384},
		{"EZHTFL", Easy | HalfTime | Flashlight},
		{"HDHD", Hidden},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseValues(t *testing.T) {
	// values as the game stores them
	m, _ := Parse("HDDT")
	if uint32(m) != 72 {
		t.Errorf("HDDT = %d, want 72", m)
	}
	m, _ = Parse("NC")
	if uint32(m) != 576 {
		t.Errorf("NC = %d, want 576", m)
	}
}

func TestParseOddLength(t *testing.T) {
	_, err := Parse("HDD")
	var ime *InvalidModError
	if !errors.As(err, &ime) {
		t.Fatalf("expected InvalidModError, got %v", err)
	}
	if ime.Reason != ReasonOddLength {
		t.Errorf("reason = %v, want ReasonOddLength", ime.Reason)
	}
	if !errors.Is(err, ErrInvalidMod) {
		t.Error("expected errors.Is(err, ErrInvalidMod)")
	}
}

func TestParseUnknownCode(t *testing.T) {
	_, err := Parse("HDXX")
	var ime *InvalidModError
	if !errors.As(err, &ime) {
		t.Fatalf("expected InvalidModError, got %v", err)
	}
	if ime.Reason != ReasonUnknownCode || ime.Code != "XX" {
		t.Errorf("got reason %v code %q, want unknown XX", ime.Reason, ime.Code)
	}
	if !errors.Is(err, ErrInvalidMod) {
		t.Error("expected errors.Is(err, ErrInvalidMod)")
	}
}

func TestParseMultibyte(t *testing.T) {
	// ı and ſ upper-case to one-byte letters, é stays two bytes.
	for _, in := range []string{"DTı", "HDſ", "ıı", "éé"} {
		_, err := Parse(in)
		var ime *InvalidModError
		if !errors.As(err, &ime) {
			t.Errorf("Parse(%q) = %v, want InvalidModError", in, err)
			continue
		}
		if ime.Reason != ReasonUnknownCode {
			t.Errorf("Parse(%q) reason = %v, want unknown code", in, ime.Reason)
		}
	}
}

func TestEveryCodeRoundTrips(t *testing.T) {
	for code, want := range codes {
		got, err := Parse(code)
		if err != nil {
			t.Errorf("Parse(%q): %v", code, err)
			continue
		}
		if got != want {
			t.Errorf("Parse(%q) = %d, want %d", code, got, want)
		}
		if again, _ := Parse(got.ShortName()); again != got {
			t.Errorf("ShortName round trip for %q: %q -> %d", code, got.ShortName(), again)
		}
	}
}

func TestShortName(t *testing.T) {
	tests := []struct {
		m    Mod
		want string
	}{
		{NoMod, "NM"},
		{Hidden | HardRock, "HDHR"},
		{HardRock | Hidden, "HDHR"},
		{Nightcore, "NC"},
		{Hidden | DoubleTime, "HDDT"},
		{Perfect, "PF"},
		{SuddenDeath, "SD"},
		{Relax | Hidden, "RXHD"},
	}
	for _, tt := range tests {
		if got := tt.m.ShortName(); got != tt.want {
			t.Errorf("ShortName(%d) = %q, want %q", tt.m, got, tt.want)
		}
	}
}

func TestParseOptional(t *testing.T) {
	m, err := ParseOptional("")
	if err != nil || m != nil {
		t.Errorf("ParseOptional(\"\") = %v, %v; want nil, nil", m, err)
	}
	m, err = ParseOptional("HR")
	if err != nil || m == nil || *m != HardRock {
		t.Errorf("ParseOptional(HR) = %v, %v", m, err)
	}
	if _, err := ParseOptional("H"); !errors.Is(err, ErrInvalidMod) {
		t.Errorf("expected invalid mod error, got %v", err)
	}
}

func TestHas(t *testing.T) {
	m := Hidden | Nightcore
	if !m.Has(DoubleTime) || !m.Has(Nightcore) || m.Has(HardRock) {
		t.Errorf("Has results wrong for %s", m)
	}
}
